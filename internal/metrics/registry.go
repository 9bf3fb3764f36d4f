// Package metrics holds the service's request counters and system gauges.
// A single Registry instance is shared by the HTTP handlers, the stress
// runner, and the sampler loop.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Snapshot is a consistent read of every counter and gauge, in the shape
// the JSON endpoints report.
type Snapshot struct {
	RequestsTotal      int64   `json:"requests_total"`
	StressTestsRunning int     `json:"stress_tests_running"`
	CPUUsage           float64 `json:"cpu_usage"`
	MemoryUsage        float64 `json:"memory_usage"`
	LastStressDuration int     `json:"last_stress_duration"`
	EchoRequestsTotal  int64   `json:"echo_requests_total"`
	EchoRequestsFailed int64   `json:"echo_requests_failed"`
}

// Registry is the process-wide metrics state. All methods are safe for
// concurrent use. It also implements prometheus.Collector so the same
// numbers are scrapeable.
type Registry struct {
	mu                 sync.Mutex
	requestsTotal      int64
	stressTestsRunning int
	cpuUsage           float64
	memoryUsage        float64
	lastStressDuration int
	echoRequestsTotal  int64
	echoRequestsFailed int64

	// Prometheus mirrors
	promRequests      prometheus.Counter
	promStressRunning prometheus.Gauge
	promCPUUsage      prometheus.Gauge
	promMemoryUsage   prometheus.Gauge
	promLastDuration  prometheus.Gauge
	promEchoTotal     prometheus.Counter
	promEchoFailed    prometheus.Counter
}

func NewRegistry() *Registry {
	return &Registry{
		promRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loadtest_requests_total",
			Help: "Total HTTP requests handled by the application",
		}),
		promStressRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "loadtest_stress_tests_running",
			Help: "Number of stress-ng processes currently running",
		}),
		promCPUUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "loadtest_cpu_usage_percent",
			Help: "Last sampled host CPU usage percentage",
		}),
		promMemoryUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "loadtest_memory_usage_percent",
			Help: "Last sampled host memory usage percentage",
		}),
		promLastDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "loadtest_last_stress_duration_seconds",
			Help: "Requested duration of the most recent stress run",
		}),
		promEchoTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loadtest_echo_requests_total",
			Help: "Successful calls to the downstream echo service",
		}),
		promEchoFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loadtest_echo_requests_failed_total",
			Help: "Failed calls to the downstream echo service",
		}),
	}
}

// IncRequests counts one handled HTTP request.
func (r *Registry) IncRequests() {
	r.mu.Lock()
	r.requestsTotal++
	r.mu.Unlock()
	r.promRequests.Inc()
}

// IncEchoRequests counts one successful echo call.
func (r *Registry) IncEchoRequests() {
	r.mu.Lock()
	r.echoRequestsTotal++
	r.mu.Unlock()
	r.promEchoTotal.Inc()
}

// IncEchoFailures counts one failed echo call.
func (r *Registry) IncEchoFailures() {
	r.mu.Lock()
	r.echoRequestsFailed++
	r.mu.Unlock()
	r.promEchoFailed.Inc()
}

// IncStressRunning records a newly started stress run.
func (r *Registry) IncStressRunning() {
	r.mu.Lock()
	r.stressTestsRunning++
	count := r.stressTestsRunning
	r.mu.Unlock()
	r.promStressRunning.Set(float64(count))
}

// DecStressRunning records a finished stress run. The gauge never goes
// below zero even if decrements race with a reset.
func (r *Registry) DecStressRunning() {
	r.mu.Lock()
	if r.stressTestsRunning > 0 {
		r.stressTestsRunning--
	}
	count := r.stressTestsRunning
	r.mu.Unlock()
	r.promStressRunning.Set(float64(count))
}

// ResetStressRunning forces the gauge to zero. Used by stop-all, which
// clears run tracking unconditionally.
func (r *Registry) ResetStressRunning() {
	r.mu.Lock()
	r.stressTestsRunning = 0
	r.mu.Unlock()
	r.promStressRunning.Set(0)
}

// SetLastStressDuration records the requested duration of the most recent run.
func (r *Registry) SetLastStressDuration(seconds int) {
	r.mu.Lock()
	r.lastStressDuration = seconds
	r.mu.Unlock()
	r.promLastDuration.Set(float64(seconds))
}

// SetSystemUsage stores the sampler's latest CPU and memory percentages.
func (r *Registry) SetSystemUsage(cpuPercent, memoryPercent float64) {
	r.mu.Lock()
	r.cpuUsage = cpuPercent
	r.memoryUsage = memoryPercent
	r.mu.Unlock()
	r.promCPUUsage.Set(cpuPercent)
	r.promMemoryUsage.Set(memoryPercent)
}

// Snapshot returns a consistent copy of all metrics.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		RequestsTotal:      r.requestsTotal,
		StressTestsRunning: r.stressTestsRunning,
		CPUUsage:           r.cpuUsage,
		MemoryUsage:        r.memoryUsage,
		LastStressDuration: r.lastStressDuration,
		EchoRequestsTotal:  r.echoRequestsTotal,
		EchoRequestsFailed: r.echoRequestsFailed,
	}
}

// Describe implements the prometheus.Collector interface
func (r *Registry) Describe(ch chan<- *prometheus.Desc) {
	r.promRequests.Describe(ch)
	r.promStressRunning.Describe(ch)
	r.promCPUUsage.Describe(ch)
	r.promMemoryUsage.Describe(ch)
	r.promLastDuration.Describe(ch)
	r.promEchoTotal.Describe(ch)
	r.promEchoFailed.Describe(ch)
}

// Collect implements the prometheus.Collector interface
func (r *Registry) Collect(ch chan<- prometheus.Metric) {
	r.promRequests.Collect(ch)
	r.promStressRunning.Collect(ch)
	r.promCPUUsage.Collect(ch)
	r.promMemoryUsage.Collect(ch)
	r.promLastDuration.Collect(ch)
	r.promEchoTotal.Collect(ch)
	r.promEchoFailed.Collect(ch)
}
