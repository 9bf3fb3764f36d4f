// Package stress launches and tracks stress-ng child processes.
package stress

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mabu-ibm/loadtest-app/internal/metrics"
)

var (
	// ErrInvalidParameter marks client input out of range (HTTP 400).
	ErrInvalidParameter = errors.New("invalid stress parameter")
	// ErrToolMissing means the stress-ng executable could not be found.
	ErrToolMissing = errors.New("stress-ng is not installed")
)

// memorySizeRe accepts stress-ng size tokens such as 128M, 256M, 512M, 1G.
var memorySizeRe = regexp.MustCompile(`^[0-9]+[BKMGbkmg]?$`)

// RunRequest holds the parameters of one stress run. Immutable once accepted.
type RunRequest struct {
	CPUWorkers      int    `json:"cpu_workers"`
	MemoryWorkers   int    `json:"memory_workers"`
	DurationSeconds int    `json:"duration_seconds"`
	MemorySize      string `json:"memory_size"`
}

// Run is the handle of one in-flight stress process.
type Run struct {
	ID        string    `json:"id"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`

	cmd  *exec.Cmd
	done chan struct{}
}

// StopResult reports the outcome of a stop-all sweep.
type StopResult struct {
	Stopped    int `json:"stopped"`
	NotStopped int `json:"not_stopped"`
}

// Runner spawns stress-ng processes and tracks them until they exit.
type Runner struct {
	execPath    string
	maxDuration int
	stopGrace   time.Duration
	registry    *metrics.Registry
	logger      *zap.Logger

	mu     sync.Mutex
	active map[string]*Run

	waiters sync.WaitGroup
}

func NewRunner(execPath string, maxDurationSec int, stopGrace time.Duration, registry *metrics.Registry, logger *zap.Logger) *Runner {
	return &Runner{
		execPath:    execPath,
		maxDuration: maxDurationSec,
		stopGrace:   stopGrace,
		registry:    registry,
		logger:      logger,
		active:      make(map[string]*Run),
	}
}

// Validate checks a request against the accepted parameter ranges.
func (r *Runner) Validate(req RunRequest) error {
	if req.DurationSeconds < 1 || req.DurationSeconds > r.maxDuration {
		return fmt.Errorf("%w: duration must be between 1 and %d seconds", ErrInvalidParameter, r.maxDuration)
	}
	if req.CPUWorkers < 1 {
		return fmt.Errorf("%w: cpu_workers must be at least 1", ErrInvalidParameter)
	}
	if req.MemoryWorkers < 1 {
		return fmt.Errorf("%w: memory_workers must be at least 1", ErrInvalidParameter)
	}
	if !memorySizeRe.MatchString(req.MemorySize) {
		return fmt.Errorf("%w: memory_size %q is not a valid size token", ErrInvalidParameter, req.MemorySize)
	}
	return nil
}

func (r *Runner) buildArgs(req RunRequest) []string {
	return []string{
		"--cpu", strconv.Itoa(req.CPUWorkers),
		"--vm", strconv.Itoa(req.MemoryWorkers),
		"--vm-bytes", req.MemorySize,
		"--timeout", fmt.Sprintf("%ds", req.DurationSeconds),
		"--metrics-brief",
		"--verbose",
	}
}

// StartRun validates the request, spawns stress-ng and returns without
// waiting for it. A background goroutine owns the process until exit.
func (r *Runner) StartRun(req RunRequest) (string, error) {
	if err := r.Validate(req); err != nil {
		return "", err
	}

	cmd := exec.Command(r.execPath, r.buildArgs(req)...)

	r.logger.Info("Starting stress run",
		zap.String("command", r.execPath),
		zap.Strings("args", cmd.Args[1:]),
	)

	if err := cmd.Start(); err != nil {
		// ErrNotFound covers PATH lookups, ErrNotExist explicit paths.
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			r.logger.Error("stress-ng executable not found", zap.String("path", r.execPath))
			return "", fmt.Errorf("%w: install it with: apt-get install stress-ng", ErrToolMissing)
		}
		return "", fmt.Errorf("start stress run: %w", err)
	}

	run := &Run{
		ID:        uuid.NewString(),
		PID:       cmd.Process.Pid,
		StartedAt: time.Now(),
		cmd:       cmd,
		done:      make(chan struct{}),
	}

	r.mu.Lock()
	r.active[run.ID] = run
	r.mu.Unlock()

	r.registry.IncStressRunning()
	r.registry.SetLastStressDuration(req.DurationSeconds)

	r.waiters.Add(1)
	go r.wait(run)

	return run.ID, nil
}

// wait blocks until the process exits, then drops the handle.
func (r *Runner) wait(run *Run) {
	defer r.waiters.Done()

	err := run.cmd.Wait()
	close(run.done)

	r.mu.Lock()
	_, tracked := r.active[run.ID]
	delete(r.active, run.ID)
	r.mu.Unlock()

	// Stop-all already untracked this run and reset the gauge.
	if tracked {
		r.registry.DecStressRunning()
	}

	if err != nil {
		r.logger.Info("Stress run exited",
			zap.String("run_id", run.ID),
			zap.Int("pid", run.PID),
			zap.Error(err),
		)
		return
	}
	r.logger.Info("Stress run completed",
		zap.String("run_id", run.ID),
		zap.Int("pid", run.PID),
		zap.Duration("elapsed", time.Since(run.StartedAt)),
	)
}

// ActiveCount returns the number of tracked runs.
func (r *Runner) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// ActiveRuns returns a snapshot of the tracked runs.
func (r *Runner) ActiveRuns() []Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	runs := make([]Run, 0, len(r.active))
	for _, run := range r.active {
		runs = append(runs, *run)
	}
	return runs
}

// StopAll terminates every tracked run: SIGTERM, then a bounded wait for
// exit. Runs that miss the grace period are counted as not stopped but are
// untracked anyway; tracking and the running gauge are cleared
// unconditionally. Best-effort cleanup, not a guarantee of process death.
func (r *Runner) StopAll() StopResult {
	r.mu.Lock()
	snapshot := make([]*Run, 0, len(r.active))
	for _, run := range r.active {
		snapshot = append(snapshot, run)
	}
	r.active = make(map[string]*Run)
	r.mu.Unlock()

	var result StopResult
	for _, run := range snapshot {
		if r.terminate(run) {
			result.Stopped++
		} else {
			result.NotStopped++
		}
	}

	r.registry.ResetStressRunning()

	r.logger.Info("Stopped stress runs",
		zap.Int("stopped", result.Stopped),
		zap.Int("not_stopped", result.NotStopped),
	)
	return result
}

// terminate signals one process and waits up to the grace period.
func (r *Runner) terminate(run *Run) bool {
	if err := run.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Already exited between snapshot and signal.
		r.logger.Error("Failed to signal stress process",
			zap.Int("pid", run.PID),
			zap.Error(err),
		)
		return false
	}

	// The wait goroutine owns cmd.Wait and closes done on exit.
	select {
	case <-run.done:
		return true
	case <-time.After(r.stopGrace):
		r.logger.Error("Stress process did not exit within grace period",
			zap.Int("pid", run.PID),
			zap.Duration("grace", r.stopGrace),
		)
		return false
	}
}

// Shutdown stops all runs and waits for the wait goroutines to finish.
func (r *Runner) Shutdown() {
	r.StopAll()
	r.waiters.Wait()
}
