package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	r := NewRegistry()

	r.IncRequests()
	r.IncRequests()
	r.IncEchoRequests()
	r.IncEchoFailures()

	snap := r.Snapshot()
	assert.Equal(t, int64(2), snap.RequestsTotal)
	assert.Equal(t, int64(1), snap.EchoRequestsTotal)
	assert.Equal(t, int64(1), snap.EchoRequestsFailed)
}

func TestStressRunningGauge(t *testing.T) {
	r := NewRegistry()

	r.IncStressRunning()
	r.IncStressRunning()
	assert.Equal(t, 2, r.Snapshot().StressTestsRunning)

	r.DecStressRunning()
	assert.Equal(t, 1, r.Snapshot().StressTestsRunning)
}

func TestStressRunningNeverNegative(t *testing.T) {
	r := NewRegistry()

	r.DecStressRunning()
	assert.Equal(t, 0, r.Snapshot().StressTestsRunning)

	r.IncStressRunning()
	r.ResetStressRunning()
	// A run finishing after stop-all must not push the gauge below zero.
	r.DecStressRunning()
	assert.Equal(t, 0, r.Snapshot().StressTestsRunning)
}

func TestGauges(t *testing.T) {
	r := NewRegistry()

	r.SetSystemUsage(42.5, 61.3)
	r.SetLastStressDuration(30)

	snap := r.Snapshot()
	assert.Equal(t, 42.5, snap.CPUUsage)
	assert.Equal(t, 61.3, snap.MemoryUsage)
	assert.Equal(t, 30, snap.LastStressDuration)
}

func TestConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.IncRequests()
			r.IncStressRunning()
			r.SetSystemUsage(1, 2)
			r.DecStressRunning()
		}()
	}
	wg.Wait()

	snap := r.Snapshot()
	require.Equal(t, int64(50), snap.RequestsTotal)
	require.Equal(t, 0, snap.StressTestsRunning)
}
