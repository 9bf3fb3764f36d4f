package stress

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mabu-ibm/loadtest-app/internal/metrics"
)

// fakeStressTool writes a shell script standing in for stress-ng. The
// script ignores the stress-ng flags it is given.
func fakeStressTool(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-stress-ng")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func newTestRunner(t *testing.T, execPath string) (*Runner, *metrics.Registry) {
	t.Helper()
	registry := metrics.NewRegistry()
	runner := NewRunner(execPath, 3600, 2*time.Second, registry, zap.NewNop())
	t.Cleanup(runner.Shutdown)
	return runner, registry
}

func validRequest() RunRequest {
	return RunRequest{CPUWorkers: 2, MemoryWorkers: 1, DurationSeconds: 30, MemorySize: "256M"}
}

func TestValidateRejectsLongDuration(t *testing.T) {
	runner, registry := newTestRunner(t, "unused")

	req := validRequest()
	req.DurationSeconds = 4000

	_, err := runner.StartRun(req)
	require.ErrorIs(t, err, ErrInvalidParameter)

	// Rejected before any process is spawned.
	assert.Equal(t, 0, runner.ActiveCount())
	assert.Equal(t, 0, registry.Snapshot().StressTestsRunning)
}

func TestValidateRejectsBadInput(t *testing.T) {
	runner, _ := newTestRunner(t, "unused")

	cases := map[string]RunRequest{
		"zero duration":     {CPUWorkers: 2, MemoryWorkers: 1, DurationSeconds: 0, MemorySize: "256M"},
		"zero cpu workers":  {CPUWorkers: 0, MemoryWorkers: 1, DurationSeconds: 30, MemorySize: "256M"},
		"zero mem workers":  {CPUWorkers: 2, MemoryWorkers: 0, DurationSeconds: 30, MemorySize: "256M"},
		"shell injection":   {CPUWorkers: 2, MemoryWorkers: 1, DurationSeconds: 30, MemorySize: "256M; rm -rf /"},
		"empty memory size": {CPUWorkers: 2, MemoryWorkers: 1, DurationSeconds: 30, MemorySize: ""},
	}
	for name, req := range cases {
		_, err := runner.StartRun(req)
		assert.ErrorIs(t, err, ErrInvalidParameter, name)
	}
}

func TestValidMemorySizes(t *testing.T) {
	runner, _ := newTestRunner(t, "unused")
	for _, size := range []string{"128M", "256M", "512M", "1G", "64", "512k"} {
		req := validRequest()
		req.MemorySize = size
		assert.NoError(t, runner.Validate(req), size)
	}
}

func TestStartRunToolMissing(t *testing.T) {
	runner, registry := newTestRunner(t, filepath.Join(t.TempDir(), "missing-stress-ng"))

	_, err := runner.StartRun(validRequest())
	require.ErrorIs(t, err, ErrToolMissing)

	assert.Equal(t, 0, runner.ActiveCount())
	assert.Equal(t, 0, registry.Snapshot().StressTestsRunning)
}

func TestStartRunTracksProcess(t *testing.T) {
	runner, registry := newTestRunner(t, fakeStressTool(t, "exec sleep 10"))

	req := validRequest()
	req.DurationSeconds = 10

	id, err := runner.StartRun(req)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	assert.Equal(t, 1, runner.ActiveCount())
	snap := registry.Snapshot()
	assert.Equal(t, 1, snap.StressTestsRunning)
	assert.Equal(t, 10, snap.LastStressDuration)

	runs := runner.ActiveRuns()
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
	assert.NotZero(t, runs[0].PID)
}

func TestRunCompletionDecrements(t *testing.T) {
	runner, registry := newTestRunner(t, fakeStressTool(t, "exec sleep 0.2"))

	_, err := runner.StartRun(validRequest())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return runner.ActiveCount() == 0 && registry.Snapshot().StressTestsRunning == 0
	}, 5*time.Second, 50*time.Millisecond)
}

func TestConcurrentRunsHaveDistinctIDs(t *testing.T) {
	runner, registry := newTestRunner(t, fakeStressTool(t, "exec sleep 10"))

	ids := map[string]bool{}
	for i := 0; i < 3; i++ {
		id, err := runner.StartRun(validRequest())
		require.NoError(t, err)
		ids[id] = true
	}

	assert.Len(t, ids, 3)
	assert.Equal(t, 3, runner.ActiveCount())
	assert.Equal(t, 3, registry.Snapshot().StressTestsRunning)
}

func TestStopAll(t *testing.T) {
	runner, registry := newTestRunner(t, fakeStressTool(t, "exec sleep 60"))

	for i := 0; i < 2; i++ {
		_, err := runner.StartRun(validRequest())
		require.NoError(t, err)
	}
	require.Equal(t, 2, runner.ActiveCount())

	result := runner.StopAll()
	assert.Equal(t, 2, result.Stopped)
	assert.Equal(t, 0, result.NotStopped)

	assert.Equal(t, 0, runner.ActiveCount())
	assert.Equal(t, 0, registry.Snapshot().StressTestsRunning)
}

func TestStopAllWithNoRuns(t *testing.T) {
	runner, registry := newTestRunner(t, "unused")

	result := runner.StopAll()
	assert.Equal(t, 0, result.Stopped)
	assert.Equal(t, 0, result.NotStopped)
	assert.Equal(t, 0, registry.Snapshot().StressTestsRunning)
}

func TestStopAllClearsTrackingForStubbornProcess(t *testing.T) {
	// The script traps SIGTERM, so it outlives the grace period.
	runner, registry := newTestRunner(t, fakeStressTool(t, "trap '' TERM\nsleep 60"))
	runner.stopGrace = 200 * time.Millisecond

	_, err := runner.StartRun(validRequest())
	require.NoError(t, err)

	// Give the shell a moment to install the trap.
	time.Sleep(100 * time.Millisecond)

	runs := runner.ActiveRuns()
	require.Len(t, runs, 1)

	result := runner.StopAll()
	assert.Equal(t, 0, result.Stopped)
	assert.Equal(t, 1, result.NotStopped)

	// Best-effort cleanup: tracking and the gauge are cleared regardless.
	assert.Equal(t, 0, runner.ActiveCount())
	assert.Equal(t, 0, registry.Snapshot().StressTestsRunning)

	// The process survived the grace period; kill it so shutdown does not
	// wait out the full sleep.
	require.NoError(t, syscall.Kill(runs[0].PID, syscall.SIGKILL))
}
