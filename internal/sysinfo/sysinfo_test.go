package sysinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const topOutput = `top - 12:01:33 up 10 days,  3:14,  1 user,  load average: 0.52, 0.58, 0.59
Tasks: 203 total,   1 running, 202 sleeping,   0 stopped,   0 zombie
%Cpu(s):  3.2 us,  1.1 sy,  0.0 ni, 95.6 id,  0.0 wa,  0.0 hi,  0.1 si,  0.0 st
MiB Mem :  15886.6 total,   2034.2 free,   6612.1 used,   7240.3 buff/cache
`

const freeOutput = `              total        used        free      shared  buff/cache   available
Mem:    17179869184  4294967296  4294967296   536870912  8589934592 12884901888
Swap:    2147483648           0  2147483648
`

func TestParseCPUUsage(t *testing.T) {
	usage, err := parseCPUUsage([]byte(topOutput))
	require.NoError(t, err)
	assert.InDelta(t, 4.4, usage, 0.001)
}

func TestParseCPUUsageNoCPULine(t *testing.T) {
	_, err := parseCPUUsage([]byte("Tasks: 203 total\n"))
	assert.Error(t, err)
}

func TestParseCPUUsageNoIdleShare(t *testing.T) {
	_, err := parseCPUUsage([]byte("%Cpu(s):  3.2 us,  1.1 sy\n"))
	assert.Error(t, err)
}

func TestParseMemoryUsage(t *testing.T) {
	usage, err := parseMemoryUsage([]byte(freeOutput))
	require.NoError(t, err)

	assert.Equal(t, float64(17179869184), usage.TotalBytes)
	assert.Equal(t, float64(4294967296), usage.UsedBytes)
	assert.Equal(t, float64(12884901888), usage.AvailableBytes)
	// 16 GiB total, 12 GiB available: 25% used.
	assert.InDelta(t, 25.0, usage.UsedPercent, 0.001)
}

func TestParseMemoryUsageNoMemLine(t *testing.T) {
	_, err := parseMemoryUsage([]byte("Swap: 0 0 0\n"))
	assert.Error(t, err)
}

func TestRoundGB(t *testing.T) {
	assert.Equal(t, 16.0, roundGB(17179869184))
	assert.Equal(t, 12.0, roundGB(12884901888))
	assert.Equal(t, 0.25, roundGB(268435456))
}
