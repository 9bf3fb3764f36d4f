// Package sysinfo samples host CPU and memory utilization by shelling out
// to the standard Linux tooling (top, free, nproc) and parsing the output.
package sysinfo

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Snapshot is one host-level sample.
type Snapshot struct {
	CPUPercent        float64   `json:"cpu_percent"`
	MemoryPercent     float64   `json:"memory_percent"`
	MemoryAvailableGB float64   `json:"memory_available_gb"`
	MemoryTotalGB     float64   `json:"memory_total_gb"`
	Timestamp         time.Time `json:"timestamp"`
}

// Provider produces host samples. The sampler loop and the metrics
// endpoint both consume it.
type Provider interface {
	Sample(ctx context.Context) (Snapshot, error)
	CPUCount(ctx context.Context) (int, error)
}

// HostProvider samples the local host through a CommandExecutor.
type HostProvider struct {
	executor CommandExecutor
}

func NewHostProvider(executor *SystemCommandExecutor) *HostProvider {
	return &HostProvider{executor: executor}
}

var cpuLineRe = regexp.MustCompile(`(\d+\.?\d*)\s+(\w+)`)

// Sample collects one CPU and memory snapshot.
func (p *HostProvider) Sample(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{Timestamp: time.Now()}

	cpuOut, err := p.executor.GetCPUUsage(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("cpu sample: %w", err)
	}
	cpu, err := parseCPUUsage(cpuOut)
	if err != nil {
		return Snapshot{}, fmt.Errorf("cpu sample: %w", err)
	}
	snap.CPUPercent = cpu

	memOut, err := p.executor.GetMemoryUsage(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("memory sample: %w", err)
	}
	mem, err := parseMemoryUsage(memOut)
	if err != nil {
		return Snapshot{}, fmt.Errorf("memory sample: %w", err)
	}
	snap.MemoryPercent = mem.UsedPercent
	snap.MemoryAvailableGB = roundGB(mem.AvailableBytes)
	snap.MemoryTotalGB = roundGB(mem.TotalBytes)

	return snap, nil
}

// CPUCount returns the number of online CPUs.
func (p *HostProvider) CPUCount(ctx context.Context) (int, error) {
	out, err := p.executor.GetCPUCount(ctx)
	if err != nil {
		return 0, err
	}
	count, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return 0, fmt.Errorf("parse nproc output: %w", err)
	}
	return count, nil
}

type memoryUsage struct {
	TotalBytes     float64
	UsedBytes      float64
	AvailableBytes float64
	UsedPercent    float64
}

// parseCPUUsage extracts overall CPU utilization from top -bn1 output.
// Linux format: "%Cpu(s):  3.2 us,  1.1 sy,  0.0 ni, 95.6 id, ..."
// Utilization is reported as 100 minus the idle share.
func parseCPUUsage(output []byte) (float64, error) {
	for _, line := range strings.Split(string(output), "\n") {
		if !strings.Contains(line, "%Cpu(s):") {
			continue
		}
		for _, match := range cpuLineRe.FindAllStringSubmatch(line, -1) {
			if len(match) != 3 || match[2] != "id" {
				continue
			}
			idle, err := strconv.ParseFloat(match[1], 64)
			if err != nil {
				return 0, fmt.Errorf("parse idle share %q: %w", match[1], err)
			}
			return 100 - idle, nil
		}
		return 0, fmt.Errorf("no idle share in cpu line %q", strings.TrimSpace(line))
	}
	return 0, fmt.Errorf("no %%Cpu(s) line in top output")
}

// parseMemoryUsage extracts the Mem line from free -b output.
// Format: "Mem: <total> <used> <free> <shared> <buff/cache> <available>"
func parseMemoryUsage(output []byte) (memoryUsage, error) {
	for _, line := range strings.Split(string(output), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 7 || fields[0] != "Mem:" {
			continue
		}

		var usage memoryUsage
		var err error
		if usage.TotalBytes, err = strconv.ParseFloat(fields[1], 64); err != nil {
			return memoryUsage{}, fmt.Errorf("parse total %q: %w", fields[1], err)
		}
		if usage.UsedBytes, err = strconv.ParseFloat(fields[2], 64); err != nil {
			return memoryUsage{}, fmt.Errorf("parse used %q: %w", fields[2], err)
		}
		if usage.AvailableBytes, err = strconv.ParseFloat(fields[6], 64); err != nil {
			return memoryUsage{}, fmt.Errorf("parse available %q: %w", fields[6], err)
		}
		if usage.TotalBytes > 0 {
			usage.UsedPercent = (usage.TotalBytes - usage.AvailableBytes) / usage.TotalBytes * 100
		}
		return usage, nil
	}
	return memoryUsage{}, fmt.Errorf("no Mem line in free output")
}

func roundGB(bytes float64) float64 {
	return math.Round(bytes/(1<<30)*100) / 100
}
