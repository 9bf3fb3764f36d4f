// Package sampler drives the periodic host metrics collection loop.
package sampler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mabu-ibm/loadtest-app/internal/metrics"
	"github.com/mabu-ibm/loadtest-app/internal/sysinfo"
)

// Sampler periodically writes host CPU and memory utilization into the
// metrics registry. The loop runs for the life of the process; sampling
// failures are logged and retried after a longer backoff.
type Sampler struct {
	provider       sysinfo.Provider
	registry       *metrics.Registry
	logger         *zap.Logger
	interval       time.Duration
	errorBackoff   time.Duration
	commandTimeout time.Duration
}

func New(provider sysinfo.Provider, registry *metrics.Registry, logger *zap.Logger, interval, errorBackoff, commandTimeout time.Duration) *Sampler {
	return &Sampler{
		provider:       provider,
		registry:       registry,
		logger:         logger,
		interval:       interval,
		errorBackoff:   errorBackoff,
		commandTimeout: commandTimeout,
	}
}

// Run loops until ctx is cancelled. Never returns an error: a failed sample
// only stretches the wait to the error backoff.
func (s *Sampler) Run(ctx context.Context) {
	s.logger.Info("Starting system sampler",
		zap.Duration("interval", s.interval),
		zap.Duration("error_backoff", s.errorBackoff),
	)

	// Sample immediately on startup, then on the interval.
	for {
		wait := s.interval
		if err := s.sampleOnce(ctx); err != nil {
			if ctx.Err() != nil {
				s.logger.Info("Stopping system sampler")
				return
			}
			s.logger.Error("Failed to sample system metrics", zap.Error(err))
			wait = s.errorBackoff
		}

		select {
		case <-ctx.Done():
			s.logger.Info("Stopping system sampler")
			return
		case <-time.After(wait):
		}
	}
}

func (s *Sampler) sampleOnce(ctx context.Context) error {
	sampleCtx, cancel := context.WithTimeout(ctx, s.commandTimeout)
	defer cancel()

	snap, err := s.provider.Sample(sampleCtx)
	if err != nil {
		return err
	}

	s.registry.SetSystemUsage(snap.CPUPercent, snap.MemoryPercent)

	s.logger.Debug("Sampled system metrics",
		zap.Float64("cpu_percent", snap.CPUPercent),
		zap.Float64("memory_percent", snap.MemoryPercent),
	)
	return nil
}
