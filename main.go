package main

import (
	"context"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/mabu-ibm/loadtest-app/internal/config"
	"github.com/mabu-ibm/loadtest-app/internal/echo"
	"github.com/mabu-ibm/loadtest-app/internal/metrics"
	"github.com/mabu-ibm/loadtest-app/internal/sampler"
	"github.com/mabu-ibm/loadtest-app/internal/server"
	"github.com/mabu-ibm/loadtest-app/internal/stress"
	"github.com/mabu-ibm/loadtest-app/internal/sysinfo"
)

func main() {
	app := fx.New(
		// Provide dependencies
		fx.Provide(
			loadConfig,
			newLogger,
			sysinfo.NewSystemCommandExecutor,
			newSysinfoProvider,
			metrics.NewRegistry,
			newRunner,
			newEchoClient,
			newSampler,
			newServer,
			server.NewLifecycle,
		),

		// Invoke startup functions
		fx.Invoke(registerHooks),

		// Configure logging
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	app.Run()
}

func loadConfig() (*config.Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.json"
	}
	return config.Load(path)
}

// newLogger follows the APP_ENV serving mode: structured JSON output in
// production, console output in development.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Environment == config.EnvProduction {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func newSysinfoProvider(executor *sysinfo.SystemCommandExecutor) sysinfo.Provider {
	return sysinfo.NewHostProvider(executor)
}

func newRunner(cfg *config.Config, registry *metrics.Registry, logger *zap.Logger) *stress.Runner {
	return stress.NewRunner(
		cfg.Stress.ExecutablePath,
		cfg.Stress.MaxDurationSec,
		cfg.Stress.StopGracePeriod.Duration,
		registry,
		logger,
	)
}

func newEchoClient(cfg *config.Config, registry *metrics.Registry, logger *zap.Logger) *echo.Client {
	return echo.NewClient(cfg.Echo.ServiceURL, cfg.Echo.RequestTimeout.Duration, registry, logger)
}

func newSampler(cfg *config.Config, provider sysinfo.Provider, registry *metrics.Registry, logger *zap.Logger) *sampler.Sampler {
	return sampler.New(
		provider,
		registry,
		logger,
		cfg.Sampler.Interval.Duration,
		cfg.Sampler.ErrorBackoff.Duration,
		cfg.Sampler.CommandTimeout.Duration,
	)
}

func newServer(cfg *config.Config, logger *zap.Logger, registry *metrics.Registry, runner *stress.Runner, echoClient *echo.Client, provider sysinfo.Provider) *server.Server {
	return server.New(&server.Params{
		Config:   cfg,
		Logger:   logger,
		Registry: registry,
		Runner:   runner,
		Echo:     echoClient,
		Sysinfo:  provider,
	})
}

// registerHooks supervises the background work: the sampler loop runs under
// a context cancelled at shutdown, and any stress runs still alive are
// terminated after the HTTP server has drained.
func registerHooks(lifecycle fx.Lifecycle, serverLifecycle *server.Lifecycle, smp *sampler.Sampler, runner *stress.Runner) {
	samplerCtx, cancelSampler := context.WithCancel(context.Background())

	// Hooks stop in reverse order: the HTTP server drains first, then the
	// sampler and any remaining stress runs are torn down.
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go smp.Run(samplerCtx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancelSampler()
			runner.Shutdown()
			return nil
		},
	})

	lifecycle.Append(fx.Hook{
		OnStart: serverLifecycle.Start,
		OnStop:  serverLifecycle.Stop,
	})
}
