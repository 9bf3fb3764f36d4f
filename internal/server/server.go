package server

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mabu-ibm/loadtest-app/internal/config"
	"github.com/mabu-ibm/loadtest-app/internal/echo"
	"github.com/mabu-ibm/loadtest-app/internal/metrics"
	"github.com/mabu-ibm/loadtest-app/internal/stress"
	"github.com/mabu-ibm/loadtest-app/internal/sysinfo"
)

// Server is the main server struct
type Server struct {
	config     *config.Config
	logger     *zap.Logger
	httpServer *http.Server

	registry *metrics.Registry
	runner   *stress.Runner
	echo     *echo.Client
	sysinfo  sysinfo.Provider
}

// Params are the collaborators the server needs.
type Params struct {
	Config   *config.Config
	Logger   *zap.Logger
	Registry *metrics.Registry
	Runner   *stress.Runner
	Echo     *echo.Client
	Sysinfo  sysinfo.Provider
}

// New creates a new server
func New(params *Params) *Server {
	s := &Server{
		config:   params.Config,
		logger:   params.Logger,
		registry: params.Registry,
		runner:   params.Runner,
		echo:     params.Echo,
		sysinfo:  params.Sysinfo,
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(params.Registry)

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/stress", s.handleStress)
	mux.HandleFunc("/stop", s.handleStop)
	mux.HandleFunc("/echo", s.handleEcho)

	// Prometheus scrape endpoint alongside the JSON metrics API
	mux.Handle("/metrics/prometheus", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	s.httpServer = &http.Server{
		Addr:         params.Config.Addr(),
		Handler:      mux,
		ReadTimeout:  params.Config.Server.ReadTimeout.Duration,
		WriteTimeout: params.Config.Server.WriteTimeout.Duration,
	}

	return s
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the server
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("addr", s.httpServer.Addr),
		zap.String("environment", s.config.Environment),
		zap.Duration("read_timeout", s.config.Server.ReadTimeout.Duration),
		zap.Duration("write_timeout", s.config.Server.WriteTimeout.Duration),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error("HTTP server failed", zap.Error(err))
		return err
	}

	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout.Duration)
	defer cancel()

	return s.httpServer.Shutdown(shutdownCtx)
}

// Lifecycle manages the server lifecycle with fx
type Lifecycle struct {
	server *Server
	logger *zap.Logger
}

func NewLifecycle(server *Server, logger *zap.Logger) *Lifecycle {
	return &Lifecycle{
		server: server,
		logger: logger,
	}
}

func (l *Lifecycle) Start(ctx context.Context) error {
	go func() {
		if err := l.server.Start(ctx); err != nil {
			l.logger.Error("Server startup failed", zap.Error(err))
		}
	}()
	return nil
}

func (l *Lifecycle) Stop(ctx context.Context) error {
	return l.server.Stop(ctx)
}
