package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"mercator-hq/cloudengine/pkg/cloud"
	"mercator-hq/cloudengine/pkg/config"
	"mercator-hq/cloudengine/pkg/flow"
	"mercator-hq/cloudengine/pkg/telemetry/health"
)

// Deps are the components the server exposes.
type Deps struct {
	Cloud    *cloud.Engine
	Pipeline *flow.Pipeline
	// Modules are the property modules whose results /v1/process returns.
	Modules []string

	// Health is optional; a checker with no checks is used when nil.
	Health *health.Checker
	// Metrics is optional and served at MetricsPath.
	Metrics     http.Handler
	MetricsPath string

	Version, Commit, BuildTime string

	Logger *slog.Logger
}

// Server serves the cloud engine API.
type Server struct {
	cfg     config.ServerConfig
	deps    Deps
	handler http.Handler
	logger  *slog.Logger

	mu           sync.Mutex
	httpServer   *http.Server
	running      bool
	shutdownOnce sync.Once
}

// New creates a server. It does not start listening.
func New(cfg config.ServerConfig, deps Deps) (*Server, error) {
	if deps.Cloud == nil || deps.Pipeline == nil {
		return nil, errors.New("server requires a cloud engine and a pipeline")
	}
	if deps.Health == nil {
		deps.Health = health.New(0)
	}
	if deps.Metrics != nil && deps.MetricsPath == "" {
		deps.MetricsPath = config.DefaultPrometheusPath
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With("component", "server"),
	}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the server's HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/process", s.handleProcess)
	mux.HandleFunc("GET /v1/properties", s.handleProperties)
	mux.HandleFunc("GET /v1/evidencekeys", s.handleEvidenceKeys)
	health.Register(mux, s.deps.Health, s.deps.Version, s.deps.Commit, s.deps.BuildTime)
	if s.deps.Metrics != nil {
		mux.Handle("GET "+s.deps.MetricsPath, s.deps.Metrics)
	}

	var h http.Handler = mux
	h = loggingMiddleware(s.logger)(h)
	h = requestIDMiddleware(h)
	h = recoveryMiddleware(s.logger)(h)
	return h
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddress, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled or Shutdown is called.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		ln.Close()
		return errors.New("server is already running")
	}
	s.running = true
	s.httpServer = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	srv := s.httpServer
	s.mu.Unlock()

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("server error: %w", err)
		}
		close(errc)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err, ok := <-errc:
		if ok {
			return err
		}
		return nil
	}
}

// Shutdown gracefully stops the server within the configured shutdown
// timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		srv := s.httpServer
		s.mu.Unlock()
		if srv == nil {
			return
		}

		timeout := s.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = config.DefaultShutdownTimeout
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		s.logger.Info("initiating graceful shutdown", "timeout", timeout.String())
		if err := srv.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		s.logger.Info("server stopped")
	})
	return shutdownErr
}
