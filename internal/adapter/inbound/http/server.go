package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the inbound adapter that exposes the GaaS API over HTTP.
type Server struct {
	handler         *Handler
	server          *http.Server
	addr            string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger
	registry        *prometheus.Registry
	healthChecker   *HealthChecker
	metrics         *Metrics
}

// Option is a functional option for configuring Server.
type Option func(*Server)

// WithAddr sets the listen address for the HTTP server.
// Default is "127.0.0.1:8000" (localhost only).
func WithAddr(addr string) Option {
	return func(s *Server) {
		s.addr = addr
	}
}

// WithLogger sets the logger for the HTTP server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithTimeouts sets the read, write, and shutdown timeouts.
func WithTimeouts(read, write, shutdown time.Duration) Option {
	return func(s *Server) {
		s.readTimeout = read
		s.writeTimeout = write
		s.shutdownTimeout = shutdown
	}
}

// WithHealthChecker sets the health checker for the /health endpoint.
func WithHealthChecker(hc *HealthChecker) Option {
	return func(s *Server) {
		s.healthChecker = hc
	}
}

// NewServer creates the HTTP server. The metrics instance must be the same
// one the Handler was built with so both record into the registry exposed
// at /metrics.
func NewServer(handler *Handler, registry *prometheus.Registry, metrics *Metrics, opts ...Option) *Server {
	s := &Server{
		handler:         handler,
		addr:            "127.0.0.1:8000",
		readTimeout:     10 * time.Second,
		writeTimeout:    30 * time.Second,
		shutdownTimeout: 10 * time.Second,
		logger:          slog.Default(),
		registry:        registry,
		metrics:         metrics,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// NewMetricsRegistry creates a Prometheus registry with the standard Go and
// process collectors plus the GaaS metrics.
func NewMetricsRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, NewMetrics(reg)
}

// routes builds the request mux with the full middleware chain applied.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /register_agent", s.handler.RegisterAgent)
	mux.HandleFunc("POST /submit_action_log", s.handler.SubmitActionLog)
	mux.HandleFunc("GET /enforcement_decision", s.handler.EnforcementDecision)
	mux.HandleFunc("POST /upload_policy", s.handler.UploadPolicy)
	mux.HandleFunc("GET /compliance_report", s.handler.ComplianceReport)

	if s.healthChecker != nil {
		mux.Handle("GET /health", s.healthChecker.Handler())
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		Registry: s.registry,
	}))
	mux.Handle("GET /favicon.ico", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	mux.HandleFunc("GET /", s.handler.Index)

	// Middleware order (outermost first):
	// 1. Metrics - capture full duration and final status
	// 2. RequestID - generate ID and enrich logger
	// 3. AccessLog - one line per request
	// 4. Recovery - innermost so the access log still fires on panic
	var h http.Handler = mux
	h = RecoveryMiddleware(h)
	h = AccessLogMiddleware(h)
	h = RequestIDMiddleware(s.logger)(h)
	h = MetricsMiddleware(s.metrics)(h)
	return h
}

// Start begins accepting HTTP connections. It blocks until the context is
// cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.routes(),
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down HTTP server")
		return s.shutdown()
	case err := <-errCh:
		return err
	}
}

// shutdown performs graceful shutdown of the HTTP server.
func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("error during server shutdown", "error", err)
		return err
	}

	s.logger.Info("HTTP server shutdown complete")
	return nil
}

// Close gracefully shuts down the server.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	return s.shutdown()
}
