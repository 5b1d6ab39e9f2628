// Package server runs the nimbuswalk HTTP service.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/3leaps/nimbuswalk/internal/server/handlers"
	"github.com/3leaps/nimbuswalk/internal/server/httperr"
	"github.com/3leaps/nimbuswalk/internal/server/middleware"
)

// Server is the HTTP service.
type Server struct {
	host   string
	port   int
	logger *zap.Logger

	version  handlers.VersionInfo
	checkers map[string]handlers.HealthChecker
	health   *handlers.HealthManager
	walk     http.Handler

	readTimeout  time.Duration
	writeTimeout time.Duration
	idleTimeout  time.Duration

	router     chi.Router
	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and lifecycle logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithVersion sets the build info served at /version and /health.
func WithVersion(v handlers.VersionInfo) Option {
	return func(s *Server) { s.version = v }
}

// WithHealthChecker registers a named health checker.
func WithHealthChecker(name string, c handlers.HealthChecker) Option {
	return func(s *Server) { s.checkers[name] = c }
}

// WithWalkHandler mounts h at GET /v1/walk.
func WithWalkHandler(h http.Handler) Option {
	return func(s *Server) { s.walk = h }
}

// WithTimeouts sets the http.Server timeouts. Zero means no timeout.
func WithTimeouts(read, write, idle time.Duration) Option {
	return func(s *Server) {
		s.readTimeout = read
		s.writeTimeout = write
		s.idleTimeout = idle
	}
}

// New creates a server listening on host:port.
func New(host string, port int, opts ...Option) *Server {
	s := &Server{
		host:     host,
		port:     port,
		logger:   zap.NewNop(),
		checkers: make(map[string]handlers.HealthChecker),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.health = handlers.NewHealthManager(s.version.Version)
	for name, c := range s.checkers {
		s.health.RegisterChecker(name, c)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(middleware.Recovery)

	r.NotFound(httperr.NotFound)
	r.MethodNotAllowed(httperr.MethodNotAllowed)

	r.Get("/health", s.health.HealthHandler)
	r.Get("/health/live", s.health.LivenessHandler)
	r.Get("/health/ready", s.health.HealthHandler)
	r.Get("/version", handlers.VersionHandler(s.version))

	if s.walk != nil {
		r.Method(http.MethodGet, "/v1/walk", s.walk)
	}
	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// Addr returns host:port.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.host, strconv.Itoa(s.port))
}

// Run serves until ctx is done, then shuts down gracefully within
// shutdownTimeout.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	s.httpServer = &http.Server{
		Addr:         s.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
		IdleTimeout:  s.idleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", s.httpServer.Addr))
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
