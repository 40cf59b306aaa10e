// Package server exposes depth-limited listings over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/3leaps/depthls/internal/config"
	apperrors "github.com/3leaps/depthls/internal/errors"
	"github.com/3leaps/depthls/internal/observability"
	"github.com/3leaps/depthls/internal/server/handlers"
	"github.com/3leaps/depthls/internal/server/middleware"
)

// Server is the HTTP server.
type Server struct {
	host   string
	port   int
	cfg    config.ServerConfig
	list   handlers.ListConfig
	router chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithServerConfig sets timeouts and the depth limit. Host and port given to
// New win over the ones in cfg.
func WithServerConfig(cfg config.ServerConfig) Option {
	return func(s *Server) { s.cfg = cfg }
}

// WithListConfig sets how GET /v1/list opens backends and expands.
func WithListConfig(cfg handlers.ListConfig) Option {
	return func(s *Server) { s.list = cfg }
}

// New builds a server listening on host:port once started.
func New(host string, port int, opts ...Option) *Server {
	s := &Server{
		host: host,
		port: port,
		cfg: config.ServerConfig{
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxDepth:        8,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.list.MaxDepth == 0 {
		s.list.MaxDepth = s.cfg.MaxDepth
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.Write(w, req, http.StatusNotFound, apperrors.ErrorBody{
			Code:    apperrors.CodeNotFound,
			Message: fmt.Sprintf("no route for %s %s", req.Method, req.URL.Path),
		})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apperrors.Write(w, req, http.StatusMethodNotAllowed, apperrors.ErrorBody{
			Code:    apperrors.CodeMethodNotAllowed,
			Message: fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path),
		})
	})

	r.Get("/health", handlers.HealthHandler)
	r.Get("/health/live", handlers.LivenessHandler)
	r.Get("/health/ready", handlers.ReadinessHandler)
	r.Get("/health/startup", handlers.StartupHandler)
	r.Get("/version", handlers.VersionHandler)

	r.Route("/v1", func(r chi.Router) {
		r.Method(http.MethodGet, "/list", handlers.NewListHandler(s.list))
	})
	return r
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.router }

// Port returns the configured port.
func (s *Server) Port() int { return s.port }

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	observability.CLILogger.Info("Server listening", zap.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	observability.CLILogger.Info("Shutting down server", zap.Duration("timeout", s.cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
