// Package api serves the HTTP surface of logsift.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/logsift/internal/api/analysis"
	"github.com/ahrav/logsift/internal/api/health"
	"github.com/ahrav/logsift/internal/api/mid"
	"github.com/ahrav/logsift/pkg/common/logger"
	"github.com/ahrav/logsift/pkg/common/otel"
)

// Config configures the HTTP listener.
type Config struct {
	Addr            string
	Build           string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server hosts the API routes.
type Server struct {
	cfg    Config
	router *chi.Mux

	logger *logger.Logger
	tracer trace.Tracer
}

// NewServer builds the router with the analysis and health routes bound.
func NewServer(
	cfg Config,
	svc *analysis.Service,
	checks map[string]health.Pinger,
	log *logger.Logger,
	tracer trace.Tracer,
) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(otel.Middleware(tracer))
	r.Use(mid.Logger(log))
	r.Use(middleware.Recoverer)

	s := &Server{
		cfg:    cfg,
		router: r,
		logger: log.With("component", "api_server"),
		tracer: tracer,
	}

	r.Route("/v1", func(r chi.Router) {
		health.Routes(r, health.Config{Build: cfg.Build, Log: log, Checks: checks})
		analysis.Routes(r, analysis.Config{Log: log, Service: svc})
	})

	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		ErrorLog:     logger.NewStdLogger(s.logger, logger.LevelError),
	}

	shutdownTimeout := s.cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "starting server", "addr", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error(shutdownCtx, "failed to shutdown server", "error", err)
		return err
	}
	return nil
}
