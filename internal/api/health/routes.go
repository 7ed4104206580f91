// Package health binds the liveness and readiness endpoints.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ahrav/logsift/internal/api/web"
	"github.com/ahrav/logsift/pkg/common/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to a Pinger.
type PingFunc func(ctx context.Context) error

// Ping implements Pinger.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Build string
	Log   *logger.Logger
	// Checks are consulted by the readiness endpoint, keyed by dependency name.
	Checks map[string]Pinger
}

// Routes binds all the health check endpoints.
func Routes(r chi.Router, cfg Config) {
	r.Get("/health", check(cfg))
	r.Get("/readiness", readiness(cfg))
}

// healthResponse represents the response for health check.
type healthResponse struct {
	Status string `json:"status"`
	Build  string `json:"build"`
}

// readyResponse represents the response for readiness check.
type readyResponse struct {
	Status string            `json:"status"`
	Failed map[string]string `json:"failed,omitempty"`
}

func check(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		web.Respond(r.Context(), cfg.Log, w, http.StatusOK, healthResponse{Status: "ok", Build: cfg.Build})
	}
}

func readiness(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		failed := make(map[string]string)
		for name, p := range cfg.Checks {
			if err := p.Ping(ctx); err != nil {
				cfg.Log.Warn(ctx, "readiness check failed", "dependency", name, "error", err)
				failed[name] = err.Error()
			}
		}

		if len(failed) > 0 {
			web.Respond(ctx, cfg.Log, w, http.StatusServiceUnavailable, readyResponse{Status: "not ready", Failed: failed})
			return
		}
		web.Respond(ctx, cfg.Log, w, http.StatusOK, readyResponse{Status: "ready"})
	}
}
