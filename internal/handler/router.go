// Package handler provides the HTTP surface of Vaultbox: JSON endpoints for
// login, user administration and the per-user file dashboard.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/prn-tf/vaultbox/internal/auth"
	"github.com/prn-tf/vaultbox/internal/metrics"
)

// Mode selects which endpoints a process serves.
type Mode string

const (
	// ModeAuth serves login, logout and user administration.
	ModeAuth Mode = "auth"

	// ModeFiles serves the file dashboard.
	ModeFiles Mode = "files"

	// ModeAll serves everything from one process.
	ModeAll Mode = "all"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, bool) {
	switch m := Mode(s); m {
	case ModeAuth, ModeFiles, ModeAll:
		return m, true
	default:
		return "", false
	}
}

// ServesAuth reports whether the mode includes the auth endpoints.
func (m Mode) ServesAuth() bool { return m == ModeAuth || m == ModeAll }

// ServesFiles reports whether the mode includes the file endpoints.
func (m Mode) ServesFiles() bool { return m == ModeFiles || m == ModeAll }

// HealthChecker reports backing store health.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Router assembles the HTTP handler.
type Router struct {
	config RouterConfig
	logger zerolog.Logger
}

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	Mode Mode

	// Resolver turns the session cookie into an identity.
	Resolver   auth.IdentityResolver
	CookieName string

	AuthHandler  *AuthHandler
	AdminHandler *AdminHandler
	FileHandler  *FileHandler

	Health  HealthChecker
	Metrics *metrics.Metrics

	AllowedOrigins []string
	Logger         zerolog.Logger
}

// NewRouter creates a new Router.
func NewRouter(config RouterConfig) *Router {
	if config.Mode == "" {
		config.Mode = ModeAll
	}
	return &Router{
		config: config,
		logger: config.Logger.With().Str("component", "router").Logger(),
	}
}

// Handler returns the main HTTP handler.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(rt.logger))
	r.Use(middleware.Recoverer)
	if rt.config.Metrics != nil {
		r.Use(metricsMiddleware(rt.config.Metrics))
	}
	if len(rt.config.AllowedOrigins) > 0 {
		r.Use(corsMiddleware(rt.config.AllowedOrigins))
	}

	// Health check (no auth)
	r.Get("/health", rt.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(rt.config.Resolver, rt.config.CookieName, rt.logger))

		if rt.config.Mode.ServesAuth() {
			if rt.config.AuthHandler != nil {
				rt.config.AuthHandler.RegisterRoutes(r)
			}
			if rt.config.AdminHandler != nil {
				rt.config.AdminHandler.RegisterRoutes(r)
			}
		}
		if rt.config.Mode.ServesFiles() && rt.config.FileHandler != nil {
			rt.config.FileHandler.RegisterRoutes(r)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

// handleHealth handles health check requests.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	if rt.config.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := rt.config.Health.Health(ctx); err != nil {
			rt.logger.Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, statusResponse{Status: "unhealthy"})
			return
		}
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "healthy"})
}
