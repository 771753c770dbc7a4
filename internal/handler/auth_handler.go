package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/vaultbox/internal/domain"
	"github.com/prn-tf/vaultbox/internal/service"
)

// CookieConfig describes the session cookie.
type CookieConfig struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

// AuthHandler handles login and logout.
type AuthHandler struct {
	sessions *service.SessionService
	cookie   CookieConfig
	logger   zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(sessions *service.SessionService, cookie CookieConfig, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
		cookie:   cookie,
		logger:   logger.With().Str("handler", "auth").Logger(),
	}
}

// RegisterRoutes registers login and logout routes.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Get("/logout", h.handleLogout)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Username string      `json:"username"`
	Role     domain.Role `json:"role"`
	UserID   string      `json:"user_id"`
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	output, err := h.sessions.Login(r.Context(), service.LoginInput{
		Username:  req.Username,
		Password:  req.Password,
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    output.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.cookie.TTL / time.Second),
	})

	writeJSON(w, http.StatusOK, loginResponse{
		Username: output.Identity.Username,
		Role:     output.Identity.Role,
		UserID:   output.Identity.UserID,
	})
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(h.cookie.Name); err == nil {
		if err := h.sessions.Logout(r.Context(), cookie.Value); err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})

	writeJSON(w, http.StatusOK, statusResponse{Status: "logged out"})
}
