package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/vaultbox/internal/auth"
	"github.com/prn-tf/vaultbox/internal/domain"
	"github.com/prn-tf/vaultbox/internal/service"
)

// AdminHandler handles user administration.
type AdminHandler struct {
	users  *service.UserService
	logger zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(users *service.UserService, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		users:  users,
		logger: logger.With().Str("handler", "admin").Logger(),
	}
}

// RegisterRoutes registers the admin routes.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Get("/admin", h.handleListUsers)
	r.Post("/admin/create_user", h.handleCreateUser)
	r.Post("/admin/delete_user/{id}", h.handleDeleteUser)
}

type userResponse struct {
	UserID   string      `json:"user_id"`
	Username string      `json:"username"`
	Role     domain.Role `json:"role"`
}

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (h *AdminHandler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context(), auth.IdentityFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	resp := make([]userResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, userResponse{UserID: u.ID, Username: u.Username, Role: u.Role})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AdminHandler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	requester := auth.IdentityFromContext(r.Context())

	// Guard before reading the body so anonymous callers get 401, not 400.
	if err := auth.RequireRole(requester, domain.RoleAdmin); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	output, err := h.users.CreateUser(r.Context(), requester, service.CreateUserInput{
		Username: req.Username,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Status: "created", UserID: output.UserID})
}

func (h *AdminHandler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	_, err := h.users.DeleteUser(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Status: "User deleted"})
}
