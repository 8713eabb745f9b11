package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"mini-todo/middleware"
	"mini-todo/models"
)

type CredentialStore interface {
	Register(ctx context.Context, email, password string) (*models.User, error)
	Verify(ctx context.Context, email, password string) (*models.User, error)
	ChangePassword(ctx context.Context, user *models.User, current, next string) error
}

type TokenService interface {
	Issue(ctx context.Context, user *models.User) (string, error)
	Revoke(ctx context.Context, user *models.User, token string) error
}

type Users struct {
	creds  CredentialStore
	tokens TokenService
	log    *slog.Logger
}

func NewUsers(creds CredentialStore, tokens TokenService, logger *slog.Logger) *Users {
	return &Users{creds: creds, tokens: tokens, log: logger}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /users.
func (h *Users) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	user, err := h.creds.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	token, err := h.tokens.Issue(r.Context(), user)
	if err != nil {
		// the account exists now, the client has to log in to get a token
		h.log.ErrorContext(r.Context(), "user registered but token issue failed", "user_id", user.ID, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "account created but sign-in failed, please log in",
		})
		return
	}

	h.log.InfoContext(r.Context(), "user registered", "user_id", user.ID)
	w.Header().Set(middleware.AuthHeader, token)
	writeJSON(w, http.StatusOK, user)
}

// Login handles POST /users/login. Unknown email and wrong password get the
// same empty 401.
func (h *Users) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	user, err := h.creds.Verify(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if user == nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	token, err := h.tokens.Issue(r.Context(), user)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	w.Header().Set(middleware.AuthHeader, token)
	writeJSON(w, http.StatusOK, user)
}

// Me handles GET /users/me.
func (h *Users) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Logout handles DELETE /users/me/token by revoking the presented token only.
func (h *Users) Logout(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if err := h.tokens.Revoke(r.Context(), user, middleware.TokenFrom(r.Context())); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword handles PATCH /users/me/password.
func (h *Users) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	if err := h.creds.ChangePassword(r.Context(), user, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	h.log.InfoContext(r.Context(), "password changed", "user_id", user.ID)
	writeJSON(w, http.StatusOK, user)
}
