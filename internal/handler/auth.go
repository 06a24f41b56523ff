package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/plodoki/pakd/internal/service"
	"github.com/plodoki/pakd/internal/store"
)

// AuthHandler serves the session login flow backing the authenticated API
// surface.
type AuthHandler struct {
	store      *store.Store
	issuer     *service.Issuer
	sessionTTL time.Duration
	logger     *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(st *store.Store, issuer *service.Issuer, sessionTTL time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{store: st, issuer: issuer, sessionTTL: sessionTTL, logger: logger}
}

// loginRequest is the expected payload for the Login endpoint.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse is the response payload for a successful login.
type loginResponse struct {
	Token     string `json:"session_token"`
	TokenType string `json:"token_type"`
	ExpiresIn int    `json:"expires_in"`
	Email     string `json:"email"`
	Name      string `json:"name"`
}

// Login authenticates a user and returns a short-lived session token.
// POST /api/v1/auth/session
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "Authentication error")
		return
	}

	// Disabled accounts get the same response as bad credentials so callers
	// cannot probe which emails exist.
	if !user.IsActive {
		h.logger.Info("login rejected for disabled account", "user_id", user.ID)
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if !service.VerifyPassword(user.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.issuer.IssueSessionToken(r.Context(), user.ID, h.sessionTTL)
	if err != nil {
		h.logger.Error("session token issuance failed", "user_id", user.ID, "error", err)
		code, msg := statusForError(err)
		writeError(w, code, msg)
		return
	}

	// Update last login timestamp.
	_ = h.store.UpdateUserLastLogin(r.Context(), user.ID)

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		TokenType: "bearer",
		ExpiresIn: int(h.sessionTTL.Seconds()),
		Email:     user.Email,
		Name:      user.Name,
	})
}

// Logout invalidates the current session. Session tokens are stateless, so
// this is a no-op server side; clients should discard their token.
// DELETE /api/v1/auth/session
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Session invalidated",
	})
}
