package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/plodoki/pakd/internal/model"
	"github.com/plodoki/pakd/internal/server/middleware"
	"github.com/plodoki/pakd/internal/service"
	"github.com/plodoki/pakd/internal/store"
)

// APIKeyHandler manages personal API keys: issuance, listing, and revocation.
// All operations are scoped to the authenticated caller.
type APIKeyHandler struct {
	store  *store.Store
	issuer *service.Issuer
	logger *slog.Logger
}

// NewAPIKeyHandler creates a new APIKeyHandler.
func NewAPIKeyHandler(st *store.Store, issuer *service.Issuer, logger *slog.Logger) *APIKeyHandler {
	return &APIKeyHandler{store: st, issuer: issuer, logger: logger}
}

// createAPIKeyRequest is the expected payload for Create.
type createAPIKeyRequest struct {
	Label         string `json:"label"`
	ExpiresInDays *int   `json:"expires_in_days,omitempty"`
}

// apiKeyInfo is the metadata shape exposed for a key. The token hash never
// leaves the store.
type apiKeyInfo struct {
	ID         int64      `json:"id"`
	Label      string     `json:"label"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Revoked    bool       `json:"revoked"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// createAPIKeyResponse includes the plaintext token (shown once only).
type createAPIKeyResponse struct {
	APIKey apiKeyInfo `json:"api_key"`
	Token  string     `json:"token"` // Plaintext, shown ONCE.
}

func keyToInfo(k *model.APIKey) apiKeyInfo {
	return apiKeyInfo{
		ID:         k.ID,
		Label:      k.Label,
		CreatedAt:  k.CreatedAt,
		ExpiresAt:  k.ExpiresAt,
		Revoked:    k.Revoked(),
		LastUsedAt: k.LastUsedAt,
	}
}

// Create issues a new personal API key for the caller and returns the signed
// token exactly once. Losing the token means issuing a new key.
// POST /api/v1/api-keys
func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req createAPIKeyRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	key, token, err := h.issuer.Create(r.Context(), principal.UserID, req.Label, req.ExpiresInDays)
	if err != nil {
		h.logger.Error("api key creation failed", "user_id", principal.UserID, "error", err)
		code, msg := statusForError(err)
		writeError(w, code, msg)
		return
	}

	h.logger.Info("api key created", "user_id", principal.UserID, "key_id", key.ID, "label", key.Label)

	writeJSON(w, http.StatusCreated, createAPIKeyResponse{
		APIKey: keyToInfo(key),
		Token:  token,
	})
}

// List returns the caller's own keys, active and revoked, newest first.
// GET /api/v1/api-keys
func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	keys, err := h.store.ListAPIKeysForUser(r.Context(), principal.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list API keys")
		return
	}

	resources := make([]map[string]interface{}, 0, len(keys))
	for i := range keys {
		info := keyToInfo(&keys[i])
		m := map[string]interface{}{
			"id":         info.ID,
			"label":      info.Label,
			"created_at": info.CreatedAt,
			"revoked":    info.Revoked,
		}
		if info.ExpiresAt != nil {
			m["expires_at"] = info.ExpiresAt
		}
		if info.LastUsedAt != nil {
			m["last_used_at"] = info.LastUsedAt
		}
		resources = append(resources, m)
	}

	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: resources,
		Meta: &model.ResponseMeta{
			Count: len(resources),
		},
	})
}

// Revoke permanently revokes one of the caller's keys. Keys that do not
// exist and keys owned by other users produce the same 404, so the endpoint
// leaks nothing about other users' keys.
// DELETE /api/v1/api-keys/{id}
func (h *APIKeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid key ID: "+idStr)
		return
	}

	if err := h.store.RevokeAPIKey(r.Context(), id, principal.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "API key not found: "+idStr)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to revoke API key")
		return
	}

	h.logger.Info("api key revoked", "user_id", principal.UserID, "key_id", id)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "API key revoked",
	})
}
