package handler

import (
	"log/slog"
	"net/http"

	"github.com/plodoki/pakd/internal/service"
)

// JWKSHandler publishes the current verification key set. The endpoint is
// unauthenticated and has no side effects.
type JWKSHandler struct {
	keys   *service.KeyManager
	logger *slog.Logger
}

// NewJWKSHandler creates a new JWKSHandler.
func NewJWKSHandler(keys *service.KeyManager, logger *slog.Logger) *JWKSHandler {
	return &JWKSHandler{keys: keys, logger: logger}
}

// ServeKeySet returns the JWKS for the current signing key.
// GET /.well-known/jwks.json
func (h *JWKSHandler) ServeKeySet(w http.ResponseWriter, r *http.Request) {
	jwks, err := h.keys.JWKS()
	if err != nil {
		h.logger.Error("jwks export failed", "error", err)
		code, msg := statusForError(err)
		writeError(w, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, jwks)
}
