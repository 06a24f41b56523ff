package handler

import (
	"errors"
	"net/http"

	"github.com/plodoki/pakd/internal/service"
	"github.com/plodoki/pakd/internal/store"
)

// statusForError is the exhaustive mapping from the service's error kinds to
// the externally visible response. It is a pure function over errors.Is, not
// runtime type inspection, so every error kind's behavior is enumerable and
// testable:
//
//   - configuration errors (key material) → 500, generic message, no key bytes
//   - every verification failure → 401 with one uniform message; logs keep
//     the distinct cause
//   - invalid issuance input → 400 with the validation message
//   - store not-found (including foreign ownership) → uniform 404
//   - anything else → 500
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrKeyMaterialMissing),
		errors.Is(err, service.ErrKeyMaterialInvalid):
		return http.StatusInternalServerError, "Server configuration error"

	case errors.Is(err, service.ErrMalformedToken),
		errors.Is(err, service.ErrUnknownKey),
		errors.Is(err, service.ErrInvalidSignature),
		errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrKeyExpired),
		errors.Is(err, service.ErrKeyRevoked),
		errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid or expired credentials"

	case errors.Is(err, service.ErrInvalidLabel),
		errors.Is(err, service.ErrInvalidExpiry):
		return http.StatusBadRequest, err.Error()

	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "Not found"

	default:
		return http.StatusInternalServerError, "Internal error"
	}
}
