package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/plodoki/pakd/internal/service"
	"github.com/plodoki/pakd/internal/store"
)

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
	}{
		// Configuration errors are the server's fault.
		{service.ErrKeyMaterialMissing, http.StatusInternalServerError},
		{service.ErrKeyMaterialInvalid, http.StatusInternalServerError},

		// Every verification failure collapses to one 401.
		{service.ErrMalformedToken, http.StatusUnauthorized},
		{service.ErrUnknownKey, http.StatusUnauthorized},
		{service.ErrInvalidSignature, http.StatusUnauthorized},
		{service.ErrTokenExpired, http.StatusUnauthorized},
		{service.ErrKeyExpired, http.StatusUnauthorized},
		{service.ErrKeyRevoked, http.StatusUnauthorized},
		{service.ErrInvalidCredentials, http.StatusUnauthorized},

		// Issuance input validation.
		{service.ErrInvalidLabel, http.StatusBadRequest},
		{service.ErrInvalidExpiry, http.StatusBadRequest},

		// Ownership and existence failures.
		{store.ErrNotFound, http.StatusNotFound},

		// Everything else.
		{errors.New("database on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		status, msg := statusForError(tt.err)
		if status != tt.wantStatus {
			t.Errorf("statusForError(%v): status = %d, want %d", tt.err, status, tt.wantStatus)
		}
		if msg == "" {
			t.Errorf("statusForError(%v): empty message", tt.err)
		}
	}
}

func TestStatusForErrorWrapped(t *testing.T) {
	// Mapping must follow errors.Is through wrapping.
	wrapped := fmt.Errorf("verify token: %w", service.ErrKeyRevoked)
	status, _ := statusForError(wrapped)
	if status != http.StatusUnauthorized {
		t.Errorf("wrapped ErrKeyRevoked: status = %d, want 401", status)
	}
}

func TestStatusForErrorUniform401Message(t *testing.T) {
	// All verification failures must be externally indistinguishable.
	verificationErrs := []error{
		service.ErrMalformedToken,
		service.ErrUnknownKey,
		service.ErrInvalidSignature,
		service.ErrTokenExpired,
		service.ErrKeyExpired,
		service.ErrKeyRevoked,
		service.ErrInvalidCredentials,
	}

	_, first := statusForError(verificationErrs[0])
	for _, err := range verificationErrs[1:] {
		_, msg := statusForError(err)
		if msg != first {
			t.Errorf("statusForError(%v): message %q differs from %q", err, msg, first)
		}
	}
}
