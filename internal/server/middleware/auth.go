package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/plodoki/pakd/internal/service"
)

type contextKeyAuth string

// AuthPrincipalKey is the context key for the authenticated principal.
const AuthPrincipalKey contextKeyAuth = "auth_principal"

// Principal represents the authenticated identity making the request.
type Principal struct {
	Type   string // "session" or "api_key"
	UserID int64
	Email  string
	KeyID  int64 // backing key record ID when Type == "api_key"
}

// Authenticate returns an HTTP middleware that validates the request's
// Bearer token. Both short-lived session tokens and personal API keys are
// accepted; the verifier dispatches on the token's type claim. On success a
// Principal is attached to the request context; on failure a 401 JSON error
// is returned (500 when the signing key material itself is broken).
func Authenticate(verifier *service.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				writeAuthError(w, http.StatusUnauthorized,
					"Authentication required. Provide a Bearer token.")
				return
			}

			identity, err := verifier.AuthenticateToken(r.Context(), token)
			if err != nil {
				if errors.Is(err, service.ErrKeyMaterialMissing) || errors.Is(err, service.ErrKeyMaterialInvalid) {
					writeAuthError(w, http.StatusInternalServerError, "Server configuration error")
					return
				}
				writeAuthError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			principal := &Principal{
				Type:   identity.Kind,
				UserID: identity.UserID,
			}
			if identity.User != nil {
				principal.Email = identity.User.Email
			}
			if identity.Key != nil {
				principal.KeyID = identity.Key.ID
			}

			ctx := context.WithValue(r.Context(), AuthPrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPrincipal extracts the authenticated principal from the context.
// Returns nil if no principal is present (i.e., unauthenticated request).
func GetPrincipal(ctx context.Context) *Principal {
	if p, ok := ctx.Value(AuthPrincipalKey).(*Principal); ok {
		return p
	}
	return nil
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Manually construct JSON to avoid import cycle with handler package
	w.Write([]byte(`{"error":{"code":` + httpStatusString(status) + `,"message":"` + message + `"}}`))
}

func httpStatusString(code int) string {
	switch code {
	case 401:
		return "401"
	case 429:
		return "429"
	default:
		return "500"
	}
}
