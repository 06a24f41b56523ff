package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimitByIP returns an HTTP middleware that limits requests per client IP
// to the specified number per minute. Used to slow brute-force attempts on
// the login endpoint.
func RateLimitByIP(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithLimitHandler(limitExceeded),
	)
}

// RateLimitPerUser returns an HTTP middleware that limits requests per
// authenticated user to the specified number per minute, falling back to the
// client IP when no principal is present. It must run after Authenticate.
// The rejection is a distinct 429, never conflated with an authentication
// failure.
func RateLimitPerUser(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if p := GetPrincipal(r.Context()); p != nil {
				return "user:" + strconv.FormatInt(p.UserID, 10), nil
			}
			return httprate.KeyByIP(r)
		}),
		httprate.WithLimitHandler(limitExceeded),
	)
}

func limitExceeded(w http.ResponseWriter, r *http.Request) {
	writeAuthError(w, http.StatusTooManyRequests,
		"Rate limit exceeded. Try again later.")
}
