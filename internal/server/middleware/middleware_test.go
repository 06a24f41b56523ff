package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/plodoki/pakd/internal/model"
	"github.com/plodoki/pakd/internal/service"
	"github.com/plodoki/pakd/internal/store"
)

// ---------------------------------------------------------------------------
// RequestID middleware tests
// ---------------------------------------------------------------------------

func TestRequestIDGeneratesUUID(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := GetRequestID(r.Context())
		if id == "" {
			t.Error("expected non-empty request ID in context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	respID := rr.Header().Get("X-Request-ID")
	if respID == "" {
		t.Error("expected X-Request-ID in response header")
	}
	// UUID v7 format check: 36 chars with dashes
	if len(respID) != 36 {
		t.Errorf("expected UUID-length request ID, got %q (len=%d)", respID, len(respID))
	}
}

func TestRequestIDPreservesClientID(t *testing.T) {
	clientID := "my-custom-trace-id-123"

	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := GetRequestID(r.Context())
		if id != clientID {
			t.Errorf("expected context ID %q, got %q", clientID, id)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", clientID)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	respID := rr.Header().Get("X-Request-ID")
	if respID != clientID {
		t.Errorf("expected response X-Request-ID %q, got %q", clientID, respID)
	}
}

// ---------------------------------------------------------------------------
// Authenticate middleware tests
// ---------------------------------------------------------------------------

func newAuthFixture(t *testing.T) (*service.Issuer, func(http.Handler) http.Handler, *model.User) {
	t.Helper()

	st, err := store.NewStore(store.Options{Driver: "sqlite"})
	if err != nil {
		t.Fatalf("store.NewStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	user := &model.User{
		Email:        "mw@example.com",
		PasswordHash: "hash-mw", // opaque here, no login in these tests
		IsActive:     true,
	}
	if err := st.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	keys := service.NewKeyManager("")
	issuer := service.NewIssuer(keys, st)
	verifier := service.NewVerifier(keys, st)
	return issuer, Authenticate(verifier), user
}

func okHandler(t *testing.T, wantType string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := GetPrincipal(r.Context())
		if p == nil {
			t.Error("expected principal in context")
		} else if p.Type != wantType {
			t.Errorf("principal type = %q, want %q", p.Type, wantType)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticateMissingHeader(t *testing.T) {
	_, mw, _ := newAuthFixture(t)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("inner handler should not run without credentials")
	}))

	for _, header := range []string{"", "Bearer ", "Basic dXNlcjpwYXNz", "token-without-scheme"} {
		req := httptest.NewRequest("GET", "/protected", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, rr.Code)
		}
		var body map[string]map[string]interface{}
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Errorf("header %q: invalid JSON error body: %v", header, err)
		}
	}
}

func TestAuthenticateInvalidToken(t *testing.T) {
	_, mw, _ := newAuthFixture(t)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("inner handler should not run with a bad token")
	}))

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
}

func TestAuthenticateSessionToken(t *testing.T) {
	issuer, mw, user := newAuthFixture(t)

	token, err := issuer.IssueSessionToken(context.Background(), user.ID, time.Hour)
	if err != nil {
		t.Fatalf("IssueSessionToken: %v", err)
	}

	handler := mw(okHandler(t, "session"))
	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200; body = %s", rr.Code, rr.Body.String())
	}
}

func TestAuthenticateAPIKeyToken(t *testing.T) {
	issuer, mw, user := newAuthFixture(t)

	_, token, err := issuer.Create(context.Background(), user.ID, "mw test", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	handler := mw(okHandler(t, "api_key"))
	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200; body = %s", rr.Code, rr.Body.String())
	}
}

func TestGetPrincipalEmptyContext(t *testing.T) {
	if p := GetPrincipal(context.Background()); p != nil {
		t.Errorf("expected nil principal from bare context, got %+v", p)
	}
}

// ---------------------------------------------------------------------------
// Rate limit middleware tests
// ---------------------------------------------------------------------------

func TestRateLimitByIP(t *testing.T) {
	handler := RateLimitByIP(2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/login", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rr.Code)
		}
	}

	req := httptest.NewRequest("POST", "/login", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rr.Code)
	}
	var body map[string]map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON 429 body: %v", err)
	}
	if body["error"] == nil {
		t.Error("expected error envelope in 429 body")
	}
}

func TestRateLimitPerUserIsolatesUsers(t *testing.T) {
	handler := RateLimitPerUser(1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	doAs := func(userID int64) int {
		req := httptest.NewRequest("POST", "/api-keys", nil)
		ctx := context.WithValue(req.Context(), AuthPrincipalKey, &Principal{
			Type:   "session",
			UserID: userID,
		})
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req.WithContext(ctx))
		return rr.Code
	}

	if code := doAs(1); code != http.StatusOK {
		t.Fatalf("user 1 first request: status = %d, want 200", code)
	}
	if code := doAs(1); code != http.StatusTooManyRequests {
		t.Errorf("user 1 second request: status = %d, want 429", code)
	}
	// A different user has an independent budget.
	if code := doAs(2); code != http.StatusOK {
		t.Errorf("user 2 first request: status = %d, want 200", code)
	}
}
