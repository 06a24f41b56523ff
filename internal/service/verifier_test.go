package service

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/plodoki/pakd/internal/model"
	"github.com/plodoki/pakd/internal/store"
)

// signTestToken signs an arbitrary claim set with the manager's current key,
// bypassing the Issuer so tests can produce tokens the Issuer refuses to.
func signTestToken(t *testing.T, keys *KeyManager, claims pakClaims) string {
	t.Helper()
	priv, kid, err := keys.PrivateKey()
	if err != nil {
		t.Fatalf("PrivateKey: %v", err)
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	signed, err := tok.SignedString(priv)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return signed
}

func TestVerifyMalformedToken(t *testing.T) {
	_, verifier, _ := newTestStack(t)
	ctx := context.Background()

	for _, raw := range []string{"", "garbage", "a.b.c", "header.payload"} {
		if _, err := verifier.Verify(ctx, raw); !errors.Is(err, ErrMalformedToken) {
			t.Errorf("Verify(%q): expected ErrMalformedToken, got %v", raw, err)
		}
	}
}

func TestVerifyUnknownKid(t *testing.T) {
	issuer, _, st := newTestStack(t)
	user := seedTestUser(t, st)
	ctx := context.Background()

	_, token, err := issuer.Create(ctx, user.ID, "orphan", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// A verifier holding a different key pair cannot resolve the kid. This
	// is what happens after a restart discards an ephemeral signing key.
	other := NewVerifier(NewKeyManager(""), st)
	if _, err := other.Verify(ctx, token); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("expected ErrUnknownKey, got %v", err)
	}
}

func TestVerifyTamperedSignature(t *testing.T) {
	issuer, verifier, st := newTestStack(t)
	user := seedTestUser(t, st)
	ctx := context.Background()

	_, token, err := issuer.Create(ctx, user.ID, "tamper", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Flip the last character of the signature segment.
	last := token[len(token)-1]
	flip := byte('A')
	if last == 'A' {
		flip = 'B'
	}
	tampered := token[:len(token)-1] + string(flip)

	if _, err := verifier.Verify(ctx, tampered); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyExpiredJWT(t *testing.T) {
	_, verifier, _ := newTestStack(t)
	ctx := context.Background()

	// Expired beyond the clock leeway; fails before any store lookup.
	now := time.Now().UTC()
	token := signTestToken(t, verifier.keys, pakClaims{
		TokenType: tokenTypeAPIKey,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   "1",
			IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
		},
	})

	if _, err := verifier.Verify(ctx, token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyNoBackingRecord(t *testing.T) {
	_, verifier, _ := newTestStack(t)
	ctx := context.Background()

	// Validly signed api_key token that was never persisted. The record is
	// the trust boundary, so this must not authenticate.
	token := signTestToken(t, verifier.keys, pakClaims{
		TokenType: tokenTypeAPIKey,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			Subject:  "1",
			IssuedAt: jwt.NewNumericDate(time.Now().UTC()),
		},
	})

	if _, err := verifier.Verify(ctx, token); !errors.Is(err, ErrMalformedToken) {
		t.Errorf("expected ErrMalformedToken, got %v", err)
	}
}

func TestVerifyRevokedKey(t *testing.T) {
	issuer, verifier, st := newTestStack(t)
	user := seedTestUser(t, st)
	ctx := context.Background()

	key, token, err := issuer.Create(ctx, user.ID, "doomed", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := st.RevokeAPIKey(ctx, key.ID, user.ID); err != nil {
		t.Fatalf("RevokeAPIKey: %v", err)
	}

	if _, err := verifier.Verify(ctx, token); !errors.Is(err, ErrKeyRevoked) {
		t.Errorf("expected ErrKeyRevoked, got %v", err)
	}
}

func TestVerifyExpiredRecord(t *testing.T) {
	_, verifier, st := newTestStack(t)
	user := seedTestUser(t, st)
	ctx := context.Background()

	// Token without an exp claim, backed by a record whose expiry has
	// passed: record expiry is enforced independently of the JWT claims.
	token := signTestToken(t, verifier.keys, pakClaims{
		TokenType: tokenTypeAPIKey,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			Subject:  strconv.FormatInt(user.ID, 10),
			IssuedAt: jwt.NewNumericDate(time.Now().UTC().Add(-time.Hour)),
		},
	})
	past := time.Now().UTC().Add(-time.Minute)
	key := &model.APIKey{
		UserID:    user.ID,
		TokenHash: store.HashToken(token),
		Label:     "stale",
		ExpiresAt: &past,
	}
	if err := st.CreateAPIKey(ctx, key); err != nil {
		t.Fatalf("CreateAPIKey: %v", err)
	}

	if _, err := verifier.Verify(ctx, token); !errors.Is(err, ErrKeyExpired) {
		t.Errorf("expected ErrKeyExpired, got %v", err)
	}
}

func TestVerifyRevocationBeatsExpiry(t *testing.T) {
	_, verifier, st := newTestStack(t)
	user := seedTestUser(t, st)
	ctx := context.Background()

	token := signTestToken(t, verifier.keys, pakClaims{
		TokenType: tokenTypeAPIKey,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			Subject:  strconv.FormatInt(user.ID, 10),
			IssuedAt: jwt.NewNumericDate(time.Now().UTC().Add(-time.Hour)),
		},
	})
	past := time.Now().UTC().Add(-time.Minute)
	key := &model.APIKey{
		UserID:    user.ID,
		TokenHash: store.HashToken(token),
		Label:     "dead twice over",
		ExpiresAt: &past,
	}
	if err := st.CreateAPIKey(ctx, key); err != nil {
		t.Fatalf("CreateAPIKey: %v", err)
	}
	if err := st.RevokeAPIKey(ctx, key.ID, user.ID); err != nil {
		t.Fatalf("RevokeAPIKey: %v", err)
	}

	// Both revoked and expired: revocation wins.
	if _, err := verifier.Verify(ctx, token); !errors.Is(err, ErrKeyRevoked) {
		t.Errorf("expected ErrKeyRevoked, got %v", err)
	}
}

func TestVerifyRejectsSessionToken(t *testing.T) {
	issuer, verifier, st := newTestStack(t)
	user := seedTestUser(t, st)
	ctx := context.Background()

	session, err := issuer.IssueSessionToken(ctx, user.ID, time.Hour)
	if err != nil {
		t.Fatalf("IssueSessionToken: %v", err)
	}
	if _, err := verifier.Verify(ctx, session); !errors.Is(err, ErrMalformedToken) {
		t.Errorf("Verify(session token): expected ErrMalformedToken, got %v", err)
	}

	// And the reverse: an API key token is not a session.
	_, pak, err := issuer.Create(ctx, user.ID, "not a session", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := verifier.VerifySession(ctx, pak); !errors.Is(err, ErrMalformedToken) {
		t.Errorf("VerifySession(api key): expected ErrMalformedToken, got %v", err)
	}
}

func TestVerifySessionInactiveUser(t *testing.T) {
	issuer, verifier, st := newTestStack(t)
	ctx := context.Background()

	hash, err := HashPassword("password")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	user := &model.User{
		Email:        "ghost@example.com",
		PasswordHash: hash,
		IsActive:     false,
	}
	if err := st.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	token, err := issuer.IssueSessionToken(ctx, user.ID, time.Hour)
	if err != nil {
		t.Fatalf("IssueSessionToken: %v", err)
	}

	if _, err := verifier.VerifySession(ctx, token); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticateTokenDispatch(t *testing.T) {
	issuer, verifier, st := newTestStack(t)
	user := seedTestUser(t, st)
	ctx := context.Background()

	session, err := issuer.IssueSessionToken(ctx, user.ID, time.Hour)
	if err != nil {
		t.Fatalf("IssueSessionToken: %v", err)
	}
	id, err := verifier.AuthenticateToken(ctx, session)
	if err != nil {
		t.Fatalf("AuthenticateToken(session): %v", err)
	}
	if id.Kind != "session" {
		t.Errorf("Kind = %q, want session", id.Kind)
	}
	if id.UserID != user.ID || id.User == nil || id.Key != nil {
		t.Errorf("unexpected session identity: %+v", id)
	}

	key, pak, err := issuer.Create(ctx, user.ID, "dispatch", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	id2, err := verifier.AuthenticateToken(ctx, pak)
	if err != nil {
		t.Fatalf("AuthenticateToken(api key): %v", err)
	}
	if id2.Kind != "api_key" {
		t.Errorf("Kind = %q, want api_key", id2.Kind)
	}
	if id2.UserID != user.ID || id2.Key == nil || id2.Key.ID != key.ID {
		t.Errorf("unexpected api key identity: %+v", id2)
	}

	// Unknown type claim is rejected.
	weird := signTestToken(t, verifier.keys, pakClaims{
		TokenType: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			Subject:  strconv.FormatInt(user.ID, 10),
			IssuedAt: jwt.NewNumericDate(time.Now().UTC()),
		},
	})
	if _, err := verifier.AuthenticateToken(ctx, weird); !errors.Is(err, ErrMalformedToken) {
		t.Errorf("expected ErrMalformedToken for unknown type, got %v", err)
	}
}
