package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/plodoki/pakd/internal/model"
	"github.com/plodoki/pakd/internal/store"
)

func newServiceTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore(store.Options{Driver: "sqlite"}) // in-memory
	if err != nil {
		t.Fatalf("store.NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestStack(t *testing.T) (*Issuer, *Verifier, *store.Store) {
	t.Helper()
	st := newServiceTestStore(t)
	keys := NewKeyManager("")
	return NewIssuer(keys, st), NewVerifier(keys, st), st
}

func seedTestUser(t *testing.T, st *store.Store) *model.User {
	t.Helper()
	hash, err := HashPassword("password")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	user := &model.User{
		Email:        "dev@example.com",
		PasswordHash: hash,
		Name:         "Dev",
		IsActive:     true,
	}
	if err := st.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return user
}

func intPtr(n int) *int { return &n }

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	issuer, verifier, st := newTestStack(t)
	ctx := context.Background()
	user := seedTestUser(t, st)

	key, token, err := issuer.Create(ctx, user.ID, "laptop", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if key.ID == 0 {
		t.Fatal("expected non-zero key ID")
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}
	if key.ExpiresAt != nil {
		t.Error("expected no expiry when expiresInDays is nil")
	}
	// Only the hash is persisted, never the plaintext.
	if key.TokenHash == token {
		t.Error("stored hash must not equal the plaintext token")
	}
	if key.TokenHash != store.HashToken(token) {
		t.Error("stored hash must be the hash of the issued token")
	}

	got, err := verifier.Verify(ctx, token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got.ID != key.ID {
		t.Errorf("verified key ID = %d, want %d", got.ID, key.ID)
	}
	if got.UserID != user.ID {
		t.Errorf("verified key UserID = %d, want %d", got.UserID, user.ID)
	}
}

func TestIssueTrimsLabel(t *testing.T) {
	issuer, _, st := newTestStack(t)
	user := seedTestUser(t, st)

	key, _, err := issuer.Create(context.Background(), user.ID, "  CI pipeline  ", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if key.Label != "CI pipeline" {
		t.Errorf("label = %q, want %q", key.Label, "CI pipeline")
	}
}

func TestIssueLabelValidation(t *testing.T) {
	issuer, _, st := newTestStack(t)
	user := seedTestUser(t, st)
	ctx := context.Background()

	for _, label := range []string{"", "   ", strings.Repeat("x", MaxLabelLength+1)} {
		if _, _, err := issuer.Create(ctx, user.ID, label, nil); !errors.Is(err, ErrInvalidLabel) {
			t.Errorf("label %q: expected ErrInvalidLabel, got %v", label, err)
		}
	}

	// Exactly at the limit is fine.
	if _, _, err := issuer.Create(ctx, user.ID, strings.Repeat("x", MaxLabelLength), nil); err != nil {
		t.Errorf("label at limit: %v", err)
	}
}

func TestIssueExpiryValidation(t *testing.T) {
	issuer, _, st := newTestStack(t)
	user := seedTestUser(t, st)
	ctx := context.Background()

	for _, days := range []int{0, -1, -30} {
		if _, _, err := issuer.Create(ctx, user.ID, "key", intPtr(days)); !errors.Is(err, ErrInvalidExpiry) {
			t.Errorf("expires_in_days=%d: expected ErrInvalidExpiry, got %v", days, err)
		}
	}

	key, _, err := issuer.Create(ctx, user.ID, "expiring", intPtr(30))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if key.ExpiresAt == nil {
		t.Fatal("expected ExpiresAt to be set")
	}
	want := time.Now().UTC().AddDate(0, 0, 30)
	if diff := key.ExpiresAt.Sub(want); diff < -time.Minute || diff > time.Minute {
		t.Errorf("ExpiresAt = %v, want ~%v", key.ExpiresAt, want)
	}
}

func TestIssueDistinctTokens(t *testing.T) {
	issuer, _, st := newTestStack(t)
	user := seedTestUser(t, st)
	ctx := context.Background()

	// Identical inputs in rapid succession must still produce distinct
	// tokens and records.
	k1, t1, err := issuer.Create(ctx, user.ID, "same", nil)
	if err != nil {
		t.Fatalf("first Create: %v", err)
	}
	k2, t2, err := issuer.Create(ctx, user.ID, "same", nil)
	if err != nil {
		t.Fatalf("second Create: %v", err)
	}

	if t1 == t2 {
		t.Error("expected distinct tokens for identical inputs")
	}
	if k1.ID == k2.ID {
		t.Error("expected distinct records for identical inputs")
	}
}

func TestIssueSessionToken(t *testing.T) {
	issuer, verifier, st := newTestStack(t)
	user := seedTestUser(t, st)
	ctx := context.Background()

	token, err := issuer.IssueSessionToken(ctx, user.ID, time.Hour)
	if err != nil {
		t.Fatalf("IssueSessionToken: %v", err)
	}

	got, err := verifier.VerifySession(ctx, token)
	if err != nil {
		t.Fatalf("VerifySession: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("session user ID = %d, want %d", got.ID, user.ID)
	}

	// Session tokens never have a backing key record.
	if _, err := st.GetAPIKeyByHash(ctx, store.HashToken(token)); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected no key record for session token, got %v", err)
	}
}
