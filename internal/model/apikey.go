package model

import "time"

// APIKey represents a personal API key issued to a user. The signed token is
// never stored; only a SHA-256 hash is persisted, so a lost token cannot be
// recovered and must be reissued.
type APIKey struct {
	ID         int64      `json:"id" db:"id"`
	UserID     int64      `json:"-" db:"user_id"`
	TokenHash  string     `json:"-" db:"token_hash"` // SHA-256 hash, never expose
	Label      string     `json:"label" db:"label"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
}

// Revoked reports whether the key has been revoked. Revocation is permanent;
// a revoked key never becomes active again.
func (k *APIKey) Revoked() bool {
	return k.RevokedAt != nil
}

// Expired reports whether the key's record-level expiry has passed at the
// given instant. A key whose expiry equals now counts as expired.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && !k.ExpiresAt.After(now)
}
