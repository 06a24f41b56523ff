package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/plodoki/pakd/internal/model"
	"github.com/plodoki/pakd/internal/store"
)

// MaxLabelLength bounds the user-supplied key label.
const MaxLabelLength = 100

// Token type claim values. The claim keeps personal API keys and short-lived
// session tokens apart even though both are signed by the same key.
const (
	tokenTypeAPIKey  = "api_key"
	tokenTypeSession = "session"
)

// pakClaims is the claim set carried by every token pakd signs.
type pakClaims struct {
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// Issuer mints signed personal API key tokens and persists their records.
type Issuer struct {
	keys  *KeyManager
	store *store.Store
}

// NewIssuer creates an Issuer signing with keys and persisting to st.
func NewIssuer(keys *KeyManager, st *store.Store) *Issuer {
	return &Issuer{keys: keys, store: st}
}

// Create mints a new personal API key for userID. The returned plaintext
// token is observable here and nowhere else: only its hash is stored, and no
// retrieval path exists afterward. Each call creates a distinct record, even
// for identical inputs.
func (i *Issuer) Create(ctx context.Context, userID int64, label string, expiresInDays *int) (*model.APIKey, string, error) {
	label = strings.TrimSpace(label)
	if label == "" || len(label) > MaxLabelLength {
		return nil, "", ErrInvalidLabel
	}
	if expiresInDays != nil && *expiresInDays <= 0 {
		return nil, "", ErrInvalidExpiry
	}

	priv, kid, err := i.keys.PrivateKey()
	if err != nil {
		return nil, "", err
	}

	now := time.Now().UTC()
	claims := pakClaims{
		TokenType: tokenTypeAPIKey,
		RegisteredClaims: jwt.RegisteredClaims{
			// The jti keeps otherwise identical tokens distinct: RS256
			// signatures are deterministic and iat has second granularity,
			// so without it two issuances in the same second would collide
			// on the stored hash.
			ID:       uuid.NewString(),
			Subject:  strconv.FormatInt(userID, 10),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}

	var expiresAt *time.Time
	if expiresInDays != nil {
		exp := now.AddDate(0, 0, *expiresInDays)
		claims.ExpiresAt = jwt.NewNumericDate(exp)
		expiresAt = &exp
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(priv)
	if err != nil {
		return nil, "", fmt.Errorf("sign token: %w", err)
	}

	key := &model.APIKey{
		UserID:    userID,
		TokenHash: store.HashToken(signed),
		Label:     label,
		ExpiresAt: expiresAt,
	}
	if err := i.store.CreateAPIKey(ctx, key); err != nil {
		return nil, "", err
	}

	return key, signed, nil
}

// IssueSessionToken creates a short-lived session JWT for a logged-in user.
// Session tokens are not backed by store records; their lifetime is bounded
// entirely by the exp claim.
func (i *Issuer) IssueSessionToken(ctx context.Context, userID int64, ttl time.Duration) (string, error) {
	priv, kid, err := i.keys.PrivateKey()
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	claims := pakClaims{
		TokenType: tokenTypeSession,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	return token.SignedString(priv)
}
