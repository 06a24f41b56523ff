package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/plodoki/pakd/internal/model"
	"github.com/plodoki/pakd/internal/store"
)

// clockLeeway is the tolerance applied to iat/exp claim checks.
const clockLeeway = 30 * time.Second

// Identity is the result of authenticating a bearer token: the user it
// resolves to, plus the backing key record when the token was a personal
// API key.
type Identity struct {
	UserID int64
	Kind   string        // "session" or "api_key"
	User   *model.User   // set on the session path
	Key    *model.APIKey // set on the API key path
}

// Verifier validates presented tokens. Cryptographic checks (structure, kid
// resolution, signature, time claims) run first; the store is consulted only
// for tokens that pass them, so invalid tokens never cost a database round
// trip. Revocation state is read fresh on every call — nothing caches it.
type Verifier struct {
	keys  *KeyManager
	store *store.Store
}

// NewVerifier creates a Verifier checking signatures against keys and
// revocation state against st.
func NewVerifier(keys *KeyManager, st *store.Store) *Verifier {
	return &Verifier{keys: keys, store: st}
}

// parse verifies the token's structure, signature, and time claims, returning
// the claim set. Errors are normalized to the verification taxonomy.
func (v *Verifier) parse(raw string) (*pakClaims, error) {
	claims := &pakClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithLeeway(clockLeeway),
		jwt.WithIssuedAt(),
	)

	token, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, ErrMalformedToken
		}
		return v.keys.PublicKeyFor(kid)
	})

	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownKey):
			return nil, ErrUnknownKey
		case errors.Is(err, ErrKeyMaterialMissing), errors.Is(err, ErrKeyMaterialInvalid):
			return nil, err
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalidSignature
		case errors.Is(err, jwt.ErrTokenExpired),
			errors.Is(err, jwt.ErrTokenUsedBeforeIssued),
			errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, ErrTokenExpired
		default:
			return nil, ErrMalformedToken
		}
	}
	if !token.Valid {
		return nil, ErrInvalidSignature
	}
	return claims, nil
}

// checkRecord resolves the key record backing a cryptographically valid PAK
// token and enforces the record-level trust boundary: revocation first, then
// record expiry (independent of the JWT exp claim).
func (v *Verifier) checkRecord(ctx context.Context, raw string) (*model.APIKey, error) {
	key, err := v.store.GetAPIKeyByHash(ctx, store.HashToken(raw))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Validly signed but with no backing record: the record is
			// the trust boundary, so the token is not acceptable.
			return nil, ErrMalformedToken
		}
		return nil, err
	}

	if key.Revoked() {
		return nil, ErrKeyRevoked
	}
	if key.Expired(time.Now().UTC()) {
		return nil, ErrKeyExpired
	}

	// Update last used timestamp (fire and forget)
	go v.store.UpdateAPIKeyLastUsed(context.Background(), key.ID)

	return key, nil
}

// sessionUser resolves the active user behind a session token's subject.
func (v *Verifier) sessionUser(ctx context.Context, claims *pakClaims) (*model.User, error) {
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, ErrMalformedToken
	}

	user, err := v.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Verify validates a personal API key token and returns its backing record.
// Failure modes, in check order: ErrMalformedToken, ErrUnknownKey,
// ErrInvalidSignature, ErrTokenExpired (JWT claims), then against the store
// ErrKeyRevoked and ErrKeyExpired (record state). On success the record's
// last-used timestamp is updated best-effort; that write never affects the
// result.
func (v *Verifier) Verify(ctx context.Context, raw string) (*model.APIKey, error) {
	claims, err := v.parse(raw)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenTypeAPIKey {
		return nil, ErrMalformedToken
	}
	return v.checkRecord(ctx, raw)
}

// VerifySession validates a session token and returns the active user it
// belongs to. Session tokens have no store record; a disabled or deleted
// user fails with ErrInvalidCredentials.
func (v *Verifier) VerifySession(ctx context.Context, raw string) (*model.User, error) {
	claims, err := v.parse(raw)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenTypeSession {
		return nil, ErrMalformedToken
	}
	return v.sessionUser(ctx, claims)
}

// AuthenticateToken validates a bearer token of either type, parsing it once
// and dispatching on the type claim. Used by the HTTP auth middleware.
func (v *Verifier) AuthenticateToken(ctx context.Context, raw string) (*Identity, error) {
	claims, err := v.parse(raw)
	if err != nil {
		return nil, err
	}

	switch claims.TokenType {
	case tokenTypeSession:
		user, err := v.sessionUser(ctx, claims)
		if err != nil {
			return nil, err
		}
		return &Identity{UserID: user.ID, Kind: tokenTypeSession, User: user}, nil
	case tokenTypeAPIKey:
		key, err := v.checkRecord(ctx, raw)
		if err != nil {
			return nil, err
		}
		return &Identity{UserID: key.UserID, Kind: tokenTypeAPIKey, Key: key}, nil
	default:
		return nil, ErrMalformedToken
	}
}
