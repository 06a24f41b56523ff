package service

import "errors"

// Configuration errors. These indicate a server-side problem with the signing
// key material and are never caused by client input. Their messages must not
// contain key bytes.
var (
	ErrKeyMaterialMissing = errors.New("signing key material missing")
	ErrKeyMaterialInvalid = errors.New("signing key material invalid")
)

// Verification errors. All of them surface to the caller as a generic
// authentication rejection; the distinct values exist so logs can tell the
// causes apart.
var (
	ErrMalformedToken   = errors.New("malformed token")
	ErrUnknownKey       = errors.New("unknown signing key")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token expired")
	ErrKeyExpired       = errors.New("api key expired")
	ErrKeyRevoked       = errors.New("api key revoked")
)

// Input validation errors for key issuance.
var (
	ErrInvalidLabel  = errors.New("label must be non-empty and at most 100 characters")
	ErrInvalidExpiry = errors.New("expires_in_days must be a positive integer")
)

// ErrInvalidCredentials is returned for failed logins and for session tokens
// that do not resolve to an active user.
var ErrInvalidCredentials = errors.New("invalid credentials")
