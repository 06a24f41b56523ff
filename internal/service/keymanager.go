package service

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"sync"
)

const minKeyBits = 2048

// JWK is a single RSA public key in JSON Web Key format.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKS is the published JSON Web Key Set.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// signingKey bundles a private key with its derived public half and stable
// key identifier.
type signingKey struct {
	private *rsa.PrivateKey
	kid     string
}

// KeyManager owns the RS256 signing key pair. The pair is loaded from the
// configured PEM file (or generated when no path is configured) exactly once
// per process and cached; every consumer observes the same pair until
// ClearCache forces a reload.
//
// An unconfigured KeyManager generates an ephemeral pair, so tokens it signs
// cannot be verified by other instances or after a restart. Deployments with
// more than one process must point every instance at the same key file
// (pakd key generate).
type KeyManager struct {
	keyPath string

	mu     sync.Mutex
	cached *signingKey
}

// NewKeyManager creates a KeyManager. keyPath is the PEM file holding the RSA
// private key; empty means generate an ephemeral pair on first use.
func NewKeyManager(keyPath string) *KeyManager {
	return &KeyManager{keyPath: keyPath}
}

// current returns the cached signing key, loading or generating it on first
// access. Generation is serialized under the mutex so concurrent first
// accesses cannot produce divergent pairs.
func (m *KeyManager) current() (*signingKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cached != nil {
		return m.cached, nil
	}

	var priv *rsa.PrivateKey
	var err error
	if m.keyPath != "" {
		priv, err = loadPrivateKey(m.keyPath)
	} else {
		priv, err = rsa.GenerateKey(rand.Reader, minKeyBits)
	}
	if err != nil {
		return nil, err
	}

	kid, err := keyID(&priv.PublicKey)
	if err != nil {
		return nil, err
	}

	m.cached = &signingKey{private: priv, kid: kid}
	return m.cached, nil
}

// PrivateKey returns the cached private key and its kid.
func (m *KeyManager) PrivateKey() (*rsa.PrivateKey, string, error) {
	k, err := m.current()
	if err != nil {
		return nil, "", err
	}
	return k.private, k.kid, nil
}

// PublicKey returns the cached public key and its kid.
func (m *KeyManager) PublicKey() (*rsa.PublicKey, string, error) {
	k, err := m.current()
	if err != nil {
		return nil, "", err
	}
	return &k.private.PublicKey, k.kid, nil
}

// PublicKeyFor resolves the public key matching kid. With a single cached
// key, any other kid fails with ErrUnknownKey; this is what a verifier sees
// after a restart discarded the ephemeral pair that signed the token.
func (m *KeyManager) PublicKeyFor(kid string) (*rsa.PublicKey, error) {
	k, err := m.current()
	if err != nil {
		return nil, err
	}
	if kid != k.kid {
		return nil, ErrUnknownKey
	}
	return &k.private.PublicKey, nil
}

// JWKS returns the key set for the current public key: exactly one RS256
// signature key, modulus and exponent base64url encoded without padding.
func (m *KeyManager) JWKS() (*JWKS, error) {
	k, err := m.current()
	if err != nil {
		return nil, err
	}
	pub := &k.private.PublicKey
	return &JWKS{
		Keys: []JWK{{
			Kty: "RSA",
			Use: "sig",
			Alg: "RS256",
			Kid: k.kid,
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	}, nil
}

// ClearCache discards the cached key pair. The next access reloads from disk
// (or generates a fresh ephemeral pair), yielding a key with a new identity
// when the underlying material changed. Used for key rotation and test
// isolation.
func (m *KeyManager) ClearCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cached = nil
}

// keyID derives a stable identifier for a public key: the base64url-encoded
// first half of the SHA-256 digest of the DER-encoded SubjectPublicKeyInfo.
func keyID(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("marshal public key: %w", err)
	}
	sum := sha256.Sum256(der)
	return base64.RawURLEncoding.EncodeToString(sum[:16]), nil
}

// loadPrivateKey reads and parses an RSA private key PEM file. A missing file
// is a configuration error, unparseable content a format error, and anything
// else an I/O error; none of them carry key bytes.
func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s (run 'pakd key generate')", ErrKeyMaterialMissing, path)
		}
		return nil, fmt.Errorf("read signing key %s: %w", path, err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: %s is not PEM", ErrKeyMaterialInvalid, path)
	}

	var priv *rsa.PrivateKey
	switch block.Type {
	case "RSA PRIVATE KEY":
		priv, err = x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: parse PKCS#1", ErrKeyMaterialInvalid, path)
		}
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: parse PKCS#8", ErrKeyMaterialInvalid, path)
		}
		rsaKey, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: %s: not an RSA key", ErrKeyMaterialInvalid, path)
		}
		priv = rsaKey
	default:
		return nil, fmt.Errorf("%w: %s: unexpected PEM block %q", ErrKeyMaterialInvalid, path, block.Type)
	}

	if priv.N.BitLen() < minKeyBits {
		return nil, fmt.Errorf("%w: %s: modulus below %d bits", ErrKeyMaterialInvalid, path, minKeyBits)
	}
	return priv, nil
}

// WriteKeyFile generates a fresh RSA key pair and writes it to path as a
// PKCS#8 PEM with owner-only permissions. Refuses to overwrite an existing
// file unless force is set.
func WriteKeyFile(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	priv, err := rsa.GenerateKey(rand.Reader, minKeyBits)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return fmt.Errorf("encode key: %w", err)
	}
	data := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	return nil
}
