package service

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes a login password with bcrypt at the default cost. The
// result embeds its own salt, so hashing the same password twice yields
// different strings. Token hashes use sha256 instead (high-entropy input,
// lookup by exact hash); passwords go through a KDF because they don't.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the stored bcrypt hash.
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
