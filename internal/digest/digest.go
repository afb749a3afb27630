// Package digest turns a plaintext password into the SHA-256 hex digest that
// serves both as the login credential and as the AES-256 key material.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// Size is the length of a digest in hex characters.
const Size = sha256.Size * 2

// ErrUnavailable is returned when the hash primitive cannot produce a digest.
var ErrUnavailable = errors.New("digest: hash primitive unavailable")

// Func computes the hex digest of a password.
// Implementations must be pure and deterministic.
type Func func(password string) (string, error)

// Password returns the lowercase hex SHA-256 digest of password.
func Password(password string) (string, error) {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:]), nil
}

// Valid reports whether s looks like a digest produced by Password.
func Valid(s string) bool {
	if len(s) != Size {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// Normalize trims surrounding whitespace and lowercases a configured digest.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
