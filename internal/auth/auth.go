package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Actor is the authenticated identity presented with every request. Core
// operations receive it explicitly; there is no ambient current-user state.
type Actor struct {
	ID      string
	Name    string
	Email   string
	IsAdmin bool
}

// GenerateToken creates an opaque session token: 32 hex characters from 16
// random bytes. The plaintext goes to the client; only its hash is stored.
func GenerateToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashToken returns the hex-encoded SHA-256 hash of a plaintext token.
func HashToken(plaintext string) string {
	h := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(h[:])
}
