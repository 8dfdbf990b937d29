package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewOneTimeToken returns 32 random bytes, hex encoded. Used for password
// reset and email verification links.
func NewOneTimeToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth: generating token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewUnusablePassword returns a random secret for accounts created through
// federated sign-in. Nobody ever learns it.
func NewUnusablePassword() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth: generating password: %w", err)
	}
	return hex.EncodeToString(b), nil
}
