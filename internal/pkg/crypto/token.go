// Package crypto provides cryptographic utilities for Constable.
package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// SessionTokenBytes is the entropy of a session token identifier.
// 32 random bytes hex-encode to the 64-character opaque token handed
// to clients.
const SessionTokenBytes = 32

// GenerateSessionTokenID generates a cryptographically random session
// token identifier (64 hex characters).
func GenerateSessionTokenID() (string, error) {
	buf := make([]byte, SessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// ValidSessionTokenID reports whether a string has the shape of a
// session token identifier (64 lowercase hex characters). Used to
// reject junk before hitting the token store.
func ValidSessionTokenID(token string) bool {
	if len(token) != SessionTokenBytes*2 {
		return false
	}
	for _, c := range token {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}
