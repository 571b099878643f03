package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const resetTokenBytes = 20

// NewResetToken returns a random plaintext token and the digest to persist.
// Only the digest may be stored; the plaintext goes out by email once.
func NewResetToken() (plain string, digest string, err error) {
	b := make([]byte, resetTokenBytes)

	if _, err = rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generate reset token: %w", err)
	}

	plain = hex.EncodeToString(b)
	return plain, HashResetToken(plain), nil
}

// HashResetToken is the sha256 hex digest used to look a reset token up.
func HashResetToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
