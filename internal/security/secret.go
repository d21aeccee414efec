package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const secretBytes = 32

// NewSecret returns a random single-use secret and the hash to persist.
// The plaintext goes to the user out-of-band and must not be stored.
func NewSecret() (plain string, hash string, err error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate secret: %w", err)
	}

	plain = hex.EncodeToString(buf)
	return plain, HashSecret(plain), nil
}

func HashSecret(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
