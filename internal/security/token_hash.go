package security

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashRefreshToken derives the session lookup key from the raw refresh token.
func HashRefreshToken(raw, pepper string) string {
	sum := sha256.Sum256([]byte(pepper + ":" + raw))
	return hex.EncodeToString(sum[:])
}
