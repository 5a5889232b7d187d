package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const oneTimeCodeDigits = 6

var oneTimeCodeSpace = big.NewInt(1_000_000)

// GenerateOneTimeCode returns a uniformly random 6 digit code, zero padded.
func GenerateOneTimeCode() (string, error) {
	n, err := rand.Int(rand.Reader, oneTimeCodeSpace)
	if err != nil {
		return "", fmt.Errorf("generate one-time code: %w", err)
	}
	return fmt.Sprintf("%0*d", oneTimeCodeDigits, n.Int64()), nil
}

func OneTimeCodeExpiry(now time.Time, ttl time.Duration) time.Time {
	return now.Add(ttl).UTC()
}
