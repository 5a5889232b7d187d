package service

import (
	"context"
	"time"
)

type Recipient struct {
	Name  string
	Email string
}

// Notifier hands one-time codes to the delivery channel. Implementations must
// not block on delivery; a returned error only means the request was refused.
type Notifier interface {
	SendVerificationCode(ctx context.Context, to Recipient, code string, ttl time.Duration) error
	SendPasswordReset(ctx context.Context, to Recipient, code string, ttl time.Duration) error
}
