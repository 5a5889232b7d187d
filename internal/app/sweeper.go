package app

import (
	"context"
	"log/slog"
	"time"
)

type sessionCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// SessionSweeper periodically deletes sessions whose stored expiry has passed.
type SessionSweeper struct {
	cleaner  sessionCleaner
	interval time.Duration
	logger   *slog.Logger
}

func NewSessionSweeper(cleaner sessionCleaner, interval time.Duration, logger *slog.Logger) *SessionSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionSweeper{cleaner: cleaner, interval: interval, logger: logger}
}

// Run blocks until ctx is done. A non-positive interval disables sweeping.
func (s *SessionSweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *SessionSweeper) sweep(ctx context.Context) {
	removed, err := s.cleaner.CleanupExpired(ctx)
	if err != nil {
		s.logger.Warn("session sweep failed", "error", err)
		return
	}
	if removed > 0 {
		s.logger.Info("expired sessions removed", "count", removed)
	}
}
