package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/timber-social/timber-backend/internal/config"
)

// InitSentry is a no-op when SENTRY_DSN is empty.
func InitSentry(cfg *config.Config) (bool, error) {
	if cfg.SentryDSN == "" {
		return false, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.AppEnv,
		AttachStacktrace: true,
		SampleRate:       1.0,
	})
	if err != nil {
		return false, fmt.Errorf("init sentry: %w", err)
	}
	return true, nil
}

func CaptureError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		if id := RequestIDFromContext(ctx); id != "" {
			scope.SetTag("request_id", id)
		}
		hub.CaptureException(err)
	})
}

func FlushSentry(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}
