package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/timber-social/timber-backend/internal/config"
)

const meterName = "timber-backend"

type AppMetrics struct {
	authEventCounter       metric.Int64Counter
	repositoryOpCounter    metric.Int64Counter
	tokenValidationCounter metric.Int64Counter
	rateLimitCounter       metric.Int64Counter
	notificationCounter    metric.Int64Counter
	adminMutationCounter   metric.Int64Counter
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	var mp *sdkmetric.MeterProvider
	if !cfg.OTELMetricsEnabled {
		mp = sdkmetric.NewMeterProvider()
		logger.Info("otel metrics disabled")
	} else {
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
		if cfg.OTELExporterOTLPInsecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		exporter, err := otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("create otlp metric exporter: %w", err)
		}
		res, err := newResource(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("create metric resource: %w", err)
		}
		reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
		mp = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(reader),
		)
		logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	}
	otel.SetMeterProvider(mp)

	m, err := newAppMetrics(mp.Meter(meterName))
	if err != nil {
		return nil, err
	}
	metricsMu.Lock()
	appMetrics = m
	metricsMu.Unlock()
	return mp, nil
}

func newAppMetrics(meter metric.Meter) (*AppMetrics, error) {
	authEvents, err := meter.Int64Counter("auth.events", metric.WithDescription("auth state machine outcomes by operation"))
	if err != nil {
		return nil, err
	}
	repoOps, err := meter.Int64Counter("repository.operations")
	if err != nil {
		return nil, err
	}
	tokenValidations, err := meter.Int64Counter("auth.access_token.validations")
	if err != nil {
		return nil, err
	}
	rateLimits, err := meter.Int64Counter("http.rate_limit.decisions")
	if err != nil {
		return nil, err
	}
	notifications, err := meter.Int64Counter("notification.dispatch")
	if err != nil {
		return nil, err
	}
	adminMutations, err := meter.Int64Counter("admin.account.mutations")
	if err != nil {
		return nil, err
	}
	return &AppMetrics{
		authEventCounter:       authEvents,
		repositoryOpCounter:    repoOps,
		tokenValidationCounter: tokenValidations,
		rateLimitCounter:       rateLimits,
		notificationCounter:    notifications,
		adminMutationCounter:   adminMutations,
	}, nil
}

func current() *AppMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appMetrics
}

func RecordAuthEvent(ctx context.Context, operation, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.authEventCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

func RecordRepositoryOperation(ctx context.Context, repo, operation, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.repositoryOpCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("repository", repo),
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

func RecordAccessTokenValidation(ctx context.Context, outcome, source string) {
	m := current()
	if m == nil {
		return
	}
	m.tokenValidationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("source", source),
	))
}

func RecordRateLimitDecision(ctx context.Context, scope, decision string) {
	m := current()
	if m == nil {
		return
	}
	m.rateLimitCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("decision", decision),
	))
}

func RecordNotificationDispatch(ctx context.Context, kind, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.notificationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
}

func RecordAdminMutation(ctx context.Context, action string) {
	m := current()
	if m == nil {
		return
	}
	m.adminMutationCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
}
