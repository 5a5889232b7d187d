package di

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/timber-social/timber-backend/internal/app"
	"github.com/timber-social/timber-backend/internal/config"
	"github.com/timber-social/timber-backend/internal/health"
	"github.com/timber-social/timber-backend/internal/http/handler"
	"github.com/timber-social/timber-backend/internal/http/middleware"
	"github.com/timber-social/timber-backend/internal/http/router"
	"github.com/timber-social/timber-backend/internal/mail"
	"github.com/timber-social/timber-backend/internal/observability"
	"github.com/timber-social/timber-backend/internal/repository"
	"github.com/timber-social/timber-backend/internal/security"
	"github.com/timber-social/timber-backend/internal/service"
)

func provideLogger(runtime *observability.Runtime) *slog.Logger {
	return runtime.Logger
}

func provideDatabase(cfg *config.Config) (*gorm.DB, func(), error) {
	db, err := app.OpenDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := app.Migrate(db); err != nil {
		_ = app.CloseDatabase(db)
		return nil, nil, err
	}
	return db, func() { _ = app.CloseDatabase(db) }, nil
}

func provideRedis(ctx context.Context, cfg *config.Config) (*redis.Client, func(), error) {
	client, err := app.OpenRedis(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		return nil, func() {}, nil
	}
	return client, func() { _ = client.Close() }, nil
}

func provideJWTManager(cfg *config.Config) *security.JWTManager {
	return security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
}

func providePasswordHasher(cfg *config.Config) *security.PasswordHasher {
	return security.NewPasswordHasher(cfg.BcryptCost)
}

func provideAccountRepository(db *gorm.DB) repository.AccountRepository {
	return repository.NewAccountRepository(db)
}

func provideSessionRepository(db *gorm.DB) repository.SessionRepository {
	return repository.NewSessionRepository(db)
}

func provideFollowRepository(db *gorm.DB) repository.FollowRepository {
	return repository.NewFollowRepository(db)
}

func provideTokenService(jwtMgr *security.JWTManager, sessions repository.SessionRepository, cfg *config.Config) *service.TokenService {
	return service.NewTokenService(jwtMgr, sessions, cfg.RefreshTokenPepper, cfg.SessionTTL)
}

func provideMailSender(cfg *config.Config, logger *slog.Logger) mail.Sender {
	if cfg.SMTPHost == "" {
		return mail.NewLogSender(logger)
	}
	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:        cfg.SMTPHost,
		Port:        cfg.SMTPPort,
		Username:    cfg.SMTPUsername,
		Password:    cfg.SMTPPassword,
		FromName:    cfg.MailFromName,
		FromAddress: cfg.MailFromAddress,
	})
}

func provideDispatcher(cfg *config.Config, sender mail.Sender, logger *slog.Logger) (*mail.Dispatcher, func()) {
	d := mail.NewDispatcher(mail.DispatcherConfig{
		Workers:   cfg.MailWorkers,
		QueueSize: cfg.MailQueueSize,
	}, sender, logger)
	return d, d.Close
}

func provideNotifier(d *mail.Dispatcher) service.Notifier { return d }

func provideProfileMissCache(client *redis.Client) service.ProfileMissCache {
	if client == nil {
		return service.NewInMemoryProfileMissCache()
	}
	return service.NewRedisProfileMissCache(client, "")
}

func provideAuthService(
	accounts repository.AccountRepository,
	tokens *service.TokenService,
	hasher *security.PasswordHasher,
	notifier service.Notifier,
	misses service.ProfileMissCache,
	logger *slog.Logger,
	cfg *config.Config,
) *service.AuthService {
	return service.NewAuthService(accounts, tokens, hasher, notifier, misses, logger, service.AuthPolicy{
		VerificationCodeTTL: cfg.VerificationCodeTTL,
		ResetCodeTTL:        cfg.ResetCodeTTL,
	})
}

func provideProfileService(accounts repository.AccountRepository, follows repository.FollowRepository, misses service.ProfileMissCache, logger *slog.Logger) *service.ProfileService {
	return service.NewProfileService(accounts, follows, misses, logger)
}

func provideFollowService(accounts repository.AccountRepository, follows repository.FollowRepository, logger *slog.Logger) *service.FollowService {
	return service.NewFollowService(accounts, follows, logger)
}

func provideAdminService(accounts repository.AccountRepository, tokens *service.TokenService, misses service.ProfileMissCache, logger *slog.Logger) *service.AdminService {
	return service.NewAdminService(accounts, tokens, misses, logger)
}

func provideCookieOptions(cfg *config.Config) security.CookieOptions {
	return security.CookieOptions{
		Secure:     cfg.IsProduction(),
		AccessTTL:  cfg.JWTAccessTTL,
		RefreshTTL: cfg.SessionTTL,
	}
}

func provideAuthHandler(auth *service.AuthService, cookies security.CookieOptions) *handler.AuthHandler {
	return handler.NewAuthHandler(auth, cookies)
}

func provideUserHandler(profiles *service.ProfileService, follows *service.FollowService) *handler.UserHandler {
	return handler.NewUserHandler(profiles, follows)
}

func provideAdminHandler(admin *service.AdminService) *handler.AdminHandler {
	return handler.NewAdminHandler(admin)
}

func provideReadiness(db *gorm.DB, client *redis.Client) *health.ProbeRunner {
	checkers := []health.Checker{health.NewDBChecker(db)}
	if client != nil {
		checkers = append(checkers, health.NewRedisChecker(client))
	}
	return health.NewProbeRunner(2*time.Second, 5*time.Second, checkers...)
}

// provideRouterDependencies shares limiter counters through redis when it is
// configured so limits hold across replicas.
func provideRouterDependencies(
	cfg *config.Config,
	jwtMgr *security.JWTManager,
	client *redis.Client,
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	adminHandler *handler.AdminHandler,
	readiness *health.ProbeRunner,
) router.Dependencies {
	dep := router.Dependencies{
		AuthHandler:                authHandler,
		UserHandler:                userHandler,
		AdminHandler:               adminHandler,
		JWTManager:                 jwtMgr,
		CORSOrigins:                cfg.CORSAllowedOrigins,
		AuthRateLimitRPM:           cfg.AuthRateLimitRPM,
		PasswordForgotRateLimitRPM: cfg.PasswordForgotRateLimitRPM,
		APIRateLimitRPM:            cfg.APIRateLimitRPM,
		CodeEmailRateLimit:         cfg.CodeEmailRateLimit,
		CodeEmailRateWindow:        cfg.CodeEmailRateWindow,
		Readiness:                  readiness,
		EnableOTelHTTP:             cfg.OTELTracingEnabled || cfg.OTELMetricsEnabled,
	}
	if client == nil {
		return dep
	}
	limiter := middleware.NewRedisFixedWindowLimiter(client, "rl")
	dep.GlobalRateLimiter = middleware.NewDistributedRateLimiterWithKey(limiter, cfg.APIRateLimitRPM, time.Minute, middleware.FailOpen, "api", middleware.SubjectOrIPKeyFunc(jwtMgr)).Middleware()
	dep.AuthRateLimiter = middleware.NewDistributedRateLimiterWithKey(limiter, cfg.AuthRateLimitRPM, time.Minute, middleware.FailClosed, "auth", nil).Middleware()
	dep.ForgotRateLimiter = middleware.NewDistributedRateLimiterWithKey(limiter, cfg.PasswordForgotRateLimitRPM, time.Minute, middleware.FailClosed, "code", nil).Middleware()
	dep.CodeEmailRateLimiter = middleware.NewEmailRateLimiter(limiter, cfg.CodeEmailRateLimit, cfg.CodeEmailRateWindow, middleware.FailClosed).Middleware()
	return dep
}

func provideHTTPHandler(dep router.Dependencies) http.Handler {
	return router.NewRouter(dep)
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func provideSessionSweeper(tokens *service.TokenService, cfg *config.Config, logger *slog.Logger) *app.SessionSweeper {
	return app.NewSessionSweeper(tokens, cfg.SessionCleanupInterval, logger)
}

func provideApp(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	runtime *observability.Runtime,
	sweeper *app.SessionSweeper,
	readiness *health.ProbeRunner,
	dispatcher *mail.Dispatcher,
) *app.App {
	return app.New(cfg, logger, server, runtime, sweeper, readiness, dispatcher.Close)
}
