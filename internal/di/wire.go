//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"github.com/timber-social/timber-backend/internal/app"
	"github.com/timber-social/timber-backend/internal/config"
	"github.com/timber-social/timber-backend/internal/observability"
)

var infraSet = wire.NewSet(
	provideLogger,
	provideDatabase,
	provideRedis,
)

var securitySet = wire.NewSet(
	provideJWTManager,
	providePasswordHasher,
	provideCookieOptions,
)

var repositorySet = wire.NewSet(
	provideAccountRepository,
	provideSessionRepository,
	provideFollowRepository,
)

var serviceSet = wire.NewSet(
	provideTokenService,
	provideMailSender,
	provideDispatcher,
	provideNotifier,
	provideProfileMissCache,
	provideAuthService,
	provideProfileService,
	provideFollowService,
	provideAdminService,
)

var httpSet = wire.NewSet(
	provideAuthHandler,
	provideUserHandler,
	provideAdminHandler,
	provideReadiness,
	provideRouterDependencies,
	provideHTTPHandler,
	provideHTTPServer,
)

func InitializeApp(ctx context.Context, cfg *config.Config, runtime *observability.Runtime) (*app.App, func(), error) {
	wire.Build(
		infraSet,
		securitySet,
		repositorySet,
		serviceSet,
		httpSet,
		provideSessionSweeper,
		provideApp,
	)
	return nil, nil, nil
}
