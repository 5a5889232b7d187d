package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/timber-social/timber-backend/internal/config"
	"github.com/timber-social/timber-backend/internal/health"
	"github.com/timber-social/timber-backend/internal/observability"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	Observability *observability.Runtime
	Sweeper       *SessionSweeper
	Readiness     *health.ProbeRunner

	ShutdownTimeout time.Duration

	stopBackground func()
}

// New assembles the process. stop releases background resources such as the
// mail dispatcher and the database pool; it runs once during shutdown.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	runtime *observability.Runtime,
	sweeper *SessionSweeper,
	readiness *health.ProbeRunner,
	stop func(),
) *App {
	if stop == nil {
		stop = func() {}
	}
	return &App{
		Config:          cfg,
		Logger:          logger,
		Server:          server,
		Observability:   runtime,
		Sweeper:         sweeper,
		Readiness:       readiness,
		ShutdownTimeout: cfg.ShutdownTimeout,
		stopBackground:  stop,
	}
}

func (a *App) StopBackgroundTasks() {
	a.stopBackground()
}

// Run serves HTTP and runs the session sweeper until ctx is cancelled or one
// of them fails, then shuts everything down within ShutdownTimeout.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info("http server listening", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if a.Sweeper != nil {
		g.Go(func() error {
			a.Sweeper.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown()
	})

	return g.Wait()
}

func (a *App) shutdown() error {
	timeout := a.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	a.Logger.Info("shutting down")
	var errs []error
	if err := a.Server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
	}
	a.StopBackgroundTasks()
	if err := a.Observability.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown observability: %w", err))
	}
	return errors.Join(errs...)
}
