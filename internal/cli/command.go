package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/timber-social/timber-backend/internal/app"
	"github.com/timber-social/timber-backend/internal/config"
	"github.com/timber-social/timber-backend/internal/di"
	"github.com/timber-social/timber-backend/internal/observability"
)

type options struct {
	configFile string
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "timber",
		Short:         "Timber social network backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "dotenv file read before the environment")
	cmd.AddCommand(newServeCommand(opts), newMigrateCommand(opts))
	return cmd
}

func newServeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runtime, err := observability.InitRuntime(ctx, cfg, observability.NewLogger(os.Stdout, cfg))
			if err != nil {
				return fmt.Errorf("init observability: %w", err)
			}
			application, cleanup, err := di.InitializeApp(ctx, cfg, runtime)
			if err != nil {
				_ = runtime.Shutdown(context.Background())
				return fmt.Errorf("initialize app: %w", err)
			}
			defer cleanup()
			return application.Run(ctx)
		},
	}
}

func newMigrateCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			db, err := app.OpenDatabase(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = app.CloseDatabase(db) }()
			if err := app.Migrate(db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func loadConfig(opts *options) (*config.Config, error) {
	if opts.configFile != "" {
		if err := os.Setenv("CONFIG_FILE", opts.configFile); err != nil {
			return nil, err
		}
	}
	return config.Load()
}
