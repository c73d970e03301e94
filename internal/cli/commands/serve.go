package commands

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/declsql/internal/access"
	"github.com/leapstack-labs/declsql/internal/config"
	"github.com/leapstack-labs/declsql/internal/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand(load ConfigLoader) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP query server",
		Long: `Start the HTTP server. Each endpoint (/get, /post, /put, /delete,
/head) accepts a JSON query document and returns the assembled result.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, cfgPath, err := load(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cfg.LogLevel)

			eng, err := newEngine(cfg, logger)
			if err != nil {
				return err
			}

			var tokens *access.TokenVerifier
			if cfg.Server.JWTSecret != "" {
				tokens = access.NewTokenVerifier(cfg.Server.JWTSecret, cfg.Server.JWTIssuer)
			}

			srv := server.New(server.Config{
				Addr:   cfg.Server.Addr,
				Engine: eng,
				Tokens: tokens,
				Logger: logger,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			eg, egctx := errgroup.WithContext(ctx)

			if watch && cfgPath != "" {
				watcher := config.NewWatcher(cfgPath, func(next *config.Config) {
					replacement, err := newEngine(next, logger)
					if err != nil {
						logger.Warn("engine rebuild skipped", "error", err)
						return
					}
					srv.SwapEngine(replacement)
				}, logger)
				eg.Go(func() error {
					if err := watcher.Run(egctx); !errors.Is(err, context.Canceled) {
						return err
					}
					return nil
				})
			}

			eg.Go(func() error {
				return srv.Serve(egctx)
			})

			return eg.Wait()
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "reload configuration when the config file changes")

	return cmd
}
