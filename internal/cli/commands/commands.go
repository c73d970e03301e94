// Package commands holds the declsql subcommands.
package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/declsql/internal/access"
	"github.com/leapstack-labs/declsql/internal/config"
	"github.com/leapstack-labs/declsql/internal/engine"
	"github.com/leapstack-labs/declsql/pkg/core"

	// Adapters self-register so the config target can name them.
	_ "github.com/leapstack-labs/declsql/pkg/adapters/mysql"
	_ "github.com/leapstack-labs/declsql/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/declsql/pkg/adapters/sqlite"
)

// ConfigLoader resolves the effective configuration for a command,
// returning the config file path used ("" when none).
type ConfigLoader func(cmd *cobra.Command) (*config.Config, string, error)

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

func newEngine(cfg *config.Config, logger *slog.Logger) (*engine.Engine, error) {
	var policy core.AccessPolicy
	if len(cfg.Grants) > 0 {
		policy = access.NewPolicy(cfg.Grants, logger)
	}
	return engine.New(engine.Config{
		Target:   cfg.Target.AdapterConfig(),
		Limits:   cfg.Limits,
		Policy:   policy,
		Parallel: cfg.Parallel,
		Logger:   logger,
	})
}
