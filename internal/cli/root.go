// Package cli provides the declsql command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/declsql/internal/cli/commands"
	"github.com/leapstack-labs/declsql/internal/config"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "declsql",
		Short: "declsql - declarative JSON to SQL query engine",
		Long: `declsql compiles declarative JSON query documents into SQL and runs
them against a configured database target. One request can read and
write several tables, join them, and feed one table's results into
another's conditions.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./declsql.yaml)")
	rootCmd.PersistentFlags().String("addr", "", "listen address override")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("target", "", "database target type override")
	rootCmd.PersistentFlags().String("database", "", "database name override")
	rootCmd.PersistentFlags().String("schema", "", "schema override")
	rootCmd.PersistentFlags().Bool("parallel", false, "run independent queries concurrently")

	loadConfig := func(cmd *cobra.Command) (*config.Config, string, error) {
		path := cfgFile
		if path == "" {
			if root := config.FindProjectRoot("."); root != "" {
				path = config.FindConfigFile(root)
			}
		}
		cfg, err := config.LoadWithFlags(path, cmd.Root().PersistentFlags())
		return cfg, path, err
	}

	rootCmd.AddCommand(commands.NewServeCommand(loadConfig))
	rootCmd.AddCommand(commands.NewQueryCommand(loadConfig))
	rootCmd.AddCommand(commands.NewRenderCommand(loadConfig))
	rootCmd.AddCommand(commands.NewDialectsCommand())
	rootCmd.AddCommand(commands.NewTokenCommand(loadConfig))
	rootCmd.AddCommand(commands.NewVersionCommand(Version, BuildDate, GitCommit))

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
