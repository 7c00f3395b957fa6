package main

import (
	"context"
	"fmt"

	"github.com/rezakhademix/zorm"
	"github.com/rezakhademix/zorm/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app carries what PersistentPreRunE loaded to the subcommands.
type app struct {
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger
}

// connect opens the configured connection. The caller must call the
// returned close function.
func (a *app) connect(ctx context.Context) (*zorm.Connection, func() error, error) {
	if len(a.cfg.Models) == 0 {
		return nil, nil, fmt.Errorf("no models configured")
	}
	return config.Connect(ctx, a.cfg, a.logger)
}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "zorm",
		Short: "Inspect and resolve polymorphic model relations",
		Long: `zorm loads model declarations from a YAML file and resolves their
relations against a live database.

Configuration precedence: flags > ZORM_* environment variables > file > defaults.
Nested keys use a double underscore, e.g. ZORM_CONNECTION__DSN.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.Load(a.cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			logger, err := zorm.NewLogger(cfg.Log.Level)
			if err != nil {
				return err
			}

			a.cfg = cfg
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (YAML)")
	flags.String("driver", "", "database driver (mysql|postgres|sqlite3)")
	flags.String("dsn", "", "primary database DSN")
	flags.StringSlice("replica", nil, "replica DSN, repeatable")
	flags.Int("statement-cache-size", 0, "prepared statement cache size (0 disables)")
	flags.Duration("slow-threshold", 0, "log statements slower than this at warn level")
	flags.Bool("validate-schema", false, "validate model declarations against the database")
	flags.String("log-level", "", "log level (debug|info|warn|error)")

	_ = rootCmd.RegisterFlagCompletionFunc("driver", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"mysql", "postgres", "sqlite3"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(newModelsCommand(a))
	rootCmd.AddCommand(newExplainCommand(a))
	rootCmd.AddCommand(newResolveCommand(a))

	return rootCmd
}
