// Package main is the searchctl operator CLI. It shares configuration and
// backend wiring with the searchdex server.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/searchdex/internal/app"
	"github.com/kailas-cloud/searchdex/internal/config"
	logpkg "github.com/kailas-cloud/searchdex/internal/logger"
	"github.com/kailas-cloud/searchdex/internal/version"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	env        string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd creates the searchctl command tree.
func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "searchctl",
		Short: "Operate a searchdex backend from the command line",
		Long: `searchctl talks directly to the configured search backend (redis, elastic
or bleve) using the same configuration file as the searchdex server.

Queries use the backend's native syntax and may contain {name} placeholders
that are substituted, in order, by the extra arguments.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default: config/<env>.yaml)")
	cmd.PersistentFlags().StringVar(&opts.env, "env", config.GetEnv(), "environment used to locate the config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override: debug, info, warn, error")

	cmd.AddCommand(
		newPingCmd(opts),
		newQueryCmd(opts),
		newAddCmd(opts),
		newDeleteCmd(opts),
		newDeleteQueryCmd(opts),
		newDeleteAllCmd(opts),
		newCommitCmd(opts),
		newRefreshCmd(opts),
		newIndexCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// loadConfig reads the explicit --config file or falls back to the env lookup.
func (o *globalOptions) loadConfig() (config.Config, error) {
	if o.configPath != "" {
		return config.LoadFile(o.configPath) //nolint:wrapcheck // already descriptive
	}
	return config.Load(o.env) //nolint:wrapcheck // already descriptive
}

// withApp builds the application, runs fn and releases the backend.
func (o *globalOptions) withApp(ctx context.Context, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	logger, err := logpkg.NewLogger("cli", o.logLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err //nolint:wrapcheck // already descriptive
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Warn("close backend", zap.Error(cerr))
		}
	}()
	return fn(ctx, a)
}
