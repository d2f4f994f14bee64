// Package cli implements the reviewq command: ask questions, inspect the
// schema and the audit log, and replay evaluation datasets.
package cli

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/review-agent/backend/internal/app"
	"github.com/review-agent/backend/pkg/config"
	"github.com/review-agent/backend/pkg/logger"
)

type ExitCode int

const (
	exitCodeSuccess = 0
	exitCodeError   = 1
)

type rootOptions struct {
	configPath string
	verbose    bool
}

func Run() ExitCode {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "reviewq",
		Short:         "Ask questions about airline reviews in plain English.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Help(); err != nil {
				return fmt.Errorf("failed to show help: %w", err)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a config file (defaults to ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log pipeline steps to stderr")

	rootCmd.AddCommand(
		newAskCmd(opts),
		newSchemaCmd(),
		newAuditCmd(opts),
		newEvalCmd(opts),
		newSeedCmd(opts),
	)

	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		return exitCodeError
	}

	return exitCodeSuccess
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	if o.configPath != "" {
		return config.LoadFile(o.configPath)
	}
	return config.Load()
}

// build loads configuration and wires the engine. The caller closes the
// returned app.
func (o *rootOptions) build(ctx context.Context) (*app.App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	if o.verbose {
		if err := logger.Init("debug", "console", "stderr"); err != nil {
			return nil, err
		}
	}

	return app.Build(ctx, cfg)
}
