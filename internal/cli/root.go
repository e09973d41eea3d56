// Package cli provides the command-line interface for the agent.
package cli

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "trezor-gpg-agent",
		Short: "GPG signing agent backed by a hardware device",
		Long: `trezor-gpg-agent speaks the gpg-agent wire protocol on a unix socket
and delegates signing operations to a hardware-backed key, so that gpg
itself never sees the private key material.`,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return setupLogging(logLevel)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")

	cmd.AddCommand(newServeCmd())

	return cmd
}

// setupLogging configures the global log level. Output goes to stderr so it
// never interferes with the protocol socket; the daemon's log format is set
// from its configuration in serve.
func setupLogging(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(os.Stderr)
	return nil
}

// Execute runs the root command with the provided context.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}
