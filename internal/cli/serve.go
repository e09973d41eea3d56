package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Quaternioneer/trezor-agent/internal/agent"
	"github.com/Quaternioneer/trezor-agent/internal/config"
)

const shutdownTimeout = 10 * time.Second

// configureDaemonLogging applies the daemon's configured log level and format
// on top of what the global flags set.
func configureDaemonLogging(cfg config.Log) error {
	lvl, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return nil
}

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the agent daemon",
		Long: `Serve binds the agent socket and handles gpg-agent protocol sessions
until interrupted. When a management listen address is configured, an
HTTP endpoint with health probes is served alongside.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the config file")

	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := configureDaemonLogging(cfg.Log); err != nil {
		return err
	}

	srv, err := agent.InitNewServer(*cfg)
	if err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() { errCh <- srv.Listen(ctx) }()
	go func() { errCh <- srv.StartManagement() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Received signal")
	case runErr = <-errCh:
		if runErr != nil {
			log.Error().Err(runErr).Msg("Server failed")
		}
	case <-ctx.Done():
		runErr = ctx.Err()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for _, err := range srv.Shutdown(shutdownCtx) {
		log.Error().Err(err).Msg("Shutdown error")
	}

	return runErr
}
