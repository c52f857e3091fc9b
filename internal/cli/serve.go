package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bissquit/healthboard/internal/app"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, health checks and notifier",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		application, err := app.New(cfg)
		if err != nil {
			return fmt.Errorf("initializing app: %w", err)
		}

		runErr := make(chan error, 1)
		go func() { runErr <- application.Run(ctx) }()

		select {
		case err = <-runErr:
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		return errors.Join(err, application.Shutdown(shutdownCtx))
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
