// Package cli implements the healthboard command line.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/bissquit/healthboard/internal/config"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "healthboard",
	Short: "Service status board with health checks and incident events",
	Long: `healthboard tracks the status of monitored services. Status is rolled up
from incident events and from built-in health checks, and changes can be
pushed to a Mattermost webhook.

Configuration is read from an optional YAML file and HEALTHBOARD_* environment
variables, for example HEALTHBOARD_DATABASE__URL.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("HEALTHBOARD_CONFIG"),
		"path to YAML config file (env HEALTHBOARD_CONFIG)")
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}
