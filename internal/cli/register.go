package cli

import (
	"context"
	"fmt"

	"github.com/bissquit/healthboard/internal/app"
	"github.com/bissquit/healthboard/internal/health"
	healthpostgres "github.com/bissquit/healthboard/internal/health/postgres"
	"github.com/spf13/cobra"
)

var registerCmd = &cobra.Command{
	Use:   "register-health-checks",
	Short: "Create or reset the services backed by built-in health checks",
	Long: `Upsert one service per built-in health check, keyed by slug. Every
registered service starts red until its check first passes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Database.ConnectTimeout)
		defer cancel()

		db, err := app.Connect(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		svc := health.NewService(healthpostgres.NewRepository(db), nil, nil)
		services, err := svc.RegisterBuiltinServices(ctx)
		if err != nil {
			return err
		}

		for _, s := range services {
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s (%s)\n", s.Slug, s.ID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(registerCmd)
}
