package cli

import (
	"github.com/bissquit/healthboard/internal/pkg/postgres"
	"github.com/bissquit/healthboard/migrations"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply or roll back database migrations",
	Long:      "Apply all pending migrations (up, the default) or roll every migration back (down).",
	ValidArgs: []string{string(postgres.MigrateUp), string(postgres.MigrateDown)},
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	RunE: func(_ *cobra.Command, args []string) error {
		direction := postgres.MigrateUp
		if len(args) == 1 {
			direction = postgres.MigrateDirection(args[0])
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return postgres.Migrate(migrations.FS, cfg.Database.URL, direction)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
