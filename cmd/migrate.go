package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/storycast/internal/store/pg"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back managed-mode database migrations",
	}
	cmd.AddCommand(migrateRunCmd(pg.Up, "Apply all pending migrations"))
	cmd.AddCommand(migrateRunCmd(pg.Down, "Roll back the last migration"))
	return cmd
}

func migrateRunCmd(dir pg.Direction, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(dir),
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Database.Mode != "managed" {
				return fmt.Errorf("migrations apply to managed mode only (database.mode is %q)", cfg.Database.Mode)
			}
			version, err := pg.Migrate(cfg.Database.PostgresDSN, dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrated %s, schema version %d.\n", dir, version)
			return nil
		},
	}
}
