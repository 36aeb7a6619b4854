package main

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"luwei/internal/platform/config"
	"luwei/internal/platform/database"
)

func migrateCmd() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "migrate [up|down|version]",
		Short: "Apply or roll back database migrations",
		Long: `Apply or roll back the embedded schema migrations against DATABASE_URL.

Examples:
  luwei migrate up
  luwei migrate down --steps 1
  luwei migrate version`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			m, err := database.NewMigrator(cfg.Database.URL)
			if err != nil {
				return err
			}
			defer m.Close()

			out := cmd.OutOrStdout()
			switch args[0] {
			case "up":
				err = m.Up()
			case "down":
				if steps <= 0 {
					return errors.New("down needs --steps greater than zero")
				}
				err = m.Steps(-steps)
			case "version":
				v, dirty, verr := m.Version()
				if errors.Is(verr, migrate.ErrNilVersion) {
					fmt.Fprintln(out, "no migrations applied")
					return nil
				}
				if verr != nil {
					return verr
				}
				fmt.Fprintf(out, "version %d (dirty=%t)\n", v, dirty)
				return nil
			default:
				return fmt.Errorf("unknown direction %q", args[0])
			}
			if errors.Is(err, migrate.ErrNoChange) {
				fmt.Fprintln(out, "schema already up to date")
				return nil
			}
			if err != nil {
				return fmt.Errorf("migrate %s: %w", args[0], err)
			}
			fmt.Fprintf(out, "migrate %s done\n", args[0])
			return nil
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	return cmd
}
