package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ETAnderson/grader/internal/db"
	"github.com/ETAnderson/grader/internal/migrate"
	"github.com/ETAnderson/grader/internal/state"
)

func newMigrateCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQL migrations to the configured run store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := loadConfig()
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			res, err := state.NewStore(ctx, state.FactoryConfig{Backend: cfg.StateBackend, DSN: cfg.DSN})
			if err != nil {
				return err
			}
			if res.DB == nil {
				return fmt.Errorf("STATE_BACKEND=%q has no schema to migrate", cfg.StateBackend)
			}
			defer res.DB.Close()

			if err := db.Ping(ctx, res.DB); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
			applied, err := migrate.ApplyDir(ctx, res.DB, res.Dialect, dir)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "migrations root holding mysql/ and postgres/ (default MIGRATIONS_DIR)")
	return cmd
}
