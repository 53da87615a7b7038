package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/pkg/logging"
)

func main() {
	logger := logging.Default().With("service", "migrate")

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the scheduling database schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		migrateCmd("up", "Apply all pending migrations", cobra.NoArgs, func(m *migrate.Migrate, _ []string) error {
			return m.Up()
		}),
		migrateCmd("down [n]", "Roll back n migrations (default 1)", cobra.MaximumNArgs(1), func(m *migrate.Migrate, args []string) error {
			n := 1
			if len(args) == 1 {
				var err error
				if n, err = strconv.Atoi(args[0]); err != nil || n <= 0 {
					return fmt.Errorf("n must be a positive integer, got %q", args[0])
				}
			}
			return m.Steps(-n)
		}),
		migrateCmd("force <version>", "Mark a version as applied without running it", cobra.ExactArgs(1), func(m *migrate.Migrate, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("version must be an integer, got %q", args[0])
			}
			return m.Force(v)
		}),
		migrateCmd("version", "Print the current schema version", cobra.NoArgs, func(m *migrate.Migrate, _ []string) error {
			v, dirty, err := m.Version()
			if errors.Is(err, migrate.ErrNilVersion) {
				fmt.Println("no migrations applied")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Printf("version=%d dirty=%t\n", v, dirty)
			return nil
		}),
	)

	if err := root.Execute(); err != nil {
		logger.Error().Err(err).Msg("migrate failed")
		os.Exit(1)
	}
}

func migrateCmd(use, short string, args cobra.PositionalArgs, fn func(m *migrate.Migrate, args []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			m, closeFn, err := db.NewMigrator(cfg.PostgresDSN)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := fn(m, args); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return err
			}
			return nil
		},
	}
}
