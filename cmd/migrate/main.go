// Command migrate applies and inspects the citation graph schema migrations.
//
//	migrate up          apply every pending migration
//	migrate up 2        apply the next two
//	migrate down 1      roll back the latest migration
//	migrate down --all  roll back everything
//	migrate status      log the applied version
//	migrate force 1     mark version 1 as applied and clean
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/helixir/citation-graph-service/internal/config"
	"github.com/helixir/citation-graph-service/internal/database"
	"github.com/helixir/citation-graph-service/internal/observability"
)

var (
	migrationsPath string
	connectTimeout time.Duration
	downAll        bool
)

var rootCmd = &cobra.Command{
	Use:          "migrate",
	Short:        "Manage the citation graph database schema",
	SilenceUsage: true,
}

var upCmd = &cobra.Command{
	Use:   "up [n]",
	Short: "Apply pending migrations, or only the next n",
	Args:  cobra.MatchAll(cobra.MaximumNArgs(1), optionalCount),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, _ := parseCount(args)
		return withMigrator(cmd.Context(), func(m *database.Migrator, _ zerolog.Logger) error {
			if n == 0 {
				return m.Up()
			}
			return m.Steps(n)
		})
	},
}

var downCmd = &cobra.Command{
	Use:   "down [n]",
	Short: "Roll back the latest n migrations, or all of them with --all",
	Args: cobra.MatchAll(cobra.MaximumNArgs(1), optionalCount, func(cmd *cobra.Command, args []string) error {
		switch {
		case downAll && len(args) == 1:
			return fmt.Errorf("--all takes no count")
		case !downAll && len(args) == 0:
			return fmt.Errorf("give a count or --all")
		}
		return nil
	}),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, _ := parseCount(args)
		return withMigrator(cmd.Context(), func(m *database.Migrator, logger zerolog.Logger) error {
			if downAll {
				logger.Warn().Msg("rolling back every migration")
				return m.Down()
			}
			logger.Warn().Int("steps", n).Msg("rolling back migrations")
			return m.Steps(-n)
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Log the applied migration version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd.Context(), func(*database.Migrator, zerolog.Logger) error {
			return nil
		})
	},
}

var forceCmd = &cobra.Command{
	Use:   "force <version>",
	Short: "Record version as applied and clear the dirty flag",
	Long: `force rewrites the schema_migrations row without running any SQL. Use it
after fixing a migration that failed halfway.`,
	Args: cobra.MatchAll(cobra.ExactArgs(1), func(cmd *cobra.Command, args []string) error {
		if _, err := parseVersion(args[0]); err != nil {
			return err
		}
		return nil
	}),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, _ := parseVersion(args[0])
		return withMigrator(cmd.Context(), func(m *database.Migrator, _ zerolog.Logger) error {
			return m.Force(version)
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&migrationsPath, "path", "", "migrations directory (default from config)")
	rootCmd.PersistentFlags().DurationVar(&connectTimeout, "timeout", 30*time.Second, "database connection timeout")
	downCmd.Flags().BoolVar(&downAll, "all", false, "roll back every migration")

	rootCmd.AddCommand(upCmd, downCmd, statusCmd, forceCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// optionalCount accepts no argument or one positive integer.
func optionalCount(_ *cobra.Command, args []string) error {
	_, err := parseCount(args)
	return err
}

// parseCount returns the step count in args, or 0 when there is none.
func parseCount(args []string) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("count must be a positive integer, got %q", args[0])
	}
	return n, nil
}

func parseVersion(arg string) (int, error) {
	v, err := strconv.Atoi(arg)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("version must be a non-negative integer, got %q", arg)
	}
	return v, nil
}

// withMigrator connects to the configured database, runs fn and logs the
// resulting schema version.
func withMigrator(ctx context.Context, fn func(*database.Migrator, zerolog.Logger) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      "info",
		Format:     "console",
		Output:     "stderr",
		TimeFormat: time.RFC3339,
		Service:    "citation-graph-migrate",
	})

	dir := cfg.Database.MigrationPath
	if migrationsPath != "" {
		dir = migrationsPath
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	db, err := database.New(connectCtx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	migrator, err := database.NewMigrator(db, dir, logger)
	if err != nil {
		return fmt.Errorf("open migrations in %s: %w", dir, err)
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close migrator")
		}
	}()

	if err := fn(migrator, logger); err != nil {
		return err
	}
	logStatus(migrator, logger)
	return nil
}

func logStatus(migrator *database.Migrator, logger zerolog.Logger) {
	status, err := migrator.Status()
	switch {
	case err != nil:
		logger.Warn().Err(err).Msg("could not read schema version")
	case status.Pristine:
		logger.Info().Msg("schema has no migration applied")
	default:
		logger.Info().
			Uint("version", status.Version).
			Bool("dirty", status.Dirty).
			Msg("schema version")
	}
}
