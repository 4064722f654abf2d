package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/entityframe/internal/cli/ui"
	"github.com/conduit-lang/entityframe/internal/orm/migrate"
	"github.com/conduit-lang/entityframe/internal/orm/modelcache"
	"github.com/conduit-lang/entityframe/internal/orm/relational"
)

// SnapshotKey names the schema snapshot the migrations of a project are diffed against
const SnapshotKey = "schema"

var (
	migrationsDialectFlag string
	migrationsDryRunFlag  bool
)

// NewMigrationsCommand creates the migrations command
func NewMigrationsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrations",
		Short: "Generate and list migration files",
		Long: `Generate migrations by diffing the model against the last saved schema snapshot.

Each migration is a pair of files in migrations.dir:
  1700000000000_add_orders.up.sql
  1700000000000_add_orders.down.sql

The snapshot is stored next to the migrations, or in Redis when
migrations.snapshot_store is redis.`,
	}

	cmd.AddCommand(newMigrationsAddCommand())
	cmd.AddCommand(newMigrationsListCommand())

	return cmd
}

func newMigrationsAddCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [name]",
		Short: "Generate a migration for the model changes since the last snapshot",
		Long: `Generate a migration for the model changes since the last snapshot.

Without a name, one is derived from the changes (e.g. create_orders).`,
		Args: cobra.MaximumNArgs(1),
		RunE: runMigrationsAdd,
	}

	cmd.Flags().StringVarP(&modelFileFlag, "file", "f", "", "Model definition file")
	cmd.Flags().StringVar(&migrationsDialectFlag, "dialect", "", "SQL dialect: postgres or sqlite (default from config)")
	cmd.Flags().BoolVar(&migrationsDryRunFlag, "dry-run", false, "Print the migration without writing files or the snapshot")

	return cmd
}

func runMigrationsAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.ConfigError(err.Error(), noColor))
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	dialect, err := resolveDialect(cfg, migrationsDialectFlag)
	if err != nil {
		return err
	}

	m, err := buildModelForCommand(cmd)
	if err != nil {
		return err
	}
	current, err := relational.FromModel(m)
	if err != nil {
		return fmt.Errorf("failed to map model to tables: %w", err)
	}

	store, closeStore, err := openSnapshotStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	previous, err := modelcache.LoadOrEmpty(ctx, store, SnapshotKey)
	if err != nil {
		return err
	}

	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	migration, err := migrate.NewGenerator(dialect).GenerateMigration(previous, current, name)
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.MigrationError("could not generate migration", []string{err.Error()}, noColor))
		return err
	}
	if migration == nil {
		fmt.Fprint(out, ui.Info("No changes: the model matches the last snapshot", noColor))
		return nil
	}

	if migration.Breaking || migration.DataLoss {
		var details []string
		if migration.Breaking {
			details = append(details, "Contains breaking changes that need manual review")
		}
		if migration.DataLoss {
			details = append(details, "Drops tables or columns; existing data will be lost")
		}
		fmt.Fprint(out, ui.Warning("Review this migration before applying it", details, noColor))
	}

	if migrationsDryRunFlag {
		upName, downName := migrate.FileNames(migration)
		fmt.Fprintf(out, "-- %s\n%s\n-- %s\n%s", upName, migration.Up, downName, migration.Down)
		return nil
	}

	paths, err := migrate.WriteFiles(cfg.Migrations.Dir, migration)
	if err != nil {
		return err
	}
	if err := store.Save(ctx, SnapshotKey, current); err != nil {
		return fmt.Errorf("migration written but the snapshot was not saved: %w", err)
	}
	logger.Info("migration generated",
		zap.Int64("version", migration.Version),
		zap.String("name", migration.Name),
		zap.String("snapshot_store", cfg.Migrations.SnapshotStore))

	ui.WriteSuccess(out, fmt.Sprintf("Created migration %d_%s", migration.Version, migration.Name), noColor)
	for _, path := range paths {
		fmt.Fprintf(out, "  %s\n", path)
	}
	return nil
}

func newMigrationsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List migration files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			migrations, err := migrate.LoadDir(cfg.Migrations.Dir)
			if err != nil {
				return err
			}
			if len(migrations) == 0 {
				fmt.Fprint(cmd.OutOrStdout(), ui.Info(fmt.Sprintf("No migrations in %s", cfg.Migrations.Dir), noColor))
				return nil
			}

			table := ui.NewTable(cmd.OutOrStdout(), []string{"Version", "Name", "Created", "Down"}, &ui.TableOptions{NoColor: noColor})
			for _, mig := range migrations {
				down := "yes"
				if mig.Down == "" {
					down = "no"
				}
				created := time.UnixMilli(mig.Version).UTC().Format("2006-01-02 15:04:05")
				table.AddRow(strconv.FormatInt(mig.Version, 10), mig.Name, created, down)
			}
			table.Render()
			return nil
		},
	}
}
