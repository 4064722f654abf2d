package commands

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/entityframe/internal/cli/config"
	"github.com/conduit-lang/entityframe/internal/cli/ui"
	"github.com/conduit-lang/entityframe/internal/orm/migrate"
)

var (
	migrateVerbose bool
	migrateYes     bool
)

// confirm asks a yes/no question. Tests replace it.
var confirm = defaultConfirm

func defaultConfirm(message string) (bool, error) {
	ok := false
	err := survey.AskOne(&survey.Confirm{Message: message, Default: false}, &ok)
	return ok, err
}

// validateMigrationSQL rejects migrations containing operations no generated
// migration produces
func validateMigrationSQL(sql string) error {
	dangerous := []string{
		"DROP DATABASE",
		"DROP SCHEMA",
		"TRUNCATE",
		"GRANT",
		"REVOKE",
	}

	upperSQL := strings.ToUpper(sql)
	for _, pattern := range dangerous {
		if strings.Contains(upperSQL, pattern) {
			return fmt.Errorf("migration contains potentially dangerous operation: %s", pattern)
		}
	}
	return nil
}

// categorizeDatabaseError returns a user-friendly error message based on the database error.
// In verbose mode, it returns the full error.
func categorizeDatabaseError(err error, verbose bool) string {
	if verbose {
		return err.Error()
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "syntax"):
		return "SQL syntax error - use --verbose for details"
	case strings.Contains(errStr, "constraint") || strings.Contains(errStr, "violates"):
		return "constraint violation - use --verbose for details"
	case strings.Contains(errStr, "does not exist") || strings.Contains(errStr, "no such"):
		return "referenced object does not exist - use --verbose for details"
	case strings.Contains(errStr, "already exists"):
		return "object already exists - use --verbose for details"
	case strings.Contains(errStr, "permission denied") || strings.Contains(errStr, "access denied"):
		return "permission denied - check database user privileges"
	}
	return "migration failed - use --verbose for details"
}

// NewMigrateCommand creates the migrate command
func NewMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply and roll back migrations",
		Long: `Run and manage database migrations.

Migrations are read from migrations.dir (default migrations/). Applied
migrations are recorded in the schema_migrations table together with their
down SQL, so they can be rolled back even after the files change.

Available subcommands:
  up       - Apply all pending migrations
  down     - Roll back the last migration
  status   - Show migration status
  rollback - Roll back every migration newer than a version`,
	}

	cmd.PersistentFlags().BoolVarP(&migrateVerbose, "verbose", "v", false, "Show detailed error messages")

	cmd.AddCommand(newMigrateUpCommand())
	cmd.AddCommand(newMigrateDownCommand())
	cmd.AddCommand(newMigrateStatusCommand())
	cmd.AddCommand(newMigrateRollbackCommand())

	return cmd
}

// migrateEnv is what every migrate subcommand needs
type migrateEnv struct {
	cfg        *config.Config
	logger     *zap.Logger
	db         *sql.DB
	runner     *migrate.Runner
	migrations []*migrate.Migration
}

func (e *migrateEnv) Close() {
	e.db.Close()
	e.logger.Sync()
}

func newMigrateEnv(ctx context.Context) (*migrateEnv, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	migrations, err := migrate.LoadDir(cfg.Migrations.Dir)
	if err != nil {
		return nil, err
	}

	db, dialect, err := openDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	runner := migrate.NewRunner(db, dialect, logger)
	if err := runner.Initialize(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	return &migrateEnv{cfg: cfg, logger: logger, db: db, runner: runner, migrations: migrations}, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newMigrateUpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Run all pending migrations",
		Args:  cobra.NoArgs,
		RunE:  runMigrateUp,
	}
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	env, err := newMigrateEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	if len(env.migrations) == 0 {
		fmt.Fprint(out, ui.Info(fmt.Sprintf("No migration files found in %s", env.cfg.Migrations.Dir), noColor))
		return nil
	}

	for _, m := range env.migrations {
		if err := validateMigrationSQL(m.Up); err != nil {
			return fmt.Errorf("migration %d_%s: %w", m.Version, m.Name, err)
		}
	}

	status, err := env.runner.Status(ctx, env.migrations)
	if err != nil {
		return err
	}
	for _, m := range status.Pending {
		if m.Breaking || m.DataLoss {
			fmt.Fprint(out, ui.Warning(fmt.Sprintf("%d_%s is marked for review", m.Version, m.Name), nil, noColor))
		}
	}

	applied, err := env.runner.MigrateUp(ctx, env.migrations)
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.MigrationError(categorizeDatabaseError(err, migrateVerbose),
			[]string{fmt.Sprintf("%d migration(s) applied before the failure", applied)}, noColor))
		return fmt.Errorf("migration failed")
	}

	if applied == 0 {
		fmt.Fprint(out, ui.Info("No pending migrations", noColor))
		return nil
	}
	ui.WriteSuccess(out, fmt.Sprintf("Applied %d migration(s)", applied), noColor)
	return nil
}

func newMigrateDownCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the last migration",
		Args:  cobra.NoArgs,
		RunE:  runMigrateDown,
	}
	cmd.Flags().BoolVarP(&migrateYes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func runMigrateDown(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	env, err := newMigrateEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	last, err := env.runner.Tracker().GetLast(ctx)
	if err != nil {
		return err
	}
	if last == nil {
		fmt.Fprint(out, ui.Info("No migrations to roll back", noColor))
		return nil
	}

	if !migrateYes {
		ok, err := confirm(fmt.Sprintf("Roll back %d_%s?", last.Version, last.Name))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprint(out, ui.Info("Rollback cancelled", noColor))
			return nil
		}
	}

	rolledBack, err := env.runner.MigrateDown(ctx)
	if err != nil {
		if errors.Is(err, migrate.ErrNoMigrations) {
			fmt.Fprint(out, ui.Info("No migrations to roll back", noColor))
			return nil
		}
		fmt.Fprint(cmd.ErrOrStderr(), ui.MigrationError(categorizeDatabaseError(err, migrateVerbose), nil, noColor))
		return fmt.Errorf("rollback failed")
	}

	ui.WriteSuccess(out, fmt.Sprintf("Rolled back %d_%s", rolledBack.Version, rolledBack.Name), noColor)
	return nil
}

func newMigrateStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE:  runMigrateStatus,
	}
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	env, err := newMigrateEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	status, err := env.runner.Status(ctx, env.migrations)
	if err != nil {
		return err
	}

	table := ui.NewTable(out, []string{"Version", "Name", "Status", "Applied at"}, &ui.TableOptions{NoColor: noColor})
	seen := make(map[int64]bool)
	for _, m := range status.Applied {
		seen[m.Version] = true
		table.AddRow(strconv.FormatInt(m.Version, 10), m.Name, "applied", m.AppliedAt.Format("2006-01-02 15:04:05"))
	}
	for _, m := range status.Pending {
		if !seen[m.Version] {
			table.AddRow(strconv.FormatInt(m.Version, 10), m.Name, "pending", "")
		}
	}
	if table.Len() > 0 {
		table.Render()
		fmt.Fprintln(out)
	}

	color.New(color.Bold).Fprintln(out, status.Summary())
	return nil
}

func newMigrateRollbackCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollback <version>",
		Short: "Roll back every migration newer than version",
		Long: `Roll back every applied migration with a version greater than the given one,
newest first. Use 0 to roll back everything.`,
		Args: cobra.ExactArgs(1),
		RunE: runMigrateRollback,
	}
	cmd.Flags().BoolVarP(&migrateYes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func runMigrateRollback(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	target, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || target < 0 {
		return fmt.Errorf("invalid version %q: expected a non-negative number", args[0])
	}

	env, err := newMigrateEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	if !migrateYes {
		ok, err := confirm(fmt.Sprintf("Roll back every migration newer than %d?", target))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprint(out, ui.Info("Rollback cancelled", noColor))
			return nil
		}
	}

	count, err := env.runner.MigrateDownTo(ctx, target)
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.MigrationError(categorizeDatabaseError(err, migrateVerbose),
			[]string{fmt.Sprintf("%d migration(s) rolled back before the failure", count)}, noColor))
		return fmt.Errorf("rollback failed")
	}

	if count == 0 {
		fmt.Fprint(out, ui.Info("No migrations to roll back", noColor))
		return nil
	}
	ui.WriteSuccess(out, fmt.Sprintf("Rolled back %d migration(s)", count), noColor)
	return nil
}
