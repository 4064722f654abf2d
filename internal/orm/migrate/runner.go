package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/conduit-lang/entityframe/internal/orm/codegen"
)

// Runner executes migrations with transaction support
type Runner struct {
	db      *sql.DB
	tracker *Tracker
	logger  *zap.Logger
}

// NewRunner creates a new migration runner. A nil logger discards output.
func NewRunner(db *sql.DB, dialect codegen.Dialect, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		db:      db,
		tracker: NewTracker(db, dialect),
		logger:  logger,
	}
}

// Tracker returns the runner's migration history tracker
func (r *Runner) Tracker() *Tracker {
	return r.tracker
}

// Initialize sets up the migration tracking table
func (r *Runner) Initialize(ctx context.Context) error {
	return r.tracker.Initialize(ctx)
}

// MigrateUp applies all pending migrations and returns how many were applied
func (r *Runner) MigrateUp(ctx context.Context, migrations []*Migration) (int, error) {
	pending, err := r.tracker.GetPending(ctx, migrations)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending migrations: %w", err)
	}

	if len(pending) == 0 {
		r.logger.Info("no pending migrations")
		return 0, nil
	}

	r.logger.Info("found pending migrations", zap.Int("count", len(pending)))

	for i, migration := range pending {
		if err := r.applyMigration(ctx, migration); err != nil {
			return i, fmt.Errorf("migration %s failed: %w", migration.Name, err)
		}
		r.logger.Info("applied migration", zap.Int64("version", migration.Version), zap.String("name", migration.Name))
	}

	return len(pending), nil
}

// MigrateDown rolls back the last migration and returns it
func (r *Runner) MigrateDown(ctx context.Context) (*Migration, error) {
	last, err := r.tracker.GetLast(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get last migration: %w", err)
	}

	if last == nil {
		return nil, fmt.Errorf("%w to rollback", ErrNoMigrations)
	}

	if last.Down == "" {
		return nil, fmt.Errorf("migration %s has no down migration", last.Name)
	}

	if err := r.rollbackMigration(ctx, last); err != nil {
		return nil, fmt.Errorf("rollback failed: %w", err)
	}

	r.logger.Info("rolled back migration", zap.Int64("version", last.Version), zap.String("name", last.Name))
	return last, nil
}

// MigrateDownTo rolls back migrations newer than targetVersion and returns how many
// were rolled back
func (r *Runner) MigrateDownTo(ctx context.Context, targetVersion int64) (int, error) {
	applied, err := r.tracker.GetApplied(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	var toRollback []*Migration
	for i := len(applied) - 1; i >= 0; i-- {
		if applied[i].Version > targetVersion {
			toRollback = append(toRollback, applied[i])
		}
	}

	if len(toRollback) == 0 {
		r.logger.Info("no migrations to rollback")
		return 0, nil
	}

	for i, migration := range toRollback {
		if migration.Down == "" {
			return i, fmt.Errorf("migration %s has no down migration", migration.Name)
		}

		if err := r.rollbackMigration(ctx, migration); err != nil {
			return i, fmt.Errorf("rollback of %s failed: %w", migration.Name, err)
		}

		r.logger.Info("rolled back migration", zap.Int64("version", migration.Version), zap.String("name", migration.Name))
	}

	return len(toRollback), nil
}

// applyMigration applies a single migration in a transaction
func (r *Runner) applyMigration(ctx context.Context, migration *Migration) error {
	start := time.Now()

	if migration.Up == "" {
		return fmt.Errorf("migration has no up SQL")
	}

	if migration.Breaking {
		r.logger.Warn("migration contains breaking changes", zap.String("name", migration.Name))
	}
	if migration.DataLoss {
		r.logger.Warn("migration may cause data loss", zap.String("name", migration.Name))
	}

	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, migration.Up); err != nil {
			return fmt.Errorf("failed to execute migration SQL: %w", err)
		}
		return r.tracker.Record(ctx, tx, migration)
	})
	if err != nil {
		return err
	}

	r.logger.Debug("migration finished", zap.String("name", migration.Name), zap.Duration("took", time.Since(start)))
	return nil
}

// rollbackMigration rolls back a single migration in a transaction
func (r *Runner) rollbackMigration(ctx context.Context, migration *Migration) error {
	start := time.Now()

	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, migration.Down); err != nil {
			return fmt.Errorf("failed to execute rollback SQL: %w", err)
		}
		if err := r.tracker.Remove(ctx, tx, migration.Version); err != nil {
			return fmt.Errorf("failed to remove migration record: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Debug("rollback finished", zap.String("name", migration.Name), zap.Duration("took", time.Since(start)))
	return nil
}

func (r *Runner) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			r.logger.Warn("failed to rollback transaction", zap.Error(err))
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Status returns the current migration status
func (r *Runner) Status(ctx context.Context, allMigrations []*Migration) (*MigrationStatus, error) {
	applied, err := r.tracker.GetApplied(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	pending, err := r.tracker.GetPending(ctx, allMigrations)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending migrations: %w", err)
	}

	var lastApplied *Migration
	if len(applied) > 0 {
		lastApplied = applied[len(applied)-1]
	}

	return &MigrationStatus{
		Total:       len(allMigrations),
		Applied:     applied,
		Pending:     pending,
		LastApplied: lastApplied,
	}, nil
}

// MigrationStatus represents the current state of migrations
type MigrationStatus struct {
	Total       int
	Applied     []*Migration
	Pending     []*Migration
	LastApplied *Migration
}

// Summary returns a human-readable summary
func (s *MigrationStatus) Summary() string {
	return fmt.Sprintf("Total: %d migrations (%d applied, %d pending)",
		s.Total,
		len(s.Applied),
		len(s.Pending))
}
