// Package migrate provides migration management for database schema evolution
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/conduit-lang/entityframe/internal/orm/codegen"
	"github.com/conduit-lang/entityframe/internal/orm/relational"
)

// ErrNoMigrations is returned when there is nothing to roll back
var ErrNoMigrations = errors.New("no migrations")

// Migration represents a single database migration
type Migration struct {
	Version   int64     // Unix milliseconds for ordering
	Name      string    // Human-readable name
	Up        string    // SQL to apply
	Down      string    // SQL to rollback
	Applied   bool      // Whether this migration has been applied
	AppliedAt time.Time // When the migration was applied
	Breaking  bool      // Requires manual review
	DataLoss  bool      // May cause data loss
}

// Tracker manages migration history in the database
type Tracker struct {
	db      *sql.DB
	dialect codegen.Dialect
}

// NewTracker creates a new migration tracker
func NewTracker(db *sql.DB, dialect codegen.Dialect) *Tracker {
	return &Tracker{db: db, dialect: dialect}
}

func (t *Tracker) ph(n int) string {
	return t.dialect.Placeholder(n)
}

// Initialize ensures the schema_migrations table exists
func (t *Tracker) Initialize(ctx context.Context) error {
	versionType, err := t.dialect.ColumnType(&relational.Column{StoreType: relational.TypeInt64})
	if err != nil {
		return err
	}
	timeType, err := t.dialect.ColumnType(&relational.Column{StoreType: relational.TypeTime})
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS schema_migrations (
	version %s PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	applied_at %s NOT NULL DEFAULT CURRENT_TIMESTAMP,
	breaking BOOLEAN NOT NULL DEFAULT FALSE,
	data_loss BOOLEAN NOT NULL DEFAULT FALSE,
	up_sql TEXT,
	down_sql TEXT
)`, versionType, timeType)
	if _, err := t.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to initialize migrations table: %w", err)
	}

	index := "CREATE INDEX IF NOT EXISTS idx_schema_migrations_applied_at ON schema_migrations(applied_at)"
	if _, err := t.db.ExecContext(ctx, index); err != nil {
		return fmt.Errorf("failed to initialize migrations table: %w", err)
	}

	return nil
}

const selectMigrations = `
SELECT version, name, applied_at, breaking, data_loss, up_sql, down_sql
FROM schema_migrations
`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMigration(row scanner) (*Migration, error) {
	m := &Migration{Applied: true}
	var upSQL, downSQL sql.NullString
	if err := row.Scan(&m.Version, &m.Name, &m.AppliedAt, &m.Breaking, &m.DataLoss, &upSQL, &downSQL); err != nil {
		return nil, err
	}
	m.Up = upSQL.String
	m.Down = downSQL.String
	return m, nil
}

// GetApplied returns all applied migrations sorted by version
func (t *Tracker) GetApplied(ctx context.Context) ([]*Migration, error) {
	rows, err := t.db.QueryContext(ctx, selectMigrations+"ORDER BY version ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	var migrations []*Migration
	for rows.Next() {
		m, err := scanMigration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan migration: %w", err)
		}
		migrations = append(migrations, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating migrations: %w", err)
	}

	return migrations, nil
}

// GetLast returns the most recently applied migration, or nil if none exist
func (t *Tracker) GetLast(ctx context.Context) (*Migration, error) {
	m, err := scanMigration(t.db.QueryRowContext(ctx, selectMigrations+"ORDER BY version DESC\nLIMIT 1"))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last migration: %w", err)
	}
	return m, nil
}

// IsApplied checks if a migration version has been applied
func (t *Tracker) IsApplied(ctx context.Context, version int64) (bool, error) {
	query := "SELECT COUNT(*) FROM schema_migrations WHERE version = " + t.ph(1)
	var count int
	if err := t.db.QueryRowContext(ctx, query, version).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check migration status: %w", err)
	}
	return count > 0, nil
}

// Record marks a migration as applied in a transaction
func (t *Tracker) Record(ctx context.Context, tx *sql.Tx, m *Migration) error {
	query := fmt.Sprintf(`
INSERT INTO schema_migrations (version, name, breaking, data_loss, up_sql, down_sql)
VALUES (%s, %s, %s, %s, %s, %s)
`, t.ph(1), t.ph(2), t.ph(3), t.ph(4), t.ph(5), t.ph(6))
	_, err := tx.ExecContext(ctx, query, m.Version, m.Name, m.Breaking, m.DataLoss, m.Up, m.Down)
	if err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return nil
}

// Remove removes a migration record in a transaction
func (t *Tracker) Remove(ctx context.Context, tx *sql.Tx, version int64) error {
	query := "DELETE FROM schema_migrations WHERE version = " + t.ph(1)
	result, err := tx.ExecContext(ctx, query, version)
	if err != nil {
		return fmt.Errorf("failed to remove migration: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("migration version %d not found", version)
	}

	return nil
}

// GetPending returns migrations that haven't been applied yet
func (t *Tracker) GetPending(ctx context.Context, all []*Migration) ([]*Migration, error) {
	applied, err := t.GetApplied(ctx)
	if err != nil {
		return nil, err
	}

	appliedSet := make(map[int64]bool)
	for _, m := range applied {
		appliedSet[m.Version] = true
	}

	var pending []*Migration
	for _, m := range all {
		if !appliedSet[m.Version] {
			pending = append(pending, m)
		}
	}

	return pending, nil
}

// GetCount returns the total number of applied migrations
func (t *Tracker) GetCount(ctx context.Context) (int, error) {
	var count int
	if err := t.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get migration count: %w", err)
	}
	return count, nil
}
