// Package codegen renders relational schemas as DDL for a SQL dialect
package codegen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/conduit-lang/entityframe/internal/orm/relational"
)

// ErrUnsupported is returned for statements a dialect cannot express
var ErrUnsupported = errors.New("not supported by dialect")

// Dialect describes the SQL flavor of a database
type Dialect interface {
	// Name returns the dialect name used in configuration
	Name() string
	// QuoteIdentifier quotes a table, column or constraint name
	QuoteIdentifier(name string) string
	// ColumnType returns the column type for col, including identity generation
	ColumnType(col *relational.Column) (string, error)
	// Placeholder returns the bind parameter for the nth argument, starting at 1
	Placeholder(n int) string
	// SupportsAlterAddConstraint reports whether constraints can be added to existing tables
	SupportsAlterAddConstraint() bool
	// EnforcesMaxLength reports whether sized string types are enforced by the store
	EnforcesMaxLength() bool
}

// DialectByName returns the dialect registered under name
func DialectByName(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pgx":
		return Postgres{}, nil
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	default:
		return nil, fmt.Errorf("unknown dialect %q", name)
	}
}

// Postgres is the PostgreSQL dialect
type Postgres struct{}

// Name returns "postgres"
func (Postgres) Name() string { return "postgres" }

// QuoteIdentifier quotes name with pq's quoting rules
func (Postgres) QuoteIdentifier(name string) string { return pq.QuoteIdentifier(name) }

// ColumnType maps a column to a PostgreSQL type
func (Postgres) ColumnType(col *relational.Column) (string, error) {
	return postgresColumnType(col)
}

// Placeholder returns $n
func (Postgres) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

// SupportsAlterAddConstraint returns true
func (Postgres) SupportsAlterAddConstraint() bool { return true }

// EnforcesMaxLength returns true
func (Postgres) EnforcesMaxLength() bool { return true }

// SQLite is the SQLite dialect
type SQLite struct{}

// Name returns "sqlite"
func (SQLite) Name() string { return "sqlite" }

// QuoteIdentifier wraps name in double quotes
func (SQLite) QuoteIdentifier(name string) string { return QuoteIdentifier(name) }

// ColumnType maps a column to a SQLite type affinity
func (SQLite) ColumnType(col *relational.Column) (string, error) {
	return sqliteColumnType(col)
}

// Placeholder returns ?
func (SQLite) Placeholder(int) string { return "?" }

// SupportsAlterAddConstraint returns false; SQLite only declares constraints in CREATE TABLE
func (SQLite) SupportsAlterAddConstraint() bool { return false }

// EnforcesMaxLength returns false
func (SQLite) EnforcesMaxLength() bool { return false }
