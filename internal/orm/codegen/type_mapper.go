package codegen

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/entityframe/internal/orm/relational"
)

// postgresColumnType maps a store type to a PostgreSQL column type
func postgresColumnType(col *relational.Column) (string, error) {
	if col == nil {
		return "", fmt.Errorf("column cannot be nil")
	}

	var base string
	switch col.StoreType {
	case relational.TypeString:
		if col.MaxLength > 0 {
			base = fmt.Sprintf("VARCHAR(%d)", col.MaxLength)
		} else {
			base = "TEXT"
		}
	case relational.TypeInt16:
		base = "SMALLINT"
	case relational.TypeInt32:
		base = "INTEGER"
	case relational.TypeInt64:
		base = "BIGINT"
	case relational.TypeFloat32:
		base = "REAL"
	case relational.TypeFloat64:
		base = "DOUBLE PRECISION"
	case relational.TypeBool:
		base = "BOOLEAN"
	case relational.TypeTime:
		base = "TIMESTAMP WITH TIME ZONE"
	case relational.TypeUUID:
		base = "UUID"
	case relational.TypeBytes:
		base = "BYTEA"
	default:
		return "", fmt.Errorf("unsupported type: %s", col.StoreType)
	}

	if col.Identity && col.StoreType.IsInteger() {
		base += " GENERATED BY DEFAULT AS IDENTITY"
	}
	return base, nil
}

// sqliteColumnType maps a store type to a SQLite declared type. Integer columns are
// declared INTEGER so a single-column integer primary key aliases the rowid.
func sqliteColumnType(col *relational.Column) (string, error) {
	if col == nil {
		return "", fmt.Errorf("column cannot be nil")
	}

	switch col.StoreType {
	case relational.TypeString, relational.TypeUUID:
		return "TEXT", nil
	case relational.TypeInt16, relational.TypeInt32, relational.TypeInt64:
		return "INTEGER", nil
	case relational.TypeFloat32, relational.TypeFloat64:
		return "REAL", nil
	case relational.TypeBool:
		return "BOOLEAN", nil
	case relational.TypeTime:
		// go-sqlite3 parses DATETIME columns into time.Time
		return "DATETIME", nil
	case relational.TypeBytes:
		return "BLOB", nil
	default:
		return "", fmt.Errorf("unsupported type: %s", col.StoreType)
	}
}

// mapNullability returns the NULL/NOT NULL constraint for a column
func mapNullability(col *relational.Column) string {
	if col.Nullable {
		return "NULL"
	}
	return "NOT NULL"
}

// QuoteIdentifier wraps a SQL identifier in double quotes and escapes internal quotes
// This prevents SQL injection in table and column names
func QuoteIdentifier(identifier string) string {
	escaped := strings.ReplaceAll(identifier, `"`, `""`)
	return fmt.Sprintf(`"%s"`, escaped)
}

func quoteAll(d Dialect, names []string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = d.QuoteIdentifier(name)
	}
	return strings.Join(quoted, ", ")
}
