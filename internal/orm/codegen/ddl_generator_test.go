package codegen

import (
	"database/sql"
	"errors"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/conduit-lang/entityframe/internal/orm/relational"
)

func testSchema() *relational.Schema {
	return &relational.Schema{
		Version: relational.SnapshotVersion,
		Tables: []*relational.Table{
			{
				Name: "customers",
				Columns: []*relational.Column{
					{Name: "id", StoreType: relational.TypeInt64, Identity: true},
					{Name: "code", StoreType: relational.TypeString, MaxLength: 5},
					{Name: "name", StoreType: relational.TypeString, MaxLength: 40},
					{Name: "active", StoreType: relational.TypeBool},
				},
				PrimaryKey:        &relational.KeyConstraint{Name: "pk_customers", Columns: []string{"id"}},
				UniqueConstraints: []*relational.KeyConstraint{{Name: "ak_customers_code", Columns: []string{"code"}}},
			},
			{
				Name: "orders",
				Columns: []*relational.Column{
					{Name: "id", StoreType: relational.TypeUUID},
					{Name: "customer_id", StoreType: relational.TypeInt64},
					{Name: "placed", StoreType: relational.TypeTime},
					{Name: "note", StoreType: relational.TypeString, Nullable: true},
				},
				PrimaryKey: &relational.KeyConstraint{Name: "pk_orders", Columns: []string{"id"}},
				ForeignKeys: []*relational.ForeignKeyConstraint{{
					Name:             "fk_orders_customers_customer_id",
					Columns:          []string{"customer_id"},
					PrincipalTable:   "customers",
					PrincipalColumns: []string{"id"},
					OnDelete:         "CASCADE",
				}},
				Indexes: []*relational.Index{{Name: "ix_orders_customer_id", Columns: []string{"customer_id"}}},
			},
		},
	}
}

func assertContains(t *testing.T, got string, expected ...string) {
	t.Helper()
	for _, exp := range expected {
		if !strings.Contains(got, exp) {
			t.Errorf("missing %q\nGot:\n%s", exp, got)
		}
	}
}

func TestDDLGenerator_GenerateCreateTable_Postgres(t *testing.T) {
	gen := NewDDLGenerator(Postgres{})
	s := testSchema()

	result, err := gen.GenerateCreateTable(s.Tables[0])
	if err != nil {
		t.Fatalf("GenerateCreateTable() error = %v", err)
	}

	assertContains(t, result,
		`CREATE TABLE IF NOT EXISTS "customers" (`,
		`"id" BIGINT GENERATED BY DEFAULT AS IDENTITY NOT NULL,`,
		`"name" VARCHAR(40) NOT NULL,`,
		`"active" BOOLEAN NOT NULL,`,
		`CONSTRAINT "pk_customers" PRIMARY KEY ("id"),`,
		`CONSTRAINT "ak_customers_code" UNIQUE ("code")`,
	)
	if strings.Contains(result, "CHECK") {
		t.Errorf("postgres should not emit length checks:\n%s", result)
	}

	orders, err := gen.GenerateCreateTable(s.Tables[1])
	if err != nil {
		t.Fatalf("GenerateCreateTable() error = %v", err)
	}
	assertContains(t, orders, `"id" UUID NOT NULL`, `"placed" TIMESTAMP WITH TIME ZONE NOT NULL`, `"note" TEXT NULL`)
	if strings.Contains(orders, "FOREIGN KEY") {
		t.Errorf("postgres foreign keys belong in ALTER TABLE statements:\n%s", orders)
	}
}

func TestDDLGenerator_GenerateCreateTable_SQLite(t *testing.T) {
	gen := NewDDLGenerator(SQLite{})
	s := testSchema()

	customers, err := gen.GenerateCreateTable(s.Tables[0])
	if err != nil {
		t.Fatalf("GenerateCreateTable() error = %v", err)
	}
	assertContains(t, customers,
		`"id" INTEGER NOT NULL,`,
		`"name" TEXT NOT NULL CHECK (LENGTH("name") <= 40),`,
	)

	orders, err := gen.GenerateCreateTable(s.Tables[1])
	if err != nil {
		t.Fatalf("GenerateCreateTable() error = %v", err)
	}
	assertContains(t, orders,
		`"placed" DATETIME NOT NULL`,
		`CONSTRAINT "fk_orders_customers_customer_id" FOREIGN KEY ("customer_id") REFERENCES "customers" ("id") ON DELETE CASCADE`,
	)
}

func TestDDLGenerator_GenerateCreateTable_Errors(t *testing.T) {
	gen := NewDDLGenerator(Postgres{})

	if _, err := gen.GenerateCreateTable(nil); err == nil {
		t.Error("expected error for nil table")
	}
	if _, err := gen.GenerateCreateTable(&relational.Table{Name: "empty"}); err == nil {
		t.Error("expected error for table without columns")
	}
	_, err := gen.GenerateCreateTable(&relational.Table{
		Name:    "bad",
		Columns: []*relational.Column{{Name: "x", StoreType: "decimal"}},
	})
	if err == nil || !strings.Contains(err.Error(), "unsupported type") {
		t.Errorf("expected unsupported type error, got %v", err)
	}
}

func TestDDLGenerator_GenerateSchema(t *testing.T) {
	gen := NewDDLGenerator(Postgres{})

	statements, err := gen.SchemaStatements(testSchema())
	if err != nil {
		t.Fatalf("SchemaStatements() error = %v", err)
	}
	if len(statements) != 4 {
		t.Fatalf("expected 4 statements, got %d: %v", len(statements), statements)
	}
	if !strings.HasPrefix(statements[0], `CREATE TABLE IF NOT EXISTS "customers"`) {
		t.Errorf("principal table should come first, got %s", statements[0])
	}
	expectedFK := `ALTER TABLE "orders" ADD CONSTRAINT "fk_orders_customers_customer_id" FOREIGN KEY ("customer_id") REFERENCES "customers" ("id") ON DELETE CASCADE;`
	if statements[2] != expectedFK {
		t.Errorf("statement 2 = %s, want %s", statements[2], expectedFK)
	}
	expectedIndex := `CREATE INDEX IF NOT EXISTS "ix_orders_customer_id" ON "orders" ("customer_id");`
	if statements[3] != expectedIndex {
		t.Errorf("statement 3 = %s, want %s", statements[3], expectedIndex)
	}

	ddl, err := gen.GenerateSchema(testSchema())
	if err != nil {
		t.Fatalf("GenerateSchema() error = %v", err)
	}
	if !strings.HasSuffix(ddl, ";\n") || strings.Count(ddl, "\n\n") != 3 {
		t.Errorf("unexpected layout:\n%s", ddl)
	}
}

func TestDDLGenerator_AlterStatements(t *testing.T) {
	pg := NewDDLGenerator(Postgres{})
	lite := NewDDLGenerator(SQLite{})

	t.Run("drop table", func(t *testing.T) {
		if got := pg.GenerateDropTable("orders"); got != `DROP TABLE IF EXISTS "orders" CASCADE;` {
			t.Errorf("got %s", got)
		}
		if got := lite.GenerateDropTable("orders"); got != `DROP TABLE IF EXISTS "orders";` {
			t.Errorf("got %s", got)
		}
	})

	t.Run("columns", func(t *testing.T) {
		col := &relational.Column{Name: "rating", StoreType: relational.TypeInt32, Nullable: true}
		got, err := pg.GenerateAddColumn("orders", col)
		if err != nil {
			t.Fatal(err)
		}
		if got != `ALTER TABLE "orders" ADD COLUMN "rating" INTEGER NULL;` {
			t.Errorf("got %s", got)
		}
		if got := lite.GenerateDropColumn("orders", "rating"); got != `ALTER TABLE "orders" DROP COLUMN "rating";` {
			t.Errorf("got %s", got)
		}
	})

	t.Run("alter column", func(t *testing.T) {
		from := &relational.Column{Name: "rating", StoreType: relational.TypeInt32, Nullable: true}
		to := &relational.Column{Name: "rating", StoreType: relational.TypeInt64, Identity: true}
		got, err := pg.GenerateAlterColumn("orders", from, to)
		if err != nil {
			t.Fatal(err)
		}
		expected := []string{
			`ALTER TABLE "orders" ALTER COLUMN "rating" TYPE BIGINT;`,
			`ALTER TABLE "orders" ALTER COLUMN "rating" SET NOT NULL;`,
			`ALTER TABLE "orders" ALTER COLUMN "rating" ADD GENERATED BY DEFAULT AS IDENTITY;`,
		}
		if strings.Join(got, "\n") != strings.Join(expected, "\n") {
			t.Errorf("got %v, want %v", got, expected)
		}

		if _, err := lite.GenerateAlterColumn("orders", from, to); !errors.Is(err, ErrUnsupported) {
			t.Errorf("expected ErrUnsupported, got %v", err)
		}
	})

	t.Run("constraints", func(t *testing.T) {
		uc := &relational.KeyConstraint{Name: "ak_orders_note", Columns: []string{"note"}}
		got, err := pg.Constraints().GenerateAddUniqueConstraint("orders", uc)
		if err != nil {
			t.Fatal(err)
		}
		if got != `ALTER TABLE "orders" ADD CONSTRAINT "ak_orders_note" UNIQUE ("note");` {
			t.Errorf("got %s", got)
		}
		got, err = pg.Constraints().GenerateDropConstraint("orders", "ak_orders_note")
		if err != nil {
			t.Fatal(err)
		}
		if got != `ALTER TABLE "orders" DROP CONSTRAINT IF EXISTS "ak_orders_note";` {
			t.Errorf("got %s", got)
		}
		if _, err := lite.Constraints().GenerateAddUniqueConstraint("orders", uc); !errors.Is(err, ErrUnsupported) {
			t.Errorf("expected ErrUnsupported, got %v", err)
		}
	})

	t.Run("indexes", func(t *testing.T) {
		idx := &relational.Index{Name: "ix_orders_placed_note", Columns: []string{"placed", "note"}, Unique: true}
		if got := pg.GenerateCreateIndex("orders", idx); got != `CREATE UNIQUE INDEX IF NOT EXISTS "ix_orders_placed_note" ON "orders" ("placed", "note");` {
			t.Errorf("got %s", got)
		}
		if got := pg.GenerateDropIndex("ix_orders_placed_note"); got != `DROP INDEX IF EXISTS "ix_orders_placed_note";` {
			t.Errorf("got %s", got)
		}
	})
}

func TestDDLGenerator_ExecutesOnSQLite(t *testing.T) {
	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	statements, err := NewDDLGenerator(SQLite{}).SchemaStatements(testSchema())
	if err != nil {
		t.Fatalf("SchemaStatements() error = %v", err)
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("exec %s: %v", stmt, err)
		}
	}

	if _, err := db.Exec(`INSERT INTO "customers" ("id", "code", "name", "active") VALUES (1, 'ALFKI', 'Alfreds', 1)`); err != nil {
		t.Fatalf("insert customer: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO "orders" ("id", "customer_id", "placed") VALUES ('a', 1, CURRENT_TIMESTAMP)`); err != nil {
		t.Fatalf("insert order: %v", err)
	}

	if _, err := db.Exec(`INSERT INTO "orders" ("id", "customer_id", "placed") VALUES ('b', 42, CURRENT_TIMESTAMP)`); err == nil {
		t.Error("expected foreign key violation")
	}
	if _, err := db.Exec(`INSERT INTO "customers" ("id", "code", "name", "active") VALUES (2, 'ALFKI', 'Other', 0)`); err == nil {
		t.Error("expected unique violation")
	}
	if _, err := db.Exec(`INSERT INTO "customers" ("id", "code", "name", "active") VALUES (3, 'X', ?, 0)`, strings.Repeat("n", 41)); err == nil {
		t.Error("expected length check violation")
	}

	if _, err := db.Exec(`DELETE FROM "customers" WHERE "id" = 1`); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM "orders"`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("expected cascade delete, %d orders left", count)
	}
}

func TestDialectByName(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"postgres", "postgres"},
		{"PostgreSQL", "postgres"},
		{"sqlite3", "sqlite"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := DialectByName(tt.name)
			if err != nil {
				t.Fatal(err)
			}
			if d.Name() != tt.expected {
				t.Errorf("Name() = %s, want %s", d.Name(), tt.expected)
			}
		})
	}

	if _, err := DialectByName("oracle"); err == nil {
		t.Error("expected error for unknown dialect")
	}
	if got := (Postgres{}).Placeholder(3); got != "$3" {
		t.Errorf("Placeholder(3) = %s", got)
	}
	if got := (SQLite{}).Placeholder(3); got != "?" {
		t.Errorf("Placeholder(3) = %s", got)
	}
	if got := (Postgres{}).QuoteIdentifier(`we"ird`); got != `"we""ird"` {
		t.Errorf("QuoteIdentifier = %s", got)
	}
}
