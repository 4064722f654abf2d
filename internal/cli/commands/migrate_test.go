package commands

import (
	"fmt"
	"strings"
	"testing"
)

func TestNewMigrateCommand(t *testing.T) {
	cmd := NewMigrateCommand()

	if cmd.Use != "migrate" {
		t.Errorf("expected Use to be 'migrate', got %s", cmd.Use)
	}

	for _, expected := range []string{"up", "down", "status", "rollback"} {
		found := false
		for _, sub := range cmd.Commands() {
			if sub.Name() == expected {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected subcommand %s to be registered", expected)
		}
	}
}

func TestCategorizeDatabaseError(t *testing.T) {
	testCases := []struct {
		name           string
		err            error
		verbose        bool
		expectedSubstr string
	}{
		{"verbose keeps the message", fmt.Errorf("syntax error at or near \"CRATE\""), true, "syntax error at or near"},
		{"syntax error", fmt.Errorf("syntax error at or near \"CRATE\""), false, "SQL syntax error"},
		{"constraint violation", fmt.Errorf("violates foreign key constraint"), false, "constraint violation"},
		{"postgres missing relation", fmt.Errorf("relation \"orders\" does not exist"), false, "does not exist"},
		{"sqlite missing table", fmt.Errorf("no such table: orders"), false, "does not exist"},
		{"already exists", fmt.Errorf("table \"orders\" already exists"), false, "already exists"},
		{"permission denied", fmt.Errorf("permission denied for table orders"), false, "permission denied"},
		{"anything else", fmt.Errorf("connection reset"), false, "migration failed"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := categorizeDatabaseError(tc.err, tc.verbose)
			if !strings.Contains(got, tc.expectedSubstr) {
				t.Errorf("expected %q to contain %q", got, tc.expectedSubstr)
			}
		})
	}
}

func TestValidateMigrationSQL(t *testing.T) {
	testCases := []struct {
		name    string
		sql     string
		wantErr bool
	}{
		{"create table", `CREATE TABLE IF NOT EXISTS "orders" ("id" BIGINT NOT NULL);`, false},
		{"drop table", `DROP TABLE IF EXISTS "orders" CASCADE;`, false},
		{"drop database", "DROP DATABASE northwind;", true},
		{"truncate lower case", "truncate orders;", true},
		{"grant", "GRANT ALL ON orders TO public;", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateMigrationSQL(tc.sql)
			if (err != nil) != tc.wantErr {
				t.Errorf("validateMigrationSQL() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
