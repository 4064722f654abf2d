package ui

import (
	"bytes"
	"strings"
	"testing"
)

func TestFormatError(t *testing.T) {
	tests := []struct {
		name     string
		opts     ErrorOptions
		contains []string
	}{
		{
			name: "error with context",
			opts: ErrorOptions{Context: "entity not found", Problem: "Cannot find entity type 'Ordr'."},
			contains: []string{
				"✗ ENTITY NOT FOUND: Cannot find entity type 'Ordr'.",
			},
		},
		{
			name: "details are indented line by line",
			opts: ErrorOptions{Problem: "model validation failed", Details: []string{"Order: no key\n  hint: call Key"}},
			contains: []string{
				"   Order: no key\n",
				"     hint: call Key\n",
			},
		},
		{
			name: "suggestions",
			opts: ErrorOptions{Problem: "unknown", Suggestions: []string{"Order", "OrderDetail"}},
			contains: []string{
				"Did you mean: Order, OrderDetail?",
			},
		},
		{
			name: "help commands",
			opts: ErrorOptions{Problem: "failed", HelpCommands: []string{"Check migration status: entityframe migrate status"}},
			contains: []string{
				"→ Check migration status: entityframe migrate status",
			},
		},
		{
			name:     "warning",
			opts:     ErrorOptions{Level: ErrorLevelWarning, Problem: "drops column"},
			contains: []string{"! drops column"},
		},
		{
			name:     "info",
			opts:     ErrorOptions{Level: ErrorLevelInfo, Problem: "no changes"},
			contains: []string{"i no changes"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.NoColor = true
			got := FormatError(tt.opts)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("expected output to contain %q, got:\n%s", want, got)
				}
			}
		})
	}
}

func TestMessageHelpers(t *testing.T) {
	if got := EntityNotFoundError("Ordr", []string{"Order"}, true); !strings.Contains(got, "entityframe model show") {
		t.Errorf("EntityNotFoundError missing help command:\n%s", got)
	}
	if got := ModelError("model validation failed", []string{"Order: no key"}, true); !strings.Contains(got, "INVALID MODEL") {
		t.Errorf("ModelError missing context:\n%s", got)
	}
	if got := MigrationError("relation exists", nil, true); !strings.Contains(got, "entityframe migrate down") {
		t.Errorf("MigrationError missing rollback hint:\n%s", got)
	}
	if got := ConfigError("bad dialect", true); !strings.Contains(got, "CONFIGURATION ERROR: bad dialect") {
		t.Errorf("ConfigError unexpected output:\n%s", got)
	}
	if got := Info("up to date", true); got != "i up to date\n" {
		t.Errorf("Info = %q", got)
	}
}

func TestWriteSuccess(t *testing.T) {
	var buf bytes.Buffer
	WriteSuccess(&buf, "Applied 2 migrations", true)
	if buf.String() != "✓ Applied 2 migrations\n" {
		t.Errorf("unexpected output %q", buf.String())
	}
}
