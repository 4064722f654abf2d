package commands

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()

	if cmd.Use != "entityframe" {
		t.Errorf("expected Use to be 'entityframe', got %s", cmd.Use)
	}
	if cmd.Short == "" || cmd.Long == "" {
		t.Error("expected Short and Long descriptions to be set")
	}

	expectedCommands := []string{"version", "model", "ddl", "migrations", "migrate", "db", "repro"}
	for _, expected := range expectedCommands {
		found := false
		for _, sub := range cmd.Commands() {
			if sub.Name() == expected {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected command %s to be registered", expected)
		}
	}

	if cmd.PersistentFlags().Lookup("config") == nil {
		t.Error("expected --config persistent flag")
	}
}

func TestNewVersionCommand(t *testing.T) {
	Version = "1.0.0-test"
	GitCommit = "abc123"
	BuildDate = "2025-01-01"
	GoVersion = "go1.23"

	cmd := NewVersionCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.Run(cmd, []string{})

	out := buf.String()
	for _, want := range []string{"1.0.0-test", "abc123", "2025-01-01", "go1.23"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected version output to contain %q, got:\n%s", want, out)
		}
	}
}
