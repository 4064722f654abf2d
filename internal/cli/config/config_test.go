package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	// Test loading with no config file (should use defaults)
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error loading defaults, got %v", err)
	}

	if cfg.Database.Dialect != "postgres" {
		t.Errorf("expected default dialect 'postgres', got %s", cfg.Database.Dialect)
	}
	if cfg.Model.File != "model.yml" {
		t.Errorf("expected default model file 'model.yml', got %s", cfg.Model.File)
	}
	if cfg.Migrations.Dir != "migrations" {
		t.Errorf("expected default migrations dir 'migrations', got %s", cfg.Migrations.Dir)
	}
	if cfg.Migrations.SnapshotStore != "file" {
		t.Errorf("expected default snapshot store 'file', got %s", cfg.Migrations.SnapshotStore)
	}
	if cfg.Redis.Prefix != "entityframe:" {
		t.Errorf("expected default redis prefix 'entityframe:', got %s", cfg.Redis.Prefix)
	}
	if cfg.Log.Format != "development" {
		t.Errorf("expected default log format 'development', got %s", cfg.Log.Format)
	}
	if cfg.Repro.Iterations != 100 || cfg.Repro.Concurrency != 4 {
		t.Errorf("unexpected repro defaults: %+v", cfg.Repro)
	}
	if cfg.Repro.Timeout != 30*time.Second {
		t.Errorf("expected default repro timeout 30s, got %s", cfg.Repro.Timeout)
	}
}

func TestLoadWithConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)
	t.Setenv("DATABASE_URL", "")

	configContent := `
database:
  url: file:northwind.db
  dialect: sqlite
model:
  file: models/shop.yml
migrations:
  dir: db/migrations
  snapshot_store: redis
redis:
  addr: cache:6379
  db: 2
repro:
  iterations: 10
  timeout: 5s
`
	os.WriteFile("entityframe.yaml", []byte(configContent), 0644)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error loading config, got %v", err)
	}

	if cfg.Database.URL != "file:northwind.db" {
		t.Errorf("expected database URL, got %s", cfg.Database.URL)
	}
	if cfg.Database.Dialect != "sqlite" {
		t.Errorf("expected dialect 'sqlite', got %s", cfg.Database.Dialect)
	}
	if cfg.Model.File != "models/shop.yml" {
		t.Errorf("expected model file 'models/shop.yml', got %s", cfg.Model.File)
	}
	if cfg.Migrations.Dir != "db/migrations" || cfg.Migrations.SnapshotStore != "redis" {
		t.Errorf("unexpected migrations config: %+v", cfg.Migrations)
	}
	if cfg.Redis.Addr != "cache:6379" || cfg.Redis.DB != 2 {
		t.Errorf("unexpected redis config: %+v", cfg.Redis)
	}
	if cfg.Repro.Iterations != 10 || cfg.Repro.Concurrency != 4 {
		t.Errorf("unexpected repro config: %+v", cfg.Repro)
	}
	if cfg.Repro.Timeout != 5*time.Second {
		t.Errorf("expected repro timeout 5s, got %s", cfg.Repro.Timeout)
	}
}

func TestDatabaseURLFromEnvironment(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "entityframe.yml")
	os.WriteFile(path, []byte("database:\n  url: postgresql://config/testdb\n"), 0644)

	t.Setenv("DATABASE_URL", "postgresql://env/testdb")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Database.URL != "postgresql://env/testdb" {
		t.Errorf("expected DATABASE_URL from environment, got %s", cfg.Database.URL)
	}
}

func TestDialectFromEnvironment(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	t.Setenv("ENTITYFRAME_DATABASE_DIALECT", "sqlite")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Database.Dialect != "sqlite" {
		t.Errorf("expected dialect from environment, got %s", cfg.Database.Dialect)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown dialect", "database:\n  dialect: oracle\n"},
		{"unknown snapshot store", "migrations:\n  snapshot_store: s3\n"},
		{"unknown log format", "log:\n  format: xml\n"},
		{"zero iterations", "repro:\n  iterations: 0\n"},
		{"negative concurrency", "repro:\n  concurrency: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "entityframe.yml")
			os.WriteFile(path, []byte(tt.content), 0644)
			if _, err := LoadFile(path); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestGetProjectRoot(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd)

	os.WriteFile(filepath.Join(tmpDir, "entityframe.yml"), []byte(""), 0644)

	subDir := filepath.Join(tmpDir, "src", "deep", "nested")
	os.MkdirAll(subDir, 0755)
	os.Chdir(subDir)

	root, err := GetProjectRoot()
	if err != nil {
		t.Fatalf("expected to find project root, got error: %v", err)
	}

	// On macOS, /tmp is symlinked to /private/tmp, so resolve both paths
	resolvedRoot, _ := filepath.EvalSymlinks(root)
	resolvedTmpDir, _ := filepath.EvalSymlinks(tmpDir)

	if resolvedRoot != resolvedTmpDir {
		t.Errorf("expected project root to be %s, got %s", resolvedTmpDir, resolvedRoot)
	}
}

func TestGetProjectRootNotInProject(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	_, err := GetProjectRoot()
	if err == nil {
		t.Error("expected error when not in a project, got nil")
	}
}
