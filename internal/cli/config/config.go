package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the entityframe configuration
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Model      ModelConfig      `mapstructure:"model"`
	Migrations MigrationsConfig `mapstructure:"migrations"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Log        LogConfig        `mapstructure:"log"`
	Repro      ReproConfig      `mapstructure:"repro"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URL     string `mapstructure:"url"`
	Dialect string `mapstructure:"dialect"`
}

// ModelConfig locates the model definition
type ModelConfig struct {
	File string `mapstructure:"file"`
}

// MigrationsConfig represents migration configuration
type MigrationsConfig struct {
	Dir           string `mapstructure:"dir"`
	SnapshotStore string `mapstructure:"snapshot_store"`
}

// RedisConfig is used when snapshots are stored in Redis
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ReproConfig configures the query reproduction harness
type ReproConfig struct {
	Iterations  int           `mapstructure:"iterations"`
	Concurrency int           `mapstructure:"concurrency"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

var configNames = []string{"entityframe.yml", "entityframe.yaml"}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("database.url", "")
	v.SetDefault("database.dialect", "postgres")
	v.SetDefault("model.file", "model.yml")
	v.SetDefault("migrations.dir", "migrations")
	v.SetDefault("migrations.snapshot_store", "file")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "entityframe:")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "development")
	v.SetDefault("repro.iterations", 100)
	v.SetDefault("repro.concurrency", 4)
	v.SetDefault("repro.timeout", "30s")

	v.SetConfigType("yaml")

	// ENTITYFRAME_DATABASE_DIALECT and friends
	v.SetEnvPrefix("entityframe")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("database.url", "ENTITYFRAME_DATABASE_URL", "DATABASE_URL")

	return v
}

// Load loads the configuration from entityframe.yml or entityframe.yaml in the
// working directory, falling back to defaults when neither exists
func Load() (*Config, error) {
	for _, name := range configNames {
		if _, err := os.Stat(name); err == nil {
			return LoadFile(name)
		}
	}
	return decode(newViper())
}

// LoadFile loads the configuration from path
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// GetProjectRoot tries to find the project root by looking for entityframe.yml
func GetProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		for _, name := range configNames {
			if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in an entityframe project (no entityframe.yml found)")
		}
		dir = parent
	}
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	switch strings.ToLower(cfg.Database.Dialect) {
	case "postgres", "postgresql", "pgx", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("database.dialect must be postgres or sqlite, got: %s", cfg.Database.Dialect)
	}

	switch cfg.Migrations.SnapshotStore {
	case "file", "redis":
	default:
		return fmt.Errorf("migrations.snapshot_store must be file or redis, got: %s", cfg.Migrations.SnapshotStore)
	}

	switch cfg.Log.Format {
	case "development", "json", "none":
	default:
		return fmt.Errorf("log.format must be development, json or none, got: %s", cfg.Log.Format)
	}

	if cfg.Repro.Iterations <= 0 {
		return fmt.Errorf("repro.iterations must be positive, got: %d", cfg.Repro.Iterations)
	}
	if cfg.Repro.Concurrency <= 0 {
		return fmt.Errorf("repro.concurrency must be positive, got: %d", cfg.Repro.Concurrency)
	}
	if cfg.Repro.Timeout <= 0 {
		return fmt.Errorf("repro.timeout must be positive, got: %s", cfg.Repro.Timeout)
	}
	return nil
}
