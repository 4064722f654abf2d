package modelcache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/conduit-lang/entityframe/internal/orm/relational"
)

// ErrSnapshotNotFound is returned when no snapshot is stored under a key
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotStore persists relational snapshots
type SnapshotStore interface {
	// Load returns the snapshot stored under key
	Load(ctx context.Context, key string) (*relational.Schema, error)
	// Save stores a snapshot under key, replacing any previous one
	Save(ctx context.Context, key string, s *relational.Schema) error
	// Delete removes the snapshot stored under key
	Delete(ctx context.Context, key string) error
}

// LoadOrEmpty loads a snapshot, returning an empty schema when none is stored
func LoadOrEmpty(ctx context.Context, store SnapshotStore, key string) (*relational.Schema, error) {
	s, err := store.Load(ctx, key)
	if errors.Is(err, ErrSnapshotNotFound) {
		return &relational.Schema{Version: relational.SnapshotVersion}, nil
	}
	return s, err
}

// FileStore keeps snapshots as YAML files in a directory
type FileStore struct {
	dir string
}

// NewFileStore creates a file store rooted at dir
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, strings.ReplaceAll(key, string(filepath.Separator), "_")+".snapshot.yaml")
}

// Load reads the snapshot file for key
func (f *FileStore) Load(_ context.Context, key string) (*relational.Schema, error) {
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return relational.UnmarshalSnapshot(data)
}

// Save writes the snapshot file for key through a temporary file
func (f *FileStore) Save(_ context.Context, key string, s *relational.Schema) error {
	data, err := relational.MarshalSnapshot(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(f.dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path(key)); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// Delete removes the snapshot file for key
func (f *FileStore) Delete(_ context.Context, key string) error {
	err := os.Remove(f.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// RedisStore keeps snapshots in Redis under a key prefix
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisConfig holds Redis connection settings for a snapshot store
type RedisConfig struct {
	// Addr is the Redis server address (host:port)
	Addr string
	// Password is the Redis password (optional)
	Password string
	// DB is the Redis database number
	DB int
	// Prefix is prepended to all snapshot keys
	Prefix string
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(ctx context.Context, config RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", config.Addr, err)
	}

	return NewRedisStoreWithClient(client, config.Prefix), nil
}

// NewRedisStoreWithClient creates a store with an existing client
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) key(key string) string {
	return r.prefix + "snapshot:" + key
}

// Load reads the snapshot stored under key
func (r *RedisStore) Load(ctx context.Context, key string) (*relational.Schema, error) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return relational.UnmarshalSnapshot(data)
}

// Save stores the snapshot without expiry
func (r *RedisStore) Save(ctx context.Context, key string, s *relational.Schema) error {
	data, err := relational.MarshalSnapshot(s)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(key), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Delete removes the snapshot stored under key
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (r *RedisStore) Close() error {
	return r.client.Close()
}
