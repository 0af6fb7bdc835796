package settings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/mp-gpt-consultant-go/internal/config"
)

// Backend persists the raw settings document. Implementations only
// move bytes; all locking and interpretation happens in the Store.
type Backend interface {
	// Load returns the current document, or (nil, nil) when none
	// has been written yet.
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// NewBackend builds the backend selected by the storage config.
func NewBackend(cfg *config.Config) (Backend, error) {
	switch cfg.Storage.Type {
	case "file":
		return NewFileBackend(filepath.Join(cfg.Consultant.DataDir, "settings.json"))
	case "redis":
		return NewRedisBackend(&cfg.Storage.Redis)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}

// FileBackend keeps the document in a single JSON file.
type FileBackend struct {
	path string
}

func NewFileBackend(path string) (*FileBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return &FileBackend{path: path}, nil
}

func (f *FileBackend) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Save writes through a temp file and renames, so a crash mid-write
// never leaves a truncated document behind.
func (f *FileBackend) Save(ctx context.Context, data []byte) error {
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

// RedisBackend keeps the whole document under one key. The Store's
// mutex still serializes every read-modify-write, so the single-key
// layout preserves the same atomicity contract as the file.
type RedisBackend struct {
	client *redis.Client
	key    string
}

func NewRedisBackend(cfg *config.RedisConfig) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisBackend{client: client, key: cfg.Key}, nil
}

func (r *RedisBackend) Load(ctx context.Context) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (r *RedisBackend) Save(ctx context.Context, data []byte) error {
	return r.client.Set(ctx, r.key, data, 0).Err()
}
