// Package storage persists wizard state in a key-value store scoped by session.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"visa-portal/internal/common/config"
	"visa-portal/internal/common/database"
	"visa-portal/internal/common/logger"
)

// ErrNotFound is returned by KVStore.Get when the key has no value.
var ErrNotFound = errors.New("STORAGE_KEY_NOT_FOUND")

// KVStore is the raw byte store behind a Session.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
}

// MemoryStore keeps values in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open connects the configured driver. The returned closer releases the connection.
func Open(ctx context.Context, cfg config.StorageConfig, log logger.Logger) (KVStore, io.Closer, error) {
	switch cfg.Driver {
	case config.StorageDriverMemory:
		log.Warn("using in-memory storage, state is lost on restart", nil)
		return NewMemoryStore(), nopCloser{}, nil

	case config.StorageDriverRedis:
		client, err := database.NewRedis(cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		if err := client.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		log.Info("connected to redis", map[string]interface{}{"address": cfg.Redis.Address})
		return NewRedisStore(client.GetClient()), client, nil

	case config.StorageDriverPostgres:
		client, err := database.NewPostgres(cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		if err := client.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("postgres ping failed: %w", err)
		}
		store := NewPostgresStore(client.GetDB())
		if err := store.Migrate(ctx); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		log.Info("connected to postgres", map[string]interface{}{
			"host":     cfg.Postgres.Host,
			"database": cfg.Postgres.Database,
		})
		return store, client, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
