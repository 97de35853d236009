package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
backend:
  base_url: http://backend.local/
storage:
  driver: memory
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "http://backend.local", cfg.Backend.BaseURL)
	assert.Equal(t, 15000, cfg.Backend.Timeout)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 5000, cfg.Wizard.PollInterval)
	assert.Equal(t, 0, cfg.Wizard.RankingConcurrency)
	assert.Equal(t, 10, cfg.Storage.Redis.PoolSize)
	assert.Equal(t, 3000, cfg.Storage.Redis.ReadTimeout)
	assert.Equal(t, 300000, cfg.Storage.Postgres.ConnMaxLife)
	assert.Equal(t, "visa", cfg.Storage.KeyPrefix)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("TEST_REDIS_HOST", "redis.internal:6379")
	path := writeConfig(t, `
backend:
  base_url: http://backend.local
storage:
  driver: redis
  redis:
    address: ${TEST_REDIS_HOST}
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "redis.internal:6379", cfg.Storage.Redis.Address)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing backend url",
			body:    "storage:\n  driver: memory\n",
			wantErr: "backend.base_url is required",
		},
		{
			name:    "unknown driver",
			body:    "backend:\n  base_url: http://x\nstorage:\n  driver: etcd\n",
			wantErr: "storage.driver must be one of",
		},
		{
			name:    "redis without address",
			body:    "backend:\n  base_url: http://x\nstorage:\n  driver: redis\n",
			wantErr: "storage.redis.address is required",
		},
		{
			name:    "postgres without host",
			body:    "backend:\n  base_url: http://x\nstorage:\n  driver: postgres\n",
			wantErr: "storage.postgres.host is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPostgresConfig_GetDSN(t *testing.T) {
	cfg := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "visa", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=visa sslmode=disable", cfg.GetDSN())
}
