package database

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visa-portal/internal/common/config"
)

func TestNewRedis_Ping(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Ping(context.Background()))

	mr.Close()
	assert.Error(t, client.Ping(context.Background()))
}

func TestNewRedis_RequiresAddress(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{})
	assert.Error(t, err)
}

func TestNewPostgres_OpensLazily(t *testing.T) {
	client, err := NewPostgres(config.PostgresConfig{
		Host: "localhost", Port: 5432, User: "u", Password: "p", Database: "visa",
		SSLMode: "disable", MaxConnections: 2, MaxIdle: 1,
	})
	require.NoError(t, err)
	assert.NotNil(t, client.GetDB())
	assert.NoError(t, client.Close())
}

func TestRedisOptions_FromConfig(t *testing.T) {
	opts := redisOptions(config.RedisConfig{
		Address: "redis:6379", DB: 3, PoolSize: 25, MinIdleConns: 4,
		DialTimeout: 1500, ReadTimeout: 200, WriteTimeout: 300,
	})

	assert.Equal(t, "redis:6379", opts.Addr)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, 25, opts.PoolSize)
	assert.Equal(t, 4, opts.MinIdleConns)
	assert.Equal(t, 1500*time.Millisecond, opts.DialTimeout)
	assert.Equal(t, 200*time.Millisecond, opts.ReadTimeout)
	assert.Equal(t, 300*time.Millisecond, opts.WriteTimeout)
}

func TestNewPostgres_PoolFromConfig(t *testing.T) {
	client, err := NewPostgres(config.PostgresConfig{
		Host: "localhost", Port: 5432, User: "u", Password: "p", Database: "visa",
		SSLMode: "disable", MaxConnections: 7, MaxIdle: 20, ConnMaxLife: 60000,
	})
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, 7, client.GetDB().Stats().MaxOpenConnections)
}

func TestNewPostgres_RequiresHostAndDatabase(t *testing.T) {
	_, err := NewPostgres(config.PostgresConfig{Host: "localhost"})
	assert.Error(t, err)
}
