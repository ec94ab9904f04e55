package redis_client

import (
	"context"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	rc, err := NewRedisClient(mr.Host(), port, 3)
	require.NoError(t, err)
	defer rc.Close()

	assert.Equal(t, 3, rc.Options().PoolSize)
	assert.Equal(t, clientName, rc.Options().ClientName)
	require.NoError(t, rc.Publish(context.Background(), "collab:1:events", "x").Err())
}

func TestNewRedisClientDefaultPool(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	rc, err := NewRedisClient(mr.Host(), port, 0)
	require.NoError(t, err)
	defer rc.Close()

	assert.Equal(t, defaultPoolSize(), rc.Options().PoolSize)
	assert.LessOrEqual(t, rc.Options().PoolSize, 64)
}

func TestNewRedisClientUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	host := mr.Host()
	mr.Close()

	rc, err := NewRedisClient(host, port, 0)
	require.Error(t, err)
	require.Nil(t, rc)
	require.Contains(t, err.Error(), "Redis connection failed")
}
