package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *Redis {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start redis container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	r, err := NewRedis(ctx, fmt.Sprintf("%s:%s", host, port.Port()), "", 0, "test:")
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRedis_SetGetDelete(t *testing.T) {
	r := setupRedis(t)
	ctx := context.Background()

	_, err := r.Get(ctx, "missing")
	assert.True(t, errors.Is(err, ErrMiss))

	require.NoError(t, r.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := r.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))

	require.NoError(t, r.Delete(ctx, "k"))
	_, err = r.Get(ctx, "k")
	assert.True(t, errors.Is(err, ErrMiss))
}

func TestRedis_IncrSetsTTLOnce(t *testing.T) {
	r := setupRedis(t)
	ctx := context.Background()

	n, err := r.Incr(ctx, "counter", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = r.Incr(ctx, "counter", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ttl, err := r.client.TTL(ctx, "test:counter").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}
