//go:build integration

package lock

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisLease(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	first := NewRedisLease(client, "test:lock", 500*time.Millisecond)
	second := NewRedisLease(client, "test:lock", 500*time.Millisecond)

	ok, err := first.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = first.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, first.Renew(ctx))
	assert.ErrorIs(t, second.Renew(ctx), ErrLockLost)

	// A non-owner release leaves the lease alone.
	require.NoError(t, second.Release(ctx))
	owner, err := client.Get(ctx, "test:lock").Result()
	require.NoError(t, err)
	assert.Equal(t, first.Owner(), owner)

	require.NoError(t, first.Release(ctx))
	ok, err = second.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLeaseExpires(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	crashed := NewRedisLease(client, "test:expiring", 200*time.Millisecond)
	ok, err := crashed.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	next := NewRedisLease(client, "test:expiring", 200*time.Millisecond)
	require.Eventually(t, func() bool {
		ok, err := next.TryAcquire(ctx)
		return err == nil && ok
	}, 3*time.Second, 50*time.Millisecond)

	assert.ErrorIs(t, crashed.Renew(ctx), ErrLockLost)
}
