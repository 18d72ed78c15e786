package redislock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/jhoicas/invoicing-core/internal/infrastructure/redislock"
)

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("integración omitida con -short")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestLocker_ExclusionMutua(t *testing.T) {
	client := newRedisClient(t)
	locker := redislock.New(client, "test:")
	ctx := context.Background()

	first, err := locker.TryAcquire(ctx, "promotion-sweep", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := locker.TryAcquire(ctx, "promotion-sweep", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, second, "el segundo proceso no obtiene el lock")

	require.NoError(t, first.Release(ctx))
	assert.True(t, errors.Is(first.Release(ctx), redislock.ErrNotHeld))

	third, err := locker.TryAcquire(ctx, "promotion-sweep", time.Minute)
	require.NoError(t, err)
	assert.NotNil(t, third)
}

func TestLocker_NoLiberaLockAjeno(t *testing.T) {
	client := newRedisClient(t)
	locker := redislock.New(client, "test:")
	ctx := context.Background()

	mine, err := locker.TryAcquire(ctx, "pdf-sweep", 50*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, mine)

	time.Sleep(120 * time.Millisecond)
	other, err := locker.TryAcquire(ctx, "pdf-sweep", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, other, "el lock expirado se puede volver a tomar")

	assert.True(t, errors.Is(mine.Release(ctx), redislock.ErrNotHeld))
	assert.NoError(t, other.Release(ctx))
}

func TestLock_ExtendMantieneElLockVivo(t *testing.T) {
	client := newRedisClient(t)
	locker := redislock.New(client, "test:")
	ctx := context.Background()

	mine, err := locker.TryAcquire(ctx, "promotion-sweep", 100*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, mine)

	for range 3 {
		time.Sleep(60 * time.Millisecond)
		require.NoError(t, mine.Extend(ctx, 100*time.Millisecond))
	}
	other, err := locker.TryAcquire(ctx, "promotion-sweep", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, other, "renovado: sigue siendo nuestro pasado el TTL original")

	time.Sleep(150 * time.Millisecond)
	assert.True(t, errors.Is(mine.Extend(ctx, time.Minute), redislock.ErrNotHeld), "expirado: no se resucita")
}

