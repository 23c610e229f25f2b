package repository_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"whosaidit/models"
	"whosaidit/repository"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { rdb.Close() })
	require.NoError(t, rdb.Ping(ctx).Err())
	return rdb
}

func TestRedisRoomRepository(t *testing.T) {
	rdb := startRedis(t)
	repo := repository.NewRedisRoomRepository(rdb, zap.NewNop())
	ctx := context.Background()

	t.Run("Create", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, newTestRoom("ABC123")))
		assert.ErrorIs(t, repo.Create(ctx, newTestRoom("ABC123")), repository.ErrCodeTaken)

		ttl, err := rdb.TTL(ctx, "room:ABC123").Result()
		require.NoError(t, err)
		assert.InDelta(t, repository.RoomTTL.Seconds(), ttl.Seconds(), 5)
	})

	t.Run("FindByCode", func(t *testing.T) {
		room, err := repo.FindByCode(ctx, "ABC123")
		require.NoError(t, err)
		assert.Equal(t, "Alice", room.Players[0].Name)

		_, err = repo.FindByCode(ctx, "NOPE00")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("ConditionalUpdate keeps TTL", func(t *testing.T) {
		updated, err := repo.ConditionalUpdate(ctx, "ABC123",
			func(r *models.Room) bool { return r.GameState == models.StateWaiting },
			func(r *models.Room) error {
				r.GameState = models.StateAnswering
				return nil
			})
		require.NoError(t, err)
		assert.Equal(t, models.StateAnswering, updated.GameState)

		ttl, err := rdb.TTL(ctx, "room:ABC123").Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))

		_, err = repo.ConditionalUpdate(ctx, "ABC123",
			func(r *models.Room) bool { return r.GameState == models.StateWaiting },
			func(r *models.Room) error { return nil })
		assert.ErrorIs(t, err, repository.ErrPreconditionFailed)
	})

	t.Run("ConcurrentConditionalUpdate", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, newTestRoom("RACE22")))
		var wg sync.WaitGroup
		var succeeded int32
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.ConditionalUpdate(ctx, "RACE22",
					func(r *models.Room) bool { return !r.Players[0].HasVoted },
					func(r *models.Room) error {
						r.Players[0].HasVoted = true
						return nil
					})
				if err == nil {
					atomic.AddInt32(&succeeded, 1)
				}
			}()
		}
		wg.Wait()
		assert.EqualValues(t, 1, succeeded)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "ABC123"))
		_, err := repo.FindByCode(ctx, "ABC123")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("PurgeExpired", func(t *testing.T) {
		stale := time.Now().Add(-repository.RoomTTL - time.Hour).Unix()
		require.NoError(t, rdb.ZAdd(ctx, "rooms:index", &redis.Z{Score: float64(stale), Member: "GONE99"}).Err())

		purged, err := repo.PurgeExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, purged)

		members, err := rdb.ZRange(ctx, "rooms:index", 0, -1).Result()
		require.NoError(t, err)
		assert.NotContains(t, members, "GONE99")
	})
}
