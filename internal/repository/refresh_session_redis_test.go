package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"petshelter/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStoreTest(t *testing.T) (*RedisRefreshSessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err, "miniredis start")
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return NewRedisRefreshSessionStore(rdb, "test:rs"), mr
}

func TestRedisStore_ReplaceForAccountKeepsOne(t *testing.T) {
	store, _ := newRedisStoreTest(t)
	ctx := context.Background()

	first := newSession(7, "h1", time.Now().Add(time.Hour))
	require.NoError(t, store.ReplaceForAccount(ctx, first))
	assert.NotZero(t, first.ID)

	second := newSession(7, "h2", time.Now().Add(time.Hour))
	require.NoError(t, store.ReplaceForAccount(ctx, second))
	assert.NotEqual(t, first.ID, second.ID)

	_, err := store.FindByTokenHash(ctx, "h1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	sessions, err := store.ListForAccount(ctx, 7)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "h2", sessions[0].TokenHash)
}

func TestRedisStore_SessionKeptForRetentionPastExpiry(t *testing.T) {
	store, mr := newRedisStoreTest(t)
	ctx := context.Background()

	require.NoError(t, store.ReplaceForAccount(ctx, newSession(7, "h1", time.Now().Add(time.Hour))))
	assert.InDelta(t, (time.Hour + SessionRetention).Seconds(), mr.TTL("test:rs:tok:h1").Seconds(), 5)

	mr.FastForward(2 * time.Hour)
	expired, err := store.FindByTokenHash(ctx, "h1")
	require.NoError(t, err)
	assert.True(t, expired.IsExpired(time.Now().Add(2*time.Hour)))

	mr.FastForward(SessionRetention)
	_, err = store.FindByTokenHash(ctx, "h1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRedisStore_RotateExpiredReachesCallback(t *testing.T) {
	store, _ := newRedisStoreTest(t)
	ctx := context.Background()
	require.NoError(t, store.ReplaceForAccount(ctx, newSession(7, "h1", time.Now().Add(-time.Minute))))

	_, err := store.Rotate(ctx, "h1", successorOf("h2"))
	assert.ErrorIs(t, err, errRejected)

	_, err = store.FindByTokenHash(ctx, "h2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRedisStore_ConcurrentReplaceKeepsOne(t *testing.T) {
	store, mr := newRedisStoreTest(t)
	ctx := context.Background()

	const workers = 6
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.ReplaceForAccount(ctx, newSession(7, fmt.Sprintf("login-%d", i), time.Now().Add(time.Hour)))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	sessions, err := store.ListForAccount(ctx, 7)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, 1, activeCount(sessions))

	members, err := mr.Members("test:rs:acct:7")
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestRedisStore_RotateRevokesAndInserts(t *testing.T) {
	store, _ := newRedisStoreTest(t)
	ctx := context.Background()
	require.NoError(t, store.ReplaceForAccount(ctx, newSession(7, "h1", time.Now().Add(time.Hour))))

	next, err := store.Rotate(ctx, "h1", successorOf("h2"))
	require.NoError(t, err)
	assert.Equal(t, "h2", next.TokenHash)
	assert.NotZero(t, next.ID)

	old, err := store.FindByTokenHash(ctx, "h1")
	require.NoError(t, err)
	assert.True(t, old.Revoked)

	sessions, err := store.ListForAccount(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
	assert.Equal(t, 1, activeCount(sessions))

	_, err = store.Rotate(ctx, "h1", successorOf("h3"))
	assert.ErrorIs(t, err, errRejected)
}

func TestRedisStore_RotateUnknown(t *testing.T) {
	store, _ := newRedisStoreTest(t)

	_, err := store.Rotate(context.Background(), "missing", successorOf("h2"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRedisStore_ConcurrentRotationSingleWinner(t *testing.T) {
	store, _ := newRedisStoreTest(t)
	ctx := context.Background()
	require.NoError(t, store.ReplaceForAccount(ctx, newSession(7, "h0", time.Now().Add(time.Hour))))

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Rotate(ctx, "h0", successorOf(fmt.Sprintf("next-%d", i)))
			if err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	sessions, err := store.ListForAccount(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, activeCount(sessions))
}

func TestRedisStore_RevokeAndDeleteAll(t *testing.T) {
	store, _ := newRedisStoreTest(t)
	ctx := context.Background()
	require.NoError(t, store.ReplaceForAccount(ctx, newSession(7, "h1", time.Now().Add(time.Hour))))

	s, err := store.FindByTokenHash(ctx, "h1")
	require.NoError(t, err)
	require.NoError(t, store.Revoke(ctx, s))
	assert.True(t, s.Revoked)

	again, err := store.FindByTokenHash(ctx, "h1")
	require.NoError(t, err)
	assert.True(t, again.Revoked)

	require.NoError(t, store.DeleteAllForAccount(ctx, 7))
	sessions, err := store.ListForAccount(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestRedisStore_RevokeMissingIsNoop(t *testing.T) {
	store, _ := newRedisStoreTest(t)

	err := store.Revoke(context.Background(), &domain.RefreshSession{TokenHash: "gone"})
	assert.NoError(t, err)
}
