package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walktrack/backend/internal/metrics"
)

type stubCleaner struct {
	calls   atomic.Int32
	removed int64
	err     error
}

func (s *stubCleaner) CleanupExpiredSessions(context.Context) (int64, error) {
	s.calls.Add(1)
	return s.removed, s.err
}

func TestRedisLockerIsExclusive(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	ctx := context.Background()
	locker := NewRedisLocker(client)

	release, ok, err := locker.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be refused")

	require.NoError(t, release(ctx))
	assert.False(t, srv.Exists("k"))

	_, ok, err = locker.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockerReleaseKeepsForeignLease(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	ctx := context.Background()
	locker := NewRedisLocker(client)

	release, ok, err := locker.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// Our lease expires and another replica takes over.
	srv.FastForward(2 * time.Second)
	_, ok, err = locker.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, release(ctx))
	assert.True(t, srv.Exists("k"), "stale release must not drop the new holder's lease")
}

func TestSweeperRunOnce(t *testing.T) {
	m := metrics.New()
	cleaner := &stubCleaner{removed: 4}
	sweeper := NewSweeper(cleaner, nil, m, nil, "@every 1h")

	removed, err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), removed)
	assert.Equal(t, int32(1), cleaner.calls.Load())
}

func TestSweeperSkipsWhenLocked(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()
	require.NoError(t, srv.Set(sweepLockKey, "other-replica"))

	cleaner := &stubCleaner{removed: 4}
	sweeper := NewSweeper(cleaner, NewRedisLocker(client), nil, nil, "@every 1h")

	removed, err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.Zero(t, cleaner.calls.Load())
}

func TestSweeperPropagatesCleanupError(t *testing.T) {
	cleaner := &stubCleaner{err: errors.New("db down")}
	sweeper := NewSweeper(cleaner, LocalLocker{}, nil, nil, "@every 1h")

	_, err := sweeper.RunOnce(context.Background())
	require.Error(t, err)
}

func TestSweeperRunRejectsBadSchedule(t *testing.T) {
	sweeper := NewSweeper(&stubCleaner{}, nil, nil, nil, "not a schedule")
	require.Error(t, sweeper.Run(context.Background()))
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	cleaner := &stubCleaner{}
	sweeper := NewSweeper(cleaner, nil, nil, nil, "@every 1s")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sweeper.Run(ctx) }()

	require.Eventually(t, func() bool { return cleaner.calls.Load() > 0 }, 5*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
