package service

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glowup/glowup-core/internal/domain/scoring"
	"github.com/glowup/glowup-core/internal/domain/shared"
	"github.com/glowup/glowup-core/internal/infrastructure/persistence/redis"
	"github.com/glowup/glowup-core/pkg/circuitbreaker"
)

type storeSource struct {
	entries []scoring.LeaderboardEntry
	calls   int
}

func (s *storeSource) TopByPoints(_ context.Context, limit int) ([]scoring.LeaderboardEntry, error) {
	s.calls++
	if limit < len(s.entries) {
		return s.entries[:limit], nil
	}
	return s.entries, nil
}

type flakyCache struct {
	down   bool
	calls  int
	points map[string]int
}

var errRedisDown = errors.New("dial tcp: connection refused")

func (c *flakyCache) SetPoints(_ context.Context, userID string, points int) error {
	c.calls++
	if c.down {
		return errRedisDown
	}
	if c.points == nil {
		c.points = map[string]int{}
	}
	c.points[userID] = points
	return nil
}

func (c *flakyCache) Top(context.Context, int) ([]scoring.LeaderboardEntry, error) {
	c.calls++
	if c.down {
		return nil, errRedisDown
	}
	return []scoring.LeaderboardEntry{{Rank: 1, UserID: "cached", Points: 1}}, nil
}

func (c *flakyCache) Position(_ context.Context, userID string) (int, error) {
	c.calls++
	if c.down {
		return 0, errRedisDown
	}
	if _, ok := c.points[userID]; !ok {
		return 0, shared.ErrNotFound
	}
	return 1, nil
}

func storeWith() *storeSource {
	return &storeSource{entries: []scoring.LeaderboardEntry{
		{Rank: 1, UserID: "ana", Points: 300},
		{Rank: 2, UserID: "bia", Points: 100},
	}}
}

func TestLeaderboardService_WithoutCache(t *testing.T) {
	src := storeWith()
	svc := NewLeaderboardService(src, nil, nil)

	assert.False(t, svc.HasCache())
	top, err := svc.Top(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, top, 2)

	assert.NoError(t, svc.SetPoints(context.Background(), "ana", 10))
	_, err = svc.Position(context.Background(), "ana")
	assert.ErrorIs(t, err, ErrNoLeaderboardCache)

	n, err := svc.Rebuild(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLeaderboardService_PrefersCache(t *testing.T) {
	src := storeWith()
	svc := NewLeaderboardService(src, &flakyCache{}, nil)

	top, err := svc.Top(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, "cached", top[0].UserID)
	assert.Zero(t, src.calls)
}

func TestLeaderboardService_RebuildThenPosition(t *testing.T) {
	cache := &flakyCache{}
	svc := NewLeaderboardService(storeWith(), cache, nil)

	n, err := svc.Rebuild(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 300, cache.points["ana"])

	pos, err := svc.Position(context.Background(), "ana")
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	// Unranked users do not trip the breaker.
	for i := 0; i < 5; i++ {
		_, err = svc.Position(context.Background(), "ghost")
		assert.True(t, shared.IsNotFound(err))
	}
	assert.Equal(t, circuitbreaker.StateClosed, svc.Breaker().State())
}

func TestLeaderboardService_BreakerSkipsDeadCache(t *testing.T) {
	src := storeWith()
	cache := &flakyCache{down: true}
	svc := NewLeaderboardService(src, cache, nil)

	for i := 0; i < 3; i++ {
		top, err := svc.Top(context.Background(), 10)
		require.NoError(t, err)
		assert.Equal(t, "ana", top[0].UserID)
	}
	require.Equal(t, circuitbreaker.StateOpen, svc.Breaker().State())

	before := cache.calls
	top, err := svc.Top(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, top, 2)
	assert.Equal(t, before, cache.calls, "open breaker must not touch the cache")

	err = svc.SetPoints(context.Background(), "ana", 1)
	assert.True(t, circuitbreaker.IsRejected(err))
}

func TestLeaderboardService_RebuildReplacesRedisLeaderboard(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	cache := redis.NewLeaderboardCache(redis.NewCacheFromClient(client))
	ctx := context.Background()

	require.NoError(t, cache.SetPoints(ctx, "deleted-user", 9000))
	svc := NewLeaderboardService(storeWith(), cache, nil)

	n, err := svc.Rebuild(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	top, err := svc.Top(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "ana", top[0].UserID)

	_, err = svc.Position(ctx, "deleted-user")
	assert.True(t, shared.IsNotFound(err))
}
