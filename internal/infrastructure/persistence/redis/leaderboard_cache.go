package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/glowup/glowup-core/internal/domain/scoring"
	"github.com/glowup/glowup-core/internal/domain/shared"
)

// ErrUserNotInLeaderboard is returned by Position for unknown users. It
// matches shared.ErrNotFound.
var ErrUserNotInLeaderboard = shared.NewDomainError("leaderboard", "Position", shared.ErrNotFound, "user not in leaderboard")

// keyLeaderboardPoints is the sorted set userID -> -points.
const keyLeaderboardPoints = "leaderboard:points"

// LeaderboardCache implements scoring.Leaderboard on a Redis sorted set.
//
// Scores are stored negated so that ZRANGE returns points descending with
// ties ordered by user ID ascending, the same order the SQL stores use.
// Rank lookups are O(log N), range queries O(log N + M).
type LeaderboardCache struct {
	cache *Cache
}

// NewLeaderboardCache creates a new LeaderboardCache instance.
func NewLeaderboardCache(cache *Cache) *LeaderboardCache {
	return &LeaderboardCache{cache: cache}
}

// ══════════════════════════════════════════════════════════════════════════════
// WRITE OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// SetPoints records a user's total. Totals only grow, so a lower total than
// the cached one is ignored (ZADD LT on the negated score). Mirrors of two
// concurrent awards may land in either order.
func (l *LeaderboardCache) SetPoints(ctx context.Context, userID string, points int) error {
	if userID == "" {
		return ErrCacheKeyEmpty
	}
	return l.cache.Client().ZAddLT(ctx, keyLeaderboardPoints, redis.Z{
		Score:  -float64(points),
		Member: userID,
	}).Err()
}

// Replace swaps the whole leaderboard for entries in one MULTI/EXEC. Members
// missing from entries are dropped.
func (l *LeaderboardCache) Replace(ctx context.Context, entries []scoring.LeaderboardEntry) error {
	pipe := l.cache.Client().TxPipeline()
	pipe.Del(ctx, keyLeaderboardPoints)

	if len(entries) > 0 {
		members := make([]redis.Z, 0, len(entries))
		for _, e := range entries {
			if e.UserID == "" {
				continue
			}
			members = append(members, redis.Z{Score: -float64(e.Points), Member: e.UserID})
		}
		if len(members) > 0 {
			pipe.ZAdd(ctx, keyLeaderboardPoints, members...)
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}

// ══════════════════════════════════════════════════════════════════════════════
// READ OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Top returns the best users by points.
func (l *LeaderboardCache) Top(ctx context.Context, limit int) ([]scoring.LeaderboardEntry, error) {
	if limit <= 0 {
		return []scoring.LeaderboardEntry{}, nil
	}

	members, err := l.cache.Client().ZRangeWithScores(ctx, keyLeaderboardPoints, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]scoring.LeaderboardEntry, 0, len(members))
	for i, m := range members {
		userID, _ := m.Member.(string)
		entries = append(entries, scoring.LeaderboardEntry{
			Rank:   i + 1,
			UserID: userID,
			Points: int(-m.Score),
		})
	}
	return entries, nil
}

// Position returns the 1-based position of a user.
func (l *LeaderboardCache) Position(ctx context.Context, userID string) (int, error) {
	rank, err := l.cache.Client().ZRank(ctx, keyLeaderboardPoints, userID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrUserNotInLeaderboard
		}
		return 0, err
	}
	return int(rank) + 1, nil
}
