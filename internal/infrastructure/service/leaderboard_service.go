package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/glowup/glowup-core/internal/domain/scoring"
	"github.com/glowup/glowup-core/internal/domain/shared"
	"github.com/glowup/glowup-core/pkg/circuitbreaker"
)

// ErrNoLeaderboardCache is returned by Position when no cache is configured.
var ErrNoLeaderboardCache = errors.New("leaderboard cache not configured")

// LeaderboardSource reads ranking data straight from the progress store.
type LeaderboardSource interface {
	TopByPoints(ctx context.Context, limit int) ([]scoring.LeaderboardEntry, error)
}

// leaderboardReplacer is implemented by caches that can swap their whole
// content at once (redis.LeaderboardCache).
type leaderboardReplacer interface {
	Replace(ctx context.Context, entries []scoring.LeaderboardEntry) error
}

// LeaderboardService implements scoring.Leaderboard on top of an optional
// cache. Cache calls go through a circuit breaker; while it is open, reads
// come from the store and writes are skipped until the next rebuild.
type LeaderboardService struct {
	source  LeaderboardSource
	cache   scoring.Leaderboard
	breaker *circuitbreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewLeaderboardService creates a new LeaderboardService. cache may be nil.
func NewLeaderboardService(source LeaderboardSource, cache scoring.Leaderboard, logger *slog.Logger) *LeaderboardService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &LeaderboardService{
		source: source,
		cache:  cache,
		logger: logger,
	}
	s.breaker = circuitbreaker.CacheBreaker("leaderboard-cache", func(name string, from, to circuitbreaker.State) {
		logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
	})
	return s
}

// HasCache reports whether a cache is configured.
func (s *LeaderboardService) HasCache() bool {
	return s.cache != nil
}

// Breaker exposes the cache breaker for health reporting.
func (s *LeaderboardService) Breaker() *circuitbreaker.CircuitBreaker {
	return s.breaker
}

// Top returns the best users by points.
func (s *LeaderboardService) Top(ctx context.Context, limit int) ([]scoring.LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	if s.cache != nil {
		var entries []scoring.LeaderboardEntry
		err := s.breaker.Execute(ctx, func(ctx context.Context) error {
			var err error
			entries, err = s.cache.Top(ctx, limit)
			return err
		})
		if err == nil && len(entries) > 0 {
			return entries, nil
		}
		if err != nil && !circuitbreaker.IsRejected(err) {
			s.logger.Warn("leaderboard cache unavailable, reading from store", "error", err)
		}
	}

	return s.source.TopByPoints(ctx, limit)
}

// Position returns the cached 1-based position of a user.
func (s *LeaderboardService) Position(ctx context.Context, userID string) (int, error) {
	if s.cache == nil {
		return 0, ErrNoLeaderboardCache
	}
	var pos int
	var miss error
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		p, err := s.cache.Position(ctx, userID)
		if shared.IsNotFound(err) {
			// An unranked user is an answer, not a cache failure.
			miss = err
			return nil
		}
		pos = p
		return err
	})
	if err != nil {
		return 0, err
	}
	return pos, miss
}

// SetPoints mirrors a user's total into the cache.
func (s *LeaderboardService) SetPoints(ctx context.Context, userID string, points int) error {
	if s.cache == nil {
		return nil
	}
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.cache.SetPoints(ctx, userID, points)
	})
}

// Rebuild reloads the cache from the store's top limit users, e.g. after a
// cache flush or a period with the breaker open. A cache that supports
// Replace is swapped atomically, which also drops users outside the top
// limit until their next award. Otherwise each total is upserted.
func (s *LeaderboardService) Rebuild(ctx context.Context, limit int) (int, error) {
	if s.cache == nil {
		return 0, nil
	}
	entries, err := s.source.TopByPoints(ctx, limit)
	if err != nil {
		return 0, err
	}

	if r, ok := s.cache.(leaderboardReplacer); ok {
		err := s.breaker.Execute(ctx, func(ctx context.Context) error {
			return r.Replace(ctx, entries)
		})
		if err != nil {
			return 0, err
		}
		return len(entries), nil
	}

	for _, e := range entries {
		if err := s.SetPoints(ctx, e.UserID, e.Points); err != nil {
			return 0, err
		}
	}
	return len(entries), nil
}
