package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glowup/glowup-core/internal/domain/scoring"
	"github.com/glowup/glowup-core/internal/domain/shared"
	"github.com/glowup/glowup-core/internal/infrastructure/persistence/memory"
)

type positionLeaderboard struct {
	positions map[string]int
	err       error
}

func (l positionLeaderboard) SetPoints(context.Context, string, int) error { return nil }

func (l positionLeaderboard) Top(context.Context, int) ([]scoring.LeaderboardEntry, error) {
	return nil, l.err
}

func (l positionLeaderboard) Position(_ context.Context, userID string) (int, error) {
	if l.err != nil {
		return 0, l.err
	}
	return l.positions[userID], nil
}

func seedProgress(t *testing.T, repo *memory.ProgressRepository, userID string, points, xp, streak int) {
	t.Helper()
	p, err := scoring.NewUserProgress(userID, time.Now())
	require.NoError(t, err)
	p.Points = points
	p.ExperiencePoints = xp
	p.Level = scoring.DefaultTables().LevelFor(xp)
	p.CurrentStreakDays = streak
	p.LongestStreakDays = streak
	require.NoError(t, repo.CreateUserProgress(context.Background(), p))
}

func TestGetProgress(t *testing.T) {
	repo := memory.NewProgressRepository()
	seedProgress(t, repo, "user-1", 600, 350, 8)

	h := NewGetProgressHandler(scoring.DefaultTables(), repo, positionLeaderboard{positions: map[string]int{"user-1": 4}})

	dto, err := h.Handle(context.Background(), GetProgressQuery{UserID: "user-1"})
	require.NoError(t, err)

	assert.Equal(t, 600, dto.Points)
	assert.Equal(t, 3, dto.Level.Level)
	assert.Equal(t, 250, dto.Level.XPToNext)
	assert.Equal(t, "silver", dto.Rank.Current.ID)
	require.NotNil(t, dto.Rank.Next)
	assert.Equal(t, "gold", dto.Rank.Next.ID)
	assert.Equal(t, 900, dto.Rank.PointsToNext)
	assert.Equal(t, 1.5, dto.StreakMultiplier)
	require.NotNil(t, dto.NextStreakTier)
	assert.Equal(t, 14, dto.NextStreakTier.MinDays)
	assert.Equal(t, 4, dto.LeaderboardPosition)
	assert.Equal(t, int64(1), dto.Version)
}

func TestGetProgress_LeaderboardErrorIsIgnored(t *testing.T) {
	repo := memory.NewProgressRepository()
	seedProgress(t, repo, "user-1", 0, 0, 0)

	h := NewGetProgressHandler(scoring.DefaultTables(), repo, positionLeaderboard{err: errors.New("redis down")})

	dto, err := h.Handle(context.Background(), GetProgressQuery{UserID: "user-1"})
	require.NoError(t, err)
	assert.Zero(t, dto.LeaderboardPosition)
	assert.Equal(t, "bronze", dto.Rank.Current.ID)
}

func TestGetProgress_Errors(t *testing.T) {
	h := NewGetProgressHandler(scoring.DefaultTables(), memory.NewProgressRepository(), nil)

	_, err := h.Handle(context.Background(), GetProgressQuery{})
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(context.Background(), GetProgressQuery{UserID: "ghost"})
	assert.True(t, shared.IsNotFound(err))
}

func TestGetLeaderboard(t *testing.T) {
	repo := memory.NewProgressRepository()
	seedProgress(t, repo, "ana", 1600, 0, 0)
	seedProgress(t, repo, "bia", 700, 0, 0)
	seedProgress(t, repo, "caio", 20, 0, 0)

	h := NewGetLeaderboardHandler(scoring.DefaultTables(), readerFunc(repo.TopByPoints))

	rows, err := h.Handle(context.Background(), GetLeaderboardQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, LeaderboardEntryDTO{Position: 1, UserID: "ana", Points: 1600, RankID: "gold", RankName: "Ouro", RankEmoji: "🥇"}, rows[0])
	assert.Equal(t, "silver", rows[1].RankID)

	all, err := h.Handle(context.Background(), GetLeaderboardQuery{Limit: 1000})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

type readerFunc func(ctx context.Context, limit int) ([]scoring.LeaderboardEntry, error)

func (f readerFunc) Top(ctx context.Context, limit int) ([]scoring.LeaderboardEntry, error) {
	return f(ctx, limit)
}
