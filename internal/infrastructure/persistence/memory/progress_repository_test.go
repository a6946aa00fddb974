package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glowup/glowup-core/internal/domain/notification"
	"github.com/glowup/glowup-core/internal/domain/scoring"
	"github.com/glowup/glowup-core/internal/domain/shared"
)

func newProgress(t *testing.T, userID string) scoring.UserProgress {
	t.Helper()
	p, err := scoring.NewUserProgress(userID, time.Now())
	require.NoError(t, err)
	return p
}

func TestProgressRepository_CreateGet(t *testing.T) {
	ctx := context.Background()
	repo := NewProgressRepository()

	_, err := repo.GetUserProgress(ctx, "u1")
	assert.True(t, shared.IsNotFound(err))

	require.NoError(t, repo.CreateUserProgress(ctx, newProgress(t, "u1")))
	err = repo.CreateUserProgress(ctx, newProgress(t, "u1"))
	assert.True(t, shared.IsAlreadyExists(err))

	p, err := repo.GetUserProgress(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Level)
	assert.Equal(t, int64(1), p.Version)
}

func TestProgressRepository_SetIsVersioned(t *testing.T) {
	ctx := context.Background()
	repo := NewProgressRepository()
	require.NoError(t, repo.CreateUserProgress(ctx, newProgress(t, "u1")))

	points := 10
	require.NoError(t, repo.SetUserProgress(ctx, "u1", scoring.ProgressUpdate{Points: &points, ExpectedVersion: 1}))

	err := repo.SetUserProgress(ctx, "u1", scoring.ProgressUpdate{Points: &points, ExpectedVersion: 1})
	assert.ErrorIs(t, err, shared.ErrConcurrentModification)

	p, _ := repo.GetUserProgress(ctx, "u1")
	assert.Equal(t, 10, p.Points)
	assert.Equal(t, int64(2), p.Version)

	err = repo.SetUserProgress(ctx, "ghost", scoring.ProgressUpdate{Points: &points})
	assert.True(t, shared.IsNotFound(err))
}

func TestProgressRepository_ConcurrentSetsOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	repo := NewProgressRepository()
	require.NoError(t, repo.CreateUserProgress(ctx, newProgress(t, "u1")))

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			if err := repo.SetUserProgress(ctx, "u1", scoring.ProgressUpdate{Points: &v, ExpectedVersion: 1}); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestProgressRepository_TopByPoints(t *testing.T) {
	ctx := context.Background()
	repo := NewProgressRepository()
	for id, pts := range map[string]int{"a": 10, "b": 30, "c": 30, "d": 5} {
		p := newProgress(t, id)
		p.Points = pts
		require.NoError(t, repo.CreateUserProgress(ctx, p))
	}

	top, err := repo.TopByPoints(ctx, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, scoring.LeaderboardEntry{Rank: 1, UserID: "b", Points: 30}, top[0])
	assert.Equal(t, "c", top[1].UserID)
	assert.Equal(t, "a", top[2].UserID)
}

func TestNotificationRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewNotificationRepository()

	for _, id := range []string{"n1", "n2", "n3"} {
		n, err := notification.NewNotification(notification.NewNotificationParams{
			ID: notification.NotificationID(id), UserID: "u1", Type: notification.NotificationTypeLevelUp, Message: "m",
		})
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, n))
	}

	list, err := repo.ListByUser(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, notification.NotificationID("n3"), list[0].ID)
	assert.Equal(t, 3, repo.Count("u1"))
	assert.Equal(t, 0, repo.Count("u2"))
}
