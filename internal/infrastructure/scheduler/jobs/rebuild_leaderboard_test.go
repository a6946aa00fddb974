package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rebuilderFunc func(ctx context.Context, limit int) (int, error)

func (f rebuilderFunc) Rebuild(ctx context.Context, limit int) (int, error) { return f(ctx, limit) }

func TestRebuildLeaderboardJob_Run(t *testing.T) {
	var gotLimit int
	var hadDeadline bool
	job := NewRebuildLeaderboardJob(rebuilderFunc(func(ctx context.Context, limit int) (int, error) {
		gotLimit = limit
		_, hadDeadline = ctx.Deadline()
		return 3, nil
	}), RebuildLeaderboardConfig{}, nil)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1000, gotLimit)
	assert.True(t, hadDeadline)
	assert.Equal(t, "rebuild_leaderboard", job.Name())
	assert.Contains(t, job.Description(), "1000")
}

func TestRebuildLeaderboardJob_Error(t *testing.T) {
	down := errors.New("redis down")
	job := NewRebuildLeaderboardJob(rebuilderFunc(func(context.Context, int) (int, error) {
		return 0, down
	}), RebuildLeaderboardConfig{Limit: 10, Timeout: time.Second}, nil)

	err := job.Run(context.Background())
	assert.ErrorIs(t, err, down)
}
