package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Scoring(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.PointsAwarded("COMPLETE_CHALLENGE", 50, 100)
	m.PointsAwarded("COMPLETE_CHALLENGE", 75, 150)
	m.LevelUp(2)
	m.AddPointsCompleted("success", 3*time.Millisecond)
	m.AddPointsCompleted("conflict", time.Millisecond)
	m.WriteConflict("add_points")
	m.StreakRecorded(true, false)
	m.StreakRecorded(true, true)
	m.StreakRecorded(false, false)

	assert.Equal(t, 125.0, testutil.ToFloat64(m.pointsAwarded.WithLabelValues("COMPLETE_CHALLENGE")))
	assert.Equal(t, 250.0, testutil.ToFloat64(m.xpAwarded.WithLabelValues("COMPLETE_CHALLENGE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.levelUps.WithLabelValues("2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.addPoints.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.writeConflicts.WithLabelValues("add_points")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.streaks.WithLabelValues("broken")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.streaks.WithLabelValues("extended")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.streaks.WithLabelValues("unchanged")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.addPointsTime))
}

func TestMetrics_Observer(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.EventPublished("progress.level_up")
	m.HandlerFinished("progress.level_up", time.Millisecond, nil)
	m.HandlerFinished("progress.level_up", time.Millisecond, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsPublished.WithLabelValues("progress.level_up")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.handlerRuns.WithLabelValues("progress.level_up", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.handlerRuns.WithLabelValues("progress.level_up", "error")))
}

func TestMetrics_Jobs(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.JobFinished("rebuild_leaderboard", time.Second, nil)
	m.JobFinished("rebuild_leaderboard", time.Second, nil)
	m.JobFinished("rebuild_leaderboard", time.Second, errors.New("redis down"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("rebuild_leaderboard", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("rebuild_leaderboard", "error")))
}

func TestNew_TwoRegistriesDoNotCollide(t *testing.T) {
	reg := NewRegistry()
	New(reg)
	New(prometheus.NewRegistry())

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	assert.Panics(t, func() { New(reg) })
}
