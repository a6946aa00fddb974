package scoring

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glowup/glowup-core/internal/domain/shared"
)

func TestCalculateLevel_Zero(t *testing.T) {
	info := DefaultTables().CalculateLevel(0)

	assert.Equal(t, 1, info.Level)
	assert.Equal(t, "Iniciante", info.Title)
	assert.Equal(t, 0.0, info.ProgressPercent)
	assert.Equal(t, 100, info.XPToNext)
	assert.False(t, info.IsMaxLevel)
}

func TestCalculateLevel_Thresholds(t *testing.T) {
	tables := DefaultTables()

	tests := []struct {
		xp       int
		level    int
		percent  float64
		xpToNext int
	}{
		{xp: 99, level: 1, percent: 99, xpToNext: 1},
		{xp: 100, level: 2, percent: 0, xpToNext: 200},
		{xp: 200, level: 2, percent: 50, xpToNext: 100},
		{xp: 2500, level: 7, percent: 37.5, xpToNext: 500},
		{xp: 21999, level: 14, xpToNext: 1},
	}

	for _, tt := range tests {
		info := tables.CalculateLevel(tt.xp)
		assert.Equal(t, tt.level, info.Level, "xp=%d", tt.xp)
		assert.Equal(t, tt.xpToNext, info.XPToNext, "xp=%d", tt.xp)
		if tt.percent > 0 {
			assert.InDelta(t, tt.percent, info.ProgressPercent, 0.0001, "xp=%d", tt.xp)
		}
	}
}

func TestCalculateLevel_MaxLevelClamps(t *testing.T) {
	tables := DefaultTables()

	for _, xp := range []int{22000, 50000, math.MaxInt} {
		info := tables.CalculateLevel(xp)
		assert.Equal(t, 15, info.Level)
		assert.Equal(t, "Transcendente", info.Title)
		assert.Equal(t, 100.0, info.ProgressPercent)
		assert.Equal(t, 0, info.XPToNext)
		assert.True(t, info.IsMaxLevel)
	}
}

func TestCalculateLevel_NegativeClampsToZero(t *testing.T) {
	assert.Equal(t, DefaultTables().CalculateLevel(0), DefaultTables().CalculateLevel(-500))
}

func TestCalculateLevel_Properties(t *testing.T) {
	tables := DefaultTables()
	prev := 0
	for xp := 0; xp <= 25000; xp += 7 {
		info := tables.CalculateLevel(xp)

		assert.GreaterOrEqual(t, info.Level, prev, "level must not decrease at xp=%d", xp)
		assert.GreaterOrEqual(t, info.ProgressPercent, 0.0)
		assert.LessOrEqual(t, info.ProgressPercent, 100.0)
		assert.GreaterOrEqual(t, info.XPToNext, 0)
		prev = info.Level
	}
}

func TestGetStreakMultiplier(t *testing.T) {
	tables := DefaultTables()

	assert.Equal(t, 1.0, tables.GetStreakMultiplier(0))
	assert.Equal(t, 1.0, tables.GetStreakMultiplier(2))
	assert.Equal(t, 1.2, tables.GetStreakMultiplier(3))
	assert.Equal(t, 1.5, tables.GetStreakMultiplier(7))
	assert.Equal(t, 1.5, tables.GetStreakMultiplier(13))
	assert.Equal(t, 3.0, tables.GetStreakMultiplier(100))
	assert.Equal(t, 3.0, tables.GetStreakMultiplier(10000))
	assert.Equal(t, 1.0, tables.GetStreakMultiplier(-3))

	prev := 1.0
	for d := 0; d <= 200; d++ {
		m := tables.GetStreakMultiplier(d)
		assert.GreaterOrEqual(t, m, prev, "days=%d", d)
		prev = m
	}
}

func TestCalculatePointsWithStreak(t *testing.T) {
	tables := DefaultTables()

	assert.Equal(t, 75, tables.CalculatePointsWithStreak(50, 7))
	assert.Equal(t, 15, tables.CalculatePointsWithStreak(10, 7))
	assert.Equal(t, 50, tables.CalculatePointsWithStreak(50, 0))
	// 5 * 1.2 = 6, 15 * 1.75 = 26.25, 10 * 1.75 = 17.5 rounds up.
	assert.Equal(t, 6, tables.CalculatePointsWithStreak(5, 3))
	assert.Equal(t, 26, tables.CalculatePointsWithStreak(15, 14))
	assert.Equal(t, 18, tables.CalculatePointsWithStreak(10, 14))
	assert.Equal(t, 0, tables.CalculatePointsWithStreak(-10, 7))
}

func TestGetRankByPoints(t *testing.T) {
	tables := DefaultTables()

	tests := []struct {
		points int
		id     string
	}{
		{0, "bronze"},
		{499, "bronze"},
		{500, "silver"},
		{1499, "silver"},
		{1500, "gold"},
		{4000, "platinum"},
		{10000, "diamond"},
		{25000, "master"},
		{49999, "master"},
		{50000, "legend"},
		{1_000_000, "legend"},
		{math.MaxInt, "legend"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.id, tables.GetRankByPoints(tt.points).ID, "points=%d", tt.points)
	}
}

func TestRankPartition_ExactlyOneTierMatches(t *testing.T) {
	ranks := DefaultTables().Ranks()
	for p := 0; p <= 60000; p += 13 {
		matches := 0
		for _, r := range ranks {
			if r.Contains(p) {
				matches++
			}
		}
		assert.Equal(t, 1, matches, "points=%d", p)
	}
}

func TestGetNextRank(t *testing.T) {
	tables := DefaultTables()

	next, ok := tables.GetNextRank(0)
	require.True(t, ok)
	assert.Equal(t, "silver", next.ID)

	_, ok = tables.GetNextRank(50000)
	assert.False(t, ok)
}

func TestRankProgress(t *testing.T) {
	tables := DefaultTables()

	assert.Equal(t, 0.0, tables.GetProgressToNextRankPercent(0))
	assert.InDelta(t, 50.0, tables.GetProgressToNextRankPercent(250), 0.0001)
	assert.Equal(t, 100.0, tables.GetProgressToNextRankPercent(75000))

	assert.Equal(t, 500, tables.GetPointsToNextRank(0))
	assert.Equal(t, 1, tables.GetPointsToNextRank(1499))
	assert.Equal(t, 0, tables.GetPointsToNextRank(50000))

	for p := 0; p <= 60000; p += 101 {
		pct := tables.GetProgressToNextRankPercent(p)
		assert.GreaterOrEqual(t, pct, 0.0)
		assert.LessOrEqual(t, pct, 100.0)
		assert.GreaterOrEqual(t, tables.GetPointsToNextRank(p), 0)
	}
}

func TestDescribeRank(t *testing.T) {
	info := DefaultTables().DescribeRank(600)

	assert.Equal(t, "silver", info.Current.ID)
	require.NotNil(t, info.Next)
	assert.Equal(t, "gold", info.Next.ID)
	assert.Equal(t, 900, info.PointsToNext)

	top := DefaultTables().DescribeRank(60000)
	assert.Nil(t, top.Next)
	assert.Equal(t, 0, top.PointsToNext)
}

func TestGetRankByPoints_FallthroughCallsHandler(t *testing.T) {
	// Bypass NewTables to simulate corrupted data.
	broken := &Tables{
		ranks: []RankTier{
			{ID: "low", MinPoints: 0, MaxPoints: 10},
			{ID: "high", MinPoints: 100, MaxPoints: math.MaxInt},
		},
	}

	var got error
	broken.onInvariant = func(err error) { got = err }

	tier := broken.GetRankByPoints(50)
	assert.Equal(t, "low", tier.ID)
	require.Error(t, got)
	assert.True(t, errors.Is(got, shared.ErrInvariantViolation))
	assert.True(t, errors.Is(got, shared.ErrRankFallthrough))

	strict := broken.WithOptions(WithInvariantHandler(PanicOnInvariant))
	assert.Panics(t, func() { strict.GetRankByPoints(50) })
}

func TestLookupAction(t *testing.T) {
	tables := DefaultTables()

	a, err := tables.LookupAction(ActionCompleteChallenge)
	require.NoError(t, err)
	assert.Equal(t, 50, a.BasePoints)
	assert.Equal(t, 100, a.XPReward)

	_, err = tables.LookupAction("NOPE")
	require.Error(t, err)
	assert.True(t, shared.IsConfigError(err))
	assert.True(t, errors.Is(err, shared.ErrUnknownAction))
	assert.False(t, shared.IsRetryable(err))

	assert.Len(t, tables.Actions(), 8)
	assert.Equal(t, ActionCompleteChallenge, tables.Actions()[0].Key)
}

func TestDefaultTables_Valid(t *testing.T) {
	tables := DefaultTables()
	require.NoError(t, tables.Validate())
	assert.Equal(t, 15, tables.MaxLevel())
	assert.True(t, tables.Ranks()[len(tables.Ranks())-1].IsUnbounded())
}

func TestNewTables_RejectsMalformed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Definition)
		want   string
	}{
		{
			name:   "level gap",
			mutate: func(d *Definition) { d.Levels[3].Level = 9 },
			want:   "does not follow",
		},
		{
			name:   "non increasing xp",
			mutate: func(d *Definition) { d.Levels[2].XPRequired = 100 },
			want:   "xp_required",
		},
		{
			name:   "multiplier below one",
			mutate: func(d *Definition) { d.Streaks[0].Multiplier = 0.5 },
			want:   ">= 1.0",
		},
		{
			name:   "streak not increasing",
			mutate: func(d *Definition) { d.Streaks[2].Multiplier = 1.1 },
			want:   "strictly increasing",
		},
		{
			name:   "rank overlap",
			mutate: func(d *Definition) { d.Ranks[0].MaxPoints = 700 },
			want:   "gap or overlap",
		},
		{
			name:   "rank does not start at zero",
			mutate: func(d *Definition) { d.Ranks[0].MinPoints = 1 },
			want:   "start at 0",
		},
		{
			name:   "bounded top tier",
			mutate: func(d *Definition) { d.Ranks[len(d.Ranks)-1].MaxPoints = 60000 },
			want:   "unbounded",
		},
		{
			name:   "negative reward",
			mutate: func(d *Definition) { d.Actions[0].XPReward = -1 },
			want:   "negative rewards",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := DefaultDefinition()
			tt.mutate(&def)

			_, err := NewTables(def)
			require.Error(t, err)
			assert.True(t, shared.IsInvariantViolation(err))
			assert.True(t, strings.Contains(err.Error(), tt.want), err.Error())
		})
	}
}

func TestNewTables_DuplicateAction(t *testing.T) {
	def := DefaultDefinition()
	def.Actions = append(def.Actions, def.Actions[0])

	_, err := NewTables(def)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInvalidTables))
}

func TestTables_CopiesAreIsolated(t *testing.T) {
	tables := DefaultTables()
	levels := tables.Levels()
	levels[0].Title = "changed"
	ranks := tables.Ranks()
	ranks[0].Benefits[0] = "changed"

	assert.Equal(t, "Iniciante", tables.Levels()[0].Title)
	assert.NotEqual(t, "changed", tables.Ranks()[0].Benefits[0])
}
