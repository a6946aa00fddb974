package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glowup/glowup-core/internal/domain/shared"
)

var day0 = time.Date(2026, 3, 10, 21, 30, 0, 0, time.UTC)

func TestNewUserProgress(t *testing.T) {
	p, err := NewUserProgress("  user-1 ", day0)
	require.NoError(t, err)

	assert.Equal(t, "user-1", p.UserID)
	assert.Equal(t, 1, p.Level)
	assert.Zero(t, p.Points)
	assert.Zero(t, p.ExperiencePoints)
	assert.Zero(t, p.CurrentStreakDays)
	assert.Equal(t, int64(1), p.Version)
	assert.False(t, p.HasActivity())
	assert.NoError(t, p.Validate(DefaultTables()))

	_, err = NewUserProgress("", day0)
	assert.ErrorIs(t, err, shared.ErrInvalidID)
}

func TestUserProgress_Validate(t *testing.T) {
	tables := DefaultTables()
	base, _ := NewUserProgress("u", day0)

	stale := base
	stale.ExperiencePoints = 100
	assert.True(t, shared.IsValidation(stale.Validate(tables)), "level must follow xp")

	streak := base
	streak.CurrentStreakDays = 4
	streak.LongestStreakDays = 3
	assert.True(t, shared.IsValidation(streak.Validate(tables)))

	neg := base
	neg.Points = -1
	assert.ErrorIs(t, neg.Validate(tables), shared.ErrNegativeValue)
}

func TestProgressUpdate_ApplyTo(t *testing.T) {
	p, _ := NewUserProgress("u", day0)
	points, xp, level := 50, 100, 2

	u := ProgressUpdate{Points: &points, ExperiencePoints: &xp, Level: &level, ExpectedVersion: 1}
	assert.False(t, u.IsEmpty())

	later := day0.Add(time.Hour)
	got := u.ApplyTo(p, later)
	assert.Equal(t, 50, got.Points)
	assert.Equal(t, 100, got.ExperiencePoints)
	assert.Equal(t, 2, got.Level)
	assert.Equal(t, 0, got.CurrentStreakDays)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, later, got.UpdatedAt)

	assert.True(t, ProgressUpdate{}.IsEmpty())
}

func TestRecordActivity(t *testing.T) {
	fresh, _ := NewUserProgress("u", day0)

	t.Run("first activity starts at one", func(t *testing.T) {
		c := fresh.RecordActivity(day0)
		assert.True(t, c.Changed)
		assert.Equal(t, 1, c.Current)
		assert.Equal(t, 1, c.Longest)
		assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), c.Day)
	})

	active := fresh
	active.CurrentStreakDays = 4
	active.LongestStreakDays = 4
	active.LastActivityDate = day0

	t.Run("same day is idempotent", func(t *testing.T) {
		c := active.RecordActivity(day0.Add(2 * time.Hour))
		assert.False(t, c.Changed)
		assert.Equal(t, 4, c.Current)
	})

	t.Run("earlier day is ignored", func(t *testing.T) {
		c := active.RecordActivity(day0.AddDate(0, 0, -1))
		assert.False(t, c.Changed)
	})

	t.Run("next day extends", func(t *testing.T) {
		c := active.RecordActivity(day0.Add(3 * time.Hour)) // crosses midnight UTC
		assert.True(t, c.Changed)
		assert.Equal(t, 5, c.Current)
		assert.Equal(t, 5, c.Longest)
		assert.False(t, c.Broken)
	})

	t.Run("gap resets to one", func(t *testing.T) {
		longer := active
		longer.LongestStreakDays = 10

		c := longer.RecordActivity(day0.AddDate(0, 0, 3))
		assert.True(t, c.Changed)
		assert.Equal(t, 1, c.Current)
		assert.Equal(t, 10, c.Longest)
		assert.True(t, c.Broken)
		assert.Equal(t, 4, c.PreviousStreak)
	})

	t.Run("update carries version", func(t *testing.T) {
		c := active.RecordActivity(day0.AddDate(0, 0, 1))
		u := c.Update(7)
		assert.Equal(t, int64(7), u.ExpectedVersion)
		require.NotNil(t, u.CurrentStreakDays)
		assert.Equal(t, 5, *u.CurrentStreakDays)
		require.NotNil(t, u.LastActivityDate)
		assert.Equal(t, c.Day, *u.LastActivityDate)
	})
}
