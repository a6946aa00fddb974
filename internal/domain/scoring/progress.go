package scoring

import (
	"fmt"
	"strings"
	"time"

	"github.com/glowup/glowup-core/internal/domain/shared"
	"github.com/glowup/glowup-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// UserProgress is the persisted gamification state of one user.
//
// Level always equals the level implied by ExperiencePoints, and
// LongestStreakDays is never below CurrentStreakDays.
type UserProgress struct {
	UserID            string    `json:"user_id"`
	Points            int       `json:"points"`
	ExperiencePoints  int       `json:"experience_points"`
	Level             int       `json:"level"`
	CurrentStreakDays int       `json:"current_streak_days"`
	LongestStreakDays int       `json:"longest_streak_days"`
	LastActivityDate  time.Time `json:"last_activity_date,omitempty"`
	Version           int64     `json:"version"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// NewUserProgress returns the initial state for a new account.
func NewUserProgress(userID string, now time.Time) (UserProgress, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return UserProgress{}, shared.ErrInvalidUserID
	}
	now = now.UTC()
	return UserProgress{
		UserID:    userID,
		Level:     1,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Validate checks the record invariants against the given tables.
func (p UserProgress) Validate(t *Tables) error {
	if strings.TrimSpace(p.UserID) == "" {
		return shared.ErrInvalidUserID
	}
	if p.Points < 0 || p.ExperiencePoints < 0 || p.CurrentStreakDays < 0 || p.LongestStreakDays < 0 {
		return shared.NewDomainError("progress", "Validate", shared.ErrNegativeValue, "progress counters cannot be negative")
	}
	if p.LongestStreakDays < p.CurrentStreakDays {
		return shared.NewDomainError("progress", "Validate", shared.ErrValidation, "longest streak is below current streak")
	}
	if want := t.LevelFor(p.ExperiencePoints); p.Level != want {
		return shared.WrapError("progress", "Validate", shared.ErrValidation, "level does not match experience points",
			fmt.Errorf("level=%d want=%d xp=%d", p.Level, want, p.ExperiencePoints))
	}
	return nil
}

// HasActivity reports whether any streak activity was ever recorded.
func (p UserProgress) HasActivity() bool {
	return !p.LastActivityDate.IsZero()
}

// ProgressUpdate is a partial write. Nil fields are left unchanged.
// ExpectedVersion must equal the stored version for the write to apply.
type ProgressUpdate struct {
	Points            *int
	ExperiencePoints  *int
	Level             *int
	CurrentStreakDays *int
	LongestStreakDays *int
	LastActivityDate  *time.Time
	ExpectedVersion   int64
}

// IsEmpty reports whether the update changes nothing.
func (u ProgressUpdate) IsEmpty() bool {
	return u.Points == nil && u.ExperiencePoints == nil && u.Level == nil &&
		u.CurrentStreakDays == nil && u.LongestStreakDays == nil && u.LastActivityDate == nil
}

// ApplyTo returns p with the update applied and the version bumped.
func (u ProgressUpdate) ApplyTo(p UserProgress, now time.Time) UserProgress {
	if u.Points != nil {
		p.Points = *u.Points
	}
	if u.ExperiencePoints != nil {
		p.ExperiencePoints = *u.ExperiencePoints
	}
	if u.Level != nil {
		p.Level = *u.Level
	}
	if u.CurrentStreakDays != nil {
		p.CurrentStreakDays = *u.CurrentStreakDays
	}
	if u.LongestStreakDays != nil {
		p.LongestStreakDays = *u.LongestStreakDays
	}
	if u.LastActivityDate != nil {
		p.LastActivityDate = u.LastActivityDate.UTC()
	}
	p.Version++
	p.UpdatedAt = now.UTC()
	return p
}

// ══════════════════════════════════════════════════════════════════════════════
// DAILY STREAK
// ══════════════════════════════════════════════════════════════════════════════

// StreakChange is the outcome of recording activity on a calendar day.
type StreakChange struct {
	Changed        bool
	Current        int
	Longest        int
	Broken         bool
	PreviousStreak int
	Day            time.Time
}

// RecordActivity computes the streak after activity at the given instant.
// Days are UTC calendar days. Activity on the already recorded day is a no-op,
// the next day extends the streak, and any gap restarts it at 1.
func (p UserProgress) RecordActivity(at time.Time) StreakChange {
	day := timeutil.StartOfDay(at)
	change := StreakChange{
		Current: p.CurrentStreakDays,
		Longest: p.LongestStreakDays,
		Day:     day,
	}

	if !p.HasActivity() {
		change.Changed = true
		change.Current = 1
	} else {
		switch {
		case timeutil.DaysBetween(p.LastActivityDate, day) <= 0:
			// Same day, or a clock that went backwards.
			return change
		case timeutil.IsNextDay(p.LastActivityDate, day):
			change.Changed = true
			change.Current = p.CurrentStreakDays + 1
		default:
			change.Changed = true
			change.PreviousStreak = p.CurrentStreakDays
			change.Broken = p.CurrentStreakDays >= 2
			change.Current = 1
		}
	}

	if change.Current > change.Longest {
		change.Longest = change.Current
	}
	return change
}

// Update turns the change into a versioned partial write.
func (c StreakChange) Update(expectedVersion int64) ProgressUpdate {
	current, longest, day := c.Current, c.Longest, c.Day
	return ProgressUpdate{
		CurrentStreakDays: &current,
		LongestStreakDays: &longest,
		LastActivityDate:  &day,
		ExpectedVersion:   expectedVersion,
	}
}
