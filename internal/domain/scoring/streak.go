package scoring

import "math"

// GetStreakMultiplier returns the multiplier of the highest tier whose
// MinDays <= days. Negative days are treated as zero.
func (t *Tables) GetStreakMultiplier(days int) float64 {
	days = clampNonNegative(days)
	m := t.streaks[0].Multiplier
	for _, tier := range t.streaks {
		if days < tier.MinDays {
			break
		}
		m = tier.Multiplier
	}
	return m
}

// CalculatePointsWithStreak scales base points by the streak multiplier and
// rounds half away from zero.
func (t *Tables) CalculatePointsWithStreak(basePoints, streakDays int) int {
	basePoints = clampNonNegative(basePoints)
	return int(math.Round(float64(basePoints) * t.GetStreakMultiplier(streakDays)))
}

// NextStreakTier returns the next multiplier tier above days, if any.
func (t *Tables) NextStreakTier(days int) (StreakMultiplierTier, bool) {
	days = clampNonNegative(days)
	for _, tier := range t.streaks {
		if tier.MinDays > days {
			return tier, true
		}
	}
	return StreakMultiplierTier{}, false
}
