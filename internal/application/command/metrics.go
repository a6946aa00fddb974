package command

import "time"

// AddPoints outcomes reported to Metrics.
const (
	OutcomeSuccess       = "success"
	OutcomeInvalid       = "invalid"
	OutcomeUnknownAction = "unknown_action"
	OutcomeNotFound      = "not_found"
	OutcomeConflict      = "conflict"
	OutcomePersistence   = "persistence_error"
)

// Metrics receives scoring measurements from the command handlers.
type Metrics interface {
	PointsAwarded(action string, points, xp int)
	LevelUp(newLevel int)
	AddPointsCompleted(outcome string, elapsed time.Duration)
	WriteConflict(operation string)
	StreakRecorded(changed, broken bool)
}

// NopMetrics discards all measurements.
type NopMetrics struct{}

func (NopMetrics) PointsAwarded(string, int, int)           {}
func (NopMetrics) LevelUp(int)                              {}
func (NopMetrics) AddPointsCompleted(string, time.Duration) {}
func (NopMetrics) WriteConflict(string)                     {}
func (NopMetrics) StreakRecorded(bool, bool)                {}
