package scoring

import "context"

// ProgressRepository persists UserProgress.
//
// GetUserProgress returns an error matching shared.ErrNotFound for unknown
// users. SetUserProgress applies a partial update only if the stored version
// equals update.ExpectedVersion, otherwise it returns an error matching
// shared.ErrConcurrentModification. Storage failures match shared.ErrPersistence.
type ProgressRepository interface {
	CreateUserProgress(ctx context.Context, progress UserProgress) error
	GetUserProgress(ctx context.Context, userID string) (UserProgress, error)
	SetUserProgress(ctx context.Context, userID string, update ProgressUpdate) error
}

// LeaderboardEntry is one row of the points leaderboard.
type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	UserID string `json:"user_id"`
	Points int    `json:"points"`
}

// Leaderboard mirrors point totals for ranking. It is a cache: callers treat
// its failures as non-fatal.
type Leaderboard interface {
	SetPoints(ctx context.Context, userID string, points int) error
	Top(ctx context.Context, limit int) ([]LeaderboardEntry, error)
	Position(ctx context.Context, userID string) (int, error)
}
