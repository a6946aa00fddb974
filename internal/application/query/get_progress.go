// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"strings"

	"github.com/glowup/glowup-core/internal/domain/scoring"
	"github.com/glowup/glowup-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS QUERY
// Returns a user's totals with level, rank and streak context. This is what a
// profile screen renders.
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressQuery contains the query parameters.
type GetProgressQuery struct {
	UserID string
}

// Validate checks the query parameters.
func (q GetProgressQuery) Validate() error {
	if strings.TrimSpace(q.UserID) == "" {
		return shared.ErrInvalidUserID
	}
	return nil
}

// ProgressDTO is the read model of a user's progress.
type ProgressDTO struct {
	// ─────────────────────────────────────────────────────────────────────────
	// Totals
	// ─────────────────────────────────────────────────────────────────────────

	UserID           string `json:"user_id"`
	Points           int    `json:"points"`
	ExperiencePoints int    `json:"experience_points"`

	// ─────────────────────────────────────────────────────────────────────────
	// Level (by XP)
	// ─────────────────────────────────────────────────────────────────────────

	Level scoring.LevelInfo `json:"level"`

	// ─────────────────────────────────────────────────────────────────────────
	// Rank (by points)
	// ─────────────────────────────────────────────────────────────────────────

	Rank scoring.RankInfo `json:"rank"`

	// LeaderboardPosition is 0 when no leaderboard is configured or the
	// user is not listed yet.
	LeaderboardPosition int `json:"leaderboard_position,omitempty"`

	// ─────────────────────────────────────────────────────────────────────────
	// Streak (by consecutive days)
	// ─────────────────────────────────────────────────────────────────────────

	CurrentStreakDays int                           `json:"current_streak_days"`
	LongestStreakDays int                           `json:"longest_streak_days"`
	StreakMultiplier  float64                       `json:"streak_multiplier"`
	NextStreakTier    *scoring.StreakMultiplierTier `json:"next_streak_tier,omitempty"`

	Version int64 `json:"version"`
}

// GetProgressHandler handles GetProgressQuery.
type GetProgressHandler struct {
	tables       *scoring.Tables
	progressRepo scoring.ProgressRepository
	leaderboard  scoring.Leaderboard
}

// NewGetProgressHandler creates a new GetProgressHandler. leaderboard may be nil.
func NewGetProgressHandler(tables *scoring.Tables, progressRepo scoring.ProgressRepository, leaderboard scoring.Leaderboard) *GetProgressHandler {
	return &GetProgressHandler{
		tables:       tables,
		progressRepo: progressRepo,
		leaderboard:  leaderboard,
	}
}

// Handle executes the query.
func (h *GetProgressHandler) Handle(ctx context.Context, q GetProgressQuery) (*ProgressDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	p, err := h.progressRepo.GetUserProgress(ctx, q.UserID)
	if err != nil {
		return nil, err
	}

	dto := &ProgressDTO{
		UserID:            p.UserID,
		Points:            p.Points,
		ExperiencePoints:  p.ExperiencePoints,
		Level:             h.tables.CalculateLevel(p.ExperiencePoints),
		Rank:              h.tables.DescribeRank(p.Points),
		CurrentStreakDays: p.CurrentStreakDays,
		LongestStreakDays: p.LongestStreakDays,
		StreakMultiplier:  h.tables.GetStreakMultiplier(p.CurrentStreakDays),
		Version:           p.Version,
	}
	if next, ok := h.tables.NextStreakTier(p.CurrentStreakDays); ok {
		dto.NextStreakTier = &next
	}

	// The leaderboard is a cache; a miss never fails the query.
	if h.leaderboard != nil {
		if pos, err := h.leaderboard.Position(ctx, p.UserID); err == nil {
			dto.LeaderboardPosition = pos
		}
	}

	return dto, nil
}
