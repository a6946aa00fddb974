package query

import (
	"context"

	"github.com/glowup/glowup-core/internal/domain/scoring"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery contains the query parameters.
type GetLeaderboardQuery struct {
	// Limit is clamped to 1..100, default 10.
	Limit int
}

// LeaderboardEntryDTO is one leaderboard row with its rank tier.
type LeaderboardEntryDTO struct {
	Position  int    `json:"position"`
	UserID    string `json:"user_id"`
	Points    int    `json:"points"`
	RankID    string `json:"rank_id"`
	RankName  string `json:"rank_name"`
	RankEmoji string `json:"rank_emoji"`
}

// LeaderboardReader is satisfied by service.LeaderboardService.
type LeaderboardReader interface {
	Top(ctx context.Context, limit int) ([]scoring.LeaderboardEntry, error)
}

// GetLeaderboardHandler handles GetLeaderboardQuery.
type GetLeaderboardHandler struct {
	tables *scoring.Tables
	reader LeaderboardReader
}

// NewGetLeaderboardHandler creates a new GetLeaderboardHandler.
func NewGetLeaderboardHandler(tables *scoring.Tables, reader LeaderboardReader) *GetLeaderboardHandler {
	return &GetLeaderboardHandler{tables: tables, reader: reader}
}

// Handle executes the query.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) ([]LeaderboardEntryDTO, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	entries, err := h.reader.Top(ctx, limit)
	if err != nil {
		return nil, err
	}

	out := make([]LeaderboardEntryDTO, 0, len(entries))
	for _, e := range entries {
		tier := h.tables.GetRankByPoints(e.Points)
		out = append(out, LeaderboardEntryDTO{
			Position:  e.Rank,
			UserID:    e.UserID,
			Points:    e.Points,
			RankID:    tier.ID,
			RankName:  tier.Name,
			RankEmoji: tier.Emoji,
		})
	}
	return out, nil
}
