package scoring

import (
	"fmt"

	"github.com/glowup/glowup-core/internal/domain/shared"
)

// GetRankByPoints returns the tier containing points.
//
// Validated tables always partition [0, MaxInt], so a miss means the tables
// were corrupted. The invariant handler is told and the lowest tier is
// returned so callers never see a zero RankTier.
func (t *Tables) GetRankByPoints(points int) RankTier {
	points = clampNonNegative(points)
	for _, r := range t.ranks {
		if r.Contains(points) {
			return r
		}
	}
	t.violation("GetRankByPoints", shared.ErrRankFallthrough, "no rank tier matched points", fmt.Errorf("points=%d", points))
	return t.ranks[0]
}

// GetNextRank returns the tier after the one containing points.
// The second value is false at the top tier.
func (t *Tables) GetNextRank(points int) (RankTier, bool) {
	cur := t.GetRankByPoints(points)
	for i, r := range t.ranks {
		if r.ID == cur.ID && i+1 < len(t.ranks) {
			return t.ranks[i+1], true
		}
	}
	return RankTier{}, false
}

// GetProgressToNextRankPercent returns progress through the current tier in
// [0, 100]. The top tier always reports 100.
func (t *Tables) GetProgressToNextRankPercent(points int) float64 {
	points = clampNonNegative(points)
	cur := t.GetRankByPoints(points)
	next, ok := t.GetNextRank(points)
	if !ok {
		return 100
	}
	span := next.MinPoints - cur.MinPoints
	if span <= 0 {
		return 100
	}
	pct := float64(points-cur.MinPoints) / float64(span) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// GetPointsToNextRank returns how many points are missing to reach the next
// tier, or 0 at the top tier.
func (t *Tables) GetPointsToNextRank(points int) int {
	points = clampNonNegative(points)
	next, ok := t.GetNextRank(points)
	if !ok {
		return 0
	}
	return next.MinPoints - points
}

// RankInfo bundles the rank lookups for one points total.
type RankInfo struct {
	Current         RankTier  `json:"current"`
	Next            *RankTier `json:"next,omitempty"`
	ProgressPercent float64   `json:"progress_percent"`
	PointsToNext    int       `json:"points_to_next"`
}

// DescribeRank returns the full rank picture for points.
func (t *Tables) DescribeRank(points int) RankInfo {
	info := RankInfo{
		Current:         t.GetRankByPoints(points),
		ProgressPercent: t.GetProgressToNextRankPercent(points),
		PointsToNext:    t.GetPointsToNextRank(points),
	}
	if next, ok := t.GetNextRank(points); ok {
		info.Next = &next
	}
	return info
}
