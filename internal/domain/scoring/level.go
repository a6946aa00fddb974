package scoring

// LevelInfo describes where an XP total sits in the level table.
type LevelInfo struct {
	Level           int     `json:"level"`
	Title           string  `json:"title"`
	Emoji           string  `json:"emoji"`
	CurrentXP       int     `json:"current_xp"`
	LevelStartXP    int     `json:"level_start_xp"`
	NextLevelXP     int     `json:"next_level_xp"`
	XPToNext        int     `json:"xp_to_next"`
	ProgressPercent float64 `json:"progress_percent"`
	IsMaxLevel      bool    `json:"is_max_level"`
}

// CalculateLevel returns the highest level whose threshold is <= xp.
// At the top level ProgressPercent is 100 and XPToNext is 0.
func (t *Tables) CalculateLevel(xp int) LevelInfo {
	xp = clampNonNegative(xp)

	idx := 0
	for i := len(t.levels) - 1; i >= 0; i-- {
		if xp >= t.levels[i].XPRequired {
			idx = i
			break
		}
	}

	cur := t.levels[idx]
	info := LevelInfo{
		Level:        cur.Level,
		Title:        cur.Title,
		Emoji:        cur.Emoji,
		CurrentXP:    xp,
		LevelStartXP: cur.XPRequired,
	}

	if idx == len(t.levels)-1 {
		info.NextLevelXP = cur.XPRequired
		info.ProgressPercent = 100
		info.IsMaxLevel = true
		return info
	}

	next := t.levels[idx+1]
	span := next.XPRequired - cur.XPRequired
	info.NextLevelXP = next.XPRequired
	info.XPToNext = next.XPRequired - xp
	info.ProgressPercent = float64(xp-cur.XPRequired) / float64(span) * 100
	return info
}

// LevelFor returns only the level number for xp.
func (t *Tables) LevelFor(xp int) int {
	return t.CalculateLevel(xp).Level
}

// Threshold returns the table row for a level and whether it exists.
func (t *Tables) Threshold(level int) (LevelThreshold, bool) {
	for _, l := range t.levels {
		if l.Level == level {
			return l, true
		}
	}
	return LevelThreshold{}, false
}
