package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/glowup/glowup-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TABLE DEFINITIONS
// ══════════════════════════════════════════════════════════════════════════════

// LevelThreshold is one row of the level table.
type LevelThreshold struct {
	Level      int    `toml:"level" json:"level"`
	XPRequired int    `toml:"xp_required" json:"xp_required"`
	Title      string `toml:"title" json:"title"`
	Emoji      string `toml:"emoji" json:"emoji"`
}

// StreakMultiplierTier is one row of the streak multiplier table.
type StreakMultiplierTier struct {
	MinDays    int     `toml:"min_days" json:"min_days"`
	Multiplier float64 `toml:"multiplier" json:"multiplier"`
}

// RankTier is one named bracket of accumulated points.
// MaxPoints is inclusive; the top tier is unbounded (math.MaxInt).
type RankTier struct {
	ID        string   `toml:"id" json:"id"`
	Name      string   `toml:"name" json:"name"`
	MinPoints int      `toml:"min_points" json:"min_points"`
	MaxPoints int      `toml:"max_points" json:"max_points"`
	Emoji     string   `toml:"emoji" json:"emoji"`
	Color     string   `toml:"color" json:"color"`
	Benefits  []string `toml:"benefits" json:"benefits"`
}

// Contains reports whether points fall inside the tier.
func (r RankTier) Contains(points int) bool {
	return points >= r.MinPoints && points <= r.MaxPoints
}

// IsUnbounded reports whether the tier has no upper limit.
func (r RankTier) IsUnbounded() bool {
	return r.MaxPoints == math.MaxInt
}

// ScoreAction is a catalog entry describing what an action is worth.
type ScoreAction struct {
	Key         string `toml:"key" json:"key"`
	BasePoints  int    `toml:"base_points" json:"base_points"`
	XPReward    int    `toml:"xp_reward" json:"xp_reward"`
	Description string `toml:"description" json:"description"`
	Emoji       string `toml:"emoji" json:"emoji"`
}

// Definition is the raw, unvalidated content of all scoring tables.
// It is the shape of the TOML tables file.
type Definition struct {
	Levels  []LevelThreshold       `toml:"levels"`
	Streaks []StreakMultiplierTier `toml:"streak_multipliers"`
	Ranks   []RankTier             `toml:"ranks"`
	Actions []ScoreAction          `toml:"actions"`
}

// ══════════════════════════════════════════════════════════════════════════════
// TABLES
// ══════════════════════════════════════════════════════════════════════════════

// InvariantHandler is called when a lookup falls through a table that should
// have matched. It receives an error wrapping shared.ErrInvariantViolation.
type InvariantHandler func(err error)

// PanicOnInvariant fails loudly. Use it in development and tests.
func PanicOnInvariant(err error) {
	panic(err)
}

// Tables is an immutable, validated set of scoring tables.
type Tables struct {
	levels      []LevelThreshold
	streaks     []StreakMultiplierTier
	ranks       []RankTier
	actions     map[string]ScoreAction
	actionOrder []string
	onInvariant InvariantHandler
}

// Option configures Tables at construction.
type Option func(*Tables)

// WithInvariantHandler sets the handler called on table fall-through.
// The default handler ignores the violation and lets the lookup fall back.
func WithInvariantHandler(h InvariantHandler) Option {
	return func(t *Tables) {
		if h != nil {
			t.onInvariant = h
		}
	}
}

// NewTables validates def and returns an immutable Tables.
// RankTier.MaxPoints may be left at zero; it is derived from the next tier.
func NewTables(def Definition, opts ...Option) (*Tables, error) {
	t := &Tables{
		levels:      append([]LevelThreshold(nil), def.Levels...),
		streaks:     append([]StreakMultiplierTier(nil), def.Streaks...),
		ranks:       make([]RankTier, len(def.Ranks)),
		actions:     make(map[string]ScoreAction, len(def.Actions)),
		actionOrder: make([]string, 0, len(def.Actions)),
		onInvariant: func(error) {},
	}

	for i, r := range def.Ranks {
		r.Benefits = append([]string(nil), r.Benefits...)
		derived := math.MaxInt
		if i+1 < len(def.Ranks) {
			derived = def.Ranks[i+1].MinPoints - 1
		}
		if r.MaxPoints == 0 {
			r.MaxPoints = derived
		}
		t.ranks[i] = r
	}

	for _, a := range def.Actions {
		if _, dup := t.actions[a.Key]; dup {
			return nil, shared.WrapError("scoring", "NewTables", shared.ErrInvalidTables,
				"duplicate action key", fmt.Errorf("%q", a.Key))
		}
		t.actions[a.Key] = a
		t.actionOrder = append(t.actionOrder, a.Key)
	}

	for _, opt := range opts {
		opt(t)
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// MustNewTables is like NewTables but panics on invalid input.
func MustNewTables(def Definition, opts ...Option) *Tables {
	t, err := NewTables(def, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// WithOptions returns a copy of t with opts applied. Table data is shared
// because it is never mutated.
func (t *Tables) WithOptions(opts ...Option) *Tables {
	clone := *t
	for _, opt := range opts {
		opt(&clone)
	}
	return &clone
}

// Validate checks every table invariant and reports all violations at once.
func (t *Tables) Validate() error {
	var errs []string

	if len(t.levels) == 0 {
		errs = append(errs, "level table is empty")
	} else {
		if t.levels[0].Level != 1 || t.levels[0].XPRequired != 0 {
			errs = append(errs, "first level must be level 1 at 0 XP")
		}
		for i := 1; i < len(t.levels); i++ {
			prev, cur := t.levels[i-1], t.levels[i]
			if cur.Level != prev.Level+1 {
				errs = append(errs, fmt.Sprintf("level %d does not follow level %d", cur.Level, prev.Level))
			}
			if cur.XPRequired <= prev.XPRequired {
				errs = append(errs, fmt.Sprintf("level %d xp_required must be greater than %d", cur.Level, prev.XPRequired))
			}
		}
	}

	if len(t.streaks) == 0 {
		errs = append(errs, "streak multiplier table is empty")
	} else {
		if t.streaks[0].MinDays != 0 {
			errs = append(errs, "first streak tier must start at 0 days")
		}
		if t.streaks[0].Multiplier < 1.0 {
			errs = append(errs, "streak multipliers must be >= 1.0")
		}
		for i := 1; i < len(t.streaks); i++ {
			prev, cur := t.streaks[i-1], t.streaks[i]
			if cur.MinDays <= prev.MinDays || cur.Multiplier <= prev.Multiplier {
				errs = append(errs, fmt.Sprintf("streak tier %d is not strictly increasing", i))
			}
		}
	}

	if len(t.ranks) == 0 {
		errs = append(errs, "rank table is empty")
	} else {
		if t.ranks[0].MinPoints != 0 {
			errs = append(errs, "first rank tier must start at 0 points")
		}
		seen := make(map[string]bool, len(t.ranks))
		for i, r := range t.ranks {
			if r.ID == "" {
				errs = append(errs, fmt.Sprintf("rank tier %d has no id", i))
			}
			if seen[r.ID] {
				errs = append(errs, fmt.Sprintf("duplicate rank id %q", r.ID))
			}
			seen[r.ID] = true
			if r.MaxPoints < r.MinPoints {
				errs = append(errs, fmt.Sprintf("rank %q has max_points below min_points", r.ID))
			}
			if i+1 < len(t.ranks) && r.MaxPoints+1 != t.ranks[i+1].MinPoints {
				errs = append(errs, fmt.Sprintf("rank %q leaves a gap or overlap before %q", r.ID, t.ranks[i+1].ID))
			}
		}
		if !t.ranks[len(t.ranks)-1].IsUnbounded() {
			errs = append(errs, "top rank tier must be unbounded")
		}
	}

	for _, key := range t.actionOrder {
		a := t.actions[key]
		if a.Key == "" {
			errs = append(errs, "action with empty key")
		}
		if a.BasePoints < 0 || a.XPReward < 0 {
			errs = append(errs, fmt.Sprintf("action %q has negative rewards", a.Key))
		}
	}

	if len(errs) > 0 {
		return shared.WrapError("scoring", "ValidateTables", shared.ErrInvalidTables,
			"scoring tables are malformed", fmt.Errorf("%s", strings.Join(errs, "; ")))
	}
	return nil
}

// Levels returns a copy of the level table.
func (t *Tables) Levels() []LevelThreshold {
	return append([]LevelThreshold(nil), t.levels...)
}

// StreakTiers returns a copy of the streak multiplier table.
func (t *Tables) StreakTiers() []StreakMultiplierTier {
	return append([]StreakMultiplierTier(nil), t.streaks...)
}

// Ranks returns a copy of the rank table.
func (t *Tables) Ranks() []RankTier {
	out := make([]RankTier, len(t.ranks))
	for i, r := range t.ranks {
		r.Benefits = append([]string(nil), r.Benefits...)
		out[i] = r
	}
	return out
}

// MaxLevel returns the highest level defined.
func (t *Tables) MaxLevel() int {
	return t.levels[len(t.levels)-1].Level
}

// Definition returns the tables as a raw Definition (useful for export).
func (t *Tables) Definition() Definition {
	return Definition{
		Levels:  t.Levels(),
		Streaks: t.StreakTiers(),
		Ranks:   t.Ranks(),
		Actions: t.Actions(),
	}
}

func (t *Tables) violation(op string, kind error, msg string, err error) {
	t.onInvariant(shared.WrapError("scoring", op, kind, msg, err))
}

func clampNonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
