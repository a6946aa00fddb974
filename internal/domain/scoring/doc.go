// Package scoring contains the GlowUp progression rules: levels by XP,
// rank tiers by points, streak multipliers by consecutive days, and the
// catalog of score actions.
//
// Three independent tiering systems live here and must not be conflated:
//
//   - LevelThreshold (by experience points) drives Level and its title.
//   - RankTier (by accumulated points) drives Bronze..Legendary.
//   - StreakMultiplierTier (by consecutive active days) scales points.
//
// All tables are held by an immutable Tables value. Callers get one from
// DefaultTables, NewTables or LoadTablesTOML and pass it to whatever needs it;
// nothing in this package reads package-level mutable state.
//
// Every calculation is pure and safe for concurrent use. Negative inputs are a
// caller contract violation and are clamped to zero.
//
// Example:
//
//	tables := scoring.DefaultTables()
//	info := tables.CalculateLevel(2500)
//	fmt.Println(info.Level, info.Title) // 7 Disciplinado
//
//	pts := tables.CalculatePointsWithStreak(50, 7) // 75
package scoring
