package scoring

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/glowup/glowup-core/internal/domain/shared"
)

// LoadTablesTOML reads a tables file from path.
//
// Sections that are missing from the file keep their compiled-in values, so a
// file may override only the action catalog, for example.
func LoadTablesTOML(path string, opts ...Option) (*Tables, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, shared.WrapError("scoring", "LoadTablesTOML", shared.ErrConfig,
			"cannot open tables file", err)
	}
	defer f.Close()
	return DecodeTablesTOML(f, opts...)
}

// DecodeTablesTOML decodes and validates tables from r.
func DecodeTablesTOML(r io.Reader, opts ...Option) (*Tables, error) {
	var def Definition
	md, err := toml.NewDecoder(r).Decode(&def)
	if err != nil {
		return nil, shared.WrapError("scoring", "DecodeTablesTOML", shared.ErrConfig,
			"invalid tables file", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, shared.WrapError("scoring", "DecodeTablesTOML", shared.ErrConfig,
			"unknown keys in tables file", fmt.Errorf("%v", undecoded))
	}

	defaults := defaultDefinition()
	if !md.IsDefined("levels") {
		def.Levels = defaults.Levels
	}
	if !md.IsDefined("streak_multipliers") {
		def.Streaks = defaults.Streaks
	}
	if !md.IsDefined("ranks") {
		def.Ranks = defaults.Ranks
	}
	if !md.IsDefined("actions") {
		def.Actions = defaults.Actions
	}

	return NewTables(def, opts...)
}

// EncodeTOML writes the tables in the tables file format.
func (t *Tables) EncodeTOML(w io.Writer) error {
	def := t.Definition()
	// The unbounded top tier is written without max_points; NewTables derives it.
	if n := len(def.Ranks); n > 0 && def.Ranks[n-1].IsUnbounded() {
		def.Ranks[n-1].MaxPoints = 0
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(tomlDefinition(def)); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// tomlRank omits a zero max_points so the top tier round-trips.
type tomlRank struct {
	ID        string   `toml:"id"`
	Name      string   `toml:"name"`
	MinPoints int      `toml:"min_points"`
	MaxPoints int      `toml:"max_points,omitempty"`
	Emoji     string   `toml:"emoji"`
	Color     string   `toml:"color"`
	Benefits  []string `toml:"benefits"`
}

type tomlDef struct {
	Levels  []LevelThreshold       `toml:"levels"`
	Streaks []StreakMultiplierTier `toml:"streak_multipliers"`
	Ranks   []tomlRank             `toml:"ranks"`
	Actions []ScoreAction          `toml:"actions"`
}

func tomlDefinition(def Definition) tomlDef {
	out := tomlDef{Levels: def.Levels, Streaks: def.Streaks, Actions: def.Actions}
	for _, r := range def.Ranks {
		out.Ranks = append(out.Ranks, tomlRank(r))
	}
	return out
}
