// internal/game/types.go
//
// Core type definitions for the Busdle game engine.
// Defines:
//   - Verdict: per-position result of a guess (exact/displaced/absent).
//   - Mode:    input mode (free entry or assisted picker).
//   - Target:  the hidden bus sequence for one game instance.
//   - Record:  one submitted guess with its verdicts.
//   - State:   the persisted shape of a client's game.

package game

// Verdict represents the evaluation result for a single position in a guess.
// Possible values:
//   - "exact":     bus is in the target at this position.
//   - "displaced": bus is in the target but at a different position.
//   - "absent":    bus has no remaining occurrence in the target.
type Verdict string

const (
	VerdictExact     Verdict = "exact"
	VerdictDisplaced Verdict = "displaced"
	VerdictAbsent    Verdict = "absent"
)

// Mode selects how guesses are entered and validated.
type Mode string

const (
	// ModeFree accepts any non-empty identifier; unknown buses score absent.
	ModeFree Mode = "free"
	// ModeAssisted only accepts identifiers from the bus bank.
	ModeAssisted Mode = "assisted"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool { return m == ModeFree || m == ModeAssisted }

// Target is the hidden sequence for a game instance.
type Target struct {
	ID       string   `json:"id"`       // date/revision tag; same ID means same game
	Sequence []string `json:"sequence"` // ordered bus identifiers
	BusBank  []string `json:"busBank,omitempty"`
}

// Len is the number of positions in the target.
func (t *Target) Len() int { return len(t.Sequence) }

// Record is one entry of the guess history.
type Record struct {
	Guess   []string  `json:"guess"`
	Verdict []Verdict `json:"verdict"`

	// Animating is set on the record returned from Submit so a client can
	// play the reveal. It is never persisted.
	Animating bool `json:"animating,omitempty"`
}

// Won reports whether every verdict is exact.
func (r Record) Won() bool { return allExact(r.Verdict) }

// State is the persisted record of a client's game, fully overwritten on save.
type State struct {
	History      []Record `json:"history"`
	PendingInput []string `json:"pendingInput"`
	GameWon      bool     `json:"gameWon"`
	TargetID     string   `json:"targetId"`
	Mode         Mode     `json:"mode"`
}

func freshState(targetID string) State {
	return State{
		History:      []Record{},
		PendingInput: []string{},
		TargetID:     targetID,
		Mode:         ModeFree,
	}
}

// clone returns a deep copy with transient flags stripped.
func (s State) clone() State {
	out := State{
		History:      make([]Record, len(s.History)),
		PendingInput: append([]string{}, s.PendingInput...),
		GameWon:      s.GameWon,
		TargetID:     s.TargetID,
		Mode:         s.Mode,
	}
	for i, r := range s.History {
		out.History[i] = Record{
			Guess:   append([]string{}, r.Guess...),
			Verdict: append([]Verdict{}, r.Verdict...),
		}
	}
	return out
}
