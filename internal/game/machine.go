// internal/game/machine.go
//
// Guess lifecycle for one client's Busdle game.
// Responsibilities:
//   - Track the active target and discard state from a previous target.
//   - Validate guesses (shape, blanks, bus bank in assisted mode).
//   - Evaluate, append to history, detect the win.
//   - Persist the full state after every mutation through a StateStore.
//
// States: awaiting input → submitting → awaiting input | won.
// Won is terminal until Reset.

package game

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/busdle/internal/buses"
)

// StateStore persists game state for a client key.
// Load returns (nil, nil) when nothing is stored.
type StateStore interface {
	Load(ctx context.Context, key string) (*State, error)
	Save(ctx context.Context, key string, s State) error
}

// Machine is the game state machine for a single client.
type Machine struct {
	key   string
	store StateStore

	inFlight atomic.Bool // rejects overlapping submits

	mu     sync.Mutex // guards everything below
	target *Target
	bank   map[string]struct{}
	state  State
}

// NewMachine constructs a Machine that persists under key.
// store may be nil, in which case the game is played in memory only.
func NewMachine(key string, store StateStore) *Machine {
	return &Machine{key: key, store: store, state: freshState("")}
}

// Sync installs the currently active target.
//
// A nil target means no game is available. When the target ID differs from
// the one in play, persisted state is restored only if it belongs to the same
// target; otherwise a fresh game starts.
func (m *Machine) Sync(ctx context.Context, t *Target) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t == nil {
		m.target, m.bank = nil, nil
		return
	}
	same := m.target != nil && m.target.ID == t.ID && m.state.TargetID == t.ID
	m.target = copyTarget(t)
	m.bank = bankSet(m.target)
	if same {
		return
	}

	saved := m.load(ctx)
	if saved != nil && compatible(saved, m.target) {
		m.state = saved.clone()
		if !m.state.Mode.Valid() {
			m.state.Mode = ModeFree
		}
		return
	}
	m.state = freshState(t.ID)
	// A fresh game is only written once it replaces a stale record or the
	// player mutates it, so idle visitors leave nothing behind.
	if saved != nil {
		m.persist(ctx)
	}
}

// Submit validates, evaluates and records a guess.
// The returned record carries Animating=true; the stored copy does not.
func (m *Machine) Submit(ctx context.Context, raw []string) (Record, error) {
	if !m.inFlight.CompareAndSwap(false, true) {
		return Record{}, ErrSubmitInFlight
	}
	defer m.inFlight.Store(false)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.target == nil {
		return Record{}, ErrNoTarget
	}
	if m.state.GameWon {
		return Record{}, ErrGameWon
	}
	guess, err := m.prepare(raw)
	if err != nil {
		return Record{}, err
	}
	verdict, err := Evaluate(m.target.Sequence, guess)
	if err != nil {
		return Record{}, err
	}

	rec := Record{Guess: guess, Verdict: verdict}
	m.state.History = append(m.state.History, rec)
	m.state.PendingInput = []string{}
	if rec.Won() {
		m.state.GameWon = true
	}
	m.persist(ctx)

	rec.Guess = append([]string{}, guess...)
	rec.Verdict = append([]Verdict{}, verdict...)
	rec.Animating = true
	return rec, nil
}

// prepare applies the shape guard and mode-specific validation.
func (m *Machine) prepare(raw []string) ([]string, error) {
	if len(raw) != m.target.Len() {
		return nil, ErrIncompleteGuess
	}
	guess := make([]string, len(raw))
	for i, s := range raw {
		if m.state.Mode == ModeAssisted {
			guess[i] = strings.TrimSpace(s)
		} else {
			guess[i] = buses.Normalize(s)
		}
		if guess[i] == "" {
			return nil, ErrIncompleteGuess
		}
	}
	if m.state.Mode == ModeAssisted {
		var invalid []string
		for _, id := range guess {
			if _, ok := m.bank[id]; !ok {
				invalid = append(invalid, id)
			}
		}
		if len(invalid) > 0 {
			return nil, &UnknownIdentifierError{Invalid: invalid}
		}
	}
	return guess, nil
}

// History returns a copy of the guess history.
func (m *Machine) History() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone().History
}

// IsWon reports whether the current game has been won.
func (m *Machine) IsWon() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.GameWon
}

// Reset clears history, pending input and the win flag. The target is kept.
func (m *Machine) Reset(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.state.TargetID
	if m.target != nil {
		id = m.target.ID
	}
	m.state = freshState(id)
	m.persist(ctx)
}

// SetMode switches input mode. Only allowed before the first guess.
func (m *Machine) SetMode(ctx context.Context, mode Mode) error {
	if !mode.Valid() {
		return ErrInvalidMode
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if mode == m.state.Mode {
		return nil
	}
	if len(m.state.History) > 0 || m.state.GameWon {
		return ErrModeLocked
	}
	m.state.Mode = mode
	m.state.PendingInput = []string{}
	m.persist(ctx)
	return nil
}

// SetPending stores partially entered input so it survives a reload.
func (m *Machine) SetPending(ctx context.Context, inputs []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.PendingInput = append([]string{}, inputs...)
	m.persist(ctx)
}

// Snapshot returns a copy of the state as it is persisted.
func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// BusBank returns the assisted-mode bank of the active target, or nil.
func (m *Machine) BusBank() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.target == nil {
		return nil
	}
	return append([]string{}, m.target.BusBank...)
}

// Target returns a copy of the active target, or nil.
func (m *Machine) Target() *Target {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.target == nil {
		return nil
	}
	return copyTarget(m.target)
}

// load reads persisted state; any failure is treated as "nothing saved".
func (m *Machine) load(ctx context.Context) *State {
	if m.store == nil {
		return nil
	}
	s, err := m.store.Load(ctx, m.key)
	if err != nil {
		log.Warn().Err(err).Str("key", m.key).Msg("load game state")
		return nil
	}
	return s
}

// persist writes the full state. Failures are logged and play continues.
func (m *Machine) persist(ctx context.Context) {
	if m.store == nil {
		return
	}
	if err := m.store.Save(ctx, m.key, m.state.clone()); err != nil {
		log.Warn().Err(err).Str("key", m.key).Msg("save game state")
	}
}

// compatible reports whether saved state can be resumed against t.
func compatible(s *State, t *Target) bool {
	if s.TargetID != t.ID {
		return false
	}
	for _, r := range s.History {
		if len(r.Guess) != t.Len() || len(r.Verdict) != t.Len() {
			return false
		}
	}
	return true
}

func copyTarget(t *Target) *Target {
	return &Target{
		ID:       t.ID,
		Sequence: append([]string{}, t.Sequence...),
		BusBank:  append([]string{}, t.BusBank...),
	}
}

// bankSet builds the assisted-mode lookup. An empty bank falls back to the
// target's own buses so assisted play stays winnable.
func bankSet(t *Target) map[string]struct{} {
	src := t.BusBank
	if len(src) == 0 {
		src = t.Sequence
	}
	set := make(map[string]struct{}, len(src))
	for _, id := range src {
		set[id] = struct{}{}
	}
	return set
}
