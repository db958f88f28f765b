// Package store holds game.StateStore backends.
//
// Every backend stores the whole state as one JSON document per client key
// and overwrites it on each save; there is no partial update and no schema
// versioning, since a mismatched targetId discards the record anyway.
package store

import (
	"encoding/json"
	"fmt"

	"github.com/robalobadob/busdle/internal/game"
)

func encode(s game.State) ([]byte, error) {
	hist := make([]game.Record, len(s.History))
	copy(hist, s.History)
	for i := range hist {
		hist[i].Animating = false
	}
	s.History = hist
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode game state: %w", err)
	}
	return b, nil
}

func decode(b []byte) (*game.State, error) {
	var s game.State
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode game state: %w", err)
	}
	return &s, nil
}
