// internal/daily/daily.go
//
// Daily busdle templates.
// A template is the admin-entered order of buses ridden on a given day; the
// current template becomes the game target for every player.

package daily

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robalobadob/busdle/internal/buses"
	"github.com/robalobadob/busdle/internal/game"
)

// ErrEmptyOrder is returned when no bus survives parsing.
var ErrEmptyOrder = errors.New("please enter at least one valid bus (light rail excluded)")

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Template is the stored form of a day's busdle.
type Template struct {
	Date           string    `json:"date"`
	Revision       int       `json:"revision"`
	BusOrder       []string  `json:"busOrder"`
	UniqueBusCount int       `json:"uniqueBusCount"`
	BusBank        []string  `json:"busBank,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// TargetID identifies the game built from this template. Every save bumps
// the revision, so re-setting a day's order starts a new game.
func (t Template) TargetID() string {
	return fmt.Sprintf("%s.%d", t.Date, t.Revision)
}

// Target converts the template into a game target using bank as the
// assisted-mode bank.
func (t Template) Target(bank []string) *game.Target {
	return &game.Target{
		ID:       t.TargetID(),
		Sequence: append([]string{}, t.BusOrder...),
		BusBank:  append([]string{}, bank...),
	}
}

// BuildTemplate parses a comma-separated bus order.
//
//   - Entries are trimmed; blanks dropped.
//   - Anything mentioning "line" is light rail and is dropped.
//   - Remaining entries are normalised like free-text guesses.
func BuildTemplate(date, rawOrder string, bank []string) (Template, error) {
	var order []string
	for _, part := range strings.Split(rawOrder, ",") {
		part = strings.TrimSpace(part)
		if part == "" || buses.IsLightRail(part) {
			continue
		}
		if id := buses.Normalize(part); id != "" {
			order = append(order, id)
		}
	}
	if len(order) == 0 {
		return Template{}, ErrEmptyOrder
	}

	var cleanBank []string
	for _, b := range bank {
		if id := buses.CleanBankEntry(b); id != "" {
			cleanBank = append(cleanBank, id)
		}
	}

	return Template{
		Date:           date,
		BusOrder:       order,
		UniqueBusCount: countUnique(order),
		BusBank:        buses.Order(cleanBank),
	}, nil
}

// EffectiveBank picks the first non-empty of the template bank, the
// admin's active bank and the default bank, then adds the target's own
// buses so assisted play is always winnable.
func EffectiveBank(t Template, active, fallback []string) []string {
	base := t.BusBank
	if len(base) == 0 {
		base = active
	}
	if len(base) == 0 {
		base = fallback
	}
	all := append(append([]string{}, base...), t.BusOrder...)
	return buses.Order(all)
}

func countUnique(ids []string) int {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return len(seen)
}
