// internal/game/engine.go
//
// Guess evaluation for Busdle.
// Scores an ordered guess of bus identifiers against the target using the
// classic two-pass Wordle algorithm, generalised from letters to arbitrary
// string tokens so repeated buses are handled correctly.

package game

// Evaluate compares guess against target and returns one verdict per position.
// Returns ErrInvalidLength if the two sequences differ in length.
//
// Pass 1:
//   - Count every identifier in the target.
//   - Mark exact matches and consume one unit of that identifier.
//
// Pass 2:
//   - For each non-exact position, left to right: if supply remains for the
//     guessed identifier, mark displaced and consume it; otherwise absent.
//
// Exact matches always claim supply before any displaced match does.
func Evaluate(target, guess []string) ([]Verdict, error) {
	if len(guess) != len(target) {
		return nil, ErrInvalidLength
	}
	n := len(target)
	res := make([]Verdict, n)

	supply := make(map[string]int, n)
	for _, id := range target {
		supply[id]++
	}

	// First pass: exact matches.
	for i := 0; i < n; i++ {
		if guess[i] == target[i] {
			res[i] = VerdictExact
			supply[guess[i]]--
		}
	}

	// Second pass: displaced/absent for the rest.
	for i := 0; i < n; i++ {
		if res[i] == VerdictExact {
			continue
		}
		if supply[guess[i]] > 0 {
			res[i] = VerdictDisplaced
			supply[guess[i]]--
		} else {
			res[i] = VerdictAbsent
		}
	}
	return res, nil
}

// allExact returns true if all verdicts are VerdictExact.
func allExact(v []Verdict) bool {
	for _, x := range v {
		if x != VerdictExact {
			return false
		}
	}
	return len(v) > 0
}
