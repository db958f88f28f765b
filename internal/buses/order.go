// internal/buses/order.go
//
// Display ordering for bus identifiers (picker keyboard, bank listings).
//
// Order, by priority:
//   1. Light-rail sentinels ("Line 1" then "Line 2") before everything.
//   2. Purely numeric < purely alphabetic < mixed.
//   3. Numeric tokens by value.
//   4. Alphabetic tokens by English collation.
//   5. Mixed tokens, and every remaining tie, by raw string.
//
// Compare is a single total order: distinct strings never compare equal.

package buses

import (
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

type class int

const (
	classSentinel class = iota
	classNumeric
	classAlpha
	classMixed
)

var (
	colMu sync.Mutex // collate.Collator is not safe for concurrent use
	col   = collate.New(language.English)
)

// Order returns the distinct identifiers of ids in display order.
// The input slice is not modified.
func Order(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	colMu.Lock()
	defer colMu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return compare(out[i], out[j]) < 0 })
	return out
}

// Compare returns -1, 0 or +1 ordering a against b for display.
func Compare(a, b string) int {
	colMu.Lock()
	defer colMu.Unlock()
	return compare(a, b)
}

// compare assumes colMu is held.
func compare(a, b string) int {
	if a == b {
		return 0
	}
	ca, cb := classify(a), classify(b)
	if ca != cb {
		if ca < cb {
			return -1
		}
		return 1
	}

	var c int
	switch ca {
	case classSentinel:
		c = sentinelRank(a) - sentinelRank(b)
	case classNumeric:
		c = compareNumeric(a, b)
	case classAlpha:
		c = col.CompareString(a, b)
	}
	if c != 0 {
		return sign(c)
	}
	return strings.Compare(a, b)
}

func classify(s string) class {
	switch {
	case s == LineOne || s == LineTwo:
		return classSentinel
	case isDigits(s):
		return classNumeric
	case isLetters(s):
		return classAlpha
	default:
		return classMixed
	}
}

func sentinelRank(s string) int {
	if s == LineOne {
		return 0
	}
	return 1
}

// compareNumeric orders digit strings by value without parsing, so
// arbitrarily long route numbers never overflow.
func compareNumeric(a, b string) int {
	a, b = trimZeros(a), trimZeros(b)
	if len(a) != len(b) {
		return len(a) - len(b)
	}
	return strings.Compare(a, b)
}

func trimZeros(s string) string {
	t := strings.TrimLeft(s, "0")
	if t == "" {
		return "0"
	}
	return t
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isLetters(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
