package buses

import "strings"

// Light-rail sentinels. They may appear in the ride log but never in a
// busdle target.
const (
	LineOne = "Line 1"
	LineTwo = "Line 2"
)

// Normalize reduces free-text input to an identifier: ASCII letters and
// digits only, upper-cased.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
		}
	}
	return b.String()
}

// IsLightRail reports whether s names a light-rail line rather than a bus.
// Any token mentioning "line" counts, so "LINE1" and "line 2" are caught too.
func IsLightRail(s string) bool {
	return strings.Contains(strings.ToLower(s), "line")
}

// LightRail returns the sentinel for line 1 or 2.
func LightRail(line int) (string, bool) {
	switch line {
	case 1:
		return LineOne, true
	case 2:
		return LineTwo, true
	}
	return "", false
}
