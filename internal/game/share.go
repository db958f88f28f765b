package game

import (
	"fmt"
	"strings"
	"time"
)

// ShareText renders a game as the emoji summary players paste elsewhere.
// targetDate is a YYYY-MM-DD key; anything unparsable is printed verbatim.
func ShareText(history []Record, targetDate string, mode Mode) string {
	modeEmoji, modeText := "🔥", "Normal Mode"
	if mode == ModeAssisted {
		modeEmoji, modeText = "🌟", "Wimpy Mode"
	}
	n := len(history)
	plural := "es"
	if n == 1 {
		plural = ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🎯 Busdle %s - %d Guess%s %s\n", formatDate(targetDate), n, plural, modeEmoji)
	fmt.Fprintf(&b, "%s • %s\n\n", modeText, rating(n))
	for _, r := range history {
		b.WriteString(strings.Join(r.Guess, "-"))
		b.WriteString(" ")
		for _, v := range r.Verdict {
			b.WriteString(emoji(v))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n🚌 Play Busdle at your local bus stop!")
	b.WriteString("\n#Busdle #Wordle #BusGame")
	return b.String()
}

func emoji(v Verdict) string {
	switch v {
	case VerdictExact:
		return "🟩"
	case VerdictDisplaced:
		return "🟨"
	case VerdictAbsent:
		return "⬛"
	default:
		return "⬜"
	}
}

func rating(guesses int) string {
	switch {
	case guesses == 1:
		return "🎯 PERFECT!"
	case guesses <= 3:
		return "🏆 EXCELLENT!"
	case guesses <= 5:
		return "👍 GOOD!"
	default:
		return "💪 Keep trying!"
	}
}

func formatDate(key string) string {
	t, err := time.Parse("2006-01-02", key)
	if err != nil {
		return key
	}
	return t.Format("January 2, 2006")
}
