// internal/buses/bank.go
//
// Fallback bus bank for assisted-mode play.
//
// Responsibilities:
//   - Load the bank from BUS_BANK_FILE or fall back to the embedded default.
//   - Normalise entries the same way free-text guesses are normalised,
//     keeping light-rail sentinels verbatim.
//
// File format: one identifier per line; blank lines and "#" comments ignored.
//
// Initialization is run once (sync.Once).

package buses

import (
	"bufio"
	_ "embed"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
)

//go:embed default_bank.txt
var embeddedBank string

var (
	defaultOnce sync.Once
	defaultBank []string
	defaultErr  error
)

// DefaultBank returns the configured fallback bank in display order.
// Returns an error if the bank ends up empty.
func DefaultBank() ([]string, error) {
	defaultOnce.Do(func() {
		var list []string
		if path := os.Getenv("BUS_BANK_FILE"); path != "" {
			f, err := os.Open(path)
			if err != nil {
				defaultErr = err
				return
			}
			defer f.Close()
			list, err = ReadBank(f)
			if err != nil {
				defaultErr = err
				return
			}
		} else {
			list, _ = ReadBank(strings.NewReader(embeddedBank))
		}
		defaultBank = Order(list)
		if len(defaultBank) == 0 {
			defaultErr = errors.New("buses: bank is empty")
		}
	})
	return append([]string{}, defaultBank...), defaultErr
}

// ReadBank parses one identifier per line.
func ReadBank(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if id := CleanBankEntry(line); id != "" {
			out = append(out, id)
		}
	}
	return out, sc.Err()
}

// CleanBankEntry normalises a bank entry. Sentinels pass through unchanged.
func CleanBankEntry(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case strings.ToLower(LineOne):
		return LineOne
	case strings.ToLower(LineTwo):
		return LineTwo
	}
	return Normalize(s)
}
