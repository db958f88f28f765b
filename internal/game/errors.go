package game

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidLength means a guess and target differ in length. Callers of
	// Evaluate are expected to prevent this.
	ErrInvalidLength = errors.New("guess length does not match target")

	// ErrIncompleteGuess rejects guesses that are short or have blank positions.
	ErrIncompleteGuess = errors.New("incomplete guess")

	// ErrUnknownIdentifier is matched by *UnknownIdentifierError.
	ErrUnknownIdentifier = errors.New("unknown bus")

	ErrGameWon        = errors.New("game already won")
	ErrSubmitInFlight = errors.New("a guess is already being submitted")
	ErrNoTarget       = errors.New("no busdle available")
	ErrModeLocked     = errors.New("mode can only change before the first guess")
	ErrInvalidMode    = errors.New("invalid mode")
)

// UnknownIdentifierError lists the guessed buses that are outside the bus bank.
type UnknownIdentifierError struct {
	Invalid []string
}

func (e *UnknownIdentifierError) Error() string {
	return "invalid buses: " + strings.Join(e.Invalid, ", ")
}

func (e *UnknownIdentifierError) Is(target error) bool {
	return target == ErrUnknownIdentifier
}
