package core

import (
	"errors"
	"fmt"
)

var (
	// ErrCorruptCodeTable is returned when a compressed value fails its integrity checks.
	ErrCorruptCodeTable = errors.New("corrupt or foreign compressed sequence")
	// ErrEmptyAlphabet is returned when a code table is requested for zero symbols.
	ErrEmptyAlphabet = errors.New("cannot build a code table from an empty symbol stream")
	// ErrNotNucleotide is returned by nucleotide-only operations on other sequence kinds.
	ErrNotNucleotide = errors.New("operation requires a nucleotide sequence")
)

// AlphabetViolationError reports the first input symbol outside the declared alphabet.
type AlphabetViolationError struct {
	Position int
	Symbol   byte
	Alphabet string
}

func (e *AlphabetViolationError) Error() string {
	return fmt.Sprintf("symbol %q at position %d is not part of alphabet %s", e.Symbol, e.Position, e.Alphabet)
}

// RangeError reports a substring request outside [0, Size).
type RangeError struct {
	From   int
	Length int
	Size   int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("range [%d, %d+%d) is outside sequence of length %d", e.From, e.From, e.Length, e.Size)
}

// UnsupportedModifierError is returned for type modifiers that make no sense for a sequence kind.
type UnsupportedModifierError struct {
	Kind    SequenceKind
	Message string
}

func (e *UnsupportedModifierError) Error() string {
	return fmt.Sprintf("unsupported type modifier for %s: %s", e.Kind, e.Message)
}

// IsAlphabetViolation checks if an error is an AlphabetViolationError.
func IsAlphabetViolation(err error) bool {
	var violation *AlphabetViolationError
	return errors.As(err, &violation)
}

// IsRangeError checks if an error is a RangeError.
func IsRangeError(err error) bool {
	var rangeErr *RangeError
	return errors.As(err, &rangeErr)
}

func IsUnsupportedModifier(err error) bool {
	var unsupported *UnsupportedModifierError
	return errors.As(err, &unsupported)
}

// IsCorrupt checks if err reports a malformed compressed value.
func IsCorrupt(err error) bool {
	return errors.Is(err, ErrCorruptCodeTable)
}
