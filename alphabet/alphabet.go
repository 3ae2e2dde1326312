// Package alphabet defines the symbol sets accepted by nucleotide and amino-acid
// sequences, validates input against a type modifier and provides the IUPAC
// nucleotide complement.
package alphabet

import (
	"strings"

	"github.com/INLOpen/seqpack/core"
)

// Set is an ordered set of byte symbols.
type Set struct {
	name    string
	symbols []byte
	member  [256]bool
}

// NewSet builds a set from the given symbols; duplicates are dropped, order is kept.
func NewSet(name string, symbols string) *Set {
	s := &Set{name: name}
	for i := 0; i < len(symbols); i++ {
		b := symbols[i]
		if s.member[b] {
			continue
		}
		s.member[b] = true
		s.symbols = append(s.symbols, b)
	}
	return s
}

func (s *Set) Name() string { return s.name }

// Symbols returns the ordered symbols of the set. The slice must not be modified.
func (s *Set) Symbols() []byte { return s.symbols }

func (s *Set) Len() int { return len(s.symbols) }

// Contains reports whether b is a member of the set.
func (s *Set) Contains(b byte) bool { return s.member[b] }

const (
	dnaFourLetter = "ACGT"
	dnaIUPAC      = "ACGTRYKMSWBDHVN-"
	aaIUPAC       = "ABCDEFGHIJKLMNOPQRSTUVWXYZ*-"
)

// Built-in restricting alphabets. Case-sensitive variants list upper case first.
var (
	DNAFourLetter              = NewSet("dna/flc", dnaFourLetter)
	DNAFourLetterCaseSensitive = NewSet("dna/flc/cs", dnaFourLetter+strings.ToLower(dnaFourLetter))
	DNAIUPAC                   = NewSet("dna/iupac", dnaIUPAC)
	DNAIUPACCaseSensitive      = NewSet("dna/iupac/cs", dnaIUPAC+strings.ToLower(dnaIUPAC))
	AAIUPAC                    = NewSet("aa/iupac", aaIUPAC)
	AAIUPACCaseSensitive       = NewSet("aa/iupac/cs", aaIUPAC+strings.ToLower(aaIUPAC))
)

// For returns the restricting alphabet of a kind and modifier, or nil for ASCII.
// Case-insensitive sets hold upper-case symbols only; input is folded before lookup.
func For(kind core.SequenceKind, tm core.TypeModifier) *Set {
	switch {
	case kind == core.KindDNA && tm.Alphabet == core.AlphabetFourLetter:
		if tm.CaseSensitive {
			return DNAFourLetterCaseSensitive
		}
		return DNAFourLetter
	case kind == core.KindDNA && tm.Alphabet == core.AlphabetIUPAC:
		if tm.CaseSensitive {
			return DNAIUPACCaseSensitive
		}
		return DNAIUPAC
	case kind == core.KindAminoAcid && tm.Alphabet == core.AlphabetIUPAC:
		if tm.CaseSensitive {
			return AAIUPACCaseSensitive
		}
		return AAIUPAC
	default:
		return nil
	}
}

// Fold returns input with lower-case ASCII letters mapped to upper case when the
// modifier is case-insensitive. The input is returned unchanged otherwise, or when
// it has no lower-case letter.
func Fold(input []byte, tm core.TypeModifier) []byte {
	if tm.CaseSensitive {
		return input
	}
	first := -1
	for i, b := range input {
		if b >= 'a' && b <= 'z' {
			first = i
			break
		}
	}
	if first < 0 {
		return input
	}
	out := make([]byte, len(input))
	copy(out, input[:first])
	for i := first; i < len(input); i++ {
		b := input[i]
		if b >= 'a' && b <= 'z' {
			b -= 'a' - 'A'
		}
		out[i] = b
	}
	return out
}

// Validate checks every symbol of input against the restricting alphabet of the
// modifier. Case-insensitive modifiers accept either case. The first offending
// symbol is reported as *core.AlphabetViolationError.
func Validate(input []byte, kind core.SequenceKind, tm core.TypeModifier) error {
	set := For(kind, tm)
	if set == nil {
		return nil
	}
	for i, b := range input {
		c := b
		if !tm.CaseSensitive && c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if !set.Contains(c) {
			return &core.AlphabetViolationError{Position: i, Symbol: b, Alphabet: set.Name()}
		}
	}
	return nil
}

// Used returns the distinct symbols of data in ascending byte order.
func Used(data []byte) []byte {
	var seen [256]bool
	for _, b := range data {
		seen[b] = true
	}
	return fromMask(&seen)
}

// Merge returns the ascending union of symbol lists.
func Merge(lists ...[]byte) []byte {
	var seen [256]bool
	for _, l := range lists {
		for _, b := range l {
			seen[b] = true
		}
	}
	return fromMask(&seen)
}

func fromMask(seen *[256]bool) []byte {
	out := make([]byte, 0, 32)
	for i := 0; i < 256; i++ {
		if seen[i] {
			out = append(out, byte(i))
		}
	}
	return out
}
