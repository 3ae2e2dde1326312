package core

import (
	"fmt"
	"strings"
)

// SequenceKind distinguishes nucleotide sequences from aligned amino-acid sequences.
type SequenceKind uint8

const (
	KindDNA       SequenceKind = 0
	KindAminoAcid SequenceKind = 1
)

func (k SequenceKind) String() string {
	switch k {
	case KindDNA:
		return "dna"
	case KindAminoAcid:
		return "aa"
	default:
		return "unknown"
	}
}

// Valid reports whether k is a known sequence kind.
func (k SequenceKind) Valid() bool {
	return k == KindDNA || k == KindAminoAcid
}

// Alphabet is the restricting alphabet declared by a type modifier.
type Alphabet uint8

const (
	// AlphabetFourLetter allows A, C, G and T only (DNA).
	AlphabetFourLetter Alphabet = 0
	// AlphabetIUPAC allows the IUPAC symbols of the sequence kind, ambiguity codes included.
	AlphabetIUPAC Alphabet = 1
	// AlphabetASCII places no restriction on the input.
	AlphabetASCII Alphabet = 2
)

func (a Alphabet) String() string {
	switch a {
	case AlphabetFourLetter:
		return "flc"
	case AlphabetIUPAC:
		return "iupac"
	case AlphabetASCII:
		return "ascii"
	default:
		return "unknown"
	}
}

// Strategy is the compression strategy hint of a DNA type modifier.
type Strategy uint8

const (
	StrategyDefault   Strategy = 0
	StrategyShort     Strategy = 1
	StrategyReference Strategy = 2
)

func (s Strategy) String() string {
	switch s {
	case StrategyDefault:
		return "default"
	case StrategyShort:
		return "short"
	case StrategyReference:
		return "reference"
	default:
		return "unknown"
	}
}

// TypeModifier holds the declared options of a sequence column.
type TypeModifier struct {
	CaseSensitive bool
	Alphabet      Alphabet
	Strategy      Strategy
}

// Bit layout of the packed modifier.
const (
	typmodCaseBit       = 1 << 0
	typmodAlphabetShift = 1
	typmodAlphabetMask  = 0x3
	typmodStrategyShift = 3
	typmodStrategyMask  = 0x3
)

// DefaultTypeModifier is used when no modifier was declared.
var DefaultTypeModifier = TypeModifier{
	CaseSensitive: false,
	Alphabet:      AlphabetIUPAC,
	Strategy:      StrategyDefault,
}

// Encode packs the modifier into a single integer:
// bit 0 case sensitivity, bits 1-2 restricting alphabet, bits 3-4 strategy.
func (tm TypeModifier) Encode() int32 {
	var v int32
	if tm.CaseSensitive {
		v |= typmodCaseBit
	}
	v |= int32(tm.Alphabet&typmodAlphabetMask) << typmodAlphabetShift
	v |= int32(tm.Strategy&typmodStrategyMask) << typmodStrategyShift
	return v
}

// DecodeTypeModifier unpacks an integer produced by Encode.
// Negative values mean "unspecified" and yield DefaultTypeModifier.
func DecodeTypeModifier(v int32) TypeModifier {
	if v < 0 {
		return DefaultTypeModifier
	}
	return TypeModifier{
		CaseSensitive: v&typmodCaseBit != 0,
		Alphabet:      Alphabet((v >> typmodAlphabetShift) & typmodAlphabetMask),
		Strategy:      Strategy((v >> typmodStrategyShift) & typmodStrategyMask),
	}
}

// Check verifies that the modifier is meaningful for the given sequence kind.
func (tm TypeModifier) Check(kind SequenceKind) error {
	switch kind {
	case KindDNA:
		if tm.Alphabet > AlphabetASCII {
			return &UnsupportedModifierError{Kind: kind, Message: fmt.Sprintf("alphabet %d", tm.Alphabet)}
		}
		if tm.Strategy > StrategyReference {
			return &UnsupportedModifierError{Kind: kind, Message: fmt.Sprintf("strategy %d", tm.Strategy)}
		}
	case KindAminoAcid:
		if tm.Alphabet != AlphabetIUPAC && tm.Alphabet != AlphabetASCII {
			return &UnsupportedModifierError{Kind: kind, Message: "alphabet " + tm.Alphabet.String()}
		}
		if tm.Strategy != StrategyDefault {
			return &UnsupportedModifierError{Kind: kind, Message: "compression strategy is DNA only"}
		}
	default:
		return &UnsupportedModifierError{Kind: kind, Message: "unknown sequence kind"}
	}
	return nil
}

func (tm TypeModifier) String() string {
	var sb strings.Builder
	if tm.CaseSensitive {
		sb.WriteString("case_sensitive")
	} else {
		sb.WriteString("case_insensitive")
	}
	sb.WriteString(",")
	sb.WriteString(tm.Alphabet.String())
	sb.WriteString(",")
	sb.WriteString(tm.Strategy.String())
	return sb.String()
}

// ParseKind maps a configuration keyword to a SequenceKind.
func ParseKind(s string) (SequenceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dna", "rna", "nucleotide":
		return KindDNA, nil
	case "aa", "protein", "amino_acid":
		return KindAminoAcid, nil
	default:
		return 0, fmt.Errorf("unknown sequence kind %q", s)
	}
}

// ParseAlphabet maps a configuration keyword to an Alphabet.
func ParseAlphabet(s string) (Alphabet, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "flc", "four_letter":
		return AlphabetFourLetter, nil
	case "iupac":
		return AlphabetIUPAC, nil
	case "ascii":
		return AlphabetASCII, nil
	default:
		return 0, fmt.Errorf("unknown alphabet %q", s)
	}
}

// ParseStrategy maps a configuration keyword to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return StrategyDefault, nil
	case "short":
		return StrategyShort, nil
	case "reference":
		return StrategyReference, nil
	default:
		return 0, fmt.Errorf("unknown compression strategy %q", s)
	}
}
