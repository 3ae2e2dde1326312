// Package codes holds the built-in fixed-width code sets for small nucleotide and
// amino-acid alphabets. The tables are built once at init and shared read-only.
package codes

import (
	"math/bits"

	"github.com/INLOpen/seqpack/alphabet"
)

// ID addresses one of the built-in code sets.
//
//	Id | Code set
//	---+--------------------------------------------
//	 0 | DNA four-letter
//	 1 | DNA four-letter, case sensitive
//	 2 | DNA IUPAC
//	 3 | DNA IUPAC, case sensitive
//	4-7| complemented variants of 0-3
//	 8 | amino acid IUPAC
//	 9 | amino acid IUPAC, case sensitive
type ID uint8

const (
	DNAFourLetter ID = iota
	DNAFourLetterCaseSensitive
	DNAIUPAC
	DNAIUPACCaseSensitive
	DNAFourLetterComplement
	DNAFourLetterCaseSensitiveComplement
	DNAIUPACComplement
	DNAIUPACCaseSensitiveComplement
	AAIUPAC
	AAIUPACCaseSensitive

	numCodeSets
)

// complementOffset is the distance between a DNA set and its complemented variant.
const complementOffset = DNAFourLetterComplement - DNAFourLetter

// Valid reports whether id addresses a built-in code set.
func (id ID) Valid() bool { return id < numCodeSets }

// IsDNA reports whether id addresses a nucleotide code set.
func (id ID) IsDNA() bool { return id < AAIUPAC }

// IsComplement reports whether id addresses a complemented nucleotide code set.
func (id ID) IsComplement() bool { return id >= DNAFourLetterComplement && id < AAIUPAC }

// Complement returns the id of the complemented (or plain) counterpart of a DNA set.
// Amino-acid ids are returned unchanged.
func (id ID) Complement() ID {
	switch {
	case !id.IsDNA():
		return id
	case id.IsComplement():
		return id - complementOffset
	default:
		return id + complementOffset
	}
}

// CodeSet maps symbols to fixed-width codes.
type CodeSet struct {
	id         ID
	name       string
	width      uint8
	symbols    []byte     // code -> plain symbol
	decode     []byte     // code -> symbol as returned by the decoder
	codes      [256]int16 // symbol -> code, -1 if not encodable
	complement bool
}

func (cs *CodeSet) ID() ID             { return cs.id }
func (cs *CodeSet) Name() string       { return cs.name }
func (cs *CodeSet) Width() uint8       { return cs.width }
func (cs *CodeSet) Len() int           { return len(cs.symbols) }
func (cs *CodeSet) IsComplement() bool { return cs.complement }

// Encode returns the code of symbol b. Encode and Decode are inverse for every set;
// a complemented set shares its codes with the plain set, so swapping the set id of a
// stream yields the complemented sequence.
func (cs *CodeSet) Encode(b byte) (uint64, bool) {
	c := cs.codes[b]
	if c < 0 {
		return 0, false
	}
	return uint64(c), true
}

// Decode returns the symbol of code c. Complemented sets return the complement of
// the symbol the code was written for. ok is false for codes outside the set.
func (cs *CodeSet) Decode(c uint64) (byte, bool) {
	if c >= uint64(len(cs.decode)) {
		return 0, false
	}
	return cs.decode[c], true
}

// Symbols returns the encodable symbols in code order.
func (cs *CodeSet) Symbols() []byte { return cs.symbols }

var table [numCodeSets]*CodeSet

func init() {
	plain := []struct {
		id  ID
		set *alphabet.Set
	}{
		{DNAFourLetter, alphabet.DNAFourLetter},
		{DNAFourLetterCaseSensitive, alphabet.DNAFourLetterCaseSensitive},
		{DNAIUPAC, alphabet.DNAIUPAC},
		{DNAIUPACCaseSensitive, alphabet.DNAIUPACCaseSensitive},
		{AAIUPAC, alphabet.AAIUPAC},
		{AAIUPACCaseSensitive, alphabet.AAIUPACCaseSensitive},
	}
	for _, p := range plain {
		table[p.id] = newCodeSet(p.id, p.set, false)
		if p.id.IsDNA() {
			cid := p.id.Complement()
			table[cid] = newCodeSet(cid, p.set, true)
		}
	}
}

func newCodeSet(id ID, set *alphabet.Set, complement bool) *CodeSet {
	n := set.Len()
	cs := &CodeSet{
		id:         id,
		name:       set.Name(),
		width:      uint8(bits.Len(uint(n - 1))),
		symbols:    set.Symbols(),
		decode:     make([]byte, n),
		complement: complement,
	}
	if complement {
		cs.name += "/complement"
	}
	for i := range cs.codes {
		cs.codes[i] = -1
	}
	for code, sym := range cs.symbols {
		if complement {
			cs.codes[alphabet.Complement(sym)] = int16(code)
			cs.decode[code] = alphabet.Complement(sym)
		} else {
			cs.codes[sym] = int16(code)
			cs.decode[code] = sym
		}
	}
	return cs
}

// Lookup returns the code set for id. id must be Valid.
func Lookup(id ID) *CodeSet {
	return table[id]
}
