// Package raresym moves infrequent symbols out of the main stream. Each
// extracted position is recorded in a side table and replaced by a placeholder
// symbol, which shrinks the Huffman alphabet and shortens the common codewords.
package raresym

import (
	"encoding/binary"
	"fmt"

	"github.com/INLOpen/seqpack/core"
)

// Divisor sets the rarity threshold: a symbol is rare when it occurs fewer than
// total/Divisor times.
const Divisor = 100

// Entry is one extracted symbol at Offset in the original sequence.
type Entry struct {
	Offset int
	Symbol byte
}

// Plan describes which symbols are swapped out and the symbol written in their place.
type Plan struct {
	Rare        [256]bool
	Placeholder byte
	Count       int // positions that will be extracted
}

// Choose selects the rare symbols of a frequency table. The most frequent
// symbol (lowest byte value on ties) is the placeholder and is never rare.
// ok is false when no symbol qualifies.
func Choose(freqs *[256]uint64) (Plan, bool) {
	var total, best uint64
	var p Plan
	for s, c := range freqs {
		total += c
		if c > best {
			best = c
			p.Placeholder = byte(s)
		}
	}
	if total == 0 {
		return Plan{}, false
	}
	threshold := total / Divisor
	for s, c := range freqs {
		if c == 0 || byte(s) == p.Placeholder || c >= threshold {
			continue
		}
		p.Rare[s] = true
		p.Count += int(c)
	}
	return p, p.Count > 0
}

// Apply rewrites freqs as seen by the main stream after extraction.
func (p *Plan) Apply(freqs *[256]uint64) {
	for s := range freqs {
		if p.Rare[s] {
			freqs[p.Placeholder] += freqs[s]
			freqs[s] = 0
		}
	}
}

// EncodedSize returns the serialized size of the side table.
func EncodedSize(entries []Entry) int {
	n := core.UvarintLen(uint64(len(entries)))
	prev := 0
	for _, e := range entries {
		n += core.UvarintLen(uint64(e.Offset-prev)) + 1
		prev = e.Offset
	}
	return n
}

// AppendTable serializes entries as a count followed by (gap, symbol) pairs,
// where gap is the distance from the previous entry.
func AppendTable(dst []byte, entries []Entry) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(entries)))
	prev := 0
	for _, e := range entries {
		dst = binary.AppendUvarint(dst, uint64(e.Offset-prev))
		dst = append(dst, e.Symbol)
		prev = e.Offset
	}
	return dst
}

// ParseTable reads a side table for a sequence of size symbols and returns the
// entries with the number of bytes consumed. Offsets must be strictly increasing.
func ParseTable(data []byte, size int) ([]Entry, int, error) {
	n, pos := binary.Uvarint(data)
	if pos <= 0 || n > uint64(size) || n > uint64(len(data)) {
		return nil, 0, fmt.Errorf("rare table count: %w", core.ErrCorruptCodeTable)
	}
	entries := make([]Entry, 0, n)
	prev := 0
	for i := uint64(0); i < n; i++ {
		gap, k := binary.Uvarint(data[pos:])
		if k <= 0 || pos+k >= len(data) {
			return nil, 0, fmt.Errorf("rare entry %d: %w", i, core.ErrCorruptCodeTable)
		}
		pos += k
		if (i > 0 && gap == 0) || gap >= uint64(size) || uint64(prev)+gap >= uint64(size) {
			return nil, 0, fmt.Errorf("rare entry %d out of order or range: %w", i, core.ErrCorruptCodeTable)
		}
		e := Entry{Offset: prev + int(gap), Symbol: data[pos]}
		pos++
		entries = append(entries, e)
		prev = e.Offset
	}
	return entries, pos, nil
}
