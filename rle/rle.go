// Package rle extracts long homopolymer runs from a symbol stream into a side
// table so the remaining symbols can be entropy coded without them.
package rle

import (
	"encoding/binary"
	"fmt"

	"github.com/INLOpen/seqpack/core"
)

// MinRunLength is the shortest run that is moved to the run table.
const MinRunLength = 16

// Run is a maximal stretch of one symbol at Offset in the original sequence.
type Run struct {
	Offset int
	Symbol byte
	Length int
}

// End returns the offset just past the run.
func (r Run) End() int { return r.Offset + r.Length }

// Find returns all maximal runs of at least MinRunLength symbols, in offset order.
func Find(data []byte) []Run {
	var runs []Run
	for i := 0; i < len(data); {
		j := i + 1
		for j < len(data) && data[j] == data[i] {
			j++
		}
		if j-i >= MinRunLength {
			runs = append(runs, Run{Offset: i, Symbol: data[i], Length: j - i})
		}
		i = j
	}
	return runs
}

// EncodedSize returns the serialized size of the run table.
func EncodedSize(runs []Run) int {
	n := core.UvarintLen(uint64(len(runs)))
	prev := 0
	for _, r := range runs {
		n += core.UvarintLen(uint64(r.Offset-prev)) + 1 + core.UvarintLen(uint64(r.Length))
		prev = r.End()
	}
	return n
}

// AppendTable serializes runs as a count followed by (gap, symbol, length)
// entries, where gap is the distance from the end of the previous run.
func AppendTable(dst []byte, runs []Run) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(runs)))
	prev := 0
	for _, r := range runs {
		dst = binary.AppendUvarint(dst, uint64(r.Offset-prev))
		dst = append(dst, r.Symbol)
		dst = binary.AppendUvarint(dst, uint64(r.Length))
		prev = r.End()
	}
	return dst
}

// ParseTable reads a run table for a sequence of size symbols and returns the
// runs together with the number of bytes consumed.
func ParseTable(data []byte, size int) ([]Run, int, error) {
	n, pos := binary.Uvarint(data)
	if pos <= 0 || n > uint64(size) || n > uint64(len(data)) {
		return nil, 0, fmt.Errorf("run table count: %w", core.ErrCorruptCodeTable)
	}
	runs := make([]Run, 0, n)
	prev := 0
	for i := uint64(0); i < n; i++ {
		gap, k := binary.Uvarint(data[pos:])
		if k <= 0 || pos+k >= len(data) {
			return nil, 0, fmt.Errorf("run %d offset: %w", i, core.ErrCorruptCodeTable)
		}
		pos += k
		sym := data[pos]
		pos++
		length, k := binary.Uvarint(data[pos:])
		if k <= 0 || length == 0 {
			return nil, 0, fmt.Errorf("run %d length: %w", i, core.ErrCorruptCodeTable)
		}
		pos += k
		if gap > uint64(size) || length > uint64(size) || uint64(prev)+gap+length > uint64(size) {
			return nil, 0, fmt.Errorf("run %d exceeds sequence of %d symbols: %w", i, size, core.ErrCorruptCodeTable)
		}
		r := Run{Offset: prev + int(gap), Symbol: sym, Length: int(length)}
		runs = append(runs, r)
		prev = r.End()
	}
	return runs, pos, nil
}
