package index

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/INLOpen/seqpack/core"
)

// Checkpoint records where decoding can resume at symbol Offset.
type Checkpoint struct {
	Offset int    // symbol offset, a multiple of the stride
	Bit    uint64 // bit offset of the next main-stream codeword at or after Offset
	Run    int    // index of the first run ending after Offset
	Rare   int    // index of the first rare-symbol entry at or after Offset
}

// Layout tells which cursors a serialized checkpoint carries.
type Layout struct {
	Runs bool
	Rare bool
}

// Builder collects checkpoints while a stream is encoded.
type Builder struct {
	stride  int
	entries []Checkpoint
}

// NewBuilder returns a Builder for a sequence of count symbols.
func NewBuilder(stride, count int) *Builder {
	return &Builder{stride: stride, entries: make([]Checkpoint, 0, Count(count, stride))}
}

// Due reports whether a checkpoint must be recorded before symbol offset.
func (b *Builder) Due(offset int) bool {
	return offset%b.stride == 0
}

// Add records the checkpoint for the next stride boundary.
// cp.Offset must equal len(checkpoints)*stride.
func (b *Builder) Add(cp Checkpoint) {
	b.entries = append(b.entries, cp)
}

// Index returns the collected checkpoints as an index.
func (b *Builder) Index() *Index {
	return &Index{stride: b.stride, entries: b.entries}
}

// Count returns the number of checkpoints covering count symbols.
func Count(count, stride int) int {
	return (count + stride - 1) / stride
}

// EncodedSize returns the serialized size of cps.
func EncodedSize(cps []Checkpoint, l Layout) int {
	n := 0
	var prev uint64
	for _, cp := range cps {
		n += core.UvarintLen(cp.Bit - prev)
		prev = cp.Bit
		if l.Runs {
			n += core.UvarintLen(uint64(cp.Run))
		}
		if l.Rare {
			n += core.UvarintLen(uint64(cp.Rare))
		}
	}
	return n
}

// Append serializes cps. Symbol offsets are implied by position and stride,
// bit offsets are stored as deltas.
func Append(dst []byte, cps []Checkpoint, l Layout) []byte {
	var prev uint64
	for _, cp := range cps {
		dst = binary.AppendUvarint(dst, cp.Bit-prev)
		prev = cp.Bit
		if l.Runs {
			dst = binary.AppendUvarint(dst, uint64(cp.Run))
		}
		if l.Rare {
			dst = binary.AppendUvarint(dst, uint64(cp.Rare))
		}
	}
	return dst
}

// Bounds are the limits a parsed checkpoint must respect.
type Bounds struct {
	Count      int    // symbols in the sequence
	Stride     int    // checkpoint spacing
	StreamBits uint64 // bits in the main stream
	Runs       int    // entries in the run table
	Rare       int    // entries in the rare table
}

// Index is the in-memory checkpoint list of one sequence.
type Index struct {
	stride  int
	entries []Checkpoint
}

// Parse reads Count(b.Count, b.Stride) checkpoints and returns the index with
// the number of bytes consumed.
func Parse(data []byte, l Layout, b Bounds) (*Index, int, error) {
	if b.Stride <= 0 {
		return nil, 0, fmt.Errorf("checkpoint stride %d: %w", b.Stride, core.ErrCorruptCodeTable)
	}
	n := Count(b.Count, b.Stride)
	if n > len(data) {
		return nil, 0, fmt.Errorf("%d checkpoints in %d bytes: %w", n, len(data), core.ErrCorruptCodeTable)
	}
	idx := &Index{stride: b.Stride, entries: make([]Checkpoint, 0, n)}
	pos := 0
	var bit uint64
	var last Checkpoint
	for i := 0; i < n; i++ {
		delta, k := binary.Uvarint(data[pos:])
		if k <= 0 {
			return nil, 0, fmt.Errorf("checkpoint %d bit offset: %w", i, core.ErrCorruptCodeTable)
		}
		pos += k
		bit += delta
		if bit < delta || bit > b.StreamBits {
			return nil, 0, fmt.Errorf("checkpoint %d bit offset %d beyond stream of %d bits: %w", i, bit, b.StreamBits, core.ErrCorruptCodeTable)
		}
		cp := Checkpoint{Offset: i * b.Stride, Bit: bit}
		if l.Runs {
			v, k := binary.Uvarint(data[pos:])
			if k <= 0 || v > uint64(b.Runs) || int(v) < last.Run {
				return nil, 0, fmt.Errorf("checkpoint %d run cursor: %w", i, core.ErrCorruptCodeTable)
			}
			pos += k
			cp.Run = int(v)
		}
		if l.Rare {
			v, k := binary.Uvarint(data[pos:])
			if k <= 0 || v > uint64(b.Rare) || int(v) < last.Rare {
				return nil, 0, fmt.Errorf("checkpoint %d rare cursor: %w", i, core.ErrCorruptCodeTable)
			}
			pos += k
			cp.Rare = int(v)
		}
		idx.entries = append(idx.entries, cp)
		last = cp
	}
	return idx, pos, nil
}

// Len returns the number of checkpoints.
func (idx *Index) Len() int { return len(idx.entries) }

// Checkpoints returns the checkpoint list.
func (idx *Index) Checkpoints() []Checkpoint { return idx.entries }

// Seek returns the checkpoint with the greatest offset not above from.
// found is false for an empty index.
func (idx *Index) Seek(from int) (cp Checkpoint, found bool) {
	if len(idx.entries) == 0 {
		return Checkpoint{}, false
	}
	// first checkpoint past from, the one before it is the entry point
	i := sort.Search(len(idx.entries), func(i int) bool {
		return idx.entries[i].Offset > from
	})
	if i == 0 {
		return idx.entries[0], true
	}
	return idx.entries[i-1], true
}
