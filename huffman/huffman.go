// Package huffman builds canonical Huffman code tables from symbol frequencies,
// serializes them compactly and encodes/decodes symbols over a bitstream.
//
// Decoding never walks a tree: it reads one bit at a time and compares the
// accumulated code against the first canonical code of each length, so it can
// start at any codeword boundary of a stream.
package huffman

import (
	"container/heap"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/INLOpen/seqpack/bitstream"
	"github.com/INLOpen/seqpack/core"
)

// MaxCodeLength is the longest codeword a table may hold.
const MaxCodeLength = 64

// Frequencies counts occurrences per byte symbol.
type Frequencies [256]uint64

// Add counts every byte of data.
func (f *Frequencies) Add(data []byte) {
	for _, b := range data {
		f[b]++
	}
}

// Total returns the sum of all counts.
func (f *Frequencies) Total() uint64 {
	var n uint64
	for _, c := range f {
		n += c
	}
	return n
}

// Table is a canonical Huffman code table. The zero Table has no symbols.
type Table struct {
	lengths [256]uint8
	codes   [256]uint64
	symbols []byte // canonical order: (length, symbol)
	maxLen  uint8

	// decoding arrays indexed by code length
	count  [MaxCodeLength + 1]uint64
	first  [MaxCodeLength + 1]uint64
	offset [MaxCodeLength + 1]int
}

type node struct {
	weight uint64
	order  int
	id     int
}

type nodeHeap []node

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	if h[i].weight != h[j].weight {
		return h[i].weight < h[j].weight
	}
	return h[i].order < h[j].order
}
func (h nodeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x any)   { *h = append(*h, x.(node)) }
func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Build computes a canonical code for every symbol with a non-zero frequency.
// Ties between equal weights are broken by insertion order, leaves are
// inserted in ascending symbol order, so the result depends on freqs only.
func Build(freqs *Frequencies) (*Table, error) {
	var leaves []byte
	for s, c := range freqs {
		if c > 0 {
			leaves = append(leaves, byte(s))
		}
	}
	if len(leaves) == 0 {
		return nil, core.ErrEmptyAlphabet
	}

	t := &Table{}
	if len(leaves) == 1 {
		t.lengths[leaves[0]] = 1
		if err := t.canonicalize(); err != nil {
			return nil, err
		}
		return t, nil
	}

	// parent[i] for leaves 0..n-1 and merged nodes n..2n-2
	parent := make([]int, 0, 2*len(leaves)-1)
	h := make(nodeHeap, 0, len(leaves))
	for i, s := range leaves {
		h = append(h, node{weight: freqs[s], order: i, id: i})
		parent = append(parent, -1)
	}
	heap.Init(&h)
	order := len(leaves)
	for h.Len() > 1 {
		a := heap.Pop(&h).(node)
		b := heap.Pop(&h).(node)
		id := len(parent)
		parent = append(parent, -1)
		parent[a.id], parent[b.id] = id, id
		heap.Push(&h, node{weight: a.weight + b.weight, order: order, id: id})
		order++
	}

	for i, s := range leaves {
		depth := 0
		for p := parent[i]; p >= 0; p = parent[p] {
			depth++
		}
		if depth > MaxCodeLength {
			return nil, fmt.Errorf("code length %d for symbol %q exceeds %d bits", depth, s, MaxCodeLength)
		}
		t.lengths[s] = uint8(depth)
	}
	if err := t.canonicalize(); err != nil {
		return nil, err
	}
	return t, nil
}

// canonicalize assigns codes from t.lengths in (length, symbol) order and fills
// the decoding arrays. It rejects over-subscribed length sets.
func (t *Table) canonicalize() error {
	t.symbols = t.symbols[:0]
	t.maxLen = 0
	t.count = [MaxCodeLength + 1]uint64{}
	for s, l := range t.lengths {
		if l == 0 {
			continue
		}
		t.symbols = append(t.symbols, byte(s))
		t.count[l]++
		if l > t.maxLen {
			t.maxLen = l
		}
	}
	sort.SliceStable(t.symbols, func(i, j int) bool {
		return t.lengths[t.symbols[i]] < t.lengths[t.symbols[j]]
	})

	// Kraft check: left counts unused codes at the current length, capped once
	// it exceeds the number of symbols a table can hold.
	left := uint64(1)
	var code uint64
	idx := 0
	for l := 1; l <= int(t.maxLen); l++ {
		left <<= 1
		if left < t.count[l] {
			return fmt.Errorf("over-subscribed code lengths at %d bits: %w", l, core.ErrCorruptCodeTable)
		}
		left -= t.count[l]
		if left > 1024 {
			left = 1024
		}
		code = (code + t.count[l-1]) << 1
		t.first[l] = code
		t.offset[l] = idx
		idx += int(t.count[l])
	}
	next := t.first
	for _, s := range t.symbols {
		l := t.lengths[s]
		t.codes[s] = next[l]
		next[l]++
	}
	return nil
}

// Len returns the number of symbols in the table.
func (t *Table) Len() int { return len(t.symbols) }

// Symbols returns the coded symbols in canonical order.
func (t *Table) Symbols() []byte { return t.symbols }

// Has reports whether s is part of the table.
func (t *Table) Has(s byte) bool { return t.lengths[s] != 0 }

// single reports whether the table holds exactly one symbol. Such a symbol is
// written with zero stream bits; its serialized length stays 1.
func (t *Table) single() bool { return len(t.symbols) == 1 }

// CodeLength returns the number of stream bits written for s: 0 when s has no
// code or is the only symbol of the table.
func (t *Table) CodeLength(s byte) uint8 {
	if t.single() {
		return 0
	}
	return t.lengths[s]
}

// Cost returns the number of stream bits needed to encode freqs with t.
// Symbols without a code contribute nothing.
func (t *Table) Cost(freqs *Frequencies) uint64 {
	var bits uint64
	for s, c := range freqs {
		bits += c * uint64(t.CodeLength(byte(s)))
	}
	return bits
}

// Encode writes the codeword of s.
func (t *Table) Encode(w *bitstream.Writer, s byte) error {
	if !t.Has(s) {
		return fmt.Errorf("symbol %q has no code", s)
	}
	return w.WriteBits(t.codes[s], t.CodeLength(s))
}

// Decode reads one codeword and returns its symbol and stream length.
func (t *Table) Decode(r *bitstream.Reader) (byte, uint8, error) {
	if t.single() {
		return t.symbols[0], 0, nil
	}
	var code uint64
	for l := uint8(1); l <= t.maxLen; l++ {
		bit, err := r.ReadBit()
		if err != nil {
			return 0, 0, fmt.Errorf("truncated codeword at bit %d: %w", r.Pos(), core.ErrCorruptCodeTable)
		}
		code = code<<1 | bit
		if c := t.count[l]; c > 0 && code >= t.first[l] && code-t.first[l] < c {
			return t.symbols[t.offset[l]+int(code-t.first[l])], l, nil
		}
	}
	return 0, 0, fmt.Errorf("unassigned codeword ending at bit %d: %w", r.Pos(), core.ErrCorruptCodeTable)
}

// MarshaledSize returns the size of the serialized table.
func (t *Table) MarshaledSize() int {
	return 2 + 2*len(t.symbols)
}

// AppendBinary appends the table as a uint16 symbol count followed by
// (symbol, length) pairs in canonical order.
func (t *Table) AppendBinary(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint16(dst, uint16(len(t.symbols)))
	for _, s := range t.symbols {
		dst = append(dst, s, t.lengths[s])
	}
	return dst
}

// Unmarshal parses a table written by AppendBinary and returns it together with
// the number of bytes consumed. A table with zero symbols is valid.
func Unmarshal(data []byte) (*Table, int, error) {
	if len(data) < 2 {
		return nil, 0, fmt.Errorf("code table header truncated: %w", core.ErrCorruptCodeTable)
	}
	n := int(binary.LittleEndian.Uint16(data))
	if n > 256 {
		return nil, 0, fmt.Errorf("code table claims %d symbols: %w", n, core.ErrCorruptCodeTable)
	}
	size := 2 + 2*n
	if len(data) < size {
		return nil, 0, fmt.Errorf("code table truncated: %w", core.ErrCorruptCodeTable)
	}
	t := &Table{}
	for i := 0; i < n; i++ {
		s, l := data[2+2*i], data[3+2*i]
		if l == 0 || l > MaxCodeLength {
			return nil, 0, fmt.Errorf("invalid code length %d for symbol %q: %w", l, s, core.ErrCorruptCodeTable)
		}
		if t.lengths[s] != 0 {
			return nil, 0, fmt.Errorf("duplicate symbol %q: %w", s, core.ErrCorruptCodeTable)
		}
		t.lengths[s] = l
	}
	if err := t.canonicalize(); err != nil {
		return nil, 0, err
	}
	return t, size, nil
}
