package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/INLOpen/seqpack/bitstream"
	"github.com/INLOpen/seqpack/codes"
	"github.com/INLOpen/seqpack/core"
	"github.com/INLOpen/seqpack/huffman"
	"github.com/INLOpen/seqpack/index"
	"github.com/INLOpen/seqpack/raresym"
	"github.com/INLOpen/seqpack/rle"
)

// layout is one candidate encoding of a Huffman sequence: which side tables are
// used, the resulting code table, checkpoints and the exact serialized size.
type layout struct {
	view        []byte // symbols after the rare-symbol swap
	runs        []rle.Run
	swap        bool
	plan        raresym.Plan
	table       *huffman.Table
	rare        []raresym.Entry
	idx         *index.Index
	streamBits  uint64
	size        int
}

func (l *layout) tag() Tag {
	if len(l.runs) > 0 {
		return TagHuffmanRLE
	}
	return TagHuffman
}

func (l *layout) indexLayout() index.Layout {
	return index.Layout{Runs: len(l.runs) > 0, Rare: l.swap}
}

// planLayout evaluates one combination of side tables over data. Rare symbols
// are swapped out first, runs are then searched in the swapped view so that
// placeholders merge into the runs around them. ok is false when a requested
// stage finds nothing to extract.
func planLayout(data []byte, freqs *huffman.Frequencies, withRuns, swap bool) (*layout, bool, error) {
	l := &layout{view: data, swap: swap}
	mainFreqs := *freqs
	if swap {
		plan, ok := raresym.Choose((*[256]uint64)(freqs))
		if !ok {
			return nil, false, nil
		}
		l.plan = plan
		l.plan.Apply((*[256]uint64)(&mainFreqs))
		l.view = make([]byte, len(data))
		for i, s := range data {
			if plan.Rare[s] {
				s = plan.Placeholder
			}
			l.view[i] = s
		}
	}
	if withRuns {
		l.runs = rle.Find(l.view)
		if len(l.runs) == 0 {
			return nil, false, nil
		}
		for _, r := range l.runs {
			mainFreqs[r.Symbol] -= uint64(r.Length)
		}
	}

	if mainFreqs.Total() == 0 {
		// runs cover the whole sequence
		l.table = &huffman.Table{}
	} else {
		table, err := huffman.Build(&mainFreqs)
		if err != nil {
			return nil, false, err
		}
		l.table = table
	}
	l.streamBits = l.table.Cost(&mainFreqs)
	if err := l.walk(data, nil); err != nil {
		return nil, false, err
	}

	l.size = headerSize(len(data)) +
		1 + core.UvarintLen(core.CheckpointStride) +
		l.table.MarshaledSize() +
		core.UvarintLen(l.streamBits) +
		index.EncodedSize(l.idx.Checkpoints(), l.indexLayout()) +
		bitstream.ByteLen(l.streamBits) +
		core.ChecksumSize
	if len(l.runs) > 0 {
		l.size += rle.EncodedSize(l.runs)
	}
	if swap {
		l.size += raresym.EncodedSize(l.rare)
	}
	return l, true, nil
}

// walk visits every symbol once. Without a writer it records checkpoints and
// rare entries; with one it writes the main stream.
func (l *layout) walk(data []byte, w *bitstream.Writer) error {
	var b *index.Builder
	if w == nil {
		b = index.NewBuilder(core.CheckpointStride, len(data))
		if l.swap {
			l.rare = make([]raresym.Entry, 0, l.plan.Count)
		}
	}
	ri := 0
	var bits uint64
	for off, s := range data {
		for ri < len(l.runs) && l.runs[ri].End() <= off {
			ri++
		}
		if b != nil {
			if b.Due(off) {
				b.Add(index.Checkpoint{Offset: off, Bit: bits, Run: ri, Rare: len(l.rare)})
			}
			if l.swap && l.plan.Rare[s] {
				l.rare = append(l.rare, raresym.Entry{Offset: off, Symbol: s})
			}
		}
		if ri < len(l.runs) && l.runs[ri].Offset <= off {
			continue
		}
		v := l.view[off]
		if w != nil {
			if err := l.table.Encode(w, v); err != nil {
				return err
			}
		}
		bits += uint64(l.table.CodeLength(v))
	}
	if b != nil {
		l.idx = b.Index()
	}
	return nil
}

// chooseLayout evaluates the candidates allowed by c and returns the smallest.
// Candidates are tried from the simplest; a side table is only kept when it
// makes the result strictly smaller.
func chooseLayout(data []byte, c Choice) (*layout, error) {
	var freqs huffman.Frequencies
	freqs.Add(data)

	candidates := [][2]bool{{false, false}} // {runs, swap}
	if c.TryRare {
		candidates = append(candidates, [2]bool{false, true})
	}
	if c.TryRuns {
		candidates = append(candidates, [2]bool{true, false})
		if c.TryRare {
			candidates = append(candidates, [2]bool{true, true})
		}
	}

	var best *layout
	for _, cand := range candidates {
		l, ok, err := planLayout(data, &freqs, cand[0], cand[1])
		if err != nil {
			return nil, err
		}
		if ok && (best == nil || l.size < best.size) {
			best = l
		}
	}
	return best, nil
}

// encodeHuffman serializes data with layout l into a buffer of exactly l.size bytes.
func encodeHuffman(data []byte, kind core.SequenceKind, tm core.TypeModifier, l *layout) ([]byte, error) {
	out := make([]byte, 0, l.size)
	out = appendHeader(out, kind, l.tag(), tm, len(data))
	var flags byte
	if l.swap {
		flags |= flagRare
	}
	out = append(out, flags)
	out = binary.AppendUvarint(out, core.CheckpointStride)
	out = l.table.AppendBinary(out)
	out = binary.AppendUvarint(out, l.streamBits)
	if len(l.runs) > 0 {
		out = rle.AppendTable(out, l.runs)
	}
	if l.swap {
		out = raresym.AppendTable(out, l.rare)
	}
	out = index.Append(out, l.idx.Checkpoints(), l.indexLayout())

	w := bitstream.NewWriter(out)
	if err := l.walk(data, w); err != nil {
		return nil, err
	}
	if w.Bits() != l.streamBits {
		return nil, fmt.Errorf("planned %d stream bits, wrote %d", l.streamBits, w.Bits())
	}
	out, err := w.Close()
	if err != nil {
		return nil, err
	}
	out = appendChecksum(out)
	if len(out) != l.size {
		return nil, fmt.Errorf("planned %d bytes, wrote %d", l.size, len(out))
	}
	return out, nil
}

// encodeFixed serializes data with the fixed code set id.
func encodeFixed(data []byte, kind core.SequenceKind, tm core.TypeModifier, id codes.ID) ([]byte, error) {
	cs := codes.Lookup(id)
	width := cs.Width()
	size := headerSize(len(data)) + 1 + bitstream.ByteLen(uint64(len(data))*uint64(width)) + core.ChecksumSize
	out := make([]byte, 0, size)
	out = appendHeader(out, kind, TagFixed, tm, len(data))
	out = append(out, byte(id))

	w := bitstream.NewWriter(out)
	for i, s := range data {
		c, ok := cs.Encode(s)
		if !ok {
			return nil, &core.AlphabetViolationError{Position: i, Symbol: s, Alphabet: cs.Name()}
		}
		if err := w.WriteBits(c, width); err != nil {
			return nil, err
		}
	}
	out, err := w.Close()
	if err != nil {
		return nil, err
	}
	return appendChecksum(out), nil
}

func encodeEmpty(kind core.SequenceKind, tm core.TypeModifier) []byte {
	out := make([]byte, 0, headerSize(0)+core.ChecksumSize)
	out = appendHeader(out, kind, TagEmpty, tm, 0)
	return appendChecksum(out)
}
