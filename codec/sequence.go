package codec

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/INLOpen/seqpack/alphabet"
	"github.com/INLOpen/seqpack/bitstream"
	"github.com/INLOpen/seqpack/codes"
	"github.com/INLOpen/seqpack/core"
	"github.com/INLOpen/seqpack/huffman"
	"github.com/INLOpen/seqpack/index"
	"github.com/INLOpen/seqpack/raresym"
	"github.com/INLOpen/seqpack/rle"
)

// flagRare marks a Huffman layout carrying a rare-symbol table.
const flagRare = 1 << 0

// maxSequenceLength bounds the symbol count accepted by Parse.
const maxSequenceLength = 1 << 40

// Sequence is a compressed sequence. It is immutable and safe for concurrent use.
//
// Serialized layout (little endian, varints are unsigned LEB128):
//
//	u8 version | u8 kind | u8 tag | u8 type modifier | uvarint count
//	fixed:   u8 code set id | stream
//	huffman: u8 flags | uvarint stride | code table | uvarint stream bits
//	         | [run table] | [rare table] | checkpoints | stream
//	empty:   nothing
//	u32 crc32 over all preceding bytes
type Sequence struct {
	raw   []byte
	kind  core.SequenceKind
	tag   Tag
	tm    core.TypeModifier
	count int

	payload int // offset of the first byte after the header

	// TagFixed
	codeSet *codes.CodeSet

	// TagHuffman, TagHuffmanRLE
	table      *huffman.Table
	withRare   bool
	runs       []rle.Run
	rare       []raresym.Entry
	index      *index.Index
	streamBits uint64

	stream []byte
}

// Kind returns the sequence kind.
func (s *Sequence) Kind() core.SequenceKind { return s.kind }

// TypeModifier returns the modifier the sequence was compressed under.
func (s *Sequence) TypeModifier() core.TypeModifier { return s.tm }

// Tag returns the layout of the sequence.
func (s *Sequence) Tag() Tag { return s.tag }

// Len returns the number of symbols.
func (s *Sequence) Len() int { return s.count }

// OctetLength returns the size of the serialized sequence in bytes.
func (s *Sequence) OctetLength() int { return len(s.raw) }

// Bytes returns the serialized sequence. The slice must not be modified.
func (s *Sequence) Bytes() []byte { return s.raw }

// MarshalBinary implements encoding.BinaryMarshaler.
func (s *Sequence) MarshalBinary() ([]byte, error) {
	out := make([]byte, len(s.raw))
	copy(out, s.raw)
	return out, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. data is copied.
func (s *Sequence) UnmarshalBinary(data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)
	parsed, err := Parse(buf)
	if err != nil {
		return err
	}
	*s = *parsed
	return nil
}

// CompressionRatio returns the ratio between the uncompressed size and the
// serialized size, side tables and checkpoints included.
func (s *Sequence) CompressionRatio() float64 {
	if len(s.raw) == 0 {
		return 0
	}
	return float64(s.count) / float64(len(s.raw))
}

// RunCount returns the number of entries in the run table.
func (s *Sequence) RunCount() int { return len(s.runs) }

// RareCount returns the number of entries in the rare-symbol table.
func (s *Sequence) RareCount() int { return len(s.rare) }

// CheckpointCount returns the number of random-access checkpoints.
func (s *Sequence) CheckpointCount() int {
	if s.index == nil {
		return 0
	}
	return s.index.Len()
}

// CodeSetID returns the fixed code set of a TagFixed sequence.
func (s *Sequence) CodeSetID() (codes.ID, bool) {
	if s.codeSet == nil {
		return 0, false
	}
	return s.codeSet.ID(), true
}

// UsedAlphabet returns the distinct symbols of the sequence in ascending order.
// Huffman layouts answer from the code table and side tables without decoding.
func (s *Sequence) UsedAlphabet() ([]byte, error) {
	switch s.tag {
	case TagEmpty:
		return []byte{}, nil
	case TagFixed:
		data := make([]byte, s.count)
		if _, err := s.decodeInto(data, 0, s.count); err != nil {
			return nil, err
		}
		return alphabet.Used(data), nil
	default:
		runSyms := make([]byte, len(s.runs))
		for i, r := range s.runs {
			runSyms[i] = r.Symbol
		}
		rareSyms := make([]byte, len(s.rare))
		for i, e := range s.rare {
			rareSyms[i] = e.Symbol
		}
		return alphabet.Merge(s.table.Symbols(), runSyms, rareSyms), nil
	}
}

func appendHeader(dst []byte, kind core.SequenceKind, tag Tag, tm core.TypeModifier, count int) []byte {
	dst = append(dst, core.SequenceFormatVersion, byte(kind), byte(tag), byte(tm.Encode()))
	return binary.AppendUvarint(dst, uint64(count))
}

func headerSize(count int) int {
	return 4 + core.UvarintLen(uint64(count))
}

func appendChecksum(dst []byte) []byte {
	return binary.LittleEndian.AppendUint32(dst, crc32.ChecksumIEEE(dst))
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, core.ErrCorruptCodeTable)...)
}

// Parse validates a serialized sequence and returns a view over it.
// data is retained and must not be modified afterwards.
func Parse(data []byte) (*Sequence, error) {
	if len(data) < 5+core.ChecksumSize {
		return nil, corrupt("sequence of %d bytes is too short", len(data))
	}
	body := data[:len(data)-core.ChecksumSize]
	want := binary.LittleEndian.Uint32(data[len(body):])
	if got := crc32.ChecksumIEEE(body); got != want {
		return nil, corrupt("checksum mismatch (stored %08x, computed %08x)", want, got)
	}
	if body[0] != core.SequenceFormatVersion {
		return nil, corrupt("unsupported sequence format version %d", body[0])
	}

	s := &Sequence{raw: data, kind: core.SequenceKind(body[1]), tag: Tag(body[2])}
	if !s.kind.Valid() {
		return nil, corrupt("unknown sequence kind %d", body[1])
	}
	if !s.tag.valid() {
		return nil, corrupt("unknown layout tag %d", body[2])
	}
	if body[3] > 0x1F {
		return nil, corrupt("type modifier %#x out of range", body[3])
	}
	s.tm = core.DecodeTypeModifier(int32(body[3]))
	if err := s.tm.Check(s.kind); err != nil {
		return nil, corrupt("%v", err)
	}
	count, k := binary.Uvarint(body[4:])
	if k <= 0 || count > maxSequenceLength {
		return nil, corrupt("symbol count")
	}
	s.count = int(count)
	s.payload = 4 + k
	rest := body[s.payload:]

	var err error
	switch s.tag {
	case TagEmpty:
		if s.count != 0 || len(rest) != 0 {
			err = corrupt("empty sequence with payload")
		}
	case TagFixed:
		err = s.parseFixed(rest)
	default:
		err = s.parseHuffman(rest)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sequence) parseFixed(rest []byte) error {
	if s.count == 0 || len(rest) < 1 {
		return corrupt("fixed layout without symbols")
	}
	id := codes.ID(rest[0])
	if !id.Valid() || id.IsDNA() != (s.kind == core.KindDNA) {
		return corrupt("code set %d for %s sequence", id, s.kind)
	}
	s.codeSet = codes.Lookup(id)
	s.stream = rest[1:]
	if len(s.stream) != bitstream.ByteLen(uint64(s.count)*uint64(s.codeSet.Width())) {
		return corrupt("fixed stream of %d bytes for %d symbols", len(s.stream), s.count)
	}
	return nil
}

func (s *Sequence) parseHuffman(rest []byte) error {
	if s.count == 0 || len(rest) < 1 {
		return corrupt("huffman layout without symbols")
	}
	flags := rest[0]
	if flags&^flagRare != 0 {
		return corrupt("unknown flags %#x", flags)
	}
	pos := 1
	stride, k := binary.Uvarint(rest[pos:])
	// the stride is fixed by the format version; with it the checkpoint list
	// bounds the symbol count by the size of the value
	if k <= 0 || stride != core.CheckpointStride {
		return corrupt("checkpoint stride %d", stride)
	}
	pos += k

	table, n, err := huffman.Unmarshal(rest[pos:])
	if err != nil {
		return err
	}
	s.table = table
	pos += n

	bits, k := binary.Uvarint(rest[pos:])
	if k <= 0 {
		return corrupt("stream length")
	}
	s.streamBits = bits
	pos += k
	if table.Len() <= 1 && bits != 0 {
		return corrupt("%d stream bits for a table of %d symbols", bits, table.Len())
	}

	if s.tag == TagHuffmanRLE {
		runs, n, err := rle.ParseTable(rest[pos:], s.count)
		if err != nil {
			return err
		}
		s.runs = runs
		pos += n
	}
	s.withRare = flags&flagRare != 0
	if s.withRare {
		rare, n, err := raresym.ParseTable(rest[pos:], s.count)
		if err != nil {
			return err
		}
		s.rare = rare
		pos += n
	}

	idx, n, err := index.Parse(rest[pos:], s.indexLayout(), index.Bounds{
		Count:      s.count,
		Stride:     int(stride),
		StreamBits: bits,
		Runs:       len(s.runs),
		Rare:       len(s.rare),
	})
	if err != nil {
		return err
	}
	s.index = idx
	pos += n

	s.stream = rest[pos:]
	if len(s.stream) != bitstream.ByteLen(bits) {
		return corrupt("stream of %d bytes for %d bits", len(s.stream), bits)
	}
	return nil
}

func (s *Sequence) indexLayout() index.Layout {
	return index.Layout{Runs: s.tag == TagHuffmanRLE, Rare: s.withRare}
}
