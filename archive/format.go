// Package archive stores many named compressed sequences in one file.
//
// File layout:
//
//	header     core.FileHeader
//	entries    one block per sequence, in insertion order
//	directory  block: per-entry id, description, kind, modifier, sizes, offset
//	postings   block: per-symbol roaring bitmaps of entry numbers
//	footer     directory and postings locations, entry count, magic string
//
// Every block is framed as u8 compression type, u32 CRC32 (IEEE) of the
// stored payload, payload.
package archive

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/INLOpen/seqpack/codec"
	"github.com/INLOpen/seqpack/compressors"
	"github.com/INLOpen/seqpack/core"
)

var (
	// ErrCorrupted is returned when an archive fails an integrity check.
	ErrCorrupted = errors.New("archive is corrupted")
	// ErrNotFound is returned for an unknown entry id.
	ErrNotFound = errors.New("entry not found")
	// ErrDuplicateID is returned when an id is added twice.
	ErrDuplicateID = errors.New("duplicate entry id")
	// ErrFinished is returned when a writer is used after Finish or Abort.
	ErrFinished = errors.New("archive writer already finished")
)

const blockHeaderSize = 1 + core.ChecksumSize

// footer field sizes: directory offset/len/raw, postings offset/len/raw, entry count
const (
	FooterFixedSize = 8 + 4 + 4 + 8 + 4 + 4 + 4
	FooterSize      = FooterFixedSize + core.ArchiveMagicStringLen
)

// EntryInfo describes one stored sequence.
type EntryInfo struct {
	ID           string
	Description  string
	Kind         core.SequenceKind
	TypeModifier core.TypeModifier
	Tag          codec.Tag
	Symbols      int
	Offset       int64 // of the framed block
	DiskLength   int   // framed block length
	RawLength    int   // serialized sequence length
}

// CompressionRatio is symbols per stored sequence byte, side tables included.
func (e EntryInfo) CompressionRatio() float64 {
	if e.RawLength == 0 {
		return 0
	}
	return float64(e.Symbols) / float64(e.RawLength)
}

type footer struct {
	dirOffset, postOffset uint64
	dirLen, dirRaw        uint32
	postLen, postRaw      uint32
	count                 uint32
}

func (f *footer) appendTo(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint64(dst, f.dirOffset)
	dst = binary.LittleEndian.AppendUint32(dst, f.dirLen)
	dst = binary.LittleEndian.AppendUint32(dst, f.dirRaw)
	dst = binary.LittleEndian.AppendUint64(dst, f.postOffset)
	dst = binary.LittleEndian.AppendUint32(dst, f.postLen)
	dst = binary.LittleEndian.AppendUint32(dst, f.postRaw)
	dst = binary.LittleEndian.AppendUint32(dst, f.count)
	return append(dst, core.ArchiveMagicString...)
}

func parseFooter(b []byte) (footer, error) {
	if len(b) != FooterSize {
		return footer{}, fmt.Errorf("footer is %d bytes: %w", len(b), ErrCorrupted)
	}
	if magic := string(b[FooterFixedSize:]); magic != core.ArchiveMagicString {
		return footer{}, fmt.Errorf("invalid magic string %q: %w", magic, ErrCorrupted)
	}
	le := binary.LittleEndian
	return footer{
		dirOffset:  le.Uint64(b[0:]),
		dirLen:     le.Uint32(b[8:]),
		dirRaw:     le.Uint32(b[12:]),
		postOffset: le.Uint64(b[16:]),
		postLen:    le.Uint32(b[24:]),
		postRaw:    le.Uint32(b[28:]),
		count:      le.Uint32(b[32:]),
	}, nil
}

// verifyBlock checks the frame of a block read from disk and returns its
// decompressed payload. rawLen may come from the unchecked footer; the
// compressors refuse a size the payload cannot expand to before allocating.
func verifyBlock(frame []byte, rawLen int, offset int64) ([]byte, error) {
	if len(frame) < blockHeaderSize {
		return nil, fmt.Errorf("block at %d is %d bytes: %w", offset, len(frame), ErrCorrupted)
	}
	payload := frame[blockHeaderSize:]
	if crc32.ChecksumIEEE(payload) != binary.LittleEndian.Uint32(frame[1:]) {
		return nil, fmt.Errorf("checksum mismatch for block at %d: %w", offset, ErrCorrupted)
	}
	c, err := compressors.ForType(core.CompressionType(frame[0]))
	if err != nil {
		return nil, fmt.Errorf("block at %d: %v: %w", offset, err, ErrCorrupted)
	}
	data, err := c.Decompress(payload, rawLen)
	if err != nil {
		return nil, fmt.Errorf("block at %d: %v: %w", offset, err, ErrCorrupted)
	}
	return data, nil
}

func appendString(dst []byte, s string) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(s)))
	return append(dst, s...)
}

func appendEntry(dst []byte, e *EntryInfo) []byte {
	dst = appendString(dst, e.ID)
	dst = appendString(dst, e.Description)
	dst = append(dst, byte(e.Kind), byte(e.TypeModifier.Encode()), byte(e.Tag))
	dst = binary.AppendUvarint(dst, uint64(e.Symbols))
	dst = binary.AppendUvarint(dst, uint64(e.Offset))
	dst = binary.AppendUvarint(dst, uint64(e.DiskLength))
	return binary.AppendUvarint(dst, uint64(e.RawLength))
}

// dirDecoder walks a directory payload. The first error sticks.
type dirDecoder struct {
	data []byte
	err  error
}

func (d *dirDecoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.data)
	if n <= 0 {
		d.err = fmt.Errorf("directory varint: %w", ErrCorrupted)
		return 0
	}
	d.data = d.data[n:]
	return v
}

func (d *dirDecoder) int(limit uint64) int {
	v := d.uvarint()
	if d.err == nil && v > limit {
		d.err = fmt.Errorf("directory value %d over %d: %w", v, limit, ErrCorrupted)
		return 0
	}
	return int(v)
}

func (d *dirDecoder) bytes(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n > len(d.data) {
		d.err = fmt.Errorf("directory truncated: %w", ErrCorrupted)
		return nil
	}
	b := d.data[:n]
	d.data = d.data[n:]
	return b
}

func (d *dirDecoder) string() string {
	return string(d.bytes(d.int(uint64(len(d.data)))))
}

func parseDirectory(data []byte, count int, fileSize int64) ([]EntryInfo, error) {
	d := &dirDecoder{data: data}
	if n := d.int(uint64(len(data))); d.err == nil && n != count {
		return nil, fmt.Errorf("directory holds %d entries, footer says %d: %w", n, count, ErrCorrupted)
	}
	entries := make([]EntryInfo, 0, count)
	for i := 0; i < count && d.err == nil; i++ {
		var e EntryInfo
		e.ID = d.string()
		e.Description = d.string()
		meta := d.bytes(3)
		e.Symbols = d.int(1 << 40)
		e.Offset = int64(d.int(uint64(fileSize)))
		e.DiskLength = d.int(uint64(fileSize))
		e.RawLength = d.int(1 << 40)
		if d.err != nil {
			break
		}
		e.Kind = core.SequenceKind(meta[0])
		e.TypeModifier = core.DecodeTypeModifier(int32(meta[1]))
		e.Tag = codec.Tag(meta[2])
		if !e.Kind.Valid() || e.Offset+int64(e.DiskLength) > fileSize {
			return nil, fmt.Errorf("directory entry %q is invalid: %w", e.ID, ErrCorrupted)
		}
		entries = append(entries, e)
	}
	if d.err != nil {
		return nil, d.err
	}
	return entries, nil
}
