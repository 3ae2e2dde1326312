package codec

import (
	"bytes"
	"context"
	"hash/crc32"

	"github.com/INLOpen/seqpack/alphabet"
	"github.com/INLOpen/seqpack/core"
)

var defaultCodec = New(Options{})

// Compress compresses raw with a Codec using the default logger and no tracer.
func Compress(raw []byte, kind core.SequenceKind, tm core.TypeModifier) (*Sequence, error) {
	return defaultCodec.Compress(context.Background(), raw, kind, tm)
}

// Decompress returns symbols [from, from+length) of seq.
func Decompress(seq *Sequence, from, length int) ([]byte, error) {
	return defaultCodec.Decompress(context.Background(), seq, from, length)
}

// DecompressInto writes symbols [from, from+length) of seq into dst.
func DecompressInto(dst []byte, seq *Sequence, from, length int) (int, error) {
	return defaultCodec.DecompressInto(context.Background(), dst, seq, from, length)
}

// Reverse returns seq with its symbols in reverse order.
func Reverse(seq *Sequence) (*Sequence, error) {
	return defaultCodec.Reverse(context.Background(), seq)
}

// Complement returns the IUPAC complement of a nucleotide sequence.
func Complement(seq *Sequence) (*Sequence, error) {
	return defaultCodec.Complement(context.Background(), seq)
}

// ReverseComplement returns the reverse complement of a nucleotide sequence.
func ReverseComplement(seq *Sequence) (*Sequence, error) {
	return defaultCodec.ReverseComplement(context.Background(), seq)
}

// Cast recompresses seq under tm.
func Cast(seq *Sequence, tm core.TypeModifier) (*Sequence, error) {
	return defaultCodec.Cast(context.Background(), seq, tm)
}

// Compare orders two sequences by their decompressed symbols, like bytes.Compare.
func Compare(a, b *Sequence) (int, error) {
	if bytes.Equal(a.raw, b.raw) {
		return 0, nil
	}
	da, err := a.decodeAll()
	if err != nil {
		return 0, err
	}
	db, err := b.decodeAll()
	if err != nil {
		return 0, err
	}
	return bytes.Compare(da, db), nil
}

// Equal reports whether two sequences hold the same symbols, regardless of
// the layout they were stored with.
func Equal(a, b *Sequence) (bool, error) {
	if a.count != b.count {
		return false, nil
	}
	cmp, err := Compare(a, b)
	return cmp == 0, err
}

// Hash returns the CRC32 (IEEE) of the decompressed symbols. Equal sequences
// hash equally.
func Hash(seq *Sequence) (uint32, error) {
	data, err := seq.decodeAll()
	if err != nil {
		return 0, err
	}
	return crc32.ChecksumIEEE(data), nil
}

// Strpos returns the 1-based position of the first occurrence of needle in seq,
// or 0 when it does not occur. The needle is folded like the stored symbols.
func Strpos(seq *Sequence, needle []byte) (int, error) {
	data, err := seq.decodeAll()
	if err != nil {
		return 0, err
	}
	return bytes.Index(data, alphabet.Fold(needle, seq.tm)) + 1, nil
}
