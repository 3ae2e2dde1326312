// Package bitstream provides the bit-level writer and reader used by the fixed and
// Huffman code paths. Bits are written most significant first, the last byte is
// padded with zero bits.
package bitstream

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/icza/bitio"
)

// ErrOutOfRange is returned when a reader is positioned past the end of its data.
var ErrOutOfRange = errors.New("bit offset outside stream")

// Writer appends bits to a byte slice.
type Writer struct {
	buf  *bytes.Buffer
	bw   *bitio.Writer
	bits uint64
}

// NewWriter returns a Writer that appends to dst. When dst has enough spare
// capacity for the whole stream no further allocation takes place.
func NewWriter(dst []byte) *Writer {
	buf := bytes.NewBuffer(dst)
	return &Writer{buf: buf, bw: bitio.NewWriter(buf)}
}

// WriteBits writes the n lowest bits of v, most significant first.
func (w *Writer) WriteBits(v uint64, n uint8) error {
	if n == 0 {
		return nil
	}
	if err := w.bw.WriteBits(v, n); err != nil {
		return err
	}
	w.bits += uint64(n)
	return nil
}

// Bits returns the number of bits written so far.
func (w *Writer) Bits() uint64 { return w.bits }

// Close pads the final byte and returns dst with the stream appended.
// The Writer must not be used afterwards.
func (w *Writer) Close() ([]byte, error) {
	if err := w.bw.Close(); err != nil {
		return nil, err
	}
	return w.buf.Bytes(), nil
}

// ByteLen returns the number of bytes needed to hold n bits.
func ByteLen(n uint64) int {
	return int((n + 7) / 8)
}

// Reader reads bits from a byte slice starting at an arbitrary bit offset.
type Reader struct {
	br    *bitio.Reader
	pos   uint64
	limit uint64
}

// NewReader returns a Reader over the first limit bits of data, positioned at
// bit offset off.
func NewReader(data []byte, off, limit uint64) (*Reader, error) {
	if limit > uint64(len(data))*8 || off > limit {
		return nil, fmt.Errorf("offset %d, limit %d over %d bytes: %w", off, limit, len(data), ErrOutOfRange)
	}
	r := &Reader{
		br:    bitio.NewReader(bytes.NewReader(data[off/8:])),
		pos:   off &^ 7,
		limit: limit,
	}
	if skip := uint8(off % 8); skip > 0 {
		if _, err := r.br.ReadBits(skip); err != nil {
			return nil, err
		}
		r.pos = off
	}
	return r, nil
}

// ReadBits reads n bits and returns them in the low bits of the result.
func (r *Reader) ReadBits(n uint8) (uint64, error) {
	if r.pos+uint64(n) > r.limit {
		return 0, io.ErrUnexpectedEOF
	}
	v, err := r.br.ReadBits(n)
	if err != nil {
		return 0, err
	}
	r.pos += uint64(n)
	return v, nil
}

// ReadBit reads a single bit.
func (r *Reader) ReadBit() (uint64, error) {
	if r.pos >= r.limit {
		return 0, io.ErrUnexpectedEOF
	}
	b, err := r.br.ReadBool()
	if err != nil {
		return 0, err
	}
	r.pos++
	if b {
		return 1, nil
	}
	return 0, nil
}

// Pos returns the absolute bit offset of the next bit to be read.
func (r *Reader) Pos() uint64 { return r.pos }
