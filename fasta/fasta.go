// Package fasta reads and writes FASTA records. Inputs may be gzip
// compressed; compression is detected from the stream's magic bytes.
package fasta

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Record is one named sequence.
type Record struct {
	ID          string
	Description string
	Seq         []byte
}

// ErrNoHeader is returned when sequence data appears before the first header line.
var ErrNoHeader = errors.New("fasta: sequence data before first header")

// Reader parses records from a FASTA stream.
type Reader struct {
	br   *bufio.Reader
	line int

	pending string // header of the next record, already consumed
	started bool
	done    bool
}

// NewReader returns a Reader over r. A gzip stream is decompressed transparently.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	sig, _ := br.Peek(2)
	if len(sig) == 2 && sig[0] == 0x1f && sig[1] == 0x8b {
		gr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("fasta: gzip header: %w", err)
		}
		br = bufio.NewReaderSize(gr, 64*1024)
	}
	return &Reader{br: br}, nil
}

// Next returns the next record, or io.EOF after the last one.
// Blank lines are skipped; line breaks inside a sequence are removed.
func (r *Reader) Next() (Record, error) {
	if r.done {
		return Record{}, io.EOF
	}
	var seq []byte
	for {
		line, err := r.br.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			// long unwrapped sequence line
			seq = append(seq, line...)
			continue
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return Record{}, fmt.Errorf("fasta: line %d: %w", r.line+1, err)
		}
		eof := err != nil
		if len(line) > 0 {
			r.line++
		}
		line = bytes.TrimRight(line, "\r\n")

		if len(line) > 0 && line[0] == '>' {
			header := string(line[1:])
			if r.started {
				rec := newRecord(r.pending, seq)
				r.pending = header
				return rec, nil
			}
			r.started = true
			r.pending = header
		} else if len(bytes.TrimSpace(line)) > 0 {
			if !r.started {
				return Record{}, fmt.Errorf("line %d: %w", r.line, ErrNoHeader)
			}
			seq = append(seq, line...)
		}

		if eof {
			r.done = true
			if !r.started {
				return Record{}, io.EOF
			}
			return newRecord(r.pending, seq), nil
		}
	}
}

func newRecord(header string, seq []byte) Record {
	id, desc, _ := strings.Cut(strings.TrimSpace(header), " ")
	if seq == nil {
		seq = []byte{}
	}
	return Record{ID: id, Description: strings.TrimSpace(desc), Seq: seq}
}

// Each calls fn for every record of r until the stream ends, fn fails or ctx
// is cancelled.
func Each(ctx context.Context, r *Reader, fn func(Record) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}

// Open opens path for reading; "-" reads standard input. The returned closer
// releases the file.
func Open(path string) (*Reader, io.Closer, error) {
	if path == "-" {
		r, err := NewReader(os.Stdin)
		return r, io.NopCloser(nil), err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	r, err := NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return r, f, nil
}
