package fasta

import (
	"bufio"
	"io"
)

// DefaultLineWidth is the sequence line width used by NewWriter.
const DefaultLineWidth = 60

// Writer writes FASTA records with wrapped sequence lines.
type Writer struct {
	bw    *bufio.Writer
	width int
}

// NewWriter returns a Writer wrapping sequences at width symbols; width <= 0
// selects DefaultLineWidth.
func NewWriter(w io.Writer, width int) *Writer {
	if width <= 0 {
		width = DefaultLineWidth
	}
	return &Writer{bw: bufio.NewWriter(w), width: width}
}

// Write emits one record.
func (w *Writer) Write(rec Record) error {
	w.bw.WriteByte('>')
	w.bw.WriteString(rec.ID)
	if rec.Description != "" {
		w.bw.WriteByte(' ')
		w.bw.WriteString(rec.Description)
	}
	w.bw.WriteByte('\n')
	for seq := rec.Seq; len(seq) > 0; {
		n := min(w.width, len(seq))
		w.bw.Write(seq[:n])
		w.bw.WriteByte('\n')
		seq = seq[n:]
	}
	// bufio.Writer keeps the first error; Flush reports it
	if w.bw.Buffered() > 32*1024 {
		return w.bw.Flush()
	}
	return nil
}

// Flush writes any buffered data to the underlying writer.
func (w *Writer) Flush() error { return w.bw.Flush() }
