// Package codec compresses biological sequences into self-describing binary
// values and decodes them back, in full or as substrings, without touching
// more of the stream than the nearest checkpoint requires.
package codec

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/INLOpen/seqpack/alphabet"
	"github.com/INLOpen/seqpack/codes"
	"github.com/INLOpen/seqpack/core"
)

// Options configures a Codec.
type Options struct {
	Logger *slog.Logger
	Tracer trace.Tracer
}

// Codec compresses and decompresses sequences. A Codec holds no per-call state
// and may be shared between goroutines.
type Codec struct {
	logger *slog.Logger
	tracer trace.Tracer
}

// New creates a Codec.
func New(opts Options) *Codec {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Codec{
		logger: opts.Logger.With("component", "Codec"),
		tracer: opts.Tracer,
	}
}

func (c *Codec) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if c.tracer == nil {
		return ctx, nil
	}
	return c.tracer.Start(ctx, name)
}

func endSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}
	span.End()
}

// Compress validates raw against the alphabet of kind and tm and returns the
// compressed sequence. Case-insensitive modifiers store the upper-case form.
func (c *Codec) Compress(ctx context.Context, raw []byte, kind core.SequenceKind, tm core.TypeModifier) (seq *Sequence, err error) {
	_, span := c.startSpan(ctx, "Codec.Compress")
	defer func() { endSpan(span, err) }()

	if err := tm.Check(kind); err != nil {
		return nil, err
	}
	if err := alphabet.Validate(raw, kind, tm); err != nil {
		return nil, err
	}
	data := alphabet.Fold(raw, tm)
	choice := Select(kind, tm, len(data))

	var out []byte
	switch choice.Tag {
	case TagEmpty:
		out = encodeEmpty(kind, tm)
	case TagFixed:
		out, err = encodeFixed(data, kind, tm, choice.CodeSet)
	default:
		var l *layout
		l, err = chooseLayout(data, choice)
		if err == nil {
			out, err = encodeHuffman(data, kind, tm, l)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("compress %s sequence of %d symbols: %w", kind, len(data), err)
	}

	seq, err = Parse(out)
	if err != nil {
		return nil, fmt.Errorf("re-read compressed sequence: %w", err)
	}
	if span != nil {
		span.SetAttributes(
			attribute.String("seqpack.kind", kind.String()),
			attribute.String("seqpack.type_modifier", tm.String()),
			attribute.String("seqpack.layout", seq.tag.String()),
			attribute.Int("seqpack.symbols", seq.count),
			attribute.Int("seqpack.bytes", len(out)),
			attribute.Int("seqpack.runs", len(seq.runs)),
			attribute.Int("seqpack.rare", len(seq.rare)),
		)
	}
	c.logger.Debug("Compressed sequence.", "kind", kind, "layout", seq.tag, "symbols", seq.count, "bytes", len(out))
	return seq, nil
}

// Decompress returns symbols [from, from+length) of seq.
func (c *Codec) Decompress(ctx context.Context, seq *Sequence, from, length int) ([]byte, error) {
	if err := seq.checkRange(from, length); err != nil {
		return nil, err
	}
	dst := make([]byte, length)
	if _, err := c.DecompressInto(ctx, dst, seq, from, length); err != nil {
		return nil, err
	}
	return dst, nil
}

// DecompressInto writes symbols [from, from+length) of seq into dst and returns
// the number of bytes written. dst must hold at least length bytes.
func (c *Codec) DecompressInto(ctx context.Context, dst []byte, seq *Sequence, from, length int) (n int, err error) {
	_, span := c.startSpan(ctx, "Codec.Decompress")
	defer func() { endSpan(span, err) }()

	if err := seq.checkRange(from, length); err != nil {
		return 0, err
	}
	if len(dst) < length {
		return 0, fmt.Errorf("destination of %d bytes for %d symbols: %w", len(dst), length, io.ErrShortBuffer)
	}
	entry, err := seq.decodeInto(dst, from, length)
	if err != nil {
		return 0, err
	}
	if span != nil {
		span.SetAttributes(
			attribute.String("seqpack.layout", seq.tag.String()),
			attribute.Int("seqpack.from", from),
			attribute.Int("seqpack.length", length),
			attribute.Int("seqpack.entry_checkpoint", entry),
		)
	}
	return length, nil
}

// decodeAll returns every symbol of seq.
func (s *Sequence) decodeAll() ([]byte, error) {
	dst := make([]byte, s.count)
	if _, err := s.decodeInto(dst, 0, s.count); err != nil {
		return nil, err
	}
	return dst, nil
}

// Reverse returns seq with its symbols in reverse order.
func (c *Codec) Reverse(ctx context.Context, seq *Sequence) (out *Sequence, err error) {
	ctx, span := c.startSpan(ctx, "Codec.Reverse")
	defer func() { endSpan(span, err) }()

	data, err := seq.decodeAll()
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(data)-1; i < j; i, j = i+1, j-1 {
		data[i], data[j] = data[j], data[i]
	}
	return c.Compress(ctx, data, seq.kind, seq.tm)
}

// Complement returns the IUPAC complement of a nucleotide sequence. Fixed-code
// sequences only switch to the complemented code set; the stream is reused.
func (c *Codec) Complement(ctx context.Context, seq *Sequence) (out *Sequence, err error) {
	ctx, span := c.startSpan(ctx, "Codec.Complement")
	defer func() { endSpan(span, err) }()

	if seq.kind != core.KindDNA {
		return nil, core.ErrNotNucleotide
	}
	switch seq.tag {
	case TagEmpty:
		return seq, nil
	case TagFixed:
		raw := make([]byte, len(seq.raw))
		copy(raw, seq.raw)
		raw[seq.payload] = byte(codes.ID(raw[seq.payload]).Complement())
		return Parse(appendChecksum(raw[:len(raw)-core.ChecksumSize]))
	default:
		data, err := seq.decodeAll()
		if err != nil {
			return nil, err
		}
		alphabet.ComplementInPlace(data)
		return c.Compress(ctx, data, seq.kind, seq.tm)
	}
}

// ReverseComplement returns the reverse complement of a nucleotide sequence.
func (c *Codec) ReverseComplement(ctx context.Context, seq *Sequence) (*Sequence, error) {
	if seq.kind != core.KindDNA {
		return nil, core.ErrNotNucleotide
	}
	data, err := seq.decodeAll()
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(data)-1; i < j; i, j = i+1, j-1 {
		data[i], data[j] = data[j], data[i]
	}
	alphabet.ComplementInPlace(data)
	return c.Compress(ctx, data, seq.kind, seq.tm)
}

// Cast recompresses seq under another type modifier. The symbols must satisfy
// the new alphabet.
func (c *Codec) Cast(ctx context.Context, seq *Sequence, tm core.TypeModifier) (*Sequence, error) {
	if tm == seq.tm {
		return seq, nil
	}
	data, err := seq.decodeAll()
	if err != nil {
		return nil, err
	}
	return c.Compress(ctx, data, seq.kind, tm)
}
