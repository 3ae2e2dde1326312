package archive

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"log/slog"
	"math"
	"os"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/INLOpen/seqpack/codec"
	"github.com/INLOpen/seqpack/compressors"
	"github.com/INLOpen/seqpack/core"
)

// WriterOptions configures a Writer.
type WriterOptions struct {
	// Path is the final archive path. Data goes to Path+".tmp" until Finish.
	Path string
	// Compression applies to entry, directory and postings blocks.
	Compression core.CompressionType
	Logger      *slog.Logger
	Tracer      trace.Tracer
}

// Writer builds an archive file. Entries are written in the order they are added.
type Writer struct {
	mu         sync.Mutex
	path       string
	tmpPath    string
	file       *os.File
	bw         *bufio.Writer
	offset     int64
	compressor core.Compressor

	entries  []EntryInfo
	ids      map[string]struct{}
	postings postings
	done     bool

	logger *slog.Logger
	tracer trace.Tracer
}

// NewWriter creates the temporary file and writes the archive header.
func NewWriter(opts WriterOptions) (*Writer, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	compressor, err := compressors.ForType(opts.Compression)
	if err != nil {
		return nil, err
	}
	tmpPath := core.FormatTempFilename(opts.Path, "tmp")
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary archive file %s: %w", tmpPath, err)
	}
	w := &Writer{
		path:       opts.Path,
		tmpPath:    tmpPath,
		file:       file,
		bw:         bufio.NewWriterSize(file, 256*1024),
		compressor: compressor,
		ids:        make(map[string]struct{}),
		logger:     opts.Logger.With("component", "ArchiveWriter", "path", opts.Path),
		tracer:     opts.Tracer,
	}
	header := core.NewFileHeader(core.ArchiveMagicNumber, compressor.Type())
	if err := binary.Write(w.bw, binary.LittleEndian, &header); err != nil {
		w.abort()
		return nil, fmt.Errorf("failed to write archive header: %w", err)
	}
	w.offset = int64(header.Size())
	return w, nil
}

// writeBlock compresses and frames payload at the current offset and returns
// the framed length. Must be called with w.mu held.
func (w *Writer) writeBlock(payload []byte) (int, error) {
	packed, err := w.compressor.Compress(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to compress block: %w", err)
	}
	frame := core.BufferPool.Get()
	defer core.BufferPool.Put(frame)
	frame.WriteByte(byte(w.compressor.Type()))
	binary.Write(frame, binary.LittleEndian, crc32.ChecksumIEEE(packed))
	frame.Write(packed)

	n, err := w.bw.Write(frame.Bytes())
	if err != nil {
		return 0, fmt.Errorf("failed to write block at %d: %w", w.offset, err)
	}
	w.offset += int64(n)
	return n, nil
}

// Add appends seq under id. Ids must be unique within an archive.
func (w *Writer) Add(ctx context.Context, id, description string, seq *codec.Sequence) (err error) {
	var span trace.Span
	if w.tracer != nil {
		_, span = w.tracer.Start(ctx, "ArchiveWriter.Add")
		defer func() {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			span.End()
		}()
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return ErrFinished
	}
	if _, dup := w.ids[id]; dup {
		return fmt.Errorf("%q: %w", id, ErrDuplicateID)
	}
	if len(w.entries) == math.MaxUint32 {
		return fmt.Errorf("archive holds the maximum of %d entries", len(w.entries))
	}
	symbols, err := seq.UsedAlphabet()
	if err != nil {
		return fmt.Errorf("entry %q: %w", id, err)
	}

	e := EntryInfo{
		ID:           id,
		Description:  description,
		Kind:         seq.Kind(),
		TypeModifier: seq.TypeModifier(),
		Tag:          seq.Tag(),
		Symbols:      seq.Len(),
		Offset:       w.offset,
		RawLength:    seq.OctetLength(),
	}
	if e.DiskLength, err = w.writeBlock(seq.Bytes()); err != nil {
		return err
	}
	w.postings.add(uint32(len(w.entries)), symbols)
	w.entries = append(w.entries, e)
	w.ids[id] = struct{}{}

	if span != nil {
		span.SetAttributes(
			attribute.String("archive.entry.id", id),
			attribute.Int64("archive.entry.offset", e.Offset),
			attribute.Int("archive.entry.symbols", e.Symbols),
			attribute.Int("archive.entry.disk_len_bytes", e.DiskLength),
			attribute.String("archive.entry.tag", e.Tag.String()),
		)
	}
	w.logger.Debug("Added entry", "id", id, "symbols", e.Symbols, "tag", e.Tag.String(), "disk_len", e.DiskLength)
	return nil
}

// Len returns the number of entries added so far.
func (w *Writer) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

// Path returns the final archive path.
func (w *Writer) Path() string { return w.path }

// Finish writes the directory, postings and footer, syncs the file and
// renames it to its final path.
func (w *Writer) Finish(ctx context.Context) (err error) {
	var span trace.Span
	if w.tracer != nil {
		_, span = w.tracer.Start(ctx, "ArchiveWriter.Finish")
		defer func() {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			span.End()
		}()
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return ErrFinished
	}
	w.done = true

	if err := w.finish(span); err != nil {
		w.abort()
		return err
	}
	w.logger.Info("Archive written", "entries", len(w.entries), "bytes", w.offset)
	return nil
}

func (w *Writer) finish(span trace.Span) error {
	var dir []byte
	dir = binary.AppendUvarint(dir, uint64(len(w.entries)))
	for i := range w.entries {
		dir = appendEntry(dir, &w.entries[i])
	}
	f := footer{
		dirOffset: uint64(w.offset),
		dirRaw:    uint32(len(dir)),
		count:     uint32(len(w.entries)),
	}
	n, err := w.writeBlock(dir)
	if err != nil {
		return fmt.Errorf("failed to write directory: %w", err)
	}
	f.dirLen = uint32(n)

	post, err := w.postings.marshal()
	if err != nil {
		return err
	}
	f.postOffset = uint64(w.offset)
	f.postRaw = uint32(len(post))
	if n, err = w.writeBlock(post); err != nil {
		return fmt.Errorf("failed to write postings: %w", err)
	}
	f.postLen = uint32(n)

	if _, err := w.bw.Write(f.appendTo(nil)); err != nil {
		return fmt.Errorf("failed to write footer: %w", err)
	}
	w.offset += int64(FooterSize)
	if err := w.bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush archive file: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync archive file: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close archive file: %w", err)
	}
	w.file = nil
	if err := os.Rename(w.tmpPath, w.path); err != nil {
		return fmt.Errorf("failed to rename %s to %s: %w", w.tmpPath, w.path, err)
	}
	if span != nil {
		span.SetAttributes(
			attribute.Int("archive.entries", len(w.entries)),
			attribute.Int64("archive.size_bytes", w.offset),
			attribute.Int("archive.directory.raw_len_bytes", int(f.dirRaw)),
			attribute.String("archive.compression", w.compressor.Type().String()),
		)
	}
	return nil
}

// Abort discards the temporary file. It is a no-op after a successful Finish.
func (w *Writer) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return nil
	}
	w.done = true
	return w.abort()
}

// must be called with w.mu held or before w is shared
func (w *Writer) abort() error {
	if w.file != nil {
		w.file.Close()
		w.file = nil
	}
	if err := os.Remove(w.tmpPath); err != nil && !os.IsNotExist(err) {
		w.logger.Warn("Failed to remove temporary archive file", "path", w.tmpPath, "error", err)
		return err
	}
	return nil
}
