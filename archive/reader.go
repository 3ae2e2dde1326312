package archive

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/RoaringBitmap/roaring"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/INLOpen/seqpack/cache"
	"github.com/INLOpen/seqpack/codec"
	"github.com/INLOpen/seqpack/core"
)

// DefaultCacheSize is the number of parsed sequences a Reader keeps by default.
const DefaultCacheSize = 64

// ReaderOptions configures Open.
type ReaderOptions struct {
	Path string
	// Codec decodes substrings; nil uses a Codec sharing Logger and Tracer.
	Codec *codec.Codec
	// CacheSize bounds the parsed-sequence cache. Zero selects
	// DefaultCacheSize, a negative value disables caching.
	CacheSize int
	Logger    *slog.Logger
	Tracer    trace.Tracer
}

// Reader gives random access to the entries of an archive. It is safe for
// concurrent use.
type Reader struct {
	path     string
	file     *os.File
	size     int64
	header   core.FileHeader
	entries  []EntryInfo
	byID     []int // entry numbers sorted by id
	postings *postings

	cache  *cache.LRU[int, *codec.Sequence]
	codec  *codec.Codec
	logger *slog.Logger
	tracer trace.Tracer
}

// Open loads the header, directory and postings of the archive at opts.Path.
func Open(opts ReaderOptions) (r *Reader, err error) {
	var span trace.Span
	if opts.Tracer != nil {
		_, span = opts.Tracer.Start(context.Background(), "Archive.Open")
		span.SetAttributes(attribute.String("archive.path", opts.Path))
		defer func() {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			span.End()
		}()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	logger := opts.Logger.With("component", "ArchiveReader", "path", opts.Path)
	if opts.Codec == nil {
		opts.Codec = codec.New(codec.Options{Logger: opts.Logger, Tracer: opts.Tracer})
	}
	switch {
	case opts.CacheSize == 0:
		opts.CacheSize = DefaultCacheSize
	case opts.CacheSize < 0:
		opts.CacheSize = 0
	}

	file, err := os.Open(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", opts.Path, err)
	}
	defer func() {
		if err != nil {
			file.Close()
		}
	}()

	r = &Reader{
		path:   opts.Path,
		file:   file,
		cache:  cache.NewLRU[int, *codec.Sequence](opts.CacheSize, nil),
		codec:  opts.Codec,
		logger: logger,
		tracer: opts.Tracer,
	}
	if err := r.load(); err != nil {
		return nil, fmt.Errorf("archive %s: %w", opts.Path, err)
	}
	if span != nil {
		span.SetAttributes(
			attribute.Int("archive.entries", len(r.entries)),
			attribute.Int64("archive.size_bytes", r.size),
		)
	}
	logger.Debug("Archive opened", "entries", len(r.entries), "size", r.size)
	return r, nil
}

func (r *Reader) load() error {
	stat, err := r.file.Stat()
	if err != nil {
		return err
	}
	r.size = stat.Size()
	headerSize := int64(r.header.Size())
	if r.size < headerSize+int64(FooterSize) {
		return fmt.Errorf("file too small (%d bytes): %w", r.size, ErrCorrupted)
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r.file, headerBytes); err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	if err := binary.Read(bytes.NewReader(headerBytes), binary.LittleEndian, &r.header); err != nil {
		return fmt.Errorf("failed to parse header: %w", err)
	}
	if r.header.Magic != core.ArchiveMagicNumber {
		return fmt.Errorf("invalid magic number %x: %w", r.header.Magic, ErrCorrupted)
	}
	if !r.header.Intact() {
		return fmt.Errorf("header checksum mismatch: %w", ErrCorrupted)
	}
	if !r.header.Compatible() {
		return fmt.Errorf("unsupported archive format: version %d, sequence format %d, stride %d",
			r.header.Version, r.header.SequenceFormat, r.header.CheckpointStride)
	}

	footerBytes := make([]byte, FooterSize)
	if _, err := r.file.ReadAt(footerBytes, r.size-int64(FooterSize)); err != nil {
		return fmt.Errorf("failed to read footer: %w", err)
	}
	f, err := parseFooter(footerBytes)
	if err != nil {
		return err
	}

	dir, err := r.readBlock(int64(f.dirOffset), int(f.dirLen), int(f.dirRaw))
	if err != nil {
		return fmt.Errorf("directory: %w", err)
	}
	if r.entries, err = parseDirectory(dir, int(f.count), r.size); err != nil {
		return err
	}
	post, err := r.readBlock(int64(f.postOffset), int(f.postLen), int(f.postRaw))
	if err != nil {
		return fmt.Errorf("postings: %w", err)
	}
	if r.postings, err = parsePostings(post, len(r.entries)); err != nil {
		return err
	}

	r.byID = make([]int, len(r.entries))
	for i := range r.byID {
		r.byID[i] = i
	}
	sort.Slice(r.byID, func(a, b int) bool {
		return r.entries[r.byID[a]].ID < r.entries[r.byID[b]].ID
	})
	for i := 1; i < len(r.byID); i++ {
		if r.entries[r.byID[i]].ID == r.entries[r.byID[i-1]].ID {
			return fmt.Errorf("id %q stored twice: %w", r.entries[r.byID[i]].ID, ErrCorrupted)
		}
	}
	return nil
}

func (r *Reader) readBlock(offset int64, diskLen, rawLen int) ([]byte, error) {
	if offset < 0 || int64(diskLen) > r.size-offset {
		return nil, fmt.Errorf("block [%d, +%d) outside file: %w", offset, diskLen, ErrCorrupted)
	}
	frame := make([]byte, diskLen)
	if _, err := r.file.ReadAt(frame, offset); err != nil {
		return nil, fmt.Errorf("failed to read block at %d: %w", offset, err)
	}
	return verifyBlock(frame, rawLen, offset)
}

// Close releases the archive file.
func (r *Reader) Close() error {
	r.cache.Clear()
	return r.file.Close()
}

// Path returns the archive path.
func (r *Reader) Path() string { return r.path }

// Header returns the archive file header.
func (r *Reader) Header() core.FileHeader { return r.header }

// Len returns the number of entries.
func (r *Reader) Len() int { return len(r.entries) }

// Size returns the archive file size in bytes.
func (r *Reader) Size() int64 { return r.size }

// IDs returns the entry ids in storage order.
func (r *Reader) IDs() []string {
	ids := make([]string, len(r.entries))
	for i := range r.entries {
		ids[i] = r.entries[i].ID
	}
	return ids
}

// Entries returns a copy of the directory in storage order.
func (r *Reader) Entries() []EntryInfo {
	return append([]EntryInfo(nil), r.entries...)
}

func (r *Reader) find(id string) (int, bool) {
	i := sort.Search(len(r.byID), func(i int) bool {
		return r.entries[r.byID[i]].ID >= id
	})
	if i < len(r.byID) && r.entries[r.byID[i]].ID == id {
		return r.byID[i], true
	}
	return 0, false
}

// Lookup returns the directory entry for id.
func (r *Reader) Lookup(id string) (EntryInfo, bool) {
	n, ok := r.find(id)
	if !ok {
		return EntryInfo{}, false
	}
	return r.entries[n], true
}

// Get returns the sequence stored under id.
func (r *Reader) Get(ctx context.Context, id string) (seq *codec.Sequence, err error) {
	var span trace.Span
	if r.tracer != nil {
		_, span = r.tracer.Start(ctx, "ArchiveReader.Get")
		span.SetAttributes(attribute.String("archive.entry.id", id))
		defer func() {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			span.End()
		}()
	}
	n, ok := r.find(id)
	if !ok {
		return nil, fmt.Errorf("%q: %w", id, ErrNotFound)
	}
	if seq, ok := r.cache.Get(n); ok {
		if span != nil {
			span.SetAttributes(attribute.Bool("archive.cache_hit", true))
		}
		return seq, nil
	}
	seq, err = r.readEntry(n)
	if err != nil {
		return nil, err
	}
	r.cache.Put(n, seq)
	return seq, nil
}

func (r *Reader) readEntry(n int) (*codec.Sequence, error) {
	e := &r.entries[n]
	data, err := r.readBlock(e.Offset, e.DiskLength, e.RawLength)
	if err != nil {
		return nil, fmt.Errorf("entry %q: %w", e.ID, err)
	}
	seq, err := codec.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("entry %q: %w", e.ID, err)
	}
	if seq.Len() != e.Symbols || seq.Kind() != e.Kind || seq.Tag() != e.Tag {
		return nil, fmt.Errorf("entry %q does not match its directory record: %w", e.ID, ErrCorrupted)
	}
	return seq, nil
}

// Substring returns symbols [from, from+length) of the entry id.
func (r *Reader) Substring(ctx context.Context, id string, from, length int) ([]byte, error) {
	seq, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.codec.Decompress(ctx, seq, from, length)
}

func (r *Reader) idsOf(bm *roaring.Bitmap) []string {
	ids := make([]string, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		ids = append(ids, r.entries[it.Next()].ID)
	}
	return ids
}

// EntriesWithSymbol returns the ids, in storage order, of the entries whose
// stored symbols include sym. Stored symbols are upper case unless the
// entry's modifier is case sensitive.
func (r *Reader) EntriesWithSymbol(sym byte) []string {
	bm := r.postings[sym]
	if bm == nil {
		return []string{}
	}
	return r.idsOf(bm)
}

// EntriesWithAll returns the ids of the entries containing every symbol of syms.
func (r *Reader) EntriesWithAll(syms []byte) []string {
	if len(syms) == 0 {
		return r.IDs()
	}
	var acc *roaring.Bitmap
	for _, s := range syms {
		bm := r.postings[s]
		if bm == nil {
			return []string{}
		}
		if acc == nil {
			acc = bm.Clone()
		} else {
			acc.And(bm)
		}
	}
	return r.idsOf(acc)
}

// Verify reads and parses every entry block and reports each failure.
func (r *Reader) Verify(ctx context.Context) []error {
	var errs []error
	for n := range r.entries {
		if err := ctx.Err(); err != nil {
			return append(errs, err)
		}
		if _, err := r.readEntry(n); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// CacheHitRate returns the hit rate of the parsed-sequence cache.
func (r *Reader) CacheHitRate() float64 { return r.cache.HitRate() }
