package archive

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/INLOpen/seqpack/codec"
	"github.com/INLOpen/seqpack/core"
	"github.com/INLOpen/seqpack/fasta"
)

var dnaIUPAC = core.TypeModifier{Alphabet: core.AlphabetIUPAC}

type testEntry struct {
	id, desc string
	raw      []byte
}

func testEntries() []testEntry {
	rng := rand.New(rand.NewSource(3))
	genome := make([]byte, 5000)
	for i := range genome {
		genome[i] = "ACGT"[rng.Intn(4)]
	}
	copy(genome[1000:], strings.Repeat("N", 400))
	return []testEntry{
		{"chr2", "second", genome},
		{"short", "", []byte("ACGTTGCA")},
		{"empty", "no symbols", []byte{}},
		{"gappy", "", []byte(strings.Repeat("ACGTRY", 60))},
	}
}

func writeArchive(t *testing.T, ct core.CompressionType, entries []testEntry) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test"+core.ArchiveFileSuffix)
	w, err := NewWriter(WriterOptions{Path: path, Compression: ct})
	require.NoError(t, err)
	for _, e := range entries {
		seq, err := codec.Compress(e.raw, core.KindDNA, dnaIUPAC)
		require.NoError(t, err)
		require.NoError(t, w.Add(context.Background(), e.id, e.desc, seq))
	}
	require.NoError(t, w.Finish(context.Background()))
	return path
}

func TestArchive_RoundTrip(t *testing.T) {
	entries := testEntries()
	for _, ct := range []core.CompressionType{core.CompressionNone, core.CompressionSnappy, core.CompressionLZ4, core.CompressionZSTD} {
		t.Run(ct.String(), func(t *testing.T) {
			path := writeArchive(t, ct, entries)
			_, err := os.Stat(core.FormatTempFilename(path, "tmp"))
			assert.True(t, os.IsNotExist(err), "temporary file must be renamed away")

			r, err := Open(ReaderOptions{Path: path})
			require.NoError(t, err)
			defer r.Close()

			assert.Equal(t, ct, r.Header().CompressorType)
			require.Equal(t, len(entries), r.Len())
			assert.Equal(t, []string{"chr2", "short", "empty", "gappy"}, r.IDs())
			for _, e := range entries {
				seq, err := r.Get(context.Background(), e.id)
				require.NoError(t, err)
				got, err := codec.Decompress(seq, 0, seq.Len())
				require.NoError(t, err)
				assert.Equal(t, e.raw, got, e.id)

				info, ok := r.Lookup(e.id)
				require.True(t, ok)
				assert.Equal(t, e.desc, info.Description)
				assert.Equal(t, len(e.raw), info.Symbols)
				assert.Equal(t, seq.Tag(), info.Tag)
				assert.Equal(t, dnaIUPAC, info.TypeModifier)
			}
			assert.Empty(t, r.Verify(context.Background()))
		})
	}
}

func TestArchive_Substring(t *testing.T) {
	entries := testEntries()
	r, err := Open(ReaderOptions{Path: writeArchive(t, core.CompressionZSTD, entries)})
	require.NoError(t, err)
	defer r.Close()

	got, err := r.Substring(context.Background(), "chr2", 990, 20)
	require.NoError(t, err)
	assert.Equal(t, entries[0].raw[990:1010], got)

	_, err = r.Substring(context.Background(), "chr2", 4990, 20)
	assert.True(t, core.IsRangeError(err))

	_, err = r.Substring(context.Background(), "chrX", 0, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	// repeated lookups are served from the cache
	for i := 0; i < 4; i++ {
		_, err := r.Get(context.Background(), "chr2")
		require.NoError(t, err)
	}
	assert.Greater(t, r.CacheHitRate(), 0.5)
}

func TestArchive_Postings(t *testing.T) {
	r, err := Open(ReaderOptions{Path: writeArchive(t, core.CompressionNone, testEntries())})
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, []string{"chr2"}, r.EntriesWithSymbol('N'))
	assert.Equal(t, []string{"gappy"}, r.EntriesWithSymbol('R'))
	assert.Equal(t, []string{"chr2", "short", "gappy"}, r.EntriesWithSymbol('A'))
	assert.Empty(t, r.EntriesWithSymbol('X'))
	assert.Equal(t, []string{"gappy"}, r.EntriesWithAll([]byte("AY")))
	assert.Empty(t, r.EntriesWithAll([]byte("NR")))
	assert.Equal(t, r.IDs(), r.EntriesWithAll(nil))
}

func TestArchive_Stats(t *testing.T) {
	entries := testEntries()
	r, err := Open(ReaderOptions{Path: writeArchive(t, core.CompressionLZ4, entries)})
	require.NoError(t, err)
	defer r.Close()

	s, err := r.Stats()
	require.NoError(t, err)
	assert.Equal(t, 4, s.Entries)
	assert.Equal(t, uint64(5000+8+0+360), s.Symbols)
	assert.Equal(t, "lz4", s.Compression)
	assert.Equal(t, 1, s.Tags["empty"])
	assert.Equal(t, 4, s.Kinds["dna"])
	assert.LessOrEqual(t, s.Ratio.Min, s.Ratio.P50)
	assert.LessOrEqual(t, s.Ratio.P50, s.Ratio.Max)
	assert.Greater(t, s.Ratio.Overall, 3.0)
}

func TestWriter_DuplicateID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dup.sqa")
	w, err := NewWriter(WriterOptions{Path: path})
	require.NoError(t, err)
	seq, err := codec.Compress([]byte("ACGT"), core.KindDNA, dnaIUPAC)
	require.NoError(t, err)
	require.NoError(t, w.Add(context.Background(), "a", "", seq))
	err = w.Add(context.Background(), "a", "", seq)
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Equal(t, 1, w.Len())
	require.NoError(t, w.Finish(context.Background()))
	assert.ErrorIs(t, w.Add(context.Background(), "b", "", seq), ErrFinished)
	assert.ErrorIs(t, w.Finish(context.Background()), ErrFinished)
}

func TestWriter_Abort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aborted.sqa")
	w, err := NewWriter(WriterOptions{Path: path})
	require.NoError(t, err)
	require.NoError(t, w.Abort())
	_, err = os.Stat(core.FormatTempFilename(path, "tmp"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestWriter_EmptyArchive(t *testing.T) {
	path := writeArchive(t, core.CompressionSnappy, nil)
	r, err := Open(ReaderOptions{Path: path})
	require.NoError(t, err)
	defer r.Close()
	assert.Zero(t, r.Len())
	assert.Empty(t, r.IDs())
	s, err := r.Stats()
	require.NoError(t, err)
	assert.Zero(t, s.Ratio.P50)
}

func TestOpen_Corrupt(t *testing.T) {
	path := writeArchive(t, core.CompressionNone, testEntries())
	good, err := os.ReadFile(path)
	require.NoError(t, err)

	testCases := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"truncated", func(b []byte) []byte { return b[:20] }},
		{"bad magic", func(b []byte) []byte { b[0] ^= 0xFF; return b }},
		{"bad magic string", func(b []byte) []byte { b[len(b)-1] ^= 0xFF; return b }},
		{"directory checksum", func(b []byte) []byte {
			f, _ := parseFooter(b[len(b)-FooterSize:])
			b[f.dirOffset+blockHeaderSize] ^= 0xFF
			return b
		}},
		{"postings checksum", func(b []byte) []byte {
			f, _ := parseFooter(b[len(b)-FooterSize:])
			b[f.postOffset+blockHeaderSize] ^= 0xFF
			return b
		}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			bad := filepath.Join(t.TempDir(), "bad.sqa")
			require.NoError(t, os.WriteFile(bad, tc.mutate(bytes.Clone(good)), 0o644))
			_, err := Open(ReaderOptions{Path: bad})
			assert.Error(t, err)
		})
	}
}

func TestOpen_HeaderFormat(t *testing.T) {
	path := writeArchive(t, core.CompressionSnappy, testEntries())
	good, err := os.ReadFile(path)
	require.NoError(t, err)

	r, err := Open(ReaderOptions{Path: path})
	require.NoError(t, err)
	h := r.Header()
	r.Close()
	assert.Equal(t, uint16(core.CheckpointStride), h.CheckpointStride)
	assert.Equal(t, core.SequenceFormatVersion, h.SequenceFormat)

	rewrite := func(t *testing.T, h core.FileHeader) string {
		var buf bytes.Buffer
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, &h))
		bad := bytes.Clone(good)
		copy(bad, buf.Bytes())
		p := filepath.Join(t.TempDir(), "bad.sqa")
		require.NoError(t, os.WriteFile(p, bad, 0o644))
		return p
	}

	t.Run("damaged", func(t *testing.T) {
		d := h
		d.CreatedAt++
		_, err := Open(ReaderOptions{Path: rewrite(t, d)})
		assert.ErrorIs(t, err, ErrCorrupted)
	})
	t.Run("other stride", func(t *testing.T) {
		o := core.NewFileHeader(core.ArchiveMagicNumber, core.CompressionSnappy)
		o.CheckpointStride = 4096
		o.Seal()
		_, err := Open(ReaderOptions{Path: rewrite(t, o)})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCorrupted)
		assert.Contains(t, err.Error(), "stride 4096")
	})
}

func TestOpen_DamagedFooterSizes(t *testing.T) {
	for _, ct := range []core.CompressionType{core.CompressionNone, core.CompressionSnappy, core.CompressionLZ4, core.CompressionZSTD} {
		good, err := os.ReadFile(writeArchive(t, ct, testEntries()))
		require.NoError(t, err)
		footerAt := len(good) - FooterSize
		for _, field := range []struct {
			name string
			at   int
		}{{"directory", 12}, {"postings", 28}} {
			t.Run(ct.String()+"/"+field.name, func(t *testing.T) {
				bad := bytes.Clone(good)
				binary.LittleEndian.PutUint32(bad[footerAt+field.at:], math.MaxUint32)
				path := filepath.Join(t.TempDir(), "bad.sqa")
				require.NoError(t, os.WriteFile(path, bad, 0o644))

				var before, after runtime.MemStats
				runtime.ReadMemStats(&before)
				_, err := Open(ReaderOptions{Path: path})
				runtime.ReadMemStats(&after)
				assert.ErrorIs(t, err, ErrCorrupted)
				assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(64<<20))
			})
		}
	}
}

func TestVerify_CorruptEntry(t *testing.T) {
	path := writeArchive(t, core.CompressionNone, testEntries())
	r, err := Open(ReaderOptions{Path: path})
	require.NoError(t, err)
	info, _ := r.Lookup("short")
	r.Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[info.Offset+int64(info.DiskLength)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	r, err = Open(ReaderOptions{Path: path, CacheSize: -1})
	require.NoError(t, err)
	defer r.Close()
	errs := r.Verify(context.Background())
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrCorrupted)
	_, err = r.Get(context.Background(), "short")
	assert.ErrorIs(t, err, ErrCorrupted)
	_, err = r.Get(context.Background(), "chr2")
	assert.NoError(t, err)
}

func TestArchive_Tracing(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	tracer := tp.Tracer("archive-test")

	path := filepath.Join(t.TempDir(), "traced.sqa")
	w, err := NewWriter(WriterOptions{Path: path, Tracer: tracer})
	require.NoError(t, err)
	seq, err := codec.Compress([]byte("ACGTACGT"), core.KindDNA, dnaIUPAC)
	require.NoError(t, err)
	require.NoError(t, w.Add(context.Background(), "a", "", seq))
	require.NoError(t, w.Finish(context.Background()))

	r, err := Open(ReaderOptions{Path: path, Tracer: noop.NewTracerProvider().Tracer("")})
	require.NoError(t, err)
	defer r.Close()

	var names []string
	for _, s := range rec.Ended() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"ArchiveWriter.Add", "ArchiveWriter.Finish"}, names)
}

const packInput = `>r1 first
ACGTACGTNNNN
>r2
GGGGCCCCAAAATTTT
>r3 empty
>r4
acgtrykm
`

func TestPack(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			src, err := fasta.NewReader(strings.NewReader(packInput))
			require.NoError(t, err)
			path := filepath.Join(t.TempDir(), "packed.sqa")
			w, err := NewWriter(WriterOptions{Path: path, Compression: core.CompressionZSTD})
			require.NoError(t, err)

			res, err := Pack(context.Background(), src, w, PackOptions{
				Kind: core.KindDNA, TypeModifier: dnaIUPAC, Workers: workers,
			})
			require.NoError(t, err)
			require.NoError(t, w.Finish(context.Background()))
			assert.Equal(t, 4, res.Entries)
			assert.Equal(t, uint64(12+16+0+8), res.Symbols)

			r, err := Open(ReaderOptions{Path: path})
			require.NoError(t, err)
			defer r.Close()
			assert.Equal(t, []string{"r1", "r2", "r3", "r4"}, r.IDs(), "input order is kept")
			got, err := r.Substring(context.Background(), "r4", 0, 8)
			require.NoError(t, err)
			assert.Equal(t, []byte("ACGTRYKM"), got)
			info, _ := r.Lookup("r1")
			assert.Equal(t, "first", info.Description)
		})
	}
}

func TestPack_CompressError(t *testing.T) {
	src, err := fasta.NewReader(strings.NewReader(">ok\nACGT\n>bad\nACGU\n>later\nAC\n"))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "bad.sqa")
	w, err := NewWriter(WriterOptions{Path: path})
	require.NoError(t, err)
	defer w.Abort()

	_, err = Pack(context.Background(), src, w, PackOptions{
		Kind: core.KindDNA, TypeModifier: core.TypeModifier{Alphabet: core.AlphabetFourLetter}, Workers: 2,
	})
	require.Error(t, err)
	assert.True(t, core.IsAlphabetViolation(err))
	assert.Contains(t, err.Error(), `"bad"`)
}

func TestPack_Cancelled(t *testing.T) {
	var input strings.Builder
	for i := 0; i < 100; i++ {
		fmt.Fprintf(&input, ">r%d\nACGTACGT\n", i)
	}
	src, err := fasta.NewReader(strings.NewReader(input.String()))
	require.NoError(t, err)
	w, err := NewWriter(WriterOptions{Path: filepath.Join(t.TempDir(), "c.sqa")})
	require.NoError(t, err)
	defer w.Abort()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Pack(ctx, src, w, PackOptions{Kind: core.KindDNA, TypeModifier: dnaIUPAC})
	assert.True(t, errors.Is(err, context.Canceled))
}
