package fasta

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const plain = `>seq1 first record
ACGT
acgt

>seq2
NNNN
>empty
>seq3
GATTACA`

func readAll(t *testing.T, r *Reader) []Record {
	t.Helper()
	var recs []Record
	require.NoError(t, Each(context.Background(), r, func(rec Record) error {
		recs = append(recs, rec)
		return nil
	}))
	return recs
}

func TestReader_Plain(t *testing.T) {
	r, err := NewReader(strings.NewReader(plain))
	require.NoError(t, err)
	recs := readAll(t, r)
	require.Len(t, recs, 4)

	assert.Equal(t, Record{ID: "seq1", Description: "first record", Seq: []byte("ACGTacgt")}, recs[0])
	assert.Equal(t, "seq2", recs[1].ID)
	assert.Equal(t, []byte("NNNN"), recs[1].Seq)
	assert.Equal(t, "empty", recs[2].ID)
	assert.Empty(t, recs[2].Seq)
	assert.Equal(t, []byte("GATTACA"), recs[3].Seq, "last line without newline")

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReader_CRLF(t *testing.T) {
	r, err := NewReader(strings.NewReader(">a\r\nAC\r\nGT\r\n"))
	require.NoError(t, err)
	recs := readAll(t, r)
	require.Len(t, recs, 1)
	assert.Equal(t, []byte("ACGT"), recs[0].Seq)
}

func TestReader_LongLine(t *testing.T) {
	long := strings.Repeat("ACGT", 50000)
	r, err := NewReader(strings.NewReader(">chr\n" + long + "\n"))
	require.NoError(t, err)
	recs := readAll(t, r)
	require.Len(t, recs, 1)
	assert.Equal(t, long, string(recs[0].Seq))
}

func TestReader_Empty(t *testing.T) {
	r, err := NewReader(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, readAll(t, r))
}

func TestReader_NoHeader(t *testing.T) {
	r, err := NewReader(strings.NewReader("ACGT\n>a\nAC\n"))
	require.NoError(t, err)
	_, err = r.Next()
	assert.ErrorIs(t, err, ErrNoHeader)
}

func TestReader_Gzip(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write([]byte(plain))
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	path := filepath.Join(t.TempDir(), "input.fa")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	r, closer, err := Open(path)
	require.NoError(t, err)
	defer closer.Close()
	recs := readAll(t, r)
	require.Len(t, recs, 4)
	assert.Equal(t, "seq3", recs[3].ID)
}

func TestOpen_Missing(t *testing.T) {
	_, _, err := Open(filepath.Join(t.TempDir(), "missing.fa"))
	assert.Error(t, err)
}

func TestEach_StopsOnError(t *testing.T) {
	r, err := NewReader(strings.NewReader(plain))
	require.NoError(t, err)
	stop := errors.New("stop")
	n := 0
	err = Each(context.Background(), r, func(Record) error {
		n++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, n)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Each(ctx, r, func(Record) error { return nil }), context.Canceled)
}

func TestWriter_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 4)
	require.NoError(t, w.Write(Record{ID: "a", Description: "desc", Seq: []byte("ACGTACGTAC")}))
	require.NoError(t, w.Write(Record{ID: "b", Seq: []byte{}}))
	require.NoError(t, w.Flush())
	assert.Equal(t, ">a desc\nACGT\nACGT\nAC\n>b\n", buf.String())

	r, err := NewReader(&buf)
	require.NoError(t, err)
	recs := readAll(t, r)
	require.Len(t, recs, 2)
	assert.Equal(t, []byte("ACGTACGTAC"), recs[0].Seq)
	assert.Equal(t, "desc", recs[0].Description)
}
