package huffman

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/INLOpen/seqpack/bitstream"
	"github.com/INLOpen/seqpack/core"
)

func freqsOf(s string) *Frequencies {
	var f Frequencies
	f.Add([]byte(s))
	return &f
}

func TestBuild_Empty(t *testing.T) {
	_, err := Build(&Frequencies{})
	assert.ErrorIs(t, err, core.ErrEmptyAlphabet)
}

func TestBuild_SingleSymbol(t *testing.T) {
	tbl, err := Build(freqsOf("AAAA"))
	require.NoError(t, err)
	assert.Equal(t, uint8(0), tbl.CodeLength('A'), "the only symbol needs no stream bits")
	assert.Equal(t, uint64(0), tbl.codes['A'])
	assert.True(t, tbl.Has('A'))
	assert.False(t, tbl.Has('C'))
	assert.Zero(t, tbl.Cost(freqsOf("AAAA")))
	assert.Equal(t, []byte{1, 0, 'A', 1}, tbl.AppendBinary(nil))

	r, err := bitstream.NewReader(nil, 0, 0)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		s, n, err := tbl.Decode(r)
		require.NoError(t, err)
		assert.Equal(t, byte('A'), s)
		assert.Zero(t, n)
	}
}

func TestBuild_Canonical(t *testing.T) {
	// A:8 C:4 G:2 T:2 gives lengths 1, 2, 3, 3.
	tbl, err := Build(freqsOf("AAAAAAAACCCCGGTT"))
	require.NoError(t, err)

	want := map[byte]struct {
		code uint64
		len  uint8
	}{
		'A': {0b0, 1},
		'C': {0b10, 2},
		'G': {0b110, 3},
		'T': {0b111, 3},
	}
	for s, w := range want {
		assert.Equal(t, w.len, tbl.CodeLength(s), "length of %q", s)
		assert.Equal(t, w.code, tbl.codes[s], "code of %q", s)
	}
	assert.Equal(t, []byte("ACGT"), tbl.Symbols())
	assert.Equal(t, uint64(8+8+6+6), tbl.Cost(freqsOf("AAAAAAAACCCCGGTT")))
}

func TestBuild_Deterministic(t *testing.T) {
	f := freqsOf("ACGTACGTNNRY")
	a, err := Build(f)
	require.NoError(t, err)
	b, err := Build(f)
	require.NoError(t, err)
	assert.Equal(t, a.AppendBinary(nil), b.AppendBinary(nil))
	// equal weights: ascending symbols get the shorter or equal codes
	assert.LessOrEqual(t, a.CodeLength('A'), a.CodeLength('Y'))
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	alphabet := []byte("ACGTNRYKM-")
	data := make([]byte, 5000)
	for i := range data {
		// skewed distribution
		data[i] = alphabet[int(rng.ExpFloat64()*2)%len(alphabet)]
	}
	var f Frequencies
	f.Add(data)
	tbl, err := Build(&f)
	require.NoError(t, err)

	w := bitstream.NewWriter(nil)
	offsets := make([]uint64, len(data))
	for i, s := range data {
		offsets[i] = w.Bits()
		require.NoError(t, tbl.Encode(w, s))
	}
	total := w.Bits()
	assert.Equal(t, tbl.Cost(&f), total)
	stream, err := w.Close()
	require.NoError(t, err)

	for _, start := range []int{0, 1, 2500, 4999} {
		r, err := bitstream.NewReader(stream, offsets[start], total)
		require.NoError(t, err)
		for i := start; i < len(data); i++ {
			s, l, err := tbl.Decode(r)
			require.NoError(t, err)
			require.Equal(t, data[i], s, "symbol %d from start %d", i, start)
			require.Equal(t, tbl.CodeLength(s), l)
		}
	}
}

func TestMarshal_RoundTrip(t *testing.T) {
	tbl, err := Build(freqsOf("the quick brown fox jumps over the lazy dog"))
	require.NoError(t, err)

	buf := tbl.AppendBinary([]byte{0xEE})
	assert.Len(t, buf, 1+tbl.MarshaledSize())

	got, n, err := Unmarshal(buf[1:])
	require.NoError(t, err)
	assert.Equal(t, tbl.MarshaledSize(), n)
	assert.Equal(t, tbl.lengths, got.lengths)
	assert.Equal(t, tbl.codes, got.codes)
}

func TestUnmarshal_Empty(t *testing.T) {
	tbl, n, err := Unmarshal([]byte{0, 0})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Zero(t, tbl.Len())
}

func TestUnmarshal_Corrupt(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{"short header", []byte{1}},
		{"truncated pairs", []byte{2, 0, 'A', 1}},
		{"zero length", []byte{1, 0, 'A', 0}},
		{"length over max", []byte{1, 0, 'A', 65}},
		{"duplicate symbol", []byte{2, 0, 'A', 1, 'A', 1}},
		{"over-subscribed", []byte{3, 0, 'A', 1, 'C', 1, 'G', 1}},
		{"too many symbols", []byte{0x01, 0x01}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Unmarshal(tc.data)
			require.Error(t, err)
			assert.True(t, core.IsCorrupt(err))
		})
	}
}

func TestDecode_UnassignedCode(t *testing.T) {
	// incomplete code: A=0, C=10, 11 is unassigned
	tbl, _, err := Unmarshal([]byte{2, 0, 'A', 1, 'C', 2})
	require.NoError(t, err)
	r, err := bitstream.NewReader([]byte{0xC0}, 0, 2)
	require.NoError(t, err)
	_, _, err = tbl.Decode(r)
	assert.ErrorIs(t, err, core.ErrCorruptCodeTable)

	r, err = bitstream.NewReader([]byte{0x80}, 0, 1)
	require.NoError(t, err)
	_, _, err = tbl.Decode(r)
	assert.ErrorIs(t, err, core.ErrCorruptCodeTable, "truncated codeword")
}
