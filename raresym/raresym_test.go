package raresym

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/INLOpen/seqpack/core"
)

func freqs(s string) *[256]uint64 {
	var f [256]uint64
	for i := 0; i < len(s); i++ {
		f[s[i]]++
	}
	return &f
}

func TestChoose(t *testing.T) {
	// 1000 symbols: N occurs 5 times (0.5%), R 10 times (exactly 1%)
	data := strings.Repeat("A", 400) + strings.Repeat("C", 300) + strings.Repeat("G", 285) +
		strings.Repeat("N", 5) + strings.Repeat("R", 10)
	p, ok := Choose(freqs(data))
	require.True(t, ok)
	assert.Equal(t, byte('A'), p.Placeholder)
	assert.True(t, p.Rare['N'])
	assert.False(t, p.Rare['R'], "1% is not below the threshold")
	assert.False(t, p.Rare['G'])
	assert.Equal(t, 5, p.Count)

	f := freqs(data)
	p.Apply(f)
	assert.Zero(t, f['N'])
	assert.Equal(t, uint64(405), f['A'])
}

func TestChoose_NothingRare(t *testing.T) {
	_, ok := Choose(freqs("ACGTACGT"))
	assert.False(t, ok)
	_, ok = Choose(&[256]uint64{})
	assert.False(t, ok)
}

func TestChoose_PlaceholderNeverRare(t *testing.T) {
	// a single symbol dominates nothing when everything is tiny; the most frequent stays
	var f [256]uint64
	f['A'] = 1
	p, ok := Choose(&f)
	assert.False(t, ok)
	assert.Equal(t, byte('A'), p.Placeholder)
}

func TestTable_RoundTrip(t *testing.T) {
	entries := []Entry{{0, 'N'}, {7, 'R'}, {300, 'Y'}, {301, 'N'}}
	buf := AppendTable(nil, entries)
	assert.Len(t, buf, EncodedSize(entries))

	got, n, err := ParseTable(append(buf, 0xCC), 302)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, entries, got)
}

func TestParseTable_Corrupt(t *testing.T) {
	_, _, err := ParseTable(AppendTable(nil, []Entry{{5, 'N'}}), 5)
	assert.True(t, core.IsCorrupt(err), "offset past the end")

	_, _, err = ParseTable([]byte{2, 1, 'N', 0, 'R'}, 10)
	assert.True(t, core.IsCorrupt(err), "repeated offset")

	_, _, err = ParseTable([]byte{1, 1}, 10)
	assert.True(t, core.IsCorrupt(err), "truncated")
}
