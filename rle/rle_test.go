package rle

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/INLOpen/seqpack/core"
)

func TestFind(t *testing.T) {
	data := []byte("AC" + strings.Repeat("N", 20) + "GT" + strings.Repeat("A", 15) + "C" + strings.Repeat("T", 16))
	runs := Find(data)
	require.Len(t, runs, 2, "a 15 symbol stretch is not a run")
	assert.Equal(t, Run{Offset: 2, Symbol: 'N', Length: 20}, runs[0])
	assert.Equal(t, Run{Offset: 40, Symbol: 'T', Length: 16}, runs[1])
	assert.Empty(t, Find(nil))
}

func TestTable_RoundTrip(t *testing.T) {
	data := []byte(strings.Repeat("A", 300) + "CG" + strings.Repeat("N", 17) + "T")
	runs := Find(data)
	buf := AppendTable([]byte{0xFF}, runs)
	assert.Len(t, buf, 1+EncodedSize(runs))

	got, n, err := ParseTable(append(buf[1:], 0xAB), len(data))
	require.NoError(t, err)
	assert.Equal(t, len(buf)-1, n)
	assert.Equal(t, runs, got)
}

func TestParseTable_Corrupt(t *testing.T) {
	valid := AppendTable(nil, []Run{{Offset: 4, Symbol: 'A', Length: 20}})

	_, _, err := ParseTable(valid, 10)
	assert.True(t, core.IsCorrupt(err), "run longer than the sequence")

	_, _, err = ParseTable(valid[:2], 100)
	assert.True(t, core.IsCorrupt(err), "truncated entry")

	_, _, err = ParseTable([]byte{1, 0, 'A', 0}, 100)
	assert.True(t, core.IsCorrupt(err), "zero length run")

	_, _, err = ParseTable(nil, 100)
	assert.True(t, core.IsCorrupt(err))
}
