package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/INLOpen/seqpack/core"
)

func buildCheckpoints(n int) []Checkpoint {
	b := NewBuilder(256, n)
	for off := 0; off < n; off++ {
		if b.Due(off) {
			b.Add(Checkpoint{Offset: off, Bit: uint64(off) * 3, Run: off / 512, Rare: off / 300})
		}
	}
	return b.Index().Checkpoints()
}

func TestBuilder(t *testing.T) {
	cps := buildCheckpoints(1000)
	require.Len(t, cps, 4)
	assert.Equal(t, []int{0, 256, 512, 768}, []int{cps[0].Offset, cps[1].Offset, cps[2].Offset, cps[3].Offset})
	assert.Equal(t, 4, Count(1000, 256))
	assert.Equal(t, 4, Count(1024, 256))
	assert.Equal(t, 0, Count(0, 256))
}

func TestEncodeParse_RoundTrip(t *testing.T) {
	cps := buildCheckpoints(1000)
	layouts := []Layout{{}, {Runs: true}, {Rare: true}, {Runs: true, Rare: true}}
	for _, l := range layouts {
		buf := Append(nil, cps, l)
		require.Len(t, buf, EncodedSize(cps, l))

		idx, n, err := Parse(append(buf, 0x7F), l, Bounds{Count: 1000, Stride: 256, StreamBits: 3000, Runs: 10, Rare: 10})
		require.NoError(t, err)
		assert.Equal(t, len(buf), n)
		for i, cp := range idx.Checkpoints() {
			want := cps[i]
			if !l.Runs {
				want.Run = 0
			}
			if !l.Rare {
				want.Rare = 0
			}
			assert.Equal(t, want, cp)
		}
	}
}

func TestParse_Corrupt(t *testing.T) {
	cps := buildCheckpoints(1000)
	l := Layout{Runs: true, Rare: true}
	buf := Append(nil, cps, l)

	_, _, err := Parse(buf, l, Bounds{Count: 1000, Stride: 256, StreamBits: 100, Runs: 10, Rare: 10})
	assert.True(t, core.IsCorrupt(err), "bit offset beyond stream")

	_, _, err = Parse(buf, l, Bounds{Count: 1000, Stride: 256, StreamBits: 3000, Runs: 0, Rare: 10})
	assert.True(t, core.IsCorrupt(err), "run cursor beyond run table")

	_, _, err = Parse(buf[:3], l, Bounds{Count: 1000, Stride: 256, StreamBits: 3000, Runs: 10, Rare: 10})
	assert.True(t, core.IsCorrupt(err), "truncated")

	_, _, err = Parse(buf, l, Bounds{Count: 1000, Stride: 0})
	assert.True(t, core.IsCorrupt(err))
}

func TestSeek(t *testing.T) {
	idx := (&Builder{stride: 256, entries: buildCheckpoints(1000)}).Index()
	testCases := []struct {
		from int
		want int
	}{
		{0, 0}, {255, 0}, {256, 256}, {500, 256}, {512, 512}, {999, 768},
	}
	for _, tc := range testCases {
		cp, found := idx.Seek(tc.from)
		require.True(t, found)
		assert.Equal(t, tc.want, cp.Offset, "seek %d", tc.from)
	}

	_, found := (&Builder{stride: 256}).Index().Seek(0)
	assert.False(t, found)
}
