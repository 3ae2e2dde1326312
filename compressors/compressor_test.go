package compressors

import (
	"bytes"
	"math/rand"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/INLOpen/seqpack/core"
)

var allTypes = []core.CompressionType{
	core.CompressionNone,
	core.CompressionSnappy,
	core.CompressionLZ4,
	core.CompressionZSTD,
}

func testBlocks() map[string][]byte {
	rng := rand.New(rand.NewSource(11))
	random := make([]byte, 4096)
	rng.Read(random)
	return map[string][]byte{
		"empty":      {},
		"one byte":   {'A'},
		"tiny":       []byte("ACGT"),
		"repetitive": bytes.Repeat([]byte("ACGTTGCA"), 2048),
		"random":     random,
	}
}

func TestForType(t *testing.T) {
	for _, ct := range allTypes {
		c, err := ForType(ct)
		require.NoError(t, err)
		assert.Equal(t, ct, c.Type())
	}
	_, err := ForType(core.CompressionType(42))
	assert.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	for _, ct := range allTypes {
		c, err := ForType(ct)
		require.NoError(t, err)
		for name, block := range testBlocks() {
			t.Run(ct.String()+"/"+name, func(t *testing.T) {
				packed, err := c.Compress(block)
				require.NoError(t, err)
				got, err := c.Decompress(packed, len(block))
				require.NoError(t, err)
				assert.Equal(t, block, got)
			})
		}
	}
}

func TestCompress_Shrinks(t *testing.T) {
	block := bytes.Repeat([]byte("ACGTTGCA"), 2048)
	for _, ct := range allTypes[1:] {
		c, _ := ForType(ct)
		packed, err := c.Compress(block)
		require.NoError(t, err)
		assert.Less(t, len(packed), len(block)/4, ct.String())
	}
}

func TestDecompress_SizeMismatch(t *testing.T) {
	block := []byte("GATTACA GATTACA GATTACA")
	for _, ct := range allTypes {
		c, _ := ForType(ct)
		packed, err := c.Compress(block)
		require.NoError(t, err)
		_, err = c.Decompress(packed, len(block)+3)
		assert.Error(t, err, ct.String())
	}
}

func TestNoCompression_Copies(t *testing.T) {
	c := NewNoCompressionCompressor()
	src := []byte("ACGT")
	packed, err := c.Compress(src)
	require.NoError(t, err)
	src[0] = 'T'
	assert.Equal(t, []byte("ACGT"), packed)
}

func TestZstd_Concurrent(t *testing.T) {
	c := NewZstdCompressor()
	block := bytes.Repeat([]byte("NNNNACGT"), 512)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				packed, err := c.Compress(block)
				if !assert.NoError(t, err) {
					return
				}
				got, err := c.Decompress(packed, len(block))
				if !assert.NoError(t, err) {
					return
				}
				assert.Equal(t, block, got)
			}
		}()
	}
	wg.Wait()
}

func TestZstd_Corrupt(t *testing.T) {
	c := NewZstdCompressor()
	_, err := c.Decompress([]byte{1, 2, 3, 4, 5}, 10)
	assert.Error(t, err)
}

// A damaged directory can ask for any size; none of the compressors may
// allocate it before finding that the block cannot expand that far.
func TestDecompress_OversizedRequest(t *testing.T) {
	block := bytes.Repeat([]byte("ACGTTGCA"), 64)
	for _, size := range []int{1 << 30, 200 << 20} {
		for _, ct := range allTypes {
			c, _ := ForType(ct)
			packed, err := c.Compress(block)
			require.NoError(t, err)

			var before, after runtime.MemStats
			runtime.ReadMemStats(&before)
			_, err = c.Decompress(packed, size)
			runtime.ReadMemStats(&after)
			assert.ErrorIs(t, err, ErrSizeMismatch, ct.String())
			assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(1<<20), ct.String())
		}
	}
}
