package compressors

import (
	"fmt"

	"github.com/pierrec/lz4/v4"

	"github.com/INLOpen/seqpack/core"
)

// LZ4Compressor uses the LZ4 block format. Blocks do not record their
// decompressed size; the archive directory does.
type LZ4Compressor struct{}

var _ core.Compressor = (*LZ4Compressor)(nil)

const maxLZ4Expansion = 255

func NewLZ4Compressor() *LZ4Compressor {
	return &LZ4Compressor{}
}

func (c *LZ4Compressor) Compress(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return []byte{}, nil
	}
	dst := make([]byte, lz4.CompressBlockBound(len(src)))
	n, err := lz4.CompressBlock(src, dst, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 block compress error: %w", err)
	}
	if n == 0 {
		// incompressible input: lz4 still needs a literal-only block
		return compressLiterals(src), nil
	}
	return dst[:n], nil
}

// compressLiterals writes src as a single literal sequence.
func compressLiterals(src []byte) []byte {
	n := len(src)
	out := make([]byte, 0, n+n/255+2)
	if n < 15 {
		out = append(out, byte(n<<4))
	} else {
		out = append(out, 0xF0)
		rest := n - 15
		for ; rest >= 255; rest -= 255 {
			out = append(out, 255)
		}
		out = append(out, byte(rest))
	}
	return append(out, src...)
}

func (c *LZ4Compressor) Decompress(src []byte, size int) ([]byte, error) {
	if size == 0 {
		return checkEmpty(c.Type(), src)
	}
	// a block byte expands to at most maxLZ4Expansion bytes
	if size < 0 || uint64(size) > maxLZ4Expansion*uint64(len(src)) {
		return nil, fmt.Errorf("%s: %d bytes cannot expand to %d: %w", c.Type(), len(src), size, ErrSizeMismatch)
	}
	dst := make([]byte, size)
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress error: %w", err)
	}
	if err := checkSize(c.Type(), n, size); err != nil {
		return nil, err
	}
	return dst, nil
}

func (c *LZ4Compressor) Type() core.CompressionType {
	return core.CompressionLZ4
}

func checkEmpty(ct core.CompressionType, src []byte) ([]byte, error) {
	if len(src) != 0 {
		return nil, fmt.Errorf("%s: %d bytes for an empty block: %w", ct, len(src), ErrSizeMismatch)
	}
	return []byte{}, nil
}
