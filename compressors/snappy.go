package compressors

import (
	"fmt"

	"github.com/golang/snappy"

	"github.com/INLOpen/seqpack/core"
)

// SnappyCompressor uses the snappy block format.
type SnappyCompressor struct{}

var _ core.Compressor = (*SnappyCompressor)(nil)

func NewSnappyCompressor() *SnappyCompressor {
	return &SnappyCompressor{}
}

func (c *SnappyCompressor) Compress(src []byte) ([]byte, error) {
	return snappy.Encode(nil, src), nil
}

func (c *SnappyCompressor) Decompress(src []byte, size int) ([]byte, error) {
	n, err := snappy.DecodedLen(src)
	if err != nil {
		return nil, fmt.Errorf("snappy decompress error: %w", err)
	}
	if err := checkSize(c.Type(), n, size); err != nil {
		return nil, err
	}
	out, err := snappy.Decode(make([]byte, size), src)
	if err != nil {
		return nil, fmt.Errorf("snappy decompress error: %w", err)
	}
	return out, nil
}

func (c *SnappyCompressor) Type() core.CompressionType {
	return core.CompressionSnappy
}
