package compressors

import (
	"bytes"

	"github.com/INLOpen/seqpack/core"
)

// NoCompressionCompressor stores blocks as they are.
type NoCompressionCompressor struct{}

var _ core.Compressor = (*NoCompressionCompressor)(nil)

func NewNoCompressionCompressor() *NoCompressionCompressor {
	return &NoCompressionCompressor{}
}

func (c *NoCompressionCompressor) Compress(src []byte) ([]byte, error) {
	return bytes.Clone(src), nil
}

func (c *NoCompressionCompressor) Decompress(src []byte, size int) ([]byte, error) {
	if err := checkSize(c.Type(), len(src), size); err != nil {
		return nil, err
	}
	return bytes.Clone(src), nil
}

func (c *NoCompressionCompressor) Type() core.CompressionType {
	return core.CompressionNone
}
