package compressors

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/INLOpen/seqpack/core"
)

// ZstdCompressor compresses whole blocks with zstd. Encoders and decoders are
// pooled; the returned compressor is safe for concurrent use.
type ZstdCompressor struct {
	encoderPool sync.Pool
	decoderPool sync.Pool
}

var _ core.Compressor = (*ZstdCompressor)(nil)

var sharedZstd = NewZstdCompressor()

// maxDecoderMemory bounds what a single corrupt block can make a decoder allocate.
const maxDecoderMemory = 256 << 20

func NewZstdCompressor() *ZstdCompressor {
	return &ZstdCompressor{
		encoderPool: sync.Pool{
			New: func() any {
				enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
				if err != nil {
					return err
				}
				return enc
			},
		},
		decoderPool: sync.Pool{
			New: func() any {
				dec, err := zstd.NewReader(nil,
					zstd.WithDecoderConcurrency(1),
					zstd.WithDecoderMaxMemory(maxDecoderMemory))
				if err != nil {
					return err
				}
				return dec
			},
		},
	}
}

func (c *ZstdCompressor) Compress(src []byte) ([]byte, error) {
	v := c.encoderPool.Get()
	enc, ok := v.(*zstd.Encoder)
	if !ok {
		return nil, fmt.Errorf("zstd encoder: %v", v)
	}
	defer c.encoderPool.Put(enc)
	return enc.EncodeAll(src, nil), nil
}

func (c *ZstdCompressor) Decompress(src []byte, size int) ([]byte, error) {
	if size == 0 {
		return checkEmpty(c.Type(), src)
	}
	if size < 0 || size > maxDecoderMemory {
		return nil, fmt.Errorf("%s: block of %d bytes over the decoder limit: %w", c.Type(), size, ErrSizeMismatch)
	}
	var hdr zstd.Header
	if err := hdr.Decode(src); err != nil {
		return nil, fmt.Errorf("zstd frame header: %w", err)
	}
	if hdr.HasFCS && hdr.FrameContentSize != uint64(size) {
		return nil, fmt.Errorf("%s: frame holds %d bytes, want %d: %w", c.Type(), hdr.FrameContentSize, size, ErrSizeMismatch)
	}
	v := c.decoderPool.Get()
	dec, ok := v.(*zstd.Decoder)
	if !ok {
		return nil, fmt.Errorf("zstd decoder: %v", v)
	}
	defer c.decoderPool.Put(dec)
	out, err := dec.DecodeAll(src, make([]byte, 0, size))
	if err != nil {
		return nil, fmt.Errorf("zstd decompress error: %w", err)
	}
	if err := checkSize(c.Type(), len(out), size); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ZstdCompressor) Type() core.CompressionType {
	return core.CompressionZSTD
}
