// Package compressors provides the block compressors an archive can apply to
// its entry blocks and directory.
package compressors

import (
	"errors"
	"fmt"

	"github.com/INLOpen/seqpack/core"
)

// ErrSizeMismatch is returned when a block does not expand to its recorded size.
var ErrSizeMismatch = errors.New("decompressed block size mismatch")

// ForType returns the compressor registered for ct.
func ForType(ct core.CompressionType) (core.Compressor, error) {
	switch ct {
	case core.CompressionNone:
		return NewNoCompressionCompressor(), nil
	case core.CompressionSnappy:
		return NewSnappyCompressor(), nil
	case core.CompressionLZ4:
		return NewLZ4Compressor(), nil
	case core.CompressionZSTD:
		return sharedZstd, nil
	default:
		return nil, fmt.Errorf("unsupported compression type: %d", ct)
	}
}

func checkSize(ct core.CompressionType, got, want int) error {
	if got != want {
		return fmt.Errorf("%s: got %d bytes, want %d: %w", ct, got, want, ErrSizeMismatch)
	}
	return nil
}
