package core

import (
	"fmt"
	"strings"
)

// CompressionType identifies the block compression algorithm used for archive payloads.
// This will be stored on disk to know how to decompress.
type CompressionType byte

const (
	CompressionNone   CompressionType = 0
	CompressionSnappy CompressionType = 1
	CompressionLZ4    CompressionType = 2
	CompressionZSTD   CompressionType = 3
)

// Compressor is a general purpose block compressor applied to archive blocks.
// Decompress receives the raw size recorded by the caller, since not every
// block format stores it.
type Compressor interface {
	// Compress returns the compressed form of src.
	Compress(src []byte) ([]byte, error)
	// Decompress expands src, which must decode to exactly size bytes.
	Decompress(src []byte, size int) ([]byte, error)
	Type() CompressionType
}

// String returns the string representation of the CompressionType.
func (ct CompressionType) String() string {
	switch ct {
	case CompressionNone:
		return "none"
	case CompressionSnappy:
		return "snappy"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return "unknown"
	}
}

const (
	ChecksumSize = 4 // uint32 for CRC32 checksum
)

// ParseCompressionType maps a configuration keyword to a CompressionType.
func ParseCompressionType(s string) (CompressionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CompressionNone, nil
	case "snappy":
		return CompressionSnappy, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", s)
	}
}
