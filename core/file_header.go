package core

import (
	"encoding/binary"
	"hash/crc32"
	"time"
)

// FileHeader is the fixed header at the start of every archive file. Besides
// the archive version it records the sequence format and checkpoint stride the
// stored entries were encoded with, so a reader built for another codec format
// refuses the file up front instead of failing entry by entry.
type FileHeader struct {
	Magic            uint32
	Version          uint8
	SequenceFormat   uint8  // version byte leading every stored sequence
	CheckpointStride uint16 // random-access stride of the stored sequences
	CompressorType   CompressionType
	CreatedAt        int64  // UnixNano timestamp
	Checksum         uint32 // CRC32 (IEEE) of the fields above
}

func (h *FileHeader) Size() int {
	return binary.Size(h)
}

// NewFileHeader creates a sealed header for the current formats, stamped with
// the current time.
func NewFileHeader(magic uint32, compressorType CompressionType) FileHeader {
	h := FileHeader{
		Magic:            magic,
		Version:          FormatVersion,
		SequenceFormat:   SequenceFormatVersion,
		CheckpointStride: CheckpointStride,
		CompressorType:   compressorType,
		CreatedAt:        time.Now().UnixNano(),
	}
	h.Seal()
	return h
}

// Seal recomputes the checksum after the fields were set.
func (h *FileHeader) Seal() { h.Checksum = h.sum() }

func (h *FileHeader) sum() uint32 {
	b := make([]byte, 0, 17)
	b = binary.LittleEndian.AppendUint32(b, h.Magic)
	b = append(b, h.Version, h.SequenceFormat)
	b = binary.LittleEndian.AppendUint16(b, h.CheckpointStride)
	b = append(b, byte(h.CompressorType))
	b = binary.LittleEndian.AppendUint64(b, uint64(h.CreatedAt))
	return crc32.ChecksumIEEE(b)
}

// Intact reports whether the checksum matches the other fields.
func (h *FileHeader) Intact() bool { return h.Checksum == h.sum() }

// Compatible reports whether entries written under h can be read by this build.
func (h *FileHeader) Compatible() bool {
	return h.Version == FormatVersion &&
		h.SequenceFormat == SequenceFormatVersion &&
		h.CheckpointStride == CheckpointStride
}

// Created returns the creation time.
func (h *FileHeader) Created() time.Time { return time.Unix(0, h.CreatedAt) }
