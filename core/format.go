package core

import (
	"fmt"
)

// This file centralizes constants related to the compressed sequence format,
// the archive file format and their magic numbers.

// --- Magic Numbers ---
const (
	// ArchiveMagicNumber identifies a sequence archive file.
	ArchiveMagicNumber uint32 = 0x53514B50 // "SQKP"
)

// --- Magic Strings ---
const (
	// ArchiveMagicString is a unique identifier placed at the end of an archive file.
	ArchiveMagicString    = "SEQPACK-ARCHIVE-V1"
	ArchiveMagicStringLen = len(ArchiveMagicString)
)

// --- Protocol & Format Versions ---
const (
	// FormatVersion is the current version of the archive file format.
	FormatVersion uint8 = 1
	// SequenceFormatVersion is the version byte leading every compressed sequence.
	// CheckpointStride, FixedCodeMaxLength and the side-table thresholds are part of it.
	SequenceFormatVersion uint8 = 1
)

// --- Codec constants ---
const (
	// CheckpointStride is the number of symbols between two random-access checkpoints.
	CheckpointStride = 256
	// FixedCodeMaxLength is the length below which sequences with a restricted
	// alphabet are always stored with a fixed code.
	FixedCodeMaxLength = 128
)

// --- File Names ---
const (
	// ArchiveFileSuffix is the conventional suffix of archive files.
	ArchiveFileSuffix = ".sqa"
)

func FormatTempFilename(prefix, postfix string) string {
	return fmt.Sprintf("%s.%s", prefix, postfix)
}

// UvarintLen returns the number of bytes binary.AppendUvarint writes for v.
func UvarintLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}
