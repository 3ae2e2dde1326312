package codec

import (
	"github.com/INLOpen/seqpack/codes"
	"github.com/INLOpen/seqpack/core"
)

// Tag identifies the layout of a compressed sequence.
type Tag uint8

const (
	// TagEmpty marks a sequence without symbols; nothing follows the header.
	TagEmpty Tag = 0
	// TagFixed marks a sequence stored with a built-in fixed-width code set.
	TagFixed Tag = 1
	// TagHuffman marks a canonical Huffman stream, optionally with a rare-symbol table.
	TagHuffman Tag = 2
	// TagHuffmanRLE is TagHuffman with a run table.
	TagHuffmanRLE Tag = 3
)

func (t Tag) String() string {
	switch t {
	case TagEmpty:
		return "empty"
	case TagFixed:
		return "fixed"
	case TagHuffman:
		return "huffman"
	case TagHuffmanRLE:
		return "huffman-rle"
	default:
		return "unknown"
	}
}

func (t Tag) valid() bool { return t <= TagHuffmanRLE }

// Choice is the outcome of Select.
type Choice struct {
	Tag     Tag
	CodeSet codes.ID // for TagFixed
	TryRuns bool     // consider run-length extraction
	TryRare bool     // consider rare-symbol extraction
}

// Select picks the encoding of a sequence from its kind, modifier and length.
// It depends on nothing else, so equal inputs always select the same layout.
func Select(kind core.SequenceKind, tm core.TypeModifier, length int) Choice {
	if length == 0 {
		return Choice{Tag: TagEmpty}
	}
	restricted := tm.Alphabet != core.AlphabetASCII
	switch kind {
	case core.KindAminoAcid:
		if length < core.FixedCodeMaxLength && tm.Alphabet == core.AlphabetIUPAC {
			return Choice{Tag: TagFixed, CodeSet: fixedCodeSet(kind, tm)}
		}
		return Choice{Tag: TagHuffman, TryRare: true}
	default:
		if tm.Alphabet == core.AlphabetFourLetter ||
			(tm.Strategy == core.StrategyShort && restricted) ||
			(length < core.FixedCodeMaxLength && restricted) {
			return Choice{Tag: TagFixed, CodeSet: fixedCodeSet(kind, tm)}
		}
		return Choice{Tag: TagHuffman, TryRuns: tm.Strategy == core.StrategyReference, TryRare: true}
	}
}

func fixedCodeSet(kind core.SequenceKind, tm core.TypeModifier) codes.ID {
	var id codes.ID
	switch {
	case kind == core.KindAminoAcid:
		id = codes.AAIUPAC
	case tm.Alphabet == core.AlphabetFourLetter:
		id = codes.DNAFourLetter
	default:
		id = codes.DNAIUPAC
	}
	if tm.CaseSensitive {
		// every case-sensitive set directly follows its case-insensitive one
		id++
	}
	return id
}
