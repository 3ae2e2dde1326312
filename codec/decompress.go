package codec

import (
	"github.com/INLOpen/seqpack/bitstream"
	"github.com/INLOpen/seqpack/core"
)

func (s *Sequence) checkRange(from, length int) error {
	if from < 0 || length < 0 || from > s.count || length > s.count-from {
		return &core.RangeError{From: from, Length: length, Size: s.count}
	}
	return nil
}

// decodeInto writes symbols [from, from+length) into dst[:length] and returns
// the symbol offset decoding started at.
func (s *Sequence) decodeInto(dst []byte, from, length int) (int, error) {
	if length == 0 {
		return from, nil
	}
	switch s.tag {
	case TagFixed:
		return from, s.decodeFixed(dst, from, length)
	case TagHuffman, TagHuffmanRLE:
		return s.decodeHuffman(dst, from, length)
	default:
		return 0, corrupt("no symbols to decode")
	}
}

func (s *Sequence) decodeFixed(dst []byte, from, length int) error {
	width := s.codeSet.Width()
	limit := uint64(s.count) * uint64(width)
	r, err := bitstream.NewReader(s.stream, uint64(from)*uint64(width), limit)
	if err != nil {
		return corrupt("%v", err)
	}
	for i := 0; i < length; i++ {
		c, err := r.ReadBits(width)
		if err != nil {
			return corrupt("fixed stream truncated at symbol %d", from+i)
		}
		sym, ok := s.codeSet.Decode(c)
		if !ok {
			return corrupt("code %d outside set %s at symbol %d", c, s.codeSet.Name(), from+i)
		}
		dst[i] = sym
	}
	return nil
}

func (s *Sequence) decodeHuffman(dst []byte, from, length int) (int, error) {
	cp, found := s.index.Seek(from)
	if !found {
		return 0, corrupt("sequence has no checkpoints")
	}
	r, err := bitstream.NewReader(s.stream, cp.Bit, s.streamBits)
	if err != nil {
		return 0, corrupt("checkpoint at %d: %v", cp.Offset, err)
	}

	end := from + length
	pos := cp.Offset
	ri, qi := cp.Run, cp.Rare
	for pos < end {
		if ri < len(s.runs) && s.runs[ri].Offset <= pos {
			run := s.runs[ri]
			if pos < from {
				skip := min(run.End(), from)
				for qi < len(s.rare) && s.rare[qi].Offset < skip {
					qi++
				}
				pos = skip
			}
			stop := min(run.End(), end)
			for ; pos < stop; pos++ {
				sym := run.Symbol
				if qi < len(s.rare) && s.rare[qi].Offset == pos {
					sym = s.rare[qi].Symbol
					qi++
				}
				if pos >= from {
					dst[pos-from] = sym
				}
			}
			if pos >= run.End() {
				ri++
			}
			continue
		}
		sym, _, err := s.table.Decode(r)
		if err != nil {
			return 0, err
		}
		if qi < len(s.rare) && s.rare[qi].Offset == pos {
			sym = s.rare[qi].Symbol
			qi++
		}
		if pos >= from {
			dst[pos-from] = sym
		}
		pos++
	}
	return cp.Offset, nil
}
