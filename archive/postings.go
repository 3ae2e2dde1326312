package archive

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/RoaringBitmap/roaring"
)

// postings maps each symbol to the entries whose sequence contains it.
type postings [256]*roaring.Bitmap

func (p *postings) add(entry uint32, symbols []byte) {
	for _, s := range symbols {
		if p[s] == nil {
			p[s] = roaring.New()
		}
		p[s].Add(entry)
	}
}

func (p *postings) marshal() ([]byte, error) {
	var n uint64
	for _, bm := range p {
		if bm != nil {
			n++
		}
	}
	out := binary.AppendUvarint(nil, n)
	for s, bm := range p {
		if bm == nil {
			continue
		}
		bm.RunOptimize()
		data, err := bm.ToBytes()
		if err != nil {
			return nil, fmt.Errorf("serialize postings for %q: %w", byte(s), err)
		}
		out = append(out, byte(s))
		out = binary.AppendUvarint(out, uint64(len(data)))
		out = append(out, data...)
	}
	return out, nil
}

func parsePostings(data []byte, count int) (*postings, error) {
	d := &dirDecoder{data: data}
	n := d.int(256)
	p := &postings{}
	for i := 0; i < n && d.err == nil; i++ {
		sym := d.bytes(1)
		raw := d.bytes(d.int(uint64(len(d.data))))
		if d.err != nil {
			break
		}
		bm := roaring.New()
		if _, err := bm.ReadFrom(bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("postings for %q: %v: %w", sym[0], err, ErrCorrupted)
		}
		if !bm.IsEmpty() && int64(bm.Maximum()) >= int64(count) {
			return nil, fmt.Errorf("postings for %q reference entry %d of %d: %w", sym[0], bm.Maximum(), count, ErrCorrupted)
		}
		if p[sym[0]] != nil {
			return nil, fmt.Errorf("postings for %q repeated: %w", sym[0], ErrCorrupted)
		}
		p[sym[0]] = bm
	}
	if d.err != nil {
		return nil, d.err
	}
	return p, nil
}
