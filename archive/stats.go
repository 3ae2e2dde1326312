package archive

import (
	"fmt"
	"time"

	"github.com/caio/go-tdigest/v4"
)

// Stats summarizes an archive.
type Stats struct {
	Entries     int            `json:"entries"`
	Symbols     uint64         `json:"symbols"`
	StoredBytes uint64         `json:"stored_bytes"`
	FileSize    int64          `json:"file_size"`
	Created     time.Time      `json:"created"`
	Compression string         `json:"compression"`
	Tags        map[string]int `json:"tags"`
	Kinds       map[string]int `json:"kinds"`
	// Ratio summarizes per-entry compression ratios of non-empty entries.
	Ratio RatioSummary `json:"ratio"`
}

// RatioSummary holds quantiles of the per-entry compression ratio.
type RatioSummary struct {
	Min     float64 `json:"min"`
	P50     float64 `json:"p50"`
	P90     float64 `json:"p90"`
	P99     float64 `json:"p99"`
	Max     float64 `json:"max"`
	Overall float64 `json:"overall"`
}

// Stats computes the archive summary from its directory.
func (r *Reader) Stats() (Stats, error) {
	s := Stats{
		Entries:     len(r.entries),
		FileSize:    r.size,
		Created:     r.header.Created(),
		Compression: r.header.CompressorType.String(),
		Tags:        make(map[string]int),
		Kinds:       make(map[string]int),
	}
	td, err := tdigest.New()
	if err != nil {
		return Stats{}, fmt.Errorf("tdigest.New failed: %w", err)
	}
	first := true
	for i := range r.entries {
		e := &r.entries[i]
		s.Symbols += uint64(e.Symbols)
		s.StoredBytes += uint64(e.RawLength)
		s.Tags[e.Tag.String()]++
		s.Kinds[e.Kind.String()]++
		if e.Symbols == 0 {
			continue
		}
		ratio := e.CompressionRatio()
		if err := td.AddWeighted(ratio, 1); err != nil {
			return Stats{}, fmt.Errorf("ratio of %q: %w", e.ID, err)
		}
		if first || ratio < s.Ratio.Min {
			s.Ratio.Min = ratio
		}
		if first || ratio > s.Ratio.Max {
			s.Ratio.Max = ratio
		}
		first = false
	}
	if td.Count() > 0 {
		s.Ratio.P50 = td.Quantile(0.5)
		s.Ratio.P90 = td.Quantile(0.9)
		s.Ratio.P99 = td.Quantile(0.99)
	}
	if s.StoredBytes > 0 {
		s.Ratio.Overall = float64(s.Symbols) / float64(s.StoredBytes)
	}
	return s, nil
}
