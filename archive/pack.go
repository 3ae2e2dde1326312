package archive

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/INLOpen/seqpack/codec"
	"github.com/INLOpen/seqpack/core"
	"github.com/INLOpen/seqpack/fasta"
)

// PackOptions configures Pack.
type PackOptions struct {
	Kind         core.SequenceKind
	TypeModifier core.TypeModifier
	// Workers is the number of concurrent compressors; <= 0 uses GOMAXPROCS.
	Workers int
	// Codec compresses records; nil uses a Codec with default options.
	Codec *codec.Codec
}

// PackResult reports what Pack wrote.
type PackResult struct {
	Entries     int
	Symbols     uint64
	StoredBytes uint64
}

type packed struct {
	rec fasta.Record
	seq *codec.Sequence
	err error
}

// Pack compresses every record of src into w. Records are compressed
// concurrently and added to w in input order. Pack does not call w.Finish.
func Pack(ctx context.Context, src *fasta.Reader, w *Writer, opts PackOptions) (PackResult, error) {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Codec == nil {
		opts.Codec = codec.New(codec.Options{})
	}

	type job struct {
		rec fasta.Record
		out chan packed
	}
	jobs := make(chan job, opts.Workers)
	// ordered holds one result slot per record in input order; its capacity
	// bounds how far compression may run ahead of the writer.
	ordered := make(chan chan packed, opts.Workers*2)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		defer close(ordered)
		return fasta.Each(ctx, src, func(rec fasta.Record) error {
			out := make(chan packed, 1)
			select {
			case ordered <- out:
			case <-ctx.Done():
				return ctx.Err()
			}
			select {
			case jobs <- job{rec: rec, out: out}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	})

	for i := 0; i < opts.Workers; i++ {
		g.Go(func() error {
			for j := range jobs {
				seq, err := opts.Codec.Compress(ctx, j.rec.Seq, opts.Kind, opts.TypeModifier)
				j.out <- packed{rec: j.rec, seq: seq, err: err}
			}
			return nil
		})
	}

	var res PackResult
	g.Go(func() error {
		for out := range ordered {
			var p packed
			select {
			case p = <-out:
			case <-ctx.Done():
				return ctx.Err()
			}
			if p.err != nil {
				return fmt.Errorf("record %q: %w", p.rec.ID, p.err)
			}
			if err := w.Add(ctx, p.rec.ID, p.rec.Description, p.seq); err != nil {
				return err
			}
			res.Entries++
			res.Symbols += uint64(p.seq.Len())
			res.StoredBytes += uint64(p.seq.OctetLength())
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return res, err
	}
	return res, nil
}
