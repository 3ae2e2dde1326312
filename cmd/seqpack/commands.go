package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/INLOpen/seqpack/archive"
	"github.com/INLOpen/seqpack/codec"
	"github.com/INLOpen/seqpack/fasta"
	"github.com/INLOpen/seqpack/server"
)

func (e *env) codec() *codec.Codec {
	return codec.New(codec.Options{Logger: e.logger, Tracer: e.tracer})
}

func (e *env) openArchive(path string) (*archive.Reader, error) {
	return archive.Open(archive.ReaderOptions{
		Path:      path,
		Codec:     e.codec(),
		CacheSize: e.cfg.Archive.CacheSize,
		Logger:    e.logger,
		Tracer:    e.tracer,
	})
}

// createOutput opens path for writing; "-" writes to the command's stdout.
func (e *env) createOutput(path string) (io.Writer, func() error, error) {
	if path == "-" {
		return e.stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func packFlags(fs *flag.FlagSet) func(context.Context, *env) error {
	in := fs.String("in", "-", "FASTA input file, optionally gzip compressed; - reads stdin")
	out := fs.String("out", "", "Archive file to create (required)")
	compression := fs.String("compression", "", "Block compression: none, snappy, lz4 or zstd (overrides config)")
	workers := fs.Int("workers", -1, "Concurrent compressors; 0 uses all CPUs (overrides config)")
	kind := fs.String("kind", "", "Sequence kind: dna or aa (overrides config)")
	alpha := fs.String("alphabet", "", "Restricting alphabet: flc, iupac or ascii (overrides config)")

	return func(ctx context.Context, e *env) error {
		if *out == "" {
			return fmt.Errorf("pack: -out is required")
		}
		cc := e.cfg.Codec
		if *kind != "" {
			cc.Kind = *kind
		}
		if *alpha != "" {
			cc.Alphabet = *alpha
		}
		k, tm, err := cc.Modifier()
		if err != nil {
			return fmt.Errorf("pack: %w", err)
		}
		ac := e.cfg.Archive
		if *compression != "" {
			ac.Compression = *compression
		}
		if *workers >= 0 {
			ac.Workers = *workers
		}
		ct, err := ac.CompressionType()
		if err != nil {
			return fmt.Errorf("pack: %w", err)
		}

		src, closer, err := fasta.Open(*in)
		if err != nil {
			return fmt.Errorf("pack: %w", err)
		}
		defer closer.Close()

		w, err := archive.NewWriter(archive.WriterOptions{Path: *out, Compression: ct, Logger: e.logger, Tracer: e.tracer})
		if err != nil {
			return fmt.Errorf("pack: %w", err)
		}
		res, err := archive.Pack(ctx, src, w, archive.PackOptions{
			Kind:         k,
			TypeModifier: tm,
			Workers:      ac.Workers,
			Codec:        e.codec(),
		})
		if err != nil {
			w.Abort()
			return fmt.Errorf("pack: %w", err)
		}
		if err := w.Finish(ctx); err != nil {
			return fmt.Errorf("pack: %w", err)
		}
		e.logger.Info("Archive written", "path", *out, "entries", res.Entries, "symbols", res.Symbols, "stored_bytes", res.StoredBytes)
		fmt.Fprintf(e.stdout, "packed %d entries (%d symbols) into %s\n", res.Entries, res.Symbols, *out)
		return nil
	}
}

func unpackFlags(fs *flag.FlagSet) func(context.Context, *env) error {
	in := fs.String("in", "", "Archive file (required)")
	out := fs.String("out", "-", "FASTA output file; - writes stdout")
	width := fs.Int("width", 0, "Sequence line width (overrides config)")

	return func(ctx context.Context, e *env) error {
		if *in == "" {
			return fmt.Errorf("unpack: -in is required")
		}
		r, err := e.openArchive(*in)
		if err != nil {
			return fmt.Errorf("unpack: %w", err)
		}
		defer r.Close()

		dst, closeOut, err := e.createOutput(*out)
		if err != nil {
			return fmt.Errorf("unpack: %w", err)
		}
		lw := e.cfg.Archive.LineWidth
		if *width > 0 {
			lw = *width
		}
		fw := fasta.NewWriter(dst, lw)
		for _, info := range r.Entries() {
			if err := ctx.Err(); err != nil {
				closeOut()
				return err
			}
			data, err := r.Substring(ctx, info.ID, 0, info.Symbols)
			if err != nil {
				closeOut()
				return fmt.Errorf("unpack: %w", err)
			}
			if err := fw.Write(fasta.Record{ID: info.ID, Description: info.Description, Seq: data}); err != nil {
				closeOut()
				return fmt.Errorf("unpack: %w", err)
			}
		}
		if err := fw.Flush(); err != nil {
			closeOut()
			return fmt.Errorf("unpack: %w", err)
		}
		return closeOut()
	}
}

func getFlags(fs *flag.FlagSet) func(context.Context, *env) error {
	in := fs.String("in", "", "Archive file (required)")
	id := fs.String("id", "", "Entry id (required)")
	from := fs.Int("from", 0, "First symbol, 0-based")
	length := fs.Int("length", -1, "Number of symbols; -1 reads to the end")

	return func(ctx context.Context, e *env) error {
		if *in == "" || *id == "" {
			return fmt.Errorf("get: -in and -id are required")
		}
		r, err := e.openArchive(*in)
		if err != nil {
			return fmt.Errorf("get: %w", err)
		}
		defer r.Close()

		info, ok := r.Lookup(*id)
		if !ok {
			return fmt.Errorf("get: %q: %w", *id, archive.ErrNotFound)
		}
		n := *length
		if n < 0 {
			n = info.Symbols - *from
		}
		data, err := r.Substring(ctx, *id, *from, n)
		if err != nil {
			return fmt.Errorf("get: %w", err)
		}
		fw := fasta.NewWriter(e.stdout, e.cfg.Archive.LineWidth)
		if err := fw.Write(fasta.Record{ID: info.ID, Description: info.Description, Seq: data}); err != nil {
			return err
		}
		return fw.Flush()
	}
}

func statsFlags(fs *flag.FlagSet) func(context.Context, *env) error {
	in := fs.String("in", "", "Archive file (required)")
	asJSON := fs.Bool("json", false, "Print the summary as JSON")
	entries := fs.Bool("entries", false, "List every entry")

	return func(ctx context.Context, e *env) error {
		if *in == "" {
			return fmt.Errorf("stats: -in is required")
		}
		r, err := e.openArchive(*in)
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		defer r.Close()

		st, err := r.Stats()
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		if *asJSON {
			enc := json.NewEncoder(e.stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		}

		w := tabwriter.NewWriter(e.stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintf(w, "Archive:\t%s\n", *in)
		fmt.Fprintf(w, "Compression:\t%s\n", st.Compression)
		fmt.Fprintf(w, "Entries:\t%d\n", st.Entries)
		fmt.Fprintf(w, "Symbols:\t%d\n", st.Symbols)
		fmt.Fprintf(w, "Stored bytes:\t%d\n", st.StoredBytes)
		fmt.Fprintf(w, "File size:\t%d\n", st.FileSize)
		fmt.Fprintf(w, "Created:\t%s\n", st.Created.UTC().Format(time.RFC3339))
		fmt.Fprintf(w, "Ratio:\t%.2f overall, p50 %.2f, p90 %.2f, min %.2f, max %.2f\n",
			st.Ratio.Overall, st.Ratio.P50, st.Ratio.P90, st.Ratio.Min, st.Ratio.Max)
		fmt.Fprintf(w, "Layouts:\t%s\n", formatCounts(st.Tags))
		fmt.Fprintf(w, "Kinds:\t%s\n", formatCounts(st.Kinds))
		if *entries {
			fmt.Fprintln(w)
			fmt.Fprintln(w, "ID\tKIND\tLAYOUT\tSYMBOLS\tBYTES\tRATIO")
			fmt.Fprintln(w, "--\t----\t------\t-------\t-----\t-----")
			for _, info := range r.Entries() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.2f\n",
					info.ID, info.Kind, info.Tag, info.Symbols, info.RawLength, info.CompressionRatio())
			}
		}
		return w.Flush()
	}
}

func formatCounts(m map[string]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, m[k])
	}
	return strings.Join(parts, " ")
}

func verifyFlags(fs *flag.FlagSet) func(context.Context, *env) error {
	in := fs.String("in", "", "Archive file (required)")

	return func(ctx context.Context, e *env) error {
		if *in == "" {
			return fmt.Errorf("verify: -in is required")
		}
		r, err := e.openArchive(*in)
		if err != nil {
			return fmt.Errorf("verify: %w", err)
		}
		defer r.Close()

		errs := r.Verify(ctx)
		for _, err := range errs {
			fmt.Fprintf(e.stderr, "%s: %v\n", *in, err)
		}
		if len(errs) > 0 {
			return fmt.Errorf("verify: %d of %d entries failed", len(errs), r.Len())
		}
		fmt.Fprintf(e.stdout, "%s: %d entries ok\n", *in, r.Len())
		return nil
	}
}

// archiveName derives the route name of an archive from its file name.
func archiveName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// stringList collects a repeatable flag.
type stringList []string

func (l *stringList) String() string     { return strings.Join(*l, ",") }
func (l *stringList) Set(v string) error { *l = append(*l, v); return nil }

func serveFlags(fs *flag.FlagSet) func(context.Context, *env) error {
	var extra stringList
	fs.Var(&extra, "archive", "Archive file to serve; repeatable, added to the configured list")
	listen := fs.String("listen", "", "API listen address (overrides config)")

	return func(ctx context.Context, e *env) error {
		kind, tm, err := e.cfg.Codec.Modifier()
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		readers := make(map[string]*archive.Reader)
		defer func() {
			for _, r := range readers {
				r.Close()
			}
		}()
		for _, path := range append(append([]string(nil), e.cfg.Server.Archives...), extra...) {
			name := archiveName(path)
			if _, dup := readers[name]; dup {
				return fmt.Errorf("serve: archive name %q used twice", name)
			}
			r, err := e.openArchive(path)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			readers[name] = r
			e.logger.Info("Serving archive", "name", name, "path", path, "entries", r.Len())
		}

		scfg := e.cfg.Server
		if *listen != "" {
			scfg.ListenAddress = *listen
		}
		handler := server.NewRouter(server.APIOptions{
			Codec:        e.codec(),
			Archives:     readers,
			Kind:         kind,
			TypeModifier: tm,
			MaxBodyBytes: scfg.MaxBodyBytes,
			MaxSymbols:   scfg.MaxSymbols,
			Logger:       e.logger,
		})
		api := server.NewHTTPServer(&scfg, handler, e.logger)

		var metrics *server.MetricsServer
		if e.cfg.Debug.Enabled {
			if metrics, err = server.NewMetricsServer(&e.cfg.Debug, e.logger); err != nil {
				return fmt.Errorf("serve: %w", err)
			}
		}

		lis, err := net.Listen("tcp", scfg.ListenAddress)
		if err != nil {
			return fmt.Errorf("serve: failed to listen on %s: %w", scfg.ListenAddress, err)
		}
		fmt.Fprintf(e.stdout, "listening on %s\n", lis.Addr())

		err = server.NewAppServer(api, metrics, lis, e.logger).Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("serve: %w", err)
		}
		e.logger.Info("Server exited gracefully.")
		return nil
	}
}
