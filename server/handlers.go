package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/INLOpen/seqpack/archive"
	"github.com/INLOpen/seqpack/codec"
	"github.com/INLOpen/seqpack/core"
	"github.com/INLOpen/seqpack/fasta"
)

type handlers struct {
	codec    *codec.Codec
	archives map[string]*archive.Reader
	kind     core.SequenceKind
	tm       core.TypeModifier
	maxBody  int64
	maxSyms  int64
	logger   *slog.Logger
}

// modifierRequest overrides the server's default sequence kind and modifier.
type modifierRequest struct {
	Kind          string `json:"kind,omitempty"`
	Alphabet      string `json:"alphabet,omitempty"`
	Strategy      string `json:"strategy,omitempty"`
	CaseSensitive *bool  `json:"case_sensitive,omitempty"`
}

type compressRequest struct {
	Sequence string `json:"sequence"`
	modifierRequest
}

// sequenceRequest carries a compressed sequence, base64 encoded in JSON.
type sequenceRequest struct {
	Compressed []byte `json:"compressed"`
	From       *int   `json:"from,omitempty"`
	Length     *int   `json:"length,omitempty"`
	Needle     string `json:"needle,omitempty"`
	modifierRequest
}

type compareRequest struct {
	A []byte `json:"a"`
	B []byte `json:"b"`
}

type sequenceResponse struct {
	Compressed   []byte  `json:"compressed"`
	Kind         string  `json:"kind"`
	TypeModifier string  `json:"type_modifier"`
	Tag          string  `json:"tag"`
	Length       int     `json:"length"`
	OctetLength  int     `json:"octet_length"`
	Ratio        float64 `json:"ratio"`
	Checkpoints  int     `json:"checkpoints"`
	Runs         int     `json:"runs"`
	Rare         int     `json:"rare"`
}

type infoResponse struct {
	sequenceResponse
	Alphabet string `json:"alphabet"`
	Hash     uint32 `json:"hash"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, archive.ErrNotFound):
		return http.StatusNotFound
	case core.IsAlphabetViolation(err), core.IsCorrupt(err), errors.Is(err, archive.ErrCorrupted):
		return http.StatusUnprocessableEntity
	case core.IsRangeError(err), core.IsUnsupportedModifier(err), errors.Is(err, core.ErrNotNucleotide):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (h *handlers) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, r, http.StatusRequestEntityTooLarge, err)
		} else {
			h.fail(w, r, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		}
		return false
	}
	return true
}

// allow answers 413 when a request would decode more than the symbol limit.
func (h *handlers) allow(w http.ResponseWriter, r *http.Request, symbols int) bool {
	if int64(symbols) > h.maxSyms {
		h.fail(w, r, http.StatusRequestEntityTooLarge,
			fmt.Errorf("%d symbols exceed the limit of %d per request", symbols, h.maxSyms))
		return false
	}
	return true
}

// resolve applies the request overrides on top of base.
func (m modifierRequest) resolve(kind core.SequenceKind, base core.TypeModifier) (core.SequenceKind, core.TypeModifier, error) {
	var err error
	tm := base
	if m.Kind != "" {
		if kind, err = core.ParseKind(m.Kind); err != nil {
			return 0, tm, err
		}
	}
	if m.Alphabet != "" {
		if tm.Alphabet, err = core.ParseAlphabet(m.Alphabet); err != nil {
			return 0, tm, err
		}
	}
	if m.Strategy != "" {
		if tm.Strategy, err = core.ParseStrategy(m.Strategy); err != nil {
			return 0, tm, err
		}
	}
	if m.CaseSensitive != nil {
		tm.CaseSensitive = *m.CaseSensitive
	}
	return kind, tm, nil
}

func describe(seq *codec.Sequence) sequenceResponse {
	return sequenceResponse{
		Compressed:   seq.Bytes(),
		Kind:         seq.Kind().String(),
		TypeModifier: seq.TypeModifier().String(),
		Tag:          seq.Tag().String(),
		Length:       seq.Len(),
		OctetLength:  seq.OctetLength(),
		Ratio:        seq.CompressionRatio(),
		Checkpoints:  seq.CheckpointCount(),
		Runs:         seq.RunCount(),
		Rare:         seq.RareCount(),
	}
}

func (h *handlers) compress(w http.ResponseWriter, r *http.Request) {
	var req compressRequest
	if !h.decode(w, r, &req) {
		return
	}
	kind, tm, err := req.resolve(h.kind, h.tm)
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, err)
		return
	}
	seq, err := h.codec.Compress(r.Context(), []byte(req.Sequence), kind, tm)
	if err != nil {
		h.fail(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, describe(seq))
}

// parse decodes the compressed sequence of a request, answering the request on failure.
func (h *handlers) parse(w http.ResponseWriter, r *http.Request, data []byte) (*codec.Sequence, bool) {
	seq, err := codec.Parse(data)
	if err != nil {
		h.fail(w, r, statusFor(err), err)
		return nil, false
	}
	return seq, true
}

func (h *handlers) decompress(w http.ResponseWriter, r *http.Request) {
	var req sequenceRequest
	if !h.decode(w, r, &req) {
		return
	}
	seq, ok := h.parse(w, r, req.Compressed)
	if !ok {
		return
	}
	from, length := 0, seq.Len()
	if req.From != nil {
		from = *req.From
		length = seq.Len() - from
	}
	if req.Length != nil {
		length = *req.Length
	}
	if !h.allow(w, r, length) {
		return
	}
	data, err := h.codec.Decompress(r.Context(), seq, from, length)
	if err != nil {
		h.fail(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"from": from, "length": length, "sequence": string(data)})
}

const (
	opReverse = iota
	opComplement
	opReverseComplement
)

func (h *handlers) transform(op int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sequenceRequest
		if !h.decode(w, r, &req) {
			return
		}
		seq, ok := h.parse(w, r, req.Compressed)
		if !ok || !h.allow(w, r, seq.Len()) {
			return
		}
		var out *codec.Sequence
		var err error
		switch op {
		case opReverse:
			out, err = h.codec.Reverse(r.Context(), seq)
		case opComplement:
			out, err = h.codec.Complement(r.Context(), seq)
		default:
			out, err = h.codec.ReverseComplement(r.Context(), seq)
		}
		if err != nil {
			h.fail(w, r, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, describe(out))
	}
}

func (h *handlers) cast(w http.ResponseWriter, r *http.Request) {
	var req sequenceRequest
	if !h.decode(w, r, &req) {
		return
	}
	seq, ok := h.parse(w, r, req.Compressed)
	if !ok || !h.allow(w, r, seq.Len()) {
		return
	}
	if req.Kind != "" {
		h.fail(w, r, http.StatusBadRequest, errors.New("cast cannot change the sequence kind"))
		return
	}
	_, tm, err := req.resolve(seq.Kind(), seq.TypeModifier())
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, err)
		return
	}
	out, err := h.codec.Cast(r.Context(), seq, tm)
	if err != nil {
		h.fail(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, describe(out))
}

func (h *handlers) info(w http.ResponseWriter, r *http.Request) {
	var req sequenceRequest
	if !h.decode(w, r, &req) {
		return
	}
	seq, ok := h.parse(w, r, req.Compressed)
	if !ok || !h.allow(w, r, seq.Len()) {
		return
	}
	used, err := seq.UsedAlphabet()
	if err != nil {
		h.fail(w, r, statusFor(err), err)
		return
	}
	sum, err := codec.Hash(seq)
	if err != nil {
		h.fail(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, infoResponse{sequenceResponse: describe(seq), Alphabet: string(used), Hash: sum})
}

func (h *handlers) strpos(w http.ResponseWriter, r *http.Request) {
	var req sequenceRequest
	if !h.decode(w, r, &req) {
		return
	}
	seq, ok := h.parse(w, r, req.Compressed)
	if !ok || !h.allow(w, r, seq.Len()) {
		return
	}
	pos, err := codec.Strpos(seq, []byte(req.Needle))
	if err != nil {
		h.fail(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"position": pos})
}

func (h *handlers) compare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if !h.decode(w, r, &req) {
		return
	}
	a, ok := h.parse(w, r, req.A)
	if !ok {
		return
	}
	b, ok := h.parse(w, r, req.B)
	if !ok || !h.allow(w, r, a.Len()+b.Len()) {
		return
	}
	cmp, err := codec.Compare(a, b)
	if err != nil {
		h.fail(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"compare": cmp, "equal": cmp == 0})
}

type entryResponse struct {
	ID           string  `json:"id"`
	Description  string  `json:"description,omitempty"`
	Kind         string  `json:"kind"`
	TypeModifier string  `json:"type_modifier"`
	Tag          string  `json:"tag"`
	Symbols      int     `json:"symbols"`
	StoredBytes  int     `json:"stored_bytes"`
	Ratio        float64 `json:"ratio"`
}

func (h *handlers) archive(w http.ResponseWriter, r *http.Request) (*archive.Reader, bool) {
	name := chi.URLParam(r, "archive")
	a, ok := h.archives[name]
	if !ok {
		h.fail(w, r, http.StatusNotFound, fmt.Errorf("archive %q: %w", name, archive.ErrNotFound))
	}
	return a, ok
}

func (h *handlers) listArchives(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.archives))
	for name := range h.archives {
		names = append(names, name)
	}
	sort.Strings(names)
	writeJSON(w, http.StatusOK, map[string][]string{"archives": names})
}

func (h *handlers) archiveStats(w http.ResponseWriter, r *http.Request) {
	a, ok := h.archive(w, r)
	if !ok {
		return
	}
	stats, err := a.Stats()
	if err != nil {
		h.fail(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *handlers) archiveEntries(w http.ResponseWriter, r *http.Request) {
	a, ok := h.archive(w, r)
	if !ok {
		return
	}
	infos := a.Entries()
	out := make([]entryResponse, len(infos))
	for i, e := range infos {
		out[i] = entryResponse{
			ID:           e.ID,
			Description:  e.Description,
			Kind:         e.Kind.String(),
			TypeModifier: e.TypeModifier.String(),
			Tag:          e.Tag.String(),
			Symbols:      e.Symbols,
			StoredBytes:  e.RawLength,
			Ratio:        e.CompressionRatio(),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("query parameter %s: %w", key, err)
	}
	return n, nil
}

// archiveEntry returns an entry's symbols as JSON, or as FASTA with ?format=fasta.
func (h *handlers) archiveEntry(w http.ResponseWriter, r *http.Request) {
	a, ok := h.archive(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	info, found := a.Lookup(id)
	if !found {
		h.fail(w, r, http.StatusNotFound, fmt.Errorf("%q: %w", id, archive.ErrNotFound))
		return
	}
	from, err := queryInt(r, "from", 0)
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, err)
		return
	}
	length, err := queryInt(r, "length", info.Symbols-from)
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, err)
		return
	}
	if !h.allow(w, r, length) {
		return
	}
	data, err := a.Substring(r.Context(), id, from, length)
	if err != nil {
		h.fail(w, r, statusFor(err), err)
		return
	}
	if r.URL.Query().Get("format") == "fasta" {
		w.Header().Set("Content-Type", "text/x-fasta")
		fw := fasta.NewWriter(w, 0)
		if err := fw.Write(fasta.Record{ID: id, Description: info.Description, Seq: data}); err == nil {
			fw.Flush()
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "from": from, "length": length, "sequence": string(data)})
}

func (h *handlers) archiveSymbols(w http.ResponseWriter, r *http.Request) {
	a, ok := h.archive(w, r)
	if !ok {
		return
	}
	syms := []byte(chi.URLParam(r, "symbols"))
	writeJSON(w, http.StatusOK, map[string][]string{"ids": a.EntriesWithAll(syms)})
}
