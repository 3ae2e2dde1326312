package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/INLOpen/seqpack/archive"
	"github.com/INLOpen/seqpack/codec"
	"github.com/INLOpen/seqpack/config"
	"github.com/INLOpen/seqpack/core"
)

// HTTPServer serves the JSON API.
type HTTPServer struct {
	server          *http.Server
	logger          *slog.Logger
	shutdownTimeout time.Duration
	stopOnce        sync.Once
}

// APIOptions carries what the API handlers need.
type APIOptions struct {
	Codec *codec.Codec
	// Archives are served under /api/v1/archives/{name}.
	Archives map[string]*archive.Reader
	// Kind and TypeModifier apply to compress requests that name neither.
	Kind         core.SequenceKind
	TypeModifier core.TypeModifier
	MaxBodyBytes int64
	// MaxSymbols caps the symbols one request may decompress; zero uses
	// MaxBodyBytes.
	MaxSymbols int64
	Logger     *slog.Logger
}

// NewRouter builds the API routes.
func NewRouter(opts APIOptions) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Codec == nil {
		opts.Codec = codec.New(codec.Options{Logger: opts.Logger})
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 64 << 20
	}
	if opts.MaxSymbols <= 0 {
		opts.MaxSymbols = opts.MaxBodyBytes
	}
	h := &handlers{
		codec:    opts.Codec,
		archives: opts.Archives,
		kind:     opts.Kind,
		tm:       opts.TypeModifier,
		maxBody:  opts.MaxBodyBytes,
		maxSyms:  opts.MaxSymbols,
		logger:   opts.Logger,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(opts.Logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/sequence", func(r chi.Router) {
			r.Post("/compress", h.compress)
			r.Post("/decompress", h.decompress)
			r.Post("/reverse", h.transform(opReverse))
			r.Post("/complement", h.transform(opComplement))
			r.Post("/reverse-complement", h.transform(opReverseComplement))
			r.Post("/cast", h.cast)
			r.Post("/info", h.info)
			r.Post("/strpos", h.strpos)
			r.Post("/compare", h.compare)
		})
		r.Route("/archives", func(r chi.Router) {
			r.Get("/", h.listArchives)
			r.Route("/{archive}", func(r chi.Router) {
				r.Get("/stats", h.archiveStats)
				r.Get("/entries", h.archiveEntries)
				r.Get("/entries/{id}", h.archiveEntry)
				r.Get("/symbols/{symbols}", h.archiveSymbols)
			})
		})
	})
	return r
}

// requestLogger logs one line per request at debug level.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", chimiddleware.GetReqID(r.Context()))
		})
	}
}

// NewHTTPServer creates the API server from the server section of the configuration.
func NewHTTPServer(cfg *config.ServerConfig, handler http.Handler, logger *slog.Logger) *HTTPServer {
	logger = logger.With("component", "HTTPServer")
	addr := cfg.ListenAddress
	if addr == "" {
		addr = ":8088"
	}
	return &HTTPServer{
		server: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  config.ParseDuration(cfg.ReadTimeout, 30*time.Second, logger),
			WriteTimeout: config.ParseDuration(cfg.WriteTimeout, 60*time.Second, logger),
		},
		logger:          logger,
		shutdownTimeout: config.ParseDuration(cfg.ShutdownTimeout, 10*time.Second, logger),
	}
}

// Start serves on the configured address. It blocks until Stop.
func (s *HTTPServer) Start() error {
	lis, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	return s.Serve(lis)
}

// Serve serves on lis. It blocks until Stop.
func (s *HTTPServer) Serve(lis net.Listener) error {
	s.logger.Info("API server listening", "address", lis.Addr().String())
	if err := s.server.Serve(lis); err != nil && err != http.ErrServerClosed {
		s.logger.Error("API server failed", "error", err)
		return fmt.Errorf("failed to serve API: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server, waiting for in-flight requests.
// A server stopped before Serve never starts serving.
func (s *HTTPServer) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping API server...")
		ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			s.logger.Error("API server shutdown failed", "error", err)
		} else {
			s.logger.Info("API server stopped gracefully.")
		}
	})
}
