package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"sync"
	"time"

	"github.com/arl/statsviz"

	"github.com/INLOpen/seqpack/config"
)

// MetricsServer serves pprof and the statsviz runtime monitor.
type MetricsServer struct {
	server   *http.Server
	logger   *slog.Logger
	stopOnce sync.Once
}

// NewMetricsServer creates the debug server described by cfg.
func NewMetricsServer(cfg *config.DebugConfig, logger *slog.Logger) (*MetricsServer, error) {
	mux := http.NewServeMux()
	logger = logger.With("component", "MetricsServer")

	if cfg.PProfEnabled {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
		logger.Info("pprof profiling endpoints enabled on /debug/pprof")
	}
	if cfg.MonitorUIEnabled {
		if err := statsviz.Register(mux,
			statsviz.Root("/debug/statsviz"),
			statsviz.SendFrequency(250*time.Millisecond),
		); err != nil {
			return nil, fmt.Errorf("failed to register statsviz: %w", err)
		}
		logger.Info("Runtime monitor available at /debug/statsviz")
	}

	addr := cfg.ListenAddress
	if addr == "" {
		addr = "127.0.0.1:6060"
	}
	return &MetricsServer{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger,
	}, nil
}

// Handler returns the debug mux.
func (s *MetricsServer) Handler() http.Handler { return s.server.Handler }

// Start starts the Metrics server. It's a blocking call.
func (s *MetricsServer) Start() error {
	s.logger.Info("Debug server listening", "address", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error("Debug server failed", "error", err)
		return fmt.Errorf("failed to start debug server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the Metrics server.
func (s *MetricsServer) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping debug server...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			s.logger.Error("Debug server shutdown failed", "error", err)
		}
	})
}
