package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"golang.org/x/sync/errgroup"
)

// AppServer runs the API server and, when enabled, the debug server until its
// context is cancelled.
type AppServer struct {
	api     *HTTPServer
	metrics *MetricsServer
	apiLis  net.Listener
	logger  *slog.Logger
}

// NewAppServer wires the servers. lis, when not nil, is used instead of the
// API server's configured address.
func NewAppServer(api *HTTPServer, metrics *MetricsServer, lis net.Listener, logger *slog.Logger) *AppServer {
	return &AppServer{
		api:     api,
		metrics: metrics,
		apiLis:  lis,
		logger:  logger.With("component", "AppServer"),
	}
}

// Run blocks until ctx is cancelled or a server fails, then stops every server.
func (s *AppServer) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		go func() {
			<-ctx.Done()
			s.api.Stop()
		}()
		if s.apiLis != nil {
			return s.api.Serve(s.apiLis)
		}
		return s.api.Start()
	})
	if s.metrics != nil {
		g.Go(func() error {
			go func() {
				<-ctx.Done()
				s.metrics.Stop()
			}()
			return s.metrics.Start()
		})
	}

	s.logger.Info("Application server started.")
	if err := g.Wait(); err != nil {
		s.logger.Error("A server has failed, shutting down.", "error", err)
		return fmt.Errorf("server group failed: %w", err)
	}
	s.logger.Info("All servers have stopped gracefully.")
	return nil
}
