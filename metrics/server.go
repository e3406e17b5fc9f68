package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the engine's run, step, conflict, and work-item counters
// over HTTP for deployments without an existing scrape endpoint. The
// schema-migrate command starts one when -metrics-addr is set; applications
// that already serve a Prometheus registry should mount promhttp.Handler on
// their own mux instead of running a second listener.
type Server struct {
	server  *http.Server
	errChan chan error
}

// NewServer creates a server answering GET /metrics on addr.
// Example address: ":9090" or "localhost:9090"
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		errChan: make(chan error, 1),
	}
}

// Addr returns the listen address the server was configured with.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start begins serving in the background and returns immediately.
// Startup failures such as an occupied port surface through Err.
// Use Shutdown to stop the server.
func (s *Server) Start() {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.errChan <- err
		}
	}()
}

// Err reports a failure from the serving goroutine without blocking.
// It returns nil while the server is healthy.
func (s *Server) Err() error {
	select {
	case err := <-s.errChan:
		return err
	default:
		return nil
	}
}

// Shutdown stops the server, letting in-flight scrapes finish until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
