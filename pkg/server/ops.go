// Package server hosts the executor's HTTP operations surface: Prometheus
// metrics and health probes, with graceful shutdown.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dd0wney/cluso-docgraph/pkg/health"
	"github.com/dd0wney/cluso-docgraph/pkg/logging"
	"github.com/dd0wney/cluso-docgraph/pkg/metrics"
)

// OpsServer serves /metrics, /health, /health/ready and /health/live
type OpsServer struct {
	server       *http.Server
	logger       logging.Logger
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

// NewOpsServer creates an unstarted server on addr
func NewOpsServer(addr string, reg *metrics.Registry, checker *health.Checker, logger logging.Logger) *OpsServer {
	if reg == nil {
		reg = metrics.DefaultRegistry()
	}
	if checker == nil {
		checker = health.NewChecker()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg.GetPrometheusRegistry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", checker.HTTPHandler())
	mux.HandleFunc("/health/ready", checker.ReadinessHandler())
	mux.HandleFunc("/health/live", checker.LivenessHandler())

	return &OpsServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
		logger:     logging.OrDefault(logger).With(logging.Component("ops-server")),
		shutdownCh: make(chan struct{}),
	}
}

// Handler returns the server's routes
func (s *OpsServer) Handler() http.Handler {
	return s.server.Handler
}

// Serve accepts connections on l until Shutdown
func (s *OpsServer) Serve(l net.Listener) error {
	s.logger.Info("ops server listening", logging.Addr(l.Addr().String()))
	if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Start binds the configured address and serves until Shutdown
func (s *OpsServer) Start() error {
	l, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Shutdown drains in-flight requests for at most timeout. Later calls are
// no-ops.
func (s *OpsServer) Shutdown(timeout time.Duration) error {
	var err error
	s.shutdownOnce.Do(func() {
		close(s.shutdownCh)

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		s.logger.Info("ops server shutting down", logging.Duration("timeout", timeout))
		if err = s.server.Shutdown(ctx); err != nil {
			s.logger.Error("ops server shutdown failed", logging.Error(err))
		}
	})
	return err
}

// IsShuttingDown reports whether Shutdown has been called
func (s *OpsServer) IsShuttingDown() bool {
	select {
	case <-s.shutdownCh:
		return true
	default:
		return false
	}
}
