package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/rep"

	"github.com/dd0wney/cluso-docgraph/pkg/logging"
	"github.com/dd0wney/cluso-docgraph/pkg/metrics"
	"github.com/dd0wney/cluso-docgraph/pkg/protocol"
)

// DefaultWorkers is the number of requests a server handles concurrently
const DefaultWorkers = 4

// pollInterval bounds how long a worker blocks before checking for shutdown
const pollInterval = time.Second

// ServerOption configures a Server
type ServerOption func(*Server)

// WithWorkers sets how many requests are handled concurrently
func WithWorkers(n int) ServerOption {
	return func(s *Server) { s.workers = n }
}

// WithServerCompression enables snappy frames for responses
func WithServerCompression(on bool) ServerOption {
	return func(s *Server) { s.compress = on }
}

// WithServerLogger sets the server's logger
func WithServerLogger(l logging.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// WithServerMetrics sets the registry transfers are recorded in
func WithServerMetrics(r *metrics.Registry) ServerOption {
	return func(s *Server) { s.metrics = r }
}

// Server answers requests arriving on a mangos REP socket
type Server struct {
	handler  Handler
	workers  int
	compress bool
	logger   logging.Logger
	metrics  *metrics.Registry

	sock    mangos.Socket
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewServer creates a server that passes requests to h
func NewServer(h Handler, opts ...ServerOption) *Server {
	s := &Server{handler: h, workers: DefaultWorkers}
	for _, opt := range opts {
		opt(s)
	}
	if s.workers <= 0 {
		s.workers = DefaultWorkers
	}
	s.logger = logging.OrDefault(s.logger).With(logging.Component("transport-server"))
	if s.metrics == nil {
		s.metrics = metrics.DefaultRegistry()
	}
	return s
}

// Listen binds addr and starts the workers
func (s *Server) Listen(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server already running")
	}

	sock, err := rep.NewSocket()
	if err != nil {
		return fmt.Errorf("failed to create REP socket: %w", err)
	}
	if err := sock.Listen(addr); err != nil {
		sock.Close()
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}

	s.sock = sock
	s.stopCh = make(chan struct{})
	s.running = true

	for i := 0; i < s.workers; i++ {
		sctx, err := sock.OpenContext()
		if err != nil {
			s.stopLocked()
			return fmt.Errorf("failed to open socket context: %w", err)
		}
		s.wg.Add(1)
		go s.serve(sctx)
	}

	s.logger.Info("listening", logging.Addr(addr), logging.Int("workers", s.workers))
	return nil
}

func (s *Server) serve(sctx mangos.Context) {
	defer s.wg.Done()
	defer sctx.Close()

	if err := sctx.SetOption(mangos.OptionRecvDeadline, pollInterval); err != nil {
		s.logger.Error("failed to set receive deadline", logging.Error(err))
		return
	}

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		msg, err := sctx.Recv()
		if err != nil {
			if errors.Is(err, mangos.ErrRecvTimeout) {
				continue
			}
			if errors.Is(err, mangos.ErrClosed) {
				return
			}
			s.logger.Warn("receive failed", logging.Error(err))
			continue
		}
		s.metrics.RecordTransfer("rx", len(msg))

		reply := s.handle(msg)
		if err := sctx.Send(reply); err != nil {
			if errors.Is(err, mangos.ErrClosed) {
				return
			}
			s.logger.Warn("send failed", logging.Error(err))
			continue
		}
		s.metrics.RecordTransfer("tx", len(reply))
	}
}

// handle decodes one frame, runs it and encodes the reply. A frame that
// cannot be decoded is answered with an internal error.
func (s *Server) handle(msg []byte) []byte {
	var req protocol.Request
	var resp *protocol.Response
	if err := protocol.Decode(msg, &req); err != nil {
		s.logger.Warn("malformed request", logging.Error(err))
		resp = &protocol.Response{
			Status:  protocol.StatusInternalError,
			Message: fmt.Sprintf("malformed request: %v", err),
		}
	} else {
		resp = s.handler.Execute(context.Background(), &req)
	}

	reply, err := protocol.Encode(resp, s.compress)
	if err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
		reply, _ = protocol.Encode(&protocol.Response{
			Status:  protocol.StatusInternalError,
			Message: "failed to encode response",
		}, false)
	}
	return reply
}

// Close stops the workers and closes the socket
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *Server) stopLocked() error {
	if !s.running {
		return nil
	}
	s.running = false
	close(s.stopCh)
	err := s.sock.Close()
	s.wg.Wait()
	return err
}

// Listening reports whether the server is bound and serving
func (s *Server) Listening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
