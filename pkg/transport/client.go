package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/req"

	// Register all transports
	_ "go.nanomsg.org/mangos/v3/transport/all"

	"github.com/dd0wney/cluso-docgraph/pkg/logging"
	"github.com/dd0wney/cluso-docgraph/pkg/metrics"
	"github.com/dd0wney/cluso-docgraph/pkg/protocol"
)

// DefaultTimeout bounds a round trip when neither the client nor the
// caller's context sets a deadline
const DefaultTimeout = 30 * time.Second

// ErrClientClosed is returned by RoundTrip after Close
var ErrClientClosed = errors.New("transport client closed")

// ClientOption configures a Client
type ClientOption func(*Client)

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// WithCompression enables snappy frames for requests
func WithCompression(on bool) ClientOption {
	return func(c *Client) { c.compress = on }
}

// WithClientLogger sets the client's logger
func WithClientLogger(l logging.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// WithClientMetrics sets the registry transfers are recorded in
func WithClientMetrics(r *metrics.Registry) ClientOption {
	return func(c *Client) { c.metrics = r }
}

// Client sends requests over a mangos REQ socket. Each round trip uses its
// own socket context, so concurrent callers do not serialize on the socket.
type Client struct {
	sock     mangos.Socket
	addr     string
	timeout  time.Duration
	compress bool
	logger   logging.Logger
	metrics  *metrics.Registry

	mu     sync.RWMutex
	closed bool
}

// Dial connects a client to a server listening at addr
func Dial(addr string, opts ...ClientOption) (*Client, error) {
	c := &Client{addr: addr, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrDefault(c.logger).With(logging.Component("transport-client"), logging.Addr(addr))
	if c.metrics == nil {
		c.metrics = metrics.DefaultRegistry()
	}

	sock, err := req.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("failed to create REQ socket: %w", err)
	}
	if err := sock.Dial(addr); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	c.sock = sock
	return c, nil
}

// RoundTrip implements Transport
func (c *Client) RoundTrip(ctx context.Context, request *protocol.Request) (*protocol.Response, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClientClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	frame, err := protocol.Encode(request, c.compress)
	if err != nil {
		return nil, err
	}

	sctx, err := c.sock.OpenContext()
	if err != nil {
		return nil, fmt.Errorf("failed to open socket context: %w", err)
	}
	defer sctx.Close()

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}
	if err := sctx.SetOption(mangos.OptionSendDeadline, timeout); err != nil {
		return nil, fmt.Errorf("failed to set send deadline: %w", err)
	}
	if err := sctx.SetOption(mangos.OptionRecvDeadline, timeout); err != nil {
		return nil, fmt.Errorf("failed to set receive deadline: %w", err)
	}

	if err := sctx.Send(frame); err != nil {
		c.metrics.RecordRoundTrip("send_error")
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	c.metrics.RecordTransfer("tx", len(frame))

	reply, err := sctx.Recv()
	if err != nil {
		c.metrics.RecordRoundTrip("recv_error")
		if errors.Is(err, mangos.ErrRecvTimeout) {
			return nil, fmt.Errorf("no response from %s within %v: %w", c.addr, timeout, context.DeadlineExceeded)
		}
		return nil, fmt.Errorf("failed to receive response: %w", err)
	}
	c.metrics.RecordTransfer("rx", len(reply))

	var resp protocol.Response
	if err := protocol.Decode(reply, &resp); err != nil {
		c.metrics.RecordRoundTrip("decode_error")
		return nil, err
	}
	c.metrics.RecordRoundTrip("ok")
	return &resp, nil
}

// Close closes the socket. In-flight round trips fail.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.sock.Close()
}
