// Package transport carries bulk requests from a client to an executor,
// either in-process or over a mangos REQ/REP socket.
package transport

import (
	"context"
	"fmt"

	"github.com/dd0wney/cluso-docgraph/pkg/protocol"
)

// Transport delivers one request and returns the executor's response. A
// non-nil error means the request may not have reached the executor.
type Transport interface {
	RoundTrip(ctx context.Context, req *protocol.Request) (*protocol.Response, error)
}

// Handler executes a request. *executor.Executor implements it.
type Handler interface {
	Execute(ctx context.Context, req *protocol.Request) *protocol.Response
}

// Func adapts a function to Transport
type Func func(ctx context.Context, req *protocol.Request) (*protocol.Response, error)

// RoundTrip calls f
func (f Func) RoundTrip(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	return f(ctx, req)
}

// Local calls a Handler in the same process. Requests and responses still
// pass through the wire codec, so callers observe what a remote client would.
type Local struct {
	Handler  Handler
	Compress bool
}

// NewLocal returns a Local transport over h
func NewLocal(h Handler) *Local {
	return &Local{Handler: h}
}

// RoundTrip implements Transport
func (l *Local) RoundTrip(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	frame, err := protocol.Encode(req, l.Compress)
	if err != nil {
		return nil, err
	}
	var wireReq protocol.Request
	if err := protocol.Decode(frame, &wireReq); err != nil {
		return nil, err
	}

	resp := l.Handler.Execute(ctx, &wireReq)
	if resp == nil {
		return nil, fmt.Errorf("handler returned no response")
	}

	frame, err = protocol.Encode(resp, l.Compress)
	if err != nil {
		return nil, err
	}
	var wireResp protocol.Response
	if err := protocol.Decode(frame, &wireResp); err != nil {
		return nil, err
	}
	return &wireResp, nil
}
