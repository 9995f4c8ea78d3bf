package bulk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dd0wney/cluso-docgraph/pkg/logging"
	"github.com/dd0wney/cluso-docgraph/pkg/metrics"
	"github.com/dd0wney/cluso-docgraph/pkg/protocol"
	"github.com/dd0wney/cluso-docgraph/pkg/transport"
	"github.com/dd0wney/cluso-docgraph/pkg/validation"
)

// DefaultNotAcceptedRetries is how many times a batch the host declined is
// resubmitted before the failure is returned
const DefaultNotAcceptedRetries = 3

// Option configures a Batch
type Option func(*Batch)

// WithLogger sets the batch logger
func WithLogger(l logging.Logger) Option {
	return func(b *Batch) { b.logger = l }
}

// WithMetrics sets the registry batches are recorded in
func WithMetrics(r *metrics.Registry) Option {
	return func(b *Batch) { b.metrics = r }
}

// WithNotAcceptedRetries sets how many times a declined batch is resubmitted.
// Zero disables retries.
func WithNotAcceptedRetries(n int) Option {
	return func(b *Batch) { b.retries = n }
}

// WithRetryBackoff sets the pause before the first resubmission; it doubles
// on each further attempt
func WithRetryBackoff(d time.Duration) Option {
	return func(b *Batch) { b.backoff = d }
}

// Batch sends groups of operations to an executor and reconciles the
// replies. Like its VersionCache, it is meant to be used by one goroutine
// at a time.
type Batch struct {
	transport transport.Transport
	cache     *VersionCache
	logger    logging.Logger
	metrics   *metrics.Registry
	retries   int
	backoff   time.Duration
}

// NewBatch returns a Batch sending over t and reconciling into cache
func NewBatch(t transport.Transport, cache *VersionCache, opts ...Option) *Batch {
	b := &Batch{
		transport: t,
		cache:     cache,
		retries:   DefaultNotAcceptedRetries,
		backoff:   10 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = logging.OrDefault(b.logger).With(logging.Component("bulk"))
	if b.metrics == nil {
		b.metrics = metrics.DefaultRegistry()
	}
	return b
}

// Cache returns the VersionCache the batch reconciles into
func (b *Batch) Cache() *VersionCache {
	return b.cache
}

// Execute submits ops as one atomic batch. On success every callback has run
// in order and the cache holds the reported tokens. On failure no callback
// has run and the cache is unchanged; a failure reported by the executor is
// a *BatchError.
func (b *Batch) Execute(ctx context.Context, ops ...Operation) (*protocol.Response, error) {
	req, err := b.build(ops)
	if err != nil {
		b.metrics.RecordClientBatch("rejected")
		return nil, err
	}

	resp, err := b.send(ctx, req)
	if err != nil {
		b.metrics.RecordClientBatch("transport_error")
		return nil, err
	}
	if resp.Status != protocol.StatusSuccess {
		batchErr := newBatchError(resp)
		b.metrics.RecordClientBatch(resp.Status.String())
		b.logger.Warn("batch failed",
			logging.Status(resp.Status.String()),
			logging.String("message", resp.Message),
			logging.String("diagnostic", resp.Diagnostic),
			logging.Count(len(ops)))
		return resp, batchErr
	}

	if len(resp.Results) != len(ops) {
		b.metrics.RecordClientBatch("inconsistent")
		return resp, inconsistent("%d results for %d operations", len(resp.Results), len(ops))
	}
	for i, op := range ops {
		if err := op.Callback(resp.Results[i], resp.ETags); err != nil {
			b.metrics.RecordClientBatch("inconsistent")
			b.logger.Error("callback failed", logging.Op(string(op.Kind())), logging.Int("index", i), logging.Error(err))
			return resp, fmt.Errorf("operation %d (%s): %w", i, op.Kind(), err)
		}
	}

	b.cache.merge(resp.ETags)
	b.metrics.RecordClientBatch(resp.Status.String())
	return resp, nil
}

// build checks every operation and merges their preconditions
func (b *Batch) build(ops []Operation) (*protocol.Request, error) {
	req := &protocol.Request{
		Operations: make([]protocol.Operation, 0, len(ops)),
		KnownETags: make(map[string]*string),
	}
	owner := make(map[string]int)

	for i, op := range ops {
		if err := op.check(); err != nil {
			return nil, fmt.Errorf("%w: operation %d (%s): %v", ErrInvalidBatch, i, op.Kind(), err)
		}
		for id, tok := range op.Preconditions() {
			prev, seen := req.KnownETags[id]
			if seen && !sameToken(prev, tok) {
				return nil, fmt.Errorf("%w: document %s expected as %s by operation %d and %s by operation %d",
					ErrPreconditionConflict, id, tokenString(prev), owner[id], tokenString(tok), i)
			}
			if !seen {
				req.KnownETags[id] = tok
				owner[id] = i
			}
		}

		wire, err := protocol.NewOperation(op.Kind(), op.Args())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBatch, err)
		}
		req.Operations = append(req.Operations, wire)
	}

	if err := validation.ValidateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBatch, err)
	}
	return req, nil
}

// send performs the round trip, resubmitting while the host declines
func (b *Batch) send(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	delay := b.backoff
	for attempt := 0; ; attempt++ {
		resp, err := b.transport.RoundTrip(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("round trip failed: %w", err)
		}
		if resp.Status != protocol.StatusNotAccepted || attempt >= b.retries {
			return resp, nil
		}

		b.metrics.RecordClientRetry()
		b.logger.Info("batch not accepted, retrying",
			logging.Int("attempt", attempt+1),
			logging.Duration("backoff", delay))

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("round trip failed: %w", ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func sameToken(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func tokenString(tok *string) string {
	if tok == nil {
		return "<unknown>"
	}
	return *tok
}

// ErrorStatus returns the executor status carried by err, if any
func ErrorStatus(err error) (protocol.Status, bool) {
	var be *BatchError
	if errors.As(err, &be) {
		return be.Status, true
	}
	return protocol.StatusSuccess, false
}
