// Package executor applies a batch of graph mutations atomically against a
// document store.
//
// Operations run strictly in order inside one docstore.Tx. Any failure rolls
// the whole batch back and the response carries no results and no tokens.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dd0wney/cluso-docgraph/pkg/docstore"
	"github.com/dd0wney/cluso-docgraph/pkg/logging"
	"github.com/dd0wney/cluso-docgraph/pkg/metrics"
	"github.com/dd0wney/cluso-docgraph/pkg/protocol"
	"github.com/dd0wney/cluso-docgraph/pkg/validation"
)

// Executor runs batches against a docstore.Store. It is safe for concurrent
// use; each Execute call gets its own transaction.
type Executor struct {
	store                 docstore.Store
	logger                logging.Logger
	metrics               *metrics.Registry
	defaultSpillThreshold int
}

// Option configures an Executor
type Option func(*Executor)

// WithLogger sets the logger
func WithLogger(l logging.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// WithMetrics sets the metrics registry
func WithMetrics(r *metrics.Registry) Option {
	return func(e *Executor) {
		e.metrics = r
	}
}

// WithDefaultSpillThreshold sets the edge-count threshold used when an
// operation does not carry one. Zero leaves spilling to the size limit.
func WithDefaultSpillThreshold(n int) Option {
	return func(e *Executor) {
		e.defaultSpillThreshold = n
	}
}

// New creates an executor over store
func New(store docstore.Store, opts ...Option) *Executor {
	e := &Executor{store: store}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.OrDefault(e.logger).With(logging.Component("executor"))
	if e.metrics == nil {
		e.metrics = metrics.DefaultRegistry()
	}
	return e
}

// Execute applies req and reports the outcome. It never returns a Go error:
// every failure is expressed as a non-success Status.
func (e *Executor) Execute(ctx context.Context, req *protocol.Request) *protocol.Response {
	ops := 0
	if req != nil {
		ops = len(req.Operations)
	}
	timer := logging.StartTimer(e.logger, "batch finished", logging.Count(ops))
	resp := e.execute(ctx, req)

	e.metrics.RecordBatch(resp.Status.String(), ops, timer.Elapsed())
	if resp.Status != protocol.StatusSuccess {
		timer.EndError(errors.New(resp.Message),
			logging.Status(resp.Status.String()),
			logging.String("diagnostic", resp.Diagnostic),
			logging.Any("host_error", resp.HostError))
		return resp
	}
	timer.End(logging.Status(resp.Status.String()), logging.Int("documents", len(resp.ETags)))
	return resp
}

func (e *Executor) execute(ctx context.Context, req *protocol.Request) *protocol.Response {
	if err := validation.ValidateRequest(req); err != nil {
		return internalf(err, "invalid request: %v", err).Response()
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return classify(err).Response()
	}
	e.logger.Debug("batch started", logging.Count(len(req.Operations)))

	b := newBatch(ctx, e, tx, req.KnownETags)
	results := make([]json.RawMessage, len(req.Operations))

	for i, op := range req.Operations {
		result, err := b.apply(op)
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				e.logger.Debug("rollback failed", logging.Error(rbErr))
			}
			abort := classify(err)
			if abort.Diagnostic == "" {
				abort.Diagnostic = fmt.Sprintf("operation %d (%s)", i, op.Op)
			}
			e.metrics.RecordOperation(string(op.Op), abort.Status.String())
			return abort.Response()
		}
		e.metrics.RecordOperation(string(op.Op), protocol.StatusSuccess.String())

		encoded, err := json.Marshal(result)
		if err != nil {
			_ = tx.Rollback(ctx)
			return internalf(err, "failed to encode result of operation %d", i).Response()
		}
		results[i] = encoded
	}

	if err := tx.Commit(ctx); err != nil {
		b.record("commit", err)
		abort := classify(err)
		abort.Diagnostic = "commit"
		return abort.Response()
	}
	b.record("commit", nil)

	return &protocol.Response{
		Status:  protocol.StatusSuccess,
		Message: "ok",
		Results: results,
		ETags:   b.etags,
	}
}

func (e *Executor) threshold(requested int) int {
	if requested > 0 {
		return requested
	}
	return e.defaultSpillThreshold
}
