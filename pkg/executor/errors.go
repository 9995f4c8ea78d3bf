package executor

import (
	"errors"
	"fmt"

	"github.com/dd0wney/cluso-docgraph/pkg/docstore"
	"github.com/dd0wney/cluso-docgraph/pkg/protocol"
)

// AbortError stops a batch. Nothing the batch wrote becomes visible.
type AbortError struct {
	Status     protocol.Status
	Message    string
	Diagnostic string
	Cause      error
}

// Error implements the error interface.
func (e *AbortError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Status, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Status, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *AbortError) Unwrap() error {
	return e.Cause
}

// Response renders the abort as the wire response. Aborted batches carry no
// results and no tokens.
func (e *AbortError) Response() *protocol.Response {
	resp := &protocol.Response{
		Status:     e.Status,
		Message:    e.Message,
		Diagnostic: e.Diagnostic,
	}
	var he *docstore.HostError
	if errors.As(e.Cause, &he) {
		resp.HostError = &protocol.HostError{Code: he.Code, Message: he.Error()}
	}
	return resp
}

// assertf reports a broken invariant
func assertf(format string, args ...any) *AbortError {
	return &AbortError{
		Status:  protocol.StatusAssertionFailed,
		Message: fmt.Sprintf(format, args...),
	}
}

// dbError reports a host-side failure the batch cannot work around
func dbError(cause error, format string, args ...any) *AbortError {
	return &AbortError{
		Status:  protocol.StatusDBError,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// internalf reports a request this executor cannot interpret
func internalf(cause error, format string, args ...any) *AbortError {
	return &AbortError{
		Status:  protocol.StatusInternalError,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// classify turns any error raised while applying a batch into an AbortError.
// The host declining the call is retryable; every other host error is fatal.
func classify(err error) *AbortError {
	var ae *AbortError
	if errors.As(err, &ae) {
		return ae
	}
	if errors.Is(err, docstore.ErrNotAccepted) {
		return &AbortError{
			Status:  protocol.StatusNotAccepted,
			Message: "document host did not accept the request",
			Cause:   err,
		}
	}
	return &AbortError{
		Status:  protocol.StatusDBError,
		Message: err.Error(),
		Cause:   err,
	}
}
