package bulk

import (
	"errors"
	"fmt"

	"github.com/dd0wney/cluso-docgraph/pkg/protocol"
)

// Batch-level failures. A *BatchError matches the sentinel for its status
// with errors.Is.
var (
	ErrDBError         = errors.New("database error")
	ErrNotAccepted     = errors.New("batch not accepted")
	ErrAssertionFailed = errors.New("assertion failed")
	ErrInternal        = errors.New("internal error")
)

// Client-side failures, raised before or after the round trip
var (
	// ErrPreconditionConflict means two operations of one batch expect
	// different tokens for the same document
	ErrPreconditionConflict = errors.New("conflicting preconditions")

	// ErrUnknownVersion is the panic value of VersionCache.Get for an id
	// that was never observed
	ErrUnknownVersion = errors.New("version never observed")

	// ErrInvalidBatch means the batch failed local validation
	ErrInvalidBatch = errors.New("invalid batch")

	// ErrInconsistentResponse means a successful response contradicts itself,
	// e.g. a result names a document missing from the token map
	ErrInconsistentResponse = errors.New("inconsistent response")
)

// BatchError is returned when the executor reports a non-success status.
// Nothing in the batch took effect.
type BatchError struct {
	Status      protocol.Status
	Message     string
	Diagnostic  string
	HostCode    string
	HostMessage string
}

func newBatchError(resp *protocol.Response) *BatchError {
	e := &BatchError{
		Status:     resp.Status,
		Message:    resp.Message,
		Diagnostic: resp.Diagnostic,
	}
	if resp.HostError != nil {
		e.HostCode = resp.HostError.Code
		e.HostMessage = resp.HostError.Message
	}
	return e
}

func (e *BatchError) Error() string {
	msg := fmt.Sprintf("batch failed (%s): %s", e.Status, e.Message)
	if e.Diagnostic != "" {
		msg += " [" + e.Diagnostic + "]"
	}
	if e.HostCode != "" {
		msg += fmt.Sprintf(" (host %s: %s)", e.HostCode, e.HostMessage)
	}
	return msg
}

// Is matches the sentinel for the error's status
func (e *BatchError) Is(target error) bool {
	switch e.Status {
	case protocol.StatusDBError:
		return target == ErrDBError
	case protocol.StatusNotAccepted:
		return target == ErrNotAccepted
	case protocol.StatusAssertionFailed:
		return target == ErrAssertionFailed
	case protocol.StatusInternalError:
		return target == ErrInternal
	}
	return false
}

// Retryable reports whether resubmitting the same batch unchanged may succeed
func (e *BatchError) Retryable() bool {
	return e.Status == protocol.StatusNotAccepted
}

// IsRetryable reports whether err is a retryable batch failure
func IsRetryable(err error) bool {
	var be *BatchError
	return errors.As(err, &be) && be.Retryable()
}

func inconsistent(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInconsistentResponse, fmt.Sprintf(format, args...))
}
