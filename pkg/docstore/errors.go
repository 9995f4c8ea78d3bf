package docstore

import (
	"errors"
	"fmt"
)

// Sentinel errors reported by document hosts
var (
	ErrNotFound           = errors.New("document not found")
	ErrConflict           = errors.New("document already exists")
	ErrPreconditionFailed = errors.New("etag precondition failed")
	ErrTooLarge           = errors.New("document too large")
	ErrNotAccepted        = errors.New("request not accepted")
	ErrTxDone             = errors.New("transaction already committed or rolled back")
)

// Host-specific codes carried on HostError. They mirror the HTTP-ish status
// codes document stores usually report.
const (
	CodeNotFound           = "404"
	CodeConflict           = "409"
	CodePreconditionFailed = "412"
	CodeTooLarge           = "413"
	CodeNotAccepted        = "429"
)

// HostError describes a failed document primitive.
type HostError struct {
	Op    string // Primitive that failed (e.g., "replace", "commit")
	DocID string // Document involved, if any
	Code  string // Host-specific status code
	Cause error  // Underlying error
}

// Error implements the error interface.
func (e *HostError) Error() string {
	if e.DocID != "" {
		return fmt.Sprintf("%s %s (code %s): %v", e.Op, e.DocID, e.Code, e.Cause)
	}
	return fmt.Sprintf("%s (code %s): %v", e.Op, e.Code, e.Cause)
}

// Unwrap returns the underlying cause for error chain support.
func (e *HostError) Unwrap() error {
	return e.Cause
}

// NewHostError wraps cause, deriving the code from the sentinel it matches.
func NewHostError(op, docID string, cause error) *HostError {
	return &HostError{Op: op, DocID: docID, Code: CodeOf(cause), Cause: cause}
}

// CodeOf maps a sentinel error to its host code. Unknown errors map to "500".
func CodeOf(err error) string {
	var he *HostError
	if errors.As(err, &he) && he.Code != "" {
		return he.Code
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrConflict):
		return CodeConflict
	case errors.Is(err, ErrPreconditionFailed):
		return CodePreconditionFailed
	case errors.Is(err, ErrTooLarge):
		return CodeTooLarge
	case errors.Is(err, ErrNotAccepted):
		return CodeNotAccepted
	default:
		return "500"
	}
}

// IsTooLarge reports whether err is the host's "document too large" signal
func IsTooLarge(err error) bool {
	return errors.Is(err, ErrTooLarge)
}

// IsNotFound reports whether err means the document does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
