// Package docstore defines the document primitives a graph batch runs against
// and the stores that provide them.
//
// A Store hands out one Tx per batch. Every primitive on a Tx sees the writes
// made earlier in the same Tx; nothing is visible outside it until Commit, and
// Rollback (or an abandoned Tx) discards everything.
package docstore

import (
	"context"
)

// Document is an opaque stored document.
type Document struct {
	ID           string
	PartitionKey string
	ETag         string
	Body         []byte
}

// Clone returns a copy that shares no memory with d
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	if d.Body != nil {
		out.Body = append([]byte(nil), d.Body...)
	}
	return &out
}

// Host is the set of primitives available inside an atomic batch.
//
// expectedETag may be empty, meaning "no precondition".
type Host interface {
	// Create stores a new document. With autoID and an empty doc.ID the host
	// assigns the id. Returns ErrConflict if the id exists, ErrTooLarge if the
	// body exceeds the host limit.
	Create(ctx context.Context, doc *Document, autoID bool) (*Document, error)
	// Replace overwrites an existing document. Returns ErrTooLarge without
	// modifying anything when the new body does not fit.
	Replace(ctx context.Context, doc *Document, expectedETag string) (*Document, error)
	// Delete removes a document.
	Delete(ctx context.Context, id string, expectedETag string) error
	// Retrieve reads a document by id.
	Retrieve(ctx context.Context, id string) (*Document, error)
	// QueryByField returns every document whose top-level body field equals value.
	QueryByField(ctx context.Context, field string, value any) ([]*Document, error)
}

// Tx is one atomic batch against a Store.
type Tx interface {
	Host
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store opens atomic batches.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
	Close() error
}

// Default limits
const (
	// DefaultMaxDocumentBytes is the body size above which hosts report ErrTooLarge
	DefaultMaxDocumentBytes = 2 * 1024 * 1024
)
