// Package docstoretest provides document store doubles for tests.
package docstoretest

import (
	"context"
	"sync"

	"github.com/dd0wney/cluso-docgraph/pkg/docstore"
)

// Fault decides whether a primitive should fail. op is one of "create",
// "replace", "delete", "retrieve", "query", "commit"; docID is empty for
// query and commit. Returning nil lets the call through.
type Fault func(op, docID string) error

// Call records one primitive invocation
type Call struct {
	Op    string
	DocID string
}

// FaultyStore wraps a Store and injects failures into its transactions.
type FaultyStore struct {
	docstore.Store
	Fault Fault

	mu    sync.Mutex
	calls []Call
}

// NewFaultyStore wraps store with fault
func NewFaultyStore(store docstore.Store, fault Fault) *FaultyStore {
	return &FaultyStore{Store: store, Fault: fault}
}

// Calls returns every primitive seen so far
func (s *FaultyStore) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

func (s *FaultyStore) check(op, docID string) error {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Op: op, DocID: docID})
	s.mu.Unlock()
	if s.Fault == nil {
		return nil
	}
	return s.Fault(op, docID)
}

// Begin implements docstore.Store
func (s *FaultyStore) Begin(ctx context.Context) (docstore.Tx, error) {
	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &faultyTx{Tx: tx, store: s}, nil
}

type faultyTx struct {
	docstore.Tx
	store *FaultyStore
}

func (t *faultyTx) Create(ctx context.Context, doc *docstore.Document, autoID bool) (*docstore.Document, error) {
	if err := t.store.check("create", doc.ID); err != nil {
		return nil, err
	}
	return t.Tx.Create(ctx, doc, autoID)
}

func (t *faultyTx) Replace(ctx context.Context, doc *docstore.Document, expectedETag string) (*docstore.Document, error) {
	if err := t.store.check("replace", doc.ID); err != nil {
		return nil, err
	}
	return t.Tx.Replace(ctx, doc, expectedETag)
}

func (t *faultyTx) Delete(ctx context.Context, id string, expectedETag string) error {
	if err := t.store.check("delete", id); err != nil {
		return err
	}
	return t.Tx.Delete(ctx, id, expectedETag)
}

func (t *faultyTx) Retrieve(ctx context.Context, id string) (*docstore.Document, error) {
	if err := t.store.check("retrieve", id); err != nil {
		return nil, err
	}
	return t.Tx.Retrieve(ctx, id)
}

func (t *faultyTx) QueryByField(ctx context.Context, field string, value any) ([]*docstore.Document, error) {
	if err := t.store.check("query", ""); err != nil {
		return nil, err
	}
	return t.Tx.QueryByField(ctx, field, value)
}

func (t *faultyTx) Commit(ctx context.Context) error {
	if err := t.store.check("commit", ""); err != nil {
		_ = t.Tx.Rollback(ctx)
		return err
	}
	return t.Tx.Commit(ctx)
}
