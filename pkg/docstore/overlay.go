package docstore

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Base is committed state that an Overlay stages writes against.
type Base interface {
	// Get returns the committed document or ErrNotFound.
	Get(ctx context.Context, id string) (*Document, error)
	// Find returns committed documents whose field equals value.
	Find(ctx context.Context, field string, value any) ([]*Document, error)
	// Apply atomically checks every expectation and applies the writes.
	// Any mismatch must leave the base untouched and return ErrPreconditionFailed.
	Apply(ctx context.Context, cs *ChangeSet) error
}

// Write is one staged mutation. A nil Doc deletes ID.
type Write struct {
	ID  string
	Doc *Document
}

// ChangeSet is the outcome of an Overlay: the committed etag every touched
// document was first seen with ("" when it did not exist) and the final state
// of every written document, in first-write order.
type ChangeSet struct {
	Expect map[string]string
	Writes []Write
}

var errEmptyID = errors.New("document id is required without autoID")

type staged struct {
	doc     *Document
	deleted bool
}

// Overlay is a Tx that keeps its writes in memory until Commit. Reads see the
// overlay first, then the base.
type Overlay struct {
	base             Base
	maxDocumentBytes int
	newETag          func() string

	mu     sync.Mutex
	staged map[string]*staged
	order  []string
	expect map[string]string
	done   bool
}

// NewOverlay starts a staged transaction over base
func NewOverlay(base Base, maxDocumentBytes int) *Overlay {
	if maxDocumentBytes <= 0 {
		maxDocumentBytes = DefaultMaxDocumentBytes
	}
	return &Overlay{
		base:             base,
		maxDocumentBytes: maxDocumentBytes,
		newETag:          uuid.NewString,
		staged:           make(map[string]*staged),
		expect:           make(map[string]string),
	}
}

func (o *Overlay) observe(id, etag string) {
	if _, seen := o.expect[id]; !seen {
		o.expect[id] = etag
	}
}

// lookup returns the current in-transaction view of id; nil means absent.
func (o *Overlay) lookup(ctx context.Context, id string) (*Document, error) {
	if s, ok := o.staged[id]; ok {
		if s.deleted {
			return nil, nil
		}
		return s.doc, nil
	}
	doc, err := o.base.Get(ctx, id)
	if IsNotFound(err) {
		o.observe(id, "")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	o.observe(id, doc.ETag)
	return doc, nil
}

func (o *Overlay) stage(id string, doc *Document) {
	if _, ok := o.staged[id]; !ok {
		o.order = append(o.order, id)
	}
	o.staged[id] = &staged{doc: doc, deleted: doc == nil}
}

func (o *Overlay) checkSize(op string, doc *Document) error {
	if len(doc.Body) > o.maxDocumentBytes {
		return NewHostError(op, doc.ID, ErrTooLarge)
	}
	return nil
}

// Create implements Host
func (o *Overlay) Create(ctx context.Context, doc *Document, autoID bool) (*Document, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done {
		return nil, ErrTxDone
	}

	next := doc.Clone()
	if next.ID == "" {
		if !autoID {
			return nil, NewHostError("create", "", errEmptyID)
		}
		next.ID = uuid.NewString()
	}
	if next.PartitionKey == "" {
		next.PartitionKey = next.ID
	}
	if err := o.checkSize("create", next); err != nil {
		return nil, err
	}
	cur, err := o.lookup(ctx, next.ID)
	if err != nil {
		return nil, err
	}
	if cur != nil {
		return nil, NewHostError("create", next.ID, ErrConflict)
	}
	next.ETag = o.newETag()
	o.stage(next.ID, next)
	return next.Clone(), nil
}

// Replace implements Host
func (o *Overlay) Replace(ctx context.Context, doc *Document, expectedETag string) (*Document, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done {
		return nil, ErrTxDone
	}

	cur, err := o.lookup(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, NewHostError("replace", doc.ID, ErrNotFound)
	}
	if expectedETag != "" && cur.ETag != expectedETag {
		return nil, NewHostError("replace", doc.ID, ErrPreconditionFailed)
	}
	next := doc.Clone()
	if next.PartitionKey == "" {
		next.PartitionKey = cur.PartitionKey
	}
	if err := o.checkSize("replace", next); err != nil {
		return nil, err
	}
	next.ETag = o.newETag()
	o.stage(next.ID, next)
	return next.Clone(), nil
}

// Delete implements Host
func (o *Overlay) Delete(ctx context.Context, id string, expectedETag string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done {
		return ErrTxDone
	}

	cur, err := o.lookup(ctx, id)
	if err != nil {
		return err
	}
	if cur == nil {
		return NewHostError("delete", id, ErrNotFound)
	}
	if expectedETag != "" && cur.ETag != expectedETag {
		return NewHostError("delete", id, ErrPreconditionFailed)
	}
	o.stage(id, nil)
	return nil
}

// Retrieve implements Host
func (o *Overlay) Retrieve(ctx context.Context, id string) (*Document, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done {
		return nil, ErrTxDone
	}

	cur, err := o.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, NewHostError("retrieve", id, ErrNotFound)
	}
	return cur.Clone(), nil
}

// QueryByField implements Host. Results are ordered by id.
func (o *Overlay) QueryByField(ctx context.Context, field string, value any) ([]*Document, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done {
		return nil, ErrTxDone
	}

	committed, err := o.base.Find(ctx, field, value)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*Document)
	for _, doc := range committed {
		if _, ok := o.staged[doc.ID]; ok {
			continue
		}
		o.observe(doc.ID, doc.ETag)
		byID[doc.ID] = doc
	}
	for id, s := range o.staged {
		if s.deleted || !MatchField(s.doc.Body, field, value) {
			continue
		}
		byID[id] = s.doc
	}

	out := make([]*Document, 0, len(byID))
	for _, doc := range byID {
		out = append(out, doc.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Commit applies every staged write to the base in one step
func (o *Overlay) Commit(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done {
		return ErrTxDone
	}
	o.done = true

	cs := &ChangeSet{
		Expect: o.expect,
		Writes: make([]Write, 0, len(o.order)),
	}
	for _, id := range o.order {
		cs.Writes = append(cs.Writes, Write{ID: id, Doc: o.staged[id].doc})
	}
	if len(cs.Writes) == 0 {
		return nil
	}
	return o.base.Apply(ctx, cs)
}

// Rollback discards every staged write
func (o *Overlay) Rollback(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done {
		return ErrTxDone
	}
	o.done = true
	o.staged = nil
	return nil
}

var _ Tx = (*Overlay)(nil)
