package docstore

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process document store. Batches run on an Overlay and
// are validated against the committed etags when they commit.
type MemoryStore struct {
	mu               sync.RWMutex
	docs             map[string]*Document
	maxDocumentBytes int
	closed           bool
}

// NewMemoryStore creates an empty store. maxDocumentBytes <= 0 selects
// DefaultMaxDocumentBytes.
func NewMemoryStore(maxDocumentBytes int) *MemoryStore {
	if maxDocumentBytes <= 0 {
		maxDocumentBytes = DefaultMaxDocumentBytes
	}
	return &MemoryStore{
		docs:             make(map[string]*Document),
		maxDocumentBytes: maxDocumentBytes,
	}
}

// Begin implements Store
func (s *MemoryStore) Begin(ctx context.Context) (Tx, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, NewHostError("begin", "", ErrNotAccepted)
	}
	return NewOverlay(s, s.maxDocumentBytes), nil
}

// Close implements Store
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Get implements Base
func (s *MemoryStore) Get(ctx context.Context, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, NewHostError("retrieve", id, ErrNotFound)
	}
	return doc.Clone(), nil
}

// Find implements Base
func (s *MemoryStore) Find(ctx context.Context, field string, value any) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Document
	for _, doc := range s.docs {
		if MatchField(doc.Body, field, value) {
			out = append(out, doc.Clone())
		}
	}
	return out, nil
}

// Apply implements Base
func (s *MemoryStore) Apply(ctx context.Context, cs *ChangeSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return NewHostError("commit", "", ErrNotAccepted)
	}

	for id, want := range cs.Expect {
		got := ""
		if doc, ok := s.docs[id]; ok {
			got = doc.ETag
		}
		if got != want {
			return NewHostError("commit", id, ErrPreconditionFailed)
		}
	}
	for _, w := range cs.Writes {
		if w.Doc == nil {
			delete(s.docs, w.ID)
			continue
		}
		s.docs[w.ID] = w.Doc.Clone()
	}
	return nil
}

// Document returns a committed document, or nil
func (s *MemoryStore) Document(id string) *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.docs[id].Clone()
}

// ETag returns the committed etag of id, or "" when it does not exist
func (s *MemoryStore) ETag(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if doc, ok := s.docs[id]; ok {
		return doc.ETag
	}
	return ""
}

// Documents returns every committed document ordered by id
func (s *MemoryStore) Documents() []*Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Document, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, doc.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Base  = (*MemoryStore)(nil)
)
