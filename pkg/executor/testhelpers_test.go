package executor

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"testing"

	"github.com/dd0wney/cluso-docgraph/pkg/docstore"
	"github.com/dd0wney/cluso-docgraph/pkg/graph"
	"github.com/dd0wney/cluso-docgraph/pkg/logging"
	"github.com/dd0wney/cluso-docgraph/pkg/metrics"
	"github.com/dd0wney/cluso-docgraph/pkg/protocol"
)

// newTestExecutor returns an executor over a fresh in-memory store
func newTestExecutor(t *testing.T, maxBytes int, opts ...Option) (*Executor, *docstore.MemoryStore) {
	t.Helper()
	store := docstore.NewMemoryStore(maxBytes)
	t.Cleanup(func() { store.Close() })
	return newExecutorOver(store, opts...), store
}

func newExecutorOver(store docstore.Store, opts ...Option) *Executor {
	base := []Option{WithLogger(logging.NewNopLogger()), WithMetrics(metrics.NewRegistry())}
	return New(store, append(base, opts...)...)
}

func op(t *testing.T, kind protocol.OpKind, args any) protocol.Operation {
	t.Helper()
	o, err := protocol.NewOperation(kind, args)
	if err != nil {
		t.Fatalf("NewOperation(%s) failed: %v", kind, err)
	}
	return o
}

func run(ex *Executor, known map[string]*string, ops ...protocol.Operation) *protocol.Response {
	return ex.Execute(context.Background(), &protocol.Request{Operations: ops, KnownETags: known})
}

func mustRun(t *testing.T, ex *Executor, ops ...protocol.Operation) *protocol.Response {
	t.Helper()
	resp := run(ex, nil, ops...)
	if resp.Status != protocol.StatusSuccess {
		t.Fatalf("batch failed: status=%s message=%q diagnostic=%q", resp.Status, resp.Message, resp.Diagnostic)
	}
	return resp
}

func decodeResult[T any](t *testing.T, resp *protocol.Response, i int) T {
	t.Helper()
	var out T
	if _, err := resp.DecodeResult(i, &out); err != nil {
		t.Fatalf("decode result %d: %v", i, err)
	}
	return out
}

func addVertexOp(t *testing.T, id string) protocol.Operation {
	return op(t, protocol.OpAddVertex, &protocol.AddVertexArgs{Vertex: graph.NewVertexDocument(id, "person")})
}

func testEdge(id, other string, blob int) graph.EmbeddedEdge {
	e := graph.EmbeddedEdge{ID: id, Label: "knows", OtherVertexID: other}
	if blob > 0 {
		e.Properties = map[string]any{"blob": strings.Repeat("x", blob)}
	}
	return e
}

func addEdgeOp(t *testing.T, src, sink string, reverse bool, threshold int, edge graph.EmbeddedEdge) protocol.Operation {
	return op(t, protocol.OpAddEdge, &protocol.AddEdgeArgs{
		SrcID:          src,
		SinkID:         sink,
		IsReverse:      reverse,
		SpillThreshold: threshold,
		Edge:           edge,
	})
}

func loadVertex(t *testing.T, store *docstore.MemoryStore, id string) *graph.VertexDocument {
	t.Helper()
	doc := store.Document(id)
	if doc == nil {
		t.Fatalf("vertex %s not found", id)
	}
	v, err := graph.UnmarshalVertex(doc.Body)
	if err != nil {
		t.Fatalf("decode vertex %s: %v", id, err)
	}
	return v
}

// overflowOf returns every committed overflow document of vertexID/dir, by id
func overflowOf(t *testing.T, store *docstore.MemoryStore, vertexID string, dir graph.Direction) map[string]*graph.OverflowDocument {
	t.Helper()
	out := make(map[string]*graph.OverflowDocument)
	for _, doc := range store.Documents() {
		if !docstore.MatchField(doc.Body, graph.FieldOverflowVertexID, vertexID) {
			continue
		}
		d, err := graph.UnmarshalOverflow(doc.Body)
		if err != nil {
			t.Fatalf("decode overflow %s: %v", doc.ID, err)
		}
		d.ID = doc.ID
		if d.Direction() == dir {
			out[doc.ID] = d
		}
	}
	return out
}

func edgeIDs(edges []graph.EmbeddedEdge) []string {
	ids := make([]string, len(edges))
	for i, e := range edges {
		ids[i] = e.ID
	}
	return ids
}

// allEdgeIDs returns the ids of every edge of vertexID/dir, inline or spilled, sorted
func allEdgeIDs(t *testing.T, store *docstore.MemoryStore, vertexID string, dir graph.Direction) []string {
	t.Helper()
	v := loadVertex(t, store, vertexID)
	var ids []string
	if !v.Spilled(dir) {
		ids = edgeIDs(v.Edges(dir))
	} else {
		for _, d := range overflowOf(t, store, vertexID, dir) {
			ids = append(ids, edgeIDs(d.Edges)...)
		}
	}
	sort.Strings(ids)
	return ids
}

// snapshot captures every committed document's etag
func snapshot(store *docstore.MemoryStore) map[string]string {
	out := make(map[string]string)
	for _, doc := range store.Documents() {
		out[doc.ID] = doc.ETag
	}
	return out
}

func assertUnchanged(t *testing.T, store *docstore.MemoryStore, before map[string]string) {
	t.Helper()
	after := snapshot(store)
	if len(after) != len(before) {
		t.Fatalf("document count changed: %d -> %d", len(before), len(after))
	}
	for id, etag := range before {
		if after[id] != etag {
			t.Errorf("document %s changed: %q -> %q", id, etag, after[id])
		}
	}
}

func strPtr(s string) *string {
	return &s
}

func rawJSON(s string) json.RawMessage {
	return json.RawMessage(s)
}
