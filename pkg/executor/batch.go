package executor

import (
	"context"
	"errors"

	"github.com/dd0wney/cluso-docgraph/pkg/docstore"
	"github.com/dd0wney/cluso-docgraph/pkg/graph"
	"github.com/dd0wney/cluso-docgraph/pkg/logging"
	"github.com/dd0wney/cluso-docgraph/pkg/protocol"
)

// batch is the state of one Execute call.
//
// etags holds every document the batch has touched: the token it was read
// with, the token of its latest write, or nil once deleted. A document's
// precondition is checked only the first time it enters etags; later reads
// see the batch's own writes.
type batch struct {
	ctx   context.Context
	exec  *Executor
	tx    docstore.Tx
	log   logging.Logger
	known map[string]*string
	etags map[string]*string
}

func newBatch(ctx context.Context, e *Executor, tx docstore.Tx, known map[string]*string) *batch {
	return &batch{
		ctx:   ctx,
		exec:  e,
		tx:    tx,
		log:   e.logger,
		known: known,
		etags: make(map[string]*string),
	}
}

func (b *batch) apply(op protocol.Operation) (any, error) {
	args, err := protocol.DecodeArgs(op)
	if err != nil {
		return nil, internalf(err, "cannot decode %s", op.Op)
	}

	switch a := args.(type) {
	case *protocol.AddVertexArgs:
		return b.addVertex(a)
	case *protocol.AddEdgeArgs:
		return b.addEdge(a)
	case *protocol.DropVertexPropertyArgs:
		return b.dropVertexProperty(a)
	case *protocol.DropVertexSinglePropertyArgs:
		return b.dropVertexSingleProperty(a)
	case *protocol.DropVertexSinglePropertyMetaPropertyArgs:
		return b.dropVertexSinglePropertyMetaProperty(a)
	case *protocol.DropEdgeArgs:
		return b.dropEdge(a)
	case *protocol.DropEdgePropertyArgs:
		return b.dropEdgeProperty(a)
	case *protocol.UpdateEdgePropertyArgs:
		return b.updateEdgeProperty(a)
	case *protocol.UpdateVertexPropertyArgs:
		return b.updateVertexProperty(a)
	default:
		return nil, internalf(nil, "no handler for %s", op.Op)
	}
}

// record counts one primitive call by outcome
func (b *batch) record(primitive string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case docstore.IsNotFound(err):
		result = "not_found"
	case docstore.IsTooLarge(err):
		result = "too_large"
	case errors.Is(err, docstore.ErrNotAccepted):
		result = "not_accepted"
	default:
		result = "error"
	}
	b.exec.metrics.RecordPrimitive(primitive, result)
}

func (b *batch) setETag(id, etag string) {
	b.etags[id] = &etag
}

func (b *batch) currentETag(id string) string {
	if tok := b.etags[id]; tok != nil {
		return *tok
	}
	return ""
}

// checkPrecondition admits a document into the batch. A caller-supplied
// token must match the stored one; an absent or nil token asserts nothing.
func (b *batch) checkPrecondition(id, stored string) error {
	if _, touched := b.etags[id]; touched {
		return nil
	}
	if want := b.known[id]; want != nil && *want != stored {
		return dbError(docstore.NewHostError("retrieve", id, docstore.ErrPreconditionFailed),
			"document %s changed since it was last observed", id)
	}
	b.setETag(id, stored)
	return nil
}

func (b *batch) retrieve(id string) (*docstore.Document, error) {
	doc, err := b.tx.Retrieve(b.ctx, id)
	b.record("retrieve", err)
	if err != nil {
		_, touched := b.etags[id]
		if docstore.IsNotFound(err) && !touched && b.known[id] != nil {
			return nil, dbError(docstore.NewHostError("retrieve", id, docstore.ErrPreconditionFailed),
				"document %s was removed since it was last observed", id)
		}
		return nil, err
	}
	if err := b.checkPrecondition(id, doc.ETag); err != nil {
		return nil, err
	}
	return doc, nil
}

func (b *batch) replace(doc *docstore.Document) (*docstore.Document, error) {
	next, err := b.tx.Replace(b.ctx, doc, b.currentETag(doc.ID))
	b.record("replace", err)
	if err != nil {
		return nil, err
	}
	b.setETag(next.ID, next.ETag)
	return next, nil
}

func (b *batch) create(doc *docstore.Document, autoID bool) (*docstore.Document, error) {
	next, err := b.tx.Create(b.ctx, doc, autoID)
	b.record("create", err)
	if err != nil {
		return nil, err
	}
	b.setETag(next.ID, next.ETag)
	return next, nil
}

func (b *batch) delete(id string) error {
	err := b.tx.Delete(b.ctx, id, b.currentETag(id))
	b.record("delete", err)
	if err != nil {
		return err
	}
	b.etags[id] = nil
	return nil
}

func (b *batch) query(field string, value any) ([]*docstore.Document, error) {
	docs, err := b.tx.QueryByField(b.ctx, field, value)
	b.record("query", err)
	return docs, err
}

// Vertex documents

func (b *batch) loadVertex(id string) (*graph.VertexDocument, error) {
	doc, err := b.retrieve(id)
	if err != nil {
		return nil, err
	}
	v, err := graph.UnmarshalVertex(doc.Body)
	if err != nil {
		return nil, assertf("document %s is not a vertex: %v", id, err)
	}
	if v.ID != id {
		return nil, assertf("document %s holds vertex %s", id, v.ID)
	}
	return v, nil
}

// storeVertex replaces v as is; ErrTooLarge is returned untouched so the
// caller can spill.
func (b *batch) storeVertex(v *graph.VertexDocument) error {
	body, err := graph.MarshalVertex(v)
	if err != nil {
		return internalf(err, "cannot encode vertex %s", v.ID)
	}
	_, err = b.replace(&docstore.Document{ID: v.ID, PartitionKey: v.ID, Body: body})
	return err
}

// Overflow documents

func (b *batch) decodeOverflow(doc *docstore.Document, vertexID string, dir graph.Direction) (*graph.OverflowDocument, error) {
	d, err := graph.UnmarshalOverflow(doc.Body)
	if err != nil {
		return nil, assertf("document %s is not an overflow document: %v", doc.ID, err)
	}
	d.ID = doc.ID
	if d.VertexID != vertexID || d.Direction() != dir {
		return nil, assertf("overflow document %s belongs to %s/%s, expected %s/%s",
			doc.ID, d.VertexID, d.Direction(), vertexID, dir)
	}
	return d, nil
}

func (b *batch) loadOverflow(id, vertexID string, dir graph.Direction) (*graph.OverflowDocument, error) {
	doc, err := b.retrieve(id)
	if err != nil {
		return nil, err
	}
	return b.decodeOverflow(doc, vertexID, dir)
}

// overflowDocs returns every overflow document of vertexID/dir, ordered by id
func (b *batch) overflowDocs(vertexID string, dir graph.Direction) ([]*graph.OverflowDocument, error) {
	docs, err := b.query(graph.FieldOverflowVertexID, vertexID)
	if err != nil {
		return nil, err
	}
	out := make([]*graph.OverflowDocument, 0, len(docs))
	for _, doc := range docs {
		d, err := graph.UnmarshalOverflow(doc.Body)
		if err != nil {
			return nil, assertf("document %s is not an overflow document: %v", doc.ID, err)
		}
		if d.Direction() != dir {
			continue
		}
		if err := b.checkPrecondition(doc.ID, doc.ETag); err != nil {
			return nil, err
		}
		d.ID = doc.ID
		out = append(out, d)
	}
	return out, nil
}

func (b *batch) storeOverflow(d *graph.OverflowDocument) error {
	if len(d.Edges) == 0 {
		return assertf("refusing to store empty overflow document %s", d.ID)
	}
	body, err := graph.MarshalOverflow(d)
	if err != nil {
		return internalf(err, "cannot encode overflow document %s", d.ID)
	}
	_, err = b.replace(&docstore.Document{ID: d.ID, PartitionKey: d.VertexID, Body: body})
	return err
}

// createOverflow stores a new overflow document with a host-assigned id
func (b *batch) createOverflow(vertexID string, dir graph.Direction, edges []graph.EmbeddedEdge) (*graph.OverflowDocument, error) {
	d := graph.NewOverflowDocument(vertexID, dir, edges)
	body, err := graph.MarshalOverflow(d)
	if err != nil {
		return nil, internalf(err, "cannot encode overflow document for %s", vertexID)
	}
	doc, err := b.create(&docstore.Document{PartitionKey: vertexID, Body: body}, true)
	if err != nil {
		return nil, err
	}
	d.ID = doc.ID
	b.exec.metrics.RecordOverflowDocument("created")
	b.log.Debug("overflow document created",
		logging.DocID(d.ID), logging.VertexID(vertexID),
		logging.Direction(dir.String()), logging.Count(len(edges)))
	return d, nil
}

func (b *batch) deleteOverflow(d *graph.OverflowDocument) error {
	if err := b.delete(d.ID); err != nil {
		return err
	}
	b.exec.metrics.RecordOverflowDocument("deleted")
	b.log.Debug("overflow document deleted",
		logging.DocID(d.ID), logging.VertexID(d.VertexID), logging.Direction(d.Direction().String()))
	return nil
}

// persistOverflow stores d, or deletes it once it has no edges left
func (b *batch) persistOverflow(d *graph.OverflowDocument) error {
	if len(d.Edges) == 0 {
		return b.deleteOverflow(d)
	}
	return b.storeOverflow(d)
}
