package bulk

import (
	"github.com/dd0wney/cluso-docgraph/pkg/graph"
)

// Adjacency is the caller's view of one direction of a vertex
type Adjacency struct {
	Spilled bool
	// LatestDocID is the overflow document new edges go to. Empty while
	// inline, or when the executor moved the placeholder without saying where.
	LatestDocID string
	// NewestEdgeID is the edge most recently added or updated, if known
	NewestEdgeID string
}

// VertexField mirrors a vertex document on the client. Operation callbacks
// keep it in step with what the executor reported.
type VertexField struct {
	ID         string
	Label      string
	Properties map[string][]graph.PropertyValue
	Out        Adjacency
	In         Adjacency
}

// NewVertexField returns a mirror for a vertex that is not yet stored
func NewVertexField(id, label string) *VertexField {
	return &VertexField{
		ID:         id,
		Label:      label,
		Properties: make(map[string][]graph.PropertyValue),
	}
}

// Adjacency returns the mirror of dir
func (v *VertexField) Adjacency(dir graph.Direction) *Adjacency {
	if dir == graph.In {
		return &v.In
	}
	return &v.Out
}

// SetProperty sets a property value on the mirror only
func (v *VertexField) SetProperty(key string, value graph.PropertyValue, single bool) {
	v.view().SetProperty(key, value.Clone(), single)
}

// view wraps the property map so the document helpers can edit it in place
func (v *VertexField) view() *graph.VertexDocument {
	if v.Properties == nil {
		v.Properties = make(map[string][]graph.PropertyValue)
	}
	return &graph.VertexDocument{ID: v.ID, Properties: v.Properties}
}

func (v *VertexField) document() *graph.VertexDocument {
	doc := graph.NewVertexDocument(v.ID, v.Label)
	for key, values := range v.Properties {
		cloned := make([]graph.PropertyValue, len(values))
		for i, val := range values {
			cloned[i] = val.Clone()
		}
		doc.Properties[key] = cloned
	}
	return doc
}

// EdgeField mirrors one side of an edge: the copy stored with OwnerID in
// direction Direction.
type EdgeField struct {
	ID               string
	Label            string
	OwnerID          string
	OtherVertexID    string
	OtherVertexLabel string
	Direction        graph.Direction
	Properties       map[string]any
	// DocID is the overflow document holding this side, empty while inline
	// or unknown
	DocID   string
	Dropped bool
}

// NewEdgeSides returns the out side (owned by src) and the in side (owned
// by sink) of an edge. Each side is added by its own AddEdge operation.
func NewEdgeSides(id, label string, src, sink *VertexField, props map[string]any) (out, in *EdgeField) {
	out = &EdgeField{
		ID: id, Label: label,
		OwnerID: src.ID, OtherVertexID: sink.ID, OtherVertexLabel: sink.Label,
		Direction: graph.Out, Properties: cloneProps(props),
	}
	in = &EdgeField{
		ID: id, Label: label,
		OwnerID: sink.ID, OtherVertexID: src.ID, OtherVertexLabel: src.Label,
		Direction: graph.In, Properties: cloneProps(props),
	}
	return out, in
}

func (e *EdgeField) embedded() graph.EmbeddedEdge {
	return graph.EmbeddedEdge{
		ID:               e.ID,
		Label:            e.Label,
		OtherVertexID:    e.OtherVertexID,
		OtherVertexLabel: e.OtherVertexLabel,
		Properties:       cloneProps(e.Properties),
	}
}

// endpoints returns the source and sink vertex ids
func (e *EdgeField) endpoints() (src, sink string) {
	if e.Direction == graph.In {
		return e.OtherVertexID, e.OwnerID
	}
	return e.OwnerID, e.OtherVertexID
}

func cloneProps(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}
