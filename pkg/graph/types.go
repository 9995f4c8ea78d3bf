package graph

import "fmt"

// Direction selects one of a vertex's two adjacency lists.
type Direction int

const (
	// Out holds edges whose source is the owning vertex
	Out Direction = iota
	// In holds edges whose sink is the owning vertex
	In
)

// String returns the wire name of a direction
func (d Direction) String() string {
	switch d {
	case Out:
		return "out"
	case In:
		return "in"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Opposite returns the other direction
func (d Direction) Opposite() Direction {
	if d == Out {
		return In
	}
	return Out
}

// DirectionOf maps the wire-level "isReverse" flag to a Direction
func DirectionOf(isReverse bool) Direction {
	if isReverse {
		return In
	}
	return Out
}

// IsReverse reports whether d is the reverse (incoming) direction
func (d Direction) IsReverse() bool {
	return d == In
}

// PropertyValue is one value of a vertex property. Values carry their own id
// so that single values and their meta-properties can be addressed.
type PropertyValue struct {
	ID    string         `json:"id"`
	Value any            `json:"_value"`
	Meta  map[string]any `json:"_meta,omitempty"`
}

// Clone returns a copy that shares no maps with v
func (v PropertyValue) Clone() PropertyValue {
	out := PropertyValue{ID: v.ID, Value: v.Value}
	if v.Meta != nil {
		out.Meta = make(map[string]any, len(v.Meta))
		for k, m := range v.Meta {
			out.Meta[k] = m
		}
	}
	return out
}

// EmbeddedEdge is one side of an edge as stored next to the vertex that owns it.
// Only the opposite vertex is recorded; the owner is implied by the container.
type EmbeddedEdge struct {
	ID               string         `json:"id"`
	Label            string         `json:"label,omitempty"`
	OtherVertexID    string         `json:"_otherV,omitempty"`
	OtherVertexLabel string         `json:"_otherVLabel,omitempty"`
	Properties       map[string]any `json:"properties,omitempty"`
}

// Clone returns a deep-enough copy of the edge (property values are scalars)
func (e EmbeddedEdge) Clone() EmbeddedEdge {
	out := e
	if e.Properties != nil {
		out.Properties = make(map[string]any, len(e.Properties))
		for k, v := range e.Properties {
			out.Properties[k] = v
		}
	}
	return out
}

// VertexDocument is the stored form of a vertex. The id doubles as the partition key.
//
// When a direction is spilled its edge array holds a single placeholder whose
// ID names the latest overflow document. The one exception is a spilled
// direction whose last overflow document was emptied and deleted: the array
// is then empty, the direction stays spilled, and the next edge added gets a
// fresh overflow document that the placeholder points at again.
type VertexDocument struct {
	ID         string                     `json:"id"`
	Partition  string                     `json:"_partition"`
	Label      string                     `json:"label"`
	Properties map[string][]PropertyValue `json:"properties,omitempty"`
	OutEdges   []EmbeddedEdge             `json:"_edge"`
	InEdges    []EmbeddedEdge             `json:"_reverse_edge"`
	OutSpilled bool                       `json:"_edgeSpilled"`
	InSpilled  bool                       `json:"_reverseEdgeSpilled"`
}

// NewVertexDocument returns an empty inline vertex
func NewVertexDocument(id, label string) *VertexDocument {
	return &VertexDocument{
		ID:         id,
		Partition:  id,
		Label:      label,
		Properties: make(map[string][]PropertyValue),
		OutEdges:   []EmbeddedEdge{},
		InEdges:    []EmbeddedEdge{},
	}
}

// OverflowDocument holds part of one vertex's adjacency for one direction.
// ID is the host-assigned document id and is not stored in the body.
type OverflowDocument struct {
	ID        string         `json:"-"`
	Partition string         `json:"_partition"`
	VertexID  string         `json:"_vertexId"`
	IsReverse bool           `json:"_isReverse"`
	Edges     []EmbeddedEdge `json:"_edge"`
}

// NewOverflowDocument creates an overflow document for vertexID/dir. The id is
// left empty so the host assigns one.
func NewOverflowDocument(vertexID string, dir Direction, edges []EmbeddedEdge) *OverflowDocument {
	return &OverflowDocument{
		Partition: vertexID,
		VertexID:  vertexID,
		IsReverse: dir.IsReverse(),
		Edges:     edges,
	}
}

// Direction returns the adjacency direction this document belongs to
func (d *OverflowDocument) Direction() Direction {
	return DirectionOf(d.IsReverse)
}

// Field names used when querying overflow documents
const (
	FieldOverflowVertexID = "_vertexId"
)
