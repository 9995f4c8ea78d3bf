package protocol

import (
	"github.com/dd0wney/cluso-docgraph/pkg/graph"
)

// OpKind tags an operation descriptor on the wire
type OpKind string

const (
	OpAddVertex                            OpKind = "AddV"
	OpAddEdge                              OpKind = "AddE"
	OpDropVertexProperty                   OpKind = "DropVP"
	OpDropVertexSingleProperty             OpKind = "DropVSP"
	OpDropVertexSinglePropertyMetaProperty OpKind = "DropVSPMP"
	OpDropEdge                             OpKind = "DropE"
	OpDropEdgeProperty                     OpKind = "DropEP"
	OpUpdateVertexProperty                 OpKind = "UpdateVP"
	OpUpdateEdgeProperty                   OpKind = "UpdateEP"
)

// Kinds lists every known tag
var Kinds = []OpKind{
	OpAddVertex,
	OpAddEdge,
	OpDropVertexProperty,
	OpDropVertexSingleProperty,
	OpDropVertexSinglePropertyMetaProperty,
	OpDropEdge,
	OpDropEdgeProperty,
	OpUpdateVertexProperty,
	OpUpdateEdgeProperty,
}

// Known reports whether k is a recognised tag
func (k OpKind) Known() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// AddVertexArgs creates a vertex document
type AddVertexArgs struct {
	Vertex *graph.VertexDocument `json:"vertex" validate:"required"`
}

// AddEdgeArgs adds one side of an edge. The owning vertex is SrcID for an
// out-edge and SinkID for an in-edge.
type AddEdgeArgs struct {
	SrcID          string             `json:"srcV" validate:"required"`
	SinkID         string             `json:"sinkV" validate:"required"`
	IsReverse      bool               `json:"isReverse"`
	SpillThreshold int                `json:"spillThreshold,omitempty" validate:"gte=0"`
	Edge           graph.EmbeddedEdge `json:"edge"`
}

// OwnerID returns the vertex whose adjacency receives the edge
func (a *AddEdgeArgs) OwnerID() string {
	if a.IsReverse {
		return a.SinkID
	}
	return a.SrcID
}

// AddEdgeResult reports where the new edge landed. FirstSpillDocID is set
// only when this insertion spilled the direction; EdgeDocID is empty while the
// direction is still inline.
type AddEdgeResult struct {
	FirstSpillDocID string `json:"firstSpillEdgeDocId,omitempty"`
	EdgeDocID       string `json:"edgeDocId,omitempty"`
}

// DropVertexPropertyArgs removes every value of a property
type DropVertexPropertyArgs struct {
	VertexID     string `json:"vertexId" validate:"required"`
	PropertyName string `json:"propertyName" validate:"required"`
}

// DropVertexSinglePropertyArgs removes one value of a property
type DropVertexSinglePropertyArgs struct {
	VertexID     string `json:"vertexId" validate:"required"`
	PropertyName string `json:"propertyName" validate:"required"`
	PropertyID   string `json:"propertyId" validate:"required"`
}

// DropVertexSinglePropertyMetaPropertyArgs removes one meta-property
type DropVertexSinglePropertyMetaPropertyArgs struct {
	VertexID     string `json:"vertexId" validate:"required"`
	PropertyName string `json:"propertyName" validate:"required"`
	PropertyID   string `json:"propertyId" validate:"required"`
	MetaKey      string `json:"metaName" validate:"required"`
}

// FoundResult is returned by the vertex property drops
type FoundResult struct {
	Found bool `json:"found"`
}

// DropEdgeArgs removes one side of an edge. EdgeDocID is the overflow
// document the caller believes holds the edge, if known.
type DropEdgeArgs struct {
	VertexID  string `json:"vertexId" validate:"required"`
	EdgeID    string `json:"edgeId" validate:"required"`
	EdgeDocID string `json:"edgeDocId,omitempty"`
	IsReverse bool   `json:"isReverse"`
}

// DropEdgePropertyArgs removes named properties from one side of an edge
type DropEdgePropertyArgs struct {
	DropEdgeArgs
	PropertyNames []string `json:"dropProperties" validate:"required,min=1,dive,required"`
}

// DropEdgeResult is returned by DropEdge and DropEdgeProperty
type DropEdgeResult struct {
	Found         bool   `json:"found"`
	OtherVertexID string `json:"oppoSideVId,omitempty"`
}

// UpdateEdgePropertyArgs merges properties into one side of an edge
type UpdateEdgePropertyArgs struct {
	DropEdgeArgs
	Properties     map[string]any `json:"updateProperties" validate:"required,min=1"`
	SpillThreshold int            `json:"spillThreshold,omitempty" validate:"gte=0"`
}

// UpdateEdgePropertyResult has two shapes: WasSpilled selects whether
// NewEdgeDocID or the inline spill fields are meaningful.
type UpdateEdgePropertyResult struct {
	WasSpilled   bool   `json:"wasSpilled"`
	NewEdgeDocID string `json:"newEdgeDocId,omitempty"`
	DidSpill     bool   `json:"didSpill,omitempty"`
	FirstDocID   string `json:"firstEdgeDocId,omitempty"`
	LatestDocID  string `json:"latestEdgeDocId,omitempty"`
}

// PropertyUpdate is one vertex property assignment
type PropertyUpdate struct {
	Single bool                `json:"single"`
	Key    string              `json:"key" validate:"required"`
	Value  graph.PropertyValue `json:"value"`
}

// UpdateVertexPropertyArgs applies property updates in order
type UpdateVertexPropertyArgs struct {
	VertexID string           `json:"vertexId" validate:"required"`
	Updates  []PropertyUpdate `json:"updates" validate:"required,min=1,dive"`
}

// SpillReport describes one direction spilled while fitting a vertex.
// NewestEdgeID is the edge at the end of the chain, now alone in LatestDocID.
type SpillReport struct {
	IsReverse    bool   `json:"isReverse"`
	FirstDocID   string `json:"firstEdgeDocId"`
	LatestDocID  string `json:"latestEdgeDocId"`
	NewestEdgeID string `json:"newestEdgeId"`
}

// UpdateVertexPropertyResult reports the spills the update forced, in order
type UpdateVertexPropertyResult struct {
	Spills []SpillReport `json:"spills,omitempty"`
}

// DidSpill reports whether any direction spilled
func (r *UpdateVertexPropertyResult) DidSpill() bool {
	return len(r.Spills) > 0
}
