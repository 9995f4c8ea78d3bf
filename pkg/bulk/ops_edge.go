package bulk

import (
	"encoding/json"
	"fmt"

	"github.com/dd0wney/cluso-docgraph/pkg/protocol"
)

// edgeOp is the part shared by the operations on one side of an edge
type edgeOp struct {
	owner    *VertexField
	edge     *EdgeField
	expected map[string]*string
}

func newEdgeOp(cache *VersionCache, owner *VertexField, edge *EdgeField, docIDs ...string) edgeOp {
	ids := append([]string{owner.ID}, docIDs...)
	return edgeOp{owner: owner, edge: edge, expected: expect(cache, ids...)}
}

func (o *edgeOp) Preconditions() map[string]*string { return o.expected }

func (o *edgeOp) check() error {
	switch {
	case o.owner == nil || o.edge == nil:
		return fmt.Errorf("owner and edge are required")
	case o.edge.ID == "":
		return fmt.Errorf("edge id is required")
	case o.edge.OwnerID != o.owner.ID:
		return fmt.Errorf("edge %s belongs to %s, not %s", o.edge.ID, o.edge.OwnerID, o.owner.ID)
	}
	return nil
}

func (o *edgeOp) adjacency() *Adjacency {
	return o.owner.Adjacency(o.edge.Direction)
}

func (o *edgeOp) dropArgs() protocol.DropEdgeArgs {
	return protocol.DropEdgeArgs{
		VertexID:  o.edge.OwnerID,
		EdgeID:    o.edge.ID,
		EdgeDocID: o.edge.DocID,
		IsReverse: o.edge.Direction.IsReverse(),
	}
}

// dropResult decodes a DropEdgeResult and checks it against the mirror
func (o *edgeOp) dropResult(raw json.RawMessage, etags map[string]*string) (protocol.DropEdgeResult, error) {
	var r protocol.DropEdgeResult
	if err := decodeResult(raw, &r); err != nil {
		return r, err
	}
	if err := requireToken(etags, o.owner.ID); err != nil {
		return r, err
	}
	if r.Found && o.edge.OtherVertexID != "" && r.OtherVertexID != o.edge.OtherVertexID {
		return r, inconsistent("edge %s connects to %s, expected %s", o.edge.ID, r.OtherVertexID, o.edge.OtherVertexID)
	}
	return r, nil
}

// forgetDeleted clears cached document ids the response reports deleted
func (o *edgeOp) forgetDeleted(etags map[string]*string) {
	if adj := o.adjacency(); adj.LatestDocID != "" && deleted(etags, adj.LatestDocID) {
		adj.LatestDocID = ""
	}
	if o.edge.DocID != "" && deleted(etags, o.edge.DocID) {
		o.edge.DocID = ""
	}
}

// AddEdge adds one side of an edge to its owner. A bidirectional edge needs
// one AddEdge per side.
type AddEdge struct {
	edgeOp
	threshold int
}

// NewAddEdge adds edge to owner. threshold is the edge-count spill
// threshold; zero leaves spilling to the document size limit.
func NewAddEdge(cache *VersionCache, owner *VertexField, edge *EdgeField, threshold int) *AddEdge {
	var latest string
	if adj := owner.Adjacency(edge.Direction); adj.Spilled {
		latest = adj.LatestDocID
	}
	return &AddEdge{edgeOp: newEdgeOp(cache, owner, edge, latest), threshold: threshold}
}

func (o *AddEdge) Kind() protocol.OpKind { return protocol.OpAddEdge }

func (o *AddEdge) Args() any {
	src, sink := o.edge.endpoints()
	return &protocol.AddEdgeArgs{
		SrcID:          src,
		SinkID:         sink,
		IsReverse:      o.edge.Direction.IsReverse(),
		SpillThreshold: o.threshold,
		Edge:           o.edge.embedded(),
	}
}

func (o *AddEdge) Callback(raw json.RawMessage, etags map[string]*string) error {
	var r protocol.AddEdgeResult
	if err := decodeResult(raw, &r); err != nil {
		return err
	}
	if err := requireToken(etags, o.owner.ID); err != nil {
		return err
	}
	if r.FirstSpillDocID != "" {
		if r.EdgeDocID == "" {
			return inconsistent("edge %s spilled without a latest document", o.edge.ID)
		}
		if err := requireReported(etags, r.FirstSpillDocID); err != nil {
			return err
		}
	}
	if r.EdgeDocID != "" {
		if err := requireReported(etags, r.EdgeDocID); err != nil {
			return err
		}
	}

	adj := o.adjacency()
	if r.EdgeDocID != "" {
		adj.Spilled = true
		adj.LatestDocID = r.EdgeDocID
	}
	adj.NewestEdgeID = o.edge.ID
	o.edge.DocID = r.EdgeDocID
	o.edge.Dropped = false
	o.forgetDeleted(etags)
	return nil
}

// DropEdge removes one side of an edge
type DropEdge struct {
	edgeOp
}

// NewDropEdge drops edge from owner
func NewDropEdge(cache *VersionCache, owner *VertexField, edge *EdgeField) *DropEdge {
	return &DropEdge{edgeOp: newEdgeOp(cache, owner, edge, edge.DocID)}
}

func (o *DropEdge) Kind() protocol.OpKind { return protocol.OpDropEdge }

func (o *DropEdge) Args() any {
	args := o.dropArgs()
	return &args
}

func (o *DropEdge) Callback(raw json.RawMessage, etags map[string]*string) error {
	r, err := o.dropResult(raw, etags)
	if err != nil {
		return err
	}
	o.forgetDeleted(etags)
	if r.Found {
		o.edge.Dropped = true
		o.edge.DocID = ""
		if adj := o.adjacency(); adj.NewestEdgeID == o.edge.ID {
			adj.NewestEdgeID = ""
		}
	}
	return nil
}

// DropEdgeProperty removes named properties from one side of an edge
type DropEdgeProperty struct {
	edgeOp
	names []string
}

// NewDropEdgeProperty drops names from edge
func NewDropEdgeProperty(cache *VersionCache, owner *VertexField, edge *EdgeField, names ...string) *DropEdgeProperty {
	return &DropEdgeProperty{edgeOp: newEdgeOp(cache, owner, edge, edge.DocID), names: names}
}

func (o *DropEdgeProperty) Kind() protocol.OpKind { return protocol.OpDropEdgeProperty }

func (o *DropEdgeProperty) Args() any {
	return &protocol.DropEdgePropertyArgs{DropEdgeArgs: o.dropArgs(), PropertyNames: o.names}
}

func (o *DropEdgeProperty) Callback(raw json.RawMessage, etags map[string]*string) error {
	r, err := o.dropResult(raw, etags)
	if err != nil {
		return err
	}
	if r.Found {
		for _, name := range o.names {
			delete(o.edge.Properties, name)
		}
	}
	return nil
}

// UpdateEdgeProperty merges properties into one side of an edge. The edge
// moves to the end of its direction and may change document.
type UpdateEdgeProperty struct {
	edgeOp
	props     map[string]any
	threshold int
}

// NewUpdateEdgeProperty merges props into edge
func NewUpdateEdgeProperty(cache *VersionCache, owner *VertexField, edge *EdgeField, props map[string]any, threshold int) *UpdateEdgeProperty {
	return &UpdateEdgeProperty{
		edgeOp:    newEdgeOp(cache, owner, edge, edge.DocID),
		props:     cloneProps(props),
		threshold: threshold,
	}
}

func (o *UpdateEdgeProperty) Kind() protocol.OpKind { return protocol.OpUpdateEdgeProperty }

func (o *UpdateEdgeProperty) Args() any {
	return &protocol.UpdateEdgePropertyArgs{
		DropEdgeArgs:   o.dropArgs(),
		Properties:     o.props,
		SpillThreshold: o.threshold,
	}
}

func (o *UpdateEdgeProperty) Callback(raw json.RawMessage, etags map[string]*string) error {
	var r protocol.UpdateEdgePropertyResult
	if err := decodeResult(raw, &r); err != nil {
		return err
	}
	if err := requireToken(etags, o.owner.ID); err != nil {
		return err
	}

	var docID string
	switch {
	case r.WasSpilled:
		if r.NewEdgeDocID == "" {
			return inconsistent("spilled edge %s has no document", o.edge.ID)
		}
		if err := requireReported(etags, r.NewEdgeDocID); err != nil {
			return err
		}
		docID = r.NewEdgeDocID
	case r.DidSpill:
		if err := requireReported(etags, r.FirstDocID); err != nil {
			return err
		}
		if err := requireReported(etags, r.LatestDocID); err != nil {
			return err
		}
		docID = r.LatestDocID
	}

	adj := o.adjacency()
	if docID != "" {
		adj.Spilled = true
		adj.LatestDocID = docID
	}
	adj.NewestEdgeID = o.edge.ID
	o.edge.DocID = docID
	o.forgetDeleted(etags)
	if o.edge.Properties == nil {
		o.edge.Properties = make(map[string]any, len(o.props))
	}
	for k, v := range o.props {
		o.edge.Properties[k] = v
	}
	return nil
}
