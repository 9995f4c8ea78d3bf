package bulk

import (
	"encoding/json"
	"fmt"

	"github.com/dd0wney/cluso-docgraph/pkg/graph"
	"github.com/dd0wney/cluso-docgraph/pkg/protocol"
)

// AddVertex stores a new vertex built from its mirror
type AddVertex struct {
	vertex *VertexField
}

// NewAddVertex adds v. A new vertex has no preconditions.
func NewAddVertex(v *VertexField) *AddVertex {
	return &AddVertex{vertex: v}
}

func (o *AddVertex) Kind() protocol.OpKind { return protocol.OpAddVertex }

func (o *AddVertex) Args() any {
	return &protocol.AddVertexArgs{Vertex: o.vertex.document()}
}

func (o *AddVertex) Preconditions() map[string]*string { return nil }

func (o *AddVertex) Callback(_ json.RawMessage, etags map[string]*string) error {
	return requireToken(etags, o.vertex.ID)
}

func (o *AddVertex) check() error {
	if o.vertex == nil || o.vertex.ID == "" {
		return fmt.Errorf("AddVertex: vertex id is required")
	}
	return nil
}

// vertexOp is the part shared by the operations that edit one vertex
type vertexOp struct {
	vertex   *VertexField
	expected map[string]*string
}

func newVertexOp(cache *VersionCache, v *VertexField) vertexOp {
	return vertexOp{vertex: v, expected: expect(cache, v.ID)}
}

func (o *vertexOp) Preconditions() map[string]*string { return o.expected }

func (o *vertexOp) check() error {
	if o.vertex == nil || o.vertex.ID == "" {
		return fmt.Errorf("vertex id is required")
	}
	return nil
}

// found decodes a FoundResult and checks the vertex is accounted for
func (o *vertexOp) found(raw json.RawMessage, etags map[string]*string) (bool, error) {
	var r protocol.FoundResult
	if err := decodeResult(raw, &r); err != nil {
		return false, err
	}
	if err := requireToken(etags, o.vertex.ID); err != nil {
		return false, err
	}
	return r.Found, nil
}

// DropVertexProperty removes every value of a property
type DropVertexProperty struct {
	vertexOp
	key string
}

// NewDropVertexProperty drops key from v
func NewDropVertexProperty(cache *VersionCache, v *VertexField, key string) *DropVertexProperty {
	return &DropVertexProperty{vertexOp: newVertexOp(cache, v), key: key}
}

func (o *DropVertexProperty) Kind() protocol.OpKind { return protocol.OpDropVertexProperty }

func (o *DropVertexProperty) Args() any {
	return &protocol.DropVertexPropertyArgs{VertexID: o.vertex.ID, PropertyName: o.key}
}

func (o *DropVertexProperty) Callback(raw json.RawMessage, etags map[string]*string) error {
	found, err := o.found(raw, etags)
	if err == nil && found {
		o.vertex.view().DropProperty(o.key)
	}
	return err
}

// DropVertexSingleProperty removes one value of a property
type DropVertexSingleProperty struct {
	vertexOp
	key, valueID string
}

// NewDropVertexSingleProperty drops the value valueID of key from v
func NewDropVertexSingleProperty(cache *VersionCache, v *VertexField, key, valueID string) *DropVertexSingleProperty {
	return &DropVertexSingleProperty{vertexOp: newVertexOp(cache, v), key: key, valueID: valueID}
}

func (o *DropVertexSingleProperty) Kind() protocol.OpKind {
	return protocol.OpDropVertexSingleProperty
}

func (o *DropVertexSingleProperty) Args() any {
	return &protocol.DropVertexSinglePropertyArgs{VertexID: o.vertex.ID, PropertyName: o.key, PropertyID: o.valueID}
}

func (o *DropVertexSingleProperty) Callback(raw json.RawMessage, etags map[string]*string) error {
	found, err := o.found(raw, etags)
	if err == nil && found {
		o.vertex.view().DropPropertyValue(o.key, o.valueID)
	}
	return err
}

// DropVertexMetaProperty removes one meta-property of a property value
type DropVertexMetaProperty struct {
	vertexOp
	key, valueID, metaKey string
}

// NewDropVertexMetaProperty drops metaKey from the value valueID of key
func NewDropVertexMetaProperty(cache *VersionCache, v *VertexField, key, valueID, metaKey string) *DropVertexMetaProperty {
	return &DropVertexMetaProperty{vertexOp: newVertexOp(cache, v), key: key, valueID: valueID, metaKey: metaKey}
}

func (o *DropVertexMetaProperty) Kind() protocol.OpKind {
	return protocol.OpDropVertexSinglePropertyMetaProperty
}

func (o *DropVertexMetaProperty) Args() any {
	return &protocol.DropVertexSinglePropertyMetaPropertyArgs{
		VertexID:     o.vertex.ID,
		PropertyName: o.key,
		PropertyID:   o.valueID,
		MetaKey:      o.metaKey,
	}
}

func (o *DropVertexMetaProperty) Callback(raw json.RawMessage, etags map[string]*string) error {
	found, err := o.found(raw, etags)
	if err == nil && found {
		o.vertex.view().DropMetaProperty(o.key, o.valueID, o.metaKey)
	}
	return err
}

// UpdateVertexProperty applies property updates in order. The vertex may
// spill one or both directions to make room.
type UpdateVertexProperty struct {
	vertexOp
	updates []protocol.PropertyUpdate
}

// NewUpdateVertexProperty applies updates to v
func NewUpdateVertexProperty(cache *VersionCache, v *VertexField, updates ...protocol.PropertyUpdate) *UpdateVertexProperty {
	return &UpdateVertexProperty{vertexOp: newVertexOp(cache, v), updates: updates}
}

// SingleValue builds an update that replaces every value of key
func SingleValue(key string, value graph.PropertyValue) protocol.PropertyUpdate {
	return protocol.PropertyUpdate{Single: true, Key: key, Value: value}
}

// ListValue builds an update that appends value to key, or replaces the
// value with the same id
func ListValue(key string, value graph.PropertyValue) protocol.PropertyUpdate {
	return protocol.PropertyUpdate{Key: key, Value: value}
}

func (o *UpdateVertexProperty) Kind() protocol.OpKind { return protocol.OpUpdateVertexProperty }

func (o *UpdateVertexProperty) Args() any {
	return &protocol.UpdateVertexPropertyArgs{VertexID: o.vertex.ID, Updates: o.updates}
}

func (o *UpdateVertexProperty) Callback(raw json.RawMessage, etags map[string]*string) error {
	var r protocol.UpdateVertexPropertyResult
	if err := decodeResult(raw, &r); err != nil {
		return err
	}
	if err := requireToken(etags, o.vertex.ID); err != nil {
		return err
	}
	for _, s := range r.Spills {
		if err := requireReported(etags, s.FirstDocID); err != nil {
			return err
		}
		if err := requireReported(etags, s.LatestDocID); err != nil {
			return err
		}
	}

	for _, u := range o.updates {
		o.vertex.SetProperty(u.Key, u.Value, u.Single)
	}
	for _, s := range r.Spills {
		adj := o.vertex.Adjacency(graph.DirectionOf(s.IsReverse))
		adj.Spilled = true
		adj.LatestDocID = s.LatestDocID
		adj.NewestEdgeID = s.NewestEdgeID
		if deleted(etags, s.LatestDocID) {
			adj.LatestDocID = ""
		}
	}
	return nil
}
