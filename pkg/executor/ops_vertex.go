package executor

import (
	"github.com/dd0wney/cluso-docgraph/pkg/docstore"
	"github.com/dd0wney/cluso-docgraph/pkg/graph"
	"github.com/dd0wney/cluso-docgraph/pkg/protocol"
)

// addVertex creates the vertex document. The caller learns the new token
// from the response's token map, so the result is null.
func (b *batch) addVertex(args *protocol.AddVertexArgs) (any, error) {
	v := *args.Vertex
	v.Partition = v.ID
	v.SetEdges(graph.Out, v.OutEdges)
	v.SetEdges(graph.In, v.InEdges)

	body, err := graph.MarshalVertex(&v)
	if err != nil {
		return nil, internalf(err, "cannot encode vertex %s", v.ID)
	}
	if _, err := b.create(&docstore.Document{ID: v.ID, PartitionKey: v.ID, Body: body}, false); err != nil {
		return nil, err
	}
	return nil, nil
}

func (b *batch) dropVertexProperty(args *protocol.DropVertexPropertyArgs) (any, error) {
	return b.mutateVertex(args.VertexID, func(v *graph.VertexDocument) bool {
		return v.DropProperty(args.PropertyName)
	})
}

func (b *batch) dropVertexSingleProperty(args *protocol.DropVertexSinglePropertyArgs) (any, error) {
	return b.mutateVertex(args.VertexID, func(v *graph.VertexDocument) bool {
		return v.DropPropertyValue(args.PropertyName, args.PropertyID)
	})
}

func (b *batch) dropVertexSinglePropertyMetaProperty(args *protocol.DropVertexSinglePropertyMetaPropertyArgs) (any, error) {
	return b.mutateVertex(args.VertexID, func(v *graph.VertexDocument) bool {
		return v.DropMetaProperty(args.PropertyName, args.PropertyID, args.MetaKey)
	})
}

// mutateVertex applies a shrinking change and stores the vertex only when
// the change found something to remove.
func (b *batch) mutateVertex(id string, drop func(*graph.VertexDocument) bool) (any, error) {
	v, err := b.loadVertex(id)
	if err != nil {
		return nil, err
	}
	if !drop(v) {
		return &protocol.FoundResult{Found: false}, nil
	}
	if err := b.storeVertex(v); err != nil {
		return nil, err
	}
	return &protocol.FoundResult{Found: true}, nil
}

// updateVertexProperty applies the updates in order, then stores the vertex,
// spilling adjacency until it fits.
func (b *batch) updateVertexProperty(args *protocol.UpdateVertexPropertyArgs) (any, error) {
	v, err := b.loadVertex(args.VertexID)
	if err != nil {
		return nil, err
	}
	for _, u := range args.Updates {
		v.SetProperty(u.Key, u.Value.Clone(), u.Single)
	}

	reports, err := b.persistVertex(v, nil)
	if err != nil {
		return nil, err
	}

	result := &protocol.UpdateVertexPropertyResult{}
	for _, r := range reports {
		result.Spills = append(result.Spills, protocol.SpillReport{
			IsReverse:    r.dir.IsReverse(),
			FirstDocID:   r.firstDocID,
			LatestDocID:  r.latestDocID,
			NewestEdgeID: r.newestEdgeID,
		})
	}
	return result, nil
}
