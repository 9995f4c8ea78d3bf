package executor

import (
	"github.com/dd0wney/cluso-docgraph/pkg/graph"
	"github.com/dd0wney/cluso-docgraph/pkg/protocol"
	"github.com/dd0wney/cluso-docgraph/pkg/spill"
)

// addEdge adds one side of an edge to its owning vertex
func (b *batch) addEdge(args *protocol.AddEdgeArgs) (any, error) {
	dir := graph.DirectionOf(args.IsReverse)
	owner := args.OwnerID()
	threshold := b.exec.threshold(args.SpillThreshold)

	edge := args.Edge.Clone()
	if edge.OtherVertexID == "" {
		edge.OtherVertexID = args.SinkID
		if args.IsReverse {
			edge.OtherVertexID = args.SrcID
		}
	}

	v, err := b.loadVertex(owner)
	if err != nil {
		return nil, err
	}

	if v.Spilled(dir) {
		docID, err := b.appendSpilled(v, dir, edge, threshold)
		if err != nil {
			return nil, err
		}
		return &protocol.AddEdgeResult{EdgeDocID: docID}, nil
	}

	if graph.IndexOfEdge(v.Edges(dir), edge.ID) >= 0 {
		return nil, assertf("edge %s already present on vertex %s", edge.ID, owner)
	}
	v.SetEdges(dir, graph.AppendEdge(v.Edges(dir), edge))

	reports, err := b.storeInline(v, dir, threshold)
	if err != nil {
		return nil, err
	}
	result := &protocol.AddEdgeResult{}
	if r, ok := reportFor(reports, dir); ok {
		result.FirstSpillDocID = r.firstDocID
		result.EdgeDocID = r.latestDocID
	}
	return result, nil
}

// storeInline persists v after its inline dir array changed: the threshold
// spills dir outright, otherwise dir is the first candidate if v is too large.
func (b *batch) storeInline(v *graph.VertexDocument, dir graph.Direction, threshold int) ([]spillReport, error) {
	if spill.InlineExceeded(len(v.Edges(dir)), threshold) {
		report, err := b.spillDirection(v, dir, spill.ReasonThreshold)
		if err != nil {
			return nil, err
		}
		more, err := b.persistVertex(v, nil)
		if err != nil {
			return nil, err
		}
		return append([]spillReport{report}, more...), nil
	}
	return b.persistVertex(v, &dir)
}

func reportFor(reports []spillReport, dir graph.Direction) (spillReport, bool) {
	for _, r := range reports {
		if r.dir == dir {
			return r, true
		}
	}
	return spillReport{}, false
}

// dropEdge removes one side of an edge
func (b *batch) dropEdge(args *protocol.DropEdgeArgs) (any, error) {
	return b.editEdge(args, func(e *graph.EmbeddedEdge) (remove, changed bool) {
		return true, true
	})
}

// dropEdgeProperty removes named properties from one side of an edge in place
func (b *batch) dropEdgeProperty(args *protocol.DropEdgePropertyArgs) (any, error) {
	return b.editEdge(&args.DropEdgeArgs, func(e *graph.EmbeddedEdge) (remove, changed bool) {
		for _, name := range args.PropertyNames {
			if _, ok := e.Properties[name]; ok {
				delete(e.Properties, name)
				changed = true
			}
		}
		return false, changed
	})
}

// editEdge finds an edge and either removes it or edits it in place. The
// container is stored only when edit reports a change.
func (b *batch) editEdge(args *protocol.DropEdgeArgs, edit func(*graph.EmbeddedEdge) (remove, changed bool)) (any, error) {
	dir := graph.DirectionOf(args.IsReverse)
	v, err := b.loadVertex(args.VertexID)
	if err != nil {
		return nil, err
	}

	if !v.Spilled(dir) {
		edges := v.Edges(dir)
		i := graph.IndexOfEdge(edges, args.EdgeID)
		if i < 0 {
			return &protocol.DropEdgeResult{Found: false}, nil
		}
		result := &protocol.DropEdgeResult{Found: true, OtherVertexID: edges[i].OtherVertexID}

		edge := edges[i].Clone()
		remove, changed := edit(&edge)
		switch {
		case remove:
			v.SetEdges(dir, graph.RemoveEdgeAt(edges, i))
		case changed:
			edges[i] = edge
		default:
			return result, nil
		}
		if err := b.storeVertex(v); err != nil {
			return nil, err
		}
		return result, nil
	}

	container, i, err := b.locateEdge(v, dir, args.EdgeID, args.EdgeDocID)
	if err != nil {
		return nil, err
	}
	if container == nil {
		return &protocol.DropEdgeResult{Found: false}, nil
	}
	result := &protocol.DropEdgeResult{Found: true, OtherVertexID: container.Edges[i].OtherVertexID}

	edge := container.Edges[i].Clone()
	remove, changed := edit(&edge)
	switch {
	case remove:
		container.Edges = graph.RemoveEdgeAt(container.Edges, i)
		if err := b.releaseOverflow(v, dir, container); err != nil {
			return nil, err
		}
	case changed:
		container.Edges[i] = edge
		if err := b.storeOverflow(container); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// updateEdgeProperty merges properties into one side of an edge and moves it
// to the end of its direction, where new edges are added.
func (b *batch) updateEdgeProperty(args *protocol.UpdateEdgePropertyArgs) (any, error) {
	dir := graph.DirectionOf(args.IsReverse)
	threshold := b.exec.threshold(args.SpillThreshold)

	v, err := b.loadVertex(args.VertexID)
	if err != nil {
		return nil, err
	}

	if !v.Spilled(dir) {
		edges := v.Edges(dir)
		i := graph.IndexOfEdge(edges, args.EdgeID)
		if i < 0 {
			return nil, assertf("edge %s not found on vertex %s (%s)", args.EdgeID, v.ID, dir)
		}
		edge := mergeProperties(edges[i], args.Properties)
		v.SetEdges(dir, graph.AppendEdge(graph.RemoveEdgeAt(edges, i), edge))

		reports, err := b.storeInline(v, dir, threshold)
		if err != nil {
			return nil, err
		}
		result := &protocol.UpdateEdgePropertyResult{}
		if r, ok := reportFor(reports, dir); ok {
			result.DidSpill = true
			result.FirstDocID = r.firstDocID
			result.LatestDocID = r.latestDocID
		}
		return result, nil
	}

	container, i, err := b.locateEdge(v, dir, args.EdgeID, args.EdgeDocID)
	if err != nil {
		return nil, err
	}
	if container == nil {
		return nil, assertf("edge %s not found on vertex %s (%s)", args.EdgeID, v.ID, dir)
	}
	edge := mergeProperties(container.Edges[i], args.Properties)
	container.Edges = graph.RemoveEdgeAt(container.Edges, i)

	var docID string
	if container.ID == v.LatestDocID(dir) {
		docID, err = b.rehomeInLatest(v, dir, container, edge, threshold)
	} else {
		if err := b.persistOverflow(container); err != nil {
			return nil, err
		}
		docID, err = b.appendSpilled(v, dir, edge, threshold)
	}
	if err != nil {
		return nil, err
	}
	return &protocol.UpdateEdgePropertyResult{WasSpilled: true, NewEdgeDocID: docID}, nil
}

// rehomeInLatest puts edge back at the end of latest, which it was just
// removed from. If latest cannot take it, the edge gets a new latest
// document and the old one keeps only what is left.
func (b *batch) rehomeInLatest(v *graph.VertexDocument, dir graph.Direction, latest *graph.OverflowDocument, edge graph.EmbeddedEdge, threshold int) (string, error) {
	docID, moved, err := b.homeEdge(v.ID, dir, latest, edge, threshold)
	if err != nil {
		return "", err
	}
	if !moved {
		return docID, nil
	}
	if err := b.persistOverflow(latest); err != nil {
		return "", err
	}
	return docID, b.repoint(v, dir, docID)
}

func mergeProperties(e graph.EmbeddedEdge, props map[string]any) graph.EmbeddedEdge {
	out := e.Clone()
	if out.Properties == nil {
		out.Properties = make(map[string]any, len(props))
	}
	for k, val := range props {
		out.Properties[k] = val
	}
	return out
}
