// Package spill decides when a vertex's inline adjacency moves into overflow
// documents, which direction goes first, and where edges land once it has.
//
// Nothing here touches a document store; the executor applies the decisions.
package spill

import (
	"github.com/dd0wney/cluso-docgraph/pkg/graph"
)

// Reason records what forced a spill or a new overflow document
type Reason string

const (
	// ReasonThreshold means the per-document edge count was reached
	ReasonThreshold Reason = "threshold"
	// ReasonTooLarge means the host refused the document as too large
	ReasonTooLarge Reason = "too_large"
)

// InlineExceeded reports whether an inline array that now holds count edges
// (after the append) has reached the edge-count threshold. A threshold of
// zero disables the count trigger.
func InlineExceeded(count, threshold int) bool {
	return threshold > 0 && count >= threshold
}

// LatestFull reports whether the latest overflow document, currently holding
// count edges, must be left alone and a new singleton document started
// instead of appending to it.
func LatestFull(count, threshold int) bool {
	return threshold > 0 && count >= threshold
}

// ChooseDirection picks the direction to spill when the vertex document does
// not fit. prefer is tried first when it is still inline and has edges. After
// that: if one direction is spilled, the other; otherwise the larger encoded
// adjacency, with ties going to Out. ok is false when no inline direction has
// an edge left to move.
func ChooseDirection(v *graph.VertexDocument, prefer *graph.Direction) (dir graph.Direction, ok bool) {
	if prefer != nil && spillable(v, *prefer) {
		return *prefer, true
	}

	outOK, inOK := spillable(v, graph.Out), spillable(v, graph.In)
	switch {
	case outOK && inOK:
		if graph.EncodedSize(v.InEdges) > graph.EncodedSize(v.OutEdges) {
			return graph.In, true
		}
		return graph.Out, true
	case outOK:
		return graph.Out, true
	case inOK:
		return graph.In, true
	default:
		return graph.Out, false
	}
}

func spillable(v *graph.VertexDocument, dir graph.Direction) bool {
	return !v.Spilled(dir) && len(v.Edges(dir)) > 0
}

// Split divides an inline array into the prefix that seeds the first overflow
// document and the newest edge, which gets a document of its own and becomes
// the latest. The prefix is empty for a single-edge array.
func Split(edges []graph.EmbeddedEdge) (prefix []graph.EmbeddedEdge, newest graph.EmbeddedEdge) {
	n := len(edges)
	prefix = make([]graph.EmbeddedEdge, n-1)
	copy(prefix, edges[:n-1])
	return prefix, edges[n-1]
}

// Halve splits a chunk that did not fit into two non-empty halves. It must
// only be called with at least two edges.
func Halve(edges []graph.EmbeddedEdge) (left, right []graph.EmbeddedEdge) {
	mid := len(edges) / 2
	return edges[:mid], edges[mid:]
}

// PickReplacementLatest chooses which remaining overflow document becomes the
// latest after the current latest is emptied: the one with the fewest edges,
// ties broken by the smaller id. ok is false for an empty candidate list.
func PickReplacementLatest(candidates []*graph.OverflowDocument) (id string, ok bool) {
	var best *graph.OverflowDocument
	for _, c := range candidates {
		if len(c.Edges) == 0 {
			continue
		}
		if best == nil || len(c.Edges) < len(best.Edges) ||
			(len(c.Edges) == len(best.Edges) && c.ID < best.ID) {
			best = c
		}
	}
	if best == nil {
		return "", false
	}
	return best.ID, true
}
