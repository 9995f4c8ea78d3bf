package executor

import (
	"github.com/dd0wney/cluso-docgraph/pkg/docstore"
	"github.com/dd0wney/cluso-docgraph/pkg/graph"
	"github.com/dd0wney/cluso-docgraph/pkg/logging"
	"github.com/dd0wney/cluso-docgraph/pkg/spill"
)

// spillReport describes one direction moved out of a vertex document
type spillReport struct {
	dir          graph.Direction
	firstDocID   string
	latestDocID  string
	newestEdgeID string
}

// spillDirection moves the inline array of dir into overflow documents: every
// edge but the newest goes to one or more documents, the newest gets a
// document of its own which becomes the latest. v is updated in memory only.
func (b *batch) spillDirection(v *graph.VertexDocument, dir graph.Direction, reason spill.Reason) (spillReport, error) {
	edges := v.Edges(dir)
	if v.Spilled(dir) || len(edges) == 0 {
		return spillReport{}, assertf("vertex %s has no inline %s edges to spill", v.ID, dir)
	}

	prefix, newest := spill.Split(edges)
	report := spillReport{dir: dir, newestEdgeID: newest.ID}

	if len(prefix) > 0 {
		ids, err := b.createChunks(v.ID, dir, prefix)
		if err != nil {
			return spillReport{}, err
		}
		report.firstDocID = ids[0]
	}

	latest, err := b.createSingleton(v.ID, dir, newest)
	if err != nil {
		return spillReport{}, err
	}
	report.latestDocID = latest.ID
	if report.firstDocID == "" {
		report.firstDocID = latest.ID
	}

	v.SetLatestDocID(dir, latest.ID)
	b.exec.metrics.RecordSpill(dir.String(), string(reason))
	b.log.Info("adjacency spilled",
		logging.VertexID(v.ID), logging.Direction(dir.String()),
		logging.String("reason", string(reason)), logging.Count(len(edges)))
	return report, nil
}

// createChunks stores edges in as few overflow documents as the host allows,
// halving any chunk it rejects as too large. Ids are returned in edge order.
func (b *batch) createChunks(vertexID string, dir graph.Direction, edges []graph.EmbeddedEdge) ([]string, error) {
	d, err := b.createOverflow(vertexID, dir, edges)
	if err == nil {
		return []string{d.ID}, nil
	}
	if !docstore.IsTooLarge(err) {
		return nil, err
	}
	if len(edges) == 1 {
		return nil, dbError(err, "edge %s does not fit in a document of its own", edges[0].ID)
	}

	left, right := spill.Halve(edges)
	ids, err := b.createChunks(vertexID, dir, left)
	if err != nil {
		return nil, err
	}
	more, err := b.createChunks(vertexID, dir, right)
	if err != nil {
		return nil, err
	}
	return append(ids, more...), nil
}

// createSingleton stores edge alone in a new overflow document
func (b *batch) createSingleton(vertexID string, dir graph.Direction, edge graph.EmbeddedEdge) (*graph.OverflowDocument, error) {
	d, err := b.createOverflow(vertexID, dir, []graph.EmbeddedEdge{edge})
	if docstore.IsTooLarge(err) {
		return nil, dbError(err, "edge %s does not fit in a document of its own", edge.ID)
	}
	return d, err
}

// persistVertex replaces v, spilling directions until the host accepts it.
// prefer, when set, is the first direction considered.
func (b *batch) persistVertex(v *graph.VertexDocument, prefer *graph.Direction) ([]spillReport, error) {
	var reports []spillReport
	for {
		err := b.storeVertex(v)
		if err == nil {
			return reports, nil
		}
		if !docstore.IsTooLarge(err) {
			return nil, err
		}

		dir, ok := spill.ChooseDirection(v, prefer)
		if !ok {
			return nil, dbError(err, "vertex %s is too large with no inline edges left to spill", v.ID)
		}
		report, err := b.spillDirection(v, dir, spill.ReasonTooLarge)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
}

// homeEdge places edge at the end of the chain of vertexID/dir. latest is the
// current latest document. When it is full, or the append makes it too large,
// edge gets a new singleton document instead and latest is left as it was.
// moved reports that the singleton is now the latest document.
func (b *batch) homeEdge(vertexID string, dir graph.Direction, latest *graph.OverflowDocument, edge graph.EmbeddedEdge, threshold int) (docID string, moved bool, err error) {
	reason := spill.ReasonThreshold
	if !spill.LatestFull(len(latest.Edges), threshold) {
		before := latest.Edges
		latest.Edges = graph.AppendEdge(before, edge)
		err := b.storeOverflow(latest)
		if err == nil {
			return latest.ID, false, nil
		}
		latest.Edges = before
		if !docstore.IsTooLarge(err) {
			return "", false, err
		}
		reason = spill.ReasonTooLarge
	}

	d, err := b.createSingleton(vertexID, dir, edge)
	if err != nil {
		return "", false, err
	}
	b.log.Debug("latest overflow document rolled over",
		logging.VertexID(vertexID), logging.Direction(dir.String()),
		logging.EdgeID(edge.ID), logging.DocID(d.ID), logging.String("reason", string(reason)))
	return d.ID, true, nil
}

// appendSpilled adds edge to a spilled direction of v and returns the
// document holding it. v is persisted when its placeholder changes.
func (b *batch) appendSpilled(v *graph.VertexDocument, dir graph.Direction, edge graph.EmbeddedEdge, threshold int) (string, error) {
	latestID := v.LatestDocID(dir)
	if latestID == "" {
		d, err := b.createSingleton(v.ID, dir, edge)
		if err != nil {
			return "", err
		}
		return d.ID, b.repoint(v, dir, d.ID)
	}

	latest, err := b.loadOverflow(latestID, v.ID, dir)
	if err != nil {
		return "", err
	}
	return b.homeOnto(v, dir, latest, edge, threshold)
}

// homeOnto runs homeEdge against latest and moves the placeholder if needed
func (b *batch) homeOnto(v *graph.VertexDocument, dir graph.Direction, latest *graph.OverflowDocument, edge graph.EmbeddedEdge, threshold int) (string, error) {
	if graph.IndexOfEdge(latest.Edges, edge.ID) >= 0 {
		return "", assertf("edge %s already present in %s", edge.ID, latest.ID)
	}
	docID, moved, err := b.homeEdge(v.ID, dir, latest, edge, threshold)
	if err != nil {
		return "", err
	}
	if moved {
		return docID, b.repoint(v, dir, docID)
	}
	return docID, nil
}

// repoint makes docID the latest overflow document of v/dir and persists v
func (b *batch) repoint(v *graph.VertexDocument, dir graph.Direction, docID string) error {
	v.SetLatestDocID(dir, docID)
	_, err := b.persistVertex(v, nil)
	return err
}

// locateEdge finds the overflow document of v/dir holding edgeID. hint is
// tried first; otherwise every overflow document of the direction is
// searched. A nil document means the edge does not exist.
func (b *batch) locateEdge(v *graph.VertexDocument, dir graph.Direction, edgeID, hint string) (*graph.OverflowDocument, int, error) {
	if hint != "" {
		d, err := b.loadOverflow(hint, v.ID, dir)
		switch {
		case err == nil:
			if i := graph.IndexOfEdge(d.Edges, edgeID); i >= 0 {
				return d, i, nil
			}
		case !docstore.IsNotFound(err):
			return nil, -1, err
		}
	}

	docs, err := b.overflowDocs(v.ID, dir)
	if err != nil {
		return nil, -1, err
	}
	for _, d := range docs {
		if d.ID == hint {
			continue
		}
		if i := graph.IndexOfEdge(d.Edges, edgeID); i >= 0 {
			return d, i, nil
		}
	}
	return nil, -1, nil
}

// releaseOverflow persists a document an edge was just removed from. An
// emptied document is deleted; if it was the latest, the placeholder moves
// to the remaining document with the fewest edges, or is cleared.
func (b *batch) releaseOverflow(v *graph.VertexDocument, dir graph.Direction, d *graph.OverflowDocument) error {
	if err := b.persistOverflow(d); err != nil {
		return err
	}
	if len(d.Edges) > 0 || v.LatestDocID(dir) != d.ID {
		return nil
	}

	rest, err := b.overflowDocs(v.ID, dir)
	if err != nil {
		return err
	}
	next, found := spill.PickReplacementLatest(rest)
	b.log.Debug("latest overflow document replaced",
		logging.VertexID(v.ID), logging.Direction(dir.String()),
		logging.DocID(next), logging.Bool("placeholder_cleared", !found))
	return b.repoint(v, dir, next)
}
