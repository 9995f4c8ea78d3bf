package graph

// Edges returns the adjacency array for dir. For a spilled direction this is
// the placeholder array.
func (v *VertexDocument) Edges(dir Direction) []EmbeddedEdge {
	if dir == In {
		return v.InEdges
	}
	return v.OutEdges
}

// SetEdges replaces the adjacency array for dir
func (v *VertexDocument) SetEdges(dir Direction, edges []EmbeddedEdge) {
	if edges == nil {
		edges = []EmbeddedEdge{}
	}
	if dir == In {
		v.InEdges = edges
		return
	}
	v.OutEdges = edges
}

// Spilled reports whether dir lives in overflow documents
func (v *VertexDocument) Spilled(dir Direction) bool {
	if dir == In {
		return v.InSpilled
	}
	return v.OutSpilled
}

// LatestDocID returns the overflow document currently accepting new edges
// for dir. It is empty when dir is inline or has no overflow documents left.
func (v *VertexDocument) LatestDocID(dir Direction) string {
	if !v.Spilled(dir) {
		return ""
	}
	edges := v.Edges(dir)
	if len(edges) == 0 {
		return ""
	}
	return edges[0].ID
}

// SetLatestDocID marks dir spilled and points its placeholder at docID.
// An empty docID leaves the placeholder array empty.
func (v *VertexDocument) SetLatestDocID(dir Direction, docID string) {
	if dir == In {
		v.InSpilled = true
	} else {
		v.OutSpilled = true
	}
	if docID == "" {
		v.SetEdges(dir, nil)
		return
	}
	v.SetEdges(dir, []EmbeddedEdge{{ID: docID}})
}

// IndexOfEdge returns the position of edgeID in edges, or -1
func IndexOfEdge(edges []EmbeddedEdge, edgeID string) int {
	for i := range edges {
		if edges[i].ID == edgeID {
			return i
		}
	}
	return -1
}

// RemoveEdgeAt returns a new slice without the element at i
func RemoveEdgeAt(edges []EmbeddedEdge, i int) []EmbeddedEdge {
	out := make([]EmbeddedEdge, 0, len(edges)-1)
	out = append(out, edges[:i]...)
	return append(out, edges[i+1:]...)
}

// AppendEdge returns a new slice with e appended, leaving edges untouched
func AppendEdge(edges []EmbeddedEdge, e EmbeddedEdge) []EmbeddedEdge {
	out := make([]EmbeddedEdge, 0, len(edges)+1)
	out = append(out, edges...)
	return append(out, e)
}

// SetProperty applies one property update. A single-valued update replaces
// every value of key; otherwise the value is appended, or replaces the value
// carrying the same id.
func (v *VertexDocument) SetProperty(key string, value PropertyValue, single bool) {
	if v.Properties == nil {
		v.Properties = make(map[string][]PropertyValue)
	}
	if single {
		v.Properties[key] = []PropertyValue{value}
		return
	}
	values := v.Properties[key]
	for i := range values {
		if values[i].ID == value.ID {
			values[i] = value
			return
		}
	}
	v.Properties[key] = append(values, value)
}

// DropProperty removes every value of key
func (v *VertexDocument) DropProperty(key string) bool {
	if _, ok := v.Properties[key]; !ok {
		return false
	}
	delete(v.Properties, key)
	return true
}

// DropPropertyValue removes the value with valueID from key. The key goes away
// with its last value.
func (v *VertexDocument) DropPropertyValue(key, valueID string) bool {
	values, ok := v.Properties[key]
	if !ok {
		return false
	}
	for i := range values {
		if values[i].ID != valueID {
			continue
		}
		rest := append(values[:i:i], values[i+1:]...)
		if len(rest) == 0 {
			delete(v.Properties, key)
		} else {
			v.Properties[key] = rest
		}
		return true
	}
	return false
}

// DropMetaProperty removes metaKey from the value valueID of key
func (v *VertexDocument) DropMetaProperty(key, valueID, metaKey string) bool {
	values, ok := v.Properties[key]
	if !ok {
		return false
	}
	for i := range values {
		if values[i].ID != valueID {
			continue
		}
		if _, found := values[i].Meta[metaKey]; !found {
			return false
		}
		delete(values[i].Meta, metaKey)
		return true
	}
	return false
}
