package graph

import (
	"encoding/json"
	"fmt"
)

// MarshalVertex encodes a vertex document body
func MarshalVertex(v *VertexDocument) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal vertex %s: %w", v.ID, err)
	}
	return data, nil
}

// UnmarshalVertex decodes a vertex document body
func UnmarshalVertex(data []byte) (*VertexDocument, error) {
	v := &VertexDocument{}
	if err := json.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal vertex: %w", err)
	}
	if v.OutEdges == nil {
		v.OutEdges = []EmbeddedEdge{}
	}
	if v.InEdges == nil {
		v.InEdges = []EmbeddedEdge{}
	}
	if v.Properties == nil {
		v.Properties = make(map[string][]PropertyValue)
	}
	return v, nil
}

// MarshalOverflow encodes an overflow document body
func MarshalOverflow(d *OverflowDocument) ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal overflow document for vertex %s: %w", d.VertexID, err)
	}
	return data, nil
}

// UnmarshalOverflow decodes an overflow document body
func UnmarshalOverflow(data []byte) (*OverflowDocument, error) {
	d := &OverflowDocument{}
	if err := json.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal overflow document: %w", err)
	}
	return d, nil
}

// EncodedSize returns the serialized size of an edge array. It is the
// storage-cost proxy used to pick which direction to spill.
func EncodedSize(edges []EmbeddedEdge) int {
	data, err := json.Marshal(edges)
	if err != nil {
		return 0
	}
	return len(data)
}
