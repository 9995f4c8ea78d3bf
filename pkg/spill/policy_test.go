package spill

import (
	"testing"

	"github.com/dd0wney/cluso-docgraph/pkg/graph"
)

func edges(ids ...string) []graph.EmbeddedEdge {
	out := make([]graph.EmbeddedEdge, len(ids))
	for i, id := range ids {
		out[i] = graph.EmbeddedEdge{ID: id, Label: "knows", OtherVertexID: "x"}
	}
	return out
}

func TestThresholds(t *testing.T) {
	tests := []struct {
		count, threshold int
		want             bool
	}{
		{5, 0, false},
		{1, 2, false},
		{2, 2, true},
		{3, 2, true},
	}
	for _, tt := range tests {
		if got := InlineExceeded(tt.count, tt.threshold); got != tt.want {
			t.Errorf("InlineExceeded(%d, %d) = %v, want %v", tt.count, tt.threshold, got, tt.want)
		}
		if got := LatestFull(tt.count, tt.threshold); got != tt.want {
			t.Errorf("LatestFull(%d, %d) = %v, want %v", tt.count, tt.threshold, got, tt.want)
		}
	}
}

func TestChooseDirection(t *testing.T) {
	out := graph.Out
	in := graph.In

	tests := []struct {
		name   string
		vertex func() *graph.VertexDocument
		prefer *graph.Direction
		want   graph.Direction
		wantOK bool
	}{
		{
			name: "larger in wins",
			vertex: func() *graph.VertexDocument {
				v := graph.NewVertexDocument("v", "l")
				v.OutEdges = edges("a")
				v.InEdges = edges("b", "c")
				return v
			},
			want:   graph.In,
			wantOK: true,
		},
		{
			name: "tie goes out",
			vertex: func() *graph.VertexDocument {
				v := graph.NewVertexDocument("v", "l")
				v.OutEdges = edges("a")
				v.InEdges = edges("b")
				return v
			},
			want:   graph.Out,
			wantOK: true,
		},
		{
			name: "other side of a spilled direction",
			vertex: func() *graph.VertexDocument {
				v := graph.NewVertexDocument("v", "l")
				v.SetLatestDocID(graph.In, "doc")
				v.OutEdges = edges("a")
				return v
			},
			want:   graph.Out,
			wantOK: true,
		},
		{
			name: "preferred direction",
			vertex: func() *graph.VertexDocument {
				v := graph.NewVertexDocument("v", "l")
				v.OutEdges = edges("a", "b", "c")
				v.InEdges = edges("d")
				return v
			},
			prefer: &in,
			want:   graph.In,
			wantOK: true,
		},
		{
			name: "empty preferred direction falls back",
			vertex: func() *graph.VertexDocument {
				v := graph.NewVertexDocument("v", "l")
				v.InEdges = edges("d")
				return v
			},
			prefer: &out,
			want:   graph.In,
			wantOK: true,
		},
		{
			name: "both spilled",
			vertex: func() *graph.VertexDocument {
				v := graph.NewVertexDocument("v", "l")
				v.SetLatestDocID(graph.In, "d1")
				v.SetLatestDocID(graph.Out, "d2")
				return v
			},
			wantOK: false,
		},
		{
			name: "nothing inline",
			vertex: func() *graph.VertexDocument {
				return graph.NewVertexDocument("v", "l")
			},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ChooseDirection(tt.vertex(), tt.prefer)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("direction = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSplit(t *testing.T) {
	all := edges("a", "b", "c")
	prefix, newest := Split(all)

	if len(prefix) != 2 || prefix[0].ID != "a" || prefix[1].ID != "b" {
		t.Errorf("unexpected prefix %+v", prefix)
	}
	if newest.ID != "c" {
		t.Errorf("newest = %s, want c", newest.ID)
	}

	prefix[0].ID = "changed"
	if all[0].ID != "a" {
		t.Error("Split must not alias the input array")
	}

	prefix, newest = Split(edges("only"))
	if len(prefix) != 0 || newest.ID != "only" {
		t.Errorf("single edge split = %+v, %s", prefix, newest.ID)
	}
}

func TestHalve(t *testing.T) {
	left, right := Halve(edges("a", "b", "c"))
	if len(left) != 1 || len(right) != 2 {
		t.Errorf("Halve sizes = %d, %d", len(left), len(right))
	}
}

func TestPickReplacementLatest(t *testing.T) {
	docs := []*graph.OverflowDocument{
		{ID: "c", Edges: edges("1", "2")},
		{ID: "b", Edges: edges("3")},
		{ID: "a", Edges: edges("4")},
		{ID: "0", Edges: nil},
	}
	id, ok := PickReplacementLatest(docs)
	if !ok || id != "a" {
		t.Errorf("PickReplacementLatest = %q, %v; want a, true", id, ok)
	}

	if _, ok := PickReplacementLatest(nil); ok {
		t.Error("expected no replacement for empty candidates")
	}
}
