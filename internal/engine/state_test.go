package engine

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestSummary(t *testing.T) {
	s := GraphState{
		FarmID:  "f1",
		Version: 3,
		Doc:     json.RawMessage(`{"n_vertices":3,"vertex_index":{"c":2,"a":0,"b":1},"layers":{"soil":{},"npk":{}}}`),
	}
	sum, err := s.Summary()
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	want := Summary{FarmID: "f1", Version: 3, NVertices: 3, Layers: []string{"npk", "soil"}, VertexIDs: []string{"a", "b", "c"}}
	if !reflect.DeepEqual(sum, want) {
		t.Fatalf("got %+v, want %+v", sum, want)
	}
}

func TestSummaryOfZeroState(t *testing.T) {
	sum, err := GraphState{FarmID: "f1"}.Summary()
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.NVertices != 0 || len(sum.Layers) != 0 || sum.VertexIDs == nil {
		t.Fatalf("unexpected zero summary %+v", sum)
	}
}

func TestNextKeepsPredecessor(t *testing.T) {
	s1 := GraphState{FarmID: "f1", Version: 1, Doc: json.RawMessage(`{}`)}
	s2 := s1.next(json.RawMessage(`{"n_vertices":1}`))
	if s1.Version != 1 || string(s1.Doc) != "{}" {
		t.Fatalf("predecessor changed: %+v", s1)
	}
	if s2.Version != 2 || s2.FarmID != "f1" {
		t.Fatalf("unexpected successor %+v", s2)
	}
}
