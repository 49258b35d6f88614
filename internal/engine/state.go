package engine

import (
	"encoding/json"
	"sort"
)

// GraphState is an immutable, versioned engine document for one farm. The
// service forwards Doc without interpreting it, so copying the struct is a
// complete snapshot.
type GraphState struct {
	FarmID  string          `json:"farm_id"`
	Version int             `json:"version"`
	Doc     json.RawMessage `json:"doc"`
}

func (s GraphState) IsZero() bool { return len(s.Doc) == 0 }

// next derives the successor state produced by an incremental update.
func (s GraphState) next(doc json.RawMessage) GraphState {
	return GraphState{FarmID: s.FarmID, Version: s.Version + 1, Doc: doc}
}

// Summary is the read-only header view served by GET /farms/{id}/graph.
type Summary struct {
	FarmID    string   `json:"farm_id"`
	Version   int      `json:"version"`
	NVertices int      `json:"n_vertices"`
	Layers    []string `json:"layers"`
	VertexIDs []string `json:"vertex_ids"`
}

type docHeader struct {
	NVertices   int                        `json:"n_vertices"`
	VertexIndex map[string]int             `json:"vertex_index"`
	Layers      map[string]json.RawMessage `json:"layers"`
}

func (s GraphState) Summary() (Summary, error) {
	out := Summary{FarmID: s.FarmID, Version: s.Version, Layers: []string{}, VertexIDs: []string{}}
	if s.IsZero() {
		return out, nil
	}
	var h docHeader
	if err := json.Unmarshal(s.Doc, &h); err != nil {
		return out, err
	}
	out.NVertices = h.NVertices
	for l := range h.Layers {
		out.Layers = append(out.Layers, l)
	}
	sort.Strings(out.Layers)

	ids := make([]string, 0, len(h.VertexIndex))
	for id := range h.VertexIndex {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return h.VertexIndex[ids[i]] < h.VertexIndex[ids[j]] })
	out.VertexIDs = ids
	return out, nil
}

// VertexIndex returns the engine's vertex id -> position map, used to
// resolve the zone of items that only carry a vertex index.
func (s GraphState) VertexIndex() map[string]int {
	if s.IsZero() {
		return nil
	}
	var h docHeader
	if err := json.Unmarshal(s.Doc, &h); err != nil {
		return nil
	}
	return h.VertexIndex
}
