// Package mock is a deterministic in-process engine for local development
// and tests. Its numbers are simple functions of the stored features.
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
)

type vertexDoc struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	ZoneID string `json:"zone_id,omitempty"`
}

type layerDoc struct {
	Edges    []map[string]any     `json:"edges"`
	Features map[string][]float64 `json:"features"`
}

type graphDoc struct {
	FarmID       string               `json:"farm_id"`
	FarmType     string               `json:"farm_type"`
	ActiveLayers []string             `json:"active_layers"`
	NVertices    int                  `json:"n_vertices"`
	VertexIndex  map[string]int       `json:"vertex_index"`
	Vertices     []vertexDoc          `json:"vertices"`
	Layers       map[string]*layerDoc `json:"layers"`
	Models       map[string]any       `json:"models"`
	Residual     float64              `json:"yield_residual"`
}

// Engine implements engine.Backend. Failures can be injected per operation.
type Engine struct {
	mu       sync.Mutex
	calls    map[string]int
	failures map[string]error
	initErrs []error
	inits    int
}

func New() *Engine {
	return &Engine{calls: map[string]int{}, failures: map[string]error{}}
}

// FailOn makes every later call of op return err; nil clears it.
func (e *Engine) FailOn(op string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err == nil {
		delete(e.failures, op)
		return
	}
	e.failures[op] = err
}

// FailInit queues errors returned by the next Init calls, in order.
func (e *Engine) FailInit(errs ...error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.initErrs = append(e.initErrs, errs...)
}

func (e *Engine) Calls(op string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[op]
}

func (e *Engine) InitCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inits
}

func (e *Engine) Init(ctx context.Context) error {
	_ = ctx
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inits++
	if len(e.initErrs) > 0 {
		err := e.initErrs[0]
		e.initErrs = e.initErrs[1:]
		return err
	}
	return nil
}

func (e *Engine) Invoke(ctx context.Context, op string, args map[string]any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.calls[op]++
	failure := e.failures[op]
	e.mu.Unlock()
	if failure != nil {
		return nil, failure
	}

	var (
		out any
		err error
	)
	switch op {
	case "build_graph":
		out, err = build(args)
	case "generate_synthetic":
		out, err = synthetic(args)
	default:
		var doc *graphDoc
		doc, err = decodeState(args["state"])
		if err != nil {
			return nil, err
		}
		out, err = dispatchQuery(op, doc, args)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

func dispatchQuery(op string, doc *graphDoc, args map[string]any) (any, error) {
	switch op {
	case "update_features":
		return updateFeatures(doc, args)
	case "query_farm_status":
		return queryStatus(doc, str(args["vertex_id"]))
	case "cross_layer_query":
		return crossLayer(doc, str(args["layer_a"]), str(args["layer_b"])), nil
	case "irrigation_schedule":
		return irrigationSchedule(doc, int(num(args["horizon_days"]))), nil
	case "nutrient_report":
		return nutrientReport(doc), nil
	case "yield_forecast":
		return yieldForecast(doc), nil
	case "detect_anomalies":
		return detectAnomalies(doc), nil
	case "train_yield_residual":
		return trainResidual(doc, args["outcomes"]), nil
	}
	return nil, fmt.Errorf("unknown operation %q", op)
}

func build(args map[string]any) (*graphDoc, error) {
	cfg, ok := args["config"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("config must be an object")
	}
	doc := &graphDoc{
		FarmID:      str(cfg["farm_id"]),
		FarmType:    str(cfg["farm_type"]),
		VertexIndex: map[string]int{},
		Layers:      map[string]*layerDoc{},
		Models:      map[string]any{},
	}
	if m, ok := cfg["models"].(map[string]any); ok {
		doc.Models = m
	}
	for _, l := range list(cfg["active_layers"]) {
		layer := str(l)
		if layer == "solar" {
			layer = "lighting"
		}
		doc.ActiveLayers = append(doc.ActiveLayers, str(l))
		doc.layer(layer)
	}
	for _, raw := range list(cfg["vertices"]) {
		v, _ := raw.(map[string]any)
		id := str(v["id"])
		if id == "" {
			return nil, fmt.Errorf("vertex without id")
		}
		doc.VertexIndex[id] = len(doc.Vertices)
		doc.Vertices = append(doc.Vertices, vertexDoc{ID: id, Type: str(v["type"]), ZoneID: str(v["zone_id"])})
	}
	doc.NVertices = len(doc.Vertices)
	for _, raw := range list(cfg["edges"]) {
		edge, _ := raw.(map[string]any)
		l := doc.layer(str(edge["layer"]))
		l.Edges = append(l.Edges, edge)
	}
	return doc, nil
}

func (d *graphDoc) layer(name string) *layerDoc {
	if d.Layers == nil {
		d.Layers = map[string]*layerDoc{}
	}
	l, ok := d.Layers[name]
	if !ok {
		l = &layerDoc{Edges: []map[string]any{}, Features: map[string][]float64{}}
		d.Layers[name] = l
	}
	if l.Features == nil {
		l.Features = map[string][]float64{}
	}
	return l
}

func (d *graphDoc) vertex(id string) (vertexDoc, bool) {
	i, ok := d.VertexIndex[id]
	if !ok || i < 0 || i >= len(d.Vertices) {
		return vertexDoc{}, false
	}
	return d.Vertices[i], true
}

func updateFeatures(doc *graphDoc, args map[string]any) (*graphDoc, error) {
	vid := str(args["vertex_id"])
	if _, ok := doc.vertex(vid); !ok {
		return nil, fmt.Errorf("vertex %s not in graph", vid)
	}
	var feats []float64
	for _, f := range list(args["features"]) {
		feats = append(feats, num(f))
	}
	doc.layer(str(args["layer"])).Features[vid] = feats
	return doc, nil
}

func queryStatus(doc *graphDoc, vid string) (map[string]any, error) {
	v, ok := doc.vertex(vid)
	if !ok {
		return nil, fmt.Errorf("vertex %s not in graph", vid)
	}
	layers := map[string]any{}
	for name, l := range doc.Layers {
		summary := map[string]any{"n_edges": len(l.Edges)}
		if f, ok := l.Features[vid]; ok {
			summary["features"] = f
		} else if zf := zoneMean(doc, l, v.ZoneID); zf != nil {
			summary["zone_mean"] = zf
		}
		layers[name] = summary
	}
	return map[string]any{
		"vertex_id":   vid,
		"vertex_type": v.Type,
		"zone_id":     v.ZoneID,
		"layers":      layers,
	}, nil
}

// zoneMean averages the feature vectors of every vertex in zoneID.
func zoneMean(doc *graphDoc, l *layerDoc, zoneID string) []float64 {
	if zoneID == "" {
		return nil
	}
	var sum []float64
	n := 0
	for vid, f := range l.Features {
		v, ok := doc.vertex(vid)
		if !ok || v.ZoneID != zoneID {
			continue
		}
		if sum == nil {
			sum = make([]float64, len(f))
		}
		for i := range f {
			if i < len(sum) {
				sum[i] += f[i]
			}
		}
		n++
	}
	if n == 0 {
		return nil
	}
	for i := range sum {
		sum[i] = round(sum[i] / float64(n))
	}
	return sum
}

func crossLayer(doc *graphDoc, a, b string) map[string]any {
	la, lb := doc.layer(a), doc.layer(b)
	shared := []string{}
	for vid := range la.Features {
		if _, ok := lb.Features[vid]; ok {
			shared = append(shared, vid)
		}
	}
	sort.Strings(shared)
	return map[string]any{
		"layer_a":         a,
		"layer_b":         b,
		"shared_vertices": shared,
		"n_shared":        len(shared),
	}
}

func irrigationSchedule(doc *graphDoc, horizon int) []map[string]any {
	if horizon <= 0 {
		horizon = 7
	}
	soil := doc.layer("soil")
	items := []map[string]any{}
	for _, vid := range sortedKeys(soil.Features) {
		f := soil.Features[vid]
		v, _ := doc.vertex(vid)
		moisture := at(f, 0)
		for day := 1; day <= horizon; day++ {
			projected := moisture - 0.02*float64(day-1)
			deficit := math.Max(0, 0.35-projected)
			items = append(items, map[string]any{
				"vertex_id":     vid,
				"zone_id":       v.ZoneID,
				"day":           day,
				"irrigate":      deficit > 0,
				"volume_liters": round(deficit * 1000),
			})
		}
	}
	return items
}

func nutrientReport(doc *graphDoc) []map[string]any {
	npk := doc.layer("npk")
	items := []map[string]any{}
	for _, vid := range sortedKeys(npk.Features) {
		f := npk.Features[vid]
		v, _ := doc.vertex(vid)
		n, p, k := at(f, 0), at(f, 1), at(f, 2)
		urgency := "info"
		switch {
		case n < 20 || p < 10 || k < 80:
			urgency = "high"
		case n < 40 || p < 20 || k < 120:
			urgency = "medium"
		}
		items = append(items, map[string]any{
			"vertex_id":  vid,
			"zone_id":    v.ZoneID,
			"nitrogen":   n,
			"phosphorus": p,
			"potassium":  k,
			"urgency":    urgency,
		})
	}
	return items
}

func yieldForecast(doc *graphDoc) []map[string]any {
	items := []map[string]any{}
	soil := doc.layer("soil")
	for _, v := range doc.Vertices {
		if v.Type != "crop_bed" {
			continue
		}
		base := 4.0
		if m := zoneMean(doc, soil, v.ZoneID); m != nil {
			base += 2 * (at(m, 0) - 0.3)
		}
		items = append(items, map[string]any{
			"vertex_id":   v.ID,
			"zone_id":     v.ZoneID,
			"yield_kg_m2": round(math.Max(0, base*(1+doc.Residual))),
		})
	}
	return items
}

func detectAnomalies(doc *graphDoc) []map[string]any {
	items := []map[string]any{}
	vision := doc.layer("vision")
	for _, vid := range sortedKeys(vision.Features) {
		score := at(vision.Features[vid], 2)
		if score < 0.5 {
			continue
		}
		v, _ := doc.vertex(vid)
		severity := "warning"
		if score >= 0.8 {
			severity = "critical"
		}
		items = append(items, map[string]any{
			"vertex_id": vid,
			"zone_id":   v.ZoneID,
			"layer":     "vision",
			"score":     score,
			"severity":  severity,
		})
	}
	soil := doc.layer("soil")
	for _, vid := range sortedKeys(soil.Features) {
		if m := at(soil.Features[vid], 0); m < 0.1 {
			items = append(items, map[string]any{
				"vertex_id": vid,
				"layer":     "soil",
				"score":     round(1 - m),
				"urgency":   "high",
			})
		}
	}
	return items
}

func trainResidual(doc *graphDoc, raw any) map[string]any {
	outcomes, _ := raw.(map[string]any)
	forecast := map[string]float64{}
	for _, item := range yieldForecast(doc) {
		forecast[str(item["vertex_id"])] = num(item["yield_kg_m2"])
	}
	var sum float64
	n := 0
	for vid, observed := range outcomes {
		predicted, ok := forecast[vid]
		if !ok || predicted == 0 {
			continue
		}
		sum += num(observed)/predicted - 1
		n++
	}
	mean := 0.0
	if n > 0 {
		mean = sum / float64(n)
	}
	return map[string]any{"n_samples": n, "residual_mean": round(mean), "trained": n > 0}
}

func synthetic(args map[string]any) (map[string]any, error) {
	farmType := str(args["farm_type"])
	days := int(num(args["days"]))
	seed := int64(num(args["seed"]))
	if days <= 0 || days > 3650 {
		return nil, fmt.Errorf("days must be in 1..3650")
	}
	rng := rand.New(rand.NewSource(seed))
	soil := make([]map[string]any, 0, days)
	weather := make([]map[string]any, 0, days)
	for d := 0; d < days; d++ {
		soil = append(soil, map[string]any{
			"day":         d,
			"moisture":    round(0.2 + 0.2*rng.Float64()),
			"temperature": round(15 + 10*rng.Float64()),
		})
		weather = append(weather, map[string]any{
			"day":              d,
			"temperature":      round(12 + 15*rng.Float64()),
			"humidity":         round(40 + 50*rng.Float64()),
			"precipitation_mm": round(math.Max(0, 8*rng.NormFloat64())),
		})
	}
	return map[string]any{
		"farm_type": farmType,
		"days":      days,
		"seed":      seed,
		"soil":      soil,
		"weather":   weather,
	}, nil
}

func decodeState(raw any) (*graphDoc, error) {
	var b []byte
	switch v := raw.(type) {
	case json.RawMessage:
		b = v
	case []byte:
		b = v
	case nil:
		return nil, fmt.Errorf("graph state required")
	default:
		enc, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		b = enc
	}
	var doc graphDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("invalid graph state: %w", err)
	}
	if doc.VertexIndex == nil {
		doc.VertexIndex = map[string]int{}
	}
	return &doc, nil
}

func str(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

func num(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	}
	return 0
}

func list(v any) []any {
	if l, ok := v.([]any); ok {
		return l
	}
	return nil
}

func at(f []float64, i int) float64 {
	if i < len(f) {
		return f[i]
	}
	return 0
}

func round(f float64) float64 {
	return math.Round(f*1000) / 1000
}

func sortedKeys(m map[string][]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
