package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/agrisense/agrisense-backend/internal/data/repos"
	types "github.com/agrisense/agrisense-backend/internal/domain"
	"github.com/agrisense/agrisense-backend/internal/domain/farm"
	"github.com/agrisense/agrisense-backend/internal/engine"
	"github.com/agrisense/agrisense-backend/internal/graphcache"
	apperr "github.com/agrisense/agrisense-backend/internal/pkg/errors"
	"github.com/agrisense/agrisense-backend/internal/pkg/dbctx"
	"github.com/agrisense/agrisense-backend/internal/platform/logger"
)

type ZoneStatus struct {
	ZoneID        uuid.UUID      `json:"zone_id"`
	QueryVertexID string         `json:"query_vertex_id"`
	Status        map[string]any `json:"status"`
}

type FarmStatus struct {
	FarmID      uuid.UUID    `json:"farm_id"`
	GeneratedAt time.Time    `json:"generated_at"`
	Zones       []ZoneStatus `json:"zones"`
}

type CrossLayerLink struct {
	LayerA string         `json:"layer_a"`
	LayerB string         `json:"layer_b"`
	Data   map[string]any `json:"data"`
}

type ZoneDetail struct {
	FarmID        uuid.UUID        `json:"farm_id"`
	ZoneID        *uuid.UUID       `json:"zone_id"`
	QueryVertexID string           `json:"query_vertex_id"`
	Layers        map[string]any   `json:"layers"`
	CrossLayer    []CrossLayerLink `json:"cross_layer"`
}

type IrrigationSchedule struct {
	FarmID      uuid.UUID        `json:"farm_id"`
	HorizonDays int              `json:"horizon_days"`
	Cached      bool             `json:"cached"`
	GeneratedAt time.Time        `json:"generated_at"`
	Items       []map[string]any `json:"items"`
}

// Report is the shared shape of the nutrient and yield responses.
type Report struct {
	FarmID      uuid.UUID        `json:"farm_id"`
	GeneratedAt time.Time        `json:"generated_at"`
	Items       []map[string]any `json:"items"`
}

type AlertItem struct {
	Source   string         `json:"source"`
	Severity string         `json:"severity"`
	Payload  map[string]any `json:"payload"`
}

type ZoneAlerts struct {
	ZoneID *uuid.UUID  `json:"zone_id"`
	Alerts []AlertItem `json:"alerts"`
}

type Alerts struct {
	FarmID      uuid.UUID    `json:"farm_id"`
	GeneratedAt time.Time    `json:"generated_at"`
	Zones       []ZoneAlerts `json:"zones"`
}

const (
	DefaultHorizonDays = 7
	MaxHorizonDays     = 30
)

type AnalyticsService interface {
	FarmStatus(ctx context.Context, farmID uuid.UUID) (*FarmStatus, error)
	ZoneDetail(ctx context.Context, farmID uuid.UUID, zoneID, vertexID *uuid.UUID) (*ZoneDetail, error)
	IrrigationSchedule(ctx context.Context, farmID uuid.UUID, horizonDays int) (*IrrigationSchedule, error)
	NutrientReport(ctx context.Context, farmID uuid.UUID) (*Report, error)
	YieldForecast(ctx context.Context, farmID uuid.UUID) (*Report, error)
	Alerts(ctx context.Context, farmID uuid.UUID) (*Alerts, error)
	TrainYieldResidual(ctx context.Context, farmID uuid.UUID, outcomes map[string]float64) (map[string]any, error)
	GenerateSynthetic(ctx context.Context, farmType string, days int, seed int64) (map[string]any, error)
}

type analyticsService struct {
	log      *logger.Logger
	repos    repos.Set
	topology TopologyService
	engine   *engine.Client
	cache    StatusCache
}

func NewAnalyticsService(baseLog *logger.Logger, set repos.Set, topology TopologyService, eng *engine.Client, cache StatusCache) AnalyticsService {
	if cache == nil {
		cache = NewMemoryStatusCache()
	}
	return &analyticsService{
		log:      baseLog.With("service", "AnalyticsService"),
		repos:    set,
		topology: topology,
		engine:   eng,
		cache:    cache,
	}
}

// graph returns the farm and its graph state, reusing the request's scope.
func (s *analyticsService) graph(ctx context.Context, farmID uuid.UUID) (*types.Farm, engine.GraphState, error) {
	f, err := s.topology.GetFarm(dbctx.Context{Ctx: ctx}, farmID)
	if err != nil {
		return nil, engine.GraphState{}, err
	}
	state, err := graphcache.FromContext(ctx).Get(ctx, farmID.String(), func(c context.Context) (engine.GraphState, error) {
		return s.topology.GetGraph(dbctx.Context{Ctx: c}, farmID)
	})
	if err != nil {
		return nil, engine.GraphState{}, err
	}
	return f, state, nil
}

func (s *analyticsService) FarmStatus(ctx context.Context, farmID uuid.UUID) (*FarmStatus, error) {
	_, state, err := s.graph(ctx, farmID)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	zones, err := s.repos.Zone.ListByFarm(dbc, farmID)
	if err != nil {
		return nil, err
	}
	out := &FarmStatus{FarmID: farmID, GeneratedAt: time.Now().UTC(), Zones: []ZoneStatus{}}
	for _, z := range zones {
		vid, err := s.topology.ResolveZoneQueryVertexID(dbc, farmID, z.ID)
		if apperr.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		status, err := s.engine.QueryStatus(ctx, state, vid)
		if err != nil {
			return nil, err
		}
		out.Zones = append(out.Zones, ZoneStatus{ZoneID: z.ID, QueryVertexID: vid, Status: status})
	}
	return out, nil
}

func (s *analyticsService) ZoneDetail(ctx context.Context, farmID uuid.UUID, zoneID, vertexID *uuid.UUID) (*ZoneDetail, error) {
	if zoneID == nil && vertexID == nil {
		return nil, apperr.Invalid("provide either zone_id or vertex_id")
	}
	f, state, err := s.graph(ctx, farmID)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}

	var queryVertex string
	if vertexID != nil {
		v, err := s.repos.Vertex.GetByID(dbc, *vertexID)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, apperr.NotFound("vertex %s not found", *vertexID)
		}
		if v.FarmID != farmID {
			return nil, apperr.Invalid("vertex does not belong to the target farm")
		}
		queryVertex = v.ID.String()
		if zoneID == nil {
			zoneID = v.ZoneID
		}
	} else {
		queryVertex, err = s.topology.ResolveZoneQueryVertexID(dbc, farmID, *zoneID)
		if err != nil {
			return nil, err
		}
	}

	layers, err := s.engine.QueryStatus(ctx, state, queryVertex)
	if err != nil {
		return nil, err
	}
	cross, err := s.crossLayer(ctx, state, f.FarmType, queryVertex)
	if err != nil {
		return nil, err
	}
	return &ZoneDetail{
		FarmID:        farmID,
		ZoneID:        zoneID,
		QueryVertexID: queryVertex,
		Layers:        layers,
		CrossLayer:    cross,
	}, nil
}

var crossLayerTokens = map[farm.Layer]bool{
	farm.LayerSoil: true, farm.LayerIrrigation: true, farm.LayerLighting: true,
	farm.LayerWeather: true, farm.LayerNPK: true, farm.LayerVision: true, farm.LayerSolar: true,
}

// crossLayerPairs lists every unordered pair of the farm's measurable
// layers, with solar folded into lighting.
func crossLayerPairs(ft types.FarmType) [][2]string {
	seen := map[string]bool{}
	var layers []string
	for _, l := range farm.ActiveLayers(ft) {
		if !crossLayerTokens[l] {
			continue
		}
		if l == farm.LayerSolar {
			l = farm.LayerLighting
		}
		if !seen[string(l)] {
			seen[string(l)] = true
			layers = append(layers, string(l))
		}
	}
	sort.Strings(layers)
	var out [][2]string
	for i := range layers {
		for j := i + 1; j < len(layers); j++ {
			out = append(out, [2]string{layers[i], layers[j]})
		}
	}
	return out
}

func (s *analyticsService) crossLayer(ctx context.Context, state engine.GraphState, ft types.FarmType, queryVertex string) ([]CrossLayerLink, error) {
	out := []CrossLayerLink{}
	for _, p := range crossLayerPairs(ft) {
		data, err := s.engine.CrossLayerQuery(ctx, state, p[0], p[1])
		if err != nil {
			return nil, err
		}
		out = append(out, CrossLayerLink{
			LayerA: p[0],
			LayerB: p[1],
			Data:   map[string]any{"query_vertex_id": queryVertex, "result": data},
		})
	}
	return out, nil
}

func IrrigationCacheKey(farmID uuid.UUID, horizonDays int) string {
	return fmt.Sprintf("farm:%s:analytics:irrigation:%d", farmID, horizonDays)
}

func (s *analyticsService) IrrigationSchedule(ctx context.Context, farmID uuid.UUID, horizonDays int) (*IrrigationSchedule, error) {
	if horizonDays < 1 || horizonDays > MaxHorizonDays {
		return nil, apperr.Invalid("horizon_days must be between 1 and %d", MaxHorizonDays)
	}
	if _, err := s.topology.GetFarm(dbctx.Context{Ctx: ctx}, farmID); err != nil {
		return nil, err
	}
	out := &IrrigationSchedule{FarmID: farmID, HorizonDays: horizonDays, GeneratedAt: time.Now().UTC()}

	key := IrrigationCacheKey(farmID, horizonDays)
	var items []map[string]any
	if ok, err := s.cache.Get(ctx, key, &items); err != nil {
		s.log.Warn("irrigation cache read failed", "farm_id", farmID, "error", err)
	} else if ok {
		out.Cached = true
		out.Items = nonNil(items)
		return out, nil
	}

	_, state, err := s.graph(ctx, farmID)
	if err != nil {
		return nil, err
	}
	items, err = s.engine.IrrigationSchedule(ctx, state, horizonDays, nil)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, items, IrrigationScheduleTTL); err != nil {
		s.log.Warn("irrigation cache write failed", "farm_id", farmID, "error", err)
	}
	out.Items = nonNil(items)
	return out, nil
}

func (s *analyticsService) NutrientReport(ctx context.Context, farmID uuid.UUID) (*Report, error) {
	_, state, err := s.graph(ctx, farmID)
	if err != nil {
		return nil, err
	}
	items, err := s.engine.NutrientReport(ctx, state)
	if err != nil {
		return nil, err
	}
	return &Report{FarmID: farmID, GeneratedAt: time.Now().UTC(), Items: nonNil(items)}, nil
}

func (s *analyticsService) YieldForecast(ctx context.Context, farmID uuid.UUID) (*Report, error) {
	_, state, err := s.graph(ctx, farmID)
	if err != nil {
		return nil, err
	}
	items, err := s.engine.YieldForecast(ctx, state)
	if err != nil {
		return nil, err
	}
	return &Report{FarmID: farmID, GeneratedAt: time.Now().UTC(), Items: nonNil(items)}, nil
}

func (s *analyticsService) Alerts(ctx context.Context, farmID uuid.UUID) (*Alerts, error) {
	f, state, err := s.graph(ctx, farmID)
	if err != nil {
		return nil, err
	}
	anomalies, err := s.engine.DetectAnomalies(ctx, state)
	if err != nil {
		return nil, err
	}
	nutrients, err := s.engine.NutrientReport(ctx, state)
	if err != nil {
		return nil, err
	}
	index, err := s.topology.ZoneIndex(dbctx.Context{Ctx: ctx}, farmID)
	if err != nil {
		return nil, err
	}

	byZone := map[string][]AlertItem{}
	add := func(item map[string]any, source, severity string) {
		key := alertZone(item, index)
		byZone[key] = append(byZone[key], AlertItem{Source: source, Severity: severity, Payload: item})
	}
	for _, item := range anomalies {
		add(item, "anomaly", firstString(item, "warning", "severity", "urgency"))
	}
	for _, item := range nutrients {
		add(item, "nutrients", firstString(item, "info", "urgency", "severity"))
	}
	if f.FarmType == farm.FarmTypeGreenhouse || f.FarmType == farm.FarmTypeHybrid {
		for _, item := range anomalies {
			if layer, _ := item["layer"].(string); layer == string(farm.LayerVision) {
				add(item, "vision", firstString(item, "warning", "severity"))
			}
		}
	}

	keys := make([]string, 0, len(byZone))
	for k := range byZone {
		keys = append(keys, k)
	}
	// the farm-level bucket ("") sorts last
	sort.Slice(keys, func(i, j int) bool {
		if keys[i] == "" || keys[j] == "" {
			return keys[j] == "" && keys[i] != ""
		}
		return keys[i] < keys[j]
	})

	out := &Alerts{FarmID: farmID, GeneratedAt: time.Now().UTC(), Zones: []ZoneAlerts{}}
	for _, k := range keys {
		za := ZoneAlerts{Alerts: byZone[k]}
		if k != "" {
			id := uuid.MustParse(k)
			za.ZoneID = &id
		}
		out.Zones = append(out.Zones, za)
	}
	return out, nil
}

// alertZone resolves the zone of an engine item from zone_id or, failing
// that, vertex_id. Unparseable or unknown ids land in the farm bucket.
func alertZone(item map[string]any, index map[string]string) string {
	if raw, ok := item["zone_id"]; ok && raw != nil {
		id, err := uuid.Parse(fmt.Sprint(raw))
		if err != nil {
			return ""
		}
		return id.String()
	}
	raw, ok := item["vertex_id"]
	if !ok || raw == nil {
		return ""
	}
	id, err := uuid.Parse(fmt.Sprint(raw))
	if err != nil {
		return ""
	}
	return index[id.String()]
}

// firstString returns the first non-empty value among keys, else def.
func firstString(item map[string]any, def string, keys ...string) string {
	for _, k := range keys {
		if v, ok := item[k]; ok && v != nil {
			if s := fmt.Sprint(v); s != "" {
				return s
			}
		}
	}
	return def
}

func (s *analyticsService) TrainYieldResidual(ctx context.Context, farmID uuid.UUID, outcomes map[string]float64) (map[string]any, error) {
	if len(outcomes) == 0 {
		return nil, apperr.Invalid("outcomes must not be empty")
	}
	_, state, err := s.graph(ctx, farmID)
	if err != nil {
		return nil, err
	}
	return s.engine.TrainYieldResidual(ctx, state, outcomes)
}

func (s *analyticsService) GenerateSynthetic(ctx context.Context, farmType string, days int, seed int64) (map[string]any, error) {
	if farmType != "" && !types.FarmType(farmType).Valid() {
		return nil, apperr.Invalid("unsupported farm_type: %s", farmType)
	}
	if days < 0 || days > 3650 {
		return nil, apperr.Invalid("days must be between 1 and 3650")
	}
	return s.engine.GenerateSynthetic(ctx, farmType, days, seed)
}
