package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/agrisense/agrisense-backend/internal/data/graph"
	"github.com/agrisense/agrisense-backend/internal/data/repos"
	types "github.com/agrisense/agrisense-backend/internal/domain"
	"github.com/agrisense/agrisense-backend/internal/domain/farm"
	"github.com/agrisense/agrisense-backend/internal/engine"
	apperr "github.com/agrisense/agrisense-backend/internal/pkg/errors"
	"github.com/agrisense/agrisense-backend/internal/pkg/dbctx"
	"github.com/agrisense/agrisense-backend/internal/platform/logger"
	"github.com/agrisense/agrisense-backend/internal/platform/neo4jdb"
)

type FarmInput struct {
	Name           string          `json:"name"`
	FarmType       types.FarmType  `json:"farm_type"`
	Timezone       string          `json:"timezone"`
	Latitude       *float64        `json:"latitude"`
	Longitude      *float64        `json:"longitude"`
	ModelOverrides map[string]bool `json:"model_overrides"`
}

type ZoneInput struct {
	Name     string         `json:"name"`
	ZoneType types.ZoneType `json:"zone_type"`
	AreaM2   float64        `json:"area_m2"`
	SoilType string         `json:"soil_type"`
	Metadata map[string]any `json:"metadata"`
}

type VertexInput struct {
	ZoneID      *uuid.UUID       `json:"zone_id"`
	VertexType  types.VertexType `json:"vertex_type"`
	Config      map[string]any   `json:"config"`
	InstalledAt *time.Time       `json:"installed_at"`
	LastSeenAt  *time.Time       `json:"last_seen_at"`
}

type HyperEdgeInput struct {
	Layer     types.Layer    `json:"layer"`
	VertexIDs []uuid.UUID    `json:"vertex_ids"`
	Metadata  map[string]any `json:"metadata"`
}

// FarmDetail is a farm with its resolved layers and topology.
type FarmDetail struct {
	*types.Farm
	ActiveLayers []string        `json:"active_layers"`
	Zones        []*types.Zone   `json:"zones"`
	Vertices     []*types.Vertex `json:"vertices"`
}

type TopologyService interface {
	CreateFarm(dbc dbctx.Context, in FarmInput) (*types.Farm, error)
	ListFarms(dbc dbctx.Context) ([]*types.Farm, error)
	GetFarm(dbc dbctx.Context, farmID uuid.UUID) (*types.Farm, error)
	FarmDetail(dbc dbctx.Context, farmID uuid.UUID) (*FarmDetail, error)
	DeleteFarm(dbc dbctx.Context, farmID uuid.UUID) error
	CreateZone(dbc dbctx.Context, farmID uuid.UUID, in ZoneInput) (*types.Zone, error)
	DeleteZone(dbc dbctx.Context, farmID, zoneID uuid.UUID) error
	CreateVertex(dbc dbctx.Context, farmID uuid.UUID, in VertexInput) (*types.Vertex, error)
	CreateHyperEdge(dbc dbctx.Context, farmID uuid.UUID, in HyperEdgeInput) (*types.HyperEdge, error)
	BuildGraphConfig(dbc dbctx.Context, farmID uuid.UUID) (engine.GraphConfig, error)
	GetGraph(dbc dbctx.Context, farmID uuid.UUID) (engine.GraphState, error)
	ResolveZoneQueryVertexID(dbc dbctx.Context, farmID, zoneID uuid.UUID) (string, error)
	ZoneIndex(dbc dbctx.Context, farmID uuid.UUID) (map[string]string, error)
	ProjectTopology(ctx context.Context, farmID uuid.UUID) error
}

type topologyService struct {
	db     *gorm.DB
	log    *logger.Logger
	repos  repos.Set
	engine *engine.Client
	neo4j  *neo4jdb.Client
}

func NewTopologyService(db *gorm.DB, baseLog *logger.Logger, set repos.Set, eng *engine.Client, neo *neo4jdb.Client) TopologyService {
	return &topologyService{
		db:     db,
		log:    baseLog.With("service", "TopologyService"),
		repos:  set,
		engine: eng,
		neo4j:  neo,
	}
}

// ActiveLayersForFarmType is the static layer table as plain tokens.
func ActiveLayersForFarmType(ft types.FarmType) []string {
	return farm.LayerStrings(farm.ActiveLayers(ft))
}

func (s *topologyService) CreateFarm(dbc dbctx.Context, in FarmInput) (*types.Farm, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Invalid("name is required")
	}
	if !in.FarmType.Valid() {
		return nil, apperr.Invalid("invalid farm_type %q", in.FarmType)
	}
	tz := strings.TrimSpace(in.Timezone)
	if tz == "" {
		tz = "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return nil, apperr.Invalid("invalid timezone %q", tz)
	}
	f := &types.Farm{
		Name:      name,
		FarmType:  in.FarmType,
		Timezone:  tz,
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
	}
	if len(in.ModelOverrides) > 0 {
		f.ModelOverrides = mustJSON(in.ModelOverrides)
	}
	return s.repos.Farm.Create(dbc, f)
}

func (s *topologyService) ListFarms(dbc dbctx.Context) ([]*types.Farm, error) {
	return s.repos.Farm.List(dbc)
}

func (s *topologyService) GetFarm(dbc dbctx.Context, farmID uuid.UUID) (*types.Farm, error) {
	f, err := s.repos.Farm.GetByID(dbc, farmID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, apperr.NotFound("farm %s not found", farmID)
	}
	return f, nil
}

func (s *topologyService) FarmDetail(dbc dbctx.Context, farmID uuid.UUID) (*FarmDetail, error) {
	f, err := s.GetFarm(dbc, farmID)
	if err != nil {
		return nil, err
	}
	zones, err := s.repos.Zone.ListByFarm(dbc, farmID)
	if err != nil {
		return nil, err
	}
	vertices, err := s.repos.Vertex.ListByFarm(dbc, farmID)
	if err != nil {
		return nil, err
	}
	return &FarmDetail{
		Farm:         f,
		ActiveLayers: ActiveLayersForFarmType(f.FarmType),
		Zones:        nonNil(zones),
		Vertices:     nonNil(vertices),
	}, nil
}

func (s *topologyService) DeleteFarm(dbc dbctx.Context, farmID uuid.UUID) error {
	if _, err := s.GetFarm(dbc, farmID); err != nil {
		return err
	}
	if err := s.repos.Farm.Delete(dbc, farmID); err != nil {
		return err
	}
	s.log.Info("farm deleted", "farm_id", farmID)
	return nil
}

func resolveZoneType(ft types.FarmType, requested types.ZoneType) (types.ZoneType, error) {
	if requested != "" && !requested.Valid() {
		return "", apperr.Invalid("invalid zone_type %q", requested)
	}
	switch ft {
	case farm.FarmTypeOpenField:
		if requested == "" || requested == farm.ZoneTypeOpenField {
			return farm.ZoneTypeOpenField, nil
		}
		return "", apperr.Invalid("open_field farms can only contain open_field zones")
	case farm.FarmTypeGreenhouse:
		if requested == "" || requested == farm.ZoneTypeGreenhouse {
			return farm.ZoneTypeGreenhouse, nil
		}
		return "", apperr.Invalid("greenhouse farms can only contain greenhouse zones")
	}
	if requested == "" {
		return "", apperr.Invalid("hybrid farms require explicit zone_type")
	}
	return requested, nil
}

func (s *topologyService) CreateZone(dbc dbctx.Context, farmID uuid.UUID, in ZoneInput) (*types.Zone, error) {
	f, err := s.GetFarm(dbc, farmID)
	if err != nil {
		return nil, err
	}
	zt, err := resolveZoneType(f.FarmType, in.ZoneType)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Invalid("name is required")
	}
	if in.AreaM2 <= 0 {
		return nil, apperr.Invalid("area_m2 must be greater than 0")
	}
	soil := strings.TrimSpace(in.SoilType)
	if soil == "" {
		soil = "unknown"
	}
	z := &types.Zone{
		FarmID:   f.ID,
		Name:     name,
		ZoneType: zt,
		AreaM2:   in.AreaM2,
		SoilType: soil,
		Metadata: mustJSON(orEmpty(in.Metadata)),
	}
	return s.repos.Zone.Create(dbc, z)
}

func (s *topologyService) DeleteZone(dbc dbctx.Context, farmID, zoneID uuid.UUID) error {
	z, err := s.repos.Zone.GetByID(dbc, zoneID)
	if err != nil {
		return err
	}
	if z == nil || z.FarmID != farmID {
		return apperr.NotFound("zone %s not found", zoneID)
	}
	return s.repos.Zone.Delete(dbc, zoneID)
}

func (s *topologyService) CreateVertex(dbc dbctx.Context, farmID uuid.UUID, in VertexInput) (*types.Vertex, error) {
	f, err := s.GetFarm(dbc, farmID)
	if err != nil {
		return nil, err
	}
	if !in.VertexType.Valid() {
		return nil, apperr.Invalid("invalid vertex_type %q", in.VertexType)
	}
	if in.ZoneID != nil {
		z, err := s.repos.Zone.GetByID(dbc, *in.ZoneID)
		if err != nil {
			return nil, err
		}
		if z == nil {
			return nil, apperr.NotFound("zone %s not found", *in.ZoneID)
		}
		if z.FarmID != f.ID {
			return nil, apperr.Invalid("zone_id does not belong to the target farm")
		}
		if in.VertexType.GreenhouseOnly() && z.ZoneType == farm.ZoneTypeOpenField {
			return nil, apperr.Invalid("selected vertex_type requires a greenhouse zone")
		}
		if in.VertexType.GreenhouseOnly() && f.FarmType == farm.FarmTypeOpenField {
			return nil, apperr.Invalid("open_field farms cannot register greenhouse-only vertex types")
		}
	} else if in.VertexType != farm.VertexWeatherStation {
		return nil, apperr.Invalid("zone_id is required for non-weather-station vertices")
	}

	v := &types.Vertex{
		FarmID:      f.ID,
		ZoneID:      in.ZoneID,
		VertexType:  in.VertexType,
		Config:      mustJSON(orEmpty(in.Config)),
		InstalledAt: in.InstalledAt,
		LastSeenAt:  in.LastSeenAt,
	}
	return s.repos.Vertex.Create(dbc, v)
}

func (s *topologyService) CreateHyperEdge(dbc dbctx.Context, farmID uuid.UUID, in HyperEdgeInput) (*types.HyperEdge, error) {
	if _, err := s.GetFarm(dbc, farmID); err != nil {
		return nil, err
	}
	if !in.Layer.ValidEdgeLayer() {
		return nil, apperr.Invalid("invalid hyperedge layer %q", in.Layer)
	}
	ids := dedupeIDs(in.VertexIDs)
	if len(ids) == 0 {
		return nil, apperr.Invalid("vertex_ids must contain at least one vertex")
	}
	found, err := s.repos.Vertex.GetByIDs(dbc, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*types.Vertex, len(found))
	for _, v := range found {
		byID[v.ID] = v
	}
	members := make([]string, 0, len(ids))
	for _, id := range ids {
		v, ok := byID[id]
		if !ok {
			return nil, apperr.NotFound("vertex %s not found", id)
		}
		if v.FarmID != farmID {
			return nil, apperr.Invalid("vertex %s does not belong to farm %s", id, farmID)
		}
		members = append(members, id.String())
	}
	edge := &types.HyperEdge{
		FarmID:    farmID,
		Layer:     in.Layer,
		VertexIDs: datatypes.JSONSlice[string](members),
		Metadata:  mustJSON(orEmpty(in.Metadata)),
	}
	return s.repos.HyperEdge.Create(dbc, edge)
}

func (s *topologyService) BuildGraphConfig(dbc dbctx.Context, farmID uuid.UUID) (engine.GraphConfig, error) {
	topo, err := s.loadTopology(dbc, farmID)
	if err != nil {
		return nil, err
	}
	f := topo.Farm

	zones := make([]map[string]any, 0, len(topo.Zones))
	for _, z := range topo.Zones {
		zones = append(zones, map[string]any{
			"id":        z.ID.String(),
			"name":      z.Name,
			"zone_type": string(z.ZoneType),
			"area_m2":   z.AreaM2,
			"soil_type": z.SoilType,
		})
	}
	vertices := make([]map[string]any, 0, len(topo.Vertices))
	for _, v := range topo.Vertices {
		entry := map[string]any{
			"id":     v.ID.String(),
			"type":   string(v.VertexType),
			"config": jsonObject(v.Config),
		}
		if v.ZoneID != nil {
			entry["zone_id"] = v.ZoneID.String()
		}
		vertices = append(vertices, entry)
	}
	edges := make([]map[string]any, 0, len(topo.HyperEdges))
	for _, e := range topo.HyperEdges {
		edges = append(edges, map[string]any{
			"id":         e.ID.String(),
			"layer":      string(e.Layer),
			"vertex_ids": []string(e.VertexIDs),
			"metadata":   jsonObject(e.Metadata),
		})
	}

	return engine.GraphConfig{
		"farm_id":       f.ID.String(),
		"farm_type":     string(f.FarmType),
		"active_layers": ActiveLayersForFarmType(f.FarmType),
		"zones":         zones,
		"models":        modelConfig(f.ModelOverrides),
		"vertices":      vertices,
		"edges":         edges,
	}, nil
}

func (s *topologyService) GetGraph(dbc dbctx.Context, farmID uuid.UUID) (engine.GraphState, error) {
	cfg, err := s.BuildGraphConfig(dbc, farmID)
	if err != nil {
		return engine.GraphState{}, err
	}
	return s.engine.Build(dbc.Ctx, cfg)
}

func (s *topologyService) ResolveZoneQueryVertexID(dbc dbctx.Context, farmID, zoneID uuid.UUID) (string, error) {
	z, err := s.repos.Zone.GetByID(dbc, zoneID)
	if err != nil {
		return "", err
	}
	if z == nil {
		return "", apperr.NotFound("zone %s not found", zoneID)
	}
	if z.FarmID != farmID {
		return "", apperr.Invalid("zone_id does not belong to the target farm")
	}
	v, err := s.repos.Vertex.FirstInZone(dbc, zoneID, "")
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", apperr.NotFound("zone_id has no registered vertices for graph status query")
	}
	return v.ID.String(), nil
}

// ZoneIndex maps every vertex id of the farm to its zone id ("" for
// farm-level vertices).
func (s *topologyService) ZoneIndex(dbc dbctx.Context, farmID uuid.UUID) (map[string]string, error) {
	vertices, err := s.repos.Vertex.ListByFarm(dbc, farmID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(vertices))
	for _, v := range vertices {
		if v.ZoneID != nil {
			out[v.ID.String()] = v.ZoneID.String()
		} else {
			out[v.ID.String()] = ""
		}
	}
	return out, nil
}

// ProjectTopology mirrors the farm into Neo4j. It is a no-op without a
// configured client.
func (s *topologyService) ProjectTopology(ctx context.Context, farmID uuid.UUID) error {
	if s.neo4j == nil {
		return nil
	}
	topo, err := s.loadTopology(dbctx.Context{Ctx: ctx}, farmID)
	if err != nil {
		return err
	}
	return graph.UpsertFarmTopology(ctx, s.neo4j, s.log, topo)
}

func (s *topologyService) loadTopology(dbc dbctx.Context, farmID uuid.UUID) (graph.Topology, error) {
	f, err := s.GetFarm(dbc, farmID)
	if err != nil {
		return graph.Topology{}, err
	}
	zones, err := s.repos.Zone.ListByFarm(dbc, farmID)
	if err != nil {
		return graph.Topology{}, err
	}
	vertices, err := s.repos.Vertex.ListByFarm(dbc, farmID)
	if err != nil {
		return graph.Topology{}, err
	}
	edges, err := s.repos.HyperEdge.ListByFarm(dbc, farmID)
	if err != nil {
		return graph.Topology{}, err
	}
	return graph.Topology{Farm: f, Zones: zones, Vertices: vertices, HyperEdges: edges}, nil
}

// modelConfig merges known override keys onto the defaults.
func modelConfig(raw datatypes.JSON) map[string]bool {
	merged := farm.ModelDefaults()
	if len(raw) == 0 {
		return merged
	}
	var overrides map[string]any
	if err := json.Unmarshal(raw, &overrides); err != nil {
		return merged
	}
	for k, v := range overrides {
		if _, ok := merged[k]; !ok {
			continue
		}
		merged[k] = truthy(v)
	}
	return merged
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != "" && t != "false" && t != "0"
	case nil:
		return false
	}
	return true
}

func jsonObject(raw datatypes.JSON) map[string]any {
	out := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out
}

func mustJSON(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON([]byte(`{}`))
	}
	return datatypes.JSON(b)
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
