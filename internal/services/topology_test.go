package services_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/agrisense/agrisense-backend/internal/data/repos/testutil"
	"github.com/agrisense/agrisense-backend/internal/domain/farm"
	"github.com/agrisense/agrisense-backend/internal/engine"
	apperr "github.com/agrisense/agrisense-backend/internal/pkg/errors"
	"github.com/agrisense/agrisense-backend/internal/pkg/dbctx"
	"github.com/agrisense/agrisense-backend/internal/services"
)

func TestCreateFarmValidation(t *testing.T) {
	e := newEnv(t)
	dbc := dbctx.Context{Ctx: context.Background()}

	cases := []services.FarmInput{
		{Name: " ", FarmType: farm.FarmTypeGreenhouse},
		{Name: "north", FarmType: "orchard"},
		{Name: "north", FarmType: farm.FarmTypeHybrid, Timezone: "Mars/Olympus"},
	}
	for i, in := range cases {
		if _, err := e.topo.CreateFarm(dbc, in); !apperr.IsInvalid(err) {
			t.Fatalf("case %d: expected invalid, got %v", i, err)
		}
	}

	f, err := e.topo.CreateFarm(dbc, services.FarmInput{Name: "north", FarmType: farm.FarmTypeHybrid})
	if err != nil {
		t.Fatalf("CreateFarm: %v", err)
	}
	if f.Timezone != "UTC" {
		t.Fatalf("timezone should default to UTC, got %q", f.Timezone)
	}
	if _, err := e.topo.CreateZone(dbc, f.ID, services.ZoneInput{Name: "z", AreaM2: 10}); !apperr.IsInvalid(err) {
		t.Fatalf("hybrid farms need an explicit zone type, got %v", err)
	}
	z, err := e.topo.CreateZone(dbc, f.ID, services.ZoneInput{Name: "z", ZoneType: farm.ZoneTypeOpenField, AreaM2: 10})
	if err != nil {
		t.Fatalf("CreateZone: %v", err)
	}
	if z.SoilType != "unknown" {
		t.Fatalf("soil type should default, got %q", z.SoilType)
	}
}

func TestCreateZoneForcedByFarmType(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	open := testutil.SeedFarm(t, ctx, e.db, farm.FarmTypeOpenField)

	z, err := e.topo.CreateZone(dbc, open.ID, services.ZoneInput{Name: "a", AreaM2: 1})
	if err != nil || z.ZoneType != farm.ZoneTypeOpenField {
		t.Fatalf("expected open_field zone, got %+v %v", z, err)
	}
	if _, err := e.topo.CreateZone(dbc, open.ID, services.ZoneInput{Name: "b", ZoneType: farm.ZoneTypeGreenhouse, AreaM2: 1}); !apperr.IsInvalid(err) {
		t.Fatalf("expected invalid, got %v", err)
	}
	if _, err := e.topo.CreateZone(dbc, open.ID, services.ZoneInput{Name: "c", AreaM2: 0}); !apperr.IsInvalid(err) {
		t.Fatalf("expected invalid area, got %v", err)
	}
	if _, err := e.topo.CreateZone(dbc, uuid.New(), services.ZoneInput{Name: "d", AreaM2: 1}); !apperr.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateVertexValidationOrder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	hybrid := testutil.SeedFarm(t, ctx, e.db, farm.FarmTypeHybrid)
	field := testutil.SeedZone(t, ctx, e.db, hybrid.ID, farm.ZoneTypeOpenField)
	house := testutil.SeedZone(t, ctx, e.db, hybrid.ID, farm.ZoneTypeGreenhouse)
	open := testutil.SeedFarm(t, ctx, e.db, farm.FarmTypeOpenField)
	openZone := testutil.SeedZone(t, ctx, e.db, open.ID, farm.ZoneTypeOpenField)
	missing := uuid.New()

	cases := []struct {
		name   string
		farmID uuid.UUID
		in     services.VertexInput
		want   string
	}{
		{"missing zone", hybrid.ID, services.VertexInput{ZoneID: &missing, VertexType: farm.VertexSensor}, "zone " + missing.String() + " not found"},
		{"foreign zone", hybrid.ID, services.VertexInput{ZoneID: &openZone.ID, VertexType: farm.VertexSensor}, "zone_id does not belong to the target farm"},
		{"camera in field", hybrid.ID, services.VertexInput{ZoneID: &field.ID, VertexType: farm.VertexCamera}, "selected vertex_type requires a greenhouse zone"},
		{"camera on open farm", open.ID, services.VertexInput{ZoneID: &openZone.ID, VertexType: farm.VertexLightFixture}, "selected vertex_type requires a greenhouse zone"},
		{"no zone", hybrid.ID, services.VertexInput{VertexType: farm.VertexValve}, "zone_id is required for non-weather-station vertices"},
	}
	for _, tc := range cases {
		_, err := e.topo.CreateVertex(dbc, tc.farmID, tc.in)
		if err == nil || err.Error() != tc.want {
			t.Fatalf("%s: got %v want %q", tc.name, err, tc.want)
		}
	}

	if _, err := e.topo.CreateVertex(dbc, hybrid.ID, services.VertexInput{ZoneID: &house.ID, VertexType: farm.VertexCamera}); err != nil {
		t.Fatalf("camera in greenhouse zone: %v", err)
	}
	station, err := e.topo.CreateVertex(dbc, hybrid.ID, services.VertexInput{VertexType: farm.VertexWeatherStation})
	if err != nil || station.ZoneID != nil {
		t.Fatalf("farm-level weather station: %+v %v", station, err)
	}
}

func TestHyperEdgeMembership(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	g := testutil.SeedGreenhouse(t, ctx, e.db)
	other := testutil.SeedGreenhouse(t, ctx, e.db)

	if _, err := e.topo.CreateHyperEdge(dbc, g.Farm.ID, services.HyperEdgeInput{Layer: farm.LayerSolar, VertexIDs: []uuid.UUID{g.Sensor.ID}}); !apperr.IsInvalid(err) {
		t.Fatalf("solar is not an edge layer, got %v", err)
	}
	if _, err := e.topo.CreateHyperEdge(dbc, g.Farm.ID, services.HyperEdgeInput{Layer: farm.LayerSoil}); !apperr.IsInvalid(err) {
		t.Fatalf("empty membership must be invalid, got %v", err)
	}
	if _, err := e.topo.CreateHyperEdge(dbc, g.Farm.ID, services.HyperEdgeInput{Layer: farm.LayerSoil, VertexIDs: []uuid.UUID{g.Sensor.ID, other.Sensor.ID}}); !apperr.IsInvalid(err) {
		t.Fatalf("foreign member must be invalid, got %v", err)
	}

	edge, err := e.topo.CreateHyperEdge(dbc, g.Farm.ID, services.HyperEdgeInput{
		Layer:     farm.LayerIrrigation,
		VertexIDs: []uuid.UUID{g.Valve.ID, g.CropBed.ID, g.Valve.ID},
	})
	if err != nil {
		t.Fatalf("CreateHyperEdge: %v", err)
	}
	if len(edge.VertexIDs) != 2 || edge.VertexIDs[0] != g.Valve.ID.String() {
		t.Fatalf("members should be de-duplicated in order, got %v", edge.VertexIDs)
	}

	cfg, err := e.topo.BuildGraphConfig(dbc, g.Farm.ID)
	if err != nil {
		t.Fatalf("BuildGraphConfig: %v", err)
	}
	if cfg["farm_type"] != "greenhouse" || len(cfg["edges"].([]map[string]any)) != 1 || len(cfg["vertices"].([]map[string]any)) != 6 {
		t.Fatalf("unexpected config %v", cfg)
	}
	models := cfg["models"].(map[string]bool)
	if !models["irrigation"] || !models["anomaly_detection"] {
		t.Fatalf("model defaults missing: %v", models)
	}
}

func TestGetGraphAndZoneQueries(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	g := testutil.SeedGreenhouse(t, ctx, e.db)
	empty := testutil.SeedZone(t, ctx, e.db, g.Farm.ID, farm.ZoneTypeGreenhouse)

	st, err := e.topo.GetGraph(dbc, g.Farm.ID)
	if err != nil {
		t.Fatalf("GetGraph: %v", err)
	}
	sum, err := st.Summary()
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if st.Version != 1 || sum.NVertices != 6 || e.backend.Calls(engine.OpBuild) != 1 {
		t.Fatalf("unexpected graph %+v %+v", st, sum)
	}

	if _, err := e.topo.ResolveZoneQueryVertexID(dbc, g.Farm.ID, empty.ID); !apperr.IsNotFound(err) {
		t.Fatalf("empty zone must be not found, got %v", err)
	}
	idx, err := e.topo.ZoneIndex(dbc, g.Farm.ID)
	if err != nil {
		t.Fatalf("ZoneIndex: %v", err)
	}
	if idx[g.Station.ID.String()] != "" || idx[g.Camera.ID.String()] != g.Zone.ID.String() {
		t.Fatalf("unexpected zone index %v", idx)
	}

	detail, err := e.topo.FarmDetail(dbc, g.Farm.ID)
	if err != nil {
		t.Fatalf("FarmDetail: %v", err)
	}
	if len(detail.ActiveLayers) != 7 || len(detail.Zones) != 2 {
		t.Fatalf("unexpected detail %+v", detail)
	}
	if err := e.topo.ProjectTopology(ctx, g.Farm.ID); err != nil {
		t.Fatalf("projection without neo4j should be a no-op: %v", err)
	}
	if err := e.topo.DeleteFarm(dbc, g.Farm.ID); err != nil {
		t.Fatalf("DeleteFarm: %v", err)
	}
	if _, err := e.topo.GetFarm(dbc, g.Farm.ID); !apperr.IsNotFound(err) {
		t.Fatalf("expected deleted farm to be gone, got %v", err)
	}
}
