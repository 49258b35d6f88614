package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/agrisense/agrisense-backend/internal/data/repos/testutil"
	"github.com/agrisense/agrisense-backend/internal/domain/farm"
	"github.com/agrisense/agrisense-backend/internal/domain/telemetry"
	"github.com/agrisense/agrisense-backend/internal/engine"
	"github.com/agrisense/agrisense-backend/internal/graphcache"
	"github.com/agrisense/agrisense-backend/internal/ingest"
	apperr "github.com/agrisense/agrisense-backend/internal/pkg/errors"
	"github.com/agrisense/agrisense-backend/internal/services"
)

var ts = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

func TestIrrigationScheduleCache(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	g := testutil.SeedGreenhouse(t, ctx, e.db)
	svc := services.NewAnalyticsService(e.log, e.set, e.topo, e.engine, services.NewMemoryStatusCache())

	for _, h := range []int{0, 31} {
		if _, err := svc.IrrigationSchedule(ctx, g.Farm.ID, h); !apperr.IsInvalid(err) {
			t.Fatalf("horizon %d: expected invalid, got %v", h, err)
		}
	}

	first, err := svc.IrrigationSchedule(ctx, g.Farm.ID, 3)
	if err != nil {
		t.Fatalf("IrrigationSchedule: %v", err)
	}
	if first.Cached || first.HorizonDays != 3 {
		t.Fatalf("first call must compute, got %+v", first)
	}
	second, err := svc.IrrigationSchedule(ctx, g.Farm.ID, 3)
	if err != nil {
		t.Fatalf("IrrigationSchedule: %v", err)
	}
	if !second.Cached || len(second.Items) != len(first.Items) {
		t.Fatalf("second call must come from cache, got %+v", second)
	}
	if got := e.backend.Calls(engine.OpIrrigationSchedule); got != 1 {
		t.Fatalf("expected one engine call, got %d", got)
	}
	if _, err := svc.IrrigationSchedule(ctx, uuid.New(), 3); !apperr.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAlertsGroupByZone(t *testing.T) {
	e := newEnv(t)
	bg := context.Background()
	g := testutil.SeedGreenhouse(t, bg, e.db)
	ing := ingest.NewService(e.db, e.log, e.set, e.topo, e.engine, nil, nil)
	svc := services.NewAnalyticsService(e.log, e.set, e.topo, e.engine, nil)

	ctx := graphcache.WithScope(bg)
	if _, err := ing.Ingest(ctx, g.Farm.ID, farm.LayerSoil, []ingest.Record{
		ingest.SoilReadingIn{SensorID: g.Sensor.ID, Timestamp: ts, Moisture: 0.05, Temperature: 22},
	}); err != nil {
		t.Fatalf("Ingest soil: %v", err)
	}
	if _, err := ing.Ingest(ctx, g.Farm.ID, farm.LayerVision, []ingest.Record{
		ingest.VisionEventIn{CameraID: g.Camera.ID, CropBedID: g.CropBed.ID, Timestamp: ts, AnomalyType: telemetry.AnomalyPest, Confidence: 0.9},
	}); err != nil {
		t.Fatalf("Ingest vision: %v", err)
	}

	alerts, err := svc.Alerts(ctx, g.Farm.ID)
	if err != nil {
		t.Fatalf("Alerts: %v", err)
	}
	if len(alerts.Zones) != 1 || alerts.Zones[0].ZoneID == nil || *alerts.Zones[0].ZoneID != g.Zone.ID {
		t.Fatalf("expected a single zone bucket, got %+v", alerts.Zones)
	}
	bySource := map[string]string{}
	for _, a := range alerts.Zones[0].Alerts {
		layer, _ := a.Payload["layer"].(string)
		bySource[a.Source+"/"+layer] = a.Severity
	}
	want := map[string]string{
		"anomaly/vision": "critical",
		"anomaly/soil":   "high",
		"vision/vision":  "critical",
	}
	for k, sev := range want {
		if bySource[k] != sev {
			t.Fatalf("%s: got severity %q, all: %v", k, bySource[k], bySource)
		}
	}
}

func TestFarmStatusSkipsEmptyZones(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	g := testutil.SeedGreenhouse(t, ctx, e.db)
	testutil.SeedZone(t, ctx, e.db, g.Farm.ID, farm.ZoneTypeGreenhouse)
	svc := services.NewAnalyticsService(e.log, e.set, e.topo, e.engine, nil)

	st, err := svc.FarmStatus(ctx, g.Farm.ID)
	if err != nil {
		t.Fatalf("FarmStatus: %v", err)
	}
	if len(st.Zones) != 1 || st.Zones[0].ZoneID != g.Zone.ID || st.Zones[0].Status["vertex_id"] != st.Zones[0].QueryVertexID {
		t.Fatalf("unexpected status %+v", st.Zones)
	}
}

func TestZoneDetail(t *testing.T) {
	e := newEnv(t)
	ctx := graphcache.WithScope(context.Background())
	g := testutil.SeedGreenhouse(t, ctx, e.db)
	other := testutil.SeedGreenhouse(t, ctx, e.db)
	svc := services.NewAnalyticsService(e.log, e.set, e.topo, e.engine, nil)

	if _, err := svc.ZoneDetail(ctx, g.Farm.ID, nil, nil); !apperr.IsInvalid(err) {
		t.Fatalf("expected invalid without ids, got %v", err)
	}
	if _, err := svc.ZoneDetail(ctx, g.Farm.ID, nil, &other.Camera.ID); !apperr.IsInvalid(err) {
		t.Fatalf("foreign vertex must be invalid, got %v", err)
	}

	d, err := svc.ZoneDetail(ctx, g.Farm.ID, nil, &g.Camera.ID)
	if err != nil {
		t.Fatalf("ZoneDetail: %v", err)
	}
	if d.ZoneID == nil || *d.ZoneID != g.Zone.ID || d.QueryVertexID != g.Camera.ID.String() {
		t.Fatalf("vertex zone should be the default, got %+v", d)
	}
	// greenhouse: irrigation, lighting, npk, soil, vision, weather
	if len(d.CrossLayer) != 15 || d.CrossLayer[0].LayerA != "irrigation" || d.CrossLayer[0].LayerB != "lighting" {
		t.Fatalf("unexpected cross-layer pairs %+v", d.CrossLayer)
	}
	if e.backend.Calls(engine.OpBuild) != 1 {
		t.Fatalf("scope should serve every read, got %d builds", e.backend.Calls(engine.OpBuild))
	}
}

func TestTrainAndSynthetic(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	g := testutil.SeedGreenhouse(t, ctx, e.db)
	svc := services.NewAnalyticsService(e.log, e.set, e.topo, e.engine, nil)

	if _, err := svc.TrainYieldResidual(ctx, g.Farm.ID, nil); !apperr.IsInvalid(err) {
		t.Fatalf("expected invalid on empty outcomes, got %v", err)
	}
	res, err := svc.TrainYieldResidual(ctx, g.Farm.ID, map[string]float64{g.CropBed.ID.String(): 4.4})
	if err != nil {
		t.Fatalf("TrainYieldResidual: %v", err)
	}
	if res["n_samples"] != float64(1) {
		t.Fatalf("unexpected training result %v", res)
	}

	if _, err := svc.GenerateSynthetic(ctx, "orchard", 10, 1); !apperr.IsInvalid(err) {
		t.Fatalf("expected invalid farm type, got %v", err)
	}
	a, err := svc.GenerateSynthetic(ctx, "open_field", 5, 42)
	if err != nil {
		t.Fatalf("GenerateSynthetic: %v", err)
	}
	if a["farm_type"] != "open_field" {
		t.Fatalf("unexpected synthetic payload %v", a)
	}
}
