package telemetry

import (
	"context"
	"testing"
	"time"

	types "github.com/agrisense/agrisense-backend/internal/domain"
	"github.com/agrisense/agrisense-backend/internal/domain/farm"
	domaintelemetry "github.com/agrisense/agrisense-backend/internal/domain/telemetry"
	"github.com/agrisense/agrisense-backend/internal/data/repos/testutil"
	"github.com/agrisense/agrisense-backend/internal/pkg/dbctx"
	"github.com/agrisense/agrisense-backend/internal/pkg/pointers"
)

func TestAppendAssignsIDsInOrder(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewTelemetryRepo(db, testutil.Logger(t))

	f := testutil.SeedFarm(t, ctx, tx, farm.FarmTypeGreenhouse)
	z := testutil.SeedZone(t, ctx, tx, f.ID, farm.ZoneTypeGreenhouse)
	s := testutil.SeedVertex(t, ctx, tx, f.ID, &z.ID, farm.VertexSensor, "")

	now := time.Now().UTC()
	rows := []*types.SoilReading{
		{SensorID: s.ID, Timestamp: now, Moisture: 0.1, Temperature: 18},
		{SensorID: s.ID, Timestamp: now.Add(time.Minute), Moisture: 0.2, Temperature: 19},
	}
	if err := repo.Append(dbc, rows); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if rows[0].ID == 0 || rows[1].ID <= rows[0].ID {
		t.Fatalf("expected increasing ids, got %d, %d", rows[0].ID, rows[1].ID)
	}
	if rows[0].IngestedAt.IsZero() {
		t.Fatalf("expected ingested_at set")
	}
}

func TestCloseIrrigationEventOnce(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewTelemetryRepo(db, testutil.Logger(t))

	f := testutil.SeedFarm(t, ctx, tx, farm.FarmTypeOpenField)
	z := testutil.SeedZone(t, ctx, tx, f.ID, farm.ZoneTypeOpenField)
	valve := testutil.SeedVertex(t, ctx, tx, f.ID, &z.ID, farm.VertexValve, "")

	start := time.Now().UTC().Add(-time.Hour)
	ev := &types.IrrigationEvent{ValveID: valve.ID, TimestampStart: start, Trigger: domaintelemetry.TriggerManual}
	if err := repo.Append(dbc, []*types.IrrigationEvent{ev}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	ok, err := repo.CloseIrrigationEvent(dbc, ev.ID, start.Add(30*time.Minute), pointers.Float64(120))
	if err != nil || !ok {
		t.Fatalf("first close: ok=%v err=%v", ok, err)
	}
	ok, err = repo.CloseIrrigationEvent(dbc, ev.ID, start.Add(40*time.Minute), nil)
	if err != nil || ok {
		t.Fatalf("second close must be a no-op: ok=%v err=%v", ok, err)
	}

	got, err := repo.GetIrrigationEvent(dbc, ev.ID)
	if err != nil || got == nil {
		t.Fatalf("GetIrrigationEvent: got=%v err=%v", got, err)
	}
	if got.TimestampEnd == nil || got.VolumeLiters == nil || *got.VolumeLiters != 120 {
		t.Fatalf("unexpected closed event: %+v", got)
	}
}
