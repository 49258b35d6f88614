package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/agrisense/agrisense-backend/internal/domain"
	"github.com/agrisense/agrisense-backend/internal/domain/farm"
)

func SeedFarm(tb testing.TB, ctx context.Context, tx *gorm.DB, farmType types.FarmType) *types.Farm {
	tb.Helper()
	f := &types.Farm{
		ID:       uuid.New(),
		Name:     "farm-" + string(farmType),
		FarmType: farmType,
		Timezone: "UTC",
	}
	if err := tx.WithContext(ctx).Create(f).Error; err != nil {
		tb.Fatalf("seed farm: %v", err)
	}
	return f
}

func SeedZone(tb testing.TB, ctx context.Context, tx *gorm.DB, farmID uuid.UUID, zoneType types.ZoneType) *types.Zone {
	tb.Helper()
	z := &types.Zone{
		ID:       uuid.New(),
		FarmID:   farmID,
		Name:     "zone-" + string(zoneType),
		ZoneType: zoneType,
		AreaM2:   100,
		SoilType: "loam",
	}
	if err := tx.WithContext(ctx).Create(z).Error; err != nil {
		tb.Fatalf("seed zone: %v", err)
	}
	return z
}

// SeedVertex creates a vertex; zoneID may be nil for weather stations.
func SeedVertex(tb testing.TB, ctx context.Context, tx *gorm.DB, farmID uuid.UUID, zoneID *uuid.UUID, vertexType types.VertexType, config string) *types.Vertex {
	tb.Helper()
	if config == "" {
		config = "{}"
	}
	v := &types.Vertex{
		ID:         uuid.New(),
		FarmID:     farmID,
		ZoneID:     zoneID,
		VertexType: vertexType,
		Config:     datatypes.JSON([]byte(config)),
	}
	if err := tx.WithContext(ctx).Create(v).Error; err != nil {
		tb.Fatalf("seed vertex: %v", err)
	}
	return v
}

// GreenhouseFarm seeds a greenhouse farm with one zone holding a soil
// sensor, a camera, a crop bed, a valve and a light fixture.
type GreenhouseFarm struct {
	Farm    *types.Farm
	Zone    *types.Zone
	Sensor  *types.Vertex
	Camera  *types.Vertex
	CropBed *types.Vertex
	Valve   *types.Vertex
	Light   *types.Vertex
	Station *types.Vertex
}

func SeedGreenhouse(tb testing.TB, ctx context.Context, tx *gorm.DB) GreenhouseFarm {
	tb.Helper()
	f := SeedFarm(tb, ctx, tx, farm.FarmTypeGreenhouse)
	z := SeedZone(tb, ctx, tx, f.ID, farm.ZoneTypeGreenhouse)
	return GreenhouseFarm{
		Farm:    f,
		Zone:    z,
		Sensor:  SeedVertex(tb, ctx, tx, f.ID, &z.ID, farm.VertexSensor, `{"sensor_type":"soil"}`),
		Camera:  SeedVertex(tb, ctx, tx, f.ID, &z.ID, farm.VertexCamera, ""),
		CropBed: SeedVertex(tb, ctx, tx, f.ID, &z.ID, farm.VertexCropBed, ""),
		Valve:   SeedVertex(tb, ctx, tx, f.ID, &z.ID, farm.VertexValve, ""),
		Light:   SeedVertex(tb, ctx, tx, f.ID, &z.ID, farm.VertexLightFixture, ""),
		Station: SeedVertex(tb, ctx, tx, f.ID, nil, farm.VertexWeatherStation, ""),
	}
}

func CountRows(tb testing.TB, tx *gorm.DB, model any, query string, args ...any) int64 {
	tb.Helper()
	var n int64
	if err := tx.Model(model).Where(query, args...).Count(&n).Error; err != nil {
		tb.Fatalf("count rows: %v", err)
	}
	return n
}
