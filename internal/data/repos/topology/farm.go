package topology

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/agrisense/agrisense-backend/internal/domain"
	"github.com/agrisense/agrisense-backend/internal/data/repos/repoerr"
	"github.com/agrisense/agrisense-backend/internal/pkg/dbctx"
	"github.com/agrisense/agrisense-backend/internal/platform/logger"
)

type FarmRepo interface {
	Create(dbc dbctx.Context, farm *types.Farm) (*types.Farm, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Farm, error)
	List(dbc dbctx.Context) ([]*types.Farm, error)
	Exists(dbc dbctx.Context, id uuid.UUID) (bool, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type farmRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFarmRepo(db *gorm.DB, baseLog *logger.Logger) FarmRepo {
	return &farmRepo{
		db:  db,
		log: baseLog.With("repo", "FarmRepo"),
	}
}

func (r *farmRepo) Create(dbc dbctx.Context, farm *types.Farm) (*types.Farm, error) {
	if err := dbc.DB(r.db).Create(farm).Error; err != nil {
		return nil, repoerr.Map(err)
	}
	return farm, nil
}

// GetByID returns nil, nil when the farm does not exist.
func (r *farmRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Farm, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var farm types.Farm
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&farm).Error; err != nil {
		return nil, repoerr.Map(err)
	}
	if farm.ID == uuid.Nil {
		return nil, nil
	}
	return &farm, nil
}

func (r *farmRepo) List(dbc dbctx.Context) ([]*types.Farm, error) {
	var out []*types.Farm
	if err := dbc.DB(r.db).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, repoerr.Map(err)
	}
	return out, nil
}

func (r *farmRepo) Exists(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := dbc.DB(r.db).Model(&types.Farm{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, repoerr.Map(err)
	}
	return count > 0, nil
}

func (r *farmRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return repoerr.Map(dbc.DB(r.db).Model(&types.Farm{}).Where("id = ?", id).Updates(updates).Error)
}

// Delete removes the farm and everything it owns in one transaction:
// time series rows, hyperedges, vertices, zones and recompute jobs.
func (r *farmRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	const farmVertices = "(SELECT id FROM vertex WHERE farm_id = ?)"
	const farmZones = "(SELECT id FROM zone WHERE farm_id = ?)"

	return repoerr.Map(dbc.DB(r.db).Transaction(func(txx *gorm.DB) error {
		steps := []struct {
			model any
			query string
			args  []any
		}{
			{&types.SoilReading{}, "sensor_id IN " + farmVertices, []any{id}},
			{&types.WeatherReading{}, "station_id IN " + farmVertices, []any{id}},
			{&types.IrrigationEvent{}, "valve_id IN " + farmVertices, []any{id}},
			{&types.NpkSample{}, "zone_id IN " + farmZones, []any{id}},
			{&types.VisionEvent{}, "camera_id IN " + farmVertices + " OR crop_bed_id IN " + farmVertices, []any{id, id}},
			{&types.LightingReading{}, "fixture_id IN " + farmVertices, []any{id}},
			{&types.HyperEdge{}, "farm_id = ?", []any{id}},
			{&types.Vertex{}, "farm_id = ?", []any{id}},
			{&types.Zone{}, "farm_id = ?", []any{id}},
			{&types.RecomputeJob{}, "farm_id = ?", []any{id}},
		}
		for _, s := range steps {
			if err := txx.Where(s.query, s.args...).Delete(s.model).Error; err != nil {
				return err
			}
		}
		return txx.Where("id = ?", id).Delete(&types.Farm{}).Error
	}))
}
