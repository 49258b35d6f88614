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

type ZoneRepo interface {
	Create(dbc dbctx.Context, zone *types.Zone) (*types.Zone, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Zone, error)
	ListByFarm(dbc dbctx.Context, farmID uuid.UUID) ([]*types.Zone, error)
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type zoneRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewZoneRepo(db *gorm.DB, baseLog *logger.Logger) ZoneRepo {
	return &zoneRepo{
		db:  db,
		log: baseLog.With("repo", "ZoneRepo"),
	}
}

func (r *zoneRepo) Create(dbc dbctx.Context, zone *types.Zone) (*types.Zone, error) {
	if err := dbc.DB(r.db).Create(zone).Error; err != nil {
		return nil, repoerr.Map(err)
	}
	return zone, nil
}

func (r *zoneRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Zone, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var zone types.Zone
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&zone).Error; err != nil {
		return nil, repoerr.Map(err)
	}
	if zone.ID == uuid.Nil {
		return nil, nil
	}
	return &zone, nil
}

func (r *zoneRepo) ListByFarm(dbc dbctx.Context, farmID uuid.UUID) ([]*types.Zone, error) {
	var out []*types.Zone
	if err := dbc.DB(r.db).
		Where("farm_id = ?", farmID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, repoerr.Map(err)
	}
	return out, nil
}

// Delete detaches the zone's vertices instead of removing them. NPK samples
// are keyed by zone and go with it.
func (r *zoneRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	return repoerr.Map(dbc.DB(r.db).Transaction(func(txx *gorm.DB) error {
		if err := txx.Model(&types.Vertex{}).
			Where("zone_id = ?", id).
			Updates(map[string]interface{}{"zone_id": nil, "updated_at": time.Now()}).Error; err != nil {
			return err
		}
		if err := txx.Where("zone_id = ?", id).Delete(&types.NpkSample{}).Error; err != nil {
			return err
		}
		return txx.Where("id = ?", id).Delete(&types.Zone{}).Error
	}))
}
