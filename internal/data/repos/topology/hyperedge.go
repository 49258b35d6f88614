package topology

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/agrisense/agrisense-backend/internal/domain"
	"github.com/agrisense/agrisense-backend/internal/data/repos/repoerr"
	"github.com/agrisense/agrisense-backend/internal/pkg/dbctx"
	"github.com/agrisense/agrisense-backend/internal/platform/logger"
)

type HyperEdgeRepo interface {
	Create(dbc dbctx.Context, edge *types.HyperEdge) (*types.HyperEdge, error)
	ListByFarm(dbc dbctx.Context, farmID uuid.UUID) ([]*types.HyperEdge, error)
}

type hyperEdgeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewHyperEdgeRepo(db *gorm.DB, baseLog *logger.Logger) HyperEdgeRepo {
	return &hyperEdgeRepo{
		db:  db,
		log: baseLog.With("repo", "HyperEdgeRepo"),
	}
}

func (r *hyperEdgeRepo) Create(dbc dbctx.Context, edge *types.HyperEdge) (*types.HyperEdge, error) {
	if err := dbc.DB(r.db).Create(edge).Error; err != nil {
		return nil, repoerr.Map(err)
	}
	return edge, nil
}

func (r *hyperEdgeRepo) ListByFarm(dbc dbctx.Context, farmID uuid.UUID) ([]*types.HyperEdge, error) {
	var out []*types.HyperEdge
	if err := dbc.DB(r.db).
		Where("farm_id = ?", farmID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, repoerr.Map(err)
	}
	return out, nil
}
