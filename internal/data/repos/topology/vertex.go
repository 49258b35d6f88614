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

type VertexRepo interface {
	Create(dbc dbctx.Context, vertex *types.Vertex) (*types.Vertex, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Vertex, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Vertex, error)
	ListByFarm(dbc dbctx.Context, farmID uuid.UUID) ([]*types.Vertex, error)
	FirstInZone(dbc dbctx.Context, zoneID uuid.UUID, vertexType types.VertexType) (*types.Vertex, error)
	TouchLastSeen(dbc dbctx.Context, ids []uuid.UUID, seenAt time.Time) error
}

type vertexRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVertexRepo(db *gorm.DB, baseLog *logger.Logger) VertexRepo {
	return &vertexRepo{
		db:  db,
		log: baseLog.With("repo", "VertexRepo"),
	}
}

func (r *vertexRepo) Create(dbc dbctx.Context, vertex *types.Vertex) (*types.Vertex, error) {
	if err := dbc.DB(r.db).Create(vertex).Error; err != nil {
		return nil, repoerr.Map(err)
	}
	return vertex, nil
}

func (r *vertexRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Vertex, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var v types.Vertex
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&v).Error; err != nil {
		return nil, repoerr.Map(err)
	}
	if v.ID == uuid.Nil {
		return nil, nil
	}
	return &v, nil
}

func (r *vertexRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Vertex, error) {
	var out []*types.Vertex
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, repoerr.Map(err)
	}
	return out, nil
}

func (r *vertexRepo) ListByFarm(dbc dbctx.Context, farmID uuid.UUID) ([]*types.Vertex, error) {
	var out []*types.Vertex
	if err := dbc.DB(r.db).
		Where("farm_id = ?", farmID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, repoerr.Map(err)
	}
	return out, nil
}

// FirstInZone returns the earliest created vertex of the zone, optionally
// restricted to one type (empty matches any). nil, nil when there is none.
func (r *vertexRepo) FirstInZone(dbc dbctx.Context, zoneID uuid.UUID, vertexType types.VertexType) (*types.Vertex, error) {
	q := dbc.DB(r.db).Where("zone_id = ?", zoneID)
	if vertexType != "" {
		q = q.Where("vertex_type = ?", vertexType)
	}
	var v types.Vertex
	if err := q.Order("created_at ASC").Limit(1).Find(&v).Error; err != nil {
		return nil, repoerr.Map(err)
	}
	if v.ID == uuid.Nil {
		return nil, nil
	}
	return &v, nil
}

func (r *vertexRepo) TouchLastSeen(dbc dbctx.Context, ids []uuid.UUID, seenAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return repoerr.Map(dbc.DB(r.db).Model(&types.Vertex{}).
		Where("id IN ?", ids).
		Where("last_seen_at IS NULL OR last_seen_at < ?", seenAt).
		Updates(map[string]interface{}{"last_seen_at": seenAt, "updated_at": time.Now()}).Error)
}
