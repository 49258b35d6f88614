package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/agrisense/agrisense-backend/internal/domain"
	domainjobs "github.com/agrisense/agrisense-backend/internal/domain/jobs"
	"github.com/agrisense/agrisense-backend/internal/data/repos/repoerr"
	"github.com/agrisense/agrisense-backend/internal/pkg/dbctx"
	"github.com/agrisense/agrisense-backend/internal/platform/logger"
)

type RecomputeJobRepo interface {
	Create(dbc dbctx.Context, job *types.RecomputeJob) (*types.RecomputeJob, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.RecomputeJob, error)
	ListByFarm(dbc dbctx.Context, farmID uuid.UUID, limit int) ([]*types.RecomputeJob, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	// UpdateFieldsIfStatus applies updates only while the row still has the
	// expected status. It reports whether a row changed.
	UpdateFieldsIfStatus(dbc dbctx.Context, id uuid.UUID, expected types.JobStatus, updates map[string]interface{}) (bool, error)
	HasActiveForFarm(dbc dbctx.Context, farmID uuid.UUID) (bool, error)
}

type recomputeJobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRecomputeJobRepo(db *gorm.DB, baseLog *logger.Logger) RecomputeJobRepo {
	return &recomputeJobRepo{
		db:  db,
		log: baseLog.With("repo", "RecomputeJobRepo"),
	}
}

func (r *recomputeJobRepo) Create(dbc dbctx.Context, job *types.RecomputeJob) (*types.RecomputeJob, error) {
	if err := dbc.DB(r.db).Create(job).Error; err != nil {
		return nil, repoerr.Map(err)
	}
	return job, nil
}

func (r *recomputeJobRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.RecomputeJob, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var job types.RecomputeJob
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&job).Error; err != nil {
		return nil, repoerr.Map(err)
	}
	if job.ID == uuid.Nil {
		return nil, nil
	}
	return &job, nil
}

func (r *recomputeJobRepo) ListByFarm(dbc dbctx.Context, farmID uuid.UUID, limit int) ([]*types.RecomputeJob, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []*types.RecomputeJob
	if err := dbc.DB(r.db).
		Where("farm_id = ?", farmID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, repoerr.Map(err)
	}
	return out, nil
}

func (r *recomputeJobRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return repoerr.Map(dbc.DB(r.db).
		Model(&types.RecomputeJob{}).
		Where("id = ?", id).
		Updates(updates).Error)
}

func (r *recomputeJobRepo) UpdateFieldsIfStatus(dbc dbctx.Context, id uuid.UUID, expected types.JobStatus, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	res := dbc.DB(r.db).
		Model(&types.RecomputeJob{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(updates)
	if res.Error != nil {
		return false, repoerr.Map(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *recomputeJobRepo) HasActiveForFarm(dbc dbctx.Context, farmID uuid.UUID) (bool, error) {
	var count int64
	err := dbc.DB(r.db).
		Model(&types.RecomputeJob{}).
		Where("farm_id = ? AND status IN ?", farmID, []types.JobStatus{domainjobs.JobStatusQueued, domainjobs.JobStatusRunning}).
		Count(&count).Error
	if err != nil {
		return false, repoerr.Map(err)
	}
	return count > 0, nil
}
