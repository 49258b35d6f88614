package telemetry

import (
	"time"

	"gorm.io/gorm"

	types "github.com/agrisense/agrisense-backend/internal/domain"
	"github.com/agrisense/agrisense-backend/internal/data/repos/repoerr"
	"github.com/agrisense/agrisense-backend/internal/pkg/dbctx"
	"github.com/agrisense/agrisense-backend/internal/platform/logger"
)

type TelemetryRepo interface {
	// Append flushes rows (a slice of row pointers) in a single insert; ids
	// are populated on return.
	Append(dbc dbctx.Context, rows any) error
	GetIrrigationEvent(dbc dbctx.Context, id int64) (*types.IrrigationEvent, error)
	// CloseIrrigationEvent sets the end of an open event. It reports false
	// when the event was already closed.
	CloseIrrigationEvent(dbc dbctx.Context, id int64, end time.Time, volumeLiters *float64) (bool, error)
}

type telemetryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTelemetryRepo(db *gorm.DB, baseLog *logger.Logger) TelemetryRepo {
	return &telemetryRepo{
		db:  db,
		log: baseLog.With("repo", "TelemetryRepo"),
	}
}

func (r *telemetryRepo) Append(dbc dbctx.Context, rows any) error {
	if rows == nil {
		return nil
	}
	return repoerr.Map(dbc.DB(r.db).Create(rows).Error)
}

func (r *telemetryRepo) GetIrrigationEvent(dbc dbctx.Context, id int64) (*types.IrrigationEvent, error) {
	var ev types.IrrigationEvent
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&ev).Error; err != nil {
		return nil, repoerr.Map(err)
	}
	if ev.ID == 0 {
		return nil, nil
	}
	return &ev, nil
}

func (r *telemetryRepo) CloseIrrigationEvent(dbc dbctx.Context, id int64, end time.Time, volumeLiters *float64) (bool, error) {
	updates := map[string]interface{}{"timestamp_end": end}
	if volumeLiters != nil {
		updates["volume_liters"] = *volumeLiters
	}
	res := dbc.DB(r.db).Model(&types.IrrigationEvent{}).
		Where("id = ? AND timestamp_end IS NULL", id).
		Updates(updates)
	if res.Error != nil {
		return false, repoerr.Map(res.Error)
	}
	return res.RowsAffected == 1, nil
}
