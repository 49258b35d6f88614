package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// MaxJobErrorLen bounds the stored error text.
const MaxJobErrorLen = 2048

// RecomputeJob tracks one asynchronous full rebuild of a farm's graph state.
// The row is authoritative; the status cache only mirrors it.
type RecomputeJob struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"job_id"`
	FarmID      uuid.UUID  `gorm:"type:uuid;not null;index:idx_recompute_job_farm_status,priority:1" json:"farm_id"`
	Status      JobStatus  `gorm:"column:status;size:16;not null;index:idx_recompute_job_farm_status,priority:2" json:"status"`
	Error       *string    `gorm:"column:error;size:2048" json:"error"`
	CreatedAt   time.Time  `gorm:"not null;autoCreateTime;index" json:"created_at"`
	StartedAt   *time.Time `gorm:"column:started_at" json:"started_at"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at"`
	UpdatedAt   time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (RecomputeJob) TableName() string { return "recompute_job" }

func (j *RecomputeJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.Status == "" {
		j.Status = JobStatusQueued
	}
	return nil
}

// TruncateError clips msg to MaxJobErrorLen bytes without splitting a rune.
func TruncateError(msg string) string {
	if len(msg) <= MaxJobErrorLen {
		return msg
	}
	cut := MaxJobErrorLen
	for cut > 0 && (msg[cut]&0xC0) == 0x80 {
		cut--
	}
	return msg[:cut]
}
