package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/agrisense/agrisense-backend/internal/domain"
	"github.com/agrisense/agrisense-backend/internal/domain/telemetry"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(types.Models()...)
}

// EnsureTelemetryIndexes creates the (reference, time DESC) index on every
// time series table. Safe to re-run.
func EnsureTelemetryIndexes(db *gorm.DB) error {
	for _, idx := range telemetry.Indexes() {
		name := fmt.Sprintf("idx_%s_%s_%s", idx.Table, idx.Reference, idx.TimeCol)
		stmt := fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS %s ON %s (%s, %s DESC);`,
			name, idx.Table, idx.Reference, idx.TimeCol,
		)
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
	}
	return nil
}

func Migrate(db *gorm.DB) error {
	if err := AutoMigrateAll(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return EnsureTelemetryIndexes(db)
}
