package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/marketing-image-engine/internal/domain/marketingimage"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&marketingimage.SnapshotRecord{},
		&marketingimage.EventRecord{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return EnsureEventIndexes(db)
}

// EnsureEventIndexes adds the composite indexes the event log queries use.
// Both statements are valid on postgres and sqlite.
func EnsureEventIndexes(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_mi_event_aggregate_sequence
		ON marketing_image_domain_event (aggregate_id, sequence);
	`).Error; err != nil {
		return fmt.Errorf("create idx_mi_event_aggregate_sequence: %w", err)
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_mi_event_publish_pending
		ON marketing_image_domain_event (publish_status, occurred_at);
	`).Error; err != nil {
		return fmt.Errorf("create idx_mi_event_publish_pending: %w", err)
	}
	return nil
}
