package marketingimage

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SnapshotRecord is the current-state row for one image. It disappears when
// the image is removed; the event log keeps the history.
type SnapshotRecord struct {
	ID                   uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	URL                  string         `gorm:"column:url;not null" json:"url"`
	Description          string         `gorm:"column:description;not null" json:"description"`
	Keywords             datatypes.JSON `gorm:"column:keywords" json:"keywords"`
	GenerationModel      string         `gorm:"column:generation_model;not null" json:"generation_model"`
	GenerationParameters datatypes.JSON `gorm:"column:generation_parameters" json:"generation_parameters"`
	Width                int            `gorm:"column:width;not null" json:"width"`
	Height               int            `gorm:"column:height;not null" json:"height"`
	Size                 int64          `gorm:"column:size;not null" json:"size"`
	MimeType             string         `gorm:"column:mime_type;not null" json:"mime_type"`
	Checksum             string         `gorm:"column:checksum;not null" json:"checksum"`
	Status               string         `gorm:"column:status;not null;index" json:"status"`
	CreatedBy            string         `gorm:"column:created_by;not null;index" json:"created_by"`
	CreatedAt            time.Time      `gorm:"column:created_at;not null;index" json:"created_at"`
	LastModifiedAt       time.Time      `gorm:"column:last_modified_at;not null" json:"last_modified_at"`
	Version              int            `gorm:"column:version;not null" json:"version"`
}

func (SnapshotRecord) TableName() string { return "marketing_image_aggregate" }

const (
	PublishStatusPending   = "pending"
	PublishStatusPublished = "published"
	PublishStatusFailed    = "failed"
)

// EventRecord is one row of the append-only domain event log. The payload
// columns never change after insert; the publish_* columns track delivery so
// undelivered events can be swept and republished.
type EventRecord struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	AggregateID      uuid.UUID      `gorm:"type:uuid;column:aggregate_id;not null;index" json:"aggregate_id"`
	Kind             string         `gorm:"column:kind;not null;index" json:"kind"`
	Type             string         `gorm:"column:type;not null" json:"type"`
	Source           string         `gorm:"column:source;not null" json:"source"`
	Version          string         `gorm:"column:version;not null" json:"version"`
	Data             datatypes.JSON `gorm:"column:data;not null" json:"data"`
	OccurredAt       time.Time      `gorm:"column:occurred_at;not null;index" json:"occurred_at"`
	Sequence         int64          `gorm:"column:sequence;not null;index" json:"sequence"`
	PublishStatus    string         `gorm:"column:publish_status;not null;index" json:"publish_status"`
	PublishAttempts  int            `gorm:"column:publish_attempts;not null" json:"publish_attempts"`
	MessageID        string         `gorm:"column:message_id" json:"message_id,omitempty"`
	LastPublishError string         `gorm:"column:last_publish_error" json:"last_publish_error,omitempty"`
	PublishedAt      *time.Time     `gorm:"column:published_at" json:"published_at,omitempty"`
}

func (EventRecord) TableName() string { return "marketing_image_domain_event" }
