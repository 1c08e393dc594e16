package integration

import (
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/marketing-image-engine/internal/domain/marketingimage"
)

const (
	DefaultIntegrationEventPrefix = "ai.dev.integrationevent.marketing-image"
	SpecVersion                   = "1.0"
)

// Metadata keys attached to every integration event.
const (
	MetaDomainEventID   = "domain_event_id"
	MetaDomainEventType = "domain_event_type"
	MetaAggregateID     = "aggregate_id"
)

// IntegrationEvent is the thin, externally published projection of a
// domain event. Data never carries image bytes or generation parameters.
type IntegrationEvent struct {
	ID          uuid.UUID      `json:"id"`
	Type        string         `json:"type"`
	Source      string         `json:"source"`
	Version     string         `json:"version"`
	SpecVersion string         `json:"specversion"`
	OccurredAt  time.Time      `json:"occurredAt"`
	Data        any            `json:"data"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type PublishStatus string

const (
	PublishSuccess PublishStatus = "success"
	PublishFailure PublishStatus = "failure"
)

// PublishResult is the messaging collaborator's acknowledgment.
type PublishResult struct {
	Status    PublishStatus `json:"status"`
	MessageID string        `json:"messageId,omitempty"`
	Error     string        `json:"error,omitempty"`
}

func (r PublishResult) OK() bool { return r.Status == PublishSuccess }

type GeneratedPayload struct {
	ID              uuid.UUID                 `json:"id"`
	URL             string                    `json:"url"`
	Description     string                    `json:"description"`
	Dimensions      marketingimage.Dimensions `json:"dimensions"`
	Size            int64                     `json:"size"`
	MimeType        string                    `json:"mime_type"`
	Checksum        string                    `json:"checksum"`
	CreatedBy       string                    `json:"created_by"`
	CreatedAt       time.Time                 `json:"created_at"`
	ClaimCheckToken string                    `json:"claim_check_token"`
}

type ModifiedPayload struct {
	ID              uuid.UUID `json:"id"`
	ModifiedBy      string    `json:"modified_by"`
	ModifiedAt      time.Time `json:"modified_at"`
	ClaimCheckToken string    `json:"claim_check_token"`
}

type ApprovedPayload struct {
	ID              uuid.UUID `json:"id"`
	ApprovedBy      string    `json:"approved_by"`
	ApprovedAt      time.Time `json:"approved_at"`
	ClaimCheckToken string    `json:"claim_check_token"`
}

type RejectedPayload struct {
	ID              uuid.UUID `json:"id"`
	RejectedBy      string    `json:"rejected_by"`
	RejectedAt      time.Time `json:"rejected_at"`
	ClaimCheckToken string    `json:"claim_check_token"`
}

type ResubmittedPayload struct {
	ID              uuid.UUID `json:"id"`
	ResubmittedBy   string    `json:"resubmitted_by"`
	ResubmittedAt   time.Time `json:"resubmitted_at"`
	ClaimCheckToken string    `json:"claim_check_token"`
}

type RemovedPayload struct {
	ID        uuid.UUID `json:"id"`
	RemovedBy string    `json:"removed_by"`
	RemovedAt time.Time `json:"removed_at"`
}

// MetadataChangedPayload carries only the fields that changed. The token is
// present only when the url moved.
type MetadataChangedPayload struct {
	ID              uuid.UUID                      `json:"id"`
	ChangedBy       string                         `json:"changed_by"`
	ChangedAt       time.Time                      `json:"changed_at"`
	ChangedMetadata marketingimage.MetadataChanges `json:"changed_metadata"`
	ClaimCheckToken string                         `json:"claim_check_token,omitempty"`
}
