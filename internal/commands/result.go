package commands

import (
	"github.com/google/uuid"

	"github.com/yungbote/marketing-image-engine/internal/domain/marketingimage"
)

// Result is what a core service hands back to the caller. Fields that do
// not apply to a command are left zero and omitted from JSON.
type Result struct {
	RequestID       string                          `json:"request_id"`
	Requestor       string                          `json:"requestor"`
	ImageID         uuid.UUID                       `json:"id"`
	URL             string                          `json:"url,omitempty"`
	Status          marketingimage.Status           `json:"status,omitempty"`
	ChangedMetadata *marketingimage.MetadataChanges `json:"changed_metadata,omitempty"`
	EventID         uuid.UUID                       `json:"event_id"`
	EventType       string                          `json:"event_type"`
	Published       bool                            `json:"published"`
	MessageID       string                          `json:"message_id,omitempty"`
}
