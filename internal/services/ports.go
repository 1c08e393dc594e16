package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/marketing-image-engine/internal/data/aggregates"
	"github.com/yungbote/marketing-image-engine/internal/domain/marketingimage"
	"github.com/yungbote/marketing-image-engine/internal/integration"
	"github.com/yungbote/marketing-image-engine/internal/platform/imaging"
)

// ImageGenerator turns a prompt into image bytes.
type ImageGenerator interface {
	Generate(ctx context.Context, req imaging.GenerateRequest) (imaging.GeneratedImage, error)
}

// ObjectStore holds the image bytes the aggregate points at.
type ObjectStore interface {
	Save(ctx context.Context, data []byte, key, contentType string) (url string, checksum string, err error)
	Remove(ctx context.Context, key string) (bool, error)
	KeyFromURL(rawURL string) (string, error)
}

// ImageRepository is the aggregate store. Save returns a new handle and
// leaves the argument untouched.
type ImageRepository interface {
	Save(ctx context.Context, img *marketingimage.MarketingImage) (*marketingimage.MarketingImage, error)
	RetrieveByID(ctx context.Context, id uuid.UUID) (*marketingimage.MarketingImage, error)
	RetrieveAll(ctx context.Context) ([]*marketingimage.MarketingImage, error)
	Remove(ctx context.Context, id uuid.UUID) (bool, error)
}

// EventStore reads the durable event log and tracks publication.
type EventStore interface {
	EventByID(ctx context.Context, id uuid.UUID) (aggregates.StoredEvent, error)
	EventsByAggregate(ctx context.Context, aggregateID uuid.UUID, f aggregates.EventFilter) ([]aggregates.StoredEvent, error)
	EventsByKind(ctx context.Context, kind marketingimage.EventKind, f aggregates.EventFilter) ([]aggregates.StoredEvent, error)
	PendingPublication(ctx context.Context, q aggregates.PendingQuery) ([]aggregates.StoredEvent, error)
	HasUnpublishedBefore(ctx context.Context, aggregateID, eventID uuid.UUID, maxAttempts int) (bool, error)
	MarkPublished(ctx context.Context, eventID uuid.UUID, messageID string) error
	MarkPublishFailed(ctx context.Context, eventID uuid.UUID, reason string) error
}

// Publisher delivers integration events to the message bus.
type Publisher interface {
	Publish(ctx context.Context, ev integration.IntegrationEvent) (integration.PublishResult, error)
}

var (
	_ ImageRepository = (*aggregates.MarketingImageRepo)(nil)
	_ EventStore      = (*aggregates.MarketingImageRepo)(nil)
)
