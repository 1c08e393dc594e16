package services

import (
	"context"

	"github.com/yungbote/marketing-image-engine/internal/dispatch"
	"github.com/yungbote/marketing-image-engine/internal/domain/marketingimage"
	"github.com/yungbote/marketing-image-engine/internal/integration"
)

// EventDispatcher routes a persisted domain event to its single driven handler.
type EventDispatcher = dispatch.Registry[marketingimage.EventKind, marketingimage.DomainEvent, integration.PublishResult]

func NewEventDispatcher() *EventDispatcher {
	return dispatch.NewRegistry[marketingimage.EventKind, marketingimage.DomainEvent, integration.PublishResult]("EventDispatcher")
}

// EventRouter is the dispatch side of EventDispatcher.
type EventRouter interface {
	Dispatch(ctx context.Context, kind marketingimage.EventKind, ev marketingimage.DomainEvent) (integration.PublishResult, error)
}

var _ EventRouter = (*EventDispatcher)(nil)
