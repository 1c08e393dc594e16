package services

import (
	"context"
	"errors"
	"strings"

	domainagg "github.com/yungbote/marketing-image-engine/internal/domain/aggregates"
	"github.com/yungbote/marketing-image-engine/internal/domain/marketingimage"
	"github.com/yungbote/marketing-image-engine/internal/integration"
	"github.com/yungbote/marketing-image-engine/internal/observability"
	"github.com/yungbote/marketing-image-engine/internal/platform/logger"
)

// PublishingService is the driven side: it turns a domain event into a thin
// integration event and hands it to the message bus. It does not retry.
type PublishingService interface {
	OnDomainEvent(ctx context.Context, ev marketingimage.DomainEvent) (integration.PublishResult, error)
}

type publishingService struct {
	log       *logger.Logger
	factory   integration.Factory
	publisher Publisher
	metrics   *observability.Metrics
}

func NewPublishingService(log *logger.Logger, factory integration.Factory, publisher Publisher, metrics *observability.Metrics) PublishingService {
	return &publishingService{
		log:       log.With("service", "PublishingService"),
		factory:   factory,
		publisher: publisher,
		metrics:   metrics,
	}
}

// RegisterPublishing binds svc to every domain event kind on d.
func RegisterPublishing(d *EventDispatcher, svc PublishingService) error {
	h := publishingHandler{svc: svc}
	for _, kind := range marketingimage.EventKinds() {
		if err := d.Register(kind, h); err != nil {
			return err
		}
	}
	return nil
}

type publishingHandler struct{ svc PublishingService }

func (h publishingHandler) Handle(ctx context.Context, ev marketingimage.DomainEvent) (integration.PublishResult, error) {
	return h.svc.OnDomainEvent(ctx, ev)
}

func (s *publishingService) OnDomainEvent(ctx context.Context, ev marketingimage.DomainEvent) (integration.PublishResult, error) {
	const op = "PublishingService.OnDomainEvent"
	kind := string(ev.Kind)

	ie, err := s.factory.CreateFromDomainEvent(ev)
	if err != nil {
		s.metrics.IncPublish(kind, string(integration.PublishFailure))
		return integration.PublishResult{Status: integration.PublishFailure, Error: err.Error()}, err
	}

	res, err := s.publisher.Publish(ctx, ie)
	switch {
	case err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		err = domainagg.Wrap(domainagg.CodeOperationCancelled, op, err)
	case err != nil:
		err = domainagg.Wrap(domainagg.CodePublishFailure, op, err)
	case !res.OK():
		msg := strings.TrimSpace(res.Error)
		if msg == "" {
			msg = "publisher reported failure"
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = domainagg.NewError(domainagg.CodeOperationCancelled, op, msg, ctxErr)
		} else {
			err = domainagg.NewError(domainagg.CodePublishFailure, op, msg, nil)
		}
	}
	if err != nil {
		if res.Status == "" {
			res.Status = integration.PublishFailure
		}
		if res.Error == "" {
			res.Error = err.Error()
		}
		s.metrics.IncPublish(kind, string(integration.PublishFailure))
		s.log.Warn("Integration event not published",
			"event_kind", kind,
			"domain_event_id", ev.ID.String(),
			"image_id", ev.AggregateID.String(),
			"error", err,
		)
		return res, domainagg.WithRef(err, "", ev.AggregateID.String())
	}

	s.metrics.IncPublish(kind, string(integration.PublishSuccess))
	s.log.Debug("Integration event published",
		"event_type", ie.Type,
		"integration_event_id", ie.ID.String(),
		"message_id", res.MessageID,
	)
	return res, nil
}
