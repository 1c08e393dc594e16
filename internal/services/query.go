package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/marketing-image-engine/internal/data/aggregates"
	domainagg "github.com/yungbote/marketing-image-engine/internal/domain/aggregates"
	"github.com/yungbote/marketing-image-engine/internal/domain/marketingimage"
	"github.com/yungbote/marketing-image-engine/internal/platform/logger"
)

// QueryService is the read side: current snapshots and the event history.
type QueryService interface {
	Get(ctx context.Context, id uuid.UUID) (marketingimage.Snapshot, error)
	List(ctx context.Context) ([]marketingimage.Snapshot, error)
	History(ctx context.Context, id uuid.UUID, f aggregates.EventFilter) ([]aggregates.StoredEvent, error)
	EventsByKind(ctx context.Context, kind marketingimage.EventKind, f aggregates.EventFilter) ([]aggregates.StoredEvent, error)
}

type queryService struct {
	log    *logger.Logger
	repo   ImageRepository
	events EventStore
}

func NewQueryService(log *logger.Logger, repo ImageRepository, events EventStore) QueryService {
	return &queryService{
		log:    log.With("service", "QueryService"),
		repo:   repo,
		events: events,
	}
}

func (s *queryService) Get(ctx context.Context, id uuid.UUID) (marketingimage.Snapshot, error) {
	img, err := s.repo.RetrieveByID(ctx, id)
	if err != nil {
		return marketingimage.Snapshot{}, err
	}
	return img.Snapshot(), nil
}

func (s *queryService) List(ctx context.Context) ([]marketingimage.Snapshot, error) {
	imgs, err := s.repo.RetrieveAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]marketingimage.Snapshot, 0, len(imgs))
	for _, img := range imgs {
		out = append(out, img.Snapshot())
	}
	return out, nil
}

// History returns the events of one image in the order they were raised.
// Removed images keep their history. An image that never existed is not
// found.
func (s *queryService) History(ctx context.Context, id uuid.UUID, f aggregates.EventFilter) ([]aggregates.StoredEvent, error) {
	const op = "QueryService.History"
	if f.Kind != "" && !knownEventKind(f.Kind) {
		return nil, domainagg.NewError(domainagg.CodeUnsupportedEventType, op, "unknown event kind "+string(f.Kind), nil)
	}
	evs, err := s.events.EventsByAggregate(ctx, id, f)
	if err != nil {
		return nil, err
	}
	if len(evs) > 0 {
		return evs, nil
	}
	// An empty filtered page is fine as long as the image exists somewhere.
	if f.Kind != "" || !f.From.IsZero() || !f.To.IsZero() {
		all, err := s.events.EventsByAggregate(ctx, id, aggregates.EventFilter{Limit: 1})
		if err != nil {
			return nil, err
		}
		if len(all) > 0 {
			return evs, nil
		}
	}
	return nil, domainagg.NotFound(op, id.String())
}

func (s *queryService) EventsByKind(ctx context.Context, kind marketingimage.EventKind, f aggregates.EventFilter) ([]aggregates.StoredEvent, error) {
	if !knownEventKind(kind) {
		return nil, domainagg.NewError(domainagg.CodeUnsupportedEventType, "QueryService.EventsByKind", "unknown event kind "+string(kind), nil)
	}
	return s.events.EventsByKind(ctx, kind, f)
}

func knownEventKind(kind marketingimage.EventKind) bool {
	for _, k := range marketingimage.EventKinds() {
		if k == kind {
			return true
		}
	}
	return false
}
