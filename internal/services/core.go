package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/marketing-image-engine/internal/commands"
	domainagg "github.com/yungbote/marketing-image-engine/internal/domain/aggregates"
	"github.com/yungbote/marketing-image-engine/internal/domain/marketingimage"
	"github.com/yungbote/marketing-image-engine/internal/integration"
	"github.com/yungbote/marketing-image-engine/internal/observability"
	"github.com/yungbote/marketing-image-engine/internal/platform/logger"
)

const msgPublishAfterPersist = "event persisted but not published"

// CoreDeps is shared by every core service.
type CoreDeps struct {
	Log        *logger.Logger
	Repo       ImageRepository
	Events     EventStore
	Dispatcher EventRouter
	Factory    marketingimage.Factory
	Metrics    *observability.Metrics
	Tracer     trace.Tracer
	// OutboxTimeout bounds the publication bookkeeping that runs after the
	// request context may already be done.
	OutboxTimeout time.Duration
	// DeferToSweep leaves a new event pending while an earlier event of the
	// same image is unpublished, so the redelivery sweep sends both in order.
	// Earlier events at MaxPublishAttempts no longer hold later ones back.
	DeferToSweep       bool
	MaxPublishAttempts int
}

type coreOutcome struct {
	Image   *marketingimage.MarketingImage
	Event   marketingimage.DomainEvent
	Publish integration.PublishResult
}

// coreStep produces the mutated aggregate: either a loaded one with one new
// event, or a freshly generated one.
type coreStep func(ctx context.Context) (*marketingimage.MarketingImage, error)

// corePipeline runs the fixed sequence every command goes through:
// validate, load or create, mutate, capture the newest event, save,
// dispatch, and hand back the outcome for the result DTO.
type corePipeline struct {
	deps CoreDeps
	log  *logger.Logger
	name string
}

func newCorePipeline(deps CoreDeps, name string) corePipeline {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Tracer == nil {
		deps.Tracer = observability.Tracer()
	}
	if deps.OutboxTimeout <= 0 {
		deps.OutboxTimeout = 5 * time.Second
	}
	return corePipeline{deps: deps, log: deps.Log.With("service", name), name: name}
}

// run executes cmd. undo, when set, is called if the save fails so side
// effects done by step (a stored object) do not outlive the request.
func (p corePipeline) run(ctx context.Context, cmd commands.Command, imageID uuid.UUID, step coreStep, undo func(context.Context)) (out coreOutcome, err error) {
	started := time.Now()
	kind := cmd.Kind()
	env := cmd.Meta()
	requestID, requestor := cmd.Correlation()

	ctx, span := p.deps.Tracer.Start(ctx, "marketing_image."+string(kind), trace.WithAttributes(
		attribute.String("command.id", env.ID.String()),
		attribute.String("command.type", env.Type),
		attribute.String("request.id", requestID),
	))
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = string(domainagg.CodeOf(err))
			if outcome == "" {
				outcome = string(domainagg.CodeInternal)
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		if out.Image != nil {
			span.SetAttributes(attribute.String("image.id", out.Image.ID().String()))
		}
		span.End()
		p.deps.Metrics.ObserveCommand(string(kind), outcome, time.Since(started))
	}()

	ref := func(err error, id uuid.UUID) error {
		imageRef := ""
		if id != uuid.Nil {
			imageRef = id.String()
		}
		return domainagg.WithRef(err, env.ID.String(), imageRef)
	}

	// 1. validate
	if err := cmd.Validate(); err != nil {
		return coreOutcome{}, ref(err, imageID)
	}
	if err := ctx.Err(); err != nil {
		return coreOutcome{}, ref(domainagg.Wrap(domainagg.CodeOperationCancelled, p.name, err), imageID)
	}

	// 2-3. load (or create) and mutate
	img, err := step(ctx)
	if err != nil {
		return coreOutcome{}, ref(err, imageID)
	}

	// 4. capture the newest event
	ev, ok := img.LatestEvent()
	if !ok {
		return coreOutcome{}, ref(domainagg.NewError(domainagg.CodeInternal, p.name, "mutation raised no event", nil), img.ID())
	}

	// 5. persist
	saved, err := p.deps.Repo.Save(ctx, img)
	if err != nil {
		if undo != nil {
			undo(ctx)
		}
		p.log.Warn("Command not persisted",
			"stage", "persist",
			"command_id", env.ID.String(),
			"request_id", requestID,
			"requestor", requestor,
			"image_id", img.ID().String(),
			"error", err,
		)
		return coreOutcome{}, ref(err, img.ID())
	}
	out = coreOutcome{Image: saved, Event: ev}

	// 6. dispatch
	if p.behindUnpublished(ctx, ev) {
		p.log.Info("Publication deferred to redelivery",
			"stage", "post_persist_dispatch",
			"command_id", env.ID.String(),
			"request_id", requestID,
			"image_id", saved.ID().String(),
			"domain_event_id", ev.ID.String(),
			"event_kind", string(ev.Kind),
		)
		return out, nil
	}
	res, err := p.deps.Dispatcher.Dispatch(ctx, ev.Kind, ev)
	out.Publish = res
	if err != nil {
		p.log.Error("Domain event dispatch failed after persistence",
			"stage", "post_persist_dispatch",
			"command_id", env.ID.String(),
			"request_id", requestID,
			"image_id", saved.ID().String(),
			"domain_event_id", ev.ID.String(),
			"event_kind", string(ev.Kind),
			"error", err,
		)
		p.recordFailure(ctx, ev, err)
		if !domainagg.IsCode(err, domainagg.CodeNoHandlerRegistered) && !domainagg.IsCode(err, domainagg.CodeOperationCancelled) {
			err = domainagg.NewError(domainagg.CodePublishFailure, p.name, msgPublishAfterPersist, err)
		}
		return out, ref(err, saved.ID())
	}
	p.recordSuccess(ctx, ev, res)

	// 7. outcome for the result DTO
	p.log.Info("Command handled",
		"command_type", env.Type,
		"command_id", env.ID.String(),
		"request_id", requestID,
		"requestor", requestor,
		"image_id", saved.ID().String(),
		"status", string(saved.Status()),
		"message_id", res.MessageID,
	)
	return out, nil
}

// behindUnpublished reports whether ev must wait for an earlier event of its
// image. A failed lookup does not hold the event back.
func (p corePipeline) behindUnpublished(ctx context.Context, ev marketingimage.DomainEvent) bool {
	if !p.deps.DeferToSweep || p.deps.Events == nil {
		return false
	}
	octx, cancel := p.outboxContext(ctx)
	defer cancel()
	blocked, err := p.deps.Events.HasUnpublishedBefore(octx, ev.AggregateID, ev.ID, p.deps.MaxPublishAttempts)
	if err != nil {
		p.log.Warn("Could not check for earlier unpublished events",
			"domain_event_id", ev.ID.String(),
			"image_id", ev.AggregateID.String(),
			"error", err,
		)
		return false
	}
	return blocked
}

func (p corePipeline) outboxContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), p.deps.OutboxTimeout)
}

func (p corePipeline) recordSuccess(ctx context.Context, ev marketingimage.DomainEvent, res integration.PublishResult) {
	if p.deps.Events == nil {
		return
	}
	octx, cancel := p.outboxContext(ctx)
	defer cancel()
	if err := p.deps.Events.MarkPublished(octx, ev.ID, res.MessageID); err != nil {
		p.log.Warn("Failed to record publication; the sweep may publish the event again",
			"domain_event_id", ev.ID.String(),
			"error", err,
		)
	}
}

func (p corePipeline) recordFailure(ctx context.Context, ev marketingimage.DomainEvent, cause error) {
	if p.deps.Events == nil {
		return
	}
	octx, cancel := p.outboxContext(ctx)
	defer cancel()
	if err := p.deps.Events.MarkPublishFailed(octx, ev.ID, cause.Error()); err != nil {
		p.log.Warn("Failed to record publish failure",
			"domain_event_id", ev.ID.String(),
			"error", err,
		)
	}
}

// load returns a step that loads the aggregate and applies mutate to it.
func (p corePipeline) load(imageID uuid.UUID, mutate func(*marketingimage.MarketingImage) error) coreStep {
	return func(ctx context.Context) (*marketingimage.MarketingImage, error) {
		img, err := p.deps.Repo.RetrieveByID(ctx, imageID)
		if err != nil {
			return nil, err
		}
		if err := mutate(img); err != nil {
			return nil, err
		}
		return img, nil
	}
}

// baseResult fills the fields every result carries.
func baseResult(cmd commands.Command, out coreOutcome) commands.Result {
	requestID, requestor := cmd.Correlation()
	r := commands.Result{
		RequestID: requestID,
		Requestor: requestor,
		EventID:   out.Event.ID,
		EventType: out.Event.Type,
		Published: out.Publish.OK(),
		MessageID: out.Publish.MessageID,
	}
	if out.Image != nil {
		r.ImageID = out.Image.ID()
		r.URL = out.Image.URL()
		r.Status = out.Image.Status()
	}
	return r
}
