package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/marketing-image-engine/internal/data/aggregates"
	"github.com/yungbote/marketing-image-engine/internal/observability"
	"github.com/yungbote/marketing-image-engine/internal/platform/logger"
)

type RedeliveryConfig struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	Concurrency int
	// MinAge leaves fresh events to the request that raised them.
	MinAge time.Duration
}

func (c RedeliveryConfig) withDefaults() RedeliveryConfig {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	if c.Concurrency < 1 {
		c.Concurrency = 4
	}
	if c.MinAge < 0 {
		c.MinAge = 0
	}
	return c
}

// SweepReport summarizes one pass over the outbox.
type SweepReport struct {
	Loaded    int
	Published int
	Failed    int
	// Deferred counts events skipped because an earlier event of the same
	// image failed in this pass.
	Deferred int
}

// RedeliveryWorker republishes persisted events whose publication failed or
// never happened. Events of one image go out in order; different images are
// handled concurrently.
type RedeliveryWorker struct {
	log     *logger.Logger
	events  EventStore
	router  EventRouter
	metrics *observability.Metrics
	cfg     RedeliveryConfig
	now     func() time.Time
}

func NewRedeliveryWorker(log *logger.Logger, events EventStore, router EventRouter, metrics *observability.Metrics, cfg RedeliveryConfig) *RedeliveryWorker {
	return &RedeliveryWorker{
		log:     log.With("component", "RedeliveryWorker"),
		events:  events,
		router:  router,
		metrics: metrics,
		cfg:     cfg.withDefaults(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Start runs the sweep loop on its own goroutine until ctx is done.
func (w *RedeliveryWorker) Start(ctx context.Context) {
	go w.Run(ctx)
}

// Run blocks, sweeping every Interval, until ctx is done.
func (w *RedeliveryWorker) Run(ctx context.Context) {
	w.log.Info("Starting redelivery worker",
		"interval", w.cfg.Interval.String(),
		"batch_size", w.cfg.BatchSize,
		"concurrency", w.cfg.Concurrency,
	)
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info("Redelivery worker stopped")
			return
		case <-ticker.C:
			if _, err := w.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				w.log.Warn("Redelivery sweep failed", "error", err)
			}
		}
	}
}

// SweepOnce loads one batch of unpublished events and tries each once.
func (w *RedeliveryWorker) SweepOnce(ctx context.Context) (SweepReport, error) {
	pending, err := w.events.PendingPublication(ctx, aggregates.PendingQuery{
		Limit:       w.cfg.BatchSize,
		MaxAttempts: w.cfg.MaxAttempts,
		OlderThan:   w.now().Add(-w.cfg.MinAge),
	})
	if err != nil {
		w.metrics.IncRedeliverySweep("error")
		return SweepReport{}, err
	}
	report := SweepReport{Loaded: len(pending)}
	if len(pending) == 0 {
		w.metrics.IncRedeliverySweep("empty")
		return report, nil
	}

	groups := groupByAggregate(pending)
	var published, failed, deferred atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(w.cfg.Concurrency)
	for _, group := range groups {
		group := group
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					w.log.Error("Redelivery panic", "aggregate_id", group[0].AggregateID.String(), "panic", r)
					err = fmt.Errorf("redelivery panic: %v", r)
				}
			}()
			for i, ev := range group {
				if ctx.Err() != nil {
					deferred.Add(int64(len(group) - i))
					return nil
				}
				if w.redeliver(ctx, ev) {
					published.Add(1)
					continue
				}
				failed.Add(1)
				deferred.Add(int64(len(group) - i - 1))
				return nil
			}
			return nil
		})
	}
	err = g.Wait()

	report.Published = int(published.Load())
	report.Failed = int(failed.Load())
	report.Deferred = int(deferred.Load())
	status := "ok"
	if report.Failed > 0 || err != nil {
		status = "partial"
	}
	w.metrics.IncRedeliverySweep(status)
	w.log.Info("Redelivery sweep finished",
		"loaded", report.Loaded,
		"published", report.Published,
		"failed", report.Failed,
		"deferred", report.Deferred,
	)
	return report, err
}

func (w *RedeliveryWorker) redeliver(ctx context.Context, ev aggregates.StoredEvent) bool {
	res, err := w.router.Dispatch(ctx, ev.Kind, ev.DomainEvent)
	if err == nil && !res.OK() {
		err = fmt.Errorf("publisher reported failure: %s", res.Error)
	}
	octx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err != nil {
		w.metrics.IncRedeliveredEvent("failure")
		w.log.Warn("Redelivery attempt failed",
			"domain_event_id", ev.ID.String(),
			"aggregate_id", ev.AggregateID.String(),
			"attempts", ev.PublishAttempts+1,
			"error", err,
		)
		if markErr := w.events.MarkPublishFailed(octx, ev.ID, err.Error()); markErr != nil {
			w.log.Warn("Failed to record redelivery failure", "domain_event_id", ev.ID.String(), "error", markErr)
		}
		return false
	}
	w.metrics.IncRedeliveredEvent("success")
	if markErr := w.events.MarkPublished(octx, ev.ID, res.MessageID); markErr != nil {
		w.log.Warn("Failed to record redelivery", "domain_event_id", ev.ID.String(), "error", markErr)
	}
	return true
}

// groupByAggregate keeps the incoming order both across groups (by first
// appearance) and within each group.
func groupByAggregate(evs []aggregates.StoredEvent) [][]aggregates.StoredEvent {
	index := make(map[uuid.UUID]int)
	var out [][]aggregates.StoredEvent
	for _, ev := range evs {
		i, ok := index[ev.AggregateID]
		if !ok {
			i = len(out)
			index[ev.AggregateID] = i
			out = append(out, nil)
		}
		out[i] = append(out[i], ev)
	}
	return out
}
