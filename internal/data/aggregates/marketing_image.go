package aggregates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domainagg "github.com/yungbote/marketing-image-engine/internal/domain/aggregates"
	"github.com/yungbote/marketing-image-engine/internal/domain/marketingimage"
	"github.com/yungbote/marketing-image-engine/internal/platform/dbctx"
)

const (
	snapshotTable = "marketing_image_aggregate"
	eventTable    = "marketing_image_domain_event"

	// sequenceStride leaves room for every event of one save under a single
	// version: sequence = version*stride + index.
	sequenceStride = 1000
)

// StoredEvent is a domain event as read back from the log, with its
// publication state.
type StoredEvent struct {
	marketingimage.DomainEvent
	Sequence         int64      `json:"sequence"`
	PublishStatus    string     `json:"publish_status"`
	PublishAttempts  int        `json:"publish_attempts"`
	MessageID        string     `json:"message_id,omitempty"`
	LastPublishError string     `json:"last_publish_error,omitempty"`
	PublishedAt      *time.Time `json:"published_at,omitempty"`
}

// EventFilter narrows event log queries. Zero fields do not filter.
type EventFilter struct {
	Kind  marketingimage.EventKind
	From  time.Time
	To    time.Time
	Limit int
}

// PendingQuery selects events still owed to the message bus.
type PendingQuery struct {
	Limit       int
	MaxAttempts int
	// OlderThan skips events newer than this instant so in-flight requests
	// publish their own events first.
	OlderThan time.Time
}

type CacheOptions struct {
	Size int
	TTL  time.Duration
}

// MarketingImageRepo persists marketing image aggregates as a snapshot row
// plus an append-only event log.
type MarketingImageRepo struct {
	deps    BaseDeps
	factory marketingimage.Factory
	cache   *expirable.LRU[uuid.UUID, marketingimage.Snapshot]
}

func NewMarketingImageRepo(deps BaseDeps, factory marketingimage.Factory, cacheOpts CacheOptions) *MarketingImageRepo {
	deps = deps.withDefaults()
	deps.Log = deps.Log.With("repo", "MarketingImageRepo")
	r := &MarketingImageRepo{deps: deps, factory: factory}
	if cacheOpts.Size > 0 {
		ttl := cacheOpts.TTL
		if ttl <= 0 {
			ttl = 5 * time.Minute
		}
		r.cache = expirable.NewLRU[uuid.UUID, marketingimage.Snapshot](cacheOpts.Size, nil, ttl)
	}
	return r
}

func (r *MarketingImageRepo) Contract() domainagg.Contract {
	return domainagg.MarketingImageAggregateContract
}

// Save writes the snapshot and every buffered event in one transaction and
// returns a fresh handle at the new version with an empty buffer. The
// caller's handle is not touched.
//
// The snapshot write is guarded by the version the handle was loaded at; a
// concurrent save in between fails the whole transaction with a conflict.
// When the buffer holds a removed event the snapshot row is deleted instead
// of updated, while the events are still appended.
func (r *MarketingImageRepo) Save(ctx context.Context, img *marketingimage.MarketingImage) (*marketingimage.MarketingImage, error) {
	const op = "marketing_image.save"
	if img == nil {
		return nil, domainagg.NewError(domainagg.CodeInternal, op, "nil aggregate", nil)
	}
	events := img.PendingEvents()
	if len(events) == 0 {
		return img, nil
	}

	expected := img.Version()
	next := expected + 1
	removed := img.HasPendingKind(marketingimage.KindRemoved)
	snap := img.Snapshot()
	snap.Version = next

	rec, err := snapshotToRecord(snap)
	if err != nil {
		return nil, domainagg.WithRef(domainagg.Wrap(domainagg.CodeInternal, op, err), "", img.ID().String())
	}
	rows, err := eventsToRecords(events, next)
	if err != nil {
		return nil, domainagg.WithRef(domainagg.Wrap(domainagg.CodeInternal, op, err), "", img.ID().String())
	}

	err = executeWrite(ctx, r.deps, op, func(dbc dbctx.Context) error {
		tx := r.tx(dbc)
		switch {
		case expected == 0 && removed:
			// Created and removed before the first save: no row to delete.
		case expected == 0:
			if err := tx.Create(&rec).Error; err != nil {
				return err
			}
		case removed:
			ok, err := r.deps.CASGuard.DeleteByVersion(dbc, snapshotTable, rec.ID, expected)
			if err != nil {
				return err
			}
			if err := RequireCASSuccess(ok, fmt.Sprintf("marketing image %s changed since version %d", rec.ID, expected)); err != nil {
				return err
			}
		default:
			ok, err := r.deps.CASGuard.UpdateByVersion(dbc, snapshotTable, rec.ID, expected, snapshotUpdates(rec))
			if err != nil {
				return err
			}
			if err := RequireCASSuccess(ok, fmt.Sprintf("marketing image %s changed since version %d", rec.ID, expected)); err != nil {
				return err
			}
		}
		return appendEvents(tx, rows)
	})
	if err != nil {
		r.forget(img.ID())
		return nil, domainagg.WithRef(err, "", img.ID().String())
	}

	if removed {
		r.forget(img.ID())
	} else if r.cache != nil {
		r.cache.Add(img.ID(), snap)
	}
	r.deps.Log.Debug("Marketing image saved",
		"image_id", img.ID().String(),
		"version", next,
		"events", len(rows),
		"removed", removed,
	)
	return img.WithPersisted(next), nil
}

// appendEvents inserts the rows keyed by event id. A row whose id already
// exists is left as is, so replaying the same events is a no-op.
func appendEvents(tx *gorm.DB, rows []marketingimage.EventRecord) error {
	if len(rows) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&rows).Error
}

func (r *MarketingImageRepo) RetrieveByID(ctx context.Context, id uuid.UUID) (*marketingimage.MarketingImage, error) {
	const op = "marketing_image.retrieve"
	if id == uuid.Nil {
		return nil, domainagg.Malformed(op, "id is required")
	}
	if r.cache != nil {
		snap, ok := r.cache.Get(id)
		r.deps.Hooks.ObserveCacheLookup(ok)
		if ok {
			return r.factory.Rehydrate(snap)
		}
	}

	var rec marketingimage.SnapshotRecord
	err := executeRead(ctx, r.deps, op, func(db *gorm.DB) error {
		err := db.Where("id = ?", id).Take(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainagg.NotFound(op, id.String())
		}
		return err
	})
	if err != nil {
		return nil, domainagg.WithRef(err, "", id.String())
	}
	snap, err := snapshotFromRecord(rec)
	if err != nil {
		return nil, domainagg.WithRef(domainagg.Wrap(domainagg.CodeInternal, op, err), "", id.String())
	}
	if r.cache != nil {
		r.cache.Add(id, snap)
	}
	return r.factory.Rehydrate(snap)
}

// RetrieveAll returns every stored image, oldest first. Removed images are
// not included.
func (r *MarketingImageRepo) RetrieveAll(ctx context.Context) ([]*marketingimage.MarketingImage, error) {
	const op = "marketing_image.retrieve_all"
	var recs []marketingimage.SnapshotRecord
	err := executeRead(ctx, r.deps, op, func(db *gorm.DB) error {
		return db.Order("created_at ASC, id ASC").Find(&recs).Error
	})
	if err != nil {
		return nil, err
	}
	out := make([]*marketingimage.MarketingImage, 0, len(recs))
	for _, rec := range recs {
		snap, err := snapshotFromRecord(rec)
		if err != nil {
			return nil, domainagg.WithRef(domainagg.Wrap(domainagg.CodeInternal, op, err), "", rec.ID.String())
		}
		img, err := r.factory.Rehydrate(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, nil
}

// Remove deletes the snapshot row without writing an event. It reports
// whether a row existed. The event log is kept.
func (r *MarketingImageRepo) Remove(ctx context.Context, id uuid.UUID) (bool, error) {
	const op = "marketing_image.remove"
	if id == uuid.Nil {
		return false, domainagg.Malformed(op, "id is required")
	}
	var deleted bool
	err := executeWrite(ctx, r.deps, op, func(dbc dbctx.Context) error {
		res := r.tx(dbc).Where("id = ?", id).Delete(&marketingimage.SnapshotRecord{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	r.forget(id)
	if err != nil {
		return false, domainagg.WithRef(err, "", id.String())
	}
	return deleted, nil
}

func (r *MarketingImageRepo) EventByID(ctx context.Context, id uuid.UUID) (StoredEvent, error) {
	const op = "marketing_image.event_by_id"
	var rec marketingimage.EventRecord
	err := executeRead(ctx, r.deps, op, func(db *gorm.DB) error {
		err := db.Where("id = ?", id).Take(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("domain event %s not found", id), nil)
		}
		return err
	})
	if err != nil {
		return StoredEvent{}, err
	}
	return storedEventFromRecord(rec)
}

// EventsByAggregate returns the history of one image in the order it was written.
func (r *MarketingImageRepo) EventsByAggregate(ctx context.Context, aggregateID uuid.UUID, f EventFilter) ([]StoredEvent, error) {
	return r.queryEvents(ctx, "marketing_image.events_by_aggregate", f, func(db *gorm.DB) *gorm.DB {
		return db.Where("aggregate_id = ?", aggregateID).Order("sequence ASC")
	})
}

// EventsByKind returns events of one kind across all images, oldest first.
func (r *MarketingImageRepo) EventsByKind(ctx context.Context, kind marketingimage.EventKind, f EventFilter) ([]StoredEvent, error) {
	f.Kind = kind
	return r.queryEvents(ctx, "marketing_image.events_by_kind", f, func(db *gorm.DB) *gorm.DB {
		return db.Order("occurred_at ASC, sequence ASC")
	})
}

// PendingPublication returns pending or failed events under the attempt cap,
// oldest first.
func (r *MarketingImageRepo) PendingPublication(ctx context.Context, q PendingQuery) ([]StoredEvent, error) {
	return r.queryEvents(ctx, "marketing_image.pending_publication", EventFilter{To: q.OlderThan, Limit: q.Limit}, func(db *gorm.DB) *gorm.DB {
		db = db.Where("publish_status IN ?", []string{marketingimage.PublishStatusPending, marketingimage.PublishStatusFailed})
		if q.MaxAttempts > 0 {
			db = db.Where("publish_attempts < ?", q.MaxAttempts)
		}
		return db.Order("occurred_at ASC, sequence ASC")
	})
}

// HasUnpublishedBefore reports whether an event of aggregateID written
// before eventID is still pending or failed. Events that reached maxAttempts
// no longer count; maxAttempts <= 0 counts every attempt.
func (r *MarketingImageRepo) HasUnpublishedBefore(ctx context.Context, aggregateID, eventID uuid.UUID, maxAttempts int) (bool, error) {
	const op = "marketing_image.has_unpublished_before"
	var n int64
	err := executeRead(ctx, r.deps, op, func(db *gorm.DB) error {
		seq := db.Model(&marketingimage.EventRecord{}).Select("sequence").Where("id = ?", eventID)
		q := db.Model(&marketingimage.EventRecord{}).
			Where("aggregate_id = ? AND id <> ?", aggregateID, eventID).
			Where("publish_status IN ?", []string{marketingimage.PublishStatusPending, marketingimage.PublishStatusFailed}).
			Where("sequence < (?)", seq)
		if maxAttempts > 0 {
			q = q.Where("publish_attempts < ?", maxAttempts)
		}
		return q.Count(&n).Error
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *MarketingImageRepo) queryEvents(ctx context.Context, op string, f EventFilter, scope func(*gorm.DB) *gorm.DB) ([]StoredEvent, error) {
	var recs []marketingimage.EventRecord
	err := executeRead(ctx, r.deps, op, func(db *gorm.DB) error {
		q := scope(db.Model(&marketingimage.EventRecord{}))
		if k := strings.TrimSpace(string(f.Kind)); k != "" {
			q = q.Where("kind = ?", k)
		}
		if !f.From.IsZero() {
			q = q.Where("occurred_at >= ?", f.From.UTC())
		}
		if !f.To.IsZero() {
			q = q.Where("occurred_at <= ?", f.To.UTC())
		}
		if f.Limit > 0 {
			q = q.Limit(f.Limit)
		}
		return q.Find(&recs).Error
	})
	if err != nil {
		return nil, err
	}
	out := make([]StoredEvent, 0, len(recs))
	for _, rec := range recs {
		ev, err := storedEventFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// MarkPublished records a successful delivery of the event.
func (r *MarketingImageRepo) MarkPublished(ctx context.Context, eventID uuid.UUID, messageID string) error {
	now := time.Now().UTC()
	return r.markPublication(ctx, "marketing_image.mark_published", eventID, map[string]any{
		"publish_status":     marketingimage.PublishStatusPublished,
		"publish_attempts":   gorm.Expr("publish_attempts + 1"),
		"message_id":         strings.TrimSpace(messageID),
		"last_publish_error": "",
		"published_at":       &now,
	})
}

// MarkPublishFailed records a failed delivery so the sweep can retry it.
func (r *MarketingImageRepo) MarkPublishFailed(ctx context.Context, eventID uuid.UUID, reason string) error {
	reason = strings.TrimSpace(reason)
	if len(reason) > 1024 {
		reason = reason[:1024]
	}
	return r.markPublication(ctx, "marketing_image.mark_publish_failed", eventID, map[string]any{
		"publish_status":     marketingimage.PublishStatusFailed,
		"publish_attempts":   gorm.Expr("publish_attempts + 1"),
		"last_publish_error": reason,
	})
}

func (r *MarketingImageRepo) markPublication(ctx context.Context, op string, eventID uuid.UUID, updates map[string]any) error {
	if eventID == uuid.Nil {
		return domainagg.Malformed(op, "event id is required")
	}
	return executeWrite(ctx, r.deps, op, func(dbc dbctx.Context) error {
		res := r.tx(dbc).Model(&marketingimage.EventRecord{}).Where("id = ?", eventID).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("domain event %s not found", eventID), nil)
		}
		return nil
	})
}

func (r *MarketingImageRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.deps.DB.WithContext(dbc.Ctx)
}

func (r *MarketingImageRepo) forget(id uuid.UUID) {
	if r.cache != nil {
		r.cache.Remove(id)
	}
}

func snapshotToRecord(s marketingimage.Snapshot) (marketingimage.SnapshotRecord, error) {
	keywords := s.Keywords
	if keywords == nil {
		keywords = marketingimage.Keywords{}
	}
	kw, err := json.Marshal(keywords)
	if err != nil {
		return marketingimage.SnapshotRecord{}, fmt.Errorf("marshal keywords: %w", err)
	}
	params := s.GenerationParameters
	if params == nil {
		params = marketingimage.GenerationParameters{}
	}
	gp, err := json.Marshal(params)
	if err != nil {
		return marketingimage.SnapshotRecord{}, fmt.Errorf("marshal generation parameters: %w", err)
	}
	return marketingimage.SnapshotRecord{
		ID:                   s.ID,
		URL:                  s.URL,
		Description:          s.Description,
		Keywords:             datatypes.JSON(kw),
		GenerationModel:      s.GenerationModel,
		GenerationParameters: datatypes.JSON(gp),
		Width:                s.Dimensions.Width,
		Height:               s.Dimensions.Height,
		Size:                 s.Size,
		MimeType:             s.MimeType,
		Checksum:             s.Checksum,
		Status:               string(s.Status),
		CreatedBy:            s.CreatedBy,
		CreatedAt:            s.CreatedAt.UTC(),
		LastModifiedAt:       s.LastModifiedAt.UTC(),
		Version:              s.Version,
	}, nil
}

// snapshotUpdates lists the mutable columns. id, created_by and created_at
// never change after generation.
func snapshotUpdates(rec marketingimage.SnapshotRecord) map[string]any {
	return map[string]any{
		"url":                   rec.URL,
		"description":           rec.Description,
		"keywords":              rec.Keywords,
		"generation_model":      rec.GenerationModel,
		"generation_parameters": rec.GenerationParameters,
		"width":                 rec.Width,
		"height":                rec.Height,
		"size":                  rec.Size,
		"mime_type":             rec.MimeType,
		"checksum":              rec.Checksum,
		"status":                rec.Status,
		"last_modified_at":      rec.LastModifiedAt,
		"version":               rec.Version,
	}
}

func snapshotFromRecord(rec marketingimage.SnapshotRecord) (marketingimage.Snapshot, error) {
	var keywords marketingimage.Keywords
	if len(rec.Keywords) > 0 {
		if err := json.Unmarshal(rec.Keywords, &keywords); err != nil {
			return marketingimage.Snapshot{}, fmt.Errorf("decode keywords of %s: %w", rec.ID, err)
		}
	}
	var params marketingimage.GenerationParameters
	if len(rec.GenerationParameters) > 0 {
		if err := json.Unmarshal(rec.GenerationParameters, &params); err != nil {
			return marketingimage.Snapshot{}, fmt.Errorf("decode generation parameters of %s: %w", rec.ID, err)
		}
	}
	return marketingimage.Snapshot{
		ID:                   rec.ID,
		URL:                  rec.URL,
		Description:          rec.Description,
		Keywords:             keywords,
		GenerationModel:      rec.GenerationModel,
		GenerationParameters: params,
		Dimensions:           marketingimage.Dimensions{Width: rec.Width, Height: rec.Height},
		Size:                 rec.Size,
		MimeType:             rec.MimeType,
		Checksum:             rec.Checksum,
		Status:               marketingimage.Status(rec.Status),
		CreatedBy:            rec.CreatedBy,
		CreatedAt:            rec.CreatedAt.UTC(),
		LastModifiedAt:       rec.LastModifiedAt.UTC(),
		Version:              rec.Version,
	}, nil
}

func eventsToRecords(events []marketingimage.DomainEvent, version int) ([]marketingimage.EventRecord, error) {
	out := make([]marketingimage.EventRecord, 0, len(events))
	for i, ev := range events {
		if ev.Data == nil {
			return nil, fmt.Errorf("event %s has no payload", ev.ID)
		}
		data, err := json.Marshal(ev.Data)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", ev.Kind, err)
		}
		out = append(out, marketingimage.EventRecord{
			ID:            ev.ID,
			AggregateID:   ev.AggregateID,
			Kind:          string(ev.Kind),
			Type:          ev.Type,
			Source:        ev.Source,
			Version:       ev.Version,
			Data:          datatypes.JSON(data),
			OccurredAt:    ev.OccurredAt.UTC(),
			Sequence:      int64(version)*sequenceStride + int64(i),
			PublishStatus: marketingimage.PublishStatusPending,
		})
	}
	return out, nil
}

func storedEventFromRecord(rec marketingimage.EventRecord) (StoredEvent, error) {
	data, err := marketingimage.DecodeEventData(marketingimage.EventKind(rec.Kind), rec.Data)
	if err != nil {
		return StoredEvent{}, domainagg.WithRef(err, "", rec.AggregateID.String())
	}
	return StoredEvent{
		DomainEvent: marketingimage.DomainEvent{
			ID:          rec.ID,
			Kind:        marketingimage.EventKind(rec.Kind),
			Type:        rec.Type,
			AggregateID: rec.AggregateID,
			Data:        data,
			Source:      rec.Source,
			Version:     rec.Version,
			OccurredAt:  rec.OccurredAt.UTC(),
		},
		Sequence:         rec.Sequence,
		PublishStatus:    rec.PublishStatus,
		PublishAttempts:  rec.PublishAttempts,
		MessageID:        rec.MessageID,
		LastPublishError: rec.LastPublishError,
		PublishedAt:      rec.PublishedAt,
	}, nil
}
