package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/marketing-image-engine/internal/commands"
	"github.com/yungbote/marketing-image-engine/internal/data/aggregates"
	domainagg "github.com/yungbote/marketing-image-engine/internal/domain/aggregates"
	"github.com/yungbote/marketing-image-engine/internal/domain/marketingimage"
	"github.com/yungbote/marketing-image-engine/internal/integration"
	"github.com/yungbote/marketing-image-engine/internal/platform/gcp"
	"github.com/yungbote/marketing-image-engine/internal/platform/imaging"
	"github.com/yungbote/marketing-image-engine/internal/platform/logger"
)

const testBucket = "mi-bucket"

var testLocator = integration.Locator{
	Provider: integration.ProviderGCS,
	Project:  "proj",
	Location: "us-central1",
	Bucket:   testBucket,
}

// memRepo is an in-memory ImageRepository and EventStore with the same
// version check as the gorm repository.
type memRepo struct {
	mu       sync.Mutex
	factory  marketingimage.Factory
	snaps    map[uuid.UUID]marketingimage.Snapshot
	versions map[uuid.UUID]int
	events   []aggregates.StoredEvent
	saveErr  error
	saves    int
	markErr  error
}

func newMemRepo(f marketingimage.Factory) *memRepo {
	return &memRepo{
		factory:  f,
		snaps:    map[uuid.UUID]marketingimage.Snapshot{},
		versions: map[uuid.UUID]int{},
	}
}

func (r *memRepo) Save(_ context.Context, img *marketingimage.MarketingImage) (*marketingimage.MarketingImage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	if r.saveErr != nil {
		return nil, r.saveErr
	}
	pending := img.PendingEvents()
	if len(pending) == 0 {
		return img, nil
	}
	id := img.ID()
	if img.Version() != r.versions[id] {
		return nil, domainagg.NewError(domainagg.CodeConflict, "memRepo.Save", "stale version", nil)
	}
	next := r.versions[id] + 1
	r.versions[id] = next
	if img.HasPendingKind(marketingimage.KindRemoved) {
		delete(r.snaps, id)
	} else {
		s := img.Snapshot()
		s.Version = next
		r.snaps[id] = s
	}
	for i, ev := range pending {
		r.events = append(r.events, aggregates.StoredEvent{
			DomainEvent:   ev,
			Sequence:      int64(next*1000 + i),
			PublishStatus: marketingimage.PublishStatusPending,
		})
	}
	return img.WithPersisted(next), nil
}

func (r *memRepo) RetrieveByID(_ context.Context, id uuid.UUID) (*marketingimage.MarketingImage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.snaps[id]
	if !ok {
		return nil, domainagg.NotFound("memRepo.RetrieveByID", id.String())
	}
	return r.factory.Rehydrate(s)
}

func (r *memRepo) RetrieveAll(_ context.Context) ([]*marketingimage.MarketingImage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(r.snaps))
	for id := range r.snaps {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	out := make([]*marketingimage.MarketingImage, 0, len(ids))
	for _, id := range ids {
		img, err := r.factory.Rehydrate(r.snaps[id])
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, nil
}

func (r *memRepo) Remove(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.snaps[id]
	delete(r.snaps, id)
	return ok, nil
}

func (r *memRepo) EventByID(_ context.Context, id uuid.UUID) (aggregates.StoredEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.ID == id {
			return ev, nil
		}
	}
	return aggregates.StoredEvent{}, domainagg.NewError(domainagg.CodeNotFound, "memRepo.EventByID", "event not found", nil)
}

func (r *memRepo) EventsByAggregate(_ context.Context, aggregateID uuid.UUID, f aggregates.EventFilter) ([]aggregates.StoredEvent, error) {
	return r.filter(func(ev aggregates.StoredEvent) bool { return ev.AggregateID == aggregateID }, f), nil
}

func (r *memRepo) EventsByKind(_ context.Context, kind marketingimage.EventKind, f aggregates.EventFilter) ([]aggregates.StoredEvent, error) {
	f.Kind = kind
	return r.filter(func(aggregates.StoredEvent) bool { return true }, f), nil
}

func (r *memRepo) PendingPublication(_ context.Context, q aggregates.PendingQuery) ([]aggregates.StoredEvent, error) {
	return r.filter(func(ev aggregates.StoredEvent) bool {
		if ev.PublishStatus == marketingimage.PublishStatusPublished {
			return false
		}
		return q.MaxAttempts <= 0 || ev.PublishAttempts < q.MaxAttempts
	}, aggregates.EventFilter{To: q.OlderThan, Limit: q.Limit}), nil
}

func (r *memRepo) HasUnpublishedBefore(_ context.Context, aggregateID, eventID uuid.UUID, maxAttempts int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var seq int64 = -1
	for _, ev := range r.events {
		if ev.ID == eventID {
			seq = ev.Sequence
		}
	}
	for _, ev := range r.events {
		if ev.AggregateID != aggregateID || ev.ID == eventID || ev.Sequence >= seq {
			continue
		}
		if ev.PublishStatus == marketingimage.PublishStatusPublished {
			continue
		}
		if maxAttempts <= 0 || ev.PublishAttempts < maxAttempts {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) filter(keep func(aggregates.StoredEvent) bool, f aggregates.EventFilter) []aggregates.StoredEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []aggregates.StoredEvent
	for _, ev := range r.events {
		if !keep(ev) {
			continue
		}
		if f.Kind != "" && ev.Kind != f.Kind {
			continue
		}
		if !f.From.IsZero() && ev.OccurredAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && ev.OccurredAt.After(f.To) {
			continue
		}
		out = append(out, ev)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

func (r *memRepo) MarkPublished(_ context.Context, eventID uuid.UUID, messageID string) error {
	return r.mark(eventID, func(ev *aggregates.StoredEvent) {
		now := time.Now().UTC()
		ev.PublishStatus = marketingimage.PublishStatusPublished
		ev.MessageID = messageID
		ev.LastPublishError = ""
		ev.PublishedAt = &now
	})
}

func (r *memRepo) MarkPublishFailed(_ context.Context, eventID uuid.UUID, reason string) error {
	return r.mark(eventID, func(ev *aggregates.StoredEvent) {
		ev.PublishStatus = marketingimage.PublishStatusFailed
		ev.LastPublishError = reason
	})
}

func (r *memRepo) mark(eventID uuid.UUID, apply func(*aggregates.StoredEvent)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.markErr != nil {
		return r.markErr
	}
	for i := range r.events {
		if r.events[i].ID == eventID {
			r.events[i].PublishAttempts++
			apply(&r.events[i])
			return nil
		}
	}
	return domainagg.NewError(domainagg.CodeNotFound, "memRepo.mark", "event not found", nil)
}

func (r *memRepo) eventCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *memRepo) storedEvent(t *testing.T, id uuid.UUID) aggregates.StoredEvent {
	t.Helper()
	ev, err := r.EventByID(context.Background(), id)
	if err != nil {
		t.Fatalf("EventByID(%s): %v", id, err)
	}
	return ev
}

type fakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	removed   []string
	saveErr   error
	removeErr error
}

func newFakeStore() *fakeStore { return &fakeStore{objects: map[string][]byte{}} }

func (s *fakeStore) url(key string) string {
	return "https://storage.googleapis.com/" + testBucket + "/" + key
}

func (s *fakeStore) Save(_ context.Context, data []byte, key, _ string) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return "", "", s.saveErr
	}
	s.objects[key] = append([]byte(nil), data...)
	return s.url(key), gcp.ContentMD5(data), nil
}

func (s *fakeStore) Remove(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, key)
	if s.removeErr != nil {
		return false, s.removeErr
	}
	_, ok := s.objects[key]
	delete(s.objects, key)
	return ok, nil
}

func (s *fakeStore) KeyFromURL(rawURL string) (string, error) {
	key, ok := strings.CutPrefix(rawURL, "https://storage.googleapis.com/"+testBucket+"/")
	if !ok {
		return "", fmt.Errorf("foreign url %q", rawURL)
	}
	return key, nil
}

func (s *fakeStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

type fakeGenerator struct {
	calls int
	err   error
}

func (g *fakeGenerator) Generate(_ context.Context, req imaging.GenerateRequest) (imaging.GeneratedImage, error) {
	g.calls++
	if g.err != nil {
		return imaging.GeneratedImage{}, g.err
	}
	return imaging.GeneratedImage{
		Bytes:      []byte("png-bytes:" + req.Prompt),
		Dimensions: marketingimage.Dimensions{Width: 640, Height: 480},
		MimeType:   req.MimeType,
		Model:      "fake-model",
		Parameters: map[string]any{"prompt": req.Prompt},
	}, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []integration.IntegrationEvent
	// fail, when set, decides the outcome per event.
	fail func(ev integration.IntegrationEvent) (integration.PublishResult, error)
}

func (p *fakePublisher) Publish(_ context.Context, ev integration.IntegrationEvent) (integration.PublishResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		if res, err := p.fail(ev); err != nil || !res.OK() {
			return res, err
		}
	}
	p.published = append(p.published, ev)
	return integration.PublishResult{Status: integration.PublishSuccess, MessageID: fmt.Sprintf("1700000000000-%d", len(p.published))}, nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.published))
	for _, ev := range p.published {
		out = append(out, ev.Type)
	}
	return out
}

// harness wires the core services the way the app does, over fakes.
type harness struct {
	repo      *memRepo
	store     *fakeStore
	gen       *fakeGenerator
	pub       *fakePublisher
	events    *EventDispatcher
	commands  *commands.Dispatcher
	cmdFact   commands.Factory
	driving   DrivingService
	publisher PublishingService
	deps      CoreDeps
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := logger.Nop()

	var tick time.Duration
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	imgFactory := marketingimage.NewFactory(marketingimage.DefaultEventMeta())
	imgFactory.Clock = func() time.Time {
		tick += time.Second
		return base.Add(tick)
	}

	h := &harness{
		repo:     newMemRepo(imgFactory),
		store:    newFakeStore(),
		gen:      &fakeGenerator{},
		pub:      &fakePublisher{},
		events:   NewEventDispatcher(),
		commands: commands.NewDispatcher(),
		cmdFact:  commands.NewFactory("", ""),
	}
	h.publisher = NewPublishingService(log, integration.NewFactory("", "", testLocator), h.pub, nil)
	if err := RegisterPublishing(h.events, h.publisher); err != nil {
		t.Fatalf("RegisterPublishing: %v", err)
	}
	h.events.Seal()

	deps := CoreDeps{
		Log:        log,
		Repo:       h.repo,
		Events:     h.repo,
		Dispatcher: h.events,
		Factory:    imgFactory,
	}
	h.deps = deps
	err := RegisterCommandServices(h.commands,
		NewGenerateService(deps, h.gen, h.store),
		NewModifyService(deps),
		NewApproveService(deps),
		NewRejectService(deps),
		NewRemoveService(deps, h.store),
		NewResubmitService(deps),
		NewChangeMetadataService(deps, testLocator),
	)
	if err != nil {
		t.Fatalf("RegisterCommandServices: %v", err)
	}
	h.commands.Seal()
	if err := h.commands.Require(commands.Kinds()...); err != nil {
		t.Fatalf("Require: %v", err)
	}
	h.driving = NewDrivingService(log, h.cmdFact, h.commands)
	return h
}

func (h *harness) generate(t *testing.T) commands.Result {
	t.Helper()
	res, err := h.driving.Handle(context.Background(), Request{
		Type:      RequestGenerate,
		RequestID: "req-1",
		Requestor: "alice",
		Prompt:    "spring sale banner",
		Keywords:  []string{"sale", "spring"},
		MimeType:  "image/png",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return res
}

func (h *harness) do(t *testing.T, typ string, id uuid.UUID) (commands.Result, error) {
	t.Helper()
	req := Request{Type: typ, RequestID: "req-2", Requestor: "bob", ImageID: id}
	if typ == ApprovalApproved || typ == ApprovalRejected {
		req = Request{Type: RequestSetApprovalStatus, ApprovalStatus: typ, RequestID: "req-2", Requestor: "bob", ImageID: id}
	}
	return h.driving.Handle(context.Background(), req)
}

func targetFor(res commands.Result) commands.Target {
	return commands.Target{RequestID: "req-2", Requestor: "bob", ImageID: res.ImageID}
}

func generateData(prompt string) commands.GenerateData {
	return commands.GenerateData{
		RequestID: "req-1",
		Requestor: "alice",
		Prompt:    prompt,
		MimeType:  "image/png",
	}
}

func requireCode(t *testing.T, err error, want domainagg.ErrorCode) *domainagg.Error {
	t.Helper()
	if err == nil {
		t.Fatalf("error: want code=%s got=nil", want)
	}
	var aggErr *domainagg.Error
	if !errors.As(err, &aggErr) {
		t.Fatalf("error type: want=*aggregates.Error got=%T (%v)", err, err)
	}
	if aggErr.Code != want {
		t.Fatalf("error code: want=%s got=%s (%v)", want, aggErr.Code, err)
	}
	return aggErr
}
