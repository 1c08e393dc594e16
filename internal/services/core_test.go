package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/marketing-image-engine/internal/commands"
	"github.com/yungbote/marketing-image-engine/internal/data/aggregates"
	domainagg "github.com/yungbote/marketing-image-engine/internal/domain/aggregates"
	"github.com/yungbote/marketing-image-engine/internal/domain/marketingimage"
	"github.com/yungbote/marketing-image-engine/internal/integration"
)

func TestGenerateStoresPersistsAndPublishes(t *testing.T) {
	h := newHarness(t)
	res := h.generate(t)

	if res.ImageID == uuid.Nil {
		t.Fatalf("image id: want non-nil")
	}
	if res.RequestID != "req-1" || res.Requestor != "alice" {
		t.Fatalf("correlation: want=(req-1, alice) got=(%s, %s)", res.RequestID, res.Requestor)
	}
	key := ObjectKey("req-1", res.ImageID, "image/png")
	if want := h.store.url(key); res.URL != want {
		t.Fatalf("url: want=%s got=%s", want, res.URL)
	}
	if !h.store.has(key) {
		t.Fatalf("object %s not stored", key)
	}
	if res.Status != marketingimage.StatusGenerated {
		t.Fatalf("status: want=%s got=%s", marketingimage.StatusGenerated, res.Status)
	}
	if !res.Published || res.MessageID == "" {
		t.Fatalf("publication: want published with message id got=%v %q", res.Published, res.MessageID)
	}
	if got := h.pub.types(); len(got) != 1 || got[0] != "ai.dev.integrationevent.marketing-image.generated" {
		t.Fatalf("published types: got=%v", got)
	}

	stored := h.repo.storedEvent(t, res.EventID)
	if stored.PublishStatus != marketingimage.PublishStatusPublished {
		t.Fatalf("publish status: want=%s got=%s", marketingimage.PublishStatusPublished, stored.PublishStatus)
	}
	if stored.MessageID != res.MessageID {
		t.Fatalf("message id: want=%s got=%s", res.MessageID, stored.MessageID)
	}

	snap, err := NewQueryService(h.deps.Log, h.repo, h.repo).Get(context.Background(), res.ImageID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snap.Description != "spring sale banner" {
		t.Fatalf("description defaults to prompt: got=%q", snap.Description)
	}
	if snap.GenerationModel != "fake-model" || snap.CreatedBy != "alice" {
		t.Fatalf("snapshot: got model=%q created_by=%q", snap.GenerationModel, snap.CreatedBy)
	}
}

func TestGenerateRemovesObjectWhenPersistFails(t *testing.T) {
	h := newHarness(t)
	h.repo.saveErr = domainagg.NewError(domainagg.CodePersistenceFailure, "test", "db down", nil)

	_, err := h.driving.Handle(context.Background(), Request{
		Type: RequestGenerate, RequestID: "req-1", Requestor: "alice",
		Prompt: "banner", MimeType: "image/png",
	})
	aggErr := requireCode(t, err, domainagg.CodePersistenceFailure)
	if aggErr.CommandID == "" || aggErr.ImageID == "" {
		t.Fatalf("error refs: want command and image id got=(%q, %q)", aggErr.CommandID, aggErr.ImageID)
	}
	if len(h.store.removed) != 1 {
		t.Fatalf("removed objects: want=1 got=%v", h.store.removed)
	}
	if len(h.store.objects) != 0 {
		t.Fatalf("orphaned objects left: %v", h.store.objects)
	}
	if h.pub.count() != 0 {
		t.Fatalf("published: want=0 got=%d", h.pub.count())
	}
}

func TestGenerateStoreFailureIsPersistenceFailure(t *testing.T) {
	h := newHarness(t)
	h.store.saveErr = errors.New("bucket unavailable")

	_, err := h.driving.Handle(context.Background(), Request{
		Type: RequestGenerate, RequestID: "req-1", Requestor: "alice",
		Prompt: "banner", MimeType: "image/png",
	})
	requireCode(t, err, domainagg.CodePersistenceFailure)
	if h.repo.saves != 0 {
		t.Fatalf("saves: want=0 got=%d", h.repo.saves)
	}
}

func TestMalformedCommandHasNoSideEffects(t *testing.T) {
	h := newHarness(t)
	_, err := h.driving.Handle(context.Background(), Request{
		Type: RequestGenerate, RequestID: "req-1", Requestor: "alice", MimeType: "image/png",
	})
	aggErr := requireCode(t, err, domainagg.CodeMalformedCommand)
	if aggErr.CommandID == "" {
		t.Fatalf("command id ref: want non-empty")
	}
	if h.gen.calls != 0 || h.repo.saves != 0 || h.pub.count() != 0 {
		t.Fatalf("side effects: generator=%d saves=%d published=%d", h.gen.calls, h.repo.saves, h.pub.count())
	}
}

func TestLifecycleThroughRemove(t *testing.T) {
	h := newHarness(t)
	gen := h.generate(t)
	id := gen.ImageID

	steps := []struct {
		typ  string
		want marketingimage.Status
	}{
		{RequestModify, marketingimage.StatusReviewing},
		{ApprovalRejected, marketingimage.StatusRejected},
		{RequestResubmit, marketingimage.StatusGenerated},
		{RequestModify, marketingimage.StatusReviewing},
		{ApprovalApproved, marketingimage.StatusAccepted},
		{RequestRemove, marketingimage.StatusRemoved},
	}
	for _, st := range steps {
		res, err := h.do(t, st.typ, id)
		if err != nil {
			t.Fatalf("%s: %v", st.typ, err)
		}
		if res.Status != st.want {
			t.Fatalf("%s status: want=%s got=%s", st.typ, st.want, res.Status)
		}
		if res.ImageID != id || res.URL != gen.URL {
			t.Fatalf("%s result: want id=%s url=%s got id=%s url=%s", st.typ, id, gen.URL, res.ImageID, res.URL)
		}
	}

	wantTypes := []string{"generated", "modified", "rejected", "resubmitted", "modified", "approved", "removed"}
	got := h.pub.types()
	if len(got) != len(wantTypes) {
		t.Fatalf("published: want=%d got=%v", len(wantTypes), got)
	}
	for i, w := range wantTypes {
		if !strings.HasSuffix(got[i], "."+w) {
			t.Fatalf("published[%d]: want suffix .%s got=%s", i, w, got[i])
		}
	}

	if _, err := h.repo.RetrieveByID(context.Background(), id); !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("snapshot after remove: want not found got=%v", err)
	}
	if h.store.has(ObjectKey("req-1", id, "image/png")) {
		t.Fatalf("object still stored after remove")
	}

	history, err := NewQueryService(h.deps.Log, h.repo, h.repo).History(context.Background(), id, aggregates.EventFilter{})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != len(wantTypes) {
		t.Fatalf("history: want=%d got=%d", len(wantTypes), len(history))
	}
}

func TestRemoveSurvivesObjectDeleteFailure(t *testing.T) {
	h := newHarness(t)
	gen := h.generate(t)
	h.store.removeErr = errors.New("permission denied")

	res, err := h.do(t, RequestRemove, gen.ImageID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if res.Status != marketingimage.StatusRemoved {
		t.Fatalf("status: want=%s got=%s", marketingimage.StatusRemoved, res.Status)
	}
}

func TestInvalidTransitionPersistsNothing(t *testing.T) {
	h := newHarness(t)
	gen := h.generate(t)

	_, err := h.do(t, ApprovalApproved, gen.ImageID)
	aggErr := requireCode(t, err, domainagg.CodeInvalidStateTransition)
	if aggErr.ImageID != gen.ImageID.String() {
		t.Fatalf("image ref: want=%s got=%s", gen.ImageID, aggErr.ImageID)
	}
	if h.repo.eventCount() != 1 || h.pub.count() != 1 {
		t.Fatalf("after invalid transition: events=%d published=%d", h.repo.eventCount(), h.pub.count())
	}
	img, err := h.repo.RetrieveByID(context.Background(), gen.ImageID)
	if err != nil {
		t.Fatalf("RetrieveByID: %v", err)
	}
	if img.Status() != marketingimage.StatusGenerated || img.Version() != 1 {
		t.Fatalf("state: want GENERATED@1 got=%s@%d", img.Status(), img.Version())
	}
}

func TestUnknownImageIsNotFound(t *testing.T) {
	h := newHarness(t)
	id := uuid.New()
	_, err := h.do(t, RequestModify, id)
	aggErr := requireCode(t, err, domainagg.CodeNotFound)
	if aggErr.ImageID != id.String() {
		t.Fatalf("image ref: want=%s got=%s", id, aggErr.ImageID)
	}
}

func TestPublishFailureAfterPersistKeepsState(t *testing.T) {
	h := newHarness(t)
	gen := h.generate(t)
	h.pub.fail = func(integration.IntegrationEvent) (integration.PublishResult, error) {
		return integration.PublishResult{Status: integration.PublishFailure, Error: "bus down"}, nil
	}

	res, err := h.do(t, RequestModify, gen.ImageID)
	aggErr := requireCode(t, err, domainagg.CodePublishFailure)
	if aggErr.Message != msgPublishAfterPersist || aggErr.Cause == nil {
		t.Fatalf("error: want fixed message with cause got message=%q cause=%v", aggErr.Message, aggErr.Cause)
	}
	if n := strings.Count(err.Error(), "publish_failure"); n != 1 {
		t.Fatalf("error text: want code once got=%d in %q", n, err.Error())
	}
	if res.Status != marketingimage.StatusReviewing || res.Published {
		t.Fatalf("result: want REVIEWING unpublished got=%s published=%v", res.Status, res.Published)
	}
	img, err := h.repo.RetrieveByID(context.Background(), gen.ImageID)
	if err != nil {
		t.Fatalf("RetrieveByID: %v", err)
	}
	if img.Status() != marketingimage.StatusReviewing {
		t.Fatalf("persisted status: want=%s got=%s", marketingimage.StatusReviewing, img.Status())
	}
	stored := h.repo.storedEvent(t, res.EventID)
	if stored.PublishStatus != marketingimage.PublishStatusFailed || stored.PublishAttempts != 1 {
		t.Fatalf("outbox: want failed/1 got=%s/%d", stored.PublishStatus, stored.PublishAttempts)
	}
	if !strings.Contains(stored.LastPublishError, "bus down") {
		t.Fatalf("last error: got=%q", stored.LastPublishError)
	}
}

func TestLaterEventWaitsBehindFailedEvent(t *testing.T) {
	h := newHarness(t)
	gen := h.generate(t)

	deps := h.deps
	deps.DeferToSweep = true
	deps.MaxPublishAttempts = 5
	modify, approve := NewModifyService(deps), NewApproveService(deps)

	h.pub.fail = failAll
	if _, err := modify.Handle(context.Background(), h.cmdFact.Modify(targetFor(gen), nil)); err == nil {
		t.Fatalf("modify: want publish failure")
	}
	h.pub.fail = nil

	res, err := approve.Handle(context.Background(), h.cmdFact.Approve(targetFor(gen), nil))
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if res.Published || res.Status != marketingimage.StatusAccepted {
		t.Fatalf("approve result: want ACCEPTED unpublished got=%s published=%v", res.Status, res.Published)
	}
	if stored := h.repo.storedEvent(t, res.EventID); stored.PublishStatus != marketingimage.PublishStatusPending || stored.PublishAttempts != 0 {
		t.Fatalf("approved event: want pending/0 got=%s/%d", stored.PublishStatus, stored.PublishAttempts)
	}
	if got := h.pub.types(); len(got) != 1 {
		t.Fatalf("published before sweep: want only generated got=%v", got)
	}

	report, err := newTestWorker(h, RedeliveryConfig{BatchSize: 10, MaxAttempts: 5}).SweepOnce(context.Background())
	if err != nil || report.Published != 2 {
		t.Fatalf("SweepOnce: report=%+v err=%v", report, err)
	}
	got := h.pub.types()
	if len(got) != 3 || !strings.HasSuffix(got[1], ".modified") || !strings.HasSuffix(got[2], ".approved") {
		t.Fatalf("publish order: got=%v", got)
	}
}

func TestNoHandlerRegisteredAfterPersist(t *testing.T) {
	h := newHarness(t)
	gen := h.generate(t)

	deps := h.deps
	deps.Dispatcher = NewEventDispatcher()
	svc := NewModifyService(deps)

	cmd := h.cmdFact.Modify(targetFor(gen), nil)
	res, err := svc.Handle(context.Background(), cmd)
	requireCode(t, err, domainagg.CodeNoHandlerRegistered)
	if res.Status != marketingimage.StatusReviewing {
		t.Fatalf("result status: want=%s got=%s", marketingimage.StatusReviewing, res.Status)
	}
	if stored := h.repo.storedEvent(t, res.EventID); stored.PublishStatus != marketingimage.PublishStatusFailed {
		t.Fatalf("outbox status: want=%s got=%s", marketingimage.PublishStatusFailed, stored.PublishStatus)
	}
}

func TestCancelledContextStopsBeforeWork(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewGenerateService(h.deps, h.gen, h.store)
	cmd := h.cmdFact.Generate(generateData("banner"), nil)
	_, err := svc.Handle(ctx, cmd)
	requireCode(t, err, domainagg.CodeOperationCancelled)
	if h.gen.calls != 0 || h.repo.saves != 0 {
		t.Fatalf("side effects: generator=%d saves=%d", h.gen.calls, h.repo.saves)
	}
}

func TestServiceRejectsForeignCommand(t *testing.T) {
	h := newHarness(t)
	svc := NewApproveService(h.deps)
	_, err := svc.Handle(context.Background(), h.cmdFact.Reject(targetFor(commands.Result{ImageID: uuid.New()}), nil))
	requireCode(t, err, domainagg.CodeMalformedCommand)
}

func TestChangeMetadataReturnsOnlyChangedFields(t *testing.T) {
	h := newHarness(t)
	gen := h.generate(t)

	desc := "Spring sale, 20% off"
	res, err := h.driving.Handle(context.Background(), Request{
		Type: RequestChange, RequestID: "req-3", Requestor: "carol", ImageID: gen.ImageID,
		Changes: marketingimage.MetadataChanges{Description: &desc},
	})
	if err != nil {
		t.Fatalf("change: %v", err)
	}
	if res.ChangedMetadata == nil || res.ChangedMetadata.Description == nil || *res.ChangedMetadata.Description != desc {
		t.Fatalf("changed metadata: got=%+v", res.ChangedMetadata)
	}
	if fields := res.ChangedMetadata.Fields(); len(fields) != 1 {
		t.Fatalf("changed fields: want=[description] got=%v", fields)
	}
	if res.Status != marketingimage.StatusGenerated {
		t.Fatalf("status: want unchanged GENERATED got=%s", res.Status)
	}

	_, err = h.driving.Handle(context.Background(), Request{
		Type: RequestChange, RequestID: "req-4", Requestor: "carol", ImageID: gen.ImageID,
		Changes: marketingimage.MetadataChanges{Description: &desc},
	})
	requireCode(t, err, domainagg.CodeMalformedCommand)
}

func TestChangeMetadataRejectsURLWithoutObject(t *testing.T) {
	h := newHarness(t)
	gen := h.generate(t)
	saves, published := h.repo.saves, len(h.pub.types())

	for _, raw := range []string{"https://cdn.example.com/", "https://storage.googleapis.com/mi-bucket/"} {
		bad := raw
		_, err := h.driving.Handle(context.Background(), Request{
			Type: RequestChange, RequestID: "req-3", Requestor: "carol", ImageID: gen.ImageID,
			Changes: marketingimage.MetadataChanges{URL: &bad},
		})
		requireCode(t, err, domainagg.CodeMalformedCommand)
	}
	if h.repo.saves != saves || len(h.pub.types()) != published {
		t.Fatalf("side effects: saves=%d->%d published=%d->%d", saves, h.repo.saves, published, len(h.pub.types()))
	}
	img, err := h.repo.RetrieveByID(context.Background(), gen.ImageID)
	if err != nil {
		t.Fatalf("RetrieveByID: %v", err)
	}
	if img.URL() != gen.URL || img.Version() != 1 {
		t.Fatalf("persisted: want url=%s version=1 got url=%s version=%d", gen.URL, img.URL(), img.Version())
	}

	moved := h.store.url("moved/banner.png")
	res, err := h.driving.Handle(context.Background(), Request{
		Type: RequestChange, RequestID: "req-4", Requestor: "carol", ImageID: gen.ImageID,
		Changes: marketingimage.MetadataChanges{URL: &moved},
	})
	if err != nil {
		t.Fatalf("change url: %v", err)
	}
	if !res.Published || res.URL != moved {
		t.Fatalf("change url result: want published url=%s got published=%v url=%s", moved, res.Published, res.URL)
	}
	if res, err := h.do(t, RequestModify, gen.ImageID); err != nil || !res.Published {
		t.Fatalf("modify after url change: published=%v err=%v", res.Published, err)
	}
}

func TestObjectKey(t *testing.T) {
	id := uuid.MustParse("6f1c2f7e-4f6b-4c1a-9a55-3b0a8c1e2d11")
	cases := []struct {
		requestID, mime, want string
	}{
		{"req-1", "image/png", "req-1/6f1c2f7e-4f6b-4c1a-9a55-3b0a8c1e2d11.png"},
		{"req 1/../x", "image/jpeg", "req-1-..-x/6f1c2f7e-4f6b-4c1a-9a55-3b0a8c1e2d11.jpg"},
		{"", "image/webp", "request/6f1c2f7e-4f6b-4c1a-9a55-3b0a8c1e2d11.webp"},
		{"...", "image/gif", "request/6f1c2f7e-4f6b-4c1a-9a55-3b0a8c1e2d11.gif"},
	}
	for _, tc := range cases {
		if got := ObjectKey(tc.requestID, id, tc.mime); got != tc.want {
			t.Fatalf("ObjectKey(%q): want=%s got=%s", tc.requestID, tc.want, got)
		}
	}
}
