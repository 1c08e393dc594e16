package dispatch

import (
	"context"
	"testing"

	domainagg "github.com/yungbote/marketing-image-engine/internal/domain/aggregates"
)

type kind string

type spyHandler struct {
	calls []string
}

func (s *spyHandler) Handle(_ context.Context, msg string) (int, error) {
	s.calls = append(s.calls, msg)
	return len(msg), nil
}

func TestDispatchInvokesRegisteredHandlerOnce(t *testing.T) {
	r := NewRegistry[kind, string, int]("test")
	h := &spyHandler{}
	if err := r.Register("t", h); err != nil {
		t.Fatalf("Register: %v", err)
	}
	got, err := r.Dispatch(context.Background(), "t", "hello")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got != 5 {
		t.Fatalf("result: want=5 got=%d", got)
	}
	if len(h.calls) != 1 || h.calls[0] != "hello" {
		t.Fatalf("calls: want=[hello] got=%v", h.calls)
	}
}

func mustRegister(t *testing.T, r *Registry[kind, string, int], k kind, h Handler[string, int]) {
	t.Helper()
	if err := r.Register(k, h); err != nil {
		t.Fatalf("Register(%s): %v", k, err)
	}
}

func TestDispatchUnregisteredKind(t *testing.T) {
	r := NewRegistry[kind, string, int]("test")
	mustRegister(t, r, "t", &spyHandler{})
	_, err := r.Dispatch(context.Background(), "u", "x")
	if !domainagg.IsCode(err, domainagg.CodeNoHandlerRegistered) {
		t.Fatalf("want no handler registered, got=%v", err)
	}
}

func TestRegisterRejectsDuplicatesAndSealed(t *testing.T) {
	r := NewRegistry[kind, string, int]("test")
	first := &spyHandler{}
	if err := r.Register("t", first); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register("t", &spyHandler{}); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
	if _, err := r.Dispatch(context.Background(), "t", "x"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(first.calls) != 1 {
		t.Fatalf("first handler should still be bound, calls=%v", first.calls)
	}

	r.Seal()
	if err := r.Register("other", &spyHandler{}); err == nil {
		t.Fatalf("expected error registering after seal")
	}
	if err := r.Register("", &spyHandler{}); err == nil {
		t.Fatalf("expected error for empty kind")
	}
}

func TestRequireAndRegistered(t *testing.T) {
	r := NewRegistry[kind, string, int]("test")
	mustRegister(t, r, "b", HandlerFunc[string, int](func(context.Context, string) (int, error) { return 0, nil }))
	mustRegister(t, r, "a", &spyHandler{})
	if err := r.Require("a", "b"); err != nil {
		t.Fatalf("Require: %v", err)
	}
	if err := r.Require("a", "c"); !domainagg.IsCode(err, domainagg.CodeNoHandlerRegistered) {
		t.Fatalf("want no handler registered, got=%v", err)
	}
	got := r.Registered()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("registered: want=[a b] got=%v", got)
	}
}

func TestDispatchCancelledContext(t *testing.T) {
	r := NewRegistry[kind, string, int]("test")
	h := &spyHandler{}
	mustRegister(t, r, "t", h)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Dispatch(ctx, "t", "x")
	if !domainagg.IsCode(err, domainagg.CodeOperationCancelled) {
		t.Fatalf("want operation cancelled, got=%v", err)
	}
	if len(h.calls) != 0 {
		t.Fatalf("handler should not run, calls=%v", h.calls)
	}
}
