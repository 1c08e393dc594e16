package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"

	domainagg "github.com/yungbote/marketing-image-engine/internal/domain/aggregates"
)

// Handler processes one message of the kind it was registered for.
type Handler[M any, R any] interface {
	Handle(ctx context.Context, msg M) (R, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc[M any, R any] func(ctx context.Context, msg M) (R, error)

func (f HandlerFunc[M, R]) Handle(ctx context.Context, msg M) (R, error) { return f(ctx, msg) }

// Registry maps a message kind to exactly one handler. It is filled at
// startup, sealed, and then only read.
type Registry[K ~string, M any, R any] struct {
	name string

	mu       sync.RWMutex
	handlers map[K]Handler[M, R]
	sealed   bool
}

func NewRegistry[K ~string, M any, R any](name string) *Registry[K, M, R] {
	return &Registry[K, M, R]{
		name:     name,
		handlers: make(map[K]Handler[M, R]),
	}
}

// Register binds h to kind. A second registration for the same kind, or any
// registration after Seal, is an error.
func (r *Registry[K, M, R]) Register(kind K, h Handler[M, R]) error {
	if h == nil {
		return fmt.Errorf("%s: nil handler for %q", r.name, kind)
	}
	if kind == "" {
		return fmt.Errorf("%s: empty kind", r.name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return fmt.Errorf("%s: registry sealed, cannot register %q", r.name, kind)
	}
	if _, exists := r.handlers[kind]; exists {
		return fmt.Errorf("%s: handler already registered for %q", r.name, kind)
	}
	r.handlers[kind] = h
	return nil
}

// Seal stops further registration.
func (r *Registry[K, M, R]) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Require fails when any of kinds has no handler. Used to fail fast at startup.
func (r *Registry[K, M, R]) Require(kinds ...K) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, k := range kinds {
		if _, ok := r.handlers[k]; !ok {
			return domainagg.NewError(domainagg.CodeNoHandlerRegistered, r.name+".Require", fmt.Sprintf("no handler registered for %q", k), nil)
		}
	}
	return nil
}

// Registered lists bound kinds in sorted order.
func (r *Registry[K, M, R]) Registered() []K {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]K, 0, len(r.handlers))
	for k := range r.handlers {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Dispatch runs the handler for kind on the calling goroutine.
func (r *Registry[K, M, R]) Dispatch(ctx context.Context, kind K, msg M) (R, error) {
	var zero R
	r.mu.RLock()
	h, ok := r.handlers[kind]
	r.mu.RUnlock()
	if !ok {
		return zero, domainagg.NewError(domainagg.CodeNoHandlerRegistered, r.name+".Dispatch", fmt.Sprintf("no handler registered for %q", kind), nil)
	}
	if err := ctx.Err(); err != nil {
		return zero, domainagg.Wrap(domainagg.CodeOperationCancelled, r.name+".Dispatch", err)
	}
	return h.Handle(ctx, msg)
}
