package aggregates

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	domainagg "github.com/yungbote/marketing-image-engine/internal/domain/aggregates"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want domainagg.ErrorCode
	}{
		{"conflict sentinel", ConflictError("stale"), domainagg.CodeConflict},
		{"not found", gorm.ErrRecordNotFound, domainagg.CodeNotFound},
		{"wrapped not found", fmt.Errorf("load: %w", gorm.ErrRecordNotFound), domainagg.CodeNotFound},
		{"cancelled", context.Canceled, domainagg.CodeOperationCancelled},
		{"deadline", context.DeadlineExceeded, domainagg.CodeOperationCancelled},
		{"pg unique", &pgconn.PgError{Code: "23505"}, domainagg.CodeConflict},
		{"pg deadlock", &pgconn.PgError{Code: "40P01"}, domainagg.CodeConflict},
		{"pg serialization", &pgconn.PgError{Code: "40001"}, domainagg.CodeConflict},
		{"sqlite unique", errors.New("UNIQUE constraint failed: marketing_image_aggregate.id"), domainagg.CodeConflict},
		{"sqlite locked", errors.New("database is locked"), domainagg.CodeConflict},
		{"other", errors.New("connection refused"), domainagg.CodePersistenceFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := MapError("op", tc.in)
			if got := domainagg.CodeOf(err); got != tc.want {
				t.Fatalf("code: want=%s got=%s (%v)", tc.want, got, err)
			}
			if !errors.Is(err, tc.in) {
				t.Fatalf("mapped error should wrap the original")
			}
		})
	}
}

func TestMapError_PassthroughAggregateError(t *testing.T) {
	in := domainagg.NewError(domainagg.CodeMalformedCommand, "op", "bad", errors.New("boom"))
	out := MapError("other", in)
	if out != in {
		t.Fatalf("expected passthrough aggregate error")
	}
	if MapError("op", nil) != nil {
		t.Fatalf("nil should map to nil")
	}
}

func TestIsTransient(t *testing.T) {
	if IsTransient(ConflictError("stale")) {
		t.Fatalf("stale version is not transient")
	}
	if !IsTransient(&pgconn.PgError{Code: "55P03"}) {
		t.Fatalf("lock_not_available should be transient")
	}
	if !IsTransient(errors.New("ERROR: deadlock detected")) {
		t.Fatalf("deadlock message should be transient")
	}
	if IsTransient(nil) {
		t.Fatalf("nil is not transient")
	}
}
