package aggregates

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	domainagg "github.com/yungbote/marketplace-backend/internal/domain/aggregates"
)

func TestMapError_Validation(t *testing.T) {
	err := MapError("op", ValidationError("bad input"))
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("expected validation code, got %q (%v)", domainagg.CodeOf(err), err)
	}
}

func TestMapError_Conflict(t *testing.T) {
	err := MapError("op", ConflictError("stale"))
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("expected conflict code, got %q (%v)", domainagg.CodeOf(err), err)
	}
}

func TestMapError_NotFound(t *testing.T) {
	err := MapError("op", gorm.ErrRecordNotFound)
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("expected not_found code, got %q (%v)", domainagg.CodeOf(err), err)
	}
}

func TestMapError_DeadlineIsRetryable(t *testing.T) {
	err := MapError("op", fmt.Errorf("store call: %w", context.DeadlineExceeded))
	if !domainagg.IsCode(err, domainagg.CodeRetryable) {
		t.Fatalf("expected retryable code, got %q (%v)", domainagg.CodeOf(err), err)
	}
}

func TestMapError_UniqueViolations(t *testing.T) {
	pg := &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
	if got := domainagg.CodeOf(MapError("op", pg)); got != domainagg.CodeConflict {
		t.Fatalf("pg unique: want=%s got=%s", domainagg.CodeConflict, got)
	}
	lite := errors.New("UNIQUE constraint failed: product.name")
	if got := domainagg.CodeOf(MapError("op", lite)); got != domainagg.CodeConflict {
		t.Fatalf("sqlite unique: want=%s got=%s", domainagg.CodeConflict, got)
	}
	if !isUniqueViolation(pg) || !isUniqueViolation(lite) || isUniqueViolation(errors.New("boom")) {
		t.Fatalf("isUniqueViolation misclassified")
	}
}

func TestMapError_PassthroughAggregateError(t *testing.T) {
	in := domainagg.NewError(domainagg.CodeRetryable, "op", "retry", errors.New("boom"))
	out := MapError("other", in)
	if out != in {
		t.Fatalf("expected passthrough aggregate error")
	}
}

func TestMapError_PassthroughPartialFailure(t *testing.T) {
	in := &domainagg.PartialFailure{Op: "op", Completed: []string{"a"}, Failed: "b", Cause: errors.New("boom")}
	out := MapError("other", in)
	if out != error(in) {
		t.Fatalf("expected passthrough partial failure")
	}
}
