package aggregates

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOfPrefersPartialFailure(t *testing.T) {
	cause := NewError(CodeConflict, "Account.Save", "version mismatch", nil)
	pf := &PartialFailure{
		Op:        "Marketplace.AddListing",
		Completed: []string{"create_product"},
		Failed:    "attach_listing",
		Cause:     cause,
	}
	wrapped := fmt.Errorf("handler: %w", pf)
	if got := CodeOf(wrapped); got != CodePartialFailure {
		t.Fatalf("code: want=%s got=%s", CodePartialFailure, got)
	}
	if !errors.Is(wrapped, cause) {
		t.Fatalf("cause must stay reachable through Unwrap")
	}
	got, ok := AsPartialFailure(wrapped)
	if !ok || got.Failed != "attach_listing" {
		t.Fatalf("AsPartialFailure: ok=%v got=%+v", ok, got)
	}
}

func TestNotFoundCarriesEntity(t *testing.T) {
	err := NotFound("Marketplace.AddListing", EntityAccount, "abc")
	if !IsCode(err, CodeNotFound) {
		t.Fatalf("expected not_found, got=%v", err)
	}
	aggErr, ok := AsError(err)
	if !ok || aggErr.Entity != EntityAccount || aggErr.ID != "abc" {
		t.Fatalf("unexpected error: %+v", aggErr)
	}
}

func TestIsCodeOnPlainErrors(t *testing.T) {
	if IsCode(errors.New("boom"), CodeInternal) {
		t.Fatalf("plain errors carry no code")
	}
	if IsCode(nil, "") {
		t.Fatalf("nil error carries no code")
	}
}
