package orders

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestNormalizeComputesLineTotals(t *testing.T) {
	in := OrderInput{
		CustomerEmail: " A@X.com ",
		Items: []OrderItem{
			{ProductID: uuid.New(), ProductName: "Widget", UnitPrice: decimal.NewFromInt(10), Quantity: 2},
			{ProductID: uuid.New(), ProductName: "Gadget", UnitPrice: decimal.RequireFromString("0.5"), Quantity: 3},
		},
	}
	if err := in.Normalize(); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if in.CustomerEmail != "a@x.com" {
		t.Fatalf("email not normalized: %q", in.CustomerEmail)
	}
	if !in.ItemsTotal().Equal(decimal.RequireFromString("21.5")) {
		t.Fatalf("items total: got=%s", in.ItemsTotal())
	}
	if in.PlacedAt.IsZero() {
		t.Fatalf("placed_at should default to now")
	}

	o := in.NewOrder(uuid.New())
	if !o.TotalPrice.Equal(in.ItemsTotal()) || len(o.Items) != 2 {
		t.Fatalf("unexpected order: %+v", o)
	}
}

func TestNormalizeRejectsMismatchedTotal(t *testing.T) {
	wrong := decimal.NewFromInt(99)
	in := OrderInput{
		CustomerEmail: "a@x.com",
		Items:         []OrderItem{{ProductID: uuid.New(), UnitPrice: decimal.NewFromInt(10), Quantity: 1}},
		TotalPrice:    &wrong,
	}
	if err := in.Normalize(); err == nil {
		t.Fatalf("expected mismatch error")
	}
}

func TestNormalizeRejectsEmptyOrBadItems(t *testing.T) {
	if err := (&OrderInput{CustomerEmail: "a@x.com"}).Normalize(); err == nil {
		t.Fatalf("expected error for empty items")
	}
	in := OrderInput{
		CustomerEmail: "a@x.com",
		Items:         []OrderItem{{ProductID: uuid.New(), UnitPrice: decimal.NewFromInt(1), Quantity: 0}},
	}
	if err := in.Normalize(); err == nil {
		t.Fatalf("expected error for zero quantity")
	}
}
