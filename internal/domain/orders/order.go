package orders

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Order is the canonical purchase record. It is immutable once created; the
// purchaser's Account.OrderRefs must reference it.
type Order struct {
	ID            uuid.UUID                       `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID       uuid.UUID                       `gorm:"type:uuid;not null;index;column:owner_id" json:"owner_id"`
	CustomerEmail string                          `gorm:"not null;index;column:customer_email" json:"customer_email"`
	TotalPrice    decimal.Decimal                 `gorm:"type:numeric(14,2);not null;column:total_price" json:"total_price"`
	PlacedAt      time.Time                       `gorm:"not null;column:placed_at" json:"placed_at"`
	Items         datatypes.JSONSlice[OrderItem]  `gorm:"column:items" json:"items"`
	Billing       datatypes.JSONType[BillingInfo] `gorm:"column:billing" json:"billing"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (Order) TableName() string { return "order_record" }

// OrderItem is the purchased-item snapshot embedded in an Order.
type OrderItem struct {
	// CartItemID names the cart line a checkout bought; zero for direct orders.
	CartItemID  uuid.UUID       `json:"cart_item_id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	ImageURL    string          `json:"image_url,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type BillingInfo struct {
	FullName   string `json:"full_name"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	CardLast4  string `json:"card_last4,omitempty"`
}

// OrderInput carries the caller-supplied order fields. TotalPrice is optional;
// when present it must equal the sum of the item line totals.
type OrderInput struct {
	CustomerEmail string           `json:"customer_email"`
	Items         []OrderItem      `json:"items"`
	TotalPrice    *decimal.Decimal `json:"total_price,omitempty"`
	PlacedAt      time.Time        `json:"placed_at"`
	Billing       BillingInfo      `json:"billing"`
}

// Normalize recomputes line totals and validates the input.
func (in *OrderInput) Normalize() error {
	in.CustomerEmail = strings.ToLower(strings.TrimSpace(in.CustomerEmail))
	if in.CustomerEmail == "" {
		return errors.New("customer email is required")
	}
	if len(in.Items) == 0 {
		return errors.New("order must contain at least one item")
	}
	for i := range in.Items {
		it := &in.Items[i]
		if it.Quantity <= 0 {
			return fmt.Errorf("item %d: quantity must be positive", i)
		}
		if it.UnitPrice.IsNegative() {
			return fmt.Errorf("item %d: unit price must be non-negative", i)
		}
		it.LineTotal = it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
	}
	if in.TotalPrice != nil && !in.TotalPrice.Equal(in.ItemsTotal()) {
		return fmt.Errorf("total price %s does not match item total %s", in.TotalPrice, in.ItemsTotal())
	}
	if in.PlacedAt.IsZero() {
		in.PlacedAt = time.Now().UTC()
	}
	return nil
}

func (in OrderInput) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range in.Items {
		total = total.Add(it.LineTotal)
	}
	return total
}

// NewOrder builds the canonical record for ownerID. Call Normalize first.
func (in OrderInput) NewOrder(ownerID uuid.UUID) *Order {
	return &Order{
		ID:            uuid.New(),
		OwnerID:       ownerID,
		CustomerEmail: in.CustomerEmail,
		TotalPrice:    in.ItemsTotal(),
		PlacedAt:      in.PlacedAt.UTC(),
		Items:         datatypes.JSONSlice[OrderItem](append([]OrderItem(nil), in.Items...)),
		Billing:       datatypes.NewJSONType(in.Billing),
	}
}
