package testutil

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/marketplace-backend/internal/domain"
)

func SeedAccount(tb testing.TB, ctx context.Context, tx *gorm.DB, email string) *types.Account {
	tb.Helper()
	a := &types.Account{
		ID:        uuid.New(),
		Email:     strings.ToLower(email),
		Name:      "A",
		Password:  "pw",
		Listings:  datatypes.JSONSlice[uuid.UUID]{},
		Cart:      datatypes.JSONSlice[types.CartItem]{},
		OrderRefs: datatypes.JSONSlice[uuid.UUID]{},
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed account: %v", err)
	}
	return a
}

func SeedProduct(tb testing.TB, ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, name string, price string, stock int) *types.Product {
	tb.Helper()
	p := &types.Product{
		ID:      uuid.New(),
		Name:    name,
		Genre:   "misc",
		Price:   decimal.RequireFromString(price),
		Stock:   stock,
		OwnerID: ownerID,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed product: %v", err)
	}
	return p
}

func SeedOrder(tb testing.TB, ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, email string) *types.Order {
	tb.Helper()
	item := types.OrderItem{
		ProductID:   uuid.New(),
		ProductName: "seeded",
		UnitPrice:   decimal.RequireFromString("5.00"),
		Quantity:    2,
		LineTotal:   decimal.RequireFromString("10.00"),
	}
	o := &types.Order{
		ID:            uuid.New(),
		OwnerID:       ownerID,
		CustomerEmail: strings.ToLower(email),
		TotalPrice:    item.LineTotal,
		PlacedAt:      time.Now().UTC(),
		Items:         datatypes.JSONSlice[types.OrderItem]{item},
		Billing:       datatypes.NewJSONType(types.BillingInfo{FullName: "A B"}),
	}
	if err := tx.WithContext(ctx).Create(o).Error; err != nil {
		tb.Fatalf("seed order: %v", err)
	}
	return o
}
