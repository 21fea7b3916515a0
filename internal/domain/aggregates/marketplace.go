package aggregates

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/marketplace-backend/internal/domain/account"
	"github.com/yungbote/marketplace-backend/internal/domain/catalog"
	"github.com/yungbote/marketplace-backend/internal/domain/orders"
)

var MarketplaceAggregateContract = Contract{
	Name:             "Marketplace.AccountAggregate",
	WriteTxOwnership: WriteStepSequenced,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Notes: "Keeps Account.listings/cart/orderRefs consistent with canonical product and order " +
		"records. Canonical writes precede account writes; deletions detach first. A reference " +
		"never outlives its referent.",
}

// MarketplaceAggregate owns the account/canonical dual-write protocol.
//
// Write method failures return *aggregates.Error with codes CodeValidation,
// CodeNotFound, CodeReferenceMismatch, CodeDuplicateName, CodeConflict,
// CodeRetryable or CodeInternal when nothing committed, and *PartialFailure
// when an earlier step committed before a later one failed.
type MarketplaceAggregate interface {
	Aggregate

	// AddListing creates the canonical product, then references it from the owner's listings.
	AddListing(ctx context.Context, in AddListingInput) (*catalog.Product, error)
	// RemoveListing detaches the listing reference, then deletes the canonical product.
	RemoveListing(ctx context.Context, in RemoveListingInput) (RemoveListingResult, error)
	// UpdateListing patches the canonical product, then refreshes the account projection.
	UpdateListing(ctx context.Context, in UpdateListingInput) (*catalog.Product, error)

	AddCartItem(ctx context.Context, in AddCartItemInput) (account.CartItem, error)
	IncrementCartItem(ctx context.Context, in CartItemRef) (CartItemResult, error)
	// DecrementCartItem removes the line when its quantity reaches zero.
	DecrementCartItem(ctx context.Context, in CartItemRef) (CartItemResult, error)
	DeleteCartItem(ctx context.Context, in CartItemRef) (account.CartItem, error)

	// CreateOrder creates the canonical order, then references it from the purchaser.
	CreateOrder(ctx context.Context, in CreateOrderInput) (*orders.Order, error)
	// DeleteOrder detaches the purchaser's reference, then deletes the order.
	DeleteOrder(ctx context.Context, orderID uuid.UUID) (*orders.Order, error)
	// Checkout turns the cart into an order and clears the purchased lines.
	Checkout(ctx context.Context, in CheckoutInput) (*orders.Order, error)

	// DeleteAccount removes the account document and cascades to owned records.
	DeleteAccount(ctx context.Context, accountID uuid.UUID) (DeleteAccountResult, error)
}

type AddListingInput struct {
	AccountID      uuid.UUID
	Product        catalog.ProductInput
	IdempotencyKey string
}

type RemoveListingInput struct {
	AccountID uuid.UUID
	ProductID uuid.UUID
}

type RemoveListingResult struct {
	Product *catalog.Product
	// Warnings is non-empty when the listing left the account view but the
	// canonical delete failed; the product is then an orphan.
	Warnings []string
}

type UpdateListingInput struct {
	AccountID uuid.UUID
	ProductID uuid.UUID
	Patch     catalog.ProductPatch
}

type AddCartItemInput struct {
	AccountEmail string
	ProductName  string
	Quantity     int
}

type CartItemRef struct {
	AccountEmail string
	ItemID       uuid.UUID
}

type CartItemResult struct {
	Item    account.CartItem
	Removed bool
}

type CreateOrderInput struct {
	Order          orders.OrderInput
	IdempotencyKey string
}

type CheckoutInput struct {
	AccountEmail   string
	Billing        orders.BillingInfo
	IdempotencyKey string
}

type DeleteAccountResult struct {
	Account         *account.Account
	DeletedProducts []uuid.UUID
	DeletedOrders   []uuid.UUID
	// Surviving* list owned records still present after a failed cascade.
	SurvivingProducts []uuid.UUID
	SurvivingOrders   []uuid.UUID
}
