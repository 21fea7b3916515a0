package aggregates

import (
	"context"
	"strings"

	"github.com/google/uuid"

	types "github.com/yungbote/marketplace-backend/internal/domain"
	domainagg "github.com/yungbote/marketplace-backend/internal/domain/aggregates"
)

// Checkout turns the cart into an order: create_order, attach_order, then
// clear_cart removes the purchased lines. Lines added while checkout runs stay.
func (a *marketplaceAggregate) Checkout(ctx context.Context, in domainagg.CheckoutInput) (*types.Order, error) {
	const op = "Marketplace.Checkout"
	var out *types.Order

	err := executeWrite(ctx, a.deps.Base, op, func(ctx context.Context) error {
		if err := a.configured(op); err != nil {
			return err
		}
		if strings.TrimSpace(in.AccountEmail) == "" {
			return ValidationError("missing account email")
		}
		customer, err := a.loadAccount(ctx, a.byEmail(op, in.AccountEmail))
		if err != nil {
			return err
		}
		runner, err := a.begin(ctx, op, customer.ID, in.IdempotencyKey)
		if err != nil {
			return err
		}
		defer runner.release(ctx)

		var orderIn types.OrderInput
		if !runner.done(stepCreateOrder) {
			if len(customer.Cart) == 0 {
				return ValidationError("cart is empty")
			}
			orderIn = types.OrderInput{
				CustomerEmail: customer.Email,
				Billing:       in.Billing,
			}
			for _, line := range customer.Cart {
				orderIn.Items = append(orderIn.Items, types.OrderItem{
					CartItemID:  line.ID,
					ProductID:   line.ProductID,
					ProductName: line.ProductName,
					ImageURL:    line.ImageURL,
					UnitPrice:   line.UnitPrice,
					Quantity:    line.Quantity,
				})
			}
			if err := orderIn.Normalize(); err != nil {
				return ValidationError(err.Error())
			}
		}

		out, err = a.orderSteps(ctx, op, runner, customer.ID, orderIn)
		if err != nil {
			return err
		}

		if !runner.done(stepClearCart) {
			// The order's snapshot names the purchased lines, so a replay clears
			// exactly those and keeps lines added since.
			purchased := map[uuid.UUID]bool{}
			for _, it := range out.Items {
				if it.CartItemID != uuid.Nil {
					purchased[it.CartItemID] = true
				}
			}
			err = runner.step(ctx, stepClearCart, func(ctx context.Context) error {
				_, err := a.mutateAccount(ctx, op, a.byID(op, customer.ID), func(acct *types.Account) error {
					kept := make([]types.CartItem, 0, len(acct.Cart))
					for _, line := range acct.Cart {
						if purchased[line.ID] {
							continue
						}
						kept = append(kept, line)
					}
					if len(kept) == len(acct.Cart) {
						return errNoChange
					}
					acct.Cart = kept
					return nil
				})
				return err
			})
			if err != nil {
				if pf, ok := domainagg.AsPartialFailure(err); ok {
					pf.Result = out
				}
				return err
			}
		}
		runner.finish(ctx)
		return nil
	})
	return out, err
}
