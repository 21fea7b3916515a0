package aggregates

import (
	"context"
	"strings"

	"github.com/google/uuid"

	types "github.com/yungbote/marketplace-backend/internal/domain"
	"github.com/yungbote/marketplace-backend/internal/domain/account"
	domainagg "github.com/yungbote/marketplace-backend/internal/domain/aggregates"
	"github.com/yungbote/marketplace-backend/internal/platform/dbctx"
)

// Cart operations touch only the account document, so each is one guarded save.

func (a *marketplaceAggregate) AddCartItem(ctx context.Context, in domainagg.AddCartItemInput) (account.CartItem, error) {
	const op = "Marketplace.AddCartItem"
	var out account.CartItem

	err := executeWrite(ctx, a.deps.Base, op, func(ctx context.Context) error {
		if err := a.configured(op); err != nil {
			return err
		}
		if strings.TrimSpace(in.AccountEmail) == "" || strings.TrimSpace(in.ProductName) == "" {
			return ValidationError("missing account email or product name")
		}
		if in.Quantity <= 0 {
			return ValidationError("quantity must be positive")
		}

		var product *types.Product
		err := call(ctx, a.deps.Base, func(dbc dbctx.Context) error {
			p, err := a.deps.Products.GetByName(dbc, in.ProductName)
			if err != nil {
				return err
			}
			if p == nil {
				return domainagg.NotFound(op, domainagg.EntityProduct, strings.TrimSpace(in.ProductName))
			}
			product = p
			return nil
		})
		if err != nil {
			return err
		}
		// Stock is informational here; carts never reserve it.
		// One id for every attempt so a retried save cannot add two lines.
		item := account.NewCartItem(product.ID, product.Name, product.ImageURL, product.Price, in.Quantity)
		_, err = a.mutateAccount(ctx, op, a.byEmail(op, in.AccountEmail), func(acct *types.Account) error {
			if _, found := acct.FindCartItem(item.ID); found {
				return errNoChange
			}
			acct.AddCartItem(item)
			return nil
		})
		if err != nil {
			return err
		}
		out = item
		return nil
	})
	return out, err
}

func (a *marketplaceAggregate) IncrementCartItem(ctx context.Context, in domainagg.CartItemRef) (domainagg.CartItemResult, error) {
	return a.adjustCartItem(ctx, "Marketplace.IncrementCartItem", in, 1)
}

func (a *marketplaceAggregate) DecrementCartItem(ctx context.Context, in domainagg.CartItemRef) (domainagg.CartItemResult, error) {
	return a.adjustCartItem(ctx, "Marketplace.DecrementCartItem", in, -1)
}

func (a *marketplaceAggregate) adjustCartItem(ctx context.Context, op string, in domainagg.CartItemRef, delta int) (domainagg.CartItemResult, error) {
	var out domainagg.CartItemResult

	err := executeWrite(ctx, a.deps.Base, op, func(ctx context.Context) error {
		if err := a.configured(op); err != nil {
			return err
		}
		if strings.TrimSpace(in.AccountEmail) == "" || in.ItemID == uuid.Nil {
			return ValidationError("missing account email or item id")
		}
		_, err := a.mutateAccount(ctx, op, a.byEmail(op, in.AccountEmail), func(acct *types.Account) error {
			idx, found := acct.FindCartItem(in.ItemID)
			if !found {
				return domainagg.NotFound(op, domainagg.EntityCartItem, in.ItemID.String())
			}
			item := acct.Cart[idx]
			item.SetQuantity(item.Quantity + delta)
			if item.Quantity <= 0 {
				// A zero-quantity line is never persisted.
				acct.RemoveCartItem(idx)
				out = domainagg.CartItemResult{Item: item, Removed: true}
				return nil
			}
			acct.Cart[idx] = item
			out = domainagg.CartItemResult{Item: item}
			return nil
		})
		return err
	})
	return out, err
}

func (a *marketplaceAggregate) DeleteCartItem(ctx context.Context, in domainagg.CartItemRef) (account.CartItem, error) {
	const op = "Marketplace.DeleteCartItem"
	var out account.CartItem

	err := executeWrite(ctx, a.deps.Base, op, func(ctx context.Context) error {
		if err := a.configured(op); err != nil {
			return err
		}
		if strings.TrimSpace(in.AccountEmail) == "" || in.ItemID == uuid.Nil {
			return ValidationError("missing account email or item id")
		}
		_, err := a.mutateAccount(ctx, op, a.byEmail(op, in.AccountEmail), func(acct *types.Account) error {
			idx, found := acct.FindCartItem(in.ItemID)
			if !found {
				return domainagg.NotFound(op, domainagg.EntityCartItem, in.ItemID.String())
			}
			out = acct.RemoveCartItem(idx)
			return nil
		})
		return err
	})
	return out, err
}
