package aggregates

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	types "github.com/yungbote/marketplace-backend/internal/domain"
	domainagg "github.com/yungbote/marketplace-backend/internal/domain/aggregates"
	"github.com/yungbote/marketplace-backend/internal/platform/dbctx"
)

func (a *marketplaceAggregate) AddListing(ctx context.Context, in domainagg.AddListingInput) (*types.Product, error) {
	const op = "Marketplace.AddListing"
	var out *types.Product

	err := executeWrite(ctx, a.deps.Base, op, func(ctx context.Context) error {
		if err := a.configured(op); err != nil {
			return err
		}
		if in.AccountID == uuid.Nil {
			return ValidationError("missing account_id")
		}
		if err := in.Product.Validate(); err != nil {
			return ValidationError(err.Error())
		}
		owner, err := a.loadAccount(ctx, a.byID(op, in.AccountID))
		if err != nil {
			return err
		}

		runner, err := a.begin(ctx, op, owner.ID, in.IdempotencyKey)
		if err != nil {
			return err
		}
		defer runner.release(ctx)

		if runner.done(stepCreateProduct) {
			out, err = a.getProduct(ctx, op, runner.resultID())
			if err != nil {
				return err
			}
		} else {
			err = runner.step(ctx, stepCreateProduct, func(ctx context.Context) error {
				return call(ctx, a.deps.Base, func(dbc dbctx.Context) error {
					name := strings.TrimSpace(in.Product.Name)
					// Advisory; the unique index on name is the real guard.
					existing, err := a.deps.Products.GetByName(dbc, name)
					if err != nil {
						return err
					}
					if existing != nil {
						return duplicateName(op, name, nil)
					}
					created, err := a.deps.Products.Create(dbc, in.Product.NewProduct(owner.ID))
					if err != nil {
						if isUniqueViolation(err) {
							return duplicateName(op, name, err)
						}
						return err
					}
					out = created
					runner.setResult(created.ID)
					return nil
				})
			})
			if err != nil {
				return err
			}
		}

		err = runner.step(ctx, stepAttachListing, func(ctx context.Context) error {
			_, err := a.mutateAccount(ctx, op, a.byID(op, owner.ID), func(acct *types.Account) error {
				if !acct.AttachListing(out.ID) {
					return errNoChange
				}
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
		runner.finish(ctx)
		return nil
	})
	return out, err
}

func (a *marketplaceAggregate) RemoveListing(ctx context.Context, in domainagg.RemoveListingInput) (domainagg.RemoveListingResult, error) {
	const op = "Marketplace.RemoveListing"
	var out domainagg.RemoveListingResult

	err := executeWrite(ctx, a.deps.Base, op, func(ctx context.Context) error {
		if err := a.configured(op); err != nil {
			return err
		}
		if in.AccountID == uuid.Nil || in.ProductID == uuid.Nil {
			return ValidationError("missing account_id or product_id")
		}

		// Snapshot first so the caller gets the removed record even when the
		// canonical delete does not go through.
		err := call(ctx, a.deps.Base, func(dbc dbctx.Context) error {
			p, err := a.deps.Products.GetByID(dbc, in.ProductID)
			out.Product = p
			return err
		})
		if err != nil {
			return err
		}

		runner := newStepRunner(a.deps.Base, op)
		err = runner.step(ctx, stepDetachListing, func(ctx context.Context) error {
			_, err := a.mutateAccount(ctx, op, a.byID(op, in.AccountID), func(acct *types.Account) error {
				// The account's reference is the ownership authority, not Product.OwnerID.
				if !acct.HasListing(in.ProductID) {
					return domainagg.ReferenceMismatch(op, domainagg.EntityProduct, in.ProductID.String())
				}
				acct.DetachListing(in.ProductID)
				return nil
			})
			return err
		})
		if err != nil {
			return err
		}

		err = runner.step(ctx, stepDeleteProduct, func(ctx context.Context) error {
			return call(ctx, a.deps.Base, func(dbc dbctx.Context) error {
				ok, err := a.deps.Products.Delete(dbc, in.ProductID)
				if err != nil {
					return err
				}
				if !ok {
					return domainagg.NotFound(op, domainagg.EntityProduct, in.ProductID.String())
				}
				return nil
			})
		})
		if pf, ok := domainagg.AsPartialFailure(err); ok {
			// The listing already left the owner's view; the product is now an
			// orphan the checker can reconcile.
			warning := fmt.Sprintf("product %s was detached but not deleted: %v", in.ProductID, pf.Cause)
			out.Warnings = append(out.Warnings, warning)
			a.deps.Base.Hooks.IncPartialFailure(op, pf.Failed)
			a.deps.Base.Log.Warn("listing detached, canonical delete failed",
				"op", op,
				"account_id", in.AccountID,
				"product_id", in.ProductID,
				"error", pf.Cause,
			)
			return nil
		}
		return err
	})
	return out, err
}

func (a *marketplaceAggregate) UpdateListing(ctx context.Context, in domainagg.UpdateListingInput) (*types.Product, error) {
	const op = "Marketplace.UpdateListing"
	var out *types.Product

	err := executeWrite(ctx, a.deps.Base, op, func(ctx context.Context) error {
		if err := a.configured(op); err != nil {
			return err
		}
		if in.AccountID == uuid.Nil || in.ProductID == uuid.Nil {
			return ValidationError("missing account_id or product_id")
		}
		if err := in.Patch.Validate(); err != nil {
			return ValidationError(err.Error())
		}
		owner, err := a.loadAccount(ctx, a.byID(op, in.AccountID))
		if err != nil {
			return err
		}
		if !owner.HasListing(in.ProductID) {
			return domainagg.ReferenceMismatch(op, domainagg.EntityProduct, in.ProductID.String())
		}

		runner := newStepRunner(a.deps.Base, op)
		err = runner.step(ctx, stepUpdateProduct, func(ctx context.Context) error {
			return call(ctx, a.deps.Base, func(dbc dbctx.Context) error {
				if in.Patch.Name != nil {
					name := strings.TrimSpace(*in.Patch.Name)
					existing, err := a.deps.Products.GetByName(dbc, name)
					if err != nil {
						return err
					}
					if existing != nil && existing.ID != in.ProductID {
						return duplicateName(op, name, nil)
					}
				}
				updated, err := a.deps.Products.Update(dbc, in.ProductID, in.Patch)
				if err != nil {
					if isUniqueViolation(err) && in.Patch.Name != nil {
						return duplicateName(op, strings.TrimSpace(*in.Patch.Name), err)
					}
					return err
				}
				if updated == nil {
					return domainagg.NotFound(op, domainagg.EntityProduct, in.ProductID.String())
				}
				out = updated
				return nil
			})
		})
		if err != nil {
			return err
		}

		// Listings hold ids only, so there is no snapshot to rewrite. The step
		// still confirms the reference survived the canonical write.
		err = runner.step(ctx, stepRefreshListing, func(ctx context.Context) error {
			acct, err := a.loadAccount(ctx, a.byID(op, in.AccountID))
			if err != nil {
				return err
			}
			if !acct.HasListing(in.ProductID) {
				return domainagg.ReferenceMismatch(op, domainagg.EntityProduct, in.ProductID.String())
			}
			return nil
		})
		if pf, ok := domainagg.AsPartialFailure(err); ok {
			pf.Result = out
		}
		return err
	})
	return out, err
}
