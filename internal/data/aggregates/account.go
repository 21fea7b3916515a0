package aggregates

import (
	"context"

	"github.com/google/uuid"

	domainagg "github.com/yungbote/marketplace-backend/internal/domain/aggregates"
	"github.com/yungbote/marketplace-backend/internal/platform/dbctx"
)

// DeleteAccount drops the account document first, which takes every embedded
// reference with it, and then cascades to the canonical records it owned.
// Records that survive a failed cascade are orphans for the checker.
func (a *marketplaceAggregate) DeleteAccount(ctx context.Context, accountID uuid.UUID) (domainagg.DeleteAccountResult, error) {
	const op = "Marketplace.DeleteAccount"
	var out domainagg.DeleteAccountResult

	err := executeWrite(ctx, a.deps.Base, op, func(ctx context.Context) error {
		if err := a.configured(op); err != nil {
			return err
		}
		if accountID == uuid.Nil {
			return ValidationError("missing account_id")
		}
		acct, err := a.loadAccount(ctx, a.byID(op, accountID))
		if err != nil {
			return err
		}
		out.Account = acct

		runner := newStepRunner(a.deps.Base, op)
		err = runner.step(ctx, stepDeleteAccount, func(ctx context.Context) error {
			return call(ctx, a.deps.Base, func(dbc dbctx.Context) error {
				ok, err := a.deps.Accounts.Delete(dbc, accountID)
				if err != nil {
					return err
				}
				if !ok {
					return domainagg.NotFound(op, domainagg.EntityAccount, accountID.String())
				}
				return nil
			})
		})
		if err != nil {
			return err
		}

		err = runner.step(ctx, stepDeleteOwned, func(ctx context.Context) error {
			if err := call(ctx, a.deps.Base, func(dbc dbctx.Context) error {
				ids, err := a.deps.Products.DeleteByOwner(dbc, accountID)
				out.DeletedProducts = ids
				return err
			}); err != nil {
				return err
			}
			return call(ctx, a.deps.Base, func(dbc dbctx.Context) error {
				ids, err := a.deps.Orders.DeleteByOwner(dbc, accountID)
				out.DeletedOrders = ids
				return err
			})
		})
		if pf, ok := domainagg.AsPartialFailure(err); ok {
			a.survivors(ctx, accountID, &out)
			pf.Result = out
		}
		return err
	})
	return out, err
}

// survivors fills in the owned records a failed cascade left behind. A listing
// failure here only loses detail; the checker still reports them as orphans.
func (a *marketplaceAggregate) survivors(ctx context.Context, accountID uuid.UUID, out *domainagg.DeleteAccountResult) {
	ctx = context.WithoutCancel(ctx)
	err := call(ctx, a.deps.Base, func(dbc dbctx.Context) error {
		ids, err := a.deps.Products.ListAllIDsByOwner(dbc, accountID)
		out.SurvivingProducts = ids
		return err
	})
	if err == nil {
		err = call(ctx, a.deps.Base, func(dbc dbctx.Context) error {
			ids, err := a.deps.Orders.ListAllIDsByOwner(dbc, accountID)
			out.SurvivingOrders = ids
			return err
		})
	}
	if err != nil {
		a.deps.Base.Log.Warn("could not list records surviving account delete",
			"account_id", accountID,
			"error", err,
		)
	}
}
