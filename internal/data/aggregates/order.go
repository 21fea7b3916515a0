package aggregates

import (
	"context"

	"github.com/google/uuid"

	types "github.com/yungbote/marketplace-backend/internal/domain"
	domainagg "github.com/yungbote/marketplace-backend/internal/domain/aggregates"
	"github.com/yungbote/marketplace-backend/internal/platform/dbctx"
)

func (a *marketplaceAggregate) CreateOrder(ctx context.Context, in domainagg.CreateOrderInput) (*types.Order, error) {
	const op = "Marketplace.CreateOrder"
	var out *types.Order
	err := executeWrite(ctx, a.deps.Base, op, func(ctx context.Context) error {
		if err := a.configured(op); err != nil {
			return err
		}
		created, err := a.createOrder(ctx, op, in)
		out = created
		return err
	})
	return out, err
}

// createOrder validates the input, resolves the customer and runs the
// create_order/attach_order sequence.
func (a *marketplaceAggregate) createOrder(ctx context.Context, op string, in domainagg.CreateOrderInput) (*types.Order, error) {
	orderIn := in.Order
	if err := orderIn.Normalize(); err != nil {
		return nil, ValidationError(err.Error())
	}
	customer, err := a.loadAccount(ctx, a.byEmail(op, orderIn.CustomerEmail))
	if err != nil {
		return nil, err
	}
	runner, err := a.begin(ctx, op, customer.ID, in.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	defer runner.release(ctx)
	out, err := a.orderSteps(ctx, op, runner, customer.ID, orderIn)
	if err != nil {
		return out, err
	}
	runner.finish(ctx)
	return out, nil
}

// orderSteps creates the canonical order, unless a replayed runner already
// did, and then references it from the purchaser. Checkout appends its own
// step to the same runner afterwards.
func (a *marketplaceAggregate) orderSteps(ctx context.Context, op string, runner *stepRunner, customerID uuid.UUID, orderIn types.OrderInput) (*types.Order, error) {
	var (
		out *types.Order
		err error
	)
	if runner.done(stepCreateOrder) {
		out, err = a.getOrder(ctx, op, runner.resultID())
		if err != nil {
			return nil, err
		}
	} else {
		err = runner.step(ctx, stepCreateOrder, func(ctx context.Context) error {
			return call(ctx, a.deps.Base, func(dbc dbctx.Context) error {
				created, err := a.deps.Orders.Create(dbc, orderIn.NewOrder(customerID))
				if err != nil {
					return err
				}
				out = created
				runner.setResult(created.ID)
				return nil
			})
		})
		if err != nil {
			return nil, err
		}
	}

	err = runner.step(ctx, stepAttachOrder, func(ctx context.Context) error {
		_, err := a.mutateAccount(ctx, op, a.byID(op, customerID), func(acct *types.Account) error {
			if !acct.AttachOrder(out.ID) {
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
		return out, err
	}
	return out, nil
}

func (a *marketplaceAggregate) DeleteOrder(ctx context.Context, orderID uuid.UUID) (*types.Order, error) {
	const op = "Marketplace.DeleteOrder"
	var out *types.Order

	err := executeWrite(ctx, a.deps.Base, op, func(ctx context.Context) error {
		if err := a.configured(op); err != nil {
			return err
		}
		if orderID == uuid.Nil {
			return ValidationError("missing order_id")
		}
		order, err := a.getOrder(ctx, op, orderID)
		if err != nil {
			return err
		}
		out = order
		// Canonical truth is kept when the reference side cannot be cleaned up.
		if _, err := a.loadAccount(ctx, a.byID(op, order.OwnerID)); err != nil {
			return err
		}

		runner := newStepRunner(a.deps.Base, op)
		err = runner.step(ctx, stepDetachOrder, func(ctx context.Context) error {
			_, err := a.mutateAccount(ctx, op, a.byID(op, order.OwnerID), func(acct *types.Account) error {
				if !acct.DetachOrder(orderID) {
					return errNoChange
				}
				return nil
			})
			return err
		})
		if err != nil {
			return err
		}

		return runner.step(ctx, stepDeleteOrder, func(ctx context.Context) error {
			return call(ctx, a.deps.Base, func(dbc dbctx.Context) error {
				ok, err := a.deps.Orders.Delete(dbc, orderID)
				if err != nil {
					return err
				}
				if !ok {
					return domainagg.NotFound(op, domainagg.EntityOrder, orderID.String())
				}
				return nil
			})
		})
	})
	return out, err
}
