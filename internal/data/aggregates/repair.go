package aggregates

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	types "github.com/yungbote/marketplace-backend/internal/domain"
	domainagg "github.com/yungbote/marketplace-backend/internal/domain/aggregates"
)

// ReferenceFixer is the set of account edits a RepairPolicy may apply. Every
// edit goes through the version-guarded save and is idempotent.
type ReferenceFixer interface {
	AttachReference(ctx context.Context, accountID uuid.UUID, entity string, id uuid.UUID) error
	StripReference(ctx context.Context, accountID uuid.UUID, entity string, id uuid.UUID) error
	DedupeReference(ctx context.Context, accountID uuid.UUID, entity string, id uuid.UUID) error
}

// RepairPolicy decides what, if anything, to do about one violation.
type RepairPolicy interface {
	Name() string
	Repair(ctx context.Context, fix ReferenceFixer, v domainagg.Violation) (bool, error)
}

// ReportOnly never changes data.
type ReportOnly struct{}

func (ReportOnly) Name() string { return "report_only" }

func (ReportOnly) Repair(context.Context, ReferenceFixer, domainagg.Violation) (bool, error) {
	return false, nil
}

// AttachAndStrip re-attaches orphans to their declared owner, strips dangling
// references and collapses duplicate references to one. Orphans whose owner
// account is gone are left for manual review.
type AttachAndStrip struct{}

func (AttachAndStrip) Name() string { return "attach_and_strip" }

func (AttachAndStrip) Repair(ctx context.Context, fix ReferenceFixer, v domainagg.Violation) (bool, error) {
	switch v.Kind {
	case domainagg.ViolationOrphan:
		if err := fix.AttachReference(ctx, v.AccountID, v.Entity, v.EntityID); err != nil {
			if domainagg.IsCode(err, domainagg.CodeNotFound) {
				return false, nil
			}
			return false, err
		}
		return true, nil
	case domainagg.ViolationDangling:
		return true, fix.StripReference(ctx, v.AccountID, v.Entity, v.EntityID)
	case domainagg.ViolationDuplicate:
		return true, fix.DedupeReference(ctx, v.AccountID, v.Entity, v.EntityID)
	default:
		return false, fmt.Errorf("unknown violation kind %q", v.Kind)
	}
}

// RepairPolicyByName resolves a configured policy name.
func RepairPolicyByName(name string) (RepairPolicy, error) {
	switch name {
	case "", "report_only":
		return ReportOnly{}, nil
	case "attach_and_strip":
		return AttachAndStrip{}, nil
	default:
		return nil, fmt.Errorf("unknown repair policy %q", name)
	}
}

const repairOp = "Consistency.Repair"

func (c *consistencyChecker) AttachReference(ctx context.Context, accountID uuid.UUID, entity string, id uuid.UUID) error {
	// The record must still exist and still belong to accountID.
	switch entity {
	case domainagg.EntityProduct:
		p, err := c.mp.getProduct(ctx, repairOp, id)
		if err != nil {
			return err
		}
		if p.OwnerID != accountID {
			return domainagg.ReferenceMismatch(repairOp, entity, id.String())
		}
	case domainagg.EntityOrder:
		o, err := c.mp.getOrder(ctx, repairOp, id)
		if err != nil {
			return err
		}
		if o.OwnerID != accountID {
			return domainagg.ReferenceMismatch(repairOp, entity, id.String())
		}
	default:
		return fmt.Errorf("cannot attach %s references", entity)
	}
	return c.edit(ctx, accountID, func(acct *types.Account) bool {
		if entity == domainagg.EntityProduct {
			return acct.AttachListing(id)
		}
		return acct.AttachOrder(id)
	})
}

func (c *consistencyChecker) StripReference(ctx context.Context, accountID uuid.UUID, entity string, id uuid.UUID) error {
	return c.edit(ctx, accountID, func(acct *types.Account) bool {
		if entity == domainagg.EntityProduct {
			return acct.DetachListing(id)
		}
		return acct.DetachOrder(id)
	})
}

func (c *consistencyChecker) DedupeReference(ctx context.Context, accountID uuid.UUID, entity string, id uuid.UUID) error {
	return c.edit(ctx, accountID, func(acct *types.Account) bool {
		refs := acct.Listings
		if entity == domainagg.EntityOrder {
			refs = acct.OrderRefs
		}
		n := 0
		for _, ref := range refs {
			if ref == id {
				n++
			}
		}
		if n < 2 {
			return false
		}
		// Keep the first position so the account's ordering is preserved.
		seen := false
		out := make([]uuid.UUID, 0, len(refs)-n+1)
		for _, ref := range refs {
			if ref == id {
				if seen {
					continue
				}
				seen = true
			}
			out = append(out, ref)
		}
		if entity == domainagg.EntityOrder {
			acct.OrderRefs = out
		} else {
			acct.Listings = out
		}
		return true
	})
}

func (c *consistencyChecker) edit(ctx context.Context, accountID uuid.UUID, apply func(acct *types.Account) bool) error {
	_, err := c.mp.mutateAccount(ctx, repairOp, c.mp.byID(repairOp, accountID), func(acct *types.Account) error {
		if !apply(acct) {
			return errNoChange
		}
		return nil
	})
	return err
}
