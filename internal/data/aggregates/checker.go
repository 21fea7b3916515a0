package aggregates

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/marketplace-backend/internal/data/repos"
	types "github.com/yungbote/marketplace-backend/internal/domain"
	domainagg "github.com/yungbote/marketplace-backend/internal/domain/aggregates"
	"github.com/yungbote/marketplace-backend/internal/platform/dbctx"
)

type ConsistencyCheckerDeps struct {
	Base BaseDeps

	Accounts repos.AccountRepo
	Products repos.ProductRepo
	Orders   repos.OrderRepo

	Writer AccountWriter
	// Policy applies when CheckOptions.Repair is set; defaults to ReportOnly.
	Policy RepairPolicy
	// OrphanGrace is the minimum time between an orphan's first sighting and
	// its repair. First sightings are never repaired: a RemoveListing or
	// DeleteOrder between its two steps looks exactly like an orphan.
	OrphanGrace time.Duration
	Config      Config
}

type consistencyChecker struct {
	deps ConsistencyCheckerDeps
	mp   *marketplaceAggregate

	mu      sync.Mutex
	orphans map[string]time.Time // first sighting, keyed by entity:id
	now     func() time.Time
}

func NewConsistencyChecker(deps ConsistencyCheckerDeps) domainagg.ConsistencyChecker {
	deps.Base = deps.Base.withDefaults()
	if deps.Policy == nil {
		deps.Policy = ReportOnly{}
	}
	mp := newMarketplaceAggregate(MarketplaceAggregateDeps{
		Base:     deps.Base,
		Accounts: deps.Accounts,
		Products: deps.Products,
		Orders:   deps.Orders,
		Writer:   deps.Writer,
		Config:   deps.Config,
	})
	deps.Base.Log = deps.Base.Log.With("aggregate", "ConsistencyChecker")
	return &consistencyChecker{deps: deps, mp: mp, orphans: map[string]time.Time{}, now: time.Now}
}

type snapshot struct {
	accounts []*types.Account
	products []*types.Product
	orders   []*types.Order
}

func (c *consistencyChecker) Check(ctx context.Context, opts domainagg.CheckOptions) (domainagg.CheckReport, error) {
	const op = "Consistency.Check"
	report := domainagg.CheckReport{StartedAt: c.now().UTC()}

	err := executeWrite(ctx, c.deps.Base, op, func(ctx context.Context) error {
		if c.deps.Accounts == nil || c.deps.Products == nil || c.deps.Orders == nil {
			return domainagg.NewError(domainagg.CodeInternal, op, "consistency checker repos not configured", nil)
		}
		snap, err := c.load(ctx)
		if err != nil {
			return err
		}
		report.AccountsScanned = len(snap.accounts)
		report.ProductsScanned = len(snap.products)
		report.OrdersScanned = len(snap.orders)
		report.Violations = detectViolations(snap.accounts, snap.products, snap.orders)
		settled := c.observeOrphans(report.Violations, report.StartedAt)

		for _, kind := range []domainagg.ViolationKind{
			domainagg.ViolationOrphan,
			domainagg.ViolationDangling,
			domainagg.ViolationDuplicate,
		} {
			c.deps.Base.Hooks.ObserveViolations(string(kind), report.Count(kind))
		}

		if opts.Repair {
			report.RepairWasApplied = true
			c.repair(ctx, &report, settled)
		}
		return nil
	})
	report.FinishedAt = c.now().UTC()
	if err == nil {
		c.deps.Base.Log.Info("consistency check finished",
			"violations", len(report.Violations),
			"repaired", len(report.Repaired),
			"repair", opts.Repair,
		)
	}
	return report, err
}

// load reads the three collections concurrently. Each scan is its own store call.
func (c *consistencyChecker) load(ctx context.Context) (snapshot, error) {
	var snap snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return call(gctx, c.deps.Base, func(dbc dbctx.Context) error {
			rows, err := c.deps.Accounts.ListAll(dbc)
			snap.accounts = rows
			return err
		})
	})
	g.Go(func() error {
		return call(gctx, c.deps.Base, func(dbc dbctx.Context) error {
			rows, err := c.deps.Products.ListAll(dbc)
			snap.products = rows
			return err
		})
	})
	g.Go(func() error {
		return call(gctx, c.deps.Base, func(dbc dbctx.Context) error {
			rows, err := c.deps.Orders.ListAll(dbc)
			snap.orders = rows
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return snapshot{}, err
	}
	return snap, nil
}

// observeOrphans records first sightings and returns the orphans old enough
// to repair. Orphans that disappeared are forgotten.
func (c *consistencyChecker) observeOrphans(vs []domainagg.Violation, now time.Time) map[string]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := make(map[string]time.Time, len(c.orphans))
	settled := map[string]bool{}
	for _, v := range vs {
		if v.Kind != domainagg.ViolationOrphan {
			continue
		}
		k := orphanKey(v)
		first, seen := c.orphans[k]
		if !seen {
			first = now
		} else if now.Sub(first) >= c.deps.OrphanGrace {
			settled[k] = true
		}
		next[k] = first
	}
	c.orphans = next
	return settled
}

func orphanKey(v domainagg.Violation) string {
	return v.Entity + ":" + v.EntityID.String()
}

func (c *consistencyChecker) repair(ctx context.Context, report *domainagg.CheckReport, settled map[string]bool) {
	for _, v := range report.Violations {
		if v.Kind == domainagg.ViolationOrphan && !settled[orphanKey(v)] {
			report.RepairDeferred = append(report.RepairDeferred, v)
			continue
		}
		fixed, err := c.deps.Policy.Repair(ctx, c, v)
		if err != nil {
			report.RepairFailures = append(report.RepairFailures,
				fmt.Sprintf("%s %s %s: %v", v.Kind, v.Entity, v.EntityID, err))
			c.deps.Base.Log.Warn("repair failed",
				"kind", string(v.Kind),
				"entity", v.Entity,
				"entity_id", v.EntityID,
				"account_id", v.AccountID,
				"error", err,
			)
			continue
		}
		if fixed {
			report.Repaired = append(report.Repaired, v)
		}
	}
}

// detectViolations compares every account's reference sequences with the
// canonical records grouped by owner.
func detectViolations(accounts []*types.Account, products []*types.Product, orders []*types.Order) []domainagg.Violation {
	accountsByID := make(map[uuid.UUID]*types.Account, len(accounts))
	for _, a := range accounts {
		accountsByID[a.ID] = a
	}
	productOwner := make(map[uuid.UUID]uuid.UUID, len(products))
	for _, p := range products {
		productOwner[p.ID] = p.OwnerID
	}
	orderOwner := make(map[uuid.UUID]uuid.UUID, len(orders))
	for _, o := range orders {
		orderOwner[o.ID] = o.OwnerID
	}

	var out []domainagg.Violation
	for _, a := range accounts {
		out = append(out, referenceViolations(a.ID, a.Listings, domainagg.EntityProduct, productOwner)...)
		out = append(out, referenceViolations(a.ID, a.OrderRefs, domainagg.EntityOrder, orderOwner)...)
	}
	for _, p := range products {
		owner := accountsByID[p.OwnerID]
		if owner == nil || !owner.HasListing(p.ID) {
			out = append(out, orphan(domainagg.EntityProduct, p.ID, p.OwnerID, owner != nil))
		}
	}
	for _, o := range orders {
		owner := accountsByID[o.OwnerID]
		if owner == nil || !owner.HasOrder(o.ID) {
			out = append(out, orphan(domainagg.EntityOrder, o.ID, o.OwnerID, owner != nil))
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		if out[i].Entity != out[j].Entity {
			return out[i].Entity < out[j].Entity
		}
		return out[i].EntityID.String() < out[j].EntityID.String()
	})
	return out
}

func referenceViolations(accountID uuid.UUID, refs []uuid.UUID, entity string, owners map[uuid.UUID]uuid.UUID) []domainagg.Violation {
	var out []domainagg.Violation
	seen := make(map[uuid.UUID]int, len(refs))
	for _, id := range refs {
		seen[id]++
		if seen[id] == 2 {
			out = append(out, domainagg.Violation{
				Kind:        domainagg.ViolationDuplicate,
				Entity:      entity,
				EntityID:    id,
				AccountID:   accountID,
				Description: fmt.Sprintf("%s %s referenced more than once", entity, id),
			})
		}
		if seen[id] > 1 {
			continue
		}
		owner, ok := owners[id]
		switch {
		case !ok:
			out = append(out, domainagg.Violation{
				Kind:        domainagg.ViolationDangling,
				Entity:      entity,
				EntityID:    id,
				AccountID:   accountID,
				Description: fmt.Sprintf("%s %s does not exist", entity, id),
			})
		case owner != accountID:
			out = append(out, domainagg.Violation{
				Kind:        domainagg.ViolationDangling,
				Entity:      entity,
				EntityID:    id,
				AccountID:   accountID,
				Description: fmt.Sprintf("%s %s is owned by account %s", entity, id, owner),
			})
		}
	}
	return out
}

func orphan(entity string, id, ownerID uuid.UUID, ownerExists bool) domainagg.Violation {
	desc := fmt.Sprintf("%s %s is not referenced by its owner", entity, id)
	if !ownerExists {
		desc = fmt.Sprintf("%s %s names missing owner account %s", entity, id, ownerID)
	}
	return domainagg.Violation{
		Kind:        domainagg.ViolationOrphan,
		Entity:      entity,
		EntityID:    id,
		AccountID:   ownerID,
		Description: desc,
	}
}
