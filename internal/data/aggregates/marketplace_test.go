package aggregates_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/yungbote/marketplace-backend/internal/data/aggregates"
	aggtestutil "github.com/yungbote/marketplace-backend/internal/data/aggregates/testutil"
	"github.com/yungbote/marketplace-backend/internal/data/repos"
	"github.com/yungbote/marketplace-backend/internal/data/repos/testutil"
	types "github.com/yungbote/marketplace-backend/internal/domain"
	domainagg "github.com/yungbote/marketplace-backend/internal/domain/aggregates"
	"github.com/yungbote/marketplace-backend/internal/domain/jobs"
	"github.com/yungbote/marketplace-backend/internal/platform/dbctx"
)

var (
	errStoreDown      = errors.New("account store unavailable")
	errOrderStoreDown = errors.New("order store unavailable")
)

// flakyWriter lets the next skip account saves through, fails the following
// fail saves, then delegates.
type flakyWriter struct {
	next aggregates.AccountWriter
	skip atomic.Int32
	fail atomic.Int32
}

func (w *flakyWriter) SaveAccount(dbc dbctx.Context, a *types.Account) error {
	if w.skip.Load() > 0 {
		w.skip.Add(-1)
		return w.next.SaveAccount(dbc, a)
	}
	if w.fail.Load() > 0 {
		w.fail.Add(-1)
		return errStoreDown
	}
	return w.next.SaveAccount(dbc, a)
}

// brokenDeletes fails every canonical product delete.
type brokenDeletes struct {
	repos.ProductRepo
}

func (brokenDeletes) Delete(dbctx.Context, uuid.UUID) (bool, error) {
	return false, errors.New("product store unavailable")
}

func (brokenDeletes) DeleteByOwner(dbctx.Context, uuid.UUID) ([]uuid.UUID, error) {
	return nil, errors.New("product store unavailable")
}

// flakyOrders fails the next failCreates order creates, and every delete
// while deletesDown is set.
type flakyOrders struct {
	repos.OrderRepo
	failCreates atomic.Int32
	deletesDown atomic.Bool
}

func (o *flakyOrders) Create(dbc dbctx.Context, ord *types.Order) (*types.Order, error) {
	if o.failCreates.Load() > 0 {
		o.failCreates.Add(-1)
		return nil, errOrderStoreDown
	}
	return o.OrderRepo.Create(dbc, ord)
}

func (o *flakyOrders) Delete(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	if o.deletesDown.Load() {
		return false, errOrderStoreDown
	}
	return o.OrderRepo.Delete(dbc, id)
}

type harness struct {
	ctx     context.Context
	db      *gorm.DB
	repos   repos.Set
	hooks   *aggtestutil.HooksRecorder
	writer  *flakyWriter
	agg     domainagg.MarketplaceAggregate
	checker domainagg.ConsistencyChecker
}

type harnessOption func(*aggregates.MarketplaceAggregateDeps)

func withBrokenDeletes() harnessOption {
	return func(d *aggregates.MarketplaceAggregateDeps) { d.Products = brokenDeletes{d.Products} }
}

func withFlakyOrders(o *flakyOrders) harnessOption {
	return func(d *aggregates.MarketplaceAggregateDeps) {
		o.OrderRepo = d.Orders
		d.Orders = o
	}
}

func withMaxAttempts(n int) harnessOption {
	return func(d *aggregates.MarketplaceAggregateDeps) { d.Config.AccountSaveMaxAttempts = n }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	set := repos.NewSet(db, log)
	hooks := &aggtestutil.HooksRecorder{}
	writer := &flakyWriter{next: aggregates.NewCASGuard(db)}
	base := aggregates.BaseDeps{DB: db, Log: log, Hooks: hooks}

	deps := aggregates.MarketplaceAggregateDeps{
		Base:     base,
		Accounts: set.Account,
		Products: set.Product,
		Orders:   set.Order,
		Writer:   writer,
		Ledger:   aggregates.NewRepoLedger(set.SyncRun),
	}
	for _, opt := range opts {
		opt(&deps)
	}
	return &harness{
		ctx:    context.Background(),
		db:     db,
		repos:  set,
		hooks:  hooks,
		writer: writer,
		agg:    aggregates.NewMarketplaceAggregate(deps),
		checker: aggregates.NewConsistencyChecker(aggregates.ConsistencyCheckerDeps{
			Base:     base,
			Accounts: set.Account,
			Products: set.Product,
			Orders:   set.Order,
			Writer:   aggregates.NewCASGuard(db),
			Policy:   aggregates.AttachAndStrip{},
		}),
	}
}

func (h *harness) account(t *testing.T, id uuid.UUID) *types.Account {
	t.Helper()
	a, err := h.repos.Account.GetByID(dbctx.Context{Ctx: h.ctx}, id)
	if err != nil {
		t.Fatalf("GetByID(account): %v", err)
	}
	return a
}

func (h *harness) product(t *testing.T, id uuid.UUID) *types.Product {
	t.Helper()
	p, err := h.repos.Product.GetByID(dbctx.Context{Ctx: h.ctx}, id)
	if err != nil {
		t.Fatalf("GetByID(product): %v", err)
	}
	return p
}

// uniq keeps names and emails distinct when tests share a postgres database.
func uniq(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}

func widget(name string) types.ProductInput {
	return types.ProductInput{
		Name:  name,
		Genre: "tools",
		Price: decimal.RequireFromString("9.99"),
		Stock: 5,
	}
}

func gadgetOrder(email string) types.OrderInput {
	return types.OrderInput{
		CustomerEmail: email,
		Items: []types.OrderItem{{
			ProductID:   uuid.New(),
			ProductName: "Gadget",
			UnitPrice:   decimal.RequireFromString("4.00"),
			Quantity:    3,
		}},
	}
}

func violationsFor(report domainagg.CheckReport, id uuid.UUID) []domainagg.Violation {
	var out []domainagg.Violation
	for _, v := range report.Violations {
		if v.EntityID == id {
			out = append(out, v)
		}
	}
	return out
}

func TestAddListingThenRemoveListing(t *testing.T) {
	h := newHarness(t)
	owner := testutil.SeedAccount(t, h.ctx, h.db, uniq("owner")+"@example.com")

	p, err := h.agg.AddListing(h.ctx, domainagg.AddListingInput{AccountID: owner.ID, Product: widget(uniq("Widget"))})
	if err != nil {
		t.Fatalf("AddListing: %v", err)
	}
	if p.OwnerID != owner.ID {
		t.Fatalf("owner: want=%s got=%s", owner.ID, p.OwnerID)
	}
	acct := h.account(t, owner.ID)
	if !acct.HasListing(p.ID) || len(acct.Listings) != 1 {
		t.Fatalf("listings after add: %v", acct.Listings)
	}
	if acct.Version != owner.Version+1 {
		t.Fatalf("version: want=%d got=%d", owner.Version+1, acct.Version)
	}

	res, err := h.agg.RemoveListing(h.ctx, domainagg.RemoveListingInput{AccountID: owner.ID, ProductID: p.ID})
	if err != nil {
		t.Fatalf("RemoveListing: %v", err)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", res.Warnings)
	}
	if res.Product == nil || res.Product.ID != p.ID {
		t.Fatalf("removed product: %+v", res.Product)
	}
	if h.product(t, p.ID) != nil {
		t.Fatalf("product should be deleted")
	}
	if got := h.account(t, owner.ID).Listings; len(got) != 0 {
		t.Fatalf("listings after remove: %v", got)
	}
}

func TestAddListingAttachFailureLeavesOrphan(t *testing.T) {
	h := newHarness(t)
	owner := testutil.SeedAccount(t, h.ctx, h.db, uniq("owner")+"@example.com")
	h.writer.fail.Store(1)

	_, err := h.agg.AddListing(h.ctx, domainagg.AddListingInput{AccountID: owner.ID, Product: widget(uniq("Widget"))})
	pf, ok := domainagg.AsPartialFailure(err)
	if !ok {
		t.Fatalf("expected partial failure, got=%v", err)
	}
	if len(pf.Completed) != 1 || pf.Completed[0] != "create_product" || pf.Failed != "attach_listing" {
		t.Fatalf("partial failure steps: completed=%v failed=%s", pf.Completed, pf.Failed)
	}
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("cause should be the writer error, got=%v", pf.Cause)
	}
	created, _ := pf.Result.(*types.Product)
	if created == nil || h.product(t, created.ID) == nil {
		t.Fatalf("canonical product should exist: %+v", pf.Result)
	}
	if got := h.account(t, owner.ID).Listings; len(got) != 0 {
		t.Fatalf("listings: want empty got=%v", got)
	}
	if len(h.hooks.PartialFailures) != 1 || h.hooks.PartialFailures[0].FailedStep != "attach_listing" {
		t.Fatalf("partial failure hooks: %+v", h.hooks.PartialFailures)
	}

	report, err := h.checker.Check(h.ctx, domainagg.CheckOptions{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	vs := violationsFor(report, created.ID)
	if len(vs) != 1 || vs[0].Kind != domainagg.ViolationOrphan || vs[0].AccountID != owner.ID {
		t.Fatalf("violations: %+v", vs)
	}
	if report.RepairWasApplied || len(report.Repaired) != 0 {
		t.Fatalf("report-only check must not repair: %+v", report)
	}

	report, err = h.checker.Check(h.ctx, domainagg.CheckOptions{Repair: true})
	if err != nil {
		t.Fatalf("Check(repair): %v", err)
	}
	if !h.account(t, owner.ID).HasListing(created.ID) {
		t.Fatalf("repair should attach the orphan")
	}
	report, err = h.checker.Check(h.ctx, domainagg.CheckOptions{})
	if err != nil {
		t.Fatalf("Check(after repair): %v", err)
	}
	if vs := violationsFor(report, created.ID); len(vs) != 0 {
		t.Fatalf("violations after repair: %+v", vs)
	}
}

func TestAddListingReplayResumesAttach(t *testing.T) {
	h := newHarness(t)
	owner := testutil.SeedAccount(t, h.ctx, h.db, uniq("owner")+"@example.com")
	in := domainagg.AddListingInput{AccountID: owner.ID, Product: widget(uniq("Widget")), IdempotencyKey: "listing-1"}

	h.writer.fail.Store(1)
	if _, err := h.agg.AddListing(h.ctx, in); !domainagg.IsCode(err, domainagg.CodePartialFailure) {
		t.Fatalf("first attempt: want partial failure got=%v", err)
	}
	p, err := h.agg.AddListing(h.ctx, in)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	byName, err := h.repos.Product.GetByName(dbctx.Context{Ctx: h.ctx}, in.Product.Name)
	if err != nil || byName == nil || byName.ID != p.ID {
		t.Fatalf("replay must reuse the created product: got=%+v err=%v", byName, err)
	}
	acct := h.account(t, owner.ID)
	if len(acct.Listings) != 1 || acct.Listings[0] != p.ID {
		t.Fatalf("listings: %v", acct.Listings)
	}
}

func TestAddListingDuplicateName(t *testing.T) {
	h := newHarness(t)
	owner := testutil.SeedAccount(t, h.ctx, h.db, uniq("owner")+"@example.com")
	name := uniq("Widget")

	if _, err := h.agg.AddListing(h.ctx, domainagg.AddListingInput{AccountID: owner.ID, Product: widget(name)}); err != nil {
		t.Fatalf("AddListing: %v", err)
	}
	_, err := h.agg.AddListing(h.ctx, domainagg.AddListingInput{AccountID: owner.ID, Product: widget(name)})
	if !domainagg.IsCode(err, domainagg.CodeDuplicateName) {
		t.Fatalf("want duplicate_name got=%v", err)
	}
	if got := h.account(t, owner.ID).Listings; len(got) != 1 {
		t.Fatalf("listings: want=1 got=%d", len(got))
	}
}

func TestAddListingUnknownAccount(t *testing.T) {
	h := newHarness(t)
	name := uniq("Widget")

	_, err := h.agg.AddListing(h.ctx, domainagg.AddListingInput{AccountID: uuid.New(), Product: widget(name)})
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("want not_found got=%v", err)
	}
	p, err := h.repos.Product.GetByName(dbctx.Context{Ctx: h.ctx}, name)
	if err != nil || p != nil {
		t.Fatalf("no product should be created: %+v err=%v", p, err)
	}
}

func TestRemoveListingRequiresReference(t *testing.T) {
	h := newHarness(t)
	owner := testutil.SeedAccount(t, h.ctx, h.db, uniq("owner")+"@example.com")
	other := testutil.SeedAccount(t, h.ctx, h.db, uniq("other")+"@example.com")
	p, err := h.agg.AddListing(h.ctx, domainagg.AddListingInput{AccountID: owner.ID, Product: widget(uniq("Widget"))})
	if err != nil {
		t.Fatalf("AddListing: %v", err)
	}

	_, err = h.agg.RemoveListing(h.ctx, domainagg.RemoveListingInput{AccountID: other.ID, ProductID: p.ID})
	if !domainagg.IsCode(err, domainagg.CodeReferenceMismatch) {
		t.Fatalf("want reference_mismatch got=%v", err)
	}
	if h.product(t, p.ID) == nil {
		t.Fatalf("product must survive a rejected removal")
	}
}

func TestRemoveListingDeleteFailureWarns(t *testing.T) {
	h := newHarness(t, withBrokenDeletes())
	owner := testutil.SeedAccount(t, h.ctx, h.db, uniq("owner")+"@example.com")
	p, err := h.agg.AddListing(h.ctx, domainagg.AddListingInput{AccountID: owner.ID, Product: widget(uniq("Widget"))})
	if err != nil {
		t.Fatalf("AddListing: %v", err)
	}

	res, err := h.agg.RemoveListing(h.ctx, domainagg.RemoveListingInput{AccountID: owner.ID, ProductID: p.ID})
	if err != nil {
		t.Fatalf("RemoveListing should succeed with warnings, got=%v", err)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], p.ID.String()) {
		t.Fatalf("warnings: %v", res.Warnings)
	}
	if h.account(t, owner.ID).HasListing(p.ID) {
		t.Fatalf("listing should be detached")
	}
	if h.product(t, p.ID) == nil {
		t.Fatalf("product should remain as an orphan")
	}
	if len(h.hooks.PartialFailures) != 1 || h.hooks.PartialFailures[0].FailedStep != "delete_product" {
		t.Fatalf("partial failure hooks: %+v", h.hooks.PartialFailures)
	}
}

func TestUpdateListing(t *testing.T) {
	h := newHarness(t)
	owner := testutil.SeedAccount(t, h.ctx, h.db, uniq("owner")+"@example.com")
	other := testutil.SeedAccount(t, h.ctx, h.db, uniq("other")+"@example.com")
	p, err := h.agg.AddListing(h.ctx, domainagg.AddListingInput{AccountID: owner.ID, Product: widget(uniq("Widget"))})
	if err != nil {
		t.Fatalf("AddListing: %v", err)
	}

	price := decimal.RequireFromString("12.50")
	updated, err := h.agg.UpdateListing(h.ctx, domainagg.UpdateListingInput{
		AccountID: owner.ID,
		ProductID: p.ID,
		Patch:     types.ProductPatch{Price: &price},
	})
	if err != nil {
		t.Fatalf("UpdateListing: %v", err)
	}
	if !updated.Price.Equal(price) || updated.Name != p.Name {
		t.Fatalf("updated product: %+v", updated)
	}

	_, err = h.agg.UpdateListing(h.ctx, domainagg.UpdateListingInput{
		AccountID: other.ID,
		ProductID: p.ID,
		Patch:     types.ProductPatch{Price: &price},
	})
	if !domainagg.IsCode(err, domainagg.CodeReferenceMismatch) {
		t.Fatalf("want reference_mismatch got=%v", err)
	}
}

func seedListing(t *testing.T, h *harness, stock int) (*types.Account, *types.Product) {
	t.Helper()
	seller := testutil.SeedAccount(t, h.ctx, h.db, uniq("seller")+"@example.com")
	in := widget(uniq("Widget"))
	in.Stock = stock
	p, err := h.agg.AddListing(h.ctx, domainagg.AddListingInput{AccountID: seller.ID, Product: in})
	if err != nil {
		t.Fatalf("AddListing: %v", err)
	}
	return seller, p
}

func TestCartDecrementToZeroRemovesLine(t *testing.T) {
	h := newHarness(t)
	_, p := seedListing(t, h, 5)
	buyer := testutil.SeedAccount(t, h.ctx, h.db, uniq("buyer")+"@example.com")

	item, err := h.agg.AddCartItem(h.ctx, domainagg.AddCartItemInput{AccountEmail: buyer.Email, ProductName: p.Name, Quantity: 1})
	if err != nil {
		t.Fatalf("AddCartItem: %v", err)
	}
	inc, err := h.agg.IncrementCartItem(h.ctx, domainagg.CartItemRef{AccountEmail: buyer.Email, ItemID: item.ID})
	if err != nil || inc.Item.Quantity != 2 || inc.Removed {
		t.Fatalf("IncrementCartItem: %+v err=%v", inc, err)
	}
	if !inc.Item.LineTotal.Equal(decimal.RequireFromString("19.98")) {
		t.Fatalf("line total: want=19.98 got=%s", inc.Item.LineTotal)
	}
	for i := 0; i < 2; i++ {
		if _, err := h.agg.DecrementCartItem(h.ctx, domainagg.CartItemRef{AccountEmail: buyer.Email, ItemID: item.ID}); err != nil {
			t.Fatalf("DecrementCartItem: %v", err)
		}
	}
	if cart := h.account(t, buyer.ID).Cart; len(cart) != 0 {
		t.Fatalf("cart: want empty got=%+v", cart)
	}
	_, err = h.agg.DecrementCartItem(h.ctx, domainagg.CartItemRef{AccountEmail: buyer.Email, ItemID: item.ID})
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("want not_found got=%v", err)
	}
}

func TestAddCartItemIgnoresStockButNeedsProduct(t *testing.T) {
	h := newHarness(t)
	_, p := seedListing(t, h, 2)
	buyer := testutil.SeedAccount(t, h.ctx, h.db, uniq("buyer")+"@example.com")

	item, err := h.agg.AddCartItem(h.ctx, domainagg.AddCartItemInput{AccountEmail: buyer.Email, ProductName: p.Name, Quantity: 3})
	if err != nil || item.Quantity != 3 {
		t.Fatalf("carts do not reserve stock: item=%+v err=%v", item, err)
	}
	if got := h.product(t, p.ID).Stock; got != 2 {
		t.Fatalf("stock must not change: want=2 got=%d", got)
	}
	_, err = h.agg.AddCartItem(h.ctx, domainagg.AddCartItemInput{AccountEmail: buyer.Email, ProductName: uniq("missing"), Quantity: 1})
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("want not_found got=%v", err)
	}
}

func TestConcurrentAddCartItemKeepsEveryLine(t *testing.T) {
	h := newHarness(t, withMaxAttempts(50))
	_, p := seedListing(t, h, 100)
	buyer := testutil.SeedAccount(t, h.ctx, h.db, uniq("buyer")+"@example.com")

	const workers = 6
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.agg.AddCartItem(h.ctx, domainagg.AddCartItemInput{AccountEmail: buyer.Email, ProductName: p.Name, Quantity: 1})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("AddCartItem: %v", err)
		}
	}
	acct := h.account(t, buyer.ID)
	if len(acct.Cart) != workers {
		t.Fatalf("cart lines: want=%d got=%d", workers, len(acct.Cart))
	}
	if acct.Version != buyer.Version+workers {
		t.Fatalf("version: want=%d got=%d", buyer.Version+workers, acct.Version)
	}
}

func TestCheckoutCreatesOrderAndClearsCart(t *testing.T) {
	h := newHarness(t)
	_, p := seedListing(t, h, 5)
	buyer := testutil.SeedAccount(t, h.ctx, h.db, uniq("buyer")+"@example.com")
	if _, err := h.agg.AddCartItem(h.ctx, domainagg.AddCartItemInput{AccountEmail: buyer.Email, ProductName: p.Name, Quantity: 2}); err != nil {
		t.Fatalf("AddCartItem: %v", err)
	}

	order, err := h.agg.Checkout(h.ctx, domainagg.CheckoutInput{
		AccountEmail: buyer.Email,
		Billing:      types.BillingInfo{FullName: "Ada Buyer"},
	})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if order.OwnerID != buyer.ID || !order.TotalPrice.Equal(decimal.RequireFromString("19.98")) {
		t.Fatalf("order: %+v", order)
	}
	acct := h.account(t, buyer.ID)
	if len(acct.Cart) != 0 {
		t.Fatalf("cart should be cleared: %+v", acct.Cart)
	}
	if !acct.HasOrder(order.ID) {
		t.Fatalf("order ref missing: %v", acct.OrderRefs)
	}

	_, err = h.agg.Checkout(h.ctx, domainagg.CheckoutInput{AccountEmail: buyer.Email})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("empty cart: want validation got=%v", err)
	}
}

func TestCreateOrderAndDeleteOrder(t *testing.T) {
	h := newHarness(t)
	buyer := testutil.SeedAccount(t, h.ctx, h.db, uniq("buyer")+"@example.com")

	order, err := h.agg.CreateOrder(h.ctx, domainagg.CreateOrderInput{Order: types.OrderInput{
		CustomerEmail: strings.ToUpper(buyer.Email),
		Items: []types.OrderItem{{
			ProductID:   uuid.New(),
			ProductName: "Gadget",
			UnitPrice:   decimal.RequireFromString("4.00"),
			Quantity:    3,
		}},
	}})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if !order.TotalPrice.Equal(decimal.RequireFromString("12")) {
		t.Fatalf("total: want=12 got=%s", order.TotalPrice)
	}
	if !h.account(t, buyer.ID).HasOrder(order.ID) {
		t.Fatalf("order ref missing")
	}

	if _, err := h.agg.DeleteOrder(h.ctx, order.ID); err != nil {
		t.Fatalf("DeleteOrder: %v", err)
	}
	if h.account(t, buyer.ID).HasOrder(order.ID) {
		t.Fatalf("order ref should be detached")
	}
	got, err := h.repos.Order.GetByID(dbctx.Context{Ctx: h.ctx}, order.ID)
	if err != nil || got != nil {
		t.Fatalf("order should be deleted: %+v err=%v", got, err)
	}
}

func TestDeleteOrderWithMissingAccountKeepsOrder(t *testing.T) {
	h := newHarness(t)
	order := testutil.SeedOrder(t, h.ctx, h.db, uuid.New(), uniq("ghost")+"@example.com")

	_, err := h.agg.DeleteOrder(h.ctx, order.ID)
	aggErr, ok := domainagg.AsError(err)
	if !ok || aggErr.Code != domainagg.CodeNotFound || aggErr.Entity != domainagg.EntityAccount {
		t.Fatalf("want account not_found got=%v", err)
	}
	got, err := h.repos.Order.GetByID(dbctx.Context{Ctx: h.ctx}, order.ID)
	if err != nil || got == nil {
		t.Fatalf("order must survive: %+v err=%v", got, err)
	}
}

func TestDeleteAccountCascades(t *testing.T) {
	h := newHarness(t)
	seller, p := seedListing(t, h, 1)
	order := testutil.SeedOrder(t, h.ctx, h.db, seller.ID, seller.Email)

	res, err := h.agg.DeleteAccount(h.ctx, seller.ID)
	if err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}
	if len(res.DeletedProducts) != 1 || res.DeletedProducts[0] != p.ID {
		t.Fatalf("deleted products: %v", res.DeletedProducts)
	}
	if len(res.DeletedOrders) != 1 || res.DeletedOrders[0] != order.ID {
		t.Fatalf("deleted orders: %v", res.DeletedOrders)
	}
	if h.account(t, seller.ID) != nil || h.product(t, p.ID) != nil {
		t.Fatalf("account and product should be gone")
	}
}

func TestCheckerStripsDanglingAndDuplicateReferences(t *testing.T) {
	h := newHarness(t)
	owner := testutil.SeedAccount(t, h.ctx, h.db, uniq("owner")+"@example.com")
	p, err := h.agg.AddListing(h.ctx, domainagg.AddListingInput{AccountID: owner.ID, Product: widget(uniq("Widget"))})
	if err != nil {
		t.Fatalf("AddListing: %v", err)
	}
	ghost := uuid.New()
	acct := h.account(t, owner.ID)
	acct.Listings = append(acct.Listings, p.ID, ghost)
	if err := aggregates.NewCASGuard(h.db).SaveAccount(dbctx.Context{Ctx: h.ctx}, acct); err != nil {
		t.Fatalf("SaveAccount: %v", err)
	}

	report, err := h.checker.Check(h.ctx, domainagg.CheckOptions{Repair: true})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if vs := violationsFor(report, ghost); len(vs) != 1 || vs[0].Kind != domainagg.ViolationDangling {
		t.Fatalf("dangling: %+v", vs)
	}
	if vs := violationsFor(report, p.ID); len(vs) != 1 || vs[0].Kind != domainagg.ViolationDuplicate {
		t.Fatalf("duplicate: %+v", vs)
	}
	if h.hooks.Violations["dangling"] < 1 || h.hooks.Violations["duplicate_reference"] < 1 {
		t.Fatalf("violation hooks: %+v", h.hooks.Violations)
	}
	got := h.account(t, owner.ID).Listings
	if len(got) != 1 || got[0] != p.ID {
		t.Fatalf("listings after repair: %v", got)
	}
}

// sameKeyResults collects the ids returned by concurrent calls sharing one key.
// Callers that lose the claim must see a conflict; winners and replays must
// all report the same record.
func sameKeyResults(t *testing.T, workers int, run func() (uuid.UUID, error)) uuid.UUID {
	t.Helper()
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[uuid.UUID]bool{}
	)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := run()
			if err != nil {
				errs <- err
				return
			}
			mu.Lock()
			ids[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if !domainagg.IsCode(err, domainagg.CodeConflict) {
			t.Fatalf("same-key caller: want conflict or success got=%v", err)
		}
	}
	if len(ids) != 1 {
		t.Fatalf("same-key callers must agree on one record: got=%v", ids)
	}
	for id := range ids {
		return id
	}
	return uuid.Nil
}

func TestConcurrentCreateOrderSameKeyCreatesOneOrder(t *testing.T) {
	h := newHarness(t, withMaxAttempts(50))
	buyer := testutil.SeedAccount(t, h.ctx, h.db, uniq("buyer")+"@example.com")

	id := sameKeyResults(t, 8, func() (uuid.UUID, error) {
		o, err := h.agg.CreateOrder(h.ctx, domainagg.CreateOrderInput{Order: gadgetOrder(buyer.Email), IdempotencyKey: "order-1"})
		if err != nil {
			return uuid.Nil, err
		}
		return o.ID, nil
	})

	rows, err := h.repos.Order.ListByOwner(dbctx.Context{Ctx: h.ctx}, buyer.ID)
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != id {
		t.Fatalf("orders: want exactly %s got=%d rows", id, len(rows))
	}
	if refs := h.account(t, buyer.ID).OrderRefs; len(refs) != 1 || refs[0] != id {
		t.Fatalf("order refs: %v", refs)
	}
}

func TestConcurrentAddListingSameKeyCreatesOneProduct(t *testing.T) {
	h := newHarness(t, withMaxAttempts(50))
	owner := testutil.SeedAccount(t, h.ctx, h.db, uniq("owner")+"@example.com")
	name := uniq("Widget")

	id := sameKeyResults(t, 8, func() (uuid.UUID, error) {
		p, err := h.agg.AddListing(h.ctx, domainagg.AddListingInput{AccountID: owner.ID, Product: widget(name), IdempotencyKey: "listing-1"})
		if err != nil {
			return uuid.Nil, err
		}
		return p.ID, nil
	})

	ids, err := h.repos.Product.ListAllIDsByOwner(dbctx.Context{Ctx: h.ctx}, owner.ID)
	if err != nil {
		t.Fatalf("ListAllIDsByOwner: %v", err)
	}
	if len(ids) != 1 || ids[0] != id {
		t.Fatalf("products: want [%s] got=%v", id, ids)
	}
	if got := h.account(t, owner.ID).Listings; len(got) != 1 || got[0] != id {
		t.Fatalf("listings: %v", got)
	}
}

func TestKeyedCreateOrderReleasesKeyWhenNothingCommitted(t *testing.T) {
	orders := &flakyOrders{}
	h := newHarness(t, withFlakyOrders(orders))
	buyer := testutil.SeedAccount(t, h.ctx, h.db, uniq("buyer")+"@example.com")
	in := domainagg.CreateOrderInput{Order: gadgetOrder(buyer.Email), IdempotencyKey: "order-retry"}

	orders.failCreates.Store(1)
	_, err := h.agg.CreateOrder(h.ctx, in)
	if err == nil || domainagg.IsCode(err, domainagg.CodePartialFailure) {
		t.Fatalf("first attempt: want plain failure got=%v", err)
	}
	key := jobs.ScopedKey("Marketplace.CreateOrder", buyer.ID, in.IdempotencyKey)
	rec, err := h.repos.SyncRun.GetByKey(dbctx.Context{Ctx: h.ctx}, key)
	if err != nil || rec != nil {
		t.Fatalf("claim should be released: rec=%+v err=%v", rec, err)
	}

	order, err := h.agg.CreateOrder(h.ctx, in)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !h.account(t, buyer.ID).HasOrder(order.ID) {
		t.Fatalf("order ref missing")
	}
}

func TestCreateOrderAttachFailureLeavesOrphan(t *testing.T) {
	h := newHarness(t)
	buyer := testutil.SeedAccount(t, h.ctx, h.db, uniq("buyer")+"@example.com")
	h.writer.fail.Store(1)

	_, err := h.agg.CreateOrder(h.ctx, domainagg.CreateOrderInput{Order: gadgetOrder(buyer.Email)})
	pf, ok := domainagg.AsPartialFailure(err)
	if !ok {
		t.Fatalf("expected partial failure, got=%v", err)
	}
	if len(pf.Completed) != 1 || pf.Completed[0] != "create_order" || pf.Failed != "attach_order" {
		t.Fatalf("partial failure steps: completed=%v failed=%s", pf.Completed, pf.Failed)
	}
	created, _ := pf.Result.(*types.Order)
	if created == nil {
		t.Fatalf("result should carry the order: %+v", pf.Result)
	}
	if h.account(t, buyer.ID).HasOrder(created.ID) {
		t.Fatalf("order ref should be missing")
	}

	report, err := h.checker.Check(h.ctx, domainagg.CheckOptions{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	vs := violationsFor(report, created.ID)
	if len(vs) != 1 || vs[0].Kind != domainagg.ViolationOrphan || vs[0].AccountID != buyer.ID {
		t.Fatalf("violations: %+v", vs)
	}
}

func TestDeleteOrderDeleteFailureLeavesOrphan(t *testing.T) {
	orders := &flakyOrders{}
	h := newHarness(t, withFlakyOrders(orders))
	buyer := testutil.SeedAccount(t, h.ctx, h.db, uniq("buyer")+"@example.com")
	order, err := h.agg.CreateOrder(h.ctx, domainagg.CreateOrderInput{Order: gadgetOrder(buyer.Email)})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	orders.deletesDown.Store(true)
	_, err = h.agg.DeleteOrder(h.ctx, order.ID)
	pf, ok := domainagg.AsPartialFailure(err)
	if !ok {
		t.Fatalf("expected partial failure, got=%v", err)
	}
	if len(pf.Completed) != 1 || pf.Completed[0] != "detach_order" || pf.Failed != "delete_order" {
		t.Fatalf("partial failure steps: completed=%v failed=%s", pf.Completed, pf.Failed)
	}
	if !errors.Is(err, errOrderStoreDown) {
		t.Fatalf("cause should be the order store error, got=%v", pf.Cause)
	}
	if h.account(t, buyer.ID).HasOrder(order.ID) {
		t.Fatalf("order ref should be detached")
	}
	got, err := h.repos.Order.GetByID(dbctx.Context{Ctx: h.ctx}, order.ID)
	if err != nil || got == nil {
		t.Fatalf("order should survive: %+v err=%v", got, err)
	}

	report, err := h.checker.Check(h.ctx, domainagg.CheckOptions{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if vs := violationsFor(report, order.ID); len(vs) != 1 || vs[0].Kind != domainagg.ViolationOrphan {
		t.Fatalf("violations: %+v", vs)
	}
}

func TestDeleteAccountCascadeFailureReportsSurvivors(t *testing.T) {
	h := newHarness(t, withBrokenDeletes())
	seller, p := seedListing(t, h, 1)
	order := testutil.SeedOrder(t, h.ctx, h.db, seller.ID, seller.Email)

	_, err := h.agg.DeleteAccount(h.ctx, seller.ID)
	pf, ok := domainagg.AsPartialFailure(err)
	if !ok {
		t.Fatalf("expected partial failure, got=%v", err)
	}
	if len(pf.Completed) != 1 || pf.Completed[0] != "delete_account" || pf.Failed != "delete_owned_records" {
		t.Fatalf("partial failure steps: completed=%v failed=%s", pf.Completed, pf.Failed)
	}
	res, ok := pf.Result.(domainagg.DeleteAccountResult)
	if !ok {
		t.Fatalf("result: want DeleteAccountResult got=%T", pf.Result)
	}
	if len(res.SurvivingProducts) != 1 || res.SurvivingProducts[0] != p.ID {
		t.Fatalf("surviving products: %v", res.SurvivingProducts)
	}
	if len(res.SurvivingOrders) != 1 || res.SurvivingOrders[0] != order.ID {
		t.Fatalf("surviving orders: %v", res.SurvivingOrders)
	}
	if h.account(t, seller.ID) != nil {
		t.Fatalf("account should be gone")
	}
}

func TestCheckoutClearCartFailureKeepsOrder(t *testing.T) {
	h := newHarness(t)
	_, p := seedListing(t, h, 5)
	buyer := testutil.SeedAccount(t, h.ctx, h.db, uniq("buyer")+"@example.com")
	if _, err := h.agg.AddCartItem(h.ctx, domainagg.AddCartItemInput{AccountEmail: buyer.Email, ProductName: p.Name, Quantity: 2}); err != nil {
		t.Fatalf("AddCartItem: %v", err)
	}

	h.writer.skip.Store(1)
	h.writer.fail.Store(1)
	_, err := h.agg.Checkout(h.ctx, domainagg.CheckoutInput{AccountEmail: buyer.Email})
	pf, ok := domainagg.AsPartialFailure(err)
	if !ok {
		t.Fatalf("expected partial failure, got=%v", err)
	}
	if len(pf.Completed) != 2 || pf.Completed[1] != "attach_order" || pf.Failed != "clear_cart" {
		t.Fatalf("partial failure steps: completed=%v failed=%s", pf.Completed, pf.Failed)
	}
	order, _ := pf.Result.(*types.Order)
	if order == nil {
		t.Fatalf("result should carry the order: %+v", pf.Result)
	}
	acct := h.account(t, buyer.ID)
	if !acct.HasOrder(order.ID) || len(acct.Cart) != 1 {
		t.Fatalf("account after failed clear: refs=%v cart=%+v", acct.OrderRefs, acct.Cart)
	}
}

func TestCheckoutReplayClearsOnlyPurchasedLines(t *testing.T) {
	h := newHarness(t)
	_, p := seedListing(t, h, 5)
	buyer := testutil.SeedAccount(t, h.ctx, h.db, uniq("buyer")+"@example.com")
	add := domainagg.AddCartItemInput{AccountEmail: buyer.Email, ProductName: p.Name, Quantity: 1}
	if _, err := h.agg.AddCartItem(h.ctx, add); err != nil {
		t.Fatalf("AddCartItem: %v", err)
	}
	in := domainagg.CheckoutInput{AccountEmail: buyer.Email, IdempotencyKey: "checkout-1"}

	h.writer.skip.Store(1)
	h.writer.fail.Store(1)
	first, err := h.agg.Checkout(h.ctx, in)
	if !domainagg.IsCode(err, domainagg.CodePartialFailure) {
		t.Fatalf("first attempt: want partial failure got=%v", err)
	}

	// Same product, new line, added before the retry.
	later, err := h.agg.AddCartItem(h.ctx, add)
	if err != nil {
		t.Fatalf("AddCartItem(later): %v", err)
	}

	replayed, err := h.agg.Checkout(h.ctx, in)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if replayed.ID != first.ID {
		t.Fatalf("replay must return the same order: want=%s got=%s", first.ID, replayed.ID)
	}
	cart := h.account(t, buyer.ID).Cart
	if len(cart) != 1 || cart[0].ID != later.ID {
		t.Fatalf("cart after replay: want only %s got=%+v", later.ID, cart)
	}
	rows, err := h.repos.Order.ListByOwner(dbctx.Context{Ctx: h.ctx}, buyer.ID)
	if err != nil || len(rows) != 1 {
		t.Fatalf("orders: want 1 got=%d err=%v", len(rows), err)
	}
}

func TestRepairDefersFreshOrphanDuringRemoveListing(t *testing.T) {
	h := newHarness(t)
	owner, p := seedListing(t, h, 1)

	// RemoveListing has detached the reference but not yet deleted the product.
	acct := h.account(t, owner.ID)
	acct.DetachListing(p.ID)
	if err := aggregates.NewCASGuard(h.db).SaveAccount(dbctx.Context{Ctx: h.ctx}, acct); err != nil {
		t.Fatalf("SaveAccount: %v", err)
	}

	report, err := h.checker.Check(h.ctx, domainagg.CheckOptions{Repair: true})
	if err != nil {
		t.Fatalf("Check(repair): %v", err)
	}
	if len(report.RepairDeferred) != 1 || report.RepairDeferred[0].EntityID != p.ID {
		t.Fatalf("deferred: %+v", report.RepairDeferred)
	}
	if h.account(t, owner.ID).HasListing(p.ID) {
		t.Fatalf("a first sighting must not be re-attached")
	}

	if _, err := h.repos.Product.Delete(dbctx.Context{Ctx: h.ctx}, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	report, err = h.checker.Check(h.ctx, domainagg.CheckOptions{Repair: true})
	if err != nil {
		t.Fatalf("Check(after delete): %v", err)
	}
	if vs := violationsFor(report, p.ID); len(vs) != 0 {
		t.Fatalf("violations after delete: %+v", vs)
	}
	if got := h.account(t, owner.ID).Listings; len(got) != 0 {
		t.Fatalf("listings: want empty got=%v", got)
	}
}
