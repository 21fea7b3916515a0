package aggregates

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/marketplace-backend/internal/data/repos"
	types "github.com/yungbote/marketplace-backend/internal/domain"
	domainagg "github.com/yungbote/marketplace-backend/internal/domain/aggregates"
	"github.com/yungbote/marketplace-backend/internal/domain/jobs"
	"github.com/yungbote/marketplace-backend/internal/platform/dbctx"
)

const (
	defaultAccountSaveMaxAttempts = 5
	defaultAccountSaveBackoff     = 10 * time.Millisecond
)

// errNoChange short-circuits an account mutation that would not alter the document.
var errNoChange = errors.New("account unchanged")

// AccountWriter performs the version-guarded full-document account save.
type AccountWriter interface {
	SaveAccount(dbc dbctx.Context, a *types.Account) error
}

type Config struct {
	// AccountSaveMaxAttempts bounds read-modify-write retries on version conflicts.
	AccountSaveMaxAttempts int           `yaml:"account_save_max_attempts"`
	AccountSaveBackoff     time.Duration `yaml:"account_save_backoff"`
}

type MarketplaceAggregateDeps struct {
	Base BaseDeps

	Accounts repos.AccountRepo
	Products repos.ProductRepo
	Orders   repos.OrderRepo

	// Writer defaults to Base.CASGuard.
	Writer AccountWriter
	// Ledger enables idempotent replays; nil disables them.
	Ledger SyncLedger
	Config Config
}

type marketplaceAggregate struct {
	deps MarketplaceAggregateDeps
}

func NewMarketplaceAggregate(deps MarketplaceAggregateDeps) domainagg.MarketplaceAggregate {
	return newMarketplaceAggregate(deps)
}

func newMarketplaceAggregate(deps MarketplaceAggregateDeps) *marketplaceAggregate {
	deps.Base = deps.Base.withDefaults()
	if deps.Writer == nil {
		deps.Writer = deps.Base.CASGuard
	}
	if deps.Config.AccountSaveMaxAttempts <= 0 {
		deps.Config.AccountSaveMaxAttempts = defaultAccountSaveMaxAttempts
	}
	if deps.Config.AccountSaveBackoff <= 0 {
		deps.Config.AccountSaveBackoff = defaultAccountSaveBackoff
	}
	deps.Base.Log = deps.Base.Log.With("aggregate", "MarketplaceAggregate")
	return &marketplaceAggregate{deps: deps}
}

func (a *marketplaceAggregate) Contract() domainagg.Contract {
	return domainagg.MarketplaceAggregateContract
}

func (a *marketplaceAggregate) configured(op string) error {
	if a.deps.Accounts == nil || a.deps.Products == nil || a.deps.Orders == nil {
		return domainagg.NewError(domainagg.CodeInternal, op, "marketplace aggregate repos not configured", nil)
	}
	return nil
}

type accountLoader func(dbc dbctx.Context) (*types.Account, error)

func (a *marketplaceAggregate) byID(op string, id uuid.UUID) accountLoader {
	return func(dbc dbctx.Context) (*types.Account, error) {
		acct, err := a.deps.Accounts.GetByID(dbc, id)
		if err != nil {
			return nil, err
		}
		if acct == nil {
			return nil, domainagg.NotFound(op, domainagg.EntityAccount, id.String())
		}
		return acct, nil
	}
}

func (a *marketplaceAggregate) byEmail(op, email string) accountLoader {
	return func(dbc dbctx.Context) (*types.Account, error) {
		acct, err := a.deps.Accounts.GetByEmail(dbc, email)
		if err != nil {
			return nil, err
		}
		if acct == nil {
			return nil, domainagg.NotFound(op, domainagg.EntityAccount, strings.ToLower(strings.TrimSpace(email)))
		}
		return acct, nil
	}
}

func (a *marketplaceAggregate) loadAccount(ctx context.Context, load accountLoader) (*types.Account, error) {
	var out *types.Account
	err := call(ctx, a.deps.Base, func(dbc dbctx.Context) error {
		acct, err := load(dbc)
		out = acct
		return err
	})
	return out, err
}

// mutateAccount re-reads the account and re-applies mutate until the
// version-guarded save wins or the attempt budget runs out. mutate must be
// safe to run more than once; returning errNoChange skips the save.
func (a *marketplaceAggregate) mutateAccount(ctx context.Context, op string, load accountLoader, mutate func(acct *types.Account) error) (*types.Account, error) {
	var lastErr error
	for attempt := 1; attempt <= a.deps.Config.AccountSaveMaxAttempts; attempt++ {
		acct, err := a.loadAccount(ctx, load)
		if err != nil {
			return nil, err
		}
		if err := mutate(acct); err != nil {
			if errors.Is(err, errNoChange) {
				return acct, nil
			}
			return nil, err
		}
		err = call(ctx, a.deps.Base, func(dbc dbctx.Context) error {
			return a.deps.Writer.SaveAccount(dbc, acct)
		})
		if err == nil {
			return acct, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}
		lastErr = err
		a.deps.Base.Hooks.IncRetry(op)
		if err := a.backoff(ctx, attempt); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (a *marketplaceAggregate) backoff(ctx context.Context, attempt int) error {
	base := a.deps.Config.AccountSaveBackoff * time.Duration(attempt)
	d := base/2 + time.Duration(rand.Int64N(int64(base)+1))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// begin builds the step runner and, when key is set, claims the key or
// resumes the run recorded under it. Callers must defer runner.release.
func (a *marketplaceAggregate) begin(ctx context.Context, op string, accountID uuid.UUID, key string) (*stepRunner, error) {
	r := newStepRunner(a.deps.Base, op)
	key = strings.TrimSpace(key)
	if key == "" || a.deps.Ledger == nil {
		return r, nil
	}
	scoped := jobs.ScopedKey(op, accountID, key)
	rec, err := a.ledgerGet(ctx, scoped)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		claim := &types.SyncRun{
			ID:        uuid.New(),
			Key:       scoped,
			Op:        op,
			AccountID: accountID,
			Status:    types.SyncRunRunning,
		}
		var won bool
		err := call(ctx, a.deps.Base, func(dbc dbctx.Context) error {
			var err error
			won, err = a.deps.Ledger.Claim(dbc.Ctx, claim)
			return err
		})
		if err != nil {
			return nil, err
		}
		if won {
			r.resume(a.deps.Ledger, claim)
			r.claimed = true
			return r, nil
		}
		// Another request claimed the key between our read and our insert.
		if rec, err = a.ledgerGet(ctx, scoped); err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, keyInFlight(op)
		}
	}
	if rec.Status == types.SyncRunRunning {
		return nil, keyInFlight(op)
	}
	a.deps.Base.Log.Info("resuming keyed operation",
		"op", op,
		"account_id", accountID,
		"status", rec.Status,
		"completed", strings.Join(rec.Completed, ","),
	)
	r.resume(a.deps.Ledger, rec)
	return r, nil
}

func (a *marketplaceAggregate) ledgerGet(ctx context.Context, key string) (*types.SyncRun, error) {
	var rec *types.SyncRun
	err := call(ctx, a.deps.Base, func(dbc dbctx.Context) error {
		var err error
		rec, err = a.deps.Ledger.Get(dbc.Ctx, key)
		return err
	})
	return rec, err
}

func keyInFlight(op string) error {
	return domainagg.NewError(domainagg.CodeConflict, op, "a request with this idempotency key is still in progress", nil)
}

func (a *marketplaceAggregate) getProduct(ctx context.Context, op string, id uuid.UUID) (*types.Product, error) {
	var out *types.Product
	err := call(ctx, a.deps.Base, func(dbc dbctx.Context) error {
		p, err := a.deps.Products.GetByID(dbc, id)
		if err != nil {
			return err
		}
		if p == nil {
			return domainagg.NotFound(op, domainagg.EntityProduct, id.String())
		}
		out = p
		return nil
	})
	return out, err
}

func (a *marketplaceAggregate) getOrder(ctx context.Context, op string, id uuid.UUID) (*types.Order, error) {
	var out *types.Order
	err := call(ctx, a.deps.Base, func(dbc dbctx.Context) error {
		o, err := a.deps.Orders.GetByID(dbc, id)
		if err != nil {
			return err
		}
		if o == nil {
			return domainagg.NotFound(op, domainagg.EntityOrder, id.String())
		}
		out = o
		return nil
	})
	return out, err
}

func duplicateName(op, name string, cause error) error {
	return &domainagg.Error{
		Code:    domainagg.CodeDuplicateName,
		Op:      op,
		Message: "a product named " + name + " already exists",
		Entity:  domainagg.EntityProduct,
		ID:      name,
		Cause:   cause,
	}
}
