package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/yungbote/marketplace-backend/internal/data/repos"
	types "github.com/yungbote/marketplace-backend/internal/domain"
	"github.com/yungbote/marketplace-backend/internal/platform/apierr"
	"github.com/yungbote/marketplace-backend/internal/platform/dbctx"
	"github.com/yungbote/marketplace-backend/internal/platform/logger"
)

// AccountView is an account with its references resolved against the
// canonical stores. References that no longer resolve are dropped here and
// left for the consistency checker.
type AccountView struct {
	Account   *types.Account   `json:"account"`
	Listings  []*types.Product `json:"listings"`
	Orders    []*types.Order   `json:"orders"`
	CartTotal string           `json:"cart_total"`
}

// CatalogService serves single-collection reads. Writes go through the
// marketplace aggregate.
type CatalogService interface {
	GetAccountView(ctx context.Context, accountID uuid.UUID) (*AccountView, error)
	ListProducts(ctx context.Context, genre string, limit, offset int) ([]*types.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*types.Product, error)
	ListOrders(ctx context.Context, accountID uuid.UUID) ([]*types.Order, error)
}

type catalogService struct {
	log      *logger.Logger
	accounts repos.AccountRepo
	products repos.ProductRepo
	orders   repos.OrderRepo
}

func NewCatalogService(log *logger.Logger, accounts repos.AccountRepo, products repos.ProductRepo, orders repos.OrderRepo) CatalogService {
	return &catalogService{
		log:      log.With("service", "CatalogService"),
		accounts: accounts,
		products: products,
		orders:   orders,
	}
}

func (s *catalogService) GetAccountView(ctx context.Context, accountID uuid.UUID) (*AccountView, error) {
	dbc := dbctx.Context{Ctx: ctx}
	acct, err := s.accounts.GetByID(dbc, accountID)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "load_account_failed", err)
	}
	if acct == nil {
		return nil, apierr.New(http.StatusNotFound, "account_not_found", fmt.Errorf("account %s not found", accountID))
	}
	listings, err := s.products.GetByIDs(dbc, acct.Listings)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "load_listings_failed", err)
	}
	orders, err := s.orders.GetByIDs(dbc, acct.OrderRefs)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "load_orders_failed", err)
	}
	if n := len(acct.Listings) + len(acct.OrderRefs) - len(listings) - len(orders); n > 0 {
		s.log.Warn("account has unresolved references", "account_id", acct.ID, "unresolved", n)
	}
	return &AccountView{
		Account:   acct,
		Listings:  orderedByRefs(acct.Listings, listings, func(p *types.Product) uuid.UUID { return p.ID }),
		Orders:    orderedByRefs(acct.OrderRefs, orders, func(o *types.Order) uuid.UUID { return o.ID }),
		CartTotal: acct.CartTotal().StringFixed(2),
	}, nil
}

// orderedByRefs returns rows in the order the account lists them.
func orderedByRefs[T any](refs []uuid.UUID, rows []T, id func(T) uuid.UUID) []T {
	byID := make(map[uuid.UUID]T, len(rows))
	for _, r := range rows {
		byID[id(r)] = r
	}
	out := make([]T, 0, len(rows))
	seen := make(map[uuid.UUID]bool, len(refs))
	for _, ref := range refs {
		r, ok := byID[ref]
		if !ok || seen[ref] {
			continue
		}
		seen[ref] = true
		out = append(out, r)
	}
	return out
}

func (s *catalogService) ListProducts(ctx context.Context, genre string, limit, offset int) ([]*types.Product, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	out, err := s.products.List(dbctx.Context{Ctx: ctx}, genre, limit, offset)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "list_products_failed", err)
	}
	return out, nil
}

func (s *catalogService) GetProduct(ctx context.Context, id uuid.UUID) (*types.Product, error) {
	p, err := s.products.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "load_product_failed", err)
	}
	if p == nil {
		return nil, apierr.New(http.StatusNotFound, "product_not_found", fmt.Errorf("product %s not found", id))
	}
	return p, nil
}

func (s *catalogService) ListOrders(ctx context.Context, accountID uuid.UUID) ([]*types.Order, error) {
	out, err := s.orders.ListByOwner(dbctx.Context{Ctx: ctx}, accountID)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "list_orders_failed", err)
	}
	return out, nil
}
