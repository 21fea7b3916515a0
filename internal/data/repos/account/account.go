package account

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/marketplace-backend/internal/domain"
	"github.com/yungbote/marketplace-backend/internal/platform/dbctx"
	"github.com/yungbote/marketplace-backend/internal/platform/logger"
)

// AccountRepo reads and creates account documents. Embedded list changes go
// through the coordinator's version-guarded save, never through this repo.
type AccountRepo interface {
	Create(dbc dbctx.Context, a *types.Account) (*types.Account, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Account, error)
	GetByEmail(dbc dbctx.Context, email string) (*types.Account, error)
	EmailExists(dbc dbctx.Context, email string) (bool, error)
	Delete(dbc dbctx.Context, id uuid.UUID) (bool, error)
	ListAll(dbc dbctx.Context) ([]*types.Account, error)
}

type accountRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAccountRepo(db *gorm.DB, baseLog *logger.Logger) AccountRepo {
	return &accountRepo{db: db, log: baseLog.With("repo", "AccountRepo")}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *accountRepo) Create(dbc dbctx.Context, a *types.Account) (*types.Account, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.Email = normalizeEmail(a.Email)
	if a.Listings == nil {
		a.Listings = datatypes.JSONSlice[uuid.UUID]{}
	}
	if a.Cart == nil {
		a.Cart = datatypes.JSONSlice[types.CartItem]{}
	}
	if a.OrderRefs == nil {
		a.OrderRefs = datatypes.JSONSlice[uuid.UUID]{}
	}
	if err := dbc.DB(r.db).Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

func (r *accountRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Account, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Account
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *accountRepo) GetByEmail(dbc dbctx.Context, email string) (*types.Account, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, nil
	}
	var row types.Account
	if err := dbc.DB(r.db).Where("email = ?", email).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *accountRepo) EmailExists(dbc dbctx.Context, email string) (bool, error) {
	var count int64
	if err := dbc.DB(r.db).
		Model(&types.Account{}).
		Where("email = ?", normalizeEmail(email)).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *accountRepo) Delete(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	res := dbc.DB(r.db).Where("id = ?", id).Delete(&types.Account{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *accountRepo) ListAll(dbc dbctx.Context) ([]*types.Account, error) {
	var out []*types.Account
	if err := dbc.DB(r.db).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
