package orders

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/marketplace-backend/internal/domain"
	"github.com/yungbote/marketplace-backend/internal/platform/dbctx"
	"github.com/yungbote/marketplace-backend/internal/platform/logger"
)

// OrderRepo is the canonical order store. Orders are never updated in place.
type OrderRepo interface {
	Create(dbc dbctx.Context, o *types.Order) (*types.Order, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Order, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Order, error)
	Delete(dbc dbctx.Context, id uuid.UUID) (bool, error)
	DeleteByOwner(dbc dbctx.Context, ownerID uuid.UUID) ([]uuid.UUID, error)
	ListByOwner(dbc dbctx.Context, ownerID uuid.UUID) ([]*types.Order, error)
	ListAllIDsByOwner(dbc dbctx.Context, ownerID uuid.UUID) ([]uuid.UUID, error)
	ListAll(dbc dbctx.Context) ([]*types.Order, error)
}

type orderRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOrderRepo(db *gorm.DB, baseLog *logger.Logger) OrderRepo {
	return &orderRepo{db: db, log: baseLog.With("repo", "OrderRepo")}
}

func (r *orderRepo) Create(dbc dbctx.Context, o *types.Order) (*types.Order, error) {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if err := dbc.DB(r.db).Create(o).Error; err != nil {
		return nil, err
	}
	return o, nil
}

func (r *orderRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Order, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Order
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *orderRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Order, error) {
	var out []*types.Order
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).Where("id IN ?", ids).Order("placed_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *orderRepo) Delete(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	res := dbc.DB(r.db).Where("id = ?", id).Delete(&types.Order{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *orderRepo) DeleteByOwner(dbc dbctx.Context, ownerID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := dbc.DB(r.db).Model(&types.Order{}).Where("owner_id = ?", ownerID).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return ids, nil
	}
	if err := dbc.DB(r.db).Where("id IN ?", ids).Delete(&types.Order{}).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *orderRepo) ListByOwner(dbc dbctx.Context, ownerID uuid.UUID) ([]*types.Order, error) {
	var out []*types.Order
	if err := dbc.DB(r.db).
		Where("owner_id = ?", ownerID).
		Order("placed_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *orderRepo) ListAllIDsByOwner(dbc dbctx.Context, ownerID uuid.UUID) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	if err := dbc.DB(r.db).Model(&types.Order{}).Where("owner_id = ?", ownerID).Order("placed_at ASC").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *orderRepo) ListAll(dbc dbctx.Context) ([]*types.Order, error) {
	var out []*types.Order
	if err := dbc.DB(r.db).Order("placed_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
