package catalog

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/marketplace-backend/internal/domain"
	"github.com/yungbote/marketplace-backend/internal/platform/dbctx"
	"github.com/yungbote/marketplace-backend/internal/platform/logger"
)

// ProductRepo is the canonical product store. Lookups return (nil, nil) when
// the row does not exist.
type ProductRepo interface {
	Create(dbc dbctx.Context, p *types.Product) (*types.Product, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Product, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Product, error)
	GetByName(dbc dbctx.Context, name string) (*types.Product, error)
	Update(dbc dbctx.Context, id uuid.UUID, patch types.ProductPatch) (*types.Product, error)
	Delete(dbc dbctx.Context, id uuid.UUID) (bool, error)
	DeleteByOwner(dbc dbctx.Context, ownerID uuid.UUID) ([]uuid.UUID, error)
	ListByOwner(dbc dbctx.Context, ownerID uuid.UUID) ([]*types.Product, error)
	ListAllIDsByOwner(dbc dbctx.Context, ownerID uuid.UUID) ([]uuid.UUID, error)
	List(dbc dbctx.Context, genre string, limit, offset int) ([]*types.Product, error)
	ListAll(dbc dbctx.Context) ([]*types.Product, error)
}

type productRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProductRepo(db *gorm.DB, baseLog *logger.Logger) ProductRepo {
	return &productRepo{db: db, log: baseLog.With("repo", "ProductRepo")}
}

func (r *productRepo) Create(dbc dbctx.Context, p *types.Product) (*types.Product, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if err := dbc.DB(r.db).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

func (r *productRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Product, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Product
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *productRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Product, error) {
	var out []*types.Product
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *productRepo) GetByName(dbc dbctx.Context, name string) (*types.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	var row types.Product
	if err := dbc.DB(r.db).Where("name = ?", name).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

// Update applies the whitelisted patch fields onto the stored row and writes
// only those columns. It returns the fresh row, or (nil, nil) when no product
// has id.
func (r *productRepo) Update(dbc dbctx.Context, id uuid.UUID, patch types.ProductPatch) (*types.Product, error) {
	row, err := r.GetByID(dbc, id)
	if err != nil || row == nil {
		return nil, err
	}
	fields := patch.Fields()
	if len(fields) == 0 {
		return row, nil
	}
	patch.Apply(row)
	row.UpdatedAt = time.Now().UTC()
	res := dbc.DB(r.db).Model(row).Select(append(fields, "updated_at")).Updates(row)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return r.GetByID(dbc, id)
}

func (r *productRepo) Delete(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	res := dbc.DB(r.db).Where("id = ?", id).Delete(&types.Product{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *productRepo) DeleteByOwner(dbc dbctx.Context, ownerID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := dbc.DB(r.db).Model(&types.Product{}).Where("owner_id = ?", ownerID).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return ids, nil
	}
	if err := dbc.DB(r.db).Where("id IN ?", ids).Delete(&types.Product{}).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *productRepo) ListByOwner(dbc dbctx.Context, ownerID uuid.UUID) ([]*types.Product, error) {
	var out []*types.Product
	if err := dbc.DB(r.db).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *productRepo) ListAllIDsByOwner(dbc dbctx.Context, ownerID uuid.UUID) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	if err := dbc.DB(r.db).Model(&types.Product{}).Where("owner_id = ?", ownerID).Order("created_at ASC").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *productRepo) List(dbc dbctx.Context, genre string, limit, offset int) ([]*types.Product, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	q := dbc.DB(r.db).Model(&types.Product{})
	if g := strings.TrimSpace(genre); g != "" {
		q = q.Where("genre = ?", g)
	}
	var out []*types.Product
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *productRepo) ListAll(dbc dbctx.Context) ([]*types.Product, error) {
	var out []*types.Product
	if err := dbc.DB(r.db).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
