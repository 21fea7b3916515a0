package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/marketplace-backend/internal/domain"
	"github.com/yungbote/marketplace-backend/internal/platform/dbctx"
	"github.com/yungbote/marketplace-backend/internal/platform/logger"
)

type CheckRunRepo interface {
	Create(dbc dbctx.Context, run *types.CheckRun) (*types.CheckRun, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	GetLatest(dbc dbctx.Context) (*types.CheckRun, error)
	ListRecent(dbc dbctx.Context, limit int) ([]*types.CheckRun, error)
}

type checkRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCheckRunRepo(db *gorm.DB, baseLog *logger.Logger) CheckRunRepo {
	return &checkRunRepo{db: db, log: baseLog.With("repo", "CheckRunRepo")}
}

func (r *checkRunRepo) Create(dbc dbctx.Context, run *types.CheckRun) (*types.CheckRun, error) {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if err := dbc.DB(r.db).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (r *checkRunRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return dbc.DB(r.db).
		Model(&types.CheckRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *checkRunRepo) GetLatest(dbc dbctx.Context) (*types.CheckRun, error) {
	var row types.CheckRun
	if err := dbc.DB(r.db).Order("started_at DESC").Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *checkRunRepo) ListRecent(dbc dbctx.Context, limit int) ([]*types.CheckRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []*types.CheckRun
	if err := dbc.DB(r.db).Order("started_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
