package jobs

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/marketplace-backend/internal/domain"
	"github.com/yungbote/marketplace-backend/internal/platform/dbctx"
	"github.com/yungbote/marketplace-backend/internal/platform/logger"
)

type SyncRunRepo interface {
	GetByKey(dbc dbctx.Context, key string) (*types.SyncRun, error)
	// Claim inserts run unless a row with its key exists and reports whether it did.
	Claim(dbc dbctx.Context, run *types.SyncRun) (bool, error)
	// Release deletes the claim row id while it is still running.
	Release(dbc dbctx.Context, key string, id uuid.UUID) error
	// Upsert inserts run or overwrites the progress columns of the row with the same key.
	Upsert(dbc dbctx.Context, run *types.SyncRun) error
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	ListByStatusBefore(dbc dbctx.Context, statuses []string, before time.Time, limit int) ([]*types.SyncRun, error)
	DeleteBefore(dbc dbctx.Context, before time.Time) (int64, error)
}

type syncRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSyncRunRepo(db *gorm.DB, baseLog *logger.Logger) SyncRunRepo {
	return &syncRunRepo{db: db, log: baseLog.With("repo", "SyncRunRepo")}
}

func (r *syncRunRepo) GetByKey(dbc dbctx.Context, key string) (*types.SyncRun, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	var row types.SyncRun
	if err := dbc.DB(r.db).Where("run_key = ?", key).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *syncRunRepo) Claim(dbc dbctx.Context, run *types.SyncRun) (bool, error) {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	res := dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "run_key"}},
			DoNothing: true,
		}).
		Create(run)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *syncRunRepo) Release(dbc dbctx.Context, key string, id uuid.UUID) error {
	return dbc.DB(r.db).
		Where("run_key = ? AND id = ? AND status = ?", key, id, types.SyncRunRunning).
		Delete(&types.SyncRun{}).Error
}

func (r *syncRunRepo) Upsert(dbc dbctx.Context, run *types.SyncRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "run_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "completed", "result_id", "updated_at"}),
		}).
		Create(run).Error
}

func (r *syncRunRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.SyncRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *syncRunRepo) ListByStatusBefore(dbc dbctx.Context, statuses []string, before time.Time, limit int) ([]*types.SyncRun, error) {
	var out []*types.SyncRun
	if len(statuses) == 0 {
		return out, nil
	}
	q := dbc.DB(r.db).Where("status IN ? AND updated_at < ?", statuses, before).Order("updated_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteBefore drops succeeded runs and abandoned claims (running rows never
// got past their first step) last touched before the cutoff.
func (r *syncRunRepo) DeleteBefore(dbc dbctx.Context, before time.Time) (int64, error) {
	res := dbc.DB(r.db).
		Where("status IN ? AND updated_at < ?", []string{types.SyncRunSucceeded, types.SyncRunRunning}, before).
		Delete(&types.SyncRun{})
	return res.RowsAffected, res.Error
}
