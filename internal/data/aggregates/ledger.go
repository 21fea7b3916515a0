package aggregates

import (
	"context"

	"github.com/yungbote/marketplace-backend/internal/data/repos"
	types "github.com/yungbote/marketplace-backend/internal/domain"
	"github.com/yungbote/marketplace-backend/internal/platform/dbctx"
)

// SyncLedger stores per-key progress of idempotent coordinator operations.
// Claim is the only way a key gets its first row, so at most one caller ever
// runs the first step for a key.
type SyncLedger interface {
	Get(ctx context.Context, key string) (*types.SyncRun, error)
	Claim(ctx context.Context, run *types.SyncRun) (bool, error)
	Put(ctx context.Context, run *types.SyncRun) error
	// Release drops a claim whose first step never committed.
	Release(ctx context.Context, run *types.SyncRun) error
}

type repoLedger struct {
	runs repos.SyncRunRepo
}

// NewRepoLedger backs the ledger with the sync_run table.
func NewRepoLedger(runs repos.SyncRunRepo) SyncLedger {
	return &repoLedger{runs: runs}
}

func (l *repoLedger) Get(ctx context.Context, key string) (*types.SyncRun, error) {
	return l.runs.GetByKey(dbctx.Context{Ctx: ctx}, key)
}

func (l *repoLedger) Claim(ctx context.Context, run *types.SyncRun) (bool, error) {
	return l.runs.Claim(dbctx.Context{Ctx: ctx}, run)
}

func (l *repoLedger) Release(ctx context.Context, run *types.SyncRun) error {
	return l.runs.Release(dbctx.Context{Ctx: ctx}, run.Key, run.ID)
}

func (l *repoLedger) Put(ctx context.Context, run *types.SyncRun) error {
	return l.runs.Upsert(dbctx.Context{Ctx: ctx}, run)
}
