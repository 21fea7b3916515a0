package jobs

import (
	"context"
	"time"

	"github.com/yungbote/marketplace-backend/internal/data/repos"
	types "github.com/yungbote/marketplace-backend/internal/domain"
	"github.com/yungbote/marketplace-backend/internal/platform/dbctx"
	"github.com/yungbote/marketplace-backend/internal/platform/logger"
)

const (
	JobTypeSyncRunPrune = "sync_run_prune"

	staleReportLimit = 100
)

// SyncRunPrune deletes succeeded ledger rows and abandoned running claims past
// retention, and reports runs stuck in partial, which need a client replay or
// a checker repair.
type SyncRunPrune struct {
	log       *logger.Logger
	runs      repos.SyncRunRepo
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
}

func NewSyncRunPrune(log *logger.Logger, runs repos.SyncRunRepo, interval, retention time.Duration) *SyncRunPrune {
	return &SyncRunPrune{
		log:       log.With("job", JobTypeSyncRunPrune),
		runs:      runs,
		interval:  interval,
		retention: retention,
		now:       time.Now,
	}
}

func (j *SyncRunPrune) Type() string            { return JobTypeSyncRunPrune }
func (j *SyncRunPrune) Interval() time.Duration { return j.interval }

func (j *SyncRunPrune) Run(ctx context.Context) error {
	dbc := dbctx.Context{Ctx: ctx}
	cutoff := j.now().UTC().Add(-j.retention)

	deleted, err := j.runs.DeleteBefore(dbc, cutoff)
	if err != nil {
		return err
	}
	stale, err := j.runs.ListByStatusBefore(dbc, []string{types.SyncRunPartial}, cutoff, staleReportLimit)
	if err != nil {
		return err
	}
	for _, run := range stale {
		j.log.Warn("Sync run never completed",
			"run_id", run.ID,
			"op", run.Op,
			"account_id", run.AccountID,
			"status", run.Status,
			"completed", []string(run.Completed),
		)
	}
	if deleted > 0 || len(stale) > 0 {
		j.log.Info("Sync run prune finished", "deleted", deleted, "stale", len(stale))
	}
	return nil
}
