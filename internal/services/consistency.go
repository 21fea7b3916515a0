package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/marketplace-backend/internal/data/repos"
	types "github.com/yungbote/marketplace-backend/internal/domain"
	domainagg "github.com/yungbote/marketplace-backend/internal/domain/aggregates"
	"github.com/yungbote/marketplace-backend/internal/observability"
	"github.com/yungbote/marketplace-backend/internal/platform/dbctx"
	"github.com/yungbote/marketplace-backend/internal/platform/logger"
)

// ConsistencyService runs the checker and records every run in check_run.
type ConsistencyService interface {
	Run(ctx context.Context, trigger string, repair bool) (domainagg.CheckReport, *types.CheckRun, error)
	Latest(ctx context.Context) (*types.CheckRun, error)
	Recent(ctx context.Context, limit int) ([]*types.CheckRun, error)
}

type consistencyService struct {
	log     *logger.Logger
	checker domainagg.ConsistencyChecker
	runs    repos.CheckRunRepo
	metrics *observability.Metrics

	// One check at a time; overlapping scans would report each other's repairs.
	mu sync.Mutex
}

func NewConsistencyService(log *logger.Logger, checker domainagg.ConsistencyChecker, runs repos.CheckRunRepo, metrics *observability.Metrics) ConsistencyService {
	return &consistencyService{
		log:     log.With("service", "ConsistencyService"),
		checker: checker,
		runs:    runs,
		metrics: metrics,
	}
}

func (s *consistencyService) Run(ctx context.Context, trigger string, repair bool) (domainagg.CheckReport, *types.CheckRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := time.Now().UTC()
	run := &types.CheckRun{
		ID:        uuid.New(),
		Trigger:   trigger,
		Status:    types.CheckRunRunning,
		Repair:    repair,
		StartedAt: started,
	}
	dbc := dbctx.Context{Ctx: ctx}
	if _, err := s.runs.Create(dbc, run); err != nil {
		// The check still runs; only its history row is missing.
		s.log.Warn("check run create failed", "error", err)
		run = nil
	}

	report, err := s.checker.Check(ctx, domainagg.CheckOptions{Repair: repair})
	finished := time.Now().UTC()
	status := types.CheckRunSucceeded
	if err != nil {
		status = types.CheckRunFailed
	}
	s.metrics.IncCheckRun(trigger, status)

	if run != nil {
		updates := map[string]interface{}{
			"status":      status,
			"violations":  len(report.Violations),
			"repaired":    len(report.Repaired),
			"finished_at": finished,
		}
		if err != nil {
			updates["error"] = err.Error()
		} else if raw, mErr := json.Marshal(report); mErr == nil {
			updates["report"] = datatypes.JSON(raw)
		}
		// Detached so a cancelled caller still closes the run.
		if uErr := s.runs.UpdateFields(dbctx.Context{Ctx: context.WithoutCancel(ctx)}, run.ID, updates); uErr != nil {
			s.log.Warn("check run update failed", "check_run_id", run.ID, "error", uErr)
		}
		run.Status = status
		run.Violations = len(report.Violations)
		run.Repaired = len(report.Repaired)
		run.FinishedAt = &finished
	}
	if err != nil {
		return report, run, fmt.Errorf("consistency check: %w", err)
	}
	return report, run, nil
}

func (s *consistencyService) Latest(ctx context.Context) (*types.CheckRun, error) {
	return s.runs.GetLatest(dbctx.Context{Ctx: ctx})
}

func (s *consistencyService) Recent(ctx context.Context, limit int) ([]*types.CheckRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.runs.ListRecent(dbctx.Context{Ctx: ctx}, limit)
}
