package jobs

import (
	"context"
	"time"

	types "github.com/yungbote/marketplace-backend/internal/domain"
	"github.com/yungbote/marketplace-backend/internal/platform/logger"
	"github.com/yungbote/marketplace-backend/internal/services"
)

const JobTypeConsistencySweep = "consistency_sweep"

// ConsistencySweep runs the consistency checker on a schedule.
type ConsistencySweep struct {
	log      *logger.Logger
	svc      services.ConsistencyService
	interval time.Duration
	repair   bool
}

func NewConsistencySweep(log *logger.Logger, svc services.ConsistencyService, interval time.Duration, repair bool) *ConsistencySweep {
	return &ConsistencySweep{
		log:      log.With("job", JobTypeConsistencySweep),
		svc:      svc,
		interval: interval,
		repair:   repair,
	}
}

func (j *ConsistencySweep) Type() string            { return JobTypeConsistencySweep }
func (j *ConsistencySweep) Interval() time.Duration { return j.interval }

func (j *ConsistencySweep) Run(ctx context.Context) error {
	report, run, err := j.svc.Run(ctx, types.CheckTriggerScheduled, j.repair)
	if err != nil {
		return err
	}
	fields := []interface{}{
		"violations", len(report.Violations),
		"repaired", len(report.Repaired),
		"accounts", report.AccountsScanned,
	}
	if run != nil {
		fields = append(fields, "run_id", run.ID)
	}
	if len(report.Violations) > 0 {
		j.log.Warn("Consistency sweep found violations", fields...)
		return nil
	}
	j.log.Info("Consistency sweep clean", fields...)
	return nil
}
