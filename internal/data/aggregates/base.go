package aggregates

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	domainagg "github.com/yungbote/marketplace-backend/internal/domain/aggregates"
	"github.com/yungbote/marketplace-backend/internal/platform/logger"
)

const (
	defaultStoreTimeout = 5 * time.Second
	tracerName          = "github.com/yungbote/marketplace-backend/internal/data/aggregates"
)

type BaseDeps struct {
	DB       *gorm.DB
	Log      *logger.Logger
	Hooks    Hooks
	CASGuard CASGuard
	Tracer   trace.Tracer
	// StoreTimeout bounds every individual store call.
	StoreTimeout time.Duration
}

func (d BaseDeps) withDefaults() BaseDeps {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Hooks == nil {
		d.Hooks = noopHooks{}
	}
	if d.CASGuard.db == nil {
		d.CASGuard = NewCASGuard(d.DB)
	}
	if d.Tracer == nil {
		d.Tracer = otel.Tracer(tracerName)
	}
	if d.StoreTimeout <= 0 {
		d.StoreTimeout = defaultStoreTimeout
	}
	return d
}

// executeWrite runs one coordinator operation, maps its error and reports the
// outcome to hooks and the active span.
func executeWrite(ctx context.Context, deps BaseDeps, op string, fn func(ctx context.Context) error) error {
	start := time.Now()
	deps = deps.withDefaults()
	op = strings.TrimSpace(op)
	if op == "" {
		op = "aggregate.write"
	}

	ctx, span := deps.Tracer.Start(ctx, op)
	defer span.End()

	err := fn(ctx)
	mapped := MapError(op, err)

	status := "success"
	if mapped != nil {
		status = aggregateErrorStatus(mapped)
		if domainagg.IsCode(mapped, domainagg.CodeConflict) {
			deps.Hooks.IncConflict(op)
		}
		if domainagg.IsCode(mapped, domainagg.CodeRetryable) {
			deps.Hooks.IncRetry(op)
		}
		if pf, ok := domainagg.AsPartialFailure(mapped); ok {
			deps.Hooks.IncPartialFailure(op, pf.Failed)
			deps.Log.Warn("partial failure",
				"op", op,
				"completed", strings.Join(pf.Completed, ","),
				"failed", pf.Failed,
				"error", pf.Cause,
			)
		}
		span.RecordError(mapped)
		span.SetStatus(codes.Error, status)
	}
	span.SetAttributes(attribute.String("aggregate.status", status))
	deps.Hooks.ObserveOperation(op, status, time.Since(start))
	return mapped
}

func aggregateErrorStatus(err error) string {
	if err == nil {
		return "success"
	}
	code := strings.TrimSpace(string(domainagg.CodeOf(err)))
	if code == "" {
		code = strings.TrimSpace(string(domainagg.CodeOf(MapError("aggregate.status", err))))
	}
	if code == "" {
		return "failure"
	}
	return code
}
