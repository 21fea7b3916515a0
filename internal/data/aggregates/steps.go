package aggregates

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	types "github.com/yungbote/marketplace-backend/internal/domain"
	domainagg "github.com/yungbote/marketplace-backend/internal/domain/aggregates"
	"github.com/yungbote/marketplace-backend/internal/platform/dbctx"
)

// Step names recorded in PartialFailure.Completed/Failed and in the ledger.
const (
	stepCreateProduct  = "create_product"
	stepAttachListing  = "attach_listing"
	stepDetachListing  = "detach_listing"
	stepDeleteProduct  = "delete_product"
	stepUpdateProduct  = "update_product"
	stepRefreshListing = "refresh_listing"
	stepCreateOrder    = "create_order"
	stepAttachOrder    = "attach_order"
	stepDetachOrder    = "detach_order"
	stepDeleteOrder    = "delete_order"
	stepDeleteAccount  = "delete_account"
	stepDeleteOwned    = "delete_owned_records"
	stepClearCart      = "clear_cart"
)

// call bounds one store call by the configured store timeout.
func call(ctx context.Context, deps BaseDeps, fn func(dbc dbctx.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, deps.StoreTimeout)
	defer cancel()
	return fn(dbctx.Context{Ctx: cctx})
}

// stepRunner executes the write steps of one operation strictly in order.
// Once a sequence starts it is detached from caller cancellation, so it ends
// either complete or in a PartialFailure.
type stepRunner struct {
	deps      BaseDeps
	op        string
	completed []string

	ledger  SyncLedger
	rec     *types.SyncRun
	claimed bool
}

func newStepRunner(deps BaseDeps, op string) *stepRunner {
	return &stepRunner{deps: deps.withDefaults(), op: op}
}

// resume seeds the runner from a ledger row left by an earlier attempt.
func (r *stepRunner) resume(ledger SyncLedger, rec *types.SyncRun) {
	r.ledger = ledger
	r.rec = rec
	if rec != nil {
		r.completed = append(r.completed, rec.Completed...)
	}
}

func (r *stepRunner) done(name string) bool {
	for _, s := range r.completed {
		if s == name {
			return true
		}
	}
	return false
}

// setResult records the id produced by the current step for replays.
func (r *stepRunner) setResult(id uuid.UUID) {
	if r.rec != nil {
		r.rec.ResultID = id
	}
}

func (r *stepRunner) resultID() uuid.UUID {
	if r.rec == nil {
		return uuid.Nil
	}
	return r.rec.ResultID
}

// step runs fn as the named step. A failure before any step committed is
// returned as a plain mapped error; after that it becomes a PartialFailure.
func (r *stepRunner) step(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if len(r.completed) == 0 {
		if err := ctx.Err(); err != nil {
			return MapError(r.op, err)
		}
	}
	sctx := context.WithoutCancel(ctx)
	sctx, span := r.deps.Tracer.Start(sctx, r.op+"/"+name)
	span.SetAttributes(attribute.String("aggregate.step", name))
	defer span.End()

	if err := fn(sctx); err != nil {
		mapped := MapError(r.op, err)
		span.RecordError(mapped)
		span.SetStatus(codes.Error, string(domainagg.CodeOf(mapped)))
		if len(r.completed) == 0 {
			return mapped
		}
		return &domainagg.PartialFailure{
			Op:        r.op,
			Completed: append([]string(nil), r.completed...),
			Failed:    name,
			Cause:     mapped,
		}
	}
	r.completed = append(r.completed, name)
	r.checkpoint(sctx, name, types.SyncRunPartial)
	return nil
}

// release drops this runner's claim when no step committed, so the key can be
// retried. It is a no-op once any step has committed.
func (r *stepRunner) release(ctx context.Context) {
	if !r.claimed || r.ledger == nil || r.rec == nil || len(r.completed) > 0 {
		return
	}
	r.claimed = false
	err := call(context.WithoutCancel(ctx), r.deps, func(dbc dbctx.Context) error {
		return r.ledger.Release(dbc.Ctx, r.rec)
	})
	if err != nil {
		r.deps.Log.Warn("sync ledger release failed",
			"op", r.op,
			"error", err,
		)
	}
}

// finish marks the ledger row succeeded.
func (r *stepRunner) finish(ctx context.Context) {
	r.checkpoint(context.WithoutCancel(ctx), "", types.SyncRunSucceeded)
}

func (r *stepRunner) checkpoint(ctx context.Context, name, status string) {
	if r.ledger == nil || r.rec == nil {
		return
	}
	if name != "" {
		r.rec.MarkStep(name)
	}
	r.rec.Status = status
	err := call(ctx, r.deps, func(dbc dbctx.Context) error {
		return r.ledger.Put(dbc.Ctx, r.rec)
	})
	if err != nil {
		// The ledger only enables replays; the step itself already committed.
		r.deps.Log.Warn("sync ledger checkpoint failed",
			"op", r.op,
			"step", name,
			"completed", strings.Join(r.completed, ","),
			"error", err,
		)
	}
}
