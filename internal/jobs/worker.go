package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/yungbote/marketplace-backend/internal/platform/logger"
)

type Worker struct {
	log      *logger.Logger
	registry *Registry
	wg       sync.WaitGroup
}

func NewWorker(baseLog *logger.Logger, registry *Registry) *Worker {
	return &Worker{
		log:      baseLog.With("component", "JobWorker"),
		registry: registry,
	}
}

// Start runs every registered handler on its own ticker until ctx is done.
// A handler run never overlaps with itself.
func (w *Worker) Start(ctx context.Context) {
	for _, h := range w.registry.All() {
		h := h
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			ticker := time.NewTicker(h.Interval())
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					w.runOnce(ctx, h)
				}
			}
		}()
	}
}

// Wait blocks until every handler loop has exited.
func (w *Worker) Wait() { w.wg.Wait() }

func (w *Worker) runOnce(ctx context.Context, h Handler) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Job handler panic", "job_type", h.Type(), "panic", r)
		}
	}()
	if err := h.Run(ctx); err != nil {
		w.log.Warn("Job run failed", "job_type", h.Type(), "error", err, "duration_ms", time.Since(start).Milliseconds())
		return
	}
	w.log.Debug("Job run finished", "job_type", h.Type(), "duration_ms", time.Since(start).Milliseconds())
}
