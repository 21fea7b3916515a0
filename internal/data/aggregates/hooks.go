package aggregates

import (
	"strings"
	"time"

	"github.com/yungbote/marketplace-backend/internal/observability"
)

// Hooks captures aggregate-level observability events.
type Hooks interface {
	ObserveOperation(name, status string, dur time.Duration)
	IncConflict(name string)
	IncRetry(name string)
	IncPartialFailure(name, failedStep string)
	ObserveViolations(kind string, count int)
}

type noopHooks struct{}

func (noopHooks) ObserveOperation(string, string, time.Duration) {}
func (noopHooks) IncConflict(string)                             {}
func (noopHooks) IncRetry(string)                                {}
func (noopHooks) IncPartialFailure(string, string)               {}
func (noopHooks) ObserveViolations(string, int)                  {}

type observabilityHooks struct {
	metrics *observability.Metrics
}

// NewObservabilityHooks creates aggregate hooks backed by observability metrics.
func NewObservabilityHooks(metrics *observability.Metrics) Hooks {
	if metrics == nil {
		return noopHooks{}
	}
	return &observabilityHooks{metrics: metrics}
}

func (h *observabilityHooks) ObserveOperation(name, status string, dur time.Duration) {
	if h == nil || h.metrics == nil {
		return
	}
	h.metrics.ObserveAggregateOperation(strings.TrimSpace(name), strings.TrimSpace(status), dur)
}

func (h *observabilityHooks) IncConflict(name string) {
	if h == nil || h.metrics == nil {
		return
	}
	h.metrics.IncAggregateConflict(strings.TrimSpace(name))
}

func (h *observabilityHooks) IncRetry(name string) {
	if h == nil || h.metrics == nil {
		return
	}
	h.metrics.IncAggregateRetry(strings.TrimSpace(name))
}

func (h *observabilityHooks) IncPartialFailure(name, failedStep string) {
	if h == nil || h.metrics == nil {
		return
	}
	h.metrics.IncAggregatePartialFailure(strings.TrimSpace(name), strings.TrimSpace(failedStep))
}

func (h *observabilityHooks) ObserveViolations(kind string, count int) {
	if h == nil || h.metrics == nil {
		return
	}
	h.metrics.SetConsistencyViolations(strings.TrimSpace(kind), count)
}
