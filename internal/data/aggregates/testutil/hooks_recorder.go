package testutil

import (
	"sync"
	"time"

	"github.com/yungbote/marketplace-backend/internal/data/aggregates"
)

// HooksRecorder captures aggregate hook signals in tests.
type HooksRecorder struct {
	mu sync.Mutex

	Operations      []OperationEvent
	Conflicts       []string
	Retries         []string
	PartialFailures []PartialEvent
	Violations      map[string]int
}

type OperationEvent struct {
	Name     string
	Status   string
	Duration time.Duration
}

type PartialEvent struct {
	Name       string
	FailedStep string
}

var _ aggregates.Hooks = (*HooksRecorder)(nil)

func (h *HooksRecorder) ObserveOperation(name, status string, dur time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Operations = append(h.Operations, OperationEvent{
		Name:     name,
		Status:   status,
		Duration: dur,
	})
}

func (h *HooksRecorder) IncConflict(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Conflicts = append(h.Conflicts, name)
}

func (h *HooksRecorder) IncRetry(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Retries = append(h.Retries, name)
}

func (h *HooksRecorder) IncPartialFailure(name, failedStep string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.PartialFailures = append(h.PartialFailures, PartialEvent{Name: name, FailedStep: failedStep})
}

func (h *HooksRecorder) ObserveViolations(kind string, count int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.Violations == nil {
		h.Violations = map[string]int{}
	}
	h.Violations[kind] = count
}

// StatusesFor returns the recorded statuses of operation name in call order.
func (h *HooksRecorder) StatusesFor(name string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, op := range h.Operations {
		if op.Name == name {
			out = append(out, op.Status)
		}
	}
	return out
}
