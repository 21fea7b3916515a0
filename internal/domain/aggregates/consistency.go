package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ViolationKind classifies a broken account/canonical reference.
type ViolationKind string

const (
	// ViolationOrphan is a canonical record with no matching account reference.
	ViolationOrphan ViolationKind = "orphan"
	// ViolationDangling is an account reference with no matching canonical record.
	ViolationDangling ViolationKind = "dangling"
	// ViolationDuplicate is a reference held more than once by the same account.
	ViolationDuplicate ViolationKind = "duplicate_reference"
)

type Violation struct {
	Kind        ViolationKind `json:"kind"`
	Entity      string        `json:"entity"`
	EntityID    uuid.UUID     `json:"entity_id"`
	AccountID   uuid.UUID     `json:"account_id"`
	Description string        `json:"description"`
}

type CheckOptions struct {
	// Repair applies the checker's repair policy. Report-only otherwise.
	Repair bool
}

// CheckReport is the outcome of one sweep. RepairDeferred lists orphans not yet
// old enough to repair; a later sweep repairs them if they persist.
type CheckReport struct {
	StartedAt        time.Time   `json:"started_at"`
	FinishedAt       time.Time   `json:"finished_at"`
	AccountsScanned  int         `json:"accounts_scanned"`
	ProductsScanned  int         `json:"products_scanned"`
	OrdersScanned    int         `json:"orders_scanned"`
	Violations       []Violation `json:"violations"`
	Repaired         []Violation `json:"repaired"`
	RepairDeferred   []Violation `json:"repair_deferred,omitempty"`
	RepairFailures   []string    `json:"repair_failures,omitempty"`
	RepairWasApplied bool        `json:"repair_applied"`
}

// Count returns how many violations of kind were found.
func (r CheckReport) Count(kind ViolationKind) int {
	n := 0
	for _, v := range r.Violations {
		if v.Kind == kind {
			n++
		}
	}
	return n
}

// ConsistencyChecker scans both stores for broken references. It never runs
// inline with user-facing operations.
type ConsistencyChecker interface {
	Check(ctx context.Context, opts CheckOptions) (CheckReport, error)
}
