package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SyncRun statuses.
const (
	SyncRunRunning   = "running"
	SyncRunPartial   = "partial"
	SyncRunSucceeded = "succeeded"
)

// SyncRun is the durable ledger row for a keyed coordinator operation. A
// replay with the same key resumes from the first step not in Completed.
type SyncRun struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	// Key is scoped as "<op>:<account id>:<client key>".
	Key       string    `gorm:"column:run_key;not null;uniqueIndex" json:"key"`
	Op        string    `gorm:"column:op;not null;index" json:"op"`
	AccountID uuid.UUID `gorm:"type:uuid;not null;index;column:account_id" json:"account_id"`

	// running (claimed, no step committed) | partial | succeeded
	Status    string                      `gorm:"column:status;not null;index" json:"status"`
	Completed datatypes.JSONSlice[string] `gorm:"column:completed" json:"completed"`
	ResultID  uuid.UUID                   `gorm:"type:uuid;column:result_id" json:"result_id"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime;index" json:"updated_at"`
}

func (SyncRun) TableName() string { return "sync_run" }

// StepDone reports whether step already committed in a previous attempt.
func (r *SyncRun) StepDone(step string) bool {
	if r == nil {
		return false
	}
	for _, s := range r.Completed {
		if s == step {
			return true
		}
	}
	return false
}

// MarkStep records step as committed.
func (r *SyncRun) MarkStep(step string) {
	if r.StepDone(step) {
		return
	}
	r.Completed = append(r.Completed, step)
}

// ScopedKey namespaces a client idempotency key by operation and account.
func ScopedKey(op string, accountID uuid.UUID, key string) string {
	return op + ":" + accountID.String() + ":" + key
}
