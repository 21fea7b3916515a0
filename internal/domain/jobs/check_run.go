package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// CheckRun triggers.
const (
	CheckTriggerScheduled = "scheduled"
	CheckTriggerManual    = "manual"
)

// CheckRun statuses.
const (
	CheckRunRunning   = "running"
	CheckRunSucceeded = "succeeded"
	CheckRunFailed    = "failed"
)

// CheckRun records one consistency sweep and its report.
type CheckRun struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Trigger string    `gorm:"column:trigger_kind;not null;index" json:"trigger"`
	Status  string    `gorm:"column:status;not null;index" json:"status"`
	Repair  bool      `gorm:"column:repair;not null" json:"repair"`

	Violations int            `gorm:"column:violations;not null;default:0" json:"violations"`
	Repaired   int            `gorm:"column:repaired;not null;default:0" json:"repaired"`
	Error      string         `gorm:"column:error" json:"error,omitempty"`
	Report     datatypes.JSON `gorm:"column:report" json:"report"`

	StartedAt  time.Time  `gorm:"not null;index" json:"started_at"`
	FinishedAt *time.Time `gorm:"column:finished_at" json:"finished_at,omitempty"`
	CreatedAt  time.Time  `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (CheckRun) TableName() string { return "check_run" }
