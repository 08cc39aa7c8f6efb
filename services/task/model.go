package task

import (
	"time"

	"gorm.io/datatypes"
)

type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusRunning JobStatus = "running"
	JobStatusSuccess JobStatus = "success"
	JobStatusFailed  JobStatus = "failed"
	JobStatusSkipped JobStatus = "skipped"
)

const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// Job is the execution record of one reconciliation run. The job id doubles
// as the run id, so a retried job never fans out an application twice.
type Job struct {
	ID           string         `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	Code         string         `gorm:"column:code;type:varchar(32);index" json:"code"`
	Trigger      string         `gorm:"column:trigger_type;type:varchar(20);not null" json:"trigger"`
	TriggerID    string         `gorm:"column:trigger_id;type:varchar(36)" json:"trigger_id,omitempty"`
	Status       JobStatus      `gorm:"column:status;type:varchar(20);default:'pending'" json:"status"` // pending|running|success|failed|skipped
	ErrorMsg     string         `gorm:"column:error_msg;type:text" json:"error_msg,omitempty"`
	Attempts     int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	StartedAt    *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt  *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	Metadata     datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	ReportObject string         `gorm:"column:report_object" json:"report_object,omitempty"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Job) TableName() string { return "reconciliation_jobs" }
