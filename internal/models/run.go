package models

import (
	"time"
)

// RunStatus is the lifecycle state of an automation run. A run is created as
// StatusRunning and moves to exactly one terminal verdict when finished.
type RunStatus string

const (
	StatusRunning RunStatus = "running"
	StatusSuccess RunStatus = "success"
	StatusPartial RunStatus = "partial"
	StatusError   RunStatus = "error"
)

// Event severity levels.
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Pipeline steps an event can be attributed to.
const (
	StepSelectChannels       = "select-channels"
	StepChannelCheck         = "channel-check"
	StepGenerateIdea         = "generate-idea"
	StepGeneratePrompt       = "generate-prompt"
	StepCreateJob            = "create-job"
	StepSendToBot            = "send-to-bot"
	StepUpdateChannelNextRun = "update-channel-next-run"
	StepOther                = "other"
)

// AutomationRun is one execution of the generation cycle and its summarized
// outcome. Counters only ever grow while the run is open; Status is written at
// creation (running) and again at finish (terminal verdict), never in between.
type AutomationRun struct {
	ID                    string     `gorm:"primaryKey;size:36" json:"id"`
	StartedAt             time.Time  `gorm:"not null;index" json:"started_at"`
	FinishedAt            *time.Time `json:"finished_at"`
	Status                RunStatus  `gorm:"size:20;not null;default:'running'" json:"status"`
	SchedulerInvocationAt *time.Time `json:"scheduler_invocation_at"`
	ChannelsPlanned       int        `gorm:"default:0" json:"channels_planned"`
	ChannelsProcessed     int        `gorm:"default:0" json:"channels_processed"`
	JobsCreated           int        `gorm:"default:0" json:"jobs_created"`
	ErrorsCount           int        `gorm:"default:0" json:"errors_count"`
	LastErrorMessage      string     `gorm:"type:text" json:"last_error_message,omitempty"`
	Timezone              string     `gorm:"size:64" json:"timezone"`
}

// RunEvent is one immutable step-level audit entry tied to a run. Events are
// append-only; the core never edits or deletes them.
type RunEvent struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	RunID       string    `gorm:"size:36;not null;index" json:"run_id"`
	CreatedAt   time.Time `gorm:"not null;index" json:"created_at"`
	Level       string    `gorm:"size:20;not null" json:"level"`
	Step        string    `gorm:"size:50;not null" json:"step"`
	ChannelID   *uint     `gorm:"index" json:"channel_id,omitempty"`
	ChannelName string    `gorm:"size:255" json:"channel_name,omitempty"`
	Message     string    `gorm:"type:text;not null" json:"message"`
	Details     string    `gorm:"type:jsonb" json:"details,omitempty"`
}

// ComputeStatus maps a run's accumulated counters to its terminal verdict.
// Total over non-negative inputs:
//   - no errors at all -> success
//   - errors and nothing accomplished -> error
//   - errors but some work landed -> partial
func ComputeStatus(errorsCount, jobsCreated, channelsProcessed int) RunStatus {
	if errorsCount == 0 {
		return StatusSuccess
	}
	if jobsCreated == 0 && channelsProcessed == 0 {
		return StatusError
	}
	return StatusPartial
}
