package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

var (
	// EventEmailSent records a delivered (or stubbed) notification email
	EventEmailSent = "email_sent"
	// EventEmailFailed records a notification the provider refused
	EventEmailFailed = "email_failed"
	// EventReminderSent records a tiered task reminder
	EventReminderSent = "reminder_sent"
	// EventAutoStatusChange records an automated candidate status transition
	EventAutoStatusChange = "auto_status_change"
	// EventTaskCompleted records a task completion
	EventTaskCompleted = "task_completed"
)

var (
	// TriggeredByUser marks events caused by an explicit user action
	TriggeredByUser = "user"
	// TriggeredBySystem marks events caused by internal machinery
	TriggeredBySystem = "system"
	// TriggeredByCron marks events caused by the reminder sweep
	TriggeredByCron = "cron"
	// TriggeredByAgent marks events caused by the workflow agent
	TriggeredByAgent = "agent"
)

// Event is one record of the append-only candidate timeline. Events are
// never updated or deleted.
type Event struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CandidateID uuid.UUID `gorm:"type:uuid;not null;index" json:"candidate_id"`
	LocationID  uint      `gorm:"not null;index" json:"location_id"`

	EventType   string          `gorm:"type:text;not null;index" json:"event_type"`
	EventData   json.RawMessage `gorm:"type:jsonb" json:"event_data"`
	TriggeredBy string          `gorm:"type:text;not null" json:"triggered_by"`

	CreatedAt time.Time `json:"created_at"`
}
