package model

import (
	"time"

	"github.com/google/uuid"
)

var (
	// TaskStatusPending indicates the task still has to be done
	TaskStatusPending = "pending"
	// TaskStatusCompleted indicates the task is done, manually or automatically
	TaskStatusCompleted = "completed"
	// TaskStatusSkipped indicates the task was skipped by a user
	TaskStatusSkipped = "skipped"
)

// Task is a unit of onboarding work, materialized per candidate per phase
// from the phase's task templates.
type Task struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CandidateID uuid.UUID `gorm:"type:uuid;not null;index" json:"candidate_id"`
	Candidate   Candidate `gorm:"foreignKey:CandidateID;references:ID" json:"-"`
	PhaseID     uint      `gorm:"not null;index" json:"phase_id"`
	Phase       Phase     `gorm:"foreignKey:PhaseID;references:ID" json:"-"`

	Title       string `gorm:"type:text;not null" json:"title"`
	Status      string `gorm:"type:text;not null;default:pending" json:"status"`
	IsAutomated bool   `gorm:"not null;default:false" json:"is_automated"`

	// ReminderTier counts sent reminders (0, 1 or 2). Updated in the same
	// transaction as the reminder_sent event append so the two cannot drift.
	ReminderTier int `gorm:"not null;default:0" json:"reminder_tier"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
}
