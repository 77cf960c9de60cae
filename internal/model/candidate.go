package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	// CandidateStatusActive indicates the candidate is moving through the pipeline
	CandidateStatusActive = "active"
	// CandidateStatusHired indicates the candidate got hired
	CandidateStatusHired = "hired"
	// CandidateStatusRejected indicates the candidate was rejected by the location
	CandidateStatusRejected = "rejected"
	// CandidateStatusWithdrawn indicates the candidate withdrew the application
	CandidateStatusWithdrawn = "withdrawn"
	// CandidateStatusNoResponse is set automatically after prolonged screening inactivity
	CandidateStatusNoResponse = "no_response"
	// CandidateStatusExpired indicates the application expired
	CandidateStatusExpired = "expired"
)

// Candidate represents a job applicant of a location
type Candidate struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	LocationID uint      `gorm:"not null;index" json:"location_id"`
	Location   Location  `gorm:"foreignKey:LocationID;references:ID" json:"-"`

	FirstName string `gorm:"type:text;not null" json:"first_name"`
	LastName  string `gorm:"type:text" json:"last_name"`
	Email     string `gorm:"type:text;not null" json:"email"`
	Status    string `gorm:"type:text;not null" json:"status"`

	// Position the candidate applied for, e.g. "Bediening" or "Keuken"
	Position string         `gorm:"type:text" json:"position"`
	Tags     pq.StringArray `gorm:"type:text[]" json:"tags"`

	CurrentPhaseID *uint `gorm:"index" json:"current_phase_id"`
	CurrentPhase   Phase `gorm:"foreignKey:CurrentPhaseID;references:ID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

// PhaseLog records when a candidate entered and left a phase. At most one
// record per candidate has a null ExitedAt; its EnteredAt is the dwell-time
// anchor for the no-response policy.
type PhaseLog struct {
	ID          uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	CandidateID uuid.UUID  `gorm:"type:uuid;not null;index" json:"candidate_id"`
	Candidate   Candidate  `gorm:"foreignKey:CandidateID;references:ID" json:"-"`
	PhaseID     uint       `gorm:"not null" json:"phase_id"`
	EnteredAt   time.Time  `gorm:"not null" json:"entered_at"`
	ExitedAt    *time.Time `json:"exited_at"`
}
