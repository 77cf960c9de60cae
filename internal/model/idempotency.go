package model

import "time"

var (
	// ClaimStatusProcessing indicates the claim is held and the side effect is in flight
	ClaimStatusProcessing = "processing"
	// ClaimStatusCompleted indicates the side effect finished
	ClaimStatusCompleted = "completed"
	// ClaimStatusFailed indicates the side effect errored after the claim was won
	ClaimStatusFailed = "failed"
	// ClaimStatusExpired indicates an abandoned processing claim that was reset by an operator
	ClaimStatusExpired = "expired"
)

// IdempotencyRecord backs the exactly-one-winner claim. The primary key
// constraint on Key is what makes the insert race safe: the first insert
// wins, every other claimant gets a uniqueness violation.
type IdempotencyRecord struct {
	Key    string `gorm:"type:text;primaryKey" json:"key"`
	Status string `gorm:"type:text;not null;default:processing" json:"status"`
	Result string `gorm:"type:text" json:"result"`
	Error  string `gorm:"type:text" json:"error"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at"`
}
