package model

// Phase is an ordered stage of a location's onboarding pipeline.
// "Last phase" per location is the active phase with the highest SortOrder.
type Phase struct {
	ID         uint     `gorm:"primaryKey;autoIncrement" json:"id"`
	LocationID uint     `gorm:"not null;index" json:"location_id"`
	Location   Location `gorm:"foreignKey:LocationID;references:ID" json:"-"`

	Name      string `gorm:"type:text;not null" json:"name"`
	SortOrder int    `gorm:"not null" json:"sort_order"`
	IsActive  bool   `gorm:"not null;default:true" json:"is_active"`

	// PhaseOwnerEmail receives task reminders for this phase. When empty the
	// location's owner-role profile is used instead.
	PhaseOwnerEmail *string `json:"phase_owner_email"`

	TaskTemplates []TaskTemplate `gorm:"foreignKey:PhaseID;references:ID" json:"task_templates"`
}

// TaskTemplate describes a task that gets materialized for every candidate
// entering the owning phase.
type TaskTemplate struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	PhaseID     uint   `gorm:"not null;index" json:"phase_id"`
	Title       string `gorm:"type:text;not null" json:"title"`
	IsAutomated bool   `gorm:"not null;default:false" json:"is_automated"`
}
