// Package model contain database model of the onboarding engine
package model

import "time"

// Location represents a single restaurant (tenant) in the platform
type Location struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:text;not null" json:"name"`
	City      string    `gorm:"type:text" json:"city"`
	CreatedAt time.Time `json:"created_at"`
}

// OnboardingSettings holds the per-location reminder and no-response policy.
// A location without a row here has onboarding automation disabled entirely.
type OnboardingSettings struct {
	ID         uint     `gorm:"primaryKey;autoIncrement" json:"id"`
	LocationID uint     `gorm:"not null;uniqueIndex" json:"location_id"`
	Location   Location `gorm:"foreignKey:LocationID;references:ID" json:"-"`

	FirstReminderHours  int  `gorm:"not null;default:24" json:"first_reminder_hours"`
	SecondReminderHours int  `gorm:"not null;default:48" json:"second_reminder_hours"`
	NoResponseDays      int  `gorm:"not null;default:7" json:"no_response_days"`
	ReminderEnabled     bool `gorm:"not null;default:true" json:"reminder_enabled"`

	// ScreeningPhaseID points at the phase whose dwell time drives the
	// no-response transition. When nil the legacy sort_order lookup applies.
	ScreeningPhaseID *uint `json:"screening_phase_id"`
}

// ScreeningSortOrder is the legacy sort_order of the screening phase, used
// when OnboardingSettings.ScreeningPhaseID is not configured.
const ScreeningSortOrder = 20
