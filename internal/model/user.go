package model

import (
	"time"

	"github.com/google/uuid"
)

var (
	// RoleOwner is the location owner, fallback recipient for reminders
	RoleOwner = "owner"
	// RoleManager can manage candidates but never receives escalations by default
	RoleManager = "manager"
	// RoleStaff is regular staff
	RoleStaff = "staff"
)

// User is a staff profile of a location. Authentication lives in the main
// platform; this core only needs the email/role pair for reminder routing.
type User struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	LocationID uint      `gorm:"not null;index" json:"location_id"`
	Location   Location  `gorm:"foreignKey:LocationID;references:ID" json:"-"`
	Email      string    `gorm:"type:text;not null" json:"email"`
	Role       string    `gorm:"type:text;not null" json:"role"`
	CreatedAt  time.Time `json:"created_at"`
}
