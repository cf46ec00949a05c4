package models

import (
	"time"

	"gorm.io/gorm"
)

// User is the profile slice the streak engine reads: timezone and compliance threshold.
// Profiles are owned by the onboarding service; this core never writes them.
type User struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Username string `gorm:"size:64;not null" json:"username"`
	// Timezone is an IANA name such as "America/New_York". Empty means unset.
	Timezone string `gorm:"size:64" json:"timezone"`
	// ComplianceThreshold overrides the default percentage when set.
	ComplianceThreshold *int           `json:"compliance_threshold,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`
}
