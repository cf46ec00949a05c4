package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrStreakInvariant marks a StreakRecord whose fields contradict each other.
var ErrStreakInvariant = errors.New("streak record invariant violated")

// StreakRecord is the single per-user streak row. Dates hold the user-local
// civil date encoded as midnight UTC.
type StreakRecord struct {
	UserID             uint       `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	CurrentStreak      int        `gorm:"not null;default:0" json:"current_streak"`
	LongestStreak      int        `gorm:"not null;default:0" json:"longest_streak"`
	TotalCompliantDays int        `gorm:"not null;default:0" json:"total_compliant_days"`
	LastComplianceDate *time.Time `gorm:"type:date" json:"last_compliance_date"`
	StreakStartDate    *time.Time `gorm:"type:date" json:"streak_start_date"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Validate checks the record invariants before it is persisted.
func (r *StreakRecord) Validate() error {
	switch {
	case r.CurrentStreak < 0 || r.LongestStreak < 0 || r.TotalCompliantDays < 0:
		return fmt.Errorf("%w: negative counter", ErrStreakInvariant)
	case r.CurrentStreak > r.LongestStreak:
		return fmt.Errorf("%w: current_streak %d exceeds longest_streak %d", ErrStreakInvariant, r.CurrentStreak, r.LongestStreak)
	case r.CurrentStreak > r.TotalCompliantDays:
		return fmt.Errorf("%w: current_streak %d exceeds total_compliant_days %d", ErrStreakInvariant, r.CurrentStreak, r.TotalCompliantDays)
	case r.CurrentStreak == 0 && r.LastComplianceDate != nil:
		return fmt.Errorf("%w: zero streak with a credited date", ErrStreakInvariant)
	case r.CurrentStreak > 0 && (r.LastComplianceDate == nil || r.StreakStartDate == nil):
		return fmt.Errorf("%w: credited streak without dates", ErrStreakInvariant)
	case r.LastComplianceDate != nil && r.StreakStartDate != nil && r.LastComplianceDate.Before(*r.StreakStartDate):
		return fmt.Errorf("%w: last_compliance_date before streak_start_date", ErrStreakInvariant)
	}
	return nil
}
