package models

import "time"

// BadgeType identifies a milestone in the closed badge catalog.
type BadgeType string

const (
	BadgeDayOneDone      BadgeType = "day_one_done"
	BadgeWeekWarrior     BadgeType = "week_warrior"
	BadgePerfectMonth    BadgeType = "perfect_month"
	BadgeHundredClub     BadgeType = "hundred_club"
	BadgeConsistencyKing BadgeType = "consistency_king"
)

// Milestone describes when a badge is earned.
type Milestone struct {
	Badge       BadgeType `json:"badge"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	// Threshold is the minimum current streak, in consecutive compliant days.
	Threshold int `json:"threshold"`
}

// MilestoneCatalog lists every badge in evaluation order.
var MilestoneCatalog = []Milestone{
	{Badge: BadgeDayOneDone, Name: "Day One Done", Description: "First compliant day", Threshold: 1},
	{Badge: BadgeWeekWarrior, Name: "Week Warrior", Description: "Seven compliant days in a row", Threshold: 7},
	{Badge: BadgePerfectMonth, Name: "Perfect Month", Description: "Thirty compliant days in a row", Threshold: 30},
	{Badge: BadgeHundredClub, Name: "Hundred Club", Description: "One hundred compliant days in a row", Threshold: 100},
	{Badge: BadgeConsistencyKing, Name: "Consistency King", Description: "One hundred days without a miss", Threshold: 100},
}

// LookupMilestone returns the catalog entry for a badge type.
func LookupMilestone(badge BadgeType) (Milestone, bool) {
	for _, m := range MilestoneCatalog {
		if m.Badge == badge {
			return m, true
		}
	}
	return Milestone{}, false
}

// BadgeAward is an append-only grant. (user_id, badge_type) is unique at the storage layer.
type BadgeAward struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    uint      `gorm:"not null;index:idx_badge_user_type,unique" json:"user_id"`
	BadgeType BadgeType `gorm:"size:32;not null;index:idx_badge_user_type,unique" json:"badge_type"`
	AwardedAt time.Time `gorm:"not null" json:"awarded_at"`
}
