// Package events defines the payloads the streak engine emits after commit.
package events

import "time"

// Event type names, also used as topic suffixes.
const (
	TypeStreakCredited = "streak.credited"
	TypeBadgeAwarded   = "badge.awarded"
)

// StreakCredited is emitted when a compliant day changes the ledger.
type StreakCredited struct {
	EventID            string    `json:"event_id"`
	UserID             uint      `json:"user_id"`
	Date               string    `json:"date"`
	Outcome            string    `json:"outcome"`
	CurrentStreak      int       `json:"current_streak"`
	LongestStreak      int       `json:"longest_streak"`
	TotalCompliantDays int       `json:"total_compliant_days"`
	OccurredAt         time.Time `json:"occurred_at"`
}

// BadgeAwarded is emitted once per newly inserted badge row.
type BadgeAwarded struct {
	EventID   string    `json:"event_id"`
	UserID    uint      `json:"user_id"`
	BadgeType string    `json:"badge_type"`
	AwardedAt time.Time `json:"awarded_at"`
}
