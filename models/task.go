package models

import "time"

// Task is a read-only snapshot row from the daily task store.
type Task struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      uint       `gorm:"index:idx_task_user_due;not null" json:"user_id"`
	Title       string     `gorm:"size:255" json:"title"`
	DueAt       time.Time  `gorm:"index:idx_task_user_due;not null" json:"due_at"`
	Completed   bool       `gorm:"not null;default:false" json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName keeps the task store's table name.
func (Task) TableName() string {
	return "daily_tasks"
}
