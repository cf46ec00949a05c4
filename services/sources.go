package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/devarispbrown/gtsd/models"
)

// UserDirectory reads user profiles (timezone, threshold override).
type UserDirectory interface {
	FindUser(ctx context.Context, userID uint) (*models.User, error)
}

// TaskCounts summarises the tasks due inside one local day.
type TaskCounts struct {
	Total     int64 `json:"total"`
	Completed int64 `json:"completed"`
}

// TaskSource reads the external task store. It never mutates tasks.
type TaskSource interface {
	CountTasks(ctx context.Context, userID uint, from, to time.Time) (TaskCounts, error)
}

// GormUserDirectory reads the users table.
type GormUserDirectory struct {
	db *gorm.DB
}

// NewGormUserDirectory creates a directory over db.
func NewGormUserDirectory(db *gorm.DB) *GormUserDirectory {
	return &GormUserDirectory{db: db}
}

// FindUser loads a profile or returns ErrUserNotFound.
func (d *GormUserDirectory) FindUser(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	err := d.db.WithContext(ctx).Select("id", "username", "timezone", "compliance_threshold").Take(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrUserNotFound, userID)
	}
	if err != nil {
		return nil, classifyDBError(err)
	}
	return &user, nil
}

// GormTaskSource counts rows in the daily_tasks table.
type GormTaskSource struct {
	db *gorm.DB
}

// NewGormTaskSource creates a task source over db.
func NewGormTaskSource(db *gorm.DB) *GormTaskSource {
	return &GormTaskSource{db: db}
}

// CountTasks counts tasks with due_at in [from, to), total and completed.
func (s *GormTaskSource) CountTasks(ctx context.Context, userID uint, from, to time.Time) (TaskCounts, error) {
	var counts TaskCounts
	base := s.db.WithContext(ctx).Model(&models.Task{}).
		Where("user_id = ? AND due_at >= ? AND due_at < ?", userID, from.UTC(), to.UTC()).
		Session(&gorm.Session{})

	if err := base.Count(&counts.Total).Error; err != nil {
		return TaskCounts{}, err
	}
	if counts.Total == 0 {
		return counts, nil
	}
	if err := base.Where("completed = ?", true).Count(&counts.Completed).Error; err != nil {
		return TaskCounts{}, err
	}
	return counts, nil
}
