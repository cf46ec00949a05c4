// Package testutil holds shared fixtures for package tests.
package testutil

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/devarispbrown/gtsd/models"
)

// OpenTestDB opens an in-memory SQLite database with every table migrated.
// A single connection keeps the in-memory database alive and serialises writers.
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(
		&models.User{},
		&models.Task{},
		&models.StreakRecord{},
		&models.BadgeAward{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// CreateUser inserts a profile with the given timezone.
func CreateUser(t *testing.T, db *gorm.DB, username, timezone string) *models.User {
	t.Helper()
	user := &models.User{Username: username, Timezone: timezone}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

// AddTasks inserts total tasks due at dueAt, the first completed of which are done.
func AddTasks(t *testing.T, db *gorm.DB, userID uint, dueAt time.Time, total, completed int) {
	t.Helper()
	for i := 0; i < total; i++ {
		task := models.Task{
			UserID: userID,
			Title:  "task",
			DueAt:  dueAt.UTC(),
		}
		if i < completed {
			done := dueAt.UTC()
			task.Completed = true
			task.CompletedAt = &done
		}
		if err := db.Create(&task).Error; err != nil {
			t.Fatalf("create task: %v", err)
		}
	}
}
