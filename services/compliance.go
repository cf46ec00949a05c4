package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/devarispbrown/gtsd/models"
	"github.com/devarispbrown/gtsd/observability"
)

// DefaultComplianceThreshold is the percentage of tasks that makes a day compliant.
const DefaultComplianceThreshold = 80

// ComplianceResult explains a compliance decision.
type ComplianceResult struct {
	UserID    uint   `json:"user_id"`
	Date      string `json:"date"`
	Total     int64  `json:"total_tasks"`
	Completed int64  `json:"completed_tasks"`
	Threshold int    `json:"threshold_percent"`
	Compliant bool   `json:"compliant"`
}

// ComplianceCalculator decides whether a local calendar day meets the user's threshold.
// It only reads.
type ComplianceCalculator struct {
	calendar         *Calendar
	users            UserDirectory
	tasks            TaskSource
	defaultThreshold int
	log              *zap.Logger
}

// NewComplianceCalculator builds a calculator. defaultThreshold outside 1..100 uses DefaultComplianceThreshold.
func NewComplianceCalculator(calendar *Calendar, users UserDirectory, tasks TaskSource, defaultThreshold int, log *zap.Logger) *ComplianceCalculator {
	if !validThreshold(defaultThreshold) {
		defaultThreshold = DefaultComplianceThreshold
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ComplianceCalculator{
		calendar:         calendar,
		users:            users,
		tasks:            tasks,
		defaultThreshold: defaultThreshold,
		log:              log,
	}
}

// IsCompliant reports whether date (a user-local calendar day) is compliant.
func (c *ComplianceCalculator) IsCompliant(ctx context.Context, userID uint, date time.Time) (bool, error) {
	res, err := c.Evaluate(ctx, userID, date)
	if err != nil {
		return false, err
	}
	return res.Compliant, nil
}

// Evaluate counts the tasks due on date in the user's timezone and compares
// completed/total against the threshold with integer arithmetic.
func (c *ComplianceCalculator) Evaluate(ctx context.Context, userID uint, date time.Time) (ComplianceResult, error) {
	user, err := c.users.FindUser(ctx, userID)
	if err != nil {
		return ComplianceResult{}, err
	}
	loc, err := c.calendar.LocationFor(user)
	if err != nil {
		return ComplianceResult{}, err
	}
	return c.evaluateUser(ctx, user, loc, date)
}

func (c *ComplianceCalculator) evaluateUser(ctx context.Context, user *models.User, loc *time.Location, date time.Time) (ComplianceResult, error) {
	userID := user.ID
	from, to := DayBounds(date, loc)
	counts, err := c.tasks.CountTasks(ctx, userID, from, to)
	if err != nil {
		return ComplianceResult{}, fmt.Errorf("%w: %w", ErrTaskStoreUnavailable, err)
	}

	threshold := c.thresholdFor(user)
	res := ComplianceResult{
		UserID:    userID,
		Date:      FormatDate(date),
		Total:     counts.Total,
		Completed: counts.Completed,
		Threshold: threshold,
		Compliant: meetsThreshold(counts.Completed, counts.Total, threshold),
	}
	observability.RecordCompliance(res.Compliant)
	return res, nil
}

func (c *ComplianceCalculator) thresholdFor(user *models.User) int {
	if user.ComplianceThreshold == nil {
		return c.defaultThreshold
	}
	if !validThreshold(*user.ComplianceThreshold) {
		c.log.Warn("ignoring out of range compliance threshold",
			zap.Uint("user_id", user.ID), zap.Int("threshold", *user.ComplianceThreshold))
		return c.defaultThreshold
	}
	return *user.ComplianceThreshold
}

// meetsThreshold checks completed/total >= percent/100 without division.
// A day with no tasks is never compliant.
func meetsThreshold(completed, total int64, percent int) bool {
	if total <= 0 {
		return false
	}
	return completed*100 >= int64(percent)*total
}

func validThreshold(percent int) bool {
	return percent >= 1 && percent <= 100
}
