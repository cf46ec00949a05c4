package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devarispbrown/gtsd/testutil"
)

type stubTasks struct {
	counts TaskCounts
	err    error
	from   time.Time
	to     time.Time
}

func (s *stubTasks) CountTasks(_ context.Context, _ uint, from, to time.Time) (TaskCounts, error) {
	s.from, s.to = from, to
	return s.counts, s.err
}

func intPtr(v int) *int { return &v }

func TestComplianceBoundaries(t *testing.T) {
	users := stubUsers{1: {ID: 1, Timezone: "UTC"}}
	cal := NewCalendar(users, false, nil, nil)

	cases := []struct {
		name      string
		total     int64
		completed int64
		want      bool
	}{
		{name: "exactly eighty percent", total: 10, completed: 8, want: true},
		{name: "seventy percent", total: 10, completed: 7, want: false},
		{name: "no tasks", total: 0, completed: 0, want: false},
		{name: "all done", total: 3, completed: 3, want: true},
		{name: "rounding edge", total: 3, completed: 2, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tasks := &stubTasks{counts: TaskCounts{Total: tc.total, Completed: tc.completed}}
			calc := NewComplianceCalculator(cal, users, tasks, 80, nil)

			ok, err := calc.IsCompliant(context.Background(), 1, mustDate(t, "2024-05-01"))
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}
}

func TestComplianceThresholdOverride(t *testing.T) {
	users := stubUsers{
		1: {ID: 1, ComplianceThreshold: intPtr(50)},
		2: {ID: 2, ComplianceThreshold: intPtr(150)},
	}
	cal := NewCalendar(users, false, nil, nil)
	tasks := &stubTasks{counts: TaskCounts{Total: 4, Completed: 2}}
	calc := NewComplianceCalculator(cal, users, tasks, 0, nil)

	res, err := calc.Evaluate(context.Background(), 1, mustDate(t, "2024-05-01"))
	require.NoError(t, err)
	assert.Equal(t, 50, res.Threshold)
	assert.True(t, res.Compliant)

	res, err = calc.Evaluate(context.Background(), 2, mustDate(t, "2024-05-01"))
	require.NoError(t, err)
	assert.Equal(t, DefaultComplianceThreshold, res.Threshold)
	assert.False(t, res.Compliant)
}

func TestComplianceTaskStoreUnavailable(t *testing.T) {
	users := stubUsers{1: {ID: 1}}
	tasks := &stubTasks{err: errors.New("connection refused")}
	calc := NewComplianceCalculator(NewCalendar(users, false, nil, nil), users, tasks, 80, nil)

	ok, err := calc.IsCompliant(context.Background(), 1, mustDate(t, "2024-05-01"))
	require.Error(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrTaskStoreUnavailable)
	assert.True(t, IsRetryable(err))
}

func TestComplianceUsesLocalDayWindow(t *testing.T) {
	users := stubUsers{1: {ID: 1, Timezone: "America/Los_Angeles"}}
	tasks := &stubTasks{counts: TaskCounts{Total: 1, Completed: 1}}
	calc := NewComplianceCalculator(NewCalendar(users, false, nil, nil), users, tasks, 80, nil)

	_, err := calc.Evaluate(context.Background(), 1, mustDate(t, "2024-07-04"))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 7, 4, 7, 0, 0, 0, time.UTC), tasks.from.UTC())
	assert.Equal(t, time.Date(2024, 7, 5, 7, 0, 0, 0, time.UTC), tasks.to.UTC())
}

func TestGormTaskSourceCountsLocalDay(t *testing.T) {
	db := testutil.OpenTestDB(t)
	user := testutil.CreateUser(t, db, "ana", "Asia/Tokyo")

	// Tokyo 2024-05-01 runs from 2024-04-30 15:00 UTC to 2024-05-01 15:00 UTC.
	testutil.AddTasks(t, db, user.ID, time.Date(2024, 4, 30, 16, 0, 0, 0, time.UTC), 4, 3)
	testutil.AddTasks(t, db, user.ID, time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC), 2, 0)
	testutil.AddTasks(t, db, user.ID+1, time.Date(2024, 4, 30, 16, 0, 0, 0, time.UTC), 5, 5)

	dirs := NewGormUserDirectory(db)
	calc := NewComplianceCalculator(NewCalendar(dirs, false, nil, nil), dirs, NewGormTaskSource(db), 75, nil)

	res, err := calc.Evaluate(context.Background(), user.ID, mustDate(t, "2024-05-01"))
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Total)
	assert.Equal(t, int64(3), res.Completed)
	assert.True(t, res.Compliant)
	assert.Equal(t, "2024-05-01", res.Date)
}

func TestGormUserDirectoryNotFound(t *testing.T) {
	db := testutil.OpenTestDB(t)
	_, err := NewGormUserDirectory(db).FindUser(context.Background(), 42)
	assert.ErrorIs(t, err, ErrUserNotFound)

	created := testutil.CreateUser(t, db, "bo", "Europe/Paris")
	user, err := NewGormUserDirectory(db).FindUser(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Paris", user.Timezone)
	assert.Nil(t, user.ComplianceThreshold)
}
