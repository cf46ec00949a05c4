package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devarispbrown/gtsd/models"
)

type stubUsers map[uint]*models.User

func (s stubUsers) FindUser(_ context.Context, userID uint) (*models.User, error) {
	u, ok := s[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func mustLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestResolveLocation(t *testing.T) {
	loc, err := ResolveLocation("", false)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	_, err = ResolveLocation("  ", true)
	assert.ErrorIs(t, err, ErrTimezoneRequired)

	_, err = ResolveLocation("Mars/Olympus_Mons", false)
	assert.ErrorIs(t, err, ErrInvalidTimezone)

	loc, err = ResolveLocation("Asia/Tokyo", true)
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", loc.String())
}

func TestLocalDateUsesUserTimezone(t *testing.T) {
	// 03:30 UTC on the 15th is still the 14th in New York and already the 15th in Tokyo.
	instant := time.Date(2024, 6, 15, 3, 30, 0, 0, time.UTC)

	assert.Equal(t, "2024-06-14", FormatDate(LocalDate(instant, mustLocation(t, "America/New_York"))))
	assert.Equal(t, "2024-06-15", FormatDate(LocalDate(instant, mustLocation(t, "Asia/Tokyo"))))
	assert.Equal(t, time.UTC, LocalDate(instant, mustLocation(t, "Asia/Tokyo")).Location())
}

func TestDayBoundsAcrossDST(t *testing.T) {
	ny := mustLocation(t, "America/New_York")

	start, end := DayBounds(mustDate(t, "2024-03-10"), ny)
	assert.Equal(t, 23*time.Hour, end.Sub(start))
	assert.Equal(t, time.Date(2024, 3, 10, 5, 0, 0, 0, time.UTC), start.UTC())

	start, end = DayBounds(mustDate(t, "2024-11-03"), ny)
	assert.Equal(t, 25*time.Hour, end.Sub(start))

	start, end = DayBounds(mustDate(t, "2024-06-01"), time.UTC)
	assert.Equal(t, 24*time.Hour, end.Sub(start))
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 0, DaysBetween(mustDate(t, "2024-02-28"), mustDate(t, "2024-02-28")))
	assert.Equal(t, 1, DaysBetween(mustDate(t, "2024-02-28"), mustDate(t, "2024-02-29")))
	assert.Equal(t, 2, DaysBetween(mustDate(t, "2024-02-28"), mustDate(t, "2024-03-01")))
	assert.Equal(t, -1, DaysBetween(mustDate(t, "2024-03-01"), mustDate(t, "2024-02-29")))
	assert.Equal(t, 366, DaysBetween(mustDate(t, "2024-01-01"), mustDate(t, "2025-01-01")))
}

func TestCalendarToday(t *testing.T) {
	users := stubUsers{
		1: {ID: 1, Timezone: "Pacific/Auckland"},
		2: {ID: 2},
		3: {ID: 3, Timezone: "Not/AZone"},
	}
	now := func() time.Time { return time.Date(2024, 6, 15, 20, 0, 0, 0, time.UTC) }
	cal := NewCalendar(users, false, now, nil)

	today, loc, err := cal.Today(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-16", FormatDate(today))
	assert.Equal(t, "Pacific/Auckland", loc.String())

	today, loc, err = cal.Today(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-15", FormatDate(today))
	assert.Equal(t, time.UTC, loc)

	_, _, err = cal.Today(context.Background(), 3)
	assert.ErrorIs(t, err, ErrInvalidTimezone)

	_, _, err = cal.Today(context.Background(), 99)
	assert.ErrorIs(t, err, ErrUserNotFound)

	strict := NewCalendar(users, true, now, nil)
	_, _, err = strict.Today(context.Background(), 2)
	assert.ErrorIs(t, err, ErrTimezoneRequired)
}
