package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/devarispbrown/gtsd/models"
)

const dateLayout = "2006-01-02"

// ResolveLocation turns a stored IANA name into a location. An empty name
// falls back to UTC unless require is set.
func ResolveLocation(tz string, require bool) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		if require {
			return nil, ErrTimezoneRequired
		}
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, tz)
	}
	return loc, nil
}

// LocalDate returns the calendar date of instant in loc, encoded as midnight UTC.
func LocalDate(instant time.Time, loc *time.Location) time.Time {
	y, m, d := instant.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CivilDate normalises a stored date value to midnight UTC of the same calendar date.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayBounds returns the half-open instant window [start, end) of a local calendar day.
// Built from the wall clock so DST days are 23 or 25 hours long.
func DayBounds(date time.Time, loc *time.Location) (time.Time, time.Time) {
	y, m, d := date.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	end := time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	return start, end
}

// DaysBetween counts whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(CivilDate(b).Sub(CivilDate(a)) / (24 * time.Hour))
}

// FormatDate renders a civil date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return CivilDate(t).Format(dateLayout)
}

// ParseDate parses YYYY-MM-DD into a civil date.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, time.UTC)
}

// Calendar answers "what day is it for this user". Every component uses it so
// now, stored dates and task due dates are compared in the same terms.
type Calendar struct {
	users           UserDirectory
	requireTimezone bool
	now             func() time.Time
	log             *zap.Logger
}

// NewCalendar builds a Calendar. A nil clock means time.Now.
func NewCalendar(users UserDirectory, requireTimezone bool, now func() time.Time, log *zap.Logger) *Calendar {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Calendar{users: users, requireTimezone: requireTimezone, now: now, log: log}
}

// Now returns the current instant.
func (c *Calendar) Now() time.Time {
	return c.now()
}

// Location resolves the user's timezone.
func (c *Calendar) Location(ctx context.Context, userID uint) (*time.Location, error) {
	user, err := c.users.FindUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return c.LocationFor(user)
}

// LocationFor resolves the timezone of an already loaded profile.
func (c *Calendar) LocationFor(user *models.User) (*time.Location, error) {
	loc, err := ResolveLocation(user.Timezone, c.requireTimezone)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(user.Timezone) == "" {
		c.log.Warn("user has no timezone, using UTC day boundaries", zap.Uint("user_id", user.ID))
	}
	return loc, nil
}

// Today returns the user's current local date and location.
func (c *Calendar) Today(ctx context.Context, userID uint) (time.Time, *time.Location, error) {
	loc, err := c.Location(ctx, userID)
	if err != nil {
		return time.Time{}, nil, err
	}
	return LocalDate(c.now(), loc), loc, nil
}
