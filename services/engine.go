package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/devarispbrown/gtsd/events"
	"github.com/devarispbrown/gtsd/models"
	"github.com/devarispbrown/gtsd/utils"
)

const publishTimeout = 5 * time.Second

// EngineConfig carries the tunables of the streak engine.
type EngineConfig struct {
	DefaultThreshold int
	RequireTimezone  bool
	LockWait         time.Duration
	CacheTTL         time.Duration
	// Now overrides the clock, mostly for tests.
	Now func() time.Time
}

// StreakView is the cached read model of a streak record.
type StreakView struct {
	CurrentStreak      int     `json:"current_streak"`
	LongestStreak      int     `json:"longest_streak"`
	TotalCompliantDays int     `json:"total_compliant_days"`
	LastComplianceDate *string `json:"last_compliance_date"`
	StreakStartDate    *string `json:"streak_start_date"`
}

// BadgeView is the cached read model of one badge award.
type BadgeView struct {
	BadgeType   models.BadgeType `json:"badge_type"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	AwardedAt   time.Time        `json:"awarded_at"`
}

// StreakSummary is what the read endpoint returns.
type StreakSummary struct {
	UserID uint       `json:"user_id"`
	Streak StreakView `json:"streak"`
	// Active is true while the streak can still be continued today.
	Active bool        `json:"active"`
	Badges []BadgeView `json:"badges"`
}

// Evaluation reports what one compliance trigger did.
type Evaluation struct {
	UserID     uint             `json:"user_id"`
	Date       string           `json:"date"`
	Compliance ComplianceResult `json:"compliance"`
	Credited   bool             `json:"credited"`
	Outcome    string           `json:"outcome,omitempty"`
	Streak     StreakView       `json:"streak"`
	NewBadges  []BadgeView      `json:"new_badges"`
}

// StreakEngine composes compliance, ledger and awarder into the single write
// path and serves the cache-backed read path.
type StreakEngine struct {
	users      UserDirectory
	calendar   *Calendar
	compliance *ComplianceCalculator
	ledger     *StreakLedger
	awarder    *BadgeAwarder
	cache      *StreakCache
	publisher  events.Publisher
	log        *zap.Logger
}

// NewStreakEngine wires an engine over the users and daily_tasks tables of db.
func NewStreakEngine(db *gorm.DB, cfg EngineConfig, cache utils.ResultCache, publisher events.Publisher, log *zap.Logger) *StreakEngine {
	return NewStreakEngineWithSources(db, NewGormUserDirectory(db), NewGormTaskSource(db), cfg, cache, publisher, log)
}

// NewStreakEngineWithSources wires an engine with explicit profile and task sources.
func NewStreakEngineWithSources(db *gorm.DB, users UserDirectory, tasks TaskSource, cfg EngineConfig, cache utils.ResultCache, publisher events.Publisher, log *zap.Logger) *StreakEngine {
	if log == nil {
		log = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	streakCache := NewStreakCache(cache, cfg.CacheTTL, log)
	calendar := NewCalendar(users, cfg.RequireTimezone, cfg.Now, log)
	return &StreakEngine{
		users:      users,
		calendar:   calendar,
		compliance: NewComplianceCalculator(calendar, users, tasks, cfg.DefaultThreshold, log),
		ledger:     NewStreakLedger(db, calendar, streakCache, cfg.LockWait, log),
		awarder:    NewBadgeAwarder(db, streakCache, cfg.Now, log),
		cache:      streakCache,
		publisher:  publisher,
		log:        log,
	}
}

// Ledger exposes the underlying streak ledger.
func (e *StreakEngine) Ledger() *StreakLedger { return e.ledger }

// Awarder exposes the underlying badge awarder.
func (e *StreakEngine) Awarder() *BadgeAwarder { return e.awarder }

// EvaluateAndCredit evaluates the user's current local day and, when it is
// compliant, credits the streak and checks badges. It is safe to retry: a
// repeated call on the same day credits nothing and only repairs badges a
// previous attempt failed to insert.
func (e *StreakEngine) EvaluateAndCredit(ctx context.Context, userID uint) (*Evaluation, error) {
	user, err := e.users.FindUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	loc, err := e.calendar.LocationFor(user)
	if err != nil {
		return nil, err
	}
	today := LocalDate(e.calendar.Now(), loc)

	compliance, err := e.compliance.evaluateUser(ctx, user, loc, today)
	if err != nil {
		e.log.Warn("compliance evaluation failed", zap.Uint("user_id", userID), zap.Error(err))
		return nil, err
	}

	eval := &Evaluation{
		UserID:     userID,
		Date:       FormatDate(today),
		Compliance: compliance,
		NewBadges:  []BadgeView{},
	}

	if !compliance.Compliant {
		rec, err := e.ledger.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		eval.Streak = toStreakView(rec)
		return eval, nil
	}

	credit, err := e.ledger.CreditDay(ctx, userID, today)
	if err != nil {
		return nil, err
	}
	eval.Credited = credit.Changed
	eval.Outcome = credit.Outcome
	eval.Streak = toStreakView(credit.Record)

	granted, awardErr := e.awarder.CheckAndAward(ctx, userID)
	for _, award := range granted {
		eval.NewBadges = append(eval.NewBadges, toBadgeView(award))
	}

	e.publish(ctx, userID, credit, today, granted)

	if awardErr != nil {
		e.log.Warn("badge check incomplete", zap.Uint("user_id", userID), zap.Error(awardErr))
		return eval, awardErr
	}
	return eval, nil
}

// Summary returns the streak and badges for a user, served from cache when possible.
// Users without a record get zeroed defaults.
func (e *StreakEngine) Summary(ctx context.Context, userID uint) (*StreakSummary, error) {
	var view StreakView
	if !e.cache.get(ctx, StreakKey(userID), &view) {
		rec, err := e.ledger.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		view = toStreakView(rec)
		e.cache.set(ctx, StreakKey(userID), view)
	}

	var badges []BadgeView
	if !e.cache.get(ctx, BadgesKey(userID), &badges) {
		awards, err := e.awarder.ListAwards(ctx, userID)
		if err != nil {
			return nil, err
		}
		badges = make([]BadgeView, 0, len(awards))
		for _, award := range awards {
			badges = append(badges, toBadgeView(award))
		}
		e.cache.set(ctx, BadgesKey(userID), badges)
	}
	if badges == nil {
		badges = []BadgeView{}
	}

	return &StreakSummary{
		UserID: userID,
		Streak: view,
		Active: e.isActive(ctx, userID, view),
		Badges: badges,
	}, nil
}

// Invalidate drops the cached views for a user.
func (e *StreakEngine) Invalidate(ctx context.Context, userID uint) {
	e.cache.Invalidate(ctx, userID)
}

// isActive is computed per read since it depends on the current local day.
func (e *StreakEngine) isActive(ctx context.Context, userID uint, view StreakView) bool {
	if view.LastComplianceDate == nil || view.CurrentStreak == 0 {
		return false
	}
	last, err := ParseDate(*view.LastComplianceDate)
	if err != nil {
		return false
	}
	loc, err := e.calendar.Location(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			e.log.Debug("using UTC for streak activity", zap.Uint("user_id", userID), zap.Error(err))
		}
		loc = time.UTC
	}
	return DaysBetween(last, LocalDate(e.calendar.Now(), loc)) <= 1
}

// publish emits post-commit events. The ledger is authoritative, so failures
// are only logged.
func (e *StreakEngine) publish(ctx context.Context, userID uint, credit *CreditResult, day time.Time, granted []models.BadgeAward) {
	if !credit.Changed && len(granted) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	now := e.calendar.Now().UTC()
	if credit.Changed {
		evt := events.StreakCredited{
			EventID:            uuid.NewString(),
			UserID:             userID,
			Date:               FormatDate(day),
			Outcome:            credit.Outcome,
			CurrentStreak:      credit.Record.CurrentStreak,
			LongestStreak:      credit.Record.LongestStreak,
			TotalCompliantDays: credit.Record.TotalCompliantDays,
			OccurredAt:         now,
		}
		if err := e.publisher.Publish(ctx, events.TypeStreakCredited, userID, evt); err != nil {
			e.log.Warn("publish failed", zap.String("event", events.TypeStreakCredited), zap.Uint("user_id", userID), zap.Error(err))
		}
	}
	for _, award := range granted {
		evt := events.BadgeAwarded{
			EventID:   uuid.NewString(),
			UserID:    userID,
			BadgeType: string(award.BadgeType),
			AwardedAt: award.AwardedAt,
		}
		if err := e.publisher.Publish(ctx, events.TypeBadgeAwarded, userID, evt); err != nil {
			e.log.Warn("publish failed", zap.String("event", events.TypeBadgeAwarded), zap.Uint("user_id", userID), zap.Error(err))
		}
	}
}

func toStreakView(rec models.StreakRecord) StreakView {
	view := StreakView{
		CurrentStreak:      rec.CurrentStreak,
		LongestStreak:      rec.LongestStreak,
		TotalCompliantDays: rec.TotalCompliantDays,
	}
	if rec.LastComplianceDate != nil {
		s := FormatDate(*rec.LastComplianceDate)
		view.LastComplianceDate = &s
	}
	if rec.StreakStartDate != nil {
		s := FormatDate(*rec.StreakStartDate)
		view.StreakStartDate = &s
	}
	return view
}

func toBadgeView(award models.BadgeAward) BadgeView {
	view := BadgeView{BadgeType: award.BadgeType, AwardedAt: award.AwardedAt.UTC()}
	if m, ok := models.LookupMilestone(award.BadgeType); ok {
		view.Name = m.Name
		view.Description = m.Description
	}
	return view
}
