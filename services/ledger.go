package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/devarispbrown/gtsd/models"
	"github.com/devarispbrown/gtsd/observability"
)

// CreditResult is the outcome of one credit attempt.
type CreditResult struct {
	Record  models.StreakRecord
	Outcome string
	// Changed is false for the same-day no-op.
	Changed bool
}

// StreakLedger owns the per-user streak row. Every mutation runs as a locked
// read-modify-write inside one transaction.
type StreakLedger struct {
	db       *gorm.DB
	calendar *Calendar
	cache    *StreakCache
	locks    *keyLock
	lockWait time.Duration
	log      *zap.Logger
}

// NewStreakLedger builds a ledger. lockWait bounds both the in-process and the row lock wait.
func NewStreakLedger(db *gorm.DB, calendar *Calendar, cache *StreakCache, lockWait time.Duration, log *zap.Logger) *StreakLedger {
	if cache == nil {
		cache = NewStreakCache(nil, 0, log)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &StreakLedger{
		db:       db,
		calendar: calendar,
		cache:    cache,
		locks:    newKeyLock(),
		lockWait: lockWait,
		log:      log,
	}
}

// Increment credits the user's current local day.
func (l *StreakLedger) Increment(ctx context.Context, userID uint) (*models.StreakRecord, error) {
	today, _, err := l.calendar.Today(ctx, userID)
	if err != nil {
		return nil, err
	}
	res, err := l.CreditDay(ctx, userID, today)
	if err != nil {
		return nil, err
	}
	return &res.Record, nil
}

// CreditDay credits day (a user-local calendar date). Crediting a day that is
// already credited, or earlier than the last credited day, changes nothing.
func (l *StreakLedger) CreditDay(ctx context.Context, userID uint, day time.Time) (*CreditResult, error) {
	day = CivilDate(day)

	release, err := l.locks.acquire(ctx, userID, l.lockWait)
	if err != nil {
		if errors.Is(err, ErrLockTimeout) {
			observability.RecordLockTimeout()
			l.log.Warn("streak lock wait timed out", zap.Uint("user_id", userID))
		}
		return nil, err
	}
	defer release()

	var result CreditResult
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := l.boundLockWait(tx); err != nil {
			return err
		}
		current, err := lockRecord(tx, userID)
		if err != nil {
			return err
		}

		next, outcome := applyCredit(*current, day)
		result = CreditResult{Record: next, Outcome: outcome, Changed: outcome != observability.OutcomeNoop}
		if !result.Changed {
			return nil
		}
		if err := next.Validate(); err != nil {
			return err
		}
		return tx.Save(&result.Record).Error
	})
	if err != nil {
		classified := classifyDBError(err)
		switch {
		case errors.Is(classified, ErrLockTimeout):
			observability.RecordLockTimeout()
			l.log.Warn("streak row lock wait timed out", zap.Uint("user_id", userID), zap.Error(err))
		case errors.Is(classified, ErrIntegrityViolation):
			l.log.Error("streak credit aborted", zap.Uint("user_id", userID), zap.Error(err))
		default:
			l.log.Warn("streak credit failed", zap.Uint("user_id", userID), zap.Error(err))
		}
		return nil, classified
	}

	observability.RecordCredit(result.Outcome)
	if result.Changed {
		l.cache.Invalidate(ctx, userID)
		l.log.Info("streak credited",
			zap.Uint("user_id", userID),
			zap.String("date", FormatDate(day)),
			zap.String("outcome", result.Outcome),
			zap.Int("current_streak", result.Record.CurrentStreak))
	}
	return &result, nil
}

// Get returns the user's record, or a zeroed record when none exists yet.
func (l *StreakLedger) Get(ctx context.Context, userID uint) (models.StreakRecord, error) {
	var rec models.StreakRecord
	err := l.db.WithContext(ctx).Where("user_id = ?", userID).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.StreakRecord{UserID: userID}, nil
	}
	if err != nil {
		return models.StreakRecord{}, classifyDBError(err)
	}
	normalizeDates(&rec)
	return rec, nil
}

// boundLockWait caps how long this transaction waits on a row lock.
func (l *StreakLedger) boundLockWait(tx *gorm.DB) error {
	if l.lockWait <= 0 {
		return nil
	}
	switch tx.Dialector.Name() {
	case "postgres":
		return tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", l.lockWait.Milliseconds())).Error
	default:
		// mysql takes innodb_lock_wait_timeout and sqlite takes busy_timeout from the DSN
		return nil
	}
}

// lockRecord makes sure the user's row exists, then locks it FOR UPDATE.
// The insert is a no-op when the row is already there, so two first-time
// credits race on the unique key and the loser waits for the winner's lock.
func lockRecord(tx *gorm.DB, userID uint) (*models.StreakRecord, error) {
	seed := models.StreakRecord{UserID: userID}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&seed).Error; err != nil {
		return nil, err
	}

	var rec models.StreakRecord
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		Take(&rec).Error; err != nil {
		return nil, err
	}
	normalizeDates(&rec)
	return &rec, nil
}

// applyCredit is the streak transition for crediting day.
func applyCredit(rec models.StreakRecord, day time.Time) (models.StreakRecord, string) {
	day = CivilDate(day)
	outcome := observability.OutcomeStarted

	if rec.LastComplianceDate == nil {
		rec.CurrentStreak = 1
		rec.StreakStartDate = datePtr(day)
	} else {
		gap := DaysBetween(*rec.LastComplianceDate, day)
		switch {
		case gap <= 0:
			return rec, observability.OutcomeNoop
		case gap == 1:
			rec.CurrentStreak++
			outcome = observability.OutcomeContinued
		default:
			rec.CurrentStreak = 1
			rec.StreakStartDate = datePtr(day)
			outcome = observability.OutcomeReset
		}
	}

	if rec.CurrentStreak > rec.LongestStreak {
		rec.LongestStreak = rec.CurrentStreak
	}
	rec.TotalCompliantDays++
	rec.LastComplianceDate = datePtr(day)
	return rec, outcome
}

func normalizeDates(rec *models.StreakRecord) {
	if rec.LastComplianceDate != nil {
		rec.LastComplianceDate = datePtr(*rec.LastComplianceDate)
	}
	if rec.StreakStartDate != nil {
		rec.StreakStartDate = datePtr(*rec.StreakStartDate)
	}
}

func datePtr(t time.Time) *time.Time {
	d := CivilDate(t)
	return &d
}
