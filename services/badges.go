package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/devarispbrown/gtsd/models"
	"github.com/devarispbrown/gtsd/observability"
)

// BadgeAwarder grants milestone badges exactly once per (user, badge).
// The unique index on badge_awards is the idempotency mechanism.
type BadgeAwarder struct {
	db    *gorm.DB
	cache *StreakCache
	now   func() time.Time
	log   *zap.Logger
}

// NewBadgeAwarder builds an awarder. A nil clock means time.Now.
func NewBadgeAwarder(db *gorm.DB, cache *StreakCache, now func() time.Time, log *zap.Logger) *BadgeAwarder {
	if cache == nil {
		cache = NewStreakCache(nil, 0, log)
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &BadgeAwarder{db: db, cache: cache, now: now, log: log}
}

// CheckAndAward evaluates every milestone against the committed streak and
// returns only the badges this call inserted. A user without a streak record
// gets nothing. A failed insert does not stop the remaining milestones; its
// error is returned alongside whatever was granted.
func (a *BadgeAwarder) CheckAndAward(ctx context.Context, userID uint) ([]models.BadgeAward, error) {
	var (
		granted  []models.BadgeAward
		failures []error
	)

	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		granted, failures = nil, nil

		var rec models.StreakRecord
		err := tx.Clauses(clause.Locking{Strength: "SHARE"}).
			Where("user_id = ?", userID).
			Take(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		awardedAt := a.now().UTC()
		for _, m := range models.MilestoneCatalog {
			if rec.CurrentStreak < m.Threshold {
				continue
			}
			award, inserted, err := insertAward(tx, userID, m.Badge, awardedAt)
			if err != nil {
				a.log.Warn("badge insert failed", zap.Uint("user_id", userID), zap.String("badge", string(m.Badge)), zap.Error(err))
				failures = append(failures, fmt.Errorf("%s: %w", m.Badge, err))
				continue
			}
			if inserted {
				granted = append(granted, award)
			}
		}
		return nil
	})
	if err != nil {
		return nil, classifyDBError(err)
	}

	if len(granted) > 0 {
		a.cache.Invalidate(ctx, userID)
		for _, award := range granted {
			observability.RecordBadgeAwarded(string(award.BadgeType))
			a.log.Info("badge awarded", zap.Uint("user_id", userID), zap.String("badge", string(award.BadgeType)))
		}
	}
	if len(failures) > 0 {
		return granted, classifyDBError(errors.Join(failures...))
	}
	return granted, nil
}

// ListAwards returns the user's badges in catalog order.
func (a *BadgeAwarder) ListAwards(ctx context.Context, userID uint) ([]models.BadgeAward, error) {
	var awards []models.BadgeAward
	if err := a.db.WithContext(ctx).Where("user_id = ?", userID).Find(&awards).Error; err != nil {
		return nil, classifyDBError(err)
	}
	sort.SliceStable(awards, func(i, j int) bool {
		return catalogIndex(awards[i].BadgeType) < catalogIndex(awards[j].BadgeType)
	})
	return awards, nil
}

// insertAward does insert-or-ignore under a savepoint so a failure leaves the
// enclosing transaction usable for the next badge.
func insertAward(tx *gorm.DB, userID uint, badge models.BadgeType, awardedAt time.Time) (models.BadgeAward, bool, error) {
	savepoint := "award_" + string(badge)
	if err := tx.SavePoint(savepoint).Error; err != nil {
		return models.BadgeAward{}, false, err
	}

	award := models.BadgeAward{
		ID:        uuid.NewString(),
		UserID:    userID,
		BadgeType: badge,
		AwardedAt: awardedAt,
	}
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "badge_type"}},
		DoNothing: true,
	}).Create(&award)
	if res.Error != nil {
		if rbErr := tx.RollbackTo(savepoint).Error; rbErr != nil {
			return models.BadgeAward{}, false, errors.Join(res.Error, rbErr)
		}
		return models.BadgeAward{}, false, res.Error
	}
	return award, res.RowsAffected == 1, nil
}

func catalogIndex(badge models.BadgeType) int {
	for i, m := range models.MilestoneCatalog {
		if m.Badge == badge {
			return i
		}
	}
	return len(models.MilestoneCatalog)
}
