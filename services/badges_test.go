package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/devarispbrown/gtsd/models"
	"github.com/devarispbrown/gtsd/testutil"
)

func badgeTypes(awards []models.BadgeAward) []models.BadgeType {
	out := make([]models.BadgeType, 0, len(awards))
	for _, a := range awards {
		out = append(out, a.BadgeType)
	}
	return out
}

func TestCheckAndAwardWithoutRecord(t *testing.T) {
	db := testutil.OpenTestDB(t)
	awarder := NewBadgeAwarder(db, nil, nil, nil)

	granted, err := awarder.CheckAndAward(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, granted)
}

func TestBadgeMilestoneScenario(t *testing.T) {
	db := testutil.OpenTestDB(t)
	user := testutil.CreateUser(t, db, "gia", "UTC")
	cache := &recordingCache{}
	ledger := newTestLedger(t, db, &fixedClock{now: time.Now()}, cache)
	awarder := NewBadgeAwarder(db, NewStreakCache(cache, time.Minute, nil), nil, nil)
	ctx := context.Background()
	day1 := mustDate(t, "2024-09-01")

	res, err := ledger.CreditDay(ctx, user.ID, day1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Record.CurrentStreak)
	assert.Equal(t, 1, res.Record.LongestStreak)
	assert.Equal(t, 1, res.Record.TotalCompliantDays)

	granted, err := awarder.CheckAndAward(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.BadgeType{models.BadgeDayOneDone}, badgeTypes(granted))

	granted, err = awarder.CheckAndAward(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, granted)

	for i := 1; i < 7; i++ {
		_, err := ledger.CreditDay(ctx, user.ID, day1.AddDate(0, 0, i))
		require.NoError(t, err)
	}
	granted, err = awarder.CheckAndAward(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.BadgeType{models.BadgeWeekWarrior}, badgeTypes(granted))

	awards, err := awarder.ListAwards(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.BadgeType{models.BadgeDayOneDone, models.BadgeWeekWarrior}, badgeTypes(awards))
}

func TestConcurrentCheckAndAwardInsertsOnce(t *testing.T) {
	db := testutil.OpenTestDB(t)
	start := mustDate(t, "2024-02-01")
	last := start.AddDate(0, 0, 6)
	require.NoError(t, db.Create(&models.StreakRecord{
		UserID:             11,
		CurrentStreak:      7,
		LongestStreak:      7,
		TotalCompliantDays: 7,
		StreakStartDate:    &start,
		LastComplianceDate: &last,
	}).Error)

	awarder := NewBadgeAwarder(db, nil, nil, nil)
	const callers = 4
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			granted, err := awarder.CheckAndAward(context.Background(), 11)
			assert.NoError(t, err)
			mu.Lock()
			total += len(granted)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, total)
	var count int64
	require.NoError(t, db.Model(&models.BadgeAward{}).
		Where("user_id = ? AND badge_type = ?", 11, models.BadgeWeekWarrior).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUniqueIndexRejectsDuplicateAward(t *testing.T) {
	db := testutil.OpenTestDB(t)
	now := time.Now().UTC()
	require.NoError(t, db.Create(&models.BadgeAward{ID: "a", UserID: 3, BadgeType: models.BadgeDayOneDone, AwardedAt: now}).Error)

	err := db.Create(&models.BadgeAward{ID: "b", UserID: 3, BadgeType: models.BadgeDayOneDone, AwardedAt: now}).Error
	require.Error(t, err)
	assert.ErrorIs(t, classifyDBError(err), ErrIntegrityViolation)
}

func TestCheckAndAwardInvalidatesOnlyWhenGranted(t *testing.T) {
	db := testutil.OpenTestDB(t)
	start := mustDate(t, "2024-02-01")
	require.NoError(t, db.Create(&models.StreakRecord{
		UserID: 12, CurrentStreak: 1, LongestStreak: 1, TotalCompliantDays: 1,
		StreakStartDate: &start, LastComplianceDate: &start,
	}).Error)

	cache := &recordingCache{}
	awarder := NewBadgeAwarder(db, NewStreakCache(cache, time.Minute, nil), nil, nil)

	_, err := awarder.CheckAndAward(context.Background(), 12)
	require.NoError(t, err)
	_, err = awarder.CheckAndAward(context.Background(), 12)
	require.NoError(t, err)

	require.Equal(t, 1, cache.deletes())
	assert.Equal(t, []string{StreakKey(12), BadgesKey(12)}, cache.deleted[0])
}

func TestCheckAndAwardContinuesPastFailedBadge(t *testing.T) {
	db := testutil.OpenTestDB(t)
	start := mustDate(t, "2024-03-01")
	last := start.AddDate(0, 0, 29)
	require.NoError(t, db.Create(&models.StreakRecord{
		UserID:             21,
		CurrentStreak:      30,
		LongestStreak:      30,
		TotalCompliantDays: 30,
		StreakStartDate:    &start,
		LastComplianceDate: &last,
	}).Error)

	const failWeek = "test:fail_week_warrior"
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register(failWeek, func(tx *gorm.DB) {
		if award, ok := tx.Statement.Dest.(*models.BadgeAward); ok && award.BadgeType == models.BadgeWeekWarrior {
			tx.AddError(errors.New("write rejected"))
		}
	}))

	cache := &recordingCache{}
	awarder := NewBadgeAwarder(db, NewStreakCache(cache, time.Minute, nil), nil, nil)
	ctx := context.Background()

	granted, err := awarder.CheckAndAward(ctx, 21)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.True(t, IsRetryable(err))
	assert.Contains(t, err.Error(), string(models.BadgeWeekWarrior))
	assert.Equal(t, []models.BadgeType{models.BadgeDayOneDone, models.BadgePerfectMonth}, badgeTypes(granted))
	assert.Equal(t, 1, cache.deletes())

	awards, err := awarder.ListAwards(ctx, 21)
	require.NoError(t, err)
	assert.Equal(t, []models.BadgeType{models.BadgeDayOneDone, models.BadgePerfectMonth}, badgeTypes(awards))

	require.NoError(t, db.Callback().Create().Remove(failWeek))

	granted, err = awarder.CheckAndAward(ctx, 21)
	require.NoError(t, err)
	assert.Equal(t, []models.BadgeType{models.BadgeWeekWarrior}, badgeTypes(granted))

	awards, err = awarder.ListAwards(ctx, 21)
	require.NoError(t, err)
	assert.Equal(t, []models.BadgeType{models.BadgeDayOneDone, models.BadgeWeekWarrior, models.BadgePerfectMonth}, badgeTypes(awards))
}
