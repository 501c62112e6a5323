// internal/service/stats_service_test.go
package service

import (
	"context"
	"testing"
	"time"

	"go_5_learn_rewards/internal/model"
	"go_5_learn_rewards/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestStatsService(db *gorm.DB) StatsUpdateService {
	return NewStatsUpdateService(
		db,
		repository.NewGormUserRepository(),
		repository.NewGormStatsRepository(),
		repository.NewGormActivityRepository(),
		repository.NewGormAchievementRepository(),
		testJobsConfig(),
	)
}

func seedProgress(t *testing.T, db *gorm.DB, userID uuid.UUID, minutes int, completedAt *time.Time) {
	t.Helper()
	status := model.ProgressInProgress
	lastAccessed := time.Now()
	if completedAt != nil {
		status = model.ProgressCompleted
		lastAccessed = *completedAt
	}
	require.NoError(t, db.Create(&model.LessonProgress{
		ProgressID:       uuid.New(),
		UserID:           userID,
		LessonID:         uuid.New(),
		Status:           status,
		TimeSpentMinutes: minutes,
		CompletedAt:      completedAt,
		LastAccessed:     lastAccessed,
	}).Error)
}

func Test_statsUpdateService_UpdateUser(t *testing.T) {
	ctx := context.Background()
	db := setupServiceTestDB(t)
	svc := newTestStatsService(db)

	user := seedUser(t, db, "Nori")
	now := time.Now().UTC()
	today := now
	yesterday := now.AddDate(0, 0, -1)

	seedProgress(t, db, user.UserID, 30, &today)
	seedProgress(t, db, user.UserID, 45, &yesterday)
	seedProgress(t, db, user.UserID, 10, nil) // still in progress

	require.NoError(t, db.Create(&model.LessonNote{
		NoteID: uuid.New(), UserID: user.UserID, LessonID: uuid.New(), Content: "note",
	}).Error)
	require.NoError(t, db.Create(&model.LessonBookmark{
		BookmarkID: uuid.New(), UserID: user.UserID, LessonID: uuid.New(),
	}).Error)

	require.NoError(t, svc.UpdateUser(ctx, user.UserID))

	var stats model.UserStats
	require.NoError(t, db.Where("user_id = ?", user.UserID).First(&stats).Error)
	assert.Equal(t, 2, stats.TotalLessonsCompleted)
	assert.Equal(t, 85, stats.TotalTimeSpentMinutes)
	assert.Equal(t, 1, stats.TotalNotesCreated)
	assert.Equal(t, 1, stats.TotalBookmarksCreated)
	assert.Equal(t, 2, stats.CurrentStreak)
	assert.Equal(t, 2, stats.LongestStreak)
	require.NotNil(t, stats.LastActivityDate)
	assert.WithinDuration(t, now, *stats.LastActivityDate, time.Minute)
}

func Test_statsUpdateService_UpdateUser_LongestStreakNeverShrinks(t *testing.T) {
	ctx := context.Background()
	db := setupServiceTestDB(t)
	svc := newTestStatsService(db)

	user := seedUser(t, db, "Kei")
	require.NoError(t, db.Create(&model.UserStats{
		UserID:        user.UserID,
		LongestStreak: 10,
	}).Error)

	today := time.Now().UTC()
	seedProgress(t, db, user.UserID, 20, &today)

	require.NoError(t, svc.UpdateUser(ctx, user.UserID))

	var stats model.UserStats
	require.NoError(t, db.Where("user_id = ?", user.UserID).First(&stats).Error)
	assert.Equal(t, 1, stats.CurrentStreak)
	assert.Equal(t, 10, stats.LongestStreak)
}

func Test_statsUpdateService_UpdateUser_RecomputesPointsFromGrants(t *testing.T) {
	ctx := context.Background()
	db := setupServiceTestDB(t)
	svc := newTestStatsService(db)

	user := seedUser(t, db, "Emi")
	// A drifted counter gets replaced by the sum over the grant rows.
	require.NoError(t, db.Create(&model.UserStats{
		UserID:            user.UserID,
		TotalPointsEarned: 120,
	}).Error)

	first := seedAchievement(t, db, model.LessonsCompletedCriteria{Threshold: 1}, 25)
	second := seedAchievement(t, db, model.NotesTakenCriteria{Threshold: 1}, 40)
	for _, a := range []*model.Achievement{first, second} {
		require.NoError(t, db.Create(&model.UserAchievement{
			UserAchievementID: uuid.New(),
			UserID:            user.UserID,
			AchievementID:     a.AchievementID,
			EarnedAt:          time.Now(),
		}).Error)
	}

	today := time.Now().UTC()
	seedProgress(t, db, user.UserID, 15, &today)

	require.NoError(t, svc.UpdateUser(ctx, user.UserID))

	var stats model.UserStats
	require.NoError(t, db.Where("user_id = ?", user.UserID).First(&stats).Error)
	assert.Equal(t, 65, stats.TotalPointsEarned)
	assert.Equal(t, 1, stats.TotalLessonsCompleted)
}

func Test_statsUpdateService_UpdateAll(t *testing.T) {
	ctx := context.Background()
	db := setupServiceTestDB(t)
	svc := newTestStatsService(db)

	today := time.Now().UTC()
	for _, name := range []string{"UserA", "UserB", "UserC"} {
		u := seedUser(t, db, name)
		seedProgress(t, db, u.UserID, 25, &today)
	}

	result := svc.UpdateAll(ctx)
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 0, result.Errors)

	var count int64
	require.NoError(t, db.Model(&model.UserStats{}).Where("total_lessons_completed = ?", 1).Count(&count).Error)
	assert.EqualValues(t, 3, count)
}

func Test_statsUpdateService_UpdateAll_SkipsFreshRows(t *testing.T) {
	ctx := context.Background()
	db := setupServiceTestDB(t)
	svc := newTestStatsService(db)

	today := time.Now().UTC()
	user := seedUser(t, db, "Fresh")
	seedProgress(t, db, user.UserID, 25, &today)

	// A row refreshed moments ago is left alone.
	require.NoError(t, db.Create(&model.UserStats{UserID: user.UserID}).Error)

	result := svc.UpdateAll(ctx)
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.Processed)

	// Age the row past the refresh window and it gets recomputed.
	stale := time.Now().Add(-2 * time.Hour)
	require.NoError(t, db.Model(&model.UserStats{}).
		Where("user_id = ?", user.UserID).
		UpdateColumn("updated_at", stale).Error)

	result = svc.UpdateAll(ctx)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Processed)

	var stats model.UserStats
	require.NoError(t, db.Where("user_id = ?", user.UserID).First(&stats).Error)
	assert.Equal(t, 1, stats.TotalLessonsCompleted)
}

func Test_statsUpdateService_UpdateAll_SingleFlight(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newTestStatsService(db)

	// Nothing to do, but the guard still cycles cleanly.
	result := svc.UpdateAll(context.Background())
	assert.True(t, result.Success)
	assert.False(t, svc.Running())
}
