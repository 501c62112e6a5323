// internal/repository/activity_repository.go
package repository

import (
	"context"
	"fmt"
	"time"

	"go_5_learn_rewards/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActivityRepository reads a user's raw learning activity. The
// eligibility checks never mutate through it.
type ActivityRepository interface {
	// CompletionDates returns the completion timestamps of the user's
	// completed lessons, newest first.
	CompletionDates(ctx context.Context, db *gorm.DB, userID uuid.UUID) ([]time.Time, error)
	CountCompletedSince(ctx context.Context, db *gorm.DB, userID uuid.UUID, since time.Time) (int64, error)
	CompletedLessonIDs(ctx context.Context, db *gorm.DB, userID uuid.UUID, lessonIDs []uuid.UUID) ([]uuid.UUID, error)
	CountNotes(ctx context.Context, db *gorm.DB, userID uuid.UUID) (int64, error)
	CountBookmarks(ctx context.Context, db *gorm.DB, userID uuid.UUID) (int64, error)
	Summary(ctx context.Context, db *gorm.DB, userID uuid.UUID) (*model.ActivitySummary, error)
}

type gormActivityRepository struct{}

func NewGormActivityRepository() ActivityRepository {
	return &gormActivityRepository{}
}

func (r *gormActivityRepository) CompletionDates(ctx context.Context, db *gorm.DB, userID uuid.UUID) ([]time.Time, error) {
	var dates []time.Time
	result := db.WithContext(ctx).
		Model(&model.LessonProgress{}).
		Where("user_id = ? AND status = ? AND completed_at IS NOT NULL", userID, model.ProgressCompleted).
		Order("completed_at DESC").
		Pluck("completed_at", &dates)
	if result.Error != nil {
		return nil, fmt.Errorf("gormActivityRepository.CompletionDates: %w", result.Error)
	}
	return dates, nil
}

func (r *gormActivityRepository) CountCompletedSince(ctx context.Context, db *gorm.DB, userID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	result := db.WithContext(ctx).
		Model(&model.LessonProgress{}).
		Where("user_id = ? AND status = ? AND completed_at >= ?", userID, model.ProgressCompleted, since).
		Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("gormActivityRepository.CountCompletedSince: %w", result.Error)
	}
	return count, nil
}

func (r *gormActivityRepository) CompletedLessonIDs(ctx context.Context, db *gorm.DB, userID uuid.UUID, lessonIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(lessonIDs) == 0 {
		return nil, nil
	}
	var ids []uuid.UUID
	result := db.WithContext(ctx).
		Model(&model.LessonProgress{}).
		Where("user_id = ? AND status = ? AND lesson_id IN ?", userID, model.ProgressCompleted, lessonIDs).
		Pluck("lesson_id", &ids)
	if result.Error != nil {
		return nil, fmt.Errorf("gormActivityRepository.CompletedLessonIDs: %w", result.Error)
	}
	return ids, nil
}

func (r *gormActivityRepository) CountNotes(ctx context.Context, db *gorm.DB, userID uuid.UUID) (int64, error) {
	var count int64
	result := db.WithContext(ctx).
		Model(&model.LessonNote{}).
		Where("user_id = ?", userID).
		Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("gormActivityRepository.CountNotes: %w", result.Error)
	}
	return count, nil
}

func (r *gormActivityRepository) CountBookmarks(ctx context.Context, db *gorm.DB, userID uuid.UUID) (int64, error) {
	var count int64
	result := db.WithContext(ctx).
		Model(&model.LessonBookmark{}).
		Where("user_id = ?", userID).
		Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("gormActivityRepository.CountBookmarks: %w", result.Error)
	}
	return count, nil
}

func (r *gormActivityRepository) Summary(ctx context.Context, db *gorm.DB, userID uuid.UUID) (*model.ActivitySummary, error) {
	type row struct {
		CompletedLessons int
		TotalMinutes     int
	}
	var res row
	result := db.WithContext(ctx).
		Model(&model.LessonProgress{}).
		Select(
			"COUNT(CASE WHEN status = ? THEN 1 END) AS completed_lessons, "+
				"COALESCE(SUM(time_spent_minutes), 0) AS total_minutes",
			model.ProgressCompleted,
		).
		Where("user_id = ?", userID).
		Scan(&res)
	if result.Error != nil {
		return nil, fmt.Errorf("gormActivityRepository.Summary: %w", result.Error)
	}

	// MAX(last_accessed) loses the column's time affinity on some
	// drivers; the newest row is read through the typed column instead.
	var last []time.Time
	result = db.WithContext(ctx).
		Model(&model.LessonProgress{}).
		Where("user_id = ?", userID).
		Order("last_accessed DESC").
		Limit(1).
		Pluck("last_accessed", &last)
	if result.Error != nil {
		return nil, fmt.Errorf("gormActivityRepository.Summary: %w", result.Error)
	}

	summary := &model.ActivitySummary{
		CompletedLessons: res.CompletedLessons,
		TotalMinutes:     res.TotalMinutes,
	}
	if len(last) > 0 {
		summary.LastActivity = &last[0]
	}
	return summary, nil
}
