// internal/repository/achievement_repository.go
package repository

import (
	"context"
	"fmt"

	"go_5_learn_rewards/internal/middleware"
	"go_5_learn_rewards/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AchievementRepository interface {
	ListActive(ctx context.Context, db *gorm.DB) ([]*model.Achievement, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []uuid.UUID) ([]*model.Achievement, error)
	ListEarnedIDs(ctx context.Context, db *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error)
	ListEarned(ctx context.Context, db *gorm.DB, userID uuid.UUID) ([]*model.UserAchievement, error)
	// RecordAwards inserts the grant rows and applies the points
	// increment inside the caller's transaction. Inserts are
	// duplicate-safe: a (user, achievement) pair that already exists is
	// skipped rather than failed, so re-running a check is a no-op.
	RecordAwards(ctx context.Context, tx *gorm.DB, awards []*model.UserAchievement, userID uuid.UUID, totalPoints int) error
	// SumEarnedPoints totals the points of every achievement the user
	// holds, for the stats recompute.
	SumEarnedPoints(ctx context.Context, db *gorm.DB, userID uuid.UUID) (int, error)
}

type gormAchievementRepository struct{}

func NewGormAchievementRepository() AchievementRepository {
	return &gormAchievementRepository{}
}

func (r *gormAchievementRepository) ListActive(ctx context.Context, db *gorm.DB) ([]*model.Achievement, error) {
	var achievements []*model.Achievement
	result := db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("category ASC, display_order ASC").
		Find(&achievements)
	if result.Error != nil {
		return nil, fmt.Errorf("gormAchievementRepository.ListActive: %w", result.Error)
	}
	return achievements, nil
}

func (r *gormAchievementRepository) FindByIDs(ctx context.Context, db *gorm.DB, ids []uuid.UUID) ([]*model.Achievement, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var achievements []*model.Achievement
	result := db.WithContext(ctx).Where("achievement_id IN ?", ids).Find(&achievements)
	if result.Error != nil {
		return nil, fmt.Errorf("gormAchievementRepository.FindByIDs: %w", result.Error)
	}
	return achievements, nil
}

func (r *gormAchievementRepository) ListEarnedIDs(ctx context.Context, db *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	result := db.WithContext(ctx).
		Model(&model.UserAchievement{}).
		Where("user_id = ?", userID).
		Pluck("achievement_id", &ids)
	if result.Error != nil {
		return nil, fmt.Errorf("gormAchievementRepository.ListEarnedIDs: %w", result.Error)
	}
	return ids, nil
}

func (r *gormAchievementRepository) ListEarned(ctx context.Context, db *gorm.DB, userID uuid.UUID) ([]*model.UserAchievement, error) {
	var earned []*model.UserAchievement
	result := db.WithContext(ctx).
		Preload("Achievement").
		Where("user_id = ?", userID).
		Order("earned_at DESC").
		Find(&earned)
	if result.Error != nil {
		return nil, fmt.Errorf("gormAchievementRepository.ListEarned: %w", result.Error)
	}
	return earned, nil
}

func (r *gormAchievementRepository) RecordAwards(ctx context.Context, tx *gorm.DB, awards []*model.UserAchievement, userID uuid.UUID, totalPoints int) error {
	logger := middleware.GetLogger(ctx)
	if len(awards) == 0 {
		return nil
	}

	result := tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&awards)
	if result.Error != nil {
		logger.Error("Error recording achievement awards in DB",
			"error", result.Error,
			"user_id", userID.String(),
			"count", len(awards),
		)
		return fmt.Errorf("gormAchievementRepository.RecordAwards: %w", result.Error)
	}

	if totalPoints > 0 {
		result = tx.WithContext(ctx).
			Model(&model.UserStats{}).
			Where("user_id = ?", userID).
			Update("total_points_earned", gorm.Expr("total_points_earned + ?", totalPoints))
		if result.Error != nil {
			logger.Error("Error incrementing points in DB",
				"error", result.Error,
				"user_id", userID.String(),
				"points", totalPoints,
			)
			return fmt.Errorf("gormAchievementRepository.RecordAwards: %w", result.Error)
		}
	}
	return nil
}

func (r *gormAchievementRepository) SumEarnedPoints(ctx context.Context, db *gorm.DB, userID uuid.UUID) (int, error) {
	var total int64
	result := db.WithContext(ctx).
		Model(&model.UserAchievement{}).
		Joins("JOIN achievements ON achievements.achievement_id = user_achievements.achievement_id").
		Where("user_achievements.user_id = ?", userID).
		Select("COALESCE(SUM(achievements.points_awarded), 0)").
		Scan(&total)
	if result.Error != nil {
		return 0, fmt.Errorf("gormAchievementRepository.SumEarnedPoints: %w", result.Error)
	}
	return int(total), nil
}
