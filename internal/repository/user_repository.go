// internal/repository/user_repository.go
package repository

import (
	"context"
	"fmt"
	"time"

	"go_5_learn_rewards/internal/middleware"
	"go_5_learn_rewards/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRepository interface {
	FindByIDs(ctx context.Context, db *gorm.DB, userIDs []uuid.UUID) ([]*model.User, error)
	// ListActive returns users with at least one lesson access inside the
	// trailing window, capped at limit.
	ListActive(ctx context.Context, db *gorm.DB, since time.Time, limit int) ([]model.ActiveUser, error)
	// ListWithProgress returns users owning at least one progress row, in
	// stable created_at order, capped at limit.
	ListWithProgress(ctx context.Context, db *gorm.DB, limit int) ([]uuid.UUID, error)
	// PurgeExpiredResetTokens clears password-reset tokens whose expiry
	// has passed and reports how many rows were touched.
	PurgeExpiredResetTokens(ctx context.Context, db *gorm.DB, now time.Time) (int64, error)
}

type gormUserRepository struct{}

func NewGormUserRepository() UserRepository {
	return &gormUserRepository{}
}

func (r *gormUserRepository) FindByIDs(ctx context.Context, db *gorm.DB, userIDs []uuid.UUID) ([]*model.User, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var users []*model.User
	result := db.WithContext(ctx).Where("user_id IN ?", userIDs).Find(&users)
	if result.Error != nil {
		return nil, fmt.Errorf("gormUserRepository.FindByIDs: %w", result.Error)
	}
	return users, nil
}

func (r *gormUserRepository) ListActive(ctx context.Context, db *gorm.DB, since time.Time, limit int) ([]model.ActiveUser, error) {
	logger := middleware.GetLogger(ctx)
	var users []model.ActiveUser
	result := db.WithContext(ctx).
		Model(&model.User{}).
		Select("users.user_id, users.email, users.name").
		Joins("JOIN lesson_progress ON lesson_progress.user_id = users.user_id").
		Where("lesson_progress.last_accessed >= ?", since).
		Where("users.deleted_at IS NULL").
		Group("users.user_id, users.email, users.name").
		Limit(limit).
		Find(&users)
	if result.Error != nil {
		logger.Error("Error listing active users in DB", "error", result.Error)
		return nil, fmt.Errorf("gormUserRepository.ListActive: %w", result.Error)
	}
	return users, nil
}

func (r *gormUserRepository) ListWithProgress(ctx context.Context, db *gorm.DB, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	result := db.WithContext(ctx).
		Model(&model.User{}).
		Select("users.user_id").
		Joins("JOIN lesson_progress ON lesson_progress.user_id = users.user_id").
		Where("users.deleted_at IS NULL").
		Group("users.user_id, users.created_at").
		Order("users.created_at ASC").
		Limit(limit).
		Find(&ids)
	if result.Error != nil {
		return nil, fmt.Errorf("gormUserRepository.ListWithProgress: %w", result.Error)
	}
	return ids, nil
}

func (r *gormUserRepository) PurgeExpiredResetTokens(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	result := db.WithContext(ctx).
		Model(&model.User{}).
		Where("reset_token_expires IS NOT NULL AND reset_token_expires < ?", now).
		Updates(map[string]interface{}{
			"reset_token":         nil,
			"reset_token_expires": nil,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("gormUserRepository.PurgeExpiredResetTokens: %w", result.Error)
	}
	return result.RowsAffected, nil
}
