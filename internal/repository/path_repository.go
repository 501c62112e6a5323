// internal/repository/path_repository.go
package repository

import (
	"context"
	"fmt"

	"go_5_learn_rewards/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PathRepository interface {
	FindWithLessons(ctx context.Context, db *gorm.DB, ids []uuid.UUID) ([]*model.LearningPath, error)
}

type gormPathRepository struct{}

func NewGormPathRepository() PathRepository {
	return &gormPathRepository{}
}

func (r *gormPathRepository) FindWithLessons(ctx context.Context, db *gorm.DB, ids []uuid.UUID) ([]*model.LearningPath, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var paths []*model.LearningPath
	result := db.WithContext(ctx).
		Preload("Lessons").
		Where("path_id IN ?", ids).
		Find(&paths)
	if result.Error != nil {
		return nil, fmt.Errorf("gormPathRepository.FindWithLessons: %w", result.Error)
	}
	return paths, nil
}
