// internal/repository/stats_repository.go
package repository

import (
	"context"
	"errors"
	"fmt"

	"go_5_learn_rewards/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StatsRepository interface {
	// GetOrCreate is the single create-if-absent path for stats rows.
	// The insert is a do-nothing upsert on the primary key, so two
	// concurrent callers cannot race a duplicate into existence.
	GetOrCreate(ctx context.Context, db *gorm.DB, userID uuid.UUID) (*model.UserStats, error)
	Find(ctx context.Context, db *gorm.DB, userID uuid.UUID) (*model.UserStats, error)
	Save(ctx context.Context, tx *gorm.DB, stats *model.UserStats) error
}

type gormStatsRepository struct{}

func NewGormStatsRepository() StatsRepository {
	return &gormStatsRepository{}
}

func (r *gormStatsRepository) GetOrCreate(ctx context.Context, db *gorm.DB, userID uuid.UUID) (*model.UserStats, error) {
	blank := model.UserStats{UserID: userID}
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&blank)
	if result.Error != nil {
		return nil, fmt.Errorf("gormStatsRepository.GetOrCreate: %w", result.Error)
	}

	// Re-read so callers always see the authoritative row, whether the
	// insert above landed or lost the race.
	var stats model.UserStats
	result = db.WithContext(ctx).Where("user_id = ?", userID).First(&stats)
	if result.Error != nil {
		return nil, fmt.Errorf("gormStatsRepository.GetOrCreate: %w", result.Error)
	}
	return &stats, nil
}

func (r *gormStatsRepository) Find(ctx context.Context, db *gorm.DB, userID uuid.UUID) (*model.UserStats, error) {
	var stats model.UserStats
	result := db.WithContext(ctx).Where("user_id = ?", userID).First(&stats)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("gormStatsRepository.Find: %w", result.Error)
	}
	return &stats, nil
}

func (r *gormStatsRepository) Save(ctx context.Context, tx *gorm.DB, stats *model.UserStats) error {
	result := tx.WithContext(ctx).Save(stats)
	if result.Error != nil {
		return fmt.Errorf("gormStatsRepository.Save: %w", result.Error)
	}
	return nil
}
