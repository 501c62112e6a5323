// internal/service/criteria_test.go
package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go_5_learn_rewards/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// stubActivityRepo satisfies repository.ActivityRepository for
// evaluator tests without a database.
type stubActivityRepo struct {
	completedSince int64
	err            error
}

func (s *stubActivityRepo) CompletionDates(ctx context.Context, db *gorm.DB, userID uuid.UUID) ([]time.Time, error) {
	return nil, s.err
}
func (s *stubActivityRepo) CountCompletedSince(ctx context.Context, db *gorm.DB, userID uuid.UUID, since time.Time) (int64, error) {
	return s.completedSince, s.err
}
func (s *stubActivityRepo) CompletedLessonIDs(ctx context.Context, db *gorm.DB, userID uuid.UUID, lessonIDs []uuid.UUID) ([]uuid.UUID, error) {
	return nil, s.err
}
func (s *stubActivityRepo) CountNotes(ctx context.Context, db *gorm.DB, userID uuid.UUID) (int64, error) {
	return 0, s.err
}
func (s *stubActivityRepo) CountBookmarks(ctx context.Context, db *gorm.DB, userID uuid.UUID) (int64, error) {
	return 0, s.err
}
func (s *stubActivityRepo) Summary(ctx context.Context, db *gorm.DB, userID uuid.UUID) (*model.ActivitySummary, error) {
	return nil, s.err
}

func Test_criteriaEvaluator_CounterKinds(t *testing.T) {
	ctx := context.Background()
	evaluator := NewCriteriaEvaluator(&stubActivityRepo{})
	userID := uuid.New()

	stats := &model.UserStats{
		UserID:                userID,
		TotalLessonsCompleted: 12,
		TotalNotesCreated:     4,
		TotalBookmarksCreated: 7,
		TotalTimeSpentMinutes: 300,
		CurrentStreak:         5,
		LongestStreak:         9,
	}

	tests := []struct {
		name        string
		criteria    model.Criteria
		wantMet     bool
		wantCurrent int
	}{
		{"lessons met", model.LessonsCompletedCriteria{Threshold: 10}, true, 12},
		{"lessons not met", model.LessonsCompletedCriteria{Threshold: 13}, false, 12},
		{"lessons exactly at threshold", model.LessonsCompletedCriteria{Threshold: 12}, true, 12},
		{"notes", model.NotesTakenCriteria{Threshold: 5}, false, 4},
		{"bookmarks", model.BookmarksCreatedCriteria{Threshold: 7}, true, 7},
		{"time spent", model.TimeSpentCriteria{Threshold: 240}, true, 300},
		{"streak uses current not longest", model.StreakDaysCriteria{Threshold: 6}, false, 5},
		{"consecutive days", model.ConsecutiveDaysCriteria{Threshold: 5}, true, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			met, current, err := evaluator.Evaluate(ctx, nil, userID, tt.criteria, stats)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMet, met)
			assert.Equal(t, tt.wantCurrent, current)
		})
	}
}

func Test_criteriaEvaluator_EngagementScore(t *testing.T) {
	ctx := context.Background()
	evaluator := NewCriteriaEvaluator(&stubActivityRepo{})
	userID := uuid.New()

	// 10*1 + 2*2 + 5*1 + 1*3 = 22 with the default weights.
	stats := &model.UserStats{
		TotalLessonsCompleted: 10,
		TotalNotesCreated:     2,
		TotalBookmarksCreated: 5,
		CurrentStreak:         1,
	}

	c := model.EngagementScoreCriteria{Threshold: 20, Weights: model.DefaultEngagementWeights()}
	met, current, err := evaluator.Evaluate(ctx, nil, userID, c, stats)
	require.NoError(t, err)
	assert.True(t, met)
	assert.Equal(t, 22, current)

	c.Threshold = 23
	met, current, err = evaluator.Evaluate(ctx, nil, userID, c, stats)
	require.NoError(t, err)
	assert.False(t, met)
	assert.Equal(t, 22, current)
}

func Test_criteriaEvaluator_SpeedCompletion(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	stats := &model.UserStats{}

	c := model.SpeedCompletionCriteria{LessonsRequired: 5, DaysAllowed: 7}

	evaluator := NewCriteriaEvaluator(&stubActivityRepo{completedSince: 6})
	met, current, err := evaluator.Evaluate(ctx, nil, userID, c, stats)
	require.NoError(t, err)
	assert.True(t, met)
	assert.Equal(t, 6, current)

	evaluator = NewCriteriaEvaluator(&stubActivityRepo{completedSince: 4})
	met, current, err = evaluator.Evaluate(ctx, nil, userID, c, stats)
	require.NoError(t, err)
	assert.False(t, met)
	assert.Equal(t, 4, current)
}

func Test_criteriaEvaluator_SpeedCompletion_QueryError(t *testing.T) {
	ctx := context.Background()
	evaluator := NewCriteriaEvaluator(&stubActivityRepo{err: errors.New("db gone")})

	c := model.SpeedCompletionCriteria{LessonsRequired: 5, DaysAllowed: 7}
	met, _, err := evaluator.Evaluate(ctx, nil, uuid.New(), c, &model.UserStats{})
	assert.Error(t, err)
	assert.False(t, met)
}

func Test_criteriaEvaluator_UnknownKindFailsClosed(t *testing.T) {
	ctx := context.Background()
	evaluator := NewCriteriaEvaluator(&stubActivityRepo{})

	met, current, err := evaluator.Evaluate(ctx, nil, uuid.New(), model.UnknownCriteria{Type: "secret_handshake"}, &model.UserStats{})
	require.NoError(t, err)
	assert.False(t, met)
	assert.Equal(t, 0, current)
}
