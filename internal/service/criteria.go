package service

import (
	"context"
	"time"

	"go_5_learn_rewards/internal/middleware"
	"go_5_learn_rewards/internal/model"
	"go_5_learn_rewards/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CriteriaEvaluator decides whether a single award rule is satisfied
// and reports the user's current value against it.
type CriteriaEvaluator interface {
	Evaluate(ctx context.Context, db *gorm.DB, userID uuid.UUID, c model.Criteria, stats *model.UserStats) (met bool, current int, err error)
}

type criteriaEvaluator struct {
	activityRepo repository.ActivityRepository
	now          func() time.Time
}

func NewCriteriaEvaluator(activityRepo repository.ActivityRepository) CriteriaEvaluator {
	return &criteriaEvaluator{
		activityRepo: activityRepo,
		now:          time.Now,
	}
}

func (e *criteriaEvaluator) Evaluate(ctx context.Context, db *gorm.DB, userID uuid.UUID, c model.Criteria, stats *model.UserStats) (bool, int, error) {
	switch c := c.(type) {
	case model.LessonsCompletedCriteria:
		return stats.TotalLessonsCompleted >= c.Threshold, stats.TotalLessonsCompleted, nil
	case model.NotesTakenCriteria:
		return stats.TotalNotesCreated >= c.Threshold, stats.TotalNotesCreated, nil
	case model.BookmarksCreatedCriteria:
		return stats.TotalBookmarksCreated >= c.Threshold, stats.TotalBookmarksCreated, nil
	case model.TimeSpentCriteria:
		return stats.TotalTimeSpentMinutes >= c.Threshold, stats.TotalTimeSpentMinutes, nil
	case model.StreakDaysCriteria:
		return stats.CurrentStreak >= c.Threshold, stats.CurrentStreak, nil
	case model.ConsecutiveDaysCriteria:
		return stats.CurrentStreak >= c.Threshold, stats.CurrentStreak, nil
	case model.SpeedCompletionCriteria:
		// The stats snapshot carries no window info, so this one reads
		// live progress rows.
		since := e.now().AddDate(0, 0, -c.DaysAllowed)
		count, err := e.activityRepo.CountCompletedSince(ctx, db, userID, since)
		if err != nil {
			return false, 0, err
		}
		return count >= int64(c.LessonsRequired), int(count), nil
	case model.EngagementScoreCriteria:
		w := c.Weights
		score := stats.TotalLessonsCompleted*w.Lessons +
			stats.TotalNotesCreated*w.Notes +
			stats.TotalBookmarksCreated*w.Bookmarks +
			stats.CurrentStreak*w.Streak
		return score >= c.Threshold, score, nil
	default:
		// Unknown rule kinds never satisfy.
		middleware.GetLogger(ctx).Warn("Skipping unevaluable criteria",
			"kind", string(c.Kind()),
			"user_id", userID.String(),
		)
		return false, 0, nil
	}
}

// CriteriaThreshold returns the target value of a rule for progress
// reporting.
func CriteriaThreshold(c model.Criteria) int {
	switch c := c.(type) {
	case model.LessonsCompletedCriteria:
		return c.Threshold
	case model.NotesTakenCriteria:
		return c.Threshold
	case model.BookmarksCreatedCriteria:
		return c.Threshold
	case model.TimeSpentCriteria:
		return c.Threshold
	case model.StreakDaysCriteria:
		return c.Threshold
	case model.ConsecutiveDaysCriteria:
		return c.Threshold
	case model.SpeedCompletionCriteria:
		return c.LessonsRequired
	case model.EngagementScoreCriteria:
		return c.Threshold
	default:
		return 0
	}
}
