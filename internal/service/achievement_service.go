package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go_5_learn_rewards/internal/middleware"
	"go_5_learn_rewards/internal/model"
	"go_5_learn_rewards/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// AchievementService evaluates award rules for a user and records the
// grants they newly qualify for.
type AchievementService interface {
	// CheckAndAward evaluates every active achievement the user has not
	// yet earned and awards the ones whose criteria are met. A rule
	// that fails to evaluate is skipped, not fatal.
	CheckAndAward(ctx context.Context, userID uuid.UUID) ([]model.EarnedAchievement, error)
	Progress(ctx context.Context, userID uuid.UUID) ([]model.AchievementProgress, error)
	ListEarned(ctx context.Context, userID uuid.UUID) ([]model.EarnedAchievement, error)
}

type achievementService struct {
	db        *gorm.DB
	achRepo   repository.AchievementRepository
	statsRepo repository.StatsRepository
	evaluator CriteriaEvaluator
	now       func() time.Time
}

func NewAchievementService(db *gorm.DB, achRepo repository.AchievementRepository, statsRepo repository.StatsRepository, evaluator CriteriaEvaluator) AchievementService {
	return &achievementService{
		db:        db,
		achRepo:   achRepo,
		statsRepo: statsRepo,
		evaluator: evaluator,
		now:       time.Now,
	}
}

// awardMetadata is persisted with each grant for later auditing.
type awardMetadata struct {
	ValueAtAward int                 `json:"value_at_award"`
	Stats        model.StatsSnapshot `json:"stats"`
}

func (s *achievementService) CheckAndAward(ctx context.Context, userID uuid.UUID) ([]model.EarnedAchievement, error) {
	logger := middleware.GetLogger(ctx).With("user_id", userID.String())

	var (
		definitions []*model.Achievement
		earnedIDs   []uuid.UUID
		stats       *model.UserStats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		definitions, err = s.achRepo.ListActive(gctx, s.db)
		return err
	})
	g.Go(func() error {
		var err error
		earnedIDs, err = s.achRepo.ListEarnedIDs(gctx, s.db, userID)
		return err
	})
	g.Go(func() error {
		var err error
		stats, err = s.statsRepo.GetOrCreate(gctx, s.db, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		logger.Error("Error loading achievement check inputs", "error", err)
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "Failed to load achievement data.", "", fmt.Errorf("achievementService.CheckAndAward: %w", err))
	}

	earned := make(map[uuid.UUID]bool, len(earnedIDs))
	for _, id := range earnedIDs {
		earned[id] = true
	}

	candidates := make([]*model.Achievement, 0, len(definitions))
	for _, def := range definitions {
		if !earned[def.AchievementID] {
			candidates = append(candidates, def)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// Evaluate candidates concurrently. Each slot records its own
	// outcome so no locking is needed at the join.
	type evalResult struct {
		met     bool
		current int
	}
	results := make([]evalResult, len(candidates))
	eg, ectx := errgroup.WithContext(ctx)
	for i, def := range candidates {
		i, def := i, def
		eg.Go(func() error {
			met, current, err := s.evaluator.Evaluate(ectx, s.db, userID, def.Criteria.Criteria, stats)
			if err != nil {
				// One broken rule must not block the rest.
				logger.Warn("Criteria evaluation failed, skipping",
					"achievement_id", def.AchievementID.String(),
					"error", err,
				)
				return nil
			}
			results[i] = evalResult{met: met, current: current}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "Failed to evaluate achievements.", "", fmt.Errorf("achievementService.CheckAndAward: %w", err))
	}

	awardedAt := s.now()
	var (
		awards      []*model.UserAchievement
		awardedDefs []*model.Achievement
		totalPoints int
	)
	for i, def := range candidates {
		if !results[i].met {
			continue
		}
		meta, err := json.Marshal(awardMetadata{ValueAtAward: results[i].current, Stats: stats.Snapshot()})
		if err != nil {
			meta = nil
		}
		awards = append(awards, &model.UserAchievement{
			UserAchievementID: uuid.New(),
			UserID:            userID,
			AchievementID:     def.AchievementID,
			EarnedAt:          awardedAt,
			Metadata:          meta,
		})
		awardedDefs = append(awardedDefs, def)
		totalPoints += def.PointsAwarded
	}
	if len(awards) == 0 {
		return nil, nil
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		return s.achRepo.RecordAwards(ctx, tx, awards, userID, totalPoints)
	})
	if err != nil {
		logger.Error("Error awarding achievements", "error", err, "count", len(awards))
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "Failed to record achievements.", "", fmt.Errorf("achievementService.CheckAndAward: %w", err))
	}

	out := make([]model.EarnedAchievement, 0, len(awardedDefs))
	for _, def := range awardedDefs {
		out = append(out, model.EarnedAchievement{
			AchievementID: def.AchievementID,
			Name:          def.Name,
			Description:   def.Description,
			Category:      def.Category,
			PointsAwarded: def.PointsAwarded,
			EarnedAt:      awardedAt,
		})
	}
	logger.Info("Achievements awarded", "count", len(out), "points", totalPoints)
	return out, nil
}

func (s *achievementService) Progress(ctx context.Context, userID uuid.UUID) ([]model.AchievementProgress, error) {
	logger := middleware.GetLogger(ctx).With("user_id", userID.String())

	definitions, err := s.achRepo.ListActive(ctx, s.db)
	if err != nil {
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "Failed to load achievements.", "", err)
	}
	grants, err := s.achRepo.ListEarned(ctx, s.db, userID)
	if err != nil {
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "Failed to load earned achievements.", "", err)
	}
	stats, err := s.statsRepo.GetOrCreate(ctx, s.db, userID)
	if err != nil {
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "Failed to load user stats.", "", err)
	}

	earnedAt := make(map[uuid.UUID]time.Time, len(grants))
	for _, g := range grants {
		earnedAt[g.AchievementID] = g.EarnedAt
	}

	progress := make([]model.AchievementProgress, 0, len(definitions))
	for _, def := range definitions {
		threshold := CriteriaThreshold(def.Criteria.Criteria)
		p := model.AchievementProgress{
			AchievementID: def.AchievementID,
			Name:          def.Name,
			Description:   def.Description,
			Category:      def.Category,
			Threshold:     threshold,
		}
		if at, ok := earnedAt[def.AchievementID]; ok {
			at := at
			p.IsCompleted = true
			p.CompletedAt = &at
			p.Progress = threshold
		} else {
			_, current, err := s.evaluator.Evaluate(ctx, s.db, userID, def.Criteria.Criteria, stats)
			if err != nil {
				logger.Warn("Criteria evaluation failed in progress view",
					"achievement_id", def.AchievementID.String(),
					"error", err,
				)
			}
			if current > threshold {
				current = threshold
			}
			p.Progress = current
			if threshold > 0 {
				p.NextMilestone = &model.NextMilestone{
					Name:      def.Name,
					Threshold: threshold,
					Remaining: threshold - current,
				}
			}
		}
		progress = append(progress, p)
	}
	return progress, nil
}

func (s *achievementService) ListEarned(ctx context.Context, userID uuid.UUID) ([]model.EarnedAchievement, error) {
	grants, err := s.achRepo.ListEarned(ctx, s.db, userID)
	if err != nil {
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "Failed to load earned achievements.", "", err)
	}
	out := make([]model.EarnedAchievement, 0, len(grants))
	for _, g := range grants {
		e := model.EarnedAchievement{
			AchievementID: g.AchievementID,
			EarnedAt:      g.EarnedAt,
		}
		if g.Achievement != nil {
			e.Name = g.Achievement.Name
			e.Description = g.Achievement.Description
			e.Category = g.Achievement.Category
			e.PointsAwarded = g.Achievement.PointsAwarded
		}
		out = append(out, e)
	}
	return out, nil
}
