package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go_5_learn_rewards/internal/config"
	"go_5_learn_rewards/internal/middleware"
	"go_5_learn_rewards/internal/model"
	"go_5_learn_rewards/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// StatsUpdateService recomputes the per-user aggregate counters from
// the raw activity rows.
type StatsUpdateService interface {
	// UpdateAll walks users with progress in batches and refreshes
	// their stats rows. Rows refreshed recently are skipped. Only one
	// run is admitted at a time.
	UpdateAll(ctx context.Context) model.JobResult
	// UpdateUser recomputes a single user's counters and streaks.
	UpdateUser(ctx context.Context, userID uuid.UUID) error
	Running() bool
}

type statsUpdateService struct {
	db           *gorm.DB
	userRepo     repository.UserRepository
	statsRepo    repository.StatsRepository
	activityRepo repository.ActivityRepository
	achRepo      repository.AchievementRepository
	jobs         config.JobsConfig
	running      atomic.Bool
	now          func() time.Time
}

func NewStatsUpdateService(
	db *gorm.DB,
	userRepo repository.UserRepository,
	statsRepo repository.StatsRepository,
	activityRepo repository.ActivityRepository,
	achRepo repository.AchievementRepository,
	jobs config.JobsConfig,
) StatsUpdateService {
	return &statsUpdateService{
		db:           db,
		userRepo:     userRepo,
		statsRepo:    statsRepo,
		activityRepo: activityRepo,
		achRepo:      achRepo,
		jobs:         jobs,
		now:          time.Now,
	}
}

func (s *statsUpdateService) Running() bool {
	return s.running.Load()
}

func (s *statsUpdateService) UpdateAll(ctx context.Context) model.JobResult {
	logger := middleware.GetLogger(ctx)

	if !s.running.CompareAndSwap(false, true) {
		return model.NewJobResult(false, 0, 0, 0, "stats update already running")
	}
	defer s.running.Store(false)

	start := s.now()
	logger.Info("Stats update started")

	userIDs, err := s.userRepo.ListWithProgress(ctx, s.db, s.jobs.StatsUserLimit)
	if err != nil {
		logger.Error("Stats update failed to list users", "error", err)
		return model.NewJobResult(false, 0, 1, s.now().Sub(start), "failed to list users")
	}

	freshCutoff := start.Add(-time.Duration(s.jobs.StatsRefreshMinutes) * time.Minute)

	var processed, errCount int64
	batchSize := s.jobs.StatsBatchSize
	groupSize := s.jobs.StatsConcurrentBatches

	var batches [][]uuid.UUID
	for i := 0; i < len(userIDs); i += batchSize {
		end := i + batchSize
		if end > len(userIDs) {
			end = len(userIDs)
		}
		batches = append(batches, userIDs[i:end])
	}

	// Batches run concurrently in small groups with a pause between
	// groups to keep load off the primary.
	for gi := 0; gi < len(batches); gi += groupSize {
		if ctx.Err() != nil {
			logger.Warn("Stats update cancelled", "processed", processed)
			return model.NewJobResult(false, int(processed), int(errCount), s.now().Sub(start), "cancelled")
		}

		gend := gi + groupSize
		if gend > len(batches) {
			gend = len(batches)
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, batch := range batches[gi:gend] {
			batch := batch
			g.Go(func() error {
				for _, userID := range batch {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					fresh, err := s.isFresh(gctx, userID, freshCutoff)
					if err == nil && fresh {
						continue
					}
					if err := s.UpdateUser(gctx, userID); err != nil {
						logger.Warn("Stats recompute failed",
							"user_id", userID.String(),
							"error", err,
						)
						atomic.AddInt64(&errCount, 1)
						continue
					}
					atomic.AddInt64(&processed, 1)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			logger.Warn("Stats update group aborted", "error", err)
			return model.NewJobResult(false, int(processed), int(errCount), s.now().Sub(start), "cancelled")
		}

		if gend < len(batches) {
			pause := time.Duration(s.jobs.StatsPauseMS) * time.Millisecond
			select {
			case <-ctx.Done():
			case <-time.After(pause):
			}
		}
	}

	duration := s.now().Sub(start)
	logger.Info("Stats update finished",
		"processed", processed,
		"errors", errCount,
		"duration_ms", duration.Milliseconds(),
	)
	return model.NewJobResult(errCount == 0, int(processed), int(errCount), duration,
		fmt.Sprintf("updated stats for %d user(s)", processed))
}

// isFresh reports whether the stats row was refreshed after cutoff.
// A missing row is never fresh.
func (s *statsUpdateService) isFresh(ctx context.Context, userID uuid.UUID, cutoff time.Time) (bool, error) {
	stats, err := s.statsRepo.Find(ctx, s.db, userID)
	if err != nil {
		return false, err
	}
	return stats.UpdatedAt.After(cutoff), nil
}

func (s *statsUpdateService) UpdateUser(ctx context.Context, userID uuid.UUID) error {
	var (
		summary     *model.ActivitySummary
		notes       int64
		bookmarks   int64
		completions []time.Time
		points      int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		summary, err = s.activityRepo.Summary(gctx, s.db, userID)
		return err
	})
	g.Go(func() error {
		var err error
		notes, err = s.activityRepo.CountNotes(gctx, s.db, userID)
		return err
	})
	g.Go(func() error {
		var err error
		bookmarks, err = s.activityRepo.CountBookmarks(gctx, s.db, userID)
		return err
	})
	g.Go(func() error {
		var err error
		completions, err = s.activityRepo.CompletionDates(gctx, s.db, userID)
		return err
	})
	g.Go(func() error {
		var err error
		points, err = s.achRepo.SumEarnedPoints(gctx, s.db, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("statsUpdateService.UpdateUser: %w", err)
	}

	streak := CalculateStreak(completions, s.now())

	return s.db.Transaction(func(tx *gorm.DB) error {
		stats, err := s.statsRepo.GetOrCreate(ctx, tx, userID)
		if err != nil {
			return err
		}
		stats.TotalLessonsCompleted = summary.CompletedLessons
		stats.TotalTimeSpentMinutes = summary.TotalMinutes
		stats.TotalNotesCreated = int(notes)
		stats.TotalBookmarksCreated = int(bookmarks)
		stats.TotalPointsEarned = points
		stats.CurrentStreak = streak.Current
		stats.LastActivityDate = summary.LastActivity
		// The longest streak is monotone; the recompute never lowers it.
		if streak.Longest > stats.LongestStreak {
			stats.LongestStreak = streak.Longest
		}
		if stats.CurrentStreak > stats.LongestStreak {
			stats.LongestStreak = stats.CurrentStreak
		}
		return s.statsRepo.Save(ctx, tx, stats)
	})
}
