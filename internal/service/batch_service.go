package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go_5_learn_rewards/internal/config"
	"go_5_learn_rewards/internal/middleware"
	"go_5_learn_rewards/internal/model"
	"go_5_learn_rewards/internal/repository"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"gorm.io/gorm"
)

// BatchService is the nightly orchestrator: it sweeps recently active
// users, runs the achievement and certification engines for each, then
// flushes the collected award notifications and purges expired
// password-reset tokens.
type BatchService interface {
	// RunDaily executes one full sweep. Only one run is admitted at a
	// time; a second caller gets a failed result immediately.
	RunDaily(ctx context.Context) model.JobResult
	Running() bool
}

type batchService struct {
	db       *gorm.DB
	userRepo repository.UserRepository
	achSvc   AchievementService
	certSvc  CertificationService
	notifSvc NotificationService
	jobs     config.JobsConfig
	running  atomic.Bool
	now      func() time.Time
}

func NewBatchService(
	db *gorm.DB,
	userRepo repository.UserRepository,
	achSvc AchievementService,
	certSvc CertificationService,
	notifSvc NotificationService,
	jobs config.JobsConfig,
) BatchService {
	return &batchService{
		db:       db,
		userRepo: userRepo,
		achSvc:   achSvc,
		certSvc:  certSvc,
		notifSvc: notifSvc,
		jobs:     jobs,
		now:      time.Now,
	}
}

func (s *batchService) Running() bool {
	return s.running.Load()
}

// userOutcome is one slot of a batch; each goroutine writes only its
// own slot so the join needs no locking.
type userOutcome struct {
	entry model.NotificationBatchEntry
	errs  int
}

func (s *batchService) RunDaily(ctx context.Context) model.JobResult {
	logger := middleware.GetLogger(ctx)

	if !s.running.CompareAndSwap(false, true) {
		return model.NewJobResult(false, 0, 0, 0, "daily achievement check already running")
	}
	defer s.running.Store(false)

	start := s.now()
	logger.Info("Daily achievement check started")

	since := start.AddDate(0, 0, -s.jobs.ActiveUserWindowDays)
	users, err := s.userRepo.ListActive(ctx, s.db, since, s.jobs.ActiveUserLimit)
	if err != nil {
		logger.Error("Daily check failed to list active users", "error", err)
		return model.NewJobResult(false, 0, 1, s.now().Sub(start), "failed to list active users")
	}
	logger.Info("Active users loaded", "count", len(users))

	// One weighted semaphore caps engine concurrency across the whole
	// run, independent of batch boundaries.
	sem := semaphore.NewWeighted(int64(s.jobs.Concurrency))
	batchSize := s.jobs.BatchSize
	pause := time.Duration(s.jobs.PauseBetweenBatchesMS) * time.Millisecond

	var (
		processed int
		errCount  int
		entries   []model.NotificationBatchEntry
		cancelled bool
	)

	for i := 0; i < len(users); i += batchSize {
		if ctx.Err() != nil {
			cancelled = true
			errCount += len(users) - i
			break
		}

		end := i + batchSize
		if end > len(users) {
			end = len(users)
		}
		batch := users[i:end]

		outcomes := make([]userOutcome, len(batch))
		var wg sync.WaitGroup
		for j, user := range batch {
			if err := sem.Acquire(ctx, 1); err != nil {
				// Context cancelled while waiting for a slot.
				outcomes[j].errs = 1
				continue
			}
			wg.Add(1)
			go func(j int, user model.ActiveUser) {
				defer wg.Done()
				defer sem.Release(1)
				outcomes[j] = s.processUser(ctx, user)
			}(j, user)
		}
		wg.Wait()

		for _, o := range outcomes {
			processed++
			errCount += o.errs
			if len(o.entry.AchievementIDs) > 0 || len(o.entry.CertificationIDs) > 0 {
				entries = append(entries, o.entry)
			}
		}

		if end < len(users) {
			select {
			case <-ctx.Done():
			case <-time.After(pause):
			}
		}
	}

	if len(entries) > 0 {
		if _, err := s.notifSvc.SendBatch(ctx, entries); err != nil {
			logger.Error("Notification flush failed", "error", err)
			errCount++
		}
	}

	purged, err := s.userRepo.PurgeExpiredResetTokens(ctx, s.db, s.now())
	if err != nil {
		logger.Error("Reset token purge failed", "error", err)
		errCount++
	} else if purged > 0 {
		logger.Info("Expired reset tokens purged", "count", purged)
	}

	duration := s.now().Sub(start)
	message := fmt.Sprintf("processed %d user(s), %d with new awards", processed, len(entries))
	if cancelled {
		message = "cancelled: " + message
	}
	logger.Info("Daily achievement check finished",
		"processed", processed,
		"errors", errCount,
		"awarded_users", len(entries),
		"duration_ms", duration.Milliseconds(),
	)
	return model.NewJobResult(!cancelled && errCount == 0, processed, errCount, duration, message)
}

// processUser runs both engines for one user, concurrently. Engine
// failures are isolated per engine: a broken achievement check still
// lets the certification sweep run, and vice versa, so neither
// goroutine returns an error into the group.
func (s *batchService) processUser(ctx context.Context, user model.ActiveUser) userOutcome {
	logger := middleware.GetLogger(ctx).With("user_id", user.UserID.String())
	out := userOutcome{entry: model.NotificationBatchEntry{UserID: user.UserID}}

	var achErr, certErr bool
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		awarded, err := s.achSvc.CheckAndAward(gctx, user.UserID)
		if err != nil {
			logger.Warn("Achievement check failed", "error", err)
			achErr = true
			return nil
		}
		for _, a := range awarded {
			out.entry.AchievementIDs = append(out.entry.AchievementIDs, a.AchievementID)
		}
		return nil
	})
	g.Go(func() error {
		certIDs, err := s.certSvc.AutoAwardEligible(gctx, user.UserID)
		if err != nil {
			logger.Warn("Certification sweep failed", "error", err)
			certErr = true
			return nil
		}
		out.entry.CertificationIDs = certIDs
		return nil
	})
	_ = g.Wait()
	if achErr {
		out.errs++
	}
	if certErr {
		out.errs++
	}
	return out
}
