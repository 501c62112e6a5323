// internal/service/batch_service_test.go
package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go_5_learn_rewards/internal/config"
	"go_5_learn_rewards/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// --- orchestrator stubs ---

type stubUserRepo struct {
	active      []model.ActiveUser
	activeErr   error
	purgedCount int64
	purgeCalled atomic.Bool
}

func (s *stubUserRepo) FindByIDs(ctx context.Context, db *gorm.DB, userIDs []uuid.UUID) ([]*model.User, error) {
	return nil, nil
}
func (s *stubUserRepo) ListActive(ctx context.Context, db *gorm.DB, since time.Time, limit int) ([]model.ActiveUser, error) {
	if s.activeErr != nil {
		return nil, s.activeErr
	}
	if len(s.active) > limit {
		return s.active[:limit], nil
	}
	return s.active, nil
}
func (s *stubUserRepo) ListWithProgress(ctx context.Context, db *gorm.DB, limit int) ([]uuid.UUID, error) {
	return nil, nil
}
func (s *stubUserRepo) PurgeExpiredResetTokens(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	s.purgeCalled.Store(true)
	return s.purgedCount, nil
}

type stubAchievementService struct {
	awards       map[uuid.UUID][]model.EarnedAchievement
	failFor      map[uuid.UUID]bool
	inFlight     atomic.Int64
	maxInView    atomic.Int64
	delay        time.Duration
	callCount    atomic.Int64
	waitFor      chan struct{}
	waitTimedOut atomic.Bool
}

func (s *stubAchievementService) CheckAndAward(ctx context.Context, userID uuid.UUID) ([]model.EarnedAchievement, error) {
	s.callCount.Add(1)
	cur := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		max := s.maxInView.Load()
		if cur <= max || s.maxInView.CompareAndSwap(max, cur) {
			break
		}
	}
	if s.waitFor != nil {
		select {
		case <-s.waitFor:
		case <-time.After(2 * time.Second):
			s.waitTimedOut.Store(true)
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.failFor[userID] {
		return nil, errors.New("engine failure")
	}
	return s.awards[userID], nil
}
func (s *stubAchievementService) Progress(ctx context.Context, userID uuid.UUID) ([]model.AchievementProgress, error) {
	return nil, nil
}
func (s *stubAchievementService) ListEarned(ctx context.Context, userID uuid.UUID) ([]model.EarnedAchievement, error) {
	return nil, nil
}

type stubCertificationService struct {
	awards      map[uuid.UUID][]uuid.UUID
	failFor     map[uuid.UUID]bool
	callCount   atomic.Int64
	started     chan struct{}
	startedOnce sync.Once
}

func (s *stubCertificationService) CheckEligibility(ctx context.Context, userID, certID uuid.UUID) (*model.CertificationEligibility, error) {
	return nil, nil
}
func (s *stubCertificationService) CheckAllEligibilities(ctx context.Context, userID uuid.UUID) (*model.EligibilitySummary, error) {
	return nil, nil
}
func (s *stubCertificationService) Award(ctx context.Context, userID, certID uuid.UUID, skip bool) (*model.CertificationAward, error) {
	return nil, nil
}
func (s *stubCertificationService) AutoAwardEligible(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	s.callCount.Add(1)
	if s.started != nil {
		s.startedOnce.Do(func() { close(s.started) })
	}
	if s.failFor[userID] {
		return nil, errors.New("engine failure")
	}
	return s.awards[userID], nil
}
func (s *stubCertificationService) Verify(ctx context.Context, code string) (*model.VerificationResult, error) {
	return nil, nil
}

type stubNotificationService struct {
	mu      sync.Mutex
	entries []model.NotificationBatchEntry
	err     error
}

func (s *stubNotificationService) SendBatch(ctx context.Context, entries []model.NotificationBatchEntry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.entries = append(s.entries, entries...)
	return len(entries), nil
}

func testJobsConfig() config.JobsConfig {
	return config.JobsConfig{
		BatchSize:              5,
		Concurrency:            10,
		ActiveUserWindowDays:   30,
		ActiveUserLimit:        1000,
		PauseBetweenBatchesMS:  1,
		StatsBatchSize:         25,
		StatsConcurrentBatches: 3,
		StatsUserLimit:         2000,
		StatsRefreshMinutes:    60,
		StatsPauseMS:           1,
		TimeoutMinutes:         1,
	}
}

func makeActiveUsers(n int) []model.ActiveUser {
	users := make([]model.ActiveUser, n)
	for i := range users {
		users[i] = model.ActiveUser{UserID: uuid.New(), Email: "u@example.com", Name: "U"}
	}
	return users
}

func Test_batchService_RunDaily(t *testing.T) {
	ctx := context.Background()
	users := makeActiveUsers(12)

	achStub := &stubAchievementService{
		awards: map[uuid.UUID][]model.EarnedAchievement{
			users[0].UserID: {{AchievementID: uuid.New(), Name: "First Steps"}},
		},
	}
	certStub := &stubCertificationService{
		awards: map[uuid.UUID][]uuid.UUID{
			users[3].UserID: {uuid.New()},
		},
	}
	notifStub := &stubNotificationService{}
	userStub := &stubUserRepo{active: users, purgedCount: 2}

	svc := NewBatchService(nil, userStub, achStub, certStub, notifStub, testJobsConfig())
	result := svc.RunDaily(ctx)

	assert.True(t, result.Success)
	assert.Equal(t, 12, result.Processed)
	assert.Equal(t, 0, result.Errors)
	assert.EqualValues(t, 12, achStub.callCount.Load())
	assert.EqualValues(t, 12, certStub.callCount.Load())
	assert.True(t, userStub.purgeCalled.Load())

	// Only users with awards reach the notification flush.
	require.Len(t, notifStub.entries, 2)
	flushed := map[uuid.UUID]bool{}
	for _, e := range notifStub.entries {
		flushed[e.UserID] = true
	}
	assert.True(t, flushed[users[0].UserID])
	assert.True(t, flushed[users[3].UserID])
}

func Test_batchService_RunDaily_EnginesOverlapPerUser(t *testing.T) {
	ctx := context.Background()
	users := makeActiveUsers(1)

	// The achievement check blocks until the certification sweep for
	// the same user has started; sequential engines would time out.
	certStarted := make(chan struct{})
	achStub := &stubAchievementService{waitFor: certStarted}
	certStub := &stubCertificationService{started: certStarted}
	notifStub := &stubNotificationService{}
	userStub := &stubUserRepo{active: users}

	svc := NewBatchService(nil, userStub, achStub, certStub, notifStub, testJobsConfig())
	result := svc.RunDaily(ctx)

	assert.True(t, result.Success)
	assert.False(t, achStub.waitTimedOut.Load(),
		"achievement check never observed the certification sweep running")
}

func Test_batchService_RunDaily_ErrorIsolation(t *testing.T) {
	ctx := context.Background()
	users := makeActiveUsers(6)

	achStub := &stubAchievementService{
		failFor: map[uuid.UUID]bool{users[2].UserID: true},
	}
	certStub := &stubCertificationService{
		awards: map[uuid.UUID][]uuid.UUID{
			// The failing user's certification sweep still runs.
			users[2].UserID: {uuid.New()},
		},
	}
	notifStub := &stubNotificationService{}
	userStub := &stubUserRepo{active: users}

	svc := NewBatchService(nil, userStub, achStub, certStub, notifStub, testJobsConfig())
	result := svc.RunDaily(ctx)

	assert.False(t, result.Success)
	assert.Equal(t, 6, result.Processed)
	assert.Equal(t, 1, result.Errors)
	assert.EqualValues(t, 6, certStub.callCount.Load())
	require.Len(t, notifStub.entries, 1)
	assert.Equal(t, users[2].UserID, notifStub.entries[0].UserID)
}

func Test_batchService_RunDaily_ConcurrencyCeiling(t *testing.T) {
	ctx := context.Background()
	users := makeActiveUsers(30)

	achStub := &stubAchievementService{delay: 5 * time.Millisecond}
	certStub := &stubCertificationService{}
	notifStub := &stubNotificationService{}
	userStub := &stubUserRepo{active: users}

	cfg := testJobsConfig()
	cfg.BatchSize = 30
	cfg.Concurrency = 3

	svc := NewBatchService(nil, userStub, achStub, certStub, notifStub, cfg)
	result := svc.RunDaily(ctx)

	assert.True(t, result.Success)
	assert.Equal(t, 30, result.Processed)
	assert.LessOrEqual(t, achStub.maxInView.Load(), int64(3))
}

func Test_batchService_RunDaily_SingleFlight(t *testing.T) {
	users := makeActiveUsers(4)

	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	achStub := &stubAchievementService{}
	blockingCert := &blockingCertService{release: release, started: started, once: &once}
	notifStub := &stubNotificationService{}
	userStub := &stubUserRepo{active: users}

	cfg := testJobsConfig()
	cfg.Concurrency = 1
	svc := NewBatchService(nil, userStub, achStub, blockingCert, notifStub, cfg)

	var wg sync.WaitGroup
	wg.Add(1)
	var firstResult model.JobResult
	go func() {
		defer wg.Done()
		firstResult = svc.RunDaily(context.Background())
	}()

	<-started
	assert.True(t, svc.Running())

	second := svc.RunDaily(context.Background())
	assert.False(t, second.Success)
	assert.Contains(t, second.Message, "already running")

	close(release)
	wg.Wait()
	assert.True(t, firstResult.Success)
	assert.False(t, svc.Running())
}

// blockingCertService parks its first call until released so the test
// can observe an in-flight run.
type blockingCertService struct {
	stubCertificationService
	release <-chan struct{}
	started chan<- struct{}
	once    *sync.Once
}

func (s *blockingCertService) AutoAwardEligible(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	s.once.Do(func() {
		close(s.started)
		<-s.release
	})
	return nil, nil
}
