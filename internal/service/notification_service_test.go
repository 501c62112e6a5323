// internal/service/notification_service_test.go
package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go_5_learn_rewards/internal/model"
	"go_5_learn_rewards/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// recordingMailer captures sends and can fail selected recipients.
type recordingMailer struct {
	sent    []string
	bodies  map[string]string
	failFor map[string]bool
}

func newRecordingMailer() *recordingMailer {
	return &recordingMailer{bodies: map[string]string{}, failFor: map[string]bool{}}
}

func (m *recordingMailer) Send(ctx context.Context, to, subject, body string) error {
	if m.failFor[to] {
		return errors.New("smtp refused")
	}
	m.sent = append(m.sent, to)
	m.bodies[to] = body
	return nil
}

func newTestNotificationService(db *gorm.DB, mailer Mailer) NotificationService {
	return NewNotificationService(
		db,
		repository.NewGormUserRepository(),
		repository.NewGormAchievementRepository(),
		repository.NewGormCertificationRepository(),
		mailer,
	)
}

func Test_notificationService_SendBatch(t *testing.T) {
	ctx := context.Background()
	db := setupServiceTestDB(t)
	mailer := newRecordingMailer()
	svc := newTestNotificationService(db, mailer)

	alice := seedUser(t, db, "Alice")
	bob := seedUser(t, db, "Bob")

	ach := seedAchievement(t, db, model.LessonsCompletedCriteria{Threshold: 5}, 10)
	cert := &model.Certification{
		CertificationID: uuid.New(),
		Name:            "Foundations",
		Description:     "entry level",
		IsActive:        true,
	}
	require.NoError(t, db.Create(cert).Error)

	entries := []model.NotificationBatchEntry{
		{UserID: alice.UserID, AchievementIDs: []uuid.UUID{ach.AchievementID}},
		{UserID: bob.UserID, CertificationIDs: []uuid.UUID{cert.CertificationID}},
	}

	sent, err := svc.SendBatch(ctx, entries)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, []string{alice.Email, bob.Email}, mailer.sent)
	assert.Contains(t, mailer.bodies[alice.Email], ach.Name)
	assert.Contains(t, mailer.bodies[bob.Email], cert.Name)
}

func Test_notificationService_SendBatch_FailureIsolated(t *testing.T) {
	ctx := context.Background()
	db := setupServiceTestDB(t)
	mailer := newRecordingMailer()
	svc := newTestNotificationService(db, mailer)

	alice := seedUser(t, db, "Alice")
	bob := seedUser(t, db, "Bob")
	carol := seedUser(t, db, "Carol")
	mailer.failFor[bob.Email] = true

	ach := seedAchievement(t, db, model.StreakDaysCriteria{Threshold: 3}, 10)

	entries := []model.NotificationBatchEntry{
		{UserID: alice.UserID, AchievementIDs: []uuid.UUID{ach.AchievementID}},
		{UserID: bob.UserID, AchievementIDs: []uuid.UUID{ach.AchievementID}},
		{UserID: carol.UserID, AchievementIDs: []uuid.UUID{ach.AchievementID}},
	}

	sent, err := svc.SendBatch(ctx, entries)
	require.NoError(t, err)
	assert.Equal(t, 2, sent, "one refused send must not stop the rest")
	assert.Equal(t, []string{alice.Email, carol.Email}, mailer.sent)
}

func Test_notificationService_SendBatch_SkipsEmptyAndUnknown(t *testing.T) {
	ctx := context.Background()
	db := setupServiceTestDB(t)
	mailer := newRecordingMailer()
	svc := newTestNotificationService(db, mailer)

	alice := seedUser(t, db, "Alice")
	ach := seedAchievement(t, db, model.NotesTakenCriteria{Threshold: 1}, 5)

	entries := []model.NotificationBatchEntry{
		// Unknown user: no matching users row.
		{UserID: uuid.New(), AchievementIDs: []uuid.UUID{ach.AchievementID}},
		// Known user referencing a vanished achievement: nothing to say.
		{UserID: alice.UserID, AchievementIDs: []uuid.UUID{uuid.New()}},
	}

	sent, err := svc.SendBatch(ctx, entries)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Empty(t, mailer.sent)
}

func Test_composeAwardMail(t *testing.T) {
	achID, certID := uuid.New(), uuid.New()
	entry := model.NotificationBatchEntry{
		UserID:           uuid.New(),
		AchievementIDs:   []uuid.UUID{achID},
		CertificationIDs: []uuid.UUID{certID},
	}

	subject, body := composeAwardMail("Dana", entry,
		map[uuid.UUID]string{achID: "First Steps"},
		map[uuid.UUID]string{certID: "Foundations"},
	)
	assert.Equal(t, "New achievements and certifications earned", subject)
	assert.True(t, strings.Contains(body, "First Steps"))
	assert.True(t, strings.Contains(body, "Foundations"))
	assert.True(t, strings.HasPrefix(body, "Hi Dana,"))
}
