package service

import (
	"context"
	"fmt"
	"strings"

	"go_5_learn_rewards/internal/middleware"
	"go_5_learn_rewards/internal/model"
	"go_5_learn_rewards/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationService flushes the award notifications collected during
// a batch run.
type NotificationService interface {
	// SendBatch resolves names for every referenced user, achievement
	// and certification in three bulk reads, then emails each user in
	// turn. A failed send is logged and does not stop the rest. The
	// return value is the number of mails actually sent.
	SendBatch(ctx context.Context, entries []model.NotificationBatchEntry) (int, error)
}

type notificationService struct {
	db       *gorm.DB
	userRepo repository.UserRepository
	achRepo  repository.AchievementRepository
	certRepo repository.CertificationRepository
	mailer   Mailer
}

func NewNotificationService(
	db *gorm.DB,
	userRepo repository.UserRepository,
	achRepo repository.AchievementRepository,
	certRepo repository.CertificationRepository,
	mailer Mailer,
) NotificationService {
	return &notificationService{
		db:       db,
		userRepo: userRepo,
		achRepo:  achRepo,
		certRepo: certRepo,
		mailer:   mailer,
	}
}

func (s *notificationService) SendBatch(ctx context.Context, entries []model.NotificationBatchEntry) (int, error) {
	logger := middleware.GetLogger(ctx)
	if len(entries) == 0 {
		return 0, nil
	}

	userIDs := make([]uuid.UUID, 0, len(entries))
	achSet := map[uuid.UUID]bool{}
	certSet := map[uuid.UUID]bool{}
	for _, e := range entries {
		userIDs = append(userIDs, e.UserID)
		for _, id := range e.AchievementIDs {
			achSet[id] = true
		}
		for _, id := range e.CertificationIDs {
			certSet[id] = true
		}
	}

	users, err := s.userRepo.FindByIDs(ctx, s.db, userIDs)
	if err != nil {
		return 0, fmt.Errorf("notificationService.SendBatch: %w", err)
	}
	achievements, err := s.achRepo.FindByIDs(ctx, s.db, keys(achSet))
	if err != nil {
		return 0, fmt.Errorf("notificationService.SendBatch: %w", err)
	}
	certs, err := s.certRepo.FindByIDs(ctx, s.db, keys(certSet))
	if err != nil {
		return 0, fmt.Errorf("notificationService.SendBatch: %w", err)
	}

	userByID := make(map[uuid.UUID]*model.User, len(users))
	for _, u := range users {
		userByID[u.UserID] = u
	}
	achNames := make(map[uuid.UUID]string, len(achievements))
	for _, a := range achievements {
		achNames[a.AchievementID] = a.Name
	}
	certNames := make(map[uuid.UUID]string, len(certs))
	for _, c := range certs {
		certNames[c.CertificationID] = c.Name
	}

	sent := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			logger.Warn("Notification flush cancelled", "sent", sent)
			break
		}
		user := userByID[entry.UserID]
		if user == nil {
			logger.Warn("Skipping notification for unknown user", "user_id", entry.UserID.String())
			continue
		}

		subject, body := composeAwardMail(user.Name, entry, achNames, certNames)
		if subject == "" {
			continue
		}
		if err := s.mailer.Send(ctx, user.Email, subject, body); err != nil {
			logger.Warn("Failed to send award notification",
				"user_id", entry.UserID.String(),
				"error", err,
			)
			continue
		}
		sent++
	}

	logger.Info("Award notifications flushed", "sent", sent, "batched", len(entries))
	return sent, nil
}

func composeAwardMail(name string, entry model.NotificationBatchEntry, achNames, certNames map[uuid.UUID]string) (subject, body string) {
	var achievements, certifications []string
	for _, id := range entry.AchievementIDs {
		if n, ok := achNames[id]; ok {
			achievements = append(achievements, n)
		}
	}
	for _, id := range entry.CertificationIDs {
		if n, ok := certNames[id]; ok {
			certifications = append(certifications, n)
		}
	}
	if len(achievements) == 0 && len(certifications) == 0 {
		return "", ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	if len(achievements) > 0 {
		b.WriteString("You earned new achievements:\n")
		for _, n := range achievements {
			fmt.Fprintf(&b, "  - %s\n", n)
		}
		b.WriteString("\n")
	}
	if len(certifications) > 0 {
		b.WriteString("You earned new certifications:\n")
		for _, n := range certifications {
			fmt.Fprintf(&b, "  - %s\n", n)
		}
		b.WriteString("\n")
	}
	b.WriteString("Keep up the great work!\n")

	switch {
	case len(certifications) > 0 && len(achievements) > 0:
		subject = "New achievements and certifications earned"
	case len(certifications) > 0:
		subject = "You earned a new certification"
	default:
		subject = "You earned a new achievement"
	}
	return subject, b.String()
}

func keys(set map[uuid.UUID]bool) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
