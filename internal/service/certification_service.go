package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"go_5_learn_rewards/internal/middleware"
	"go_5_learn_rewards/internal/model"
	"go_5_learn_rewards/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// CertificationService runs the multi-dimension eligibility checks,
// issues certificates and verifies their codes.
type CertificationService interface {
	CheckEligibility(ctx context.Context, userID, certID uuid.UUID) (*model.CertificationEligibility, error)
	CheckAllEligibilities(ctx context.Context, userID uuid.UUID) (*model.EligibilitySummary, error)
	// Award issues the certificate. With skipEligibilityCheck the
	// caller vouches that eligibility was already established.
	Award(ctx context.Context, userID, certID uuid.UUID, skipEligibilityCheck bool) (*model.CertificationAward, error)
	// AutoAwardEligible awards every certification the user currently
	// qualifies for and returns the awarded certification IDs. A single
	// failed award is logged and skipped.
	AutoAwardEligible(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	Verify(ctx context.Context, code string) (*model.VerificationResult, error)
}

type certificationService struct {
	db           *gorm.DB
	certRepo     repository.CertificationRepository
	activityRepo repository.ActivityRepository
	pathRepo     repository.PathRepository
	statsRepo    repository.StatsRepository
	secret       string
	codePrefix   string
	now          func() time.Time
}

func NewCertificationService(
	db *gorm.DB,
	certRepo repository.CertificationRepository,
	activityRepo repository.ActivityRepository,
	pathRepo repository.PathRepository,
	statsRepo repository.StatsRepository,
	secret string,
	codePrefix string,
) (CertificationService, error) {
	// Without the secret every issued certificate would be
	// unverifiable, so this is a hard startup failure.
	if secret == "" {
		return nil, errors.New("certification service: signing secret is required")
	}
	if codePrefix == "" {
		codePrefix = "MAI"
	}
	return &certificationService{
		db:           db,
		certRepo:     certRepo,
		activityRepo: activityRepo,
		pathRepo:     pathRepo,
		statsRepo:    statsRepo,
		secret:       secret,
		codePrefix:   codePrefix,
		now:          time.Now,
	}, nil
}

func (s *certificationService) CheckEligibility(ctx context.Context, userID, certID uuid.UUID) (*model.CertificationEligibility, error) {
	cert, err := s.certRepo.FindActiveByID(ctx, s.db, certID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.NewAppError("NOT_FOUND", "Certification not found.", "", model.ErrNotFound)
		}
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "Failed to load certification.", "", err)
	}

	// A holder of an unrevoked grant is done, not eligible again.
	// Revoked holders go through the full requirement checks.
	existing, err := s.certRepo.FindUserCert(ctx, s.db, userID, certID)
	if err == nil && !existing.IsRevoked {
		return &model.CertificationEligibility{
			IsEligible:          false,
			MissingRequirements: []string{"Already earned"},
			Progress:            map[string]model.DimensionProgress{},
			NextActions:         []string{},
		}, nil
	}
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "Failed to check existing certification.", "", err)
	}

	return s.checkEligibility(ctx, userID, cert)
}

func (s *certificationService) checkEligibility(ctx context.Context, userID uuid.UUID, cert *model.Certification) (*model.CertificationEligibility, error) {
	stats, err := s.statsRepo.GetOrCreate(ctx, s.db, userID)
	if err != nil {
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "Failed to load user stats.", "", err)
	}

	elig := &model.CertificationEligibility{
		IsEligible:          true,
		MissingRequirements: []string{},
		Progress:            map[string]model.DimensionProgress{},
		NextActions:         []string{},
	}

	// Dimension 1: directly required lessons.
	if len(cert.LessonsRequired) > 0 {
		required := []uuid.UUID(cert.LessonsRequired)
		completed, err := s.activityRepo.CompletedLessonIDs(ctx, s.db, userID, required)
		if err != nil {
			return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "Failed to check lesson completion.", "", err)
		}
		done := make(map[uuid.UUID]bool, len(completed))
		for _, id := range completed {
			done[id] = true
		}
		var missing []uuid.UUID
		for _, id := range required {
			if !done[id] {
				missing = append(missing, id)
			}
		}
		elig.Progress["lessons"] = model.DimensionProgress{
			Required:  len(required),
			Completed: len(completed),
			Missing:   missing,
		}
		if len(missing) > 0 {
			elig.IsEligible = false
			elig.MissingRequirements = append(elig.MissingRequirements,
				fmt.Sprintf("%d required lesson(s) not yet completed", len(missing)))
			elig.NextActions = append(elig.NextActions,
				fmt.Sprintf("Complete %d more required lesson(s)", len(missing)))
		}
	}

	// Dimension 2: learning paths. A path counts only when every lesson
	// flagged required within it is completed.
	if len(cert.PathsRequired) > 0 {
		paths, err := s.pathRepo.FindWithLessons(ctx, s.db, cert.PathsRequired)
		if err != nil {
			return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "Failed to load learning paths.", "", err)
		}
		var allRequired []uuid.UUID
		for _, p := range paths {
			for _, pl := range p.Lessons {
				if pl.IsRequired {
					allRequired = append(allRequired, pl.LessonID)
				}
			}
		}
		completed, err := s.activityRepo.CompletedLessonIDs(ctx, s.db, userID, allRequired)
		if err != nil {
			return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "Failed to check path completion.", "", err)
		}
		done := make(map[uuid.UUID]bool, len(completed))
		for _, id := range completed {
			done[id] = true
		}
		var missingPaths []uuid.UUID
		for _, p := range paths {
			pathDone := true
			for _, pl := range p.Lessons {
				if pl.IsRequired && !done[pl.LessonID] {
					pathDone = false
					break
				}
			}
			if !pathDone {
				missingPaths = append(missingPaths, p.PathID)
			}
		}
		elig.Progress["paths"] = model.DimensionProgress{
			Required:  len(cert.PathsRequired),
			Completed: len(cert.PathsRequired) - len(missingPaths),
			Missing:   missingPaths,
		}
		if len(missingPaths) > 0 {
			elig.IsEligible = false
			elig.MissingRequirements = append(elig.MissingRequirements,
				fmt.Sprintf("%d learning path(s) not yet completed", len(missingPaths)))
			elig.NextActions = append(elig.NextActions,
				fmt.Sprintf("Finish %d more learning path(s)", len(missingPaths)))
		}
	}

	// Dimension 3: prerequisite certifications.
	if len(cert.PrerequisiteCerts) > 0 {
		earnedIDs, err := s.certRepo.ListEarnedIDs(ctx, s.db, userID)
		if err != nil {
			return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "Failed to check prerequisites.", "", err)
		}
		earned := make(map[uuid.UUID]bool, len(earnedIDs))
		for _, id := range earnedIDs {
			earned[id] = true
		}
		var missing []uuid.UUID
		for _, id := range cert.PrerequisiteCerts {
			if !earned[id] {
				missing = append(missing, id)
			}
		}
		elig.Progress["prerequisites"] = model.DimensionProgress{
			Required:  len(cert.PrerequisiteCerts),
			Completed: len(cert.PrerequisiteCerts) - len(missing),
			Missing:   missing,
		}
		if len(missing) > 0 {
			elig.IsEligible = false
			elig.MissingRequirements = append(elig.MissingRequirements,
				fmt.Sprintf("%d prerequisite certification(s) not yet earned", len(missing)))
			elig.NextActions = append(elig.NextActions,
				fmt.Sprintf("Earn %d prerequisite certification(s) first", len(missing)))
		}
	}

	// Dimension 4: scalar requirements from the stats snapshot.
	for _, req := range cert.Requirements {
		switch req.Type {
		case model.RequirementTime:
			elig.Progress["time"] = model.DimensionProgress{
				Required: req.Value,
				Current:  stats.TotalTimeSpentMinutes,
			}
			if stats.TotalTimeSpentMinutes < req.Value {
				elig.IsEligible = false
				elig.MissingRequirements = append(elig.MissingRequirements,
					fmt.Sprintf("%d of %d required learning minutes", stats.TotalTimeSpentMinutes, req.Value))
				elig.NextActions = append(elig.NextActions,
					fmt.Sprintf("Spend %d more minute(s) learning", req.Value-stats.TotalTimeSpentMinutes))
			}
		case model.RequirementStreak:
			elig.Progress["streak"] = model.DimensionProgress{
				Required: req.Value,
				Current:  stats.CurrentStreak,
			}
			if stats.CurrentStreak < req.Value {
				elig.IsEligible = false
				elig.MissingRequirements = append(elig.MissingRequirements,
					fmt.Sprintf("current streak is %d of %d required days", stats.CurrentStreak, req.Value))
				elig.NextActions = append(elig.NextActions,
					fmt.Sprintf("Keep your streak going for %d more day(s)", req.Value-stats.CurrentStreak))
			}
		default:
			// Unknown requirement types fail closed.
			elig.IsEligible = false
			elig.MissingRequirements = append(elig.MissingRequirements,
				fmt.Sprintf("unsupported requirement type %q", req.Type))
		}
	}

	return elig, nil
}

func (s *certificationService) CheckAllEligibilities(ctx context.Context, userID uuid.UUID) (*model.EligibilitySummary, error) {
	logger := middleware.GetLogger(ctx).With("user_id", userID.String())

	certs, err := s.certRepo.ListActive(ctx, s.db)
	if err != nil {
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "Failed to load certifications.", "", err)
	}
	earnedIDs, err := s.certRepo.ListEarnedIDs(ctx, s.db, userID)
	if err != nil {
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "Failed to load earned certifications.", "", err)
	}
	earned := make(map[uuid.UUID]bool, len(earnedIDs))
	for _, id := range earnedIDs {
		earned[id] = true
	}

	candidates := make([]*model.Certification, 0, len(certs))
	for _, c := range certs {
		if !earned[c.CertificationID] {
			candidates = append(candidates, c)
		}
	}

	results := make([]*model.CertificationEligibility, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	for i, cert := range candidates {
		i, cert := i, cert
		g.Go(func() error {
			elig, err := s.checkEligibility(gctx, userID, cert)
			if err != nil {
				// One failed check leaves that certification out of the
				// summary rather than failing the whole sweep.
				logger.Warn("Eligibility check failed",
					"certification_id", cert.CertificationID.String(),
					"error", err,
				)
				return nil
			}
			results[i] = elig
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "Failed to check eligibilities.", "", err)
	}

	summary := &model.EligibilitySummary{
		Eligible: []uuid.UUID{},
		Pending:  []model.PendingCertification{},
	}
	for i, cert := range candidates {
		elig := results[i]
		if elig == nil {
			continue
		}
		if elig.IsEligible {
			summary.Eligible = append(summary.Eligible, cert.CertificationID)
		} else {
			summary.Pending = append(summary.Pending, model.PendingCertification{
				CertificationID: cert.CertificationID,
				Requirements:    elig.MissingRequirements,
			})
		}
	}
	return summary, nil
}

// certMetadata is the audit snapshot stored with each issued
// certificate.
type certMetadata struct {
	Stats model.StatsSnapshot `json:"stats"`
}

func (s *certificationService) Award(ctx context.Context, userID, certID uuid.UUID, skipEligibilityCheck bool) (*model.CertificationAward, error) {
	logger := middleware.GetLogger(ctx).With("user_id", userID.String(), "certification_id", certID.String())

	cert, err := s.certRepo.FindActiveByID(ctx, s.db, certID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.NewAppError("NOT_FOUND", "Certification not found.", "", model.ErrNotFound)
		}
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "Failed to load certification.", "", err)
	}

	if _, err := s.certRepo.FindUserCert(ctx, s.db, userID, certID); err == nil {
		return nil, model.NewAppError("ALREADY_EARNED", "Certification already earned.", "", model.ErrConflict)
	} else if !errors.Is(err, model.ErrNotFound) {
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "Failed to check existing certification.", "", err)
	}

	if !skipEligibilityCheck {
		elig, err := s.checkEligibility(ctx, userID, cert)
		if err != nil {
			return nil, err
		}
		if !elig.IsEligible {
			return nil, model.NewAppError("NOT_ELIGIBLE",
				"Requirements not met: "+strings.Join(elig.MissingRequirements, "; "),
				"", model.ErrNotEligible)
		}
	}

	stats, err := s.statsRepo.GetOrCreate(ctx, s.db, userID)
	if err != nil {
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "Failed to load user stats.", "", err)
	}

	earnedAt := s.now()
	code, err := s.generateCode(earnedAt)
	if err != nil {
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "Failed to generate verification code.", "", err)
	}
	hash := s.verificationHash(userID, certID, code)

	var expiresAt *time.Time
	if cert.ValidityMonths != nil {
		t := earnedAt.AddDate(0, *cert.ValidityMonths, 0)
		expiresAt = &t
	}

	meta, err := json.Marshal(certMetadata{Stats: stats.Snapshot()})
	if err != nil {
		meta = nil
	}

	uc := &model.UserCertification{
		UserCertificationID: uuid.New(),
		UserID:              userID,
		CertificationID:     certID,
		VerificationCode:    code,
		VerificationHash:    hash,
		EarnedAt:            earnedAt,
		ExpiresAt:           expiresAt,
		Metadata:            meta,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		return s.certRepo.Create(ctx, tx, uc)
	})
	if err != nil {
		if errors.Is(err, model.ErrConflict) {
			return nil, model.NewAppError("ALREADY_EARNED", "Certification already earned.", "", model.ErrConflict)
		}
		logger.Error("Error issuing certification", "error", err)
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "Failed to issue certification.", "", err)
	}

	logger.Info("Certification issued", "verification_code", code)
	return &model.CertificationAward{
		UserCertificationID: uc.UserCertificationID,
		VerificationCode:    code,
		VerificationHash:    hash,
		ExpiresAt:           expiresAt,
	}, nil
}

func (s *certificationService) AutoAwardEligible(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	logger := middleware.GetLogger(ctx).With("user_id", userID.String())

	summary, err := s.CheckAllEligibilities(ctx, userID)
	if err != nil {
		return nil, err
	}

	var awarded []uuid.UUID
	for _, certID := range summary.Eligible {
		// Eligibility was just established above.
		if _, err := s.Award(ctx, userID, certID, true); err != nil {
			if errors.Is(err, model.ErrConflict) {
				continue
			}
			logger.Warn("Auto-award failed",
				"certification_id", certID.String(),
				"error", err,
			)
			continue
		}
		awarded = append(awarded, certID)
	}
	return awarded, nil
}

func (s *certificationService) Verify(ctx context.Context, code string) (*model.VerificationResult, error) {
	uc, err := s.certRepo.FindByCode(ctx, s.db, code)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return &model.VerificationResult{IsValid: false}, nil
		}
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "Failed to look up certificate.", "", err)
	}

	expected := s.verificationHash(uc.UserID, uc.CertificationID, uc.VerificationCode)
	hashOK := subtle.ConstantTimeCompare([]byte(expected), []byte(uc.VerificationHash)) == 1

	if uc.IsRevoked || !hashOK {
		return &model.VerificationResult{IsValid: false}, nil
	}

	earnedAt := uc.EarnedAt
	result := &model.VerificationResult{
		Certification: uc.Certification,
		EarnedAt:      &earnedAt,
		ExpiresAt:     uc.ExpiresAt,
	}
	if uc.User != nil {
		result.UserName = uc.User.Name
	}

	if uc.ExpiresAt != nil && s.now().After(*uc.ExpiresAt) {
		result.IsExpired = true
		return result, nil
	}

	result.IsValid = true
	return result, nil
}

const codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// generateCode builds a code like MAI-MBXK2J1P-X7Q4TZ from the issue
// timestamp and a random suffix. Codes are unique-indexed; the
// timestamp component makes collisions practically impossible.
func (s *certificationService) generateCode(at time.Time) (string, error) {
	ts := strings.ToUpper(strconv.FormatInt(at.UnixMilli(), 36))
	suffix := make([]byte, 6)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", fmt.Errorf("generateCode: %w", err)
		}
		suffix[i] = codeAlphabet[n.Int64()]
	}
	return fmt.Sprintf("%s-%s-%s", s.codePrefix, ts, suffix), nil
}

// verificationHash binds user, certification and code to the signing
// secret so a tampered row fails verification.
func (s *certificationService) verificationHash(userID, certID uuid.UUID, code string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%s:%s", userID, certID, code, s.secret)))
	return hex.EncodeToString(sum[:])
}
