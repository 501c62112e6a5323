// internal/repository/certification_repository.go
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

type CertificationRepository interface {
	FindActiveByID(ctx context.Context, db *gorm.DB, certID uuid.UUID) (*model.Certification, error)
	ListActive(ctx context.Context, db *gorm.DB) ([]*model.Certification, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []uuid.UUID) ([]*model.Certification, error)
	FindUserCert(ctx context.Context, db *gorm.DB, userID, certID uuid.UUID) (*model.UserCertification, error)
	// ListEarnedIDs returns the certification IDs the user holds that
	// have not been revoked. Expired certifications still count as
	// earned for prerequisite purposes.
	ListEarnedIDs(ctx context.Context, db *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error)
	Create(ctx context.Context, tx *gorm.DB, cert *model.UserCertification) error
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*model.UserCertification, error)
}

type gormCertificationRepository struct{}

func NewGormCertificationRepository() CertificationRepository {
	return &gormCertificationRepository{}
}

func (r *gormCertificationRepository) FindActiveByID(ctx context.Context, db *gorm.DB, certID uuid.UUID) (*model.Certification, error) {
	var cert model.Certification
	result := db.WithContext(ctx).
		Where("certification_id = ? AND is_active = ?", certID, true).
		First(&cert)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("gormCertificationRepository.FindActiveByID: %w", result.Error)
	}
	return &cert, nil
}

func (r *gormCertificationRepository) ListActive(ctx context.Context, db *gorm.DB) ([]*model.Certification, error) {
	var certs []*model.Certification
	result := db.WithContext(ctx).Where("is_active = ?", true).Find(&certs)
	if result.Error != nil {
		return nil, fmt.Errorf("gormCertificationRepository.ListActive: %w", result.Error)
	}
	return certs, nil
}

func (r *gormCertificationRepository) FindByIDs(ctx context.Context, db *gorm.DB, ids []uuid.UUID) ([]*model.Certification, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var certs []*model.Certification
	result := db.WithContext(ctx).Where("certification_id IN ?", ids).Find(&certs)
	if result.Error != nil {
		return nil, fmt.Errorf("gormCertificationRepository.FindByIDs: %w", result.Error)
	}
	return certs, nil
}

func (r *gormCertificationRepository) FindUserCert(ctx context.Context, db *gorm.DB, userID, certID uuid.UUID) (*model.UserCertification, error) {
	var uc model.UserCertification
	result := db.WithContext(ctx).
		Where("user_id = ? AND certification_id = ?", userID, certID).
		First(&uc)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("gormCertificationRepository.FindUserCert: %w", result.Error)
	}
	return &uc, nil
}

func (r *gormCertificationRepository) ListEarnedIDs(ctx context.Context, db *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	result := db.WithContext(ctx).
		Model(&model.UserCertification{}).
		Where("user_id = ? AND is_revoked = ?", userID, false).
		Pluck("certification_id", &ids)
	if result.Error != nil {
		return nil, fmt.Errorf("gormCertificationRepository.ListEarnedIDs: %w", result.Error)
	}
	return ids, nil
}

func (r *gormCertificationRepository) Create(ctx context.Context, tx *gorm.DB, cert *model.UserCertification) error {
	result := tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(cert)
	if result.Error != nil {
		return fmt.Errorf("gormCertificationRepository.Create: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return model.ErrConflict
	}
	return nil
}

func (r *gormCertificationRepository) FindByCode(ctx context.Context, db *gorm.DB, code string) (*model.UserCertification, error) {
	var uc model.UserCertification
	result := db.WithContext(ctx).
		Preload("Certification").
		Preload("User").
		Where("verification_code = ?", code).
		First(&uc)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("gormCertificationRepository.FindByCode: %w", result.Error)
	}
	return &uc, nil
}
