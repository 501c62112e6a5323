// internal/model/certification.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type RequirementType string

const (
	RequirementTime   RequirementType = "time"
	RequirementStreak RequirementType = "streak"
)

// CertRequirement is one generic requirement on a certification
// (total learning minutes or current streak days). Lesson, path and
// prerequisite requirements have dedicated columns instead because they
// reference IDs rather than a scalar threshold.
type CertRequirement struct {
	Type  RequirementType `json:"type"`
	Value int             `json:"value"`
}

// Certification is a multi-part credential definition.
type Certification struct {
	CertificationID   uuid.UUID                             `gorm:"type:uuid;primaryKey" json:"certification_id"`
	Name              string                                `gorm:"not null" json:"name"`
	Description       string                                `gorm:"not null" json:"description"`
	IsActive          bool                                  `gorm:"not null;index" json:"is_active"`
	Requirements      datatypes.JSONSlice[CertRequirement]  `json:"requirements"`
	LessonsRequired   datatypes.JSONSlice[uuid.UUID]        `json:"lessons_required"`
	PathsRequired     datatypes.JSONSlice[uuid.UUID]        `json:"paths_required"`
	PrerequisiteCerts datatypes.JSONSlice[uuid.UUID]        `json:"prerequisite_certs"`
	ValidityMonths    *int                                  `json:"validity_months,omitempty"`
	CreatedAt         time.Time                             `json:"created_at"`
	UpdatedAt         time.Time                             `json:"updated_at"`
}

func (Certification) TableName() string {
	return "certifications"
}

// UserCertification records an issued certificate. Rows are never
// physically deleted; revocation flips IsRevoked and verification keeps
// resolving the code so it can report invalid.
type UserCertification struct {
	UserCertificationID uuid.UUID      `gorm:"type:uuid;primaryKey" json:"user_certification_id"`
	UserID              uuid.UUID      `gorm:"type:uuid;not null;index:idx_user_certification,unique" json:"user_id"`
	CertificationID     uuid.UUID      `gorm:"type:uuid;not null;index:idx_user_certification,unique" json:"certification_id"`
	VerificationCode    string         `gorm:"unique;not null" json:"verification_code"`
	VerificationHash    string         `gorm:"not null" json:"-"`
	EarnedAt            time.Time      `gorm:"not null" json:"earned_at"`
	ExpiresAt           *time.Time     `json:"expires_at,omitempty"`
	IsRevoked           bool           `gorm:"not null;default:false" json:"is_revoked"`
	Metadata            datatypes.JSON `json:"metadata"`

	Certification *Certification `gorm:"foreignKey:CertificationID;references:CertificationID" json:"-"`
	User          *User          `gorm:"foreignKey:UserID;references:UserID" json:"-"`
}

func (UserCertification) TableName() string {
	return "user_certifications"
}

// DimensionProgress reports required/completed/missing counts for one
// eligibility dimension.
type DimensionProgress struct {
	Required  int         `json:"required"`
	Completed int         `json:"completed"`
	Missing   []uuid.UUID `json:"missing,omitempty"`
	Current   int         `json:"current,omitempty"`
}

// CertificationEligibility is the result of an eligibility check.
type CertificationEligibility struct {
	IsEligible          bool                         `json:"is_eligible"`
	MissingRequirements []string                     `json:"missing_requirements"`
	Progress            map[string]DimensionProgress `json:"progress"`
	NextActions         []string                     `json:"next_actions"`
}

// PendingCertification pairs an ineligible certification with what is
// still missing.
type PendingCertification struct {
	CertificationID uuid.UUID `json:"certification_id"`
	Requirements    []string  `json:"requirements"`
}

// EligibilitySummary partitions all active certifications for a user.
type EligibilitySummary struct {
	Eligible []uuid.UUID            `json:"eligible"`
	Pending  []PendingCertification `json:"pending"`
}

// CertificationAward is returned after a successful issuance. The
// signing secret never appears here; only the derived hash is exposed.
type CertificationAward struct {
	UserCertificationID uuid.UUID  `json:"user_certification_id"`
	VerificationCode    string     `json:"verification_code"`
	VerificationHash    string     `json:"verification_hash"`
	ExpiresAt           *time.Time `json:"expires_at,omitempty"`
}

// VerificationResult is the uniform verification outcome. Unknown code,
// revocation, tampering and expiry all surface as IsValid=false; expiry
// is additionally reported on its own so callers can word the message.
type VerificationResult struct {
	IsValid       bool           `json:"is_valid"`
	Certification *Certification `json:"certification,omitempty"`
	UserName      string         `json:"user_name,omitempty"`
	EarnedAt      *time.Time     `json:"earned_at,omitempty"`
	ExpiresAt     *time.Time     `json:"expires_at,omitempty"`
	IsExpired     bool           `json:"is_expired,omitempty"`
}
