// internal/model/achievement.go
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type CriteriaKind string

const (
	CriteriaLessonsCompleted CriteriaKind = "lessons_completed"
	CriteriaStreakDays       CriteriaKind = "streak_days"
	CriteriaNotesTaken       CriteriaKind = "notes_taken"
	CriteriaBookmarksCreated CriteriaKind = "bookmarks_created"
	CriteriaTimeSpent        CriteriaKind = "time_spent"
	CriteriaConsecutiveDays  CriteriaKind = "consecutive_days"
	CriteriaSpeedCompletion  CriteriaKind = "speed_completion"
	CriteriaEngagementScore  CriteriaKind = "engagement_score"
)

// Criteria is the award rule attached to an achievement definition.
// One variant exists per criteria kind so the evaluator can type-switch
// instead of interpreting a free-form threshold/metadata object.
// Unrecognized kinds decode to UnknownCriteria, which never satisfies.
type Criteria interface {
	Kind() CriteriaKind
}

type LessonsCompletedCriteria struct{ Threshold int }
type StreakDaysCriteria struct{ Threshold int }
type NotesTakenCriteria struct{ Threshold int }
type BookmarksCreatedCriteria struct{ Threshold int }
type TimeSpentCriteria struct{ Threshold int }
type ConsecutiveDaysCriteria struct{ Threshold int }

// SpeedCompletionCriteria cannot be decided from the stats snapshot; it
// needs a live count of completions inside the trailing window.
type SpeedCompletionCriteria struct {
	LessonsRequired int
	DaysAllowed     int
}

type EngagementWeights struct {
	Lessons   int `json:"lessons"`
	Notes     int `json:"notes"`
	Bookmarks int `json:"bookmarks"`
	Streak    int `json:"streak"`
}

func DefaultEngagementWeights() EngagementWeights {
	return EngagementWeights{Lessons: 1, Notes: 2, Bookmarks: 1, Streak: 3}
}

type EngagementScoreCriteria struct {
	Threshold int
	Weights   EngagementWeights
}

// UnknownCriteria preserves an undecodable rule so persistence round-trips;
// evaluation fails closed on it.
type UnknownCriteria struct{ Type string }

func (LessonsCompletedCriteria) Kind() CriteriaKind { return CriteriaLessonsCompleted }
func (StreakDaysCriteria) Kind() CriteriaKind       { return CriteriaStreakDays }
func (NotesTakenCriteria) Kind() CriteriaKind       { return CriteriaNotesTaken }
func (BookmarksCreatedCriteria) Kind() CriteriaKind { return CriteriaBookmarksCreated }
func (TimeSpentCriteria) Kind() CriteriaKind        { return CriteriaTimeSpent }
func (ConsecutiveDaysCriteria) Kind() CriteriaKind  { return CriteriaConsecutiveDays }
func (SpeedCompletionCriteria) Kind() CriteriaKind  { return CriteriaSpeedCompletion }
func (EngagementScoreCriteria) Kind() CriteriaKind  { return CriteriaEngagementScore }
func (u UnknownCriteria) Kind() CriteriaKind        { return CriteriaKind(u.Type) }

const (
	DefaultSpeedLessonsRequired = 5
	DefaultSpeedDaysAllowed     = 7
)

// criteriaEnvelope is the stored wire format. The key names match the
// seed data shipped with the platform.
type criteriaEnvelope struct {
	Type      string            `json:"type"`
	Threshold int               `json:"threshold"`
	Metadata  *criteriaMetadata `json:"metadata,omitempty"`
}

type criteriaMetadata struct {
	LessonsRequired *int               `json:"lessonsRequired,omitempty"`
	DaysAllowed     *int               `json:"daysAllowed,omitempty"`
	Weights         *EngagementWeights `json:"weights,omitempty"`
}

// CriteriaSpec wraps the union for storage in a jsonb column.
type CriteriaSpec struct {
	Criteria
}

func NewCriteriaSpec(c Criteria) CriteriaSpec {
	return CriteriaSpec{Criteria: c}
}

func (s CriteriaSpec) MarshalJSON() ([]byte, error) {
	// gorm's schema parser marshals zero values, so the nil union must
	// be handled before Kind is called on it.
	if s.Criteria == nil {
		return []byte("null"), nil
	}
	env := criteriaEnvelope{Type: string(s.Kind())}
	switch c := s.Criteria.(type) {
	case LessonsCompletedCriteria:
		env.Threshold = c.Threshold
	case StreakDaysCriteria:
		env.Threshold = c.Threshold
	case NotesTakenCriteria:
		env.Threshold = c.Threshold
	case BookmarksCreatedCriteria:
		env.Threshold = c.Threshold
	case TimeSpentCriteria:
		env.Threshold = c.Threshold
	case ConsecutiveDaysCriteria:
		env.Threshold = c.Threshold
	case SpeedCompletionCriteria:
		lessons, days := c.LessonsRequired, c.DaysAllowed
		env.Threshold = lessons
		env.Metadata = &criteriaMetadata{LessonsRequired: &lessons, DaysAllowed: &days}
	case EngagementScoreCriteria:
		weights := c.Weights
		env.Threshold = c.Threshold
		env.Metadata = &criteriaMetadata{Weights: &weights}
	case UnknownCriteria:
		env.Type = c.Type
	default:
		return nil, fmt.Errorf("CriteriaSpec.MarshalJSON: unhandled criteria kind %q", s.Kind())
	}
	return json.Marshal(env)
}

func (s *CriteriaSpec) UnmarshalJSON(data []byte) error {
	var env criteriaEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("CriteriaSpec.UnmarshalJSON: %w", err)
	}

	switch CriteriaKind(env.Type) {
	case CriteriaLessonsCompleted:
		s.Criteria = LessonsCompletedCriteria{Threshold: env.Threshold}
	case CriteriaStreakDays:
		s.Criteria = StreakDaysCriteria{Threshold: env.Threshold}
	case CriteriaNotesTaken:
		s.Criteria = NotesTakenCriteria{Threshold: env.Threshold}
	case CriteriaBookmarksCreated:
		s.Criteria = BookmarksCreatedCriteria{Threshold: env.Threshold}
	case CriteriaTimeSpent:
		s.Criteria = TimeSpentCriteria{Threshold: env.Threshold}
	case CriteriaConsecutiveDays:
		s.Criteria = ConsecutiveDaysCriteria{Threshold: env.Threshold}
	case CriteriaSpeedCompletion:
		c := SpeedCompletionCriteria{
			LessonsRequired: DefaultSpeedLessonsRequired,
			DaysAllowed:     DefaultSpeedDaysAllowed,
		}
		if env.Metadata != nil {
			if env.Metadata.LessonsRequired != nil {
				c.LessonsRequired = *env.Metadata.LessonsRequired
			}
			if env.Metadata.DaysAllowed != nil {
				c.DaysAllowed = *env.Metadata.DaysAllowed
			}
		}
		s.Criteria = c
	case CriteriaEngagementScore:
		c := EngagementScoreCriteria{
			Threshold: env.Threshold,
			Weights:   DefaultEngagementWeights(),
		}
		if env.Metadata != nil && env.Metadata.Weights != nil {
			c.Weights = *env.Metadata.Weights
		}
		s.Criteria = c
	default:
		s.Criteria = UnknownCriteria{Type: env.Type}
	}
	return nil
}

// Value implements driver.Valuer so the criteria are stored as jsonb.
func (s CriteriaSpec) Value() (driver.Value, error) {
	if s.Criteria == nil {
		return nil, nil
	}
	b, err := s.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (s *CriteriaSpec) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		s.Criteria = UnknownCriteria{}
		return nil
	case []byte:
		return s.UnmarshalJSON(v)
	case string:
		return s.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("CriteriaSpec.Scan: unsupported column type %T", value)
	}
}

// Achievement is an immutable award rule definition.
type Achievement struct {
	AchievementID uuid.UUID    `gorm:"type:uuid;primaryKey" json:"achievement_id"`
	Name          string       `gorm:"not null" json:"name"`
	Description   string       `gorm:"not null" json:"description"`
	Category      string       `gorm:"not null;index" json:"category"`
	DisplayOrder  int          `gorm:"not null;default:0" json:"display_order"`
	IsActive      bool         `gorm:"not null;index" json:"is_active"`
	PointsAwarded int          `gorm:"not null;default:0" json:"points_awarded"`
	Criteria      CriteriaSpec `gorm:"type:jsonb;not null" json:"criteria"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

func (Achievement) TableName() string {
	return "achievements"
}

// UserAchievement records a single grant. Rows are created exactly once
// per (user, achievement) pair and never mutated or deleted.
type UserAchievement struct {
	UserAchievementID uuid.UUID      `gorm:"type:uuid;primaryKey" json:"user_achievement_id"`
	UserID            uuid.UUID      `gorm:"type:uuid;not null;index:idx_user_achievement,unique" json:"user_id"`
	AchievementID     uuid.UUID      `gorm:"type:uuid;not null;index:idx_user_achievement,unique" json:"achievement_id"`
	EarnedAt          time.Time      `gorm:"not null" json:"earned_at"`
	Metadata          datatypes.JSON `json:"metadata"`

	Achievement *Achievement `gorm:"foreignKey:AchievementID;references:AchievementID" json:"-"`
}

func (UserAchievement) TableName() string {
	return "user_achievements"
}

// AchievementProgress is the per-definition progress view returned for
// UI consumption.
type AchievementProgress struct {
	AchievementID uuid.UUID      `json:"achievement_id"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Category      string         `json:"category"`
	Progress      int            `json:"progress"`
	Threshold     int            `json:"threshold"`
	IsCompleted   bool           `json:"is_completed"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	NextMilestone *NextMilestone `json:"next_milestone,omitempty"`
}

type NextMilestone struct {
	Name      string `json:"name"`
	Threshold int    `json:"threshold"`
	Remaining int    `json:"remaining"`
}

// EarnedAchievement is the detail view of a grant.
type EarnedAchievement struct {
	AchievementID uuid.UUID `json:"achievement_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	PointsAwarded int       `json:"points_awarded"`
	EarnedAt      time.Time `json:"earned_at"`
}
