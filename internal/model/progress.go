// internal/model/progress.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProgressStatus string

const (
	ProgressInProgress ProgressStatus = "in_progress"
	ProgressCompleted  ProgressStatus = "completed"
)

// Lesson is a minimal reference entity; authoring lives in the content
// service, the engines only join against lesson IDs.
type Lesson struct {
	LessonID  uuid.UUID      `gorm:"type:uuid;primaryKey" json:"lesson_id"`
	Title     string         `gorm:"not null" json:"title"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Lesson) TableName() string {
	return "lessons"
}

// LessonProgress is one user's state on one lesson; completion events
// feed the streak calculator and the speed-completion side query.
type LessonProgress struct {
	ProgressID       uuid.UUID      `gorm:"type:uuid;primaryKey" json:"progress_id"`
	UserID           uuid.UUID      `gorm:"type:uuid;not null;index:idx_user_lesson,unique" json:"user_id"`
	LessonID         uuid.UUID      `gorm:"type:uuid;not null;index:idx_user_lesson,unique" json:"lesson_id"`
	Status           ProgressStatus `gorm:"not null;default:'in_progress'" json:"status"`
	TimeSpentMinutes int            `gorm:"not null;default:0" json:"time_spent_minutes"`
	CompletedAt      *time.Time     `gorm:"index" json:"completed_at,omitempty"`
	LastAccessed     time.Time      `gorm:"not null;index" json:"last_accessed"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func (LessonProgress) TableName() string {
	return "lesson_progress"
}

type LessonNote struct {
	NoteID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"note_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	LessonID  uuid.UUID `gorm:"type:uuid;not null;index" json:"lesson_id"`
	Content   string    `gorm:"not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (LessonNote) TableName() string {
	return "lesson_notes"
}

type LessonBookmark struct {
	BookmarkID uuid.UUID `gorm:"type:uuid;primaryKey" json:"bookmark_id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index:idx_user_bookmark,unique" json:"user_id"`
	LessonID   uuid.UUID `gorm:"type:uuid;not null;index:idx_user_bookmark,unique" json:"lesson_id"`
	CreatedAt  time.Time `json:"created_at"`
}

func (LessonBookmark) TableName() string {
	return "lesson_bookmarks"
}

// LearningPath groups lessons; a path only counts as complete when every
// lesson flagged required within it is completed.
type LearningPath struct {
	PathID    uuid.UUID      `gorm:"type:uuid;primaryKey" json:"path_id"`
	Name      string         `gorm:"not null" json:"name"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Lessons []PathLesson `gorm:"foreignKey:PathID;references:PathID" json:"lessons"`
}

func (LearningPath) TableName() string {
	return "learning_paths"
}

type PathLesson struct {
	PathLessonID uuid.UUID `gorm:"type:uuid;primaryKey" json:"path_lesson_id"`
	PathID       uuid.UUID `gorm:"type:uuid;not null;index:idx_path_lesson,unique" json:"path_id"`
	LessonID     uuid.UUID `gorm:"type:uuid;not null;index:idx_path_lesson,unique" json:"lesson_id"`
	IsRequired   bool      `gorm:"not null" json:"is_required"`
	Position     int       `gorm:"not null;default:0" json:"position"`
}

func (PathLesson) TableName() string {
	return "path_lessons"
}

// ActivitySummary aggregates a user's raw progress rows for the stats
// recompute walk.
type ActivitySummary struct {
	CompletedLessons int
	TotalMinutes     int
	LastActivity     *time.Time
}
