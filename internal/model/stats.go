// internal/model/stats.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// UserStats is the per-user aggregate snapshot the criteria evaluator
// reads. Rows are created lazily with zeroed counters on first access
// and only mutated by the stats/activity pipeline (plus the atomic
// points increment performed inside an award transaction).
//
// Invariant: LongestStreak >= CurrentStreak.
type UserStats struct {
	UserID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"user_id"`
	TotalLessonsCompleted int        `gorm:"not null;default:0" json:"total_lessons_completed"`
	TotalNotesCreated     int        `gorm:"not null;default:0" json:"total_notes_created"`
	TotalBookmarksCreated int        `gorm:"not null;default:0" json:"total_bookmarks_created"`
	TotalTimeSpentMinutes int        `gorm:"not null;default:0" json:"total_time_spent_minutes"`
	CurrentStreak         int        `gorm:"not null;default:0" json:"current_streak"`
	LongestStreak         int        `gorm:"not null;default:0" json:"longest_streak"`
	TotalPointsEarned     int        `gorm:"not null;default:0" json:"total_points_earned"`
	LastActivityDate      *time.Time `json:"last_activity_date"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

func (UserStats) TableName() string {
	return "user_stats"
}

// StatsSnapshot is the audit copy of the counters persisted alongside
// an award.
type StatsSnapshot struct {
	TotalLessonsCompleted int `json:"total_lessons_completed"`
	CurrentStreak         int `json:"current_streak"`
	TotalTimeSpentMinutes int `json:"total_time_spent_minutes"`
}

func (s *UserStats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		TotalLessonsCompleted: s.TotalLessonsCompleted,
		CurrentStreak:         s.CurrentStreak,
		TotalTimeSpentMinutes: s.TotalTimeSpentMinutes,
	}
}
