// internal/model/user.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the platform account the engines evaluate. Authentication and
// profile management live elsewhere; this service only reads users and
// clears expired reset tokens during housekeeping.
type User struct {
	UserID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"user_id"`
	Name              string         `gorm:"not null" json:"name"`
	Email             string         `gorm:"unique;not null" json:"email"`
	ResetToken        *string        `json:"-"`
	ResetTokenExpires *time.Time     `json:"-"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

type ContextKey string

const (
	UserIDKey ContextKey = "userID"
)
