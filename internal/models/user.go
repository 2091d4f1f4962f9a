// internal/models/user.go
package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`
	Username       string         `json:"username" gorm:"uniqueIndex;not null"`
	DisplayName    string         `json:"display_name"`
	Email          string         `json:"email" gorm:"uniqueIndex;not null"`
	Password       string         `json:"-" gorm:"not null"`
	AvatarURL      string         `json:"avatar_url"`
	EmailAddresses []EmailAddress `json:"email_addresses,omitempty" gorm:"foreignKey:UserID"`
}

type EmailAddress struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UserID    uint      `json:"user_id" gorm:"index"`
	Address   string    `json:"address" gorm:"not null"`
	Verified  bool      `json:"verified"`
}
