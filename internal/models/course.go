// internal/models/course.go
package models

import (
	"time"

	"gorm.io/gorm"
)

type Course struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`
	Title         string         `json:"title" gorm:"not null"`
	Description   string         `json:"description"`
	Instructor    string         `json:"instructor"`
	DurationLabel string         `json:"duration"`
	Students      int            `json:"students"`
	Rating        float64        `json:"rating"`
	ThumbnailURL  string         `json:"thumbnail"`
	Level         string         `json:"level"`
	VideoURL      string         `json:"video_url,omitempty"`
	// VideoObject is the object key of the course video in the media bucket.
	VideoObject string `json:"-"`
}

// CourseProgress is how far one learner got through one course, 0-100.
type CourseProgress struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserID    uint      `json:"user_id" gorm:"uniqueIndex:idx_user_course;not null"`
	CourseID  uint      `json:"course_id" gorm:"uniqueIndex:idx_user_course;not null"`
	Percent   int       `json:"percent" gorm:"not null"`
}

func (CourseProgress) TableName() string {
	return "course_progress"
}
