// internal/models/quiz.go
package models

import (
	"time"

	"gorm.io/datatypes"
)

// QuizAttempt is a finished run through a quiz.
type QuizAttempt struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	CreatedAt   time.Time      `json:"created_at"`
	UserID      uint           `json:"user_id" gorm:"index:idx_user_quiz;not null"`
	QuizSlug    string         `json:"quiz" gorm:"index:idx_user_quiz;not null"`
	Score       int            `json:"score"`
	Total       int            `json:"total"`
	Percentage  int            `json:"percentage"`
	Passed      bool           `json:"passed"`
	Answers     datatypes.JSON `json:"answers"`
	CompletedAt time.Time      `json:"completed_at"`
}

type LeaderboardEntry struct {
	Username   string `json:"username"`
	Percentage int    `json:"percentage"`
}
