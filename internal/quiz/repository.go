// internal/quiz/repository.go
package quiz

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"learnhub/internal/models"
	"learnhub/pkg/logger"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) SaveAttempt(ctx context.Context, attempt *models.QuizAttempt) error {
	if err := r.db.WithContext(ctx).Create(attempt).Error; err != nil {
		return errors.Wrap(err, "save quiz attempt")
	}
	logger.Log.Debug("saved quiz attempt", zap.Uint("id", attempt.ID), zap.String("quiz", attempt.QuizSlug))
	return nil
}

func (r *Repository) ListAttempts(ctx context.Context, userID uint, slug string) ([]models.QuizAttempt, error) {
	var attempts []models.QuizAttempt
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND quiz_slug = ?", userID, slug).
		Order("completed_at desc, id desc").
		Find(&attempts).Error
	if err != nil {
		return nil, errors.Wrapf(err, "list attempts for user %d", userID)
	}
	return attempts, nil
}

// Leaderboard ranks users by their best attempt on a quiz. A limit of zero
// returns every user.
func (r *Repository) Leaderboard(ctx context.Context, slug string, limit int) ([]models.LeaderboardEntry, error) {
	var entries []models.LeaderboardEntry

	q := r.db.WithContext(ctx).
		Table("users u").
		Select("u.username, MAX(a.percentage) AS percentage").
		Joins("JOIN quiz_attempts a ON u.id = a.user_id").
		Where("a.quiz_slug = ? AND u.deleted_at IS NULL", slug).
		Group("u.username").
		Order("percentage DESC, u.username ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Scan(&entries).Error; err != nil {
		logger.Log.Error("query leaderboard", zap.String("quiz", slug), zap.Error(err))
		return nil, errors.Wrap(err, "query leaderboard")
	}
	return entries, nil
}
