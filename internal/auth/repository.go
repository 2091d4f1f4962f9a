// internal/auth/repository.go
package auth

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

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		logger.Log.Error("find user by username", zap.String("username", username), zap.Error(err))
		return nil, errors.Wrap(err, "find user by username")
	}
	return &user, nil
}

func (r *Repository) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Preload("EmailAddresses").First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "find user %d", id)
	}
	return &user, nil
}

// CreateUser stores the user together with its email addresses.
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ? OR email = ?", user.Username, user.Email).
		Count(&count).Error
	if err != nil {
		return errors.Wrap(err, "check existing user")
	}
	if count > 0 {
		return ErrUserExists
	}
	// a concurrent registration or a soft-deleted user can still hold the name
	err = r.db.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrUserExists
	}
	return errors.Wrap(err, "create user")
}
