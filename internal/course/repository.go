// internal/course/repository.go
package course

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"learnhub/internal/models"
	"learnhub/pkg/logger"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ListCourses(ctx context.Context) ([]models.Course, error) {
	var courses []models.Course
	if err := r.db.WithContext(ctx).Order("id asc").Find(&courses).Error; err != nil {
		return nil, errors.Wrap(err, "list courses")
	}
	return courses, nil
}

func (r *Repository) GetCourse(ctx context.Context, id uint) (*models.Course, error) {
	var course models.Course
	err := r.db.WithContext(ctx).First(&course, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCourseNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get course %d", id)
	}
	return &course, nil
}

// ProgressByUser maps course id to the learner's percent.
func (r *Repository) ProgressByUser(ctx context.Context, userID uint) (map[uint]int, error) {
	var rows []models.CourseProgress
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "list course progress")
	}
	out := make(map[uint]int, len(rows))
	for _, p := range rows {
		out[p.CourseID] = p.Percent
	}
	return out, nil
}

// RaiseProgress stores percent unless a higher value is already recorded.
func (r *Repository) RaiseProgress(ctx context.Context, userID, courseID uint, percent int) error {
	row := models.CourseProgress{UserID: userID, CourseID: courseID, Percent: percent}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"percent":    gorm.Expr("CASE WHEN course_progress.percent < ? THEN ? ELSE course_progress.percent END", percent, percent),
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&row).Error
	return errors.Wrap(err, "raise course progress")
}

// SeedCourses inserts courses when the table is empty.
func (r *Repository) SeedCourses(ctx context.Context, courses []models.Course) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Course{}).Count(&count).Error; err != nil {
		return errors.Wrap(err, "count courses")
	}
	if count > 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&courses).Error; err != nil {
		return errors.Wrap(err, "seed courses")
	}
	logger.Log.Info("seeded courses", zap.Int("count", len(courses)))
	return nil
}
