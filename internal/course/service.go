// internal/course/service.go
package course

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"learnhub/internal/models"
)

var (
	ErrCourseNotFound  = errors.New("course not found")
	ErrInvalidProgress = errors.New("progress must be between 0 and 100")
)

// Store is the persistence the service needs; *Repository implements it.
type Store interface {
	ListCourses(ctx context.Context) ([]models.Course, error)
	GetCourse(ctx context.Context, id uint) (*models.Course, error)
	ProgressByUser(ctx context.Context, userID uint) (map[uint]int, error)
	RaiseProgress(ctx context.Context, userID, courseID uint, percent int) error
}

type Service struct {
	repo Store
}

func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, userID uint) ([]models.CourseDTO, error) {
	courses, err := s.repo.ListCourses(ctx)
	if err != nil {
		return nil, err
	}
	progress, err := s.repo.ProgressByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]models.CourseDTO, len(courses))
	for i, c := range courses {
		out[i] = models.CourseDTO{Course: c, Progress: progress[c.ID]}
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, userID, id uint) (*models.CourseDTO, error) {
	c, err := s.repo.GetCourse(ctx, id)
	if err != nil {
		return nil, err
	}
	progress, err := s.repo.ProgressByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.CourseDTO{Course: *c, Progress: progress[c.ID]}, nil
}

// Course returns the bare course record.
func (s *Service) Course(ctx context.Context, id uint) (*models.Course, error) {
	return s.repo.GetCourse(ctx, id)
}

// RecordProgress raises the learner's progress on a course. Lower values than
// what is stored are ignored.
func (s *Service) RecordProgress(ctx context.Context, userID, courseID uint, percent int) error {
	if percent < 0 || percent > 100 {
		return ErrInvalidProgress
	}
	return s.repo.RaiseProgress(ctx, userID, courseID, percent)
}

func (s *Service) Summary(ctx context.Context, userID uint) (models.CourseSummaryDTO, error) {
	courses, err := s.List(ctx, userID)
	if err != nil {
		return models.CourseSummaryDTO{}, err
	}
	return Summarize(courses), nil
}

// Summarize counts finished and started courses and averages progress.
func Summarize(courses []models.CourseDTO) models.CourseSummaryDTO {
	var summary models.CourseSummaryDTO
	if len(courses) == 0 {
		return summary
	}

	total := 0
	for _, c := range courses {
		switch {
		case c.Progress == 100:
			summary.Completed++
		case c.Progress > 0:
			summary.InProgress++
		}
		total += c.Progress
	}
	summary.AverageProgress = int(math.Round(float64(total) / float64(len(courses))))
	return summary
}
