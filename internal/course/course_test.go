package course

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"learnhub/internal/auth"
	"learnhub/internal/models"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Course{}, &models.CourseProgress{}))

	repo := NewRepository(db)
	require.NoError(t, repo.SeedCourses(context.Background(), MockCourses()))
	return repo
}

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	require.NoError(t, repo.SeedCourses(ctx, MockCourses()))

	courses, err := repo.ListCourses(ctx)
	require.NoError(t, err)
	require.Len(t, courses, 3)
	assert.Equal(t, "React Development Fundamentals", courses[0].Title)
}

func TestRecordProgressNeverDecreases(t *testing.T) {
	ctx := context.Background()
	s := NewService(newTestRepo(t))

	require.NoError(t, s.RecordProgress(ctx, 1, 1, 40))
	require.NoError(t, s.RecordProgress(ctx, 1, 1, 25))
	require.NoError(t, s.RecordProgress(ctx, 2, 1, 90))

	c, err := s.Get(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 40, c.Progress)

	require.NoError(t, s.RecordProgress(ctx, 1, 1, 65))
	c, err = s.Get(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 65, c.Progress)

	assert.ErrorIs(t, s.RecordProgress(ctx, 1, 1, 101), ErrInvalidProgress)
	assert.ErrorIs(t, s.RecordProgress(ctx, 1, 1, -1), ErrInvalidProgress)
}

func TestGetUnknownCourse(t *testing.T) {
	s := NewService(newTestRepo(t))
	_, err := s.Get(context.Background(), 1, 42)
	assert.ErrorIs(t, err, ErrCourseNotFound)
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name     string
		progress []int
		want     models.CourseSummaryDTO
	}{
		{name: "no courses", want: models.CourseSummaryDTO{}},
		{name: "dashboard mock", progress: []int{65, 30, 0}, want: models.CourseSummaryDTO{InProgress: 2, AverageProgress: 32}},
		{name: "one finished", progress: []int{100, 50}, want: models.CourseSummaryDTO{Completed: 1, InProgress: 1, AverageProgress: 75}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			courses := make([]models.CourseDTO, len(tt.progress))
			for i, p := range tt.progress {
				courses[i].Progress = p
			}
			assert.Equal(t, tt.want, Summarize(courses))
		})
	}
}

func TestHandlerGetCourse(t *testing.T) {
	h := NewHandler(NewService(newTestRepo(t)))
	router := mux.NewRouter()
	router.HandleFunc("/api/courses/{id}", h.GetCourse)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{name: "found", path: "/api/courses/2", status: http.StatusOK},
		{name: "missing", path: "/api/courses/9", status: http.StatusNotFound},
		{name: "bad id", path: "/api/courses/abc", status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.path, nil)
			r = r.WithContext(auth.WithUserID(r.Context(), 1))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, r)
			assert.Equal(t, tt.status, w.Code)
		})
	}

	r := httptest.NewRequest(http.MethodGet, "/api/courses/2", nil)
	r = r.WithContext(auth.WithUserID(r.Context(), 1))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	var body struct {
		Data models.CourseDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Advanced JavaScript Patterns", body.Data.Title)
	assert.Equal(t, 0, body.Data.Progress)
}
