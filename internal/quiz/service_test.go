package quiz

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"learnhub/internal/auth"
	"learnhub/internal/models"
	"learnhub/pkg/cache"
)

type recordingSender struct {
	mu    sync.Mutex
	views []View
}

func (s *recordingSender) SendToUser(userID uint, messageType string, data interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := data.(View); ok && messageType == MessageState {
		s.views = append(s.views, v)
	}
}

type fixture struct {
	db     *gorm.DB
	cache  *cache.RedisCache
	redis  *miniredis.Miniredis
	users  *auth.Service
	repo   *Repository
	sender *recordingSender
	alice  uint
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.EmailAddress{}, &models.QuizAttempt{}))

	userRepo := auth.NewRepository(db)
	alice := &models.User{Username: "alice", Email: "alice@example.com", Password: "x"}
	require.NoError(t, userRepo.CreateUser(context.Background(), alice))

	mr := miniredis.RunT(t)
	rc := cache.NewRedisCache(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = rc.Close() })

	return &fixture{
		db:     db,
		cache:  rc,
		redis:  mr,
		users:  auth.NewService(userRepo, "test-secret", time.Hour),
		repo:   NewRepository(db),
		sender: &recordingSender{},
		alice:  alice.ID,
	}
}

func (f *fixture) service() *Service {
	return NewService(DefaultCatalog(), DefaultPassMark, f.repo, f.cache, f.users, f.sender)
}

const slug = "react-fundamentals"

func answer(t *testing.T, s *Service, userID uint, option int) View {
	t.Helper()
	ctx := context.Background()
	_, err := s.Apply(ctx, userID, slug, Command{Op: OpSelect, Index: option})
	require.NoError(t, err)
	_, err = s.Apply(ctx, userID, slug, Command{Op: OpSubmit})
	require.NoError(t, err)
	v, err := s.Apply(ctx, userID, slug, Command{Op: OpAdvance})
	require.NoError(t, err)
	return v
}

func TestFullRunPersistsAttempt(t *testing.T) {
	f := newFixture(t)
	s := f.service()
	ctx := context.Background()

	view, err := s.Start(ctx, f.alice, slug)
	require.NoError(t, err)
	assert.Equal(t, PhaseAnswering, view.Phase)
	assert.Equal(t, 3, view.Total)
	assert.Nil(t, view.Question.CorrectIndex, "answer hidden before reveal")

	answer(t, s, f.alice, 1)
	answer(t, s, f.alice, 0)
	view = answer(t, s, f.alice, 1)

	assert.Equal(t, PhaseCompleted, view.Phase)
	require.NotNil(t, view.Result)
	assert.Equal(t, 2, view.Result.Score)
	assert.Equal(t, 67, view.Result.Percentage)
	assert.False(t, view.Result.Passed)
	assert.Equal(t, []bool{true, false, true}, view.Result.Review)

	attempts, err := s.Attempts(ctx, f.alice, slug)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, 67, attempts[0].Percentage)
	var picks []int
	require.NoError(t, json.Unmarshal(attempts[0].Answers, &picks))
	assert.Equal(t, []int{1, 0, 1}, picks)

	board, err := s.Leaderboard(ctx, slug, 0)
	require.NoError(t, err)
	assert.Equal(t, []models.LeaderboardEntry{{Username: "alice", Percentage: 67}}, board)

	// every state change was pushed, the last one being the completion
	require.Len(t, f.sender.views, 9)
	assert.Equal(t, PhaseCompleted, f.sender.views[8].Phase)

	// commands after completion change nothing and are not pushed
	view, err = s.Apply(ctx, f.alice, slug, Command{Op: OpSubmit})
	require.NoError(t, err)
	assert.Equal(t, PhaseCompleted, view.Phase)
	assert.Len(t, f.sender.views, 9)
}

func TestRevealShowsAnswer(t *testing.T) {
	f := newFixture(t)
	s := f.service()
	ctx := context.Background()

	_, err := s.Apply(ctx, f.alice, slug, Command{Op: OpSelect, Index: 3})
	require.NoError(t, err)
	view, err := s.Apply(ctx, f.alice, slug, Command{Op: OpSubmit})
	require.NoError(t, err)

	assert.Equal(t, PhaseRevealed, view.Phase)
	require.NotNil(t, view.Question.CorrectIndex)
	assert.Equal(t, 1, *view.Question.CorrectIndex)
	assert.NotEmpty(t, view.Question.Explanation)
	assert.Zero(t, view.Score)
}

func TestSessionResumesFromSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.service()
	answer(t, first, f.alice, 1)
	_, err := first.Apply(ctx, f.alice, slug, Command{Op: OpSelect, Index: 2})
	require.NoError(t, err)

	// a fresh service, as after a restart
	second := f.service()
	view, err := second.Start(ctx, f.alice, slug)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Index)
	assert.Equal(t, 1, view.Score)
	require.NotNil(t, view.Selected)
	assert.Equal(t, 2, *view.Selected)
}

func TestResetClearsSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.service()

	answer(t, s, f.alice, 1)
	view, err := s.Apply(ctx, f.alice, slug, Command{Op: OpReset})
	require.NoError(t, err)
	assert.Equal(t, 0, view.Index)
	assert.Zero(t, view.Score)

	var st State
	assert.ErrorIs(t, f.cache.GetQuizState(ctx, f.alice, slug, &st), cache.ErrMiss)
}

func TestInconsistentSnapshotIsIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.cache.SetQuizState(ctx, f.alice, slug, State{Index: 2, Score: 3}))

	view, err := f.service().Start(ctx, f.alice, slug)
	require.NoError(t, err)
	assert.Equal(t, 0, view.Index)
	assert.Zero(t, view.Score)
}

func TestApplyErrors(t *testing.T) {
	f := newFixture(t)
	s := f.service()
	ctx := context.Background()

	_, err := s.Apply(ctx, f.alice, "unknown", Command{Op: OpSubmit})
	assert.ErrorIs(t, err, ErrQuizNotFound)

	_, err = s.Apply(ctx, f.alice, slug, Command{Op: OpSelect, Index: 4})
	assert.ErrorIs(t, err, ErrOptionOutOfRange)

	_, err = s.Attempts(ctx, f.alice, "unknown")
	assert.ErrorIs(t, err, ErrQuizNotFound)
}

func TestLeaderboardFallsBackToDatabase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.service()

	answer(t, s, f.alice, 1)
	answer(t, s, f.alice, 2)
	answer(t, s, f.alice, 1)
	_, err := s.Apply(ctx, f.alice, slug, Command{Op: OpReset})
	require.NoError(t, err)
	answer(t, s, f.alice, 0)
	answer(t, s, f.alice, 0)
	answer(t, s, f.alice, 0)

	f.redis.FlushAll()

	board, err := s.Leaderboard(ctx, slug, 5)
	require.NoError(t, err)
	assert.Equal(t, []models.LeaderboardEntry{{Username: "alice", Percentage: 100}}, board)

	attempts, err := s.Attempts(ctx, f.alice, slug)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.True(t, attempts[1].Passed)
	assert.False(t, attempts[0].Passed)
}

func TestHandlerRoutes(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.service())

	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(auth.WithUserID(req.Context(), f.alice)))
		})
	})
	r.HandleFunc("/api/quizzes", h.ListQuizzes).Methods(http.MethodGet)
	r.HandleFunc("/api/quizzes/{slug}/start", h.StartQuiz).Methods(http.MethodPost)
	r.HandleFunc("/api/quizzes/{slug}/commands", h.SendCommand).Methods(http.MethodPost)
	r.HandleFunc("/api/quizzes/{slug}/attempts", h.GetAttempts).Methods(http.MethodGet)
	r.HandleFunc("/api/quizzes/{slug}/leaderboard", h.GetLeaderboard).Methods(http.MethodGet)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := do(http.MethodGet, "/api/quizzes", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"questions":3`)

	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/api/quizzes/"+slug+"/start", "").Code)
	assert.Equal(t, http.StatusNotFound, do(http.MethodPost, "/api/quizzes/nope/start", "").Code)
	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/api/quizzes/"+slug+"/commands", `{"op":"select","index":1}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(http.MethodPost, "/api/quizzes/"+slug+"/commands", `{"op":"select","index":9}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(http.MethodPost, "/api/quizzes/"+slug+"/commands", `{"op":"skip"}`).Code)
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/api/quizzes/"+slug+"/attempts", "").Code)
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/api/quizzes/"+slug+"/leaderboard?limit=3", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(http.MethodGet, "/api/quizzes/"+slug+"/leaderboard?limit=x", "").Code)
}

func TestLeaderboardRebuiltFromStoredAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// bob finished before the cached board existed
	bob := &models.User{Username: "bob", Email: "bob@example.com", Password: "x"}
	require.NoError(t, auth.NewRepository(f.db).CreateUser(ctx, bob))
	require.NoError(t, f.repo.SaveAttempt(ctx, &models.QuizAttempt{
		UserID:      bob.ID,
		QuizSlug:    slug,
		Score:       3,
		Total:       3,
		Percentage:  100,
		Passed:      true,
		Answers:     []byte(`[1,2,1]`),
		CompletedAt: time.Now(),
	}))

	s := f.service()
	answer(t, s, f.alice, 1)
	answer(t, s, f.alice, 0)
	answer(t, s, f.alice, 1)

	want := []models.LeaderboardEntry{
		{Username: "bob", Percentage: 100},
		{Username: "alice", Percentage: 67},
	}
	cached, err := f.cache.GetLeaderboard(ctx, slug, 10)
	require.NoError(t, err)
	assert.Equal(t, want, cached)

	board, err := s.Leaderboard(ctx, slug, 10)
	require.NoError(t, err)
	assert.Equal(t, want, board)
}

func TestLeaderboardRebuiltAfterExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.service()

	answer(t, s, f.alice, 1)
	answer(t, s, f.alice, 2)
	answer(t, s, f.alice, 1)

	f.redis.FastForward(48 * time.Hour)

	bob := &models.User{Username: "bob", Email: "bob@example.com", Password: "x"}
	require.NoError(t, auth.NewRepository(f.db).CreateUser(ctx, bob))
	answer(t, s, bob.ID, 0)
	answer(t, s, bob.ID, 2)
	answer(t, s, bob.ID, 1)

	board, err := s.Leaderboard(ctx, slug, 10)
	require.NoError(t, err)
	assert.Equal(t, []models.LeaderboardEntry{
		{Username: "alice", Percentage: 100},
		{Username: "bob", Percentage: 67},
	}, board)
}

func TestReselectingSameOptionIsNotPushed(t *testing.T) {
	f := newFixture(t)
	s := f.service()
	ctx := context.Background()

	_, err := s.Apply(ctx, f.alice, slug, Command{Op: OpSelect, Index: 1})
	require.NoError(t, err)
	_, err = s.Apply(ctx, f.alice, slug, Command{Op: OpSelect, Index: 1})
	require.NoError(t, err)

	assert.Len(t, f.sender.views, 1)
}

// blockingSnapshots stalls snapshot loads for one user until released.
type blockingSnapshots struct {
	*cache.RedisCache
	userID  uint
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSnapshots) GetQuizState(ctx context.Context, userID uint, slug string, dest interface{}) error {
	if userID == b.userID {
		close(b.entered)
		<-b.release
	}
	return b.RedisCache.GetQuizState(ctx, userID, slug, dest)
}

func TestSlowSnapshotLoadDoesNotBlockOtherLearners(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	snaps := &blockingSnapshots{
		RedisCache: f.cache,
		userID:     f.alice,
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	s := NewService(DefaultCatalog(), DefaultPassMark, f.repo, snaps, f.users, f.sender)

	slow := make(chan error, 1)
	go func() {
		_, err := s.Start(ctx, f.alice, slug)
		slow <- err
	}()
	<-snaps.entered

	other := make(chan error, 1)
	go func() {
		_, err := s.Start(ctx, f.alice+1, slug)
		other <- err
	}()

	select {
	case err := <-other:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("start blocked behind another learner's snapshot load")
	}

	close(snaps.release)
	require.NoError(t, <-slow)
}
