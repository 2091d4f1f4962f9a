// internal/quiz/service.go
package quiz

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"learnhub/internal/models"
	"learnhub/pkg/cache"
	"learnhub/pkg/logger"
	"learnhub/pkg/metrics"
)

var ErrQuizNotFound = errors.New("quiz not found")

const (
	MessageState = "quiz.state"

	defaultLeaderboardSize = 10
)

// Snapshots keeps in-progress quiz state across restarts.
type Snapshots interface {
	SetQuizState(ctx context.Context, userID uint, slug string, state interface{}) error
	GetQuizState(ctx context.Context, userID uint, slug string, dest interface{}) error
	DeleteQuizState(ctx context.Context, userID uint, slug string) error
	RecordBestScore(ctx context.Context, slug, username string, percentage int) error
	MergeScores(ctx context.Context, slug string, entries []models.LeaderboardEntry) error
	HasLeaderboard(ctx context.Context, slug string) (bool, error)
	GetLeaderboard(ctx context.Context, slug string, limit int64) ([]models.LeaderboardEntry, error)
}

type AttemptStore interface {
	SaveAttempt(ctx context.Context, attempt *models.QuizAttempt) error
	ListAttempts(ctx context.Context, userID uint, slug string) ([]models.QuizAttempt, error)
	Leaderboard(ctx context.Context, slug string, limit int) ([]models.LeaderboardEntry, error)
}

type UserSource interface {
	CurrentUser(ctx context.Context, userID uint) (*models.User, error)
}

type Sender interface {
	SendToUser(userID uint, messageType string, data interface{})
}

type sessionKey struct {
	userID uint
	slug   string
}

type session struct {
	mu   sync.Mutex
	quiz Quiz
	ctrl *Controller
}

// QuestionView hides the answer until it is revealed.
type QuestionView struct {
	ID           int      `json:"id"`
	Prompt       string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex *int     `json:"correct_answer,omitempty"`
	Explanation  string   `json:"explanation,omitempty"`
}

type View struct {
	Slug     string       `json:"slug"`
	Title    string       `json:"title"`
	Phase    Phase        `json:"phase"`
	Index    int          `json:"current_question"`
	Total    int          `json:"total"`
	Question QuestionView `json:"question"`
	Selected *int         `json:"selected_answer"`
	Score    int          `json:"score"`
	Progress float64      `json:"progress"`
	Result   *Result      `json:"result,omitempty"`
}

func (s *session) view() View {
	st := s.ctrl.State()
	q := s.ctrl.Current()
	qv := QuestionView{ID: q.ID, Prompt: q.Prompt, Options: q.Options}
	if st.Phase() != PhaseAnswering {
		correct := q.CorrectIndex
		qv.CorrectIndex = &correct
		qv.Explanation = q.Explanation
	}

	v := View{
		Slug:     s.quiz.Slug,
		Title:    s.quiz.Title,
		Phase:    st.Phase(),
		Index:    st.Index,
		Total:    len(s.quiz.Questions),
		Question: qv,
		Selected: st.Selected,
		Score:    st.Score,
		Progress: s.ctrl.ProgressPercent(),
	}
	if st.Completed {
		r := s.ctrl.Result()
		v.Result = &r
	}
	return v
}

// Service hosts one quiz controller per learner and quiz.
type Service struct {
	catalog   Catalog
	passMark  int
	attempts  AttemptStore
	snapshots Snapshots
	users     UserSource
	sender    Sender

	mu       sync.Mutex
	sessions map[sessionKey]*session
	now      func() time.Time
}

// NewService wires the quiz sessions. snapshots and users may be nil.
func NewService(catalog Catalog, passMark int, attempts AttemptStore, snapshots Snapshots, users UserSource, sender Sender) *Service {
	return &Service{
		catalog:   catalog,
		passMark:  passMark,
		attempts:  attempts,
		snapshots: snapshots,
		users:     users,
		sender:    sender,
		sessions:  make(map[sessionKey]*session),
		now:       time.Now,
	}
}

func (s *Service) Quizzes() []Quiz {
	return s.catalog.List()
}

func (s *Service) session(ctx context.Context, userID uint, slug string) (*session, error) {
	key := sessionKey{userID, slug}

	s.mu.Lock()
	sess, ok := s.sessions[key]
	s.mu.Unlock()
	if ok {
		return sess, nil
	}

	quiz, ok := s.catalog.Get(slug)
	if !ok {
		return nil, ErrQuizNotFound
	}
	fresh := &session{quiz: quiz, ctrl: NewController(quiz.Questions, s.passMark)}
	s.restore(ctx, userID, fresh)

	s.mu.Lock()
	defer s.mu.Unlock()
	// another request may have created it while the snapshot was loading
	if sess, ok := s.sessions[key]; ok {
		return sess, nil
	}
	s.sessions[key] = fresh
	return fresh, nil
}

func (s *Service) restore(ctx context.Context, userID uint, sess *session) {
	if s.snapshots == nil {
		return
	}
	slug := sess.quiz.Slug

	var saved State
	err := s.snapshots.GetQuizState(ctx, userID, slug, &saved)
	switch {
	case err == nil:
		if !sess.ctrl.Restore(saved) {
			logger.Log.Warn("discarding inconsistent quiz snapshot", zap.Uint("user_id", userID), zap.String("quiz", slug))
		}
	case !errors.Is(err, cache.ErrMiss):
		logger.Log.Warn("load quiz snapshot", zap.Uint("user_id", userID), zap.String("quiz", slug), zap.Error(err))
	}
}

// Start returns the learner's live session, resuming a saved one if present.
func (s *Service) Start(ctx context.Context, userID uint, slug string) (View, error) {
	sess, err := s.session(ctx, userID, slug)
	if err != nil {
		return View{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view(), nil
}

// Apply runs a command against the learner's session. Persistence failures
// are logged; only command errors are returned.
func (s *Service) Apply(ctx context.Context, userID uint, slug string, cmd Command) (View, error) {
	sess, err := s.session(ctx, userID, slug)
	if err != nil {
		return View{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	wasCompleted := sess.ctrl.State().Completed
	changed, err := sess.ctrl.Apply(cmd)
	if err != nil {
		return View{}, err
	}

	view := sess.view()
	if !changed {
		return view, nil
	}

	if s.snapshots != nil {
		var err error
		if cmd.Op == OpReset {
			err = s.snapshots.DeleteQuizState(ctx, userID, slug)
		} else {
			err = s.snapshots.SetQuizState(ctx, userID, slug, sess.ctrl.State())
		}
		if err != nil {
			logger.Log.Warn("save quiz snapshot", zap.Uint("user_id", userID), zap.String("quiz", slug), zap.Error(err))
		}
	}
	if !wasCompleted && view.Phase == PhaseCompleted {
		s.complete(ctx, userID, sess)
	}
	s.sender.SendToUser(userID, MessageState, view)
	return view, nil
}

func (s *Service) complete(ctx context.Context, userID uint, sess *session) {
	st := sess.ctrl.State()
	result := sess.ctrl.Result()

	outcome := "failed"
	if result.Passed {
		outcome = "passed"
	}
	metrics.QuizCompletions.WithLabelValues(sess.quiz.Slug, outcome).Inc()

	answers, err := json.Marshal(st.Answers)
	if err != nil {
		logger.Log.Error("encode quiz answers", zap.Error(err))
		return
	}
	attempt := &models.QuizAttempt{
		UserID:      userID,
		QuizSlug:    sess.quiz.Slug,
		Score:       result.Score,
		Total:       result.Total,
		Percentage:  result.Percentage,
		Passed:      result.Passed,
		Answers:     answers,
		CompletedAt: s.now(),
	}
	if err := s.attempts.SaveAttempt(ctx, attempt); err != nil {
		logger.Log.Error("save quiz attempt",
			zap.Uint("user_id", userID),
			zap.String("quiz", sess.quiz.Slug),
			zap.Error(err),
		)
	}

	logger.Log.Info("quiz completed",
		zap.Uint("user_id", userID),
		zap.String("quiz", sess.quiz.Slug),
		zap.Int("percentage", result.Percentage),
		zap.Bool("passed", result.Passed),
	)

	if s.snapshots != nil {
		s.updateLeaderboard(ctx, userID, sess.quiz.Slug, result.Percentage)
	}
}

// updateLeaderboard adds a completion to the cached board. A missing board is
// rebuilt from the stored attempts before the new score is added.
func (s *Service) updateLeaderboard(ctx context.Context, userID uint, slug string, percentage int) {
	exists, err := s.snapshots.HasLeaderboard(ctx, slug)
	if err != nil {
		logger.Log.Warn("check leaderboard", zap.String("quiz", slug), zap.Error(err))
		return
	}
	if !exists {
		entries, err := s.attempts.Leaderboard(ctx, slug, 0)
		if err != nil {
			logger.Log.Warn("rebuild leaderboard", zap.String("quiz", slug), zap.Error(err))
			return
		}
		if err := s.snapshots.MergeScores(ctx, slug, entries); err != nil {
			logger.Log.Warn("rebuild leaderboard", zap.String("quiz", slug), zap.Error(err))
			return
		}
	}

	if s.users == nil {
		return
	}
	user, err := s.users.CurrentUser(ctx, userID)
	if err != nil {
		logger.Log.Warn("leaderboard user lookup", zap.Uint("user_id", userID), zap.Error(err))
		return
	}
	if err := s.snapshots.RecordBestScore(ctx, slug, user.Username, percentage); err != nil {
		logger.Log.Warn("record best score", zap.String("quiz", slug), zap.Error(err))
	}
}

// Attempts lists the learner's completed attempts, newest first.
func (s *Service) Attempts(ctx context.Context, userID uint, slug string) ([]models.QuizAttempt, error) {
	if _, ok := s.catalog.Get(slug); !ok {
		return nil, ErrQuizNotFound
	}
	return s.attempts.ListAttempts(ctx, userID, slug)
}

// Leaderboard returns each learner's best percentage, highest first. The
// redis board is preferred; the database is used when it is unavailable or empty.
func (s *Service) Leaderboard(ctx context.Context, slug string, limit int) ([]models.LeaderboardEntry, error) {
	if _, ok := s.catalog.Get(slug); !ok {
		return nil, ErrQuizNotFound
	}
	if limit <= 0 {
		limit = defaultLeaderboardSize
	}

	if s.snapshots != nil {
		entries, err := s.snapshots.GetLeaderboard(ctx, slug, int64(limit))
		if err != nil {
			logger.Log.Warn("read cached leaderboard", zap.String("quiz", slug), zap.Error(err))
		} else if len(entries) > 0 {
			return entries, nil
		}
	}
	return s.attempts.Leaderboard(ctx, slug, limit)
}
