// internal/playback/service.go
package playback

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"learnhub/internal/models"
	"learnhub/pkg/cache"
	"learnhub/pkg/logger"
	"learnhub/pkg/metrics"
	"learnhub/pkg/websocket"
)

var (
	ErrNoSession      = errors.New("no open playback session for this course")
	ErrInvalidCommand = errors.New("invalid playback command")
)

const (
	MessageProgress   = "playback.progress"
	MessageTimeUpdate = "media.timeupdate"
	MessageState      = "media.state"

	persistTimeout = 5 * time.Second
)

type CourseSource interface {
	Course(ctx context.Context, id uint) (*models.Course, error)
	RecordProgress(ctx context.Context, userID, courseID uint, percent int) error
}

type PositionCache interface {
	SetPlaybackPosition(ctx context.Context, userID, courseID uint, seconds float64) error
	GetPlaybackPosition(ctx context.Context, userID, courseID uint) (float64, error)
}

// URLSigner turns a stored object key into a playable URL.
type URLSigner interface {
	PresignedURL(ctx context.Context, object string) (string, error)
}

type Config struct {
	DefaultVolume   float64
	SkipSeconds     float64
	DefaultVideoURL string
}

type sessionKey struct {
	userID   uint
	courseID uint
}

type session struct {
	mu          sync.Mutex
	id          string
	userID      uint
	courseID    uint
	videoURL    string
	resumeAt    float64
	media       *RemoteMedia
	ctrl        *Controller
	lastPercent int
	lastCached  int
}

// View is what the player renders.
type View struct {
	SessionID       string  `json:"session_id"`
	CourseID        uint    `json:"course_id"`
	VideoURL        string  `json:"video_url"`
	ResumeAt        float64 `json:"resume_at"`
	State           State   `json:"state"`
	EffectiveVolume float64 `json:"effective_volume"`
	Progress        float64 `json:"progress"`
}

func (s *session) view() View {
	return View{
		SessionID:       s.id,
		CourseID:        s.courseID,
		VideoURL:        s.videoURL,
		ResumeAt:        s.resumeAt,
		State:           s.ctrl.State(),
		EffectiveVolume: s.ctrl.EffectiveVolume(),
		Progress:        s.ctrl.ProgressPercent(),
	}
}

// Service keeps one playback controller per learner and course.
type Service struct {
	courses  CourseSource
	cache    PositionCache
	signer   URLSigner
	sender   Sender
	cfg      Config
	mu       sync.Mutex
	sessions map[sessionKey]*session
}

// NewService wires the playback sessions. cache and signer may be nil.
func NewService(courses CourseSource, cache PositionCache, signer URLSigner, sender Sender, cfg Config) *Service {
	if cfg.SkipSeconds <= 0 {
		cfg.SkipSeconds = DefaultSkipSeconds
	}
	return &Service{
		courses:  courses,
		cache:    cache,
		signer:   signer,
		sender:   sender,
		cfg:      cfg,
		sessions: make(map[sessionKey]*session),
	}
}

func (s *Service) videoURL(ctx context.Context, course *models.Course) string {
	if course.VideoObject != "" && s.signer != nil {
		u, err := s.signer.PresignedURL(ctx, course.VideoObject)
		if err == nil {
			return u
		}
		logger.Log.Warn("presign course video", zap.Uint("course_id", course.ID), zap.Error(err))
	}
	if course.VideoURL != "" {
		return course.VideoURL
	}
	return s.cfg.DefaultVideoURL
}

// Open starts a playback session for a course, replacing any previous one.
func (s *Service) Open(ctx context.Context, userID, courseID uint) (View, error) {
	course, err := s.courses.Course(ctx, courseID)
	if err != nil {
		return View{}, err
	}

	sess := &session{
		id:         uuid.NewString(),
		userID:     userID,
		courseID:   courseID,
		videoURL:   s.videoURL(ctx, course),
		media:      NewRemoteMedia(s.sender, userID, courseID),
		lastCached: -1,
	}
	if s.cache != nil {
		pos, err := s.cache.GetPlaybackPosition(ctx, userID, courseID)
		switch {
		case err == nil:
			sess.resumeAt = pos
		case !errors.Is(err, cache.ErrMiss):
			logger.Log.Warn("load playback position", zap.Uint("user_id", userID), zap.Uint("course_id", courseID), zap.Error(err))
		}
	}
	sess.ctrl = NewController(sess.media, s.cfg.DefaultVolume, s.progressFunc(sess))

	s.mu.Lock()
	if _, existed := s.sessions[sessionKey{userID, courseID}]; !existed {
		metrics.PlaybackSessions.Inc()
	}
	s.sessions[sessionKey{userID, courseID}] = sess
	s.mu.Unlock()

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.ctrl.SetVolume(s.cfg.DefaultVolume)

	logger.Log.Info("playback session opened",
		zap.String("session", sess.id),
		zap.Uint("user_id", userID),
		zap.Uint("course_id", courseID),
	)
	return sess.view(), nil
}

func (s *Service) get(userID, courseID uint) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionKey{userID, courseID}]
	return sess, ok
}

func (s *Service) Get(userID, courseID uint) (View, error) {
	sess, ok := s.get(userID, courseID)
	if !ok {
		return View{}, ErrNoSession
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view(), nil
}

func (s *Service) Close(userID, courseID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionKey{userID, courseID}]; ok {
		delete(s.sessions, sessionKey{userID, courseID})
		metrics.PlaybackSessions.Dec()
	}
}

// CloseUser drops every session the learner has open.
func (s *Service) CloseUser(userID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.sessions {
		if key.userID == userID {
			delete(s.sessions, key)
			metrics.PlaybackSessions.Dec()
		}
	}
}

type Command struct {
	Op string `json:"op" validate:"required,oneof=toggle seek skip volume mute"`
	// Value is the seek percentage, the skip delta in seconds or the volume level.
	Value *float64 `json:"value"`
	// Direction replaces Value for skip: forward or back by the configured step.
	Direction string `json:"direction" validate:"omitempty,oneof=forward back"`
}

// Command applies a player control to the learner's open session.
func (s *Service) Command(ctx context.Context, userID, courseID uint, cmd Command) (View, error) {
	sess, ok := s.get(userID, courseID)
	if !ok {
		return View{}, ErrNoSession
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	switch cmd.Op {
	case "toggle":
		sess.ctrl.TogglePlay()
	case "mute":
		sess.ctrl.ToggleMute()
	case "seek":
		if cmd.Value == nil {
			return View{}, ErrInvalidCommand
		}
		sess.ctrl.Seek(*cmd.Value)
	case "volume":
		if cmd.Value == nil {
			return View{}, ErrInvalidCommand
		}
		sess.ctrl.SetVolume(*cmd.Value)
	case "skip":
		switch {
		case cmd.Value != nil:
			sess.ctrl.Skip(*cmd.Value)
		case cmd.Direction == "forward":
			sess.ctrl.Skip(s.cfg.SkipSeconds)
		case cmd.Direction == "back":
			sess.ctrl.Skip(-s.cfg.SkipSeconds)
		default:
			return View{}, ErrInvalidCommand
		}
	default:
		return View{}, ErrInvalidCommand
	}

	metrics.PlaybackCommands.WithLabelValues(cmd.Op).Inc()
	return sess.view(), nil
}

// TimeUpdate is reported by the browser from the video element's timeupdate
// and loadedmetadata events.
type TimeUpdate struct {
	CourseID    uint    `json:"course_id"`
	CurrentTime float64 `json:"current_time"`
	Duration    float64 `json:"duration"`
}

// PlayState is reported by the browser from the play and pause events.
type PlayState struct {
	CourseID uint `json:"course_id"`
	Playing  bool `json:"playing"`
}

func (s *Service) OnTimeUpdate(userID uint, u TimeUpdate) error {
	sess, ok := s.get(userID, u.CourseID)
	if !ok {
		return ErrNoSession
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.media.observe(u.CurrentTime, u.Duration)
	sess.ctrl.OnTimeUpdate(u.CurrentTime, u.Duration)
	return nil
}

func (s *Service) OnPlayState(userID uint, p PlayState) error {
	sess, ok := s.get(userID, p.CourseID)
	if !ok {
		return ErrNoSession
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.ctrl.OnPlayStateChange(p.Playing)
	return nil
}

// HandleMessage routes media notifications arriving over the websocket.
func (s *Service) HandleMessage(ctx context.Context, userID uint, msg websocket.Message) {
	var err error
	switch msg.Type {
	case MessageTimeUpdate:
		var u TimeUpdate
		if err = json.Unmarshal(msg.Data, &u); err == nil {
			err = s.OnTimeUpdate(userID, u)
		}
	case MessageState:
		var p PlayState
		if err = json.Unmarshal(msg.Data, &p); err == nil {
			err = s.OnPlayState(userID, p)
		}
	default:
		logger.Log.Debug("unknown media message", zap.String("type", msg.Type))
		return
	}
	if err != nil {
		logger.Log.Debug("media notification dropped", zap.String("type", msg.Type), zap.Uint("user_id", userID), zap.Error(err))
	}
}

// progressFunc pushes every update to the learner, caches the position at
// whole-percent steps and persists course progress when it grows. It runs
// with the session lock held.
func (s *Service) progressFunc(sess *session) ProgressFunc {
	return func(percent float64) {
		s.sender.SendToUser(sess.userID, MessageProgress, map[string]interface{}{
			"course_id": sess.courseID,
			"progress":  percent,
		})

		rounded := int(math.Round(percent))
		if rounded == sess.lastCached && rounded <= sess.lastPercent {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		if rounded != sess.lastCached && s.cache != nil {
			sess.lastCached = rounded
			if err := s.cache.SetPlaybackPosition(ctx, sess.userID, sess.courseID, sess.ctrl.State().CurrentTime); err != nil {
				logger.Log.Warn("cache playback position", zap.Error(err))
			}
		}
		if rounded > sess.lastPercent {
			sess.lastPercent = rounded
			if err := s.courses.RecordProgress(ctx, sess.userID, sess.courseID, rounded); err != nil {
				logger.Log.Error("record course progress",
					zap.Uint("user_id", sess.userID),
					zap.Uint("course_id", sess.courseID),
					zap.Error(err),
				)
			}
		}
	}
}
