// internal/quiz/handler.go
package quiz

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"learnhub/internal/auth"
	"learnhub/pkg/response"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type quizSummary struct {
	Slug      string `json:"slug"`
	Title     string `json:"title"`
	Questions int    `json:"questions"`
}

func (h *Handler) ListQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes := h.service.Quizzes()
	out := make([]quizSummary, len(quizzes))
	for i, q := range quizzes {
		out[i] = quizSummary{Slug: q.Slug, Title: q.Title, Questions: len(q.Questions)}
	}
	response.Success(w, out)
}

func (h *Handler) StartQuiz(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		response.Unauthorized(w)
		return
	}

	view, err := h.service.Start(r.Context(), userID, mux.Vars(r)["slug"])
	if errors.Is(err, ErrQuizNotFound) {
		response.NotFound(w, "Quiz not found")
		return
	}
	if err != nil {
		response.InternalError(w, r, err)
		return
	}
	response.Success(w, view)
}

func (h *Handler) SendCommand(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		response.Unauthorized(w)
		return
	}

	var cmd Command
	if err := response.Decode(r, &cmd); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	view, err := h.service.Apply(r.Context(), userID, mux.Vars(r)["slug"], cmd)
	if errors.Is(err, ErrQuizNotFound) {
		response.NotFound(w, "Quiz not found")
		return
	}
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}
	response.Success(w, view)
}

func (h *Handler) GetAttempts(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		response.Unauthorized(w)
		return
	}

	attempts, err := h.service.Attempts(r.Context(), userID, mux.Vars(r)["slug"])
	if errors.Is(err, ErrQuizNotFound) {
		response.NotFound(w, "Quiz not found")
		return
	}
	if err != nil {
		response.InternalError(w, r, err)
		return
	}
	response.Success(w, attempts)
}

func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.BadRequest(w, "Invalid limit")
			return
		}
		limit = n
	}

	entries, err := h.service.Leaderboard(r.Context(), mux.Vars(r)["slug"], limit)
	if errors.Is(err, ErrQuizNotFound) {
		response.NotFound(w, "Quiz not found")
		return
	}
	if err != nil {
		response.InternalError(w, r, err)
		return
	}
	response.Success(w, entries)
}
