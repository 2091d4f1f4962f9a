// internal/playback/handler.go
package playback

import (
	"net/http"

	"github.com/pkg/errors"

	"learnhub/internal/auth"
	"learnhub/internal/course"
	"learnhub/pkg/response"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) ids(w http.ResponseWriter, r *http.Request) (uint, uint, bool) {
	userID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		response.Unauthorized(w)
		return 0, 0, false
	}
	courseID, ok := course.CourseID(r)
	if !ok {
		response.BadRequest(w, "Invalid course id")
		return 0, 0, false
	}
	return userID, courseID, true
}

func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	userID, courseID, ok := h.ids(w, r)
	if !ok {
		return
	}

	view, err := h.service.Open(r.Context(), userID, courseID)
	if errors.Is(err, course.ErrCourseNotFound) {
		response.NotFound(w, "Course not found")
		return
	}
	if err != nil {
		response.InternalError(w, r, err)
		return
	}
	response.Created(w, view)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID, courseID, ok := h.ids(w, r)
	if !ok {
		return
	}

	view, err := h.service.Get(userID, courseID)
	if errors.Is(err, ErrNoSession) {
		response.NotFound(w, err.Error())
		return
	}
	response.Success(w, view)
}

func (h *Handler) SendCommand(w http.ResponseWriter, r *http.Request) {
	userID, courseID, ok := h.ids(w, r)
	if !ok {
		return
	}

	var cmd Command
	if err := response.Decode(r, &cmd); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	view, err := h.service.Command(r.Context(), userID, courseID, cmd)
	switch {
	case errors.Is(err, ErrNoSession):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrInvalidCommand):
		response.BadRequest(w, err.Error())
	case err != nil:
		response.InternalError(w, r, err)
	default:
		response.Success(w, view)
	}
}

func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	userID, courseID, ok := h.ids(w, r)
	if !ok {
		return
	}
	h.service.Close(userID, courseID)
	w.WriteHeader(http.StatusNoContent)
}
