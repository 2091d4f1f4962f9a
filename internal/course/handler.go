// internal/course/handler.go
package course

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

// CourseID parses the {id} route variable.
func CourseID(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func (h *Handler) ListCourses(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		response.Unauthorized(w)
		return
	}

	courses, err := h.service.List(r.Context(), userID)
	if err != nil {
		response.InternalError(w, r, err)
		return
	}
	response.Success(w, courses)
}

func (h *Handler) GetCourse(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		response.Unauthorized(w)
		return
	}
	id, ok := CourseID(r)
	if !ok {
		response.BadRequest(w, "Invalid course id")
		return
	}

	course, err := h.service.Get(r.Context(), userID, id)
	if errors.Is(err, ErrCourseNotFound) {
		response.NotFound(w, "Course not found")
		return
	}
	if err != nil {
		response.InternalError(w, r, err)
		return
	}
	response.Success(w, course)
}

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		response.Unauthorized(w)
		return
	}

	summary, err := h.service.Summary(r.Context(), userID)
	if err != nil {
		response.InternalError(w, r, err)
		return
	}
	response.Success(w, summary)
}
