// internal/auth/handler.go
package auth

import (
	"net/http"

	"github.com/pkg/errors"

	"learnhub/pkg/response"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=32,alphanum"`
	DisplayName string `json:"display_name" validate:"max=64"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	AvatarURL   string `json:"avatar_url" validate:"omitempty,url"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := response.Decode(r, &req); err != nil {
		response.BadRequest(w, "Invalid request")
		return
	}

	token, err := h.service.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		response.Error(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		response.InternalError(w, r, err)
		return
	}

	response.Success(w, map[string]string{"token": token})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := response.Decode(r, &req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	user, err := h.service.Register(r.Context(), req)
	if errors.Is(err, ErrUserExists) {
		response.Error(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		response.InternalError(w, r, err)
		return
	}

	response.Created(w, user.ToDTO())
}

// Session never fails on a bad token; it reports the signed-out view instead.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Session(r.Context(), BearerToken(r))
	if err != nil {
		response.InternalError(w, r, err)
		return
	}
	response.Success(w, session)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFrom(r.Context())
	if !ok {
		response.Unauthorized(w)
		return
	}

	user, err := h.service.CurrentUser(r.Context(), userID)
	if errors.Is(err, ErrUserNotFound) {
		// the profile renders an empty state, not an error
		response.JSON(w, http.StatusOK, "No user information available", nil)
		return
	}
	if err != nil {
		response.InternalError(w, r, err)
		return
	}

	response.Success(w, user.ToDTO())
}
