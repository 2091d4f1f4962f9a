package response

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"learnhub/pkg/logger"
)

var validate = validator.New()

// Response is the envelope every JSON endpoint answers with.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func JSON(w http.ResponseWriter, code int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(Response{Code: code, Message: message, Data: data}); err != nil {
		logger.Log.Warn("write response", zap.Error(err))
	}
}

func Success(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, "success", data)
}

func Created(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusCreated, "created", data)
}

func Error(w http.ResponseWriter, code int, message string) {
	JSON(w, code, message, nil)
}

func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, message)
}

func Unauthorized(w http.ResponseWriter) {
	Error(w, http.StatusUnauthorized, "Unauthorized")
}

func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, message)
}

// InternalError logs err and answers with a generic message.
func InternalError(w http.ResponseWriter, r *http.Request, err error) {
	logger.Log.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	Error(w, http.StatusInternalServerError, "Internal server error")
}

// Decode reads a JSON body into v and validates its struct tags.
func Decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrap(err, "invalid request body")
	}
	if err := validate.Struct(v); err != nil {
		return errors.Wrap(err, "invalid request")
	}
	return nil
}
