// internal/auth/middleware.go
package auth

import (
	"context"
	"net/http"
	"strings"

	"learnhub/pkg/response"
)

type contextKey string

const userIDKey contextKey = "user_id"

// TokenParser is satisfied by *Service.
type TokenParser interface {
	ParseToken(token string) (uint, error)
}

func WithUserID(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFrom returns the authenticated user id stored by JWTMiddleware.
func UserIDFrom(ctx context.Context) (uint, bool) {
	id, ok := ctx.Value(userIDKey).(uint)
	return id, ok
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) string {
	bearerToken := strings.Split(r.Header.Get("Authorization"), " ")
	if len(bearerToken) != 2 || bearerToken[0] != "Bearer" {
		return ""
	}
	return bearerToken[1]
}

func JWTMiddleware(parser TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token := BearerToken(r)
			if token == "" {
				response.Error(w, http.StatusUnauthorized, "Authorization header required")
				return
			}

			userID, err := parser.ParseToken(token)
			if err != nil {
				response.Error(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}
