// internal/auth/service.go
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"learnhub/internal/models"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("username or email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// UserStore is the persistence the service needs; *Repository implements it.
type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
}

type Service struct {
	repo      UserStore
	jwtSecret []byte
	expiry    time.Duration
	now       func() time.Time
}

func NewService(repo UserStore, jwtSecret string, expiry time.Duration) *Service {
	return &Service{
		repo:      repo,
		jwtSecret: []byte(jwtSecret),
		expiry:    expiry,
		now:       time.Now,
	}
}

func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.repo.GetUserByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	return s.issueToken(user)
}

func (s *Service) issueToken(user *models.User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"exp":      s.now().Add(s.expiry).Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return tokenString, nil
}

// ParseToken validates a signed token and returns the user id it carries.
func (s *Service) ParseToken(tokenString string) (uint, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	userID, ok := claims["user_id"].(float64)
	if !ok || userID <= 0 {
		return 0, ErrInvalidToken
	}
	return uint(userID), nil
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user := &models.User{
		Username:    req.Username,
		DisplayName: req.DisplayName,
		Email:       email,
		Password:    string(hashedPassword),
		AvatarURL:   req.AvatarURL,
		EmailAddresses: []models.EmailAddress{
			{Address: email},
		},
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) CurrentUser(ctx context.Context, userID uint) (*models.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// Session resolves a bearer token to the signed-in view. A missing or invalid
// token, or a user that no longer exists, is the signed-out view.
func (s *Service) Session(ctx context.Context, tokenString string) (models.SessionDTO, error) {
	if tokenString == "" {
		return models.SessionDTO{}, nil
	}
	userID, err := s.ParseToken(tokenString)
	if err != nil {
		return models.SessionDTO{}, nil
	}
	user, err := s.repo.GetUserByID(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return models.SessionDTO{}, nil
	}
	if err != nil {
		return models.SessionDTO{}, err
	}
	dto := user.ToDTO()
	return models.SessionDTO{SignedIn: true, User: &dto}, nil
}
