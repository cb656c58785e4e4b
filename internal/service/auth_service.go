package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tmshq/tms-go-api/internal/dto"
	"github.com/tmshq/tms-go-api/internal/repository"
)

// ErrInvalidCredentials is returned on a failed login or password check.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService authenticates accounts and issues bearer tokens. Successful
// logins and password changes are recorded in the activity log.
type AuthService interface {
	Login(ctx context.Context, req dto.LoginRequest, meta RequestMeta) (dto.LoginResponse, error)
	ChangePassword(ctx context.Context, viewer Viewer, req dto.ChangePasswordRequest, meta RequestMeta) error
}

type authService struct {
	users     repository.UserRepository
	recorder  ActivityRecorder
	validator *validator.Validate
	secret    []byte
	tokenTTL  time.Duration
	logger    zerolog.Logger
}

// NewAuthService constructs the auth service.
func NewAuthService(users repository.UserRepository, recorder ActivityRecorder, validate *validator.Validate, secret string, tokenTTL time.Duration, logger zerolog.Logger) AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &authService{
		users:     users,
		recorder:  recorder,
		validator: validate,
		secret:    []byte(secret),
		tokenTTL:  tokenTTL,
		logger:    logger.With().Str("component", "auth_service").Logger(),
	}
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest, meta RequestMeta) (dto.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.LoginResponse{}, err
	}

	user, err := s.users.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.LoginResponse{}, ErrInvalidCredentials
		}
		return dto.LoginResponse{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return dto.LoginResponse{}, ErrInvalidCredentials
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      user.ID,
		"role":     user.Role,
		"username": user.Username,
		"iat":      now.Unix(),
		"exp":      now.Add(s.tokenTTL).Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return dto.LoginResponse{}, err
	}

	s.recorder.Login(ctx, user.ID, user.Username, meta)

	return dto.LoginResponse{
		Token: signed,
		User: dto.UserProfile{
			ID:       user.ID,
			Username: user.Username,
			FullName: user.FullName,
			Email:    user.Email,
			Role:     user.Role,
		},
	}, nil
}

func (s *authService) ChangePassword(ctx context.Context, viewer Viewer, req dto.ChangePasswordRequest, meta RequestMeta) error {
	if err := s.validator.Struct(req); err != nil {
		return err
	}

	user, err := s.users.FindByID(ctx, viewer.ID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return err
	}

	s.recorder.PasswordChanged(ctx, user.ID, user.Username, meta)
	return nil
}
