package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/tmshq/tms-go-api/internal/dto"
	"github.com/tmshq/tms-go-api/internal/models"
	"github.com/tmshq/tms-go-api/internal/repository"
)

// UserService owns account administration, recorded in the activity log.
type UserService interface {
	Create(ctx context.Context, viewer Viewer, req dto.UserCreateRequest, meta RequestMeta) (*models.User, error)
	Update(ctx context.Context, viewer Viewer, userID uint, req dto.UserUpdateRequest, meta RequestMeta) (*models.User, error)
}

type userService struct {
	users     repository.UserRepository
	recorder  ActivityRecorder
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewUserService constructs the user service.
func NewUserService(users repository.UserRepository, recorder ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) UserService {
	return &userService{
		users:     users,
		recorder:  recorder,
		validator: validate,
		logger:    logger.With().Str("component", "user_service").Logger(),
	}
}

func (s *userService) Create(ctx context.Context, viewer Viewer, req dto.UserCreateRequest, meta RequestMeta) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Username:     strings.TrimSpace(req.Username),
		FullName:     strings.TrimSpace(req.FullName),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		Role:         req.Role,
	}
	if err := s.users.Create(ctx, &user); err != nil {
		return nil, err
	}

	s.recorder.UserCreated(ctx, viewer.ID, meta, user.ID, user.Username, user.Role)
	return &user, nil
}

func (s *userService) Update(ctx context.Context, viewer Viewer, userID uint, req dto.UserUpdateRequest, meta RequestMeta) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	changes := make([]string, 0, 3)
	if req.FullName != nil && *req.FullName != user.FullName {
		user.FullName = strings.TrimSpace(*req.FullName)
		changes = append(changes, "full_name")
	}
	if req.Email != nil && !strings.EqualFold(*req.Email, user.Email) {
		user.Email = strings.ToLower(strings.TrimSpace(*req.Email))
		changes = append(changes, "email")
	}
	if req.Role != nil && *req.Role != user.Role {
		user.Role = *req.Role
		changes = append(changes, "role")
	}

	if len(changes) == 0 {
		return user, nil
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	s.recorder.UserUpdated(ctx, viewer.ID, meta, user.ID, user.Username, changes)
	return user, nil
}
