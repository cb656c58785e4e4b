package service_test

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tmshq/tms-go-api/internal/dto"
	"github.com/tmshq/tms-go-api/internal/models"
	"github.com/tmshq/tms-go-api/internal/repository"
	"github.com/tmshq/tms-go-api/internal/service"
)

const testJWTSecret = "test-secret"

func setupAuthService(t *testing.T) (service.AuthService, repository.ActivityLogRepository, models.User) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.ActivityEvent{}))

	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)

	user := models.User{Username: "budi", FullName: "Budi Santoso", Email: "budi@example.com", PasswordHash: string(hash), Role: models.RoleMember}
	require.NoError(t, db.Create(&user).Error)

	users := repository.NewUserRepository(db)
	events := repository.NewActivityLogRepository(db)
	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	rec := service.NewActivityRecorder(events, users, nil, "", validate, logger)
	svc := service.NewAuthService(users, rec, validate, testJWTSecret, time.Hour, logger)

	return svc, events, user
}

func TestLoginSuccess(t *testing.T) {
	svc, events, user := setupAuthService(t)

	result, err := svc.Login(context.Background(), dto.LoginRequest{Username: "budi", Password: "correct horse"}, service.RequestMeta{IPAddress: "10.0.0.1"})
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
	require.Equal(t, user.ID, result.User.ID)
	require.Equal(t, models.RoleMember, result.User.Role)

	parsed, err := jwt.Parse(result.Token, func(token *jwt.Token) (interface{}, error) {
		return []byte(testJWTSecret), nil
	})
	require.NoError(t, err)
	claims, ok := parsed.Claims.(jwt.MapClaims)
	require.True(t, ok)
	require.EqualValues(t, user.ID, claims["sub"])
	require.Equal(t, models.RoleMember, claims["role"])
	require.Equal(t, "budi", claims["username"])

	actorID := user.ID
	rows, total, err := events.List(context.Background(), repository.ActivityQueryFilter{
		Scope: repository.ScopeFilter{ActorOnly: &actorID},
		Limit: 10,
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, models.ActionLogin, rows[0].ActionType)
	require.Equal(t, "User budi logged in", rows[0].Description)
	require.NotNil(t, rows[0].IPAddress)
	require.Equal(t, "10.0.0.1", *rows[0].IPAddress)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, events, user := setupAuthService(t)

	_, err := svc.Login(context.Background(), dto.LoginRequest{Username: "budi", Password: "wrong"}, service.RequestMeta{})
	require.ErrorIs(t, err, service.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), dto.LoginRequest{Username: "nobody", Password: "whatever"}, service.RequestMeta{})
	require.ErrorIs(t, err, service.ErrInvalidCredentials)

	// Failed attempts leave no trace in the activity log.
	actorID := user.ID
	_, total, err := events.List(context.Background(), repository.ActivityQueryFilter{
		Scope: repository.ScopeFilter{ActorOnly: &actorID},
		Limit: 10,
	})
	require.NoError(t, err)
	require.EqualValues(t, 0, total)
}

func TestChangePassword(t *testing.T) {
	svc, events, user := setupAuthService(t)
	viewer := service.Viewer{ID: user.ID, Role: user.Role}

	err := svc.ChangePassword(context.Background(), viewer, dto.ChangePasswordRequest{
		CurrentPassword: "wrong",
		NewPassword:     "fresh password",
	}, service.RequestMeta{})
	require.ErrorIs(t, err, service.ErrInvalidCredentials)

	err = svc.ChangePassword(context.Background(), viewer, dto.ChangePasswordRequest{
		CurrentPassword: "correct horse",
		NewPassword:     "fresh password",
	}, service.RequestMeta{})
	require.NoError(t, err)

	// The old password stops working, the new one signs in.
	_, err = svc.Login(context.Background(), dto.LoginRequest{Username: "budi", Password: "correct horse"}, service.RequestMeta{})
	require.ErrorIs(t, err, service.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), dto.LoginRequest{Username: "budi", Password: "fresh password"}, service.RequestMeta{})
	require.NoError(t, err)

	actorID := user.ID
	rows, _, err := events.List(context.Background(), repository.ActivityQueryFilter{
		Scope: repository.ScopeFilter{ActorOnly: &actorID},
		Limit: 10,
	})
	require.NoError(t, err)

	var sawPasswordChange bool
	for _, row := range rows {
		if row.ActionType == models.ActionPasswordChanged {
			sawPasswordChange = true
			require.Equal(t, "User budi changed their password", row.Description)
		}
	}
	require.True(t, sawPasswordChange)
}
