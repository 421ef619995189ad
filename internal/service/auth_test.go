package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"wine-tasting/internal/domain"
	"wine-tasting/internal/repository"
	"wine-tasting/internal/repository/mocks"
	"wine-tasting/internal/service"
)

// --- Register ---

func TestAuthService_Register_Success(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService, err := service.NewAuthService(mockUserRepo, "very-secret-key", 1)
	require.NoError(t, err)

	ctx := context.Background()
	username := "sommelier"
	password := "StrongPass123"
	email := "sommelier@example.com"

	mockUserRepo.On("FindByUsername", ctx, username).Return(nil, repository.ErrUserNotFound).Once()
	mockUserRepo.On("Save", ctx, mock.MatchedBy(func(user *domain.User) bool {
		return user.Username == username && user.Email == email &&
			bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) == nil
	})).
		Run(func(args mock.Arguments) {
			userArg := args.Get(1).(*domain.User)
			userArg.ID = 5
			userArg.CreatedAt = time.Now()
		}).
		Return(nil).
		Once()

	user, err := authService.Register(ctx, "  "+username+" ", password, email)

	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, uint(5), user.ID)
	assert.Equal(t, username, user.Username, "用户名去掉首尾空白")
	assert.Empty(t, user.Password, "返回的用户不带密码哈希")
	mockUserRepo.AssertExpectations(t)
}

func TestAuthService_Register_UsernameTaken(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "secret", 1)
	ctx := context.Background()

	mockUserRepo.On("FindByUsername", ctx, "taken").Return(&domain.User{ID: 10, Username: "taken"}, nil).Once()

	_, err := authService.Register(ctx, "taken", "password", "e@test.com")

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrRegistrationFailed))
	mockUserRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestAuthService_Register_SaveFails_DuplicateEntry(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "secret", 1)
	ctx := context.Background()

	mockUserRepo.On("FindByUsername", ctx, "racer").Return(nil, repository.ErrUserNotFound).Once()
	mockUserRepo.On("Save", ctx, mock.AnythingOfType("*domain.User")).Return(repository.ErrDuplicateEntry).Once()

	_, err := authService.Register(ctx, "racer", "password", "")

	assert.ErrorIs(t, err, service.ErrRegistrationFailed)
	mockUserRepo.AssertExpectations(t)
}

func TestAuthService_Register_MissingFields(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "secret", 1)

	_, err := authService.Register(context.Background(), "  ", "password", "")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
	mockUserRepo.AssertNotCalled(t, "FindByUsername", mock.Anything, mock.Anything)
}

func TestNewAuthService_EmptySecret(t *testing.T) {
	_, err := service.NewAuthService(new(mocks.UserRepository), "", 1)
	assert.Error(t, err)
}

// --- Login ---

func TestAuthService_Login_Success(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "test-secret", 24)
	ctx := context.Background()
	hashed, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	mockUserRepo.On("FindByUsername", ctx, "director").
		Return(&domain.User{ID: 7, Username: "director", Password: string(hashed)}, nil).Once()

	tokenString, err := authService.Login(ctx, "director", "password123")

	require.NoError(t, err)
	token, err := jwt.Parse(tokenString, func(*jwt.Token) (interface{}, error) { return []byte("test-secret"), nil })
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, float64(7), claims["user_id"])
	mockUserRepo.AssertExpectations(t)
}

func TestAuthService_Login_UserNotFound(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "test-secret", 24)
	ctx := context.Background()
	mockUserRepo.On("FindByUsername", ctx, "ghost").Return(nil, repository.ErrUserNotFound).Once()

	token, err := authService.Login(ctx, "ghost", "password")

	assert.Empty(t, token)
	assert.ErrorIs(t, err, service.ErrAuthenticationFailed)
	mockUserRepo.AssertExpectations(t)
}

func TestAuthService_Login_IncorrectPassword(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "test-secret", 24)
	ctx := context.Background()
	hashed, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	mockUserRepo.On("FindByUsername", ctx, "director").
		Return(&domain.User{ID: 1, Username: "director", Password: string(hashed)}, nil).Once()

	token, err := authService.Login(ctx, "director", "wrongpassword")

	assert.Empty(t, token)
	assert.ErrorIs(t, err, service.ErrAuthenticationFailed)
	mockUserRepo.AssertExpectations(t)
}

func TestAuthService_Profile(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "test-secret", 1)
	stored := &domain.User{ID: 7, Username: "director", Password: "hash", Email: "d@example.com"}
	mockUserRepo.On("FindByID", mock.Anything, uint(7)).Return(stored, nil).Once()

	user, err := authService.Profile(context.Background(), 7)

	require.NoError(t, err)
	assert.Equal(t, "director", user.Username)
	assert.Empty(t, user.Password)
	assert.Equal(t, "hash", stored.Password, "stored user must not be modified")
	mockUserRepo.AssertExpectations(t)
}

func TestAuthService_Profile_NotFound(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "test-secret", 1)
	mockUserRepo.On("FindByID", mock.Anything, uint(8)).Return(nil, repository.ErrUserNotFound).Once()

	_, err := authService.Profile(context.Background(), 8)

	assert.ErrorIs(t, err, service.ErrUserNotFound)
}
