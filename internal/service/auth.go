package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"wine-tasting/internal/domain"
	"wine-tasting/internal/repository"
)

// AuthService 负责导演账号的注册和登录。
type AuthService struct {
	userRepo  repository.UserRepository
	jwtSecret []byte
	jwtExpiry time.Duration
}

// NewAuthService 创建 AuthService 实例。
// jwtExpiryHours 小于等于 0 时默认 24 小时。
func NewAuthService(userRepo repository.UserRepository, jwtSecretKey string, jwtExpiryHours int) (*AuthService, error) {
	if userRepo == nil {
		panic("UserRepository cannot be nil for AuthService")
	}
	if jwtSecretKey == "" {
		return nil, fmt.Errorf("JWT secret key cannot be empty")
	}
	if jwtExpiryHours <= 0 {
		jwtExpiryHours = 24
	}
	return &AuthService{
		userRepo:  userRepo,
		jwtSecret: []byte(jwtSecretKey),
		jwtExpiry: time.Duration(jwtExpiryHours) * time.Hour,
	}, nil
}

// Register 创建导演账号，返回的用户不带密码哈希。
func (s *AuthService) Register(ctx context.Context, username, password, email string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	logCtx := logrus.WithFields(logrus.Fields{"username": username, "email": email})

	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	existing, err := s.userRepo.FindByUsername(ctx, username)
	switch {
	case err == nil && existing != nil:
		logCtx.Warn("Registration failed: Username already exists")
		return nil, ErrRegistrationFailed
	case err != nil && !errors.Is(err, repository.ErrUserNotFound):
		logCtx.WithError(err).Error("Database error checking username")
		return nil, ErrInternalServer
	}

	hashedPassword, err := hashPassword(password)
	if err != nil {
		logCtx.WithError(err).Error("Failed to hash password during registration")
		return nil, ErrInternalServer
	}

	user := &domain.User{
		Username: username,
		Password: hashedPassword,
		Email:    email,
	}
	if err := s.userRepo.Save(ctx, user); err != nil {
		// 并发注册时唯一索引兜底
		if errors.Is(err, repository.ErrDuplicateEntry) {
			logCtx.WithError(err).Warn("Registration failed: Username already exists (repo error)")
			return nil, ErrRegistrationFailed
		}
		logCtx.WithError(err).Error("Database error during user creation")
		return nil, ErrInternalServer
	}

	logCtx.WithField("user_id", user.ID).Info("Director registered successfully")
	user.Password = ""
	return user, nil
}

// Login 校验用户名和密码，成功时返回 JWT。
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	logCtx := logrus.WithField("username", username)

	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			logCtx.Warn("Login attempt failed: User not found")
		} else {
			logCtx.WithError(err).Error("Login attempt failed: Error finding user")
		}
		return "", ErrAuthenticationFailed
	}
	if user == nil {
		return "", ErrAuthenticationFailed
	}

	if !checkPassword(password, user.Password) {
		logCtx.Warn("Login attempt failed: Invalid password")
		return "", ErrAuthenticationFailed
	}

	token, err := s.generateJWT(user.ID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to generate JWT token during login")
		return "", ErrInternalServer
	}

	logCtx.WithField("user_id", user.ID).Info("Director logged in successfully")
	return token, nil
}

// Profile 返回导演账号信息，不带密码哈希
func (s *AuthService) Profile(ctx context.Context, userID uint) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to load user profile")
		return nil, ErrInternalServer
	}
	profile := *user
	profile.Password = ""
	return &profile, nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to generate hash from password: %w", err)
	}
	return string(bytes), nil
}

func checkPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// generateJWT 生成带 user_id 声明的 HS256 token，中间件按同样的声明解析
func (s *AuthService) generateJWT(userID uint) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     now.Add(s.jwtExpiry).Unix(),
		"iat":     now.Unix(),
	})
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}
