package service

import (
	"context"
	"errors"
	"strings"

	"github.com/SergeiKhy/timewatch-admin/internal/logger"
	"github.com/SergeiKhy/timewatch-admin/internal/models"
	"github.com/SergeiKhy/timewatch-admin/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

var (
	ErrInvalidCredentials = errors.New("Invalid username or password")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrMissingUsername    = errors.New("username is required")
)

type AuthService interface {
	SignIn(ctx context.Context, username, password string) (*models.User, error)
	CreateAdmin(ctx context.Context, username, password, nickname string) (*models.User, error)
}

type authService struct {
	userRepo repository.UserRepository
	logger   *zap.Logger
	cost     int
}

func NewAuthService(userRepo repository.UserRepository, log *zap.Logger) AuthService {
	return &authService{
		userRepo: userRepo,
		logger:   logger.OrNop(log),
		cost:     bcrypt.DefaultCost,
	}
}

// SignIn не различает «нет пользователя» и «неверный пароль»
func (s *authService) SignIn(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("Failed to load user", zap.String("username", username), zap.Error(err))
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		s.logger.Info("Rejected sign-in", zap.String("username", username))
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

func (s *authService) CreateAdmin(ctx context.Context, username, password, nickname string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrMissingUsername
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username: username,
		Password: string(hash),
		Nickname: nickname,
		Role:     models.RoleAdmin,
	}
	if err := s.userRepo.Upsert(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("Admin user saved", zap.String("username", username))
	return user, nil
}
