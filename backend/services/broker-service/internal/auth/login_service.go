package auth

import (
	"context"
	"errors"
	"strings"

	"gatebroker/backend/services/broker-service/internal/models"
	"gatebroker/backend/services/broker-service/internal/repository"
)

// ErrInvalidCredentials represents login failure.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// UserRepository defines storage contract used by the login service.
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (*models.UserAccount, error)
}

// LoginService checks passwords and issues tokens.
type LoginService struct {
	repo      UserRepository
	hasher    Hasher
	tokenizer *TokenService
}

// NewLoginService builds LoginService.
func NewLoginService(repo UserRepository, hasher Hasher, tokenizer *TokenService) *LoginService {
	return &LoginService{repo: repo, hasher: hasher, tokenizer: tokenizer}
}

// Login authenticates a user and produces a JWT.
func (s *LoginService) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", nil, ErrInvalidCredentials
	}

	account, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	if err := s.hasher.Compare(account.PasswordHash, password); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokenizer.GenerateToken(account.User)
	if err != nil {
		return "", nil, err
	}
	user := account.User
	return token, &user, nil
}
