// Package identity authenticates operators and guards write access.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bissquit/healthboard/internal/domain"
	"github.com/bissquit/healthboard/internal/identity/jwt"
	"golang.org/x/crypto/bcrypt"
)

// Authenticator issues and validates access tokens.
type Authenticator interface {
	GenerateToken(op *domain.Operator) (*jwt.Token, error)
	ValidateToken(token string) (subject string, role domain.Role, err error)
}

// Service implements operator login and token validation.
type Service struct {
	repo Repository
	auth Authenticator
}

// NewService creates a new identity service.
func NewService(repo Repository, auth Authenticator) *Service {
	return &Service{repo: repo, auth: auth}
}

// LoginInput contains login credentials.
type LoginInput struct {
	Email    string
	Password string
}

// dummyHash is compared against when the operator does not exist so that
// unknown emails take as long as wrong passwords.
var dummyHash = sync.OnceValue(func() []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte("healthboard"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return hash
})

// Login verifies credentials and issues an access token.
func (s *Service) Login(ctx context.Context, input LoginInput) (*jwt.Token, error) {
	op, err := s.repo.GetOperatorByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, ErrOperatorNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(input.Password))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get operator: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(input.Password)); err != nil {
		slog.Warn("failed login attempt", "email", op.Email)
		return nil, ErrInvalidCredentials
	}

	token, err := s.auth.GenerateToken(op)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

// ValidateToken implements httputil.TokenValidator.
func (s *Service) ValidateToken(_ context.Context, token string) (string, domain.Role, error) {
	subject, role, err := s.auth.ValidateToken(token)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return subject, role, nil
}
