// Package jwt issues and validates HS256 access tokens for operators.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/healthboard/internal/domain"
	gojwt "github.com/golang-jwt/jwt/v5"
)

const issuer = "healthboard"

// ErrInvalidToken is returned for malformed, expired or forged tokens.
var ErrInvalidToken = errors.New("invalid token")

// Config contains token settings.
type Config struct {
	SecretKey           string
	AccessTokenDuration time.Duration
}

// Token is a signed access token.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type claims struct {
	Role domain.Role `json:"role"`
	gojwt.RegisteredClaims
}

// Authenticator signs and verifies tokens.
type Authenticator struct {
	config Config
	now    func() time.Time
}

// NewAuthenticator creates a token authenticator.
func NewAuthenticator(config Config) *Authenticator {
	return &Authenticator{config: config, now: time.Now}
}

// GenerateToken issues an access token for the operator.
func (a *Authenticator) GenerateToken(op *domain.Operator) (*Token, error) {
	now := a.now()
	expiresAt := now.Add(a.config.AccessTokenDuration)

	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims{
		Role: op.Role,
		RegisteredClaims: gojwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   op.Email,
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(expiresAt),
		},
	})

	signed, err := token.SignedString([]byte(a.config.SecretKey))
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &Token{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt.UTC().Truncate(time.Second),
	}, nil
}

// ValidateToken verifies the token and returns its subject and role.
func (a *Authenticator) ValidateToken(tokenString string) (string, domain.Role, error) {
	var c claims
	_, err := gojwt.ParseWithClaims(tokenString, &c, func(*gojwt.Token) (any, error) {
		return []byte(a.config.SecretKey), nil
	},
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithIssuer(issuer),
		gojwt.WithExpirationRequired(),
		gojwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !c.Role.IsValid() {
		return "", "", fmt.Errorf("%w: unknown role %q", ErrInvalidToken, c.Role)
	}
	return c.Subject, c.Role, nil
}
