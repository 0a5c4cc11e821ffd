package api

import (
	stderrors "errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/kbukum/agentflow/errors"
)

// Claims are the bearer token claims accepted by the API.
type Claims struct {
	gojwt.RegisteredClaims
}

// TokenService signs and verifies HS256 bearer tokens.
type TokenService struct {
	cfg AuthConfig
}

// NewTokenService creates a token service for cfg.
func NewTokenService(cfg AuthConfig) (*TokenService, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("jwt: secret is required")
	}
	return &TokenService{cfg: cfg}, nil
}

// Issue creates a signed token for subject valid for ttl.
func (s *TokenService) Issue(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{RegisteredClaims: gojwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    s.cfg.Issuer,
		IssuedAt:  gojwt.NewNumericDate(now),
		ExpiresAt: gojwt.NewNumericDate(now.Add(ttl)),
	}}
	if s.cfg.Audience != "" {
		claims.Audience = gojwt.ClaimStrings{s.cfg.Audience}
	}

	signed, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies token and returns its claims. Failures are AppErrors with
// TOKEN_EXPIRED or INVALID_TOKEN codes.
func (s *TokenService) Parse(token string) (*Claims, error) {
	opts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithExpirationRequired(),
	}
	if s.cfg.Issuer != "" {
		opts = append(opts, gojwt.WithIssuer(s.cfg.Issuer))
	}
	if s.cfg.Audience != "" {
		opts = append(opts, gojwt.WithAudience(s.cfg.Audience))
	}

	claims := &Claims{}
	_, err := gojwt.ParseWithClaims(token, claims, func(*gojwt.Token) (any, error) {
		return []byte(s.cfg.Secret), nil
	}, opts...)
	switch {
	case err == nil:
		return claims, nil
	case stderrors.Is(err, gojwt.ErrTokenExpired):
		return nil, errors.TokenExpired().WithCause(err)
	default:
		return nil, errors.InvalidToken().WithCause(err)
	}
}
