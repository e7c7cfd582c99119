// Package service issues and validates the bearer tokens that guard admin endpoints.
package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// RoleAdmin may trigger ingests and submit reports.
	RoleAdmin = "admin"

	issuer = "da-price-monitor"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrForbidden    = errors.New("insufficient role")
)

// Claims are the JWT claims of an access token.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies access tokens.
type TokenManager interface {
	GenerateAccessToken(subject, email, role string) (string, time.Time, error)
	ValidateAccessToken(token string) (*Claims, error)
}

type hmacTokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager creates an HS256 token manager.
func NewTokenManager(secret []byte, ttl time.Duration) TokenManager {
	return &hmacTokenManager{secret: secret, ttl: ttl, now: time.Now}
}

func (m *hmacTokenManager) GenerateAccessToken(subject, email, role string) (string, time.Time, error) {
	now := m.now()
	expires := now.Add(m.ttl)

	claims := Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expires, nil
}

func (m *hmacTokenManager) ValidateAccessToken(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims, nil
}

// RequireRole returns ErrForbidden unless claims carry role.
func RequireRole(claims *Claims, role string) error {
	if claims == nil || claims.Role != role {
		return ErrForbidden
	}
	return nil
}
