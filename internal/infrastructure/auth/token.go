// Package auth issues and verifies the bearer tokens staff present to the API.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kirillkom/collateral-appraisal/internal/core/domain"
)

const issuer = "collateral-appraisal"

// Claims carries the actor role next to the registered claims. The subject
// is the user id.
type Claims struct {
	Role     domain.Role `json:"role"`
	Username string      `json:"username,omitempty"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) (*TokenManager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// WithClock replaces the clock used for issuing and validating tokens.
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	m.now = now
	return m
}

func (m *TokenManager) Issue(user domain.User) (string, time.Time, error) {
	if user.ID == "" || !user.Role.Valid() {
		return "", time.Time{}, domain.WrapError(domain.ErrInvalidInput, "issue token", fmt.Errorf("user %q has no valid role", user.Username))
	}
	issuedAt := m.now()
	expiresAt := issuedAt.Add(m.ttl)
	claims := Claims{
		Role:     user.Role,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify returns the actor a token was issued for. Every failure is
// ErrUnauthenticated.
func (m *TokenManager) Verify(tokenString string) (domain.Actor, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return domain.Actor{}, domain.WrapError(domain.ErrUnauthenticated, "verify token", err)
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return domain.Actor{}, domain.WrapError(domain.ErrUnauthenticated, "verify token", errors.New("token has no subject or role"))
	}
	return domain.Actor{ID: claims.Subject, Role: claims.Role}, nil
}
