// Package auth identifies the department behind each request.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/fx"

	"github.com/Additional-Code/fulfillment/internal/config"
	"github.com/Additional-Code/fulfillment/internal/entity"
)

// ErrInvalidToken is returned for malformed, expired or foreign tokens.
var ErrInvalidToken = errors.New("invalid token")

// Module provides the token manager to Fx.
var Module = fx.Provide(NewTokenManager)

// Identity is the acting department and the person within it.
type Identity struct {
	Subject    string            `json:"subject"`
	Department entity.Department `json:"department"`
}

type claims struct {
	Department string `json:"dept"`
	jwt.RegisteredClaims
}

// TokenManager signs and validates department tokens with HMAC-SHA256.
type TokenManager struct {
	secret  []byte
	ttl     time.Duration
	enabled bool
	now     func() time.Time
}

// NewTokenManager builds a manager from the auth configuration.
func NewTokenManager(cfg config.Config) *TokenManager {
	ttl := cfg.Auth.TokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &TokenManager{
		secret:  []byte(cfg.Auth.Secret),
		ttl:     ttl,
		enabled: cfg.Auth.Enabled,
		now:     time.Now,
	}
}

// Enabled reports whether requests must carry a bearer token.
func (tm *TokenManager) Enabled() bool {
	return tm.enabled
}

// Issue mints a token for subject acting as dept.
func (tm *TokenManager) Issue(subject string, dept entity.Department) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("subject is required")
	}
	if _, ok := entity.ParseDepartment(string(dept)); !ok {
		return "", fmt.Errorf("unknown department %q", dept)
	}
	now := tm.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Department: string(dept),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.ttl)),
		},
	})
	return token.SignedString(tm.secret)
}

// Parse validates a token and returns the identity it carries.
func (tm *TokenManager) Parse(raw string) (Identity, error) {
	var c claims
	token, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return tm.secret, nil
	}, jwt.WithTimeFunc(tm.now))
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	dept, ok := entity.ParseDepartment(c.Department)
	if !ok || c.Subject == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{Subject: c.Subject, Department: dept}, nil
}
