package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	"github.com/HanjuJo/Latteh/internal/apperr"
	"github.com/HanjuJo/Latteh/pkg/utilities"
)

type Config struct {
	Secret string        `env:"JWT_SECRET"`
	TTL    time.Duration `env:"JWT_TTL" envDefault:"720h"`
	Issuer string        `env:"JWT_ISSUER" envDefault:"latteh-api"`
}

// ConfigFromEnv reads token settings. JWT_SECRET is mandatory.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse auth env: %w", err)
	}
	if strings.TrimSpace(cfg.Secret) == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}
	return cfg, nil
}

// TokenIssuer signs and verifies HS256 access tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	nowFn  func() time.Time
}

func NewTokenIssuer(cfg Config) *TokenIssuer {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(cfg.Secret), ttl: ttl, issuer: cfg.Issuer, nowFn: time.Now}
}

// Issue creates a token for userID and returns it with its expiry.
func (t *TokenIssuer) Issue(userID string) (string, time.Time, error) {
	now := t.nowFn()
	exp := now.Add(t.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    t.issuer,
		Subject:   userID,
		ID:        utilities.NewKSUID(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify parses token and returns the subject user id.
func (t *TokenIssuer) Verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithTimeFunc(t.nowFn),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: token expired", apperr.ErrUnauthorized)
		}
		return "", fmt.Errorf("%w: invalid token", apperr.ErrUnauthorized)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: invalid token", apperr.ErrUnauthorized)
	}
	return claims.Subject, nil
}
