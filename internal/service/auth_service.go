package service

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// AuthService authenticates the admin API operator configured in the environment.
type AuthService struct {
	username     string
	passwordHash string
	tokenMgr     *auth.TokenManager
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig) *AuthService {
	return &AuthService{
		username:     cfg.AdminUsername,
		passwordHash: cfg.AdminPasswordHash,
		tokenMgr:     auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
	}
}

// TokenManager exposes the token manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// Login checks the admin credentials and issues a bearer token.
func (s *AuthService) Login(_ context.Context, username, password string) (string, time.Time, error) {
	if s.passwordHash == "" {
		return "", time.Time{}, errorutil.NewUnauthorized("admin login is disabled")
	}
	if subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) != 1 {
		return "", time.Time{}, errorutil.NewUnauthorized("invalid credentials")
	}
	if err := auth.ComparePassword(s.passwordHash, password); err != nil {
		return "", time.Time{}, errorutil.NewUnauthorized("invalid credentials")
	}
	token, exp, err := s.tokenMgr.GenerateToken(s.username)
	if err != nil {
		return "", time.Time{}, errorutil.NewInternalError(err)
	}
	return token, exp, nil
}
