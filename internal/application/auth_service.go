package application

import (
	"context"
	"fmt"
	"time"

	"github.com/E-ugine/kyc-verification-backend/internal/domain"
	"github.com/E-ugine/kyc-verification-backend/internal/ports"
)

type AuthService struct {
	creds   ports.CredentialVerifier
	tokens  ports.TokenIssuer
	ttl     time.Duration
	metrics ports.WorkflowMetrics
	logger  ports.Logger
}

func NewAuthService(creds ports.CredentialVerifier, tokens ports.TokenIssuer, ttl time.Duration, logger ports.Logger, metrics ports.WorkflowMetrics) *AuthService {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &AuthService{creds: creds, tokens: tokens, ttl: ttl, metrics: metrics, logger: logger}
}

func (s *AuthService) TokenTTL() time.Duration { return s.ttl }

// Authenticate exchanges admin credentials for a bearer token.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (domain.Token, error) {
	if username == "" || password == "" || !s.creds.Verify(username, password) {
		s.metrics.LoginAttempt(false)
		s.logger.Warn(ctx, "admin login failed", "username", username)
		return domain.Token{}, domain.ErrUnauthorized
	}
	token, err := s.tokens.Issue(username, domain.RoleAdmin, s.ttl)
	if err != nil {
		return domain.Token{}, fmt.Errorf("issue access token: %w", err)
	}
	s.metrics.LoginAttempt(true)
	s.logger.Info(ctx, "admin logged in", "username", username)
	return token, nil
}

// Authorize resolves a bearer token to an admin principal.
func (s *AuthService) Authorize(ctx context.Context, token string) (domain.Principal, error) {
	if token == "" {
		return domain.Principal{}, domain.ErrUnauthorized
	}
	principal, err := s.tokens.Parse(token)
	if err != nil {
		s.logger.Debug(ctx, "rejected bearer token", "error", err)
		return domain.Principal{}, domain.ErrUnauthorized
	}
	if principal.Username == "" || principal.Role != domain.RoleAdmin {
		return domain.Principal{}, domain.ErrUnauthorized
	}
	return principal, nil
}
