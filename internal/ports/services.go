package ports

import (
	"context"
	"time"

	"github.com/E-ugine/kyc-verification-backend/internal/domain"
)

type Logger interface {
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)
	Debug(ctx context.Context, msg string, args ...any)
}

type CredentialVerifier interface {
	Verify(username, password string) bool
}

type TokenIssuer interface {
	Issue(subject, role string, ttl time.Duration) (domain.Token, error)
	Parse(token string) (domain.Principal, error)
}

type WorkflowMetrics interface {
	SubmissionAccepted()
	SubmissionFailed(reason string)
	Reviewed(status domain.Status)
	LoginAttempt(success bool)
}
