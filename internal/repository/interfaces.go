package repository

import (
	"context"
	"time"

	"github.com/prperemyshlev/passcode-auth/internal/domain"
)

// AccountRepository defines methods for account operations
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetByID(ctx context.Context, id string) (*domain.Account, error)
}

// PendingAuthRepository defines methods for verification challenges
type PendingAuthRepository interface {
	// Upsert atomically replaces any record held for the same email
	Upsert(ctx context.Context, pending *domain.PendingAuth) error
	GetByEmail(ctx context.Context, email string) (*domain.PendingAuth, error)
	// MarkUsed consumes the record, returning ErrAlreadyUsed if it was consumed first
	MarkUsed(ctx context.Context, id string, usedAt time.Time) error
}

// SessionRepository defines methods for session operations
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error)
	GetLatestByAccountID(ctx context.Context, accountID string) (*domain.Session, error)
	ListByAccountID(ctx context.Context, accountID string) ([]*domain.Session, error)
	// Rotate swaps the token hash only while it still equals currentHash
	Rotate(ctx context.Context, id, currentHash, newHash string, expiresAt time.Time) error
	Delete(ctx context.Context, id string) error
}

// OAuthAccountRepository defines methods for provider links
type OAuthAccountRepository interface {
	Create(ctx context.Context, link *domain.OAuthAccount) error
	GetByProvider(ctx context.Context, provider, providerID string) (*domain.OAuthAccount, error)
	ListByAccountID(ctx context.Context, accountID string) ([]*domain.OAuthAccount, error)
}

// ActiveLogRepository defines methods for the audit trail
type ActiveLogRepository interface {
	Create(ctx context.Context, log *domain.ActiveLog) error
	ListByAccountID(ctx context.Context, accountID string, limit int) ([]*domain.ActiveLog, error)
}

// RateLimitRepository stores fixed-window counters
type RateLimitRepository interface {
	Get(ctx context.Context, clientIP, route string) (*domain.RateLimitCounter, error)
	// Save creates the counter or resets an existing one
	Save(ctx context.Context, counter *domain.RateLimitCounter) error
	// Increment bumps hits and returns the post-increment value
	Increment(ctx context.Context, clientIP, route string) (int, error)
}
