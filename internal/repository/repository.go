package repository

import (
	"github.com/prperemyshlev/passcode-auth/pkg/database"
)

const (
	RateLimitStoreRedis    = "redis"
	RateLimitStorePostgres = "postgres"
)

// Repositories holds all repository interfaces
type Repositories struct {
	Account      AccountRepository
	PendingAuth  PendingAuthRepository
	Session      SessionRepository
	OAuthAccount OAuthAccountRepository
	ActiveLog    ActiveLogRepository
	RateLimit    RateLimitRepository
}

// NewRepositories creates all repositories; rateLimitStore selects the counter backend
func NewRepositories(db *database.Postgres, rdb *database.Redis, rateLimitStore string) *Repositories {
	var rateLimits RateLimitRepository
	if rateLimitStore == RateLimitStorePostgres {
		rateLimits = NewPostgresRateLimitRepository(db)
	} else {
		rateLimits = NewRedisRateLimitRepository(rdb)
	}

	return &Repositories{
		Account:      NewAccountRepository(db),
		PendingAuth:  NewPendingAuthRepository(db),
		Session:      NewSessionRepository(db),
		OAuthAccount: NewOAuthAccountRepository(db),
		ActiveLog:    NewActiveLogRepository(db),
		RateLimit:    rateLimits,
	}
}
