package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/prperemyshlev/passcode-auth/internal/domain"
	"github.com/prperemyshlev/passcode-auth/pkg/database"
)

// postgresRateLimitRepository keeps counters in the rate_limits table
type postgresRateLimitRepository struct {
	db *database.Postgres
}

// NewPostgresRateLimitRepository creates a rate limit repository backed by PostgreSQL
func NewPostgresRateLimitRepository(db *database.Postgres) RateLimitRepository {
	return &postgresRateLimitRepository{db: db}
}

// Get retrieves the counter for a client and route
func (r *postgresRateLimitRepository) Get(ctx context.Context, clientIP, route string) (*domain.RateLimitCounter, error) {
	query := `
		SELECT client_ip, route, hits, expires_at
		FROM rate_limits
		WHERE client_ip = $1 AND route = $2
	`

	counter := &domain.RateLimitCounter{}
	err := r.db.DB.QueryRowContext(ctx, query, clientIP, route).Scan(
		&counter.ClientIP,
		&counter.Route,
		&counter.Hits,
		&counter.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("rate limit counter not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get rate limit counter: %w", err)
	}

	return counter, nil
}

// Save creates or resets the counter
func (r *postgresRateLimitRepository) Save(ctx context.Context, counter *domain.RateLimitCounter) error {
	query := `
		INSERT INTO rate_limits (client_ip, route, hits, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (client_ip, route) DO UPDATE SET
			hits = EXCLUDED.hits,
			expires_at = EXCLUDED.expires_at
	`

	_, err := r.db.DB.ExecContext(ctx, query,
		counter.ClientIP,
		counter.Route,
		counter.Hits,
		counter.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save rate limit counter: %w", err)
	}

	return nil
}

// Increment bumps the counter and returns the new hit count
func (r *postgresRateLimitRepository) Increment(ctx context.Context, clientIP, route string) (int, error) {
	query := `
		UPDATE rate_limits
		SET hits = hits + 1
		WHERE client_ip = $1 AND route = $2
		RETURNING hits
	`

	var hits int
	if err := r.db.DB.QueryRowContext(ctx, query, clientIP, route).Scan(&hits); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("rate limit counter not found: %w", ErrNotFound)
		}
		return 0, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	return hits, nil
}
