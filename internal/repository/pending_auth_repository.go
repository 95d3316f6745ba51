package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/passcode-auth/internal/domain"
	"github.com/prperemyshlev/passcode-auth/pkg/database"
)

// pendingAuthRepository implements PendingAuthRepository interface
type pendingAuthRepository struct {
	db *database.Postgres
}

// NewPendingAuthRepository creates a new pending auth repository
func NewPendingAuthRepository(db *database.Postgres) PendingAuthRepository {
	return &pendingAuthRepository{db: db}
}

// Upsert stores a fresh challenge for the email, superseding the previous one
func (r *pendingAuthRepository) Upsert(ctx context.Context, pending *domain.PendingAuth) error {
	query := `
		INSERT INTO pending_auths (id, email, name, code_hash, password_hash, created_at, expires_at, used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL)
		ON CONFLICT (email) DO UPDATE SET
			id = EXCLUDED.id,
			name = EXCLUDED.name,
			code_hash = EXCLUDED.code_hash,
			password_hash = EXCLUDED.password_hash,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at,
			used_at = NULL
	`

	if pending.ID == "" {
		pending.ID = uuid.New().String()
	}
	if pending.CreatedAt.IsZero() {
		pending.CreatedAt = time.Now()
	}
	pending.UsedAt = nil

	_, err := r.db.DB.ExecContext(ctx, query,
		pending.ID,
		pending.Email,
		pending.Name,
		pending.CodeHash,
		pending.PasswordHash,
		pending.CreatedAt,
		pending.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert pending auth: %w", err)
	}

	return nil
}

// GetByEmail retrieves the current challenge for an email
func (r *pendingAuthRepository) GetByEmail(ctx context.Context, email string) (*domain.PendingAuth, error) {
	query := `
		SELECT id, email, name, code_hash, password_hash, created_at, expires_at, used_at
		FROM pending_auths
		WHERE email = $1
	`

	pending := &domain.PendingAuth{}
	var usedAt sql.NullTime

	err := r.db.DB.QueryRowContext(ctx, query, email).Scan(
		&pending.ID,
		&pending.Email,
		&pending.Name,
		&pending.CodeHash,
		&pending.PasswordHash,
		&pending.CreatedAt,
		&pending.ExpiresAt,
		&usedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("pending auth for %s not found: %w", email, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get pending auth: %w", err)
	}

	if usedAt.Valid {
		pending.UsedAt = &usedAt.Time
	}

	return pending, nil
}

// MarkUsed consumes the challenge if nobody else has
func (r *pendingAuthRepository) MarkUsed(ctx context.Context, id string, usedAt time.Time) error {
	query := `UPDATE pending_auths SET used_at = $2 WHERE id = $1 AND used_at IS NULL`

	result, err := r.db.DB.ExecContext(ctx, query, id, usedAt)
	if err != nil {
		return fmt.Errorf("failed to mark pending auth used: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("pending auth %s: %w", id, ErrAlreadyUsed)
	}

	return nil
}
