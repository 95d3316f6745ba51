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

// sessionRepository implements SessionRepository interface
type sessionRepository struct {
	db *database.Postgres
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *database.Postgres) SessionRepository {
	return &sessionRepository{db: db}
}

const sessionColumns = `id, account_id, refresh_token_hash, refresh_expires_at, client_ip, user_agent, created_at`

// Create stores a new session
func (r *sessionRepository) Create(ctx context.Context, session *domain.Session) error {
	query := `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		session.ID,
		session.AccountID,
		session.RefreshTokenHash,
		session.RefreshExpiresAt,
		session.ClientIP,
		session.UserAgent,
		session.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("session with token hash already exists: %w", ErrDuplicateToken)
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetByTokenHash retrieves a session by the hash of its current refresh token
func (r *sessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE refresh_token_hash = $1`

	session, err := scanSession(r.db.DB.QueryRowContext(ctx, query, tokenHash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session with token hash not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get session by token hash: %w", err)
	}

	return session, nil
}

// GetLatestByAccountID retrieves the most recently created session of an account
func (r *sessionRepository) GetLatestByAccountID(ctx context.Context, accountID string) (*domain.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	session, err := scanSession(r.db.DB.QueryRowContext(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session for account %s not found: %w", accountID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get session by account id: %w", err)
	}

	return session, nil
}

// ListByAccountID retrieves all sessions for an account, newest first
func (r *sessionRepository) ListByAccountID(ctx context.Context, accountID string) ([]*domain.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE account_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.DB.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sessions by account id: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	return sessions, nil
}

// Rotate replaces the refresh token hash if it still holds currentHash
func (r *sessionRepository) Rotate(ctx context.Context, id, currentHash, newHash string, expiresAt time.Time) error {
	query := `
		UPDATE sessions
		SET refresh_token_hash = $3, refresh_expires_at = $4
		WHERE id = $1 AND refresh_token_hash = $2
	`

	result, err := r.db.DB.ExecContext(ctx, query, id, currentHash, newHash, expiresAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("session with token hash already exists: %w", ErrDuplicateToken)
		}
		return fmt.Errorf("failed to rotate session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("session %s with current token not found: %w", id, ErrNotFound)
	}

	return nil
}

// Delete deletes a session by ID
func (r *sessionRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM sessions WHERE id = $1`

	result, err := r.db.DB.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("session with id %s not found: %w", id, ErrNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	session := &domain.Session{}
	err := row.Scan(
		&session.ID,
		&session.AccountID,
		&session.RefreshTokenHash,
		&session.RefreshExpiresAt,
		&session.ClientIP,
		&session.UserAgent,
		&session.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return session, nil
}
