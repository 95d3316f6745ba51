package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/passcode-auth/internal/domain"
	"github.com/prperemyshlev/passcode-auth/pkg/database"
)

// activeLogRepository implements ActiveLogRepository interface
type activeLogRepository struct {
	db *database.Postgres
}

// NewActiveLogRepository creates a new active log repository
func NewActiveLogRepository(db *database.Postgres) ActiveLogRepository {
	return &activeLogRepository{db: db}
}

// Create appends an audit record
func (r *activeLogRepository) Create(ctx context.Context, log *domain.ActiveLog) error {
	query := `
		INSERT INTO active_logs (id, account_id, action, client_ip, user_agent, status, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		log.ID,
		log.AccountID,
		log.Action,
		log.ClientIP,
		log.UserAgent,
		log.Status,
		log.Reason,
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create active log: %w", err)
	}

	return nil
}

// ListByAccountID returns the newest audit records of an account
func (r *activeLogRepository) ListByAccountID(ctx context.Context, accountID string, limit int) ([]*domain.ActiveLog, error) {
	query := `
		SELECT id, account_id, action, client_ip, user_agent, status, reason, created_at
		FROM active_logs
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.DB.QueryContext(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get active logs by account id: %w", err)
	}
	defer rows.Close()

	var logs []*domain.ActiveLog
	for rows.Next() {
		log := &domain.ActiveLog{}
		var reason sql.NullString

		if err := rows.Scan(
			&log.ID,
			&log.AccountID,
			&log.Action,
			&log.ClientIP,
			&log.UserAgent,
			&log.Status,
			&reason,
			&log.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan active log: %w", err)
		}

		if reason.Valid {
			log.Reason = &reason.String
		}

		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate active logs: %w", err)
	}

	return logs, nil
}
