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

// oauthAccountRepository implements OAuthAccountRepository interface
type oauthAccountRepository struct {
	db *database.Postgres
}

// NewOAuthAccountRepository creates a new OAuth account repository
func NewOAuthAccountRepository(db *database.Postgres) OAuthAccountRepository {
	return &oauthAccountRepository{db: db}
}

// Create links a provider identity to an account
func (r *oauthAccountRepository) Create(ctx context.Context, link *domain.OAuthAccount) error {
	query := `
		INSERT INTO oauth_accounts (id, account_id, provider, provider_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	if link.ID == "" {
		link.ID = uuid.New().String()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now()
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		link.ID,
		link.AccountID,
		link.Provider,
		link.ProviderID,
		link.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s account %s already linked: %w", link.Provider, link.ProviderID, ErrDuplicateOAuthAccount)
		}
		return fmt.Errorf("failed to create oauth account: %w", err)
	}

	return nil
}

// GetByProvider retrieves a link by provider and provider-side user ID
func (r *oauthAccountRepository) GetByProvider(ctx context.Context, provider, providerID string) (*domain.OAuthAccount, error) {
	query := `
		SELECT id, account_id, provider, provider_id, created_at
		FROM oauth_accounts
		WHERE provider = $1 AND provider_id = $2
	`

	link := &domain.OAuthAccount{}
	err := r.db.DB.QueryRowContext(ctx, query, provider, providerID).Scan(
		&link.ID,
		&link.AccountID,
		&link.Provider,
		&link.ProviderID,
		&link.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("oauth account not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get oauth account: %w", err)
	}

	return link, nil
}

// ListByAccountID retrieves all provider links of an account
func (r *oauthAccountRepository) ListByAccountID(ctx context.Context, accountID string) ([]*domain.OAuthAccount, error) {
	query := `
		SELECT id, account_id, provider, provider_id, created_at
		FROM oauth_accounts
		WHERE account_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.DB.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get oauth accounts by account id: %w", err)
	}
	defer rows.Close()

	var links []*domain.OAuthAccount
	for rows.Next() {
		link := &domain.OAuthAccount{}
		if err := rows.Scan(
			&link.ID,
			&link.AccountID,
			&link.Provider,
			&link.ProviderID,
			&link.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan oauth account: %w", err)
		}
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate oauth accounts: %w", err)
	}

	return links, nil
}
