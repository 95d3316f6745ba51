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

// accountRepository implements AccountRepository interface
type accountRepository struct {
	db *database.Postgres
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *database.Postgres) AccountRepository {
	return &accountRepository{db: db}
}

// Create creates a new account in the database
func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (id, email, password_hash, name, avatar_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		account.ID,
		account.Email,
		account.PasswordHash,
		account.Name,
		account.AvatarURL,
		account.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("account with email %s already exists: %w", account.Email, ErrDuplicateEmail)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetByEmail retrieves an account by its normalized email
func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `
		SELECT id, email, password_hash, name, avatar_url, created_at
		FROM accounts
		WHERE email = $1
	`

	account, err := scanAccount(r.db.DB.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account with email %s not found: %w", email, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account by email: %w", err)
	}

	return account, nil
}

// GetByID retrieves an account by ID
func (r *accountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	query := `
		SELECT id, email, password_hash, name, avatar_url, created_at
		FROM accounts
		WHERE id = $1
	`

	account, err := scanAccount(r.db.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account with id %s not found: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account by id: %w", err)
	}

	return account, nil
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	account := &domain.Account{}
	var passwordHash, avatarURL sql.NullString

	if err := row.Scan(
		&account.ID,
		&account.Email,
		&passwordHash,
		&account.Name,
		&avatarURL,
		&account.CreatedAt,
	); err != nil {
		return nil, err
	}

	if passwordHash.Valid {
		account.PasswordHash = &passwordHash.String
	}
	if avatarURL.Valid {
		account.AvatarURL = &avatarURL.String
	}

	return account, nil
}
