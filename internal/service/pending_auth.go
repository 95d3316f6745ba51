package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prperemyshlev/passcode-auth/internal/domain"
	"github.com/prperemyshlev/passcode-auth/internal/repository"
	"github.com/prperemyshlev/passcode-auth/internal/utils"
)

// PendingAuthService issues and validates email verification codes
type PendingAuthService struct {
	repo   repository.PendingAuthRepository
	hasher *utils.Hasher
	now    func() time.Time
}

// NewPendingAuthService creates a new pending auth service
func NewPendingAuthService(repo repository.PendingAuthRepository, hasher *utils.Hasher) *PendingAuthService {
	return &PendingAuthService{
		repo:   repo,
		hasher: hasher,
		now:    time.Now,
	}
}

// WithClock replaces the time source, used by tests
func (s *PendingAuthService) WithClock(now func() time.Time) *PendingAuthService {
	s.now = now
	return s
}

// Issue replaces any outstanding challenge for email and returns the new plaintext code
func (s *PendingAuthService) Issue(ctx context.Context, email, password, name string) (string, error) {
	code, err := s.hasher.GenerateCode()
	if err != nil {
		return "", err
	}

	codeHash, err := s.hasher.Hash(code)
	if err != nil {
		return "", fmt.Errorf("failed to hash code: %w", err)
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	pending := &domain.PendingAuth{
		Email:        email,
		Name:         name,
		CodeHash:     codeHash,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		ExpiresAt:    now.Add(domain.PendingAuthTTL),
	}

	if err := s.repo.Upsert(ctx, pending); err != nil {
		return "", fmt.Errorf("failed to store pending auth: %w", err)
	}

	return code, nil
}

// Validate checks a code against the current challenge for email and consumes it.
// Failures are reported in order: not found, already used, expired, invalid code.
func (s *PendingAuthService) Validate(ctx context.Context, email, code string) (*domain.PendingAuth, error) {
	pending, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrCodeNotFound
		}
		return nil, fmt.Errorf("failed to get pending auth: %w", err)
	}

	if pending.IsUsed() {
		return nil, domain.ErrCodeAlreadyUsed
	}

	now := s.now()
	if pending.IsExpired(now) {
		return nil, domain.ErrCodeExpired
	}

	if !s.hasher.Verify(code, pending.CodeHash) {
		return nil, domain.ErrInvalidCode
	}

	if err := s.repo.MarkUsed(ctx, pending.ID, now); err != nil {
		if errors.Is(err, repository.ErrAlreadyUsed) {
			return nil, domain.ErrCodeAlreadyUsed
		}
		return nil, fmt.Errorf("failed to mark pending auth used: %w", err)
	}
	pending.UsedAt = &now

	return pending, nil
}
