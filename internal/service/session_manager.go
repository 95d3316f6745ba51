package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/prperemyshlev/passcode-auth/internal/domain"
	"github.com/prperemyshlev/passcode-auth/internal/repository"
)

// SessionManager persists refresh-token sessions.
// Only SHA-256 digests of refresh tokens are stored.
type SessionManager struct {
	repo repository.SessionRepository
}

// NewSessionManager creates a new session manager
func NewSessionManager(repo repository.SessionRepository) *SessionManager {
	return &SessionManager{repo: repo}
}

// Create stores a new session for the refresh token
func (m *SessionManager) Create(ctx context.Context, accountID, refreshToken string, expiresAt time.Time, client domain.ClientInfo) (*domain.Session, error) {
	session := &domain.Session{
		AccountID:        accountID,
		RefreshTokenHash: hashToken(refreshToken),
		RefreshExpiresAt: expiresAt,
		ClientIP:         client.IP,
		UserAgent:        client.UserAgent,
	}

	if err := m.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// Rotate replaces the session's refresh token.
// It fails with ErrSessionNotFound if currentToken was already rotated away.
func (m *SessionManager) Rotate(ctx context.Context, sessionID, currentToken, newToken string, expiresAt time.Time) error {
	err := m.repo.Rotate(ctx, sessionID, hashToken(currentToken), hashToken(newToken), expiresAt)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrSessionNotFound
		}
		return fmt.Errorf("failed to rotate session: %w", err)
	}
	return nil
}

// FindByRefreshToken looks a session up by its current refresh token
func (m *SessionManager) FindByRefreshToken(ctx context.Context, refreshToken string) (*domain.Session, error) {
	session, err := m.repo.GetByTokenHash(ctx, hashToken(refreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return session, nil
}

// FindByAccountID returns the account's most recent session
func (m *SessionManager) FindByAccountID(ctx context.Context, accountID string) (*domain.Session, error) {
	session, err := m.repo.GetLatestByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return session, nil
}

// ListByAccountID returns all sessions of an account, newest first
func (m *SessionManager) ListByAccountID(ctx context.Context, accountID string) ([]*domain.Session, error) {
	sessions, err := m.repo.ListByAccountID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// Destroy deletes a session
func (m *SessionManager) Destroy(ctx context.Context, sessionID string) error {
	if err := m.repo.Delete(ctx, sessionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrSessionNotFound
		}
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}

// hashToken hashes a token using SHA256
func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
