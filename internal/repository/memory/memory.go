// Package memory provides map-backed repositories for tests and local runs without PostgreSQL.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/passcode-auth/internal/domain"
	"github.com/prperemyshlev/passcode-auth/internal/repository"
)

// Store holds every table behind a single lock
type Store struct {
	mu sync.RWMutex

	accounts     []*domain.Account
	pendingAuths map[string]*domain.PendingAuth
	sessions     []*domain.Session
	oauth        []*domain.OAuthAccount
	logs         []*domain.ActiveLog
	rateLimits   map[string]*domain.RateLimitCounter
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		pendingAuths: make(map[string]*domain.PendingAuth),
		rateLimits:   make(map[string]*domain.RateLimitCounter),
	}
}

// NewRepositories returns the full repository set over a fresh store
func NewRepositories() (*repository.Repositories, *Store) {
	s := NewStore()
	return s.Repositories(), s
}

// Repositories exposes the store through the repository interfaces
func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Account:      accountRepository{s},
		PendingAuth:  pendingAuthRepository{s},
		Session:      sessionRepository{s},
		OAuthAccount: oauthAccountRepository{s},
		ActiveLog:    activeLogRepository{s},
		RateLimit:    rateLimitRepository{s},
	}
}

// Accounts returns a snapshot of all accounts
func (s *Store) Accounts() []domain.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, *a)
	}
	return out
}

// Sessions returns a snapshot of all sessions
func (s *Store) Sessions() []domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Session, 0, len(s.sessions))
	for _, v := range s.sessions {
		out = append(out, *v)
	}
	return out
}

// OAuthAccounts returns a snapshot of all provider links
func (s *Store) OAuthAccounts() []domain.OAuthAccount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.OAuthAccount, 0, len(s.oauth))
	for _, v := range s.oauth {
		out = append(out, *v)
	}
	return out
}

// ActiveLogs returns a snapshot of the audit trail
func (s *Store) ActiveLogs() []domain.ActiveLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ActiveLog, 0, len(s.logs))
	for _, v := range s.logs {
		out = append(out, *v)
	}
	return out
}

// PendingAuth returns the stored challenge for email, if any
func (s *Store) PendingAuth(email string) (domain.PendingAuth, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pendingAuths[email]
	if !ok {
		return domain.PendingAuth{}, false
	}
	return *p, true
}

type accountRepository struct{ s *Store }

func (r accountRepository) Create(_ context.Context, account *domain.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, a := range r.s.accounts {
		if a.Email == account.Email {
			return fmt.Errorf("account with email %s already exists: %w", account.Email, repository.ErrDuplicateEmail)
		}
	}
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}

	cp := *account
	r.s.accounts = append(r.s.accounts, &cp)
	return nil
}

func (r accountRepository) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, a := range r.s.accounts {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("account with email %s not found: %w", email, repository.ErrNotFound)
}

func (r accountRepository) GetByID(_ context.Context, id string) (*domain.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, a := range r.s.accounts {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("account with id %s not found: %w", id, repository.ErrNotFound)
}

type pendingAuthRepository struct{ s *Store }

func (r pendingAuthRepository) Upsert(_ context.Context, pending *domain.PendingAuth) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if pending.ID == "" {
		pending.ID = uuid.New().String()
	}
	if pending.CreatedAt.IsZero() {
		pending.CreatedAt = time.Now()
	}
	pending.UsedAt = nil

	cp := *pending
	r.s.pendingAuths[pending.Email] = &cp
	return nil
}

func (r pendingAuthRepository) GetByEmail(_ context.Context, email string) (*domain.PendingAuth, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.pendingAuths[email]
	if !ok {
		return nil, fmt.Errorf("pending auth for %s not found: %w", email, repository.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (r pendingAuthRepository) MarkUsed(_ context.Context, id string, usedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, p := range r.s.pendingAuths {
		if p.ID == id && p.UsedAt == nil {
			t := usedAt
			p.UsedAt = &t
			return nil
		}
	}
	return fmt.Errorf("pending auth %s: %w", id, repository.ErrAlreadyUsed)
}

type sessionRepository struct{ s *Store }

func (r sessionRepository) Create(_ context.Context, session *domain.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, v := range r.s.sessions {
		if v.RefreshTokenHash == session.RefreshTokenHash {
			return fmt.Errorf("session with token hash already exists: %w", repository.ErrDuplicateToken)
		}
	}
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}

	cp := *session
	r.s.sessions = append(r.s.sessions, &cp)
	return nil
}

func (r sessionRepository) GetByTokenHash(_ context.Context, tokenHash string) (*domain.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, v := range r.s.sessions {
		if v.RefreshTokenHash == tokenHash {
			cp := *v
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("session with token hash not found: %w", repository.ErrNotFound)
}

func (r sessionRepository) GetLatestByAccountID(_ context.Context, accountID string) (*domain.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for i := len(r.s.sessions) - 1; i >= 0; i-- {
		if v := r.s.sessions[i]; v.AccountID == accountID {
			cp := *v
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("session for account %s not found: %w", accountID, repository.ErrNotFound)
}

func (r sessionRepository) ListByAccountID(_ context.Context, accountID string) ([]*domain.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*domain.Session
	for i := len(r.s.sessions) - 1; i >= 0; i-- {
		if v := r.s.sessions[i]; v.AccountID == accountID {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r sessionRepository) Rotate(_ context.Context, id, currentHash, newHash string, expiresAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, v := range r.s.sessions {
		if v.ID == id && v.RefreshTokenHash == currentHash {
			v.RefreshTokenHash = newHash
			v.RefreshExpiresAt = expiresAt
			return nil
		}
	}
	return fmt.Errorf("session %s with current token not found: %w", id, repository.ErrNotFound)
}

func (r sessionRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for i, v := range r.s.sessions {
		if v.ID == id {
			r.s.sessions = append(r.s.sessions[:i], r.s.sessions[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("session with id %s not found: %w", id, repository.ErrNotFound)
}

type oauthAccountRepository struct{ s *Store }

func (r oauthAccountRepository) Create(_ context.Context, link *domain.OAuthAccount) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, v := range r.s.oauth {
		if v.Provider == link.Provider && v.ProviderID == link.ProviderID {
			return fmt.Errorf("%s account %s already linked: %w", link.Provider, link.ProviderID, repository.ErrDuplicateOAuthAccount)
		}
	}
	if link.ID == "" {
		link.ID = uuid.New().String()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now()
	}

	cp := *link
	r.s.oauth = append(r.s.oauth, &cp)
	return nil
}

func (r oauthAccountRepository) GetByProvider(_ context.Context, provider, providerID string) (*domain.OAuthAccount, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, v := range r.s.oauth {
		if v.Provider == provider && v.ProviderID == providerID {
			cp := *v
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("oauth account not found: %w", repository.ErrNotFound)
}

func (r oauthAccountRepository) ListByAccountID(_ context.Context, accountID string) ([]*domain.OAuthAccount, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*domain.OAuthAccount
	for i := len(r.s.oauth) - 1; i >= 0; i-- {
		if v := r.s.oauth[i]; v.AccountID == accountID {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, nil
}

type activeLogRepository struct{ s *Store }

func (r activeLogRepository) Create(_ context.Context, log *domain.ActiveLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	cp := *log
	r.s.logs = append(r.s.logs, &cp)
	return nil
}

func (r activeLogRepository) ListByAccountID(_ context.Context, accountID string, limit int) ([]*domain.ActiveLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*domain.ActiveLog
	for i := len(r.s.logs) - 1; i >= 0 && len(out) < limit; i-- {
		if v := r.s.logs[i]; v.AccountID == accountID {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, nil
}

type rateLimitRepository struct{ s *Store }

func rateLimitKey(clientIP, route string) string {
	return route + "|" + clientIP
}

func (r rateLimitRepository) Get(_ context.Context, clientIP, route string) (*domain.RateLimitCounter, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.rateLimits[rateLimitKey(clientIP, route)]
	if !ok {
		return nil, fmt.Errorf("rate limit counter not found: %w", repository.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (r rateLimitRepository) Save(_ context.Context, counter *domain.RateLimitCounter) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *counter
	r.s.rateLimits[rateLimitKey(counter.ClientIP, counter.Route)] = &cp
	return nil
}

func (r rateLimitRepository) Increment(_ context.Context, clientIP, route string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.rateLimits[rateLimitKey(clientIP, route)]
	if !ok {
		return 0, fmt.Errorf("rate limit counter not found: %w", repository.ErrNotFound)
	}
	c.Hits++
	return c.Hits, nil
}
