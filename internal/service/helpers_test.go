package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prperemyshlev/passcode-auth/internal/repository"
	"github.com/prperemyshlev/passcode-auth/internal/repository/memory"
	"github.com/prperemyshlev/passcode-auth/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	testAccessSecret  = "access-secret-access-secret-0123456789"
	testRefreshSecret = "refresh-secret-refresh-secret-0123456789"
)

// captureMailer records delivered codes per recipient
type captureMailer struct {
	mu    sync.Mutex
	codes map[string][]string
	err   error
}

func newCaptureMailer() *captureMailer {
	return &captureMailer{codes: make(map[string][]string)}
}

func (m *captureMailer) SendVerificationCode(_ context.Context, to, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.codes[to] = append(m.codes[to], code)
	return nil
}

func (m *captureMailer) last(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	codes := m.codes[to]
	if len(codes) == 0 {
		return ""
	}
	return codes[len(codes)-1]
}

// testClock is a settable time source
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	service   AuthService
	repos     *repository.Repositories
	store     *memory.Store
	mailer    *captureMailer
	hasher    *utils.Hasher
	jwt       *utils.JWTManager
	providers []OAuthProvider
}

func newTestEnv(t *testing.T, providers ...OAuthProvider) *testEnv {
	t.Helper()

	repos, store := memory.NewRepositories()
	hasher := utils.NewHasher(bcrypt.MinCost)
	jwtManager := utils.NewJWTManager(testAccessSecret, testRefreshSecret, 15*time.Minute, 7*24*time.Hour)
	mailer := newCaptureMailer()
	logger := zap.NewNop()

	svc := NewAuthService(AuthServiceDeps{
		Accounts:      repos.Account,
		OAuthAccounts: repos.OAuthAccount,
		ActiveLogs:    repos.ActiveLog,
		PendingAuth:   NewPendingAuthService(repos.PendingAuth, hasher),
		Sessions:      NewSessionManager(repos.Session),
		Linker:        NewOAuthLinker(repos.Account, repos.OAuthAccount, logger),
		Providers:     providers,
		JWT:           jwtManager,
		Hasher:        hasher,
		Mailer:        mailer,
		Logger:        logger,
	})

	return &testEnv{
		service:   svc,
		repos:     repos,
		store:     store,
		mailer:    mailer,
		hasher:    hasher,
		jwt:       jwtManager,
		providers: providers,
	}
}
