package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/prperemyshlev/passcode-auth/internal/domain"
	"github.com/prperemyshlev/passcode-auth/internal/dto"
	"github.com/prperemyshlev/passcode-auth/internal/repository"
	"github.com/prperemyshlev/passcode-auth/internal/utils"
	"github.com/prperemyshlev/passcode-auth/pkg/mailer"
	"github.com/prperemyshlev/passcode-auth/pkg/observability"
	"go.uber.org/zap"
)

const (
	meActiveLogLimit = 50

	eventSuccess = "success"
	eventFailure = "failure"
)

// AuthServiceDeps groups the collaborators of the auth service
type AuthServiceDeps struct {
	Accounts      repository.AccountRepository
	OAuthAccounts repository.OAuthAccountRepository
	ActiveLogs    repository.ActiveLogRepository
	PendingAuth   *PendingAuthService
	Sessions      *SessionManager
	Linker        *OAuthLinker
	Providers     []OAuthProvider
	JWT           *utils.JWTManager
	Hasher        *utils.Hasher
	Mailer        mailer.Sender
	Metrics       *observability.AuthMetrics
	Logger        *zap.Logger
}

// authService implements AuthService interface
type authService struct {
	accounts      repository.AccountRepository
	oauthAccounts repository.OAuthAccountRepository
	activeLogs    repository.ActiveLogRepository
	pendingAuth   *PendingAuthService
	sessions      *SessionManager
	linker        *OAuthLinker
	providers     map[string]OAuthProvider
	jwtManager    *utils.JWTManager
	hasher        *utils.Hasher
	mailer        mailer.Sender
	metrics       *observability.AuthMetrics
	logger        *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(deps AuthServiceDeps) AuthService {
	providers := make(map[string]OAuthProvider, len(deps.Providers))
	for _, p := range deps.Providers {
		providers[p.Name()] = p
	}

	metrics := deps.Metrics
	if metrics == nil {
		metrics = observability.NewNoopAuthMetrics()
	}

	return &authService{
		accounts:      deps.Accounts,
		oauthAccounts: deps.OAuthAccounts,
		activeLogs:    deps.ActiveLogs,
		pendingAuth:   deps.PendingAuth,
		sessions:      deps.Sessions,
		linker:        deps.Linker,
		providers:     providers,
		jwtManager:    deps.JWT,
		hasher:        deps.Hasher,
		mailer:        deps.Mailer,
		metrics:       metrics,
		logger:        deps.Logger,
	}
}

// Register starts a registration by emailing a verification code
func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (err error) {
	defer func() { s.record(ctx, domain.ActionRegister, err) }()

	email := domain.NormalizeEmail(req.Email)

	_, err = s.accounts.GetByEmail(ctx, email)
	if err == nil {
		return domain.ErrEmailExists
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to check account existence: %w", err)
	}

	return s.sendCode(ctx, email, req.Password, req.Name)
}

// Login checks the credentials and emails a verification code.
// Accounts without a local password always get a code.
func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (err error) {
	defer func() { s.record(ctx, domain.ActionLogin, err) }()

	email := domain.NormalizeEmail(req.Email)

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("failed to get account: %w", err)
	}

	if account.HasPassword() && !s.hasher.Verify(req.Password, *account.PasswordHash) {
		return domain.ErrInvalidCredentials
	}

	return s.sendCode(ctx, email, req.Password, account.Name)
}

// Verify consumes a code and opens a session, creating the account on first verification
func (s *authService) Verify(ctx context.Context, req *dto.VerifyRequest, client domain.ClientInfo) (result *domain.AuthResult, err error) {
	defer func() { s.record(ctx, "verify", err) }()

	email := domain.NormalizeEmail(req.Email)

	pending, err := s.pendingAuth.Validate(ctx, email, req.Code)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	isNew := false
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to get account: %w", err)
		}

		account, isNew, err = s.createLocalAccount(ctx, email, pending)
		if err != nil {
			return nil, err
		}
	}

	return s.openSession(ctx, account, isNew, client, nil)
}

// Refresh rotates the refresh token of the session it belongs to
func (s *authService) Refresh(ctx context.Context, refreshToken string) (result *domain.AuthResult, err error) {
	defer func() { s.record(ctx, "refresh", err) }()

	if refreshToken == "" {
		return nil, domain.ErrUnauthorized
	}

	accountID, err := s.jwtManager.Verify(refreshToken, utils.RefreshToken)
	if err != nil {
		return nil, domain.ErrInvalidRefreshToken
	}

	session, err := s.sessions.FindByRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if session.AccountID != accountID {
		return nil, domain.ErrSessionNotFound
	}

	newRefreshToken, refreshExpiresAt, err := s.jwtManager.Issue(utils.RefreshToken, accountID)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Rotate(ctx, session.ID, refreshToken, newRefreshToken, refreshExpiresAt); err != nil {
		return nil, err
	}

	accessToken, accessExpiresAt, err := s.jwtManager.Issue(utils.AccessToken, accountID)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &domain.AuthResult{
		Account:          account,
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     newRefreshToken,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}

// Logout deletes the caller's session
func (s *authService) Logout(ctx context.Context, principal domain.Principal) (err error) {
	defer func() { s.record(ctx, "logout", err) }()

	if err := s.sessions.Destroy(ctx, principal.SessionID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return err
	}
	return nil
}

// Me returns the caller's account with sessions, recent audit entries and linked providers
func (s *authService) Me(ctx context.Context, principal domain.Principal) (*dto.MeResponse, error) {
	account, err := s.accounts.GetByID(ctx, principal.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	sessions, err := s.sessions.ListByAccountID(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	logs, err := s.activeLogs.ListByAccountID(ctx, account.ID, meActiveLogLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list active logs: %w", err)
	}

	links, err := s.oauthAccounts.ListByAccountID(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list oauth accounts: %w", err)
	}

	response := &dto.MeResponse{
		ID:            account.ID,
		Email:         account.Email,
		Name:          account.Name,
		AvatarURL:     account.AvatarURL,
		HasPassword:   account.HasPassword(),
		CreatedAt:     account.CreatedAt,
		Sessions:      make([]dto.SessionInfo, 0, len(sessions)),
		ActiveLogs:    make([]dto.ActiveLogInfo, 0, len(logs)),
		OAuthAccounts: make([]dto.OAuthAccountInfo, 0, len(links)),
	}

	for _, session := range sessions {
		response.Sessions = append(response.Sessions, dto.SessionInfo{
			ID:               session.ID,
			ClientIP:         session.ClientIP,
			UserAgent:        session.UserAgent,
			RefreshExpiresAt: session.RefreshExpiresAt,
			CreatedAt:        session.CreatedAt,
			Current:          session.ID == principal.SessionID,
		})
	}

	for _, log := range logs {
		response.ActiveLogs = append(response.ActiveLogs, dto.ActiveLogInfo{
			ID:        log.ID,
			Action:    log.Action,
			ClientIP:  log.ClientIP,
			UserAgent: log.UserAgent,
			Status:    log.Status,
			Reason:    log.Reason,
			CreatedAt: log.CreatedAt,
		})
	}

	for _, link := range links {
		response.OAuthAccounts = append(response.OAuthAccounts, dto.OAuthAccountInfo{
			Provider:   link.Provider,
			ProviderID: link.ProviderID,
			CreatedAt:  link.CreatedAt,
		})
	}

	return response, nil
}

// Authenticate verifies an access token and attaches the account's latest session
func (s *authService) Authenticate(ctx context.Context, accessToken string) (*domain.Principal, error) {
	if accessToken == "" {
		return nil, domain.ErrUnauthorized
	}

	accountID, err := s.jwtManager.Verify(accessToken, utils.AccessToken)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	session, err := s.sessions.FindByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	return &domain.Principal{AccountID: accountID, SessionID: session.ID}, nil
}

func (s *authService) IsAuthenticated(accessToken, refreshToken string) bool {
	if accessToken != "" {
		if _, err := s.jwtManager.Verify(accessToken, utils.AccessToken); err == nil {
			return true
		}
	}
	if refreshToken != "" {
		if _, err := s.jwtManager.Verify(refreshToken, utils.RefreshToken); err == nil {
			return true
		}
	}
	return false
}

// OAuthAuthorizeURL returns the provider consent URL carrying state
func (s *authService) OAuthAuthorizeURL(provider, state string) (string, error) {
	p, ok := s.providers[provider]
	if !ok {
		return "", domain.ErrUnknownProvider
	}
	return p.AuthCodeURL(state), nil
}

// OAuthCallback completes a provider login and opens a session
func (s *authService) OAuthCallback(ctx context.Context, provider string, in OAuthCallbackInput, client domain.ClientInfo) (result *domain.AuthResult, err error) {
	p, ok := s.providers[provider]
	if !ok {
		return nil, domain.ErrUnknownProvider
	}

	defer func() {
		outcome := eventSuccess
		if err != nil {
			outcome = eventFailure
		}
		s.metrics.OAuthCallback(ctx, provider, outcome)
	}()

	if in.Error != "" {
		return nil, domain.ErrUpstreamAuth.WithMessage(upstreamErrorMessage(provider, in.Error, in.ErrorDescription))
	}

	if in.Code == "" {
		return nil, domain.ErrMissingAuthorizationCode
	}

	if in.StoredState == "" || in.State == "" ||
		subtle.ConstantTimeCompare([]byte(in.StoredState), []byte(in.State)) != 1 {
		return nil, domain.ErrStateMismatch
	}

	accessToken, err := p.ExchangeCode(ctx, in.Code)
	if err != nil {
		return nil, domain.ErrUpstreamTokenExchangeFailed.Wrap(err)
	}

	profile, err := p.FetchProfile(ctx, accessToken)
	if err != nil {
		return nil, domain.ErrUpstreamProfileFetchFailed.Wrap(err)
	}
	if profile.ID == "" {
		return nil, domain.ErrUpstreamProfileFetchFailed.Wrap(ErrMissingSubject)
	}

	if profile.Email == "" {
		emails, err := p.FetchEmails(ctx, accessToken)
		if err != nil {
			s.logger.Warn("Failed to fetch provider email list",
				zap.String("provider", provider),
				zap.Error(err),
			)
		}
		profile.Email = SelectPrimaryEmail(emails)
	}

	if profile.Email == "" {
		return nil, domain.ErrEmailUnavailable
	}

	account, isNew, err := s.linker.Resolve(ctx, provider, profile)
	if err != nil {
		return nil, err
	}

	reason := providerLabel(provider) + " OAuth"
	return s.openSession(ctx, account, isNew, client, &reason)
}

func (s *authService) sendCode(ctx context.Context, email, password, name string) error {
	code, err := s.pendingAuth.Issue(ctx, email, password, name)
	if err != nil {
		return err
	}

	if err := s.mailer.SendVerificationCode(ctx, email, code); err != nil {
		return fmt.Errorf("failed to deliver verification code: %w", err)
	}

	return nil
}

func (s *authService) createLocalAccount(ctx context.Context, email string, pending *domain.PendingAuth) (*domain.Account, bool, error) {
	passwordHash := pending.PasswordHash
	account := &domain.Account{
		Email:        email,
		PasswordHash: &passwordHash,
		Name:         domain.EmailLocalPart(email),
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if !errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, false, fmt.Errorf("failed to create account: %w", err)
		}
		existing, err := s.accounts.GetByEmail(ctx, email)
		if err != nil {
			return nil, false, fmt.Errorf("failed to get account: %w", err)
		}
		return existing, false, nil
	}

	return account, true, nil
}

// openSession issues a token pair, stores the session and appends the audit entry
func (s *authService) openSession(ctx context.Context, account *domain.Account, isNew bool, client domain.ClientInfo, reason *string) (*domain.AuthResult, error) {
	accessToken, accessExpiresAt, err := s.jwtManager.Issue(utils.AccessToken, account.ID)
	if err != nil {
		return nil, err
	}

	refreshToken, refreshExpiresAt, err := s.jwtManager.Issue(utils.RefreshToken, account.ID)
	if err != nil {
		return nil, err
	}

	if _, err := s.sessions.Create(ctx, account.ID, refreshToken, refreshExpiresAt, client); err != nil {
		return nil, err
	}

	action := domain.ActionLogin
	if isNew {
		action = domain.ActionRegister
	}

	if err := s.activeLogs.Create(ctx, &domain.ActiveLog{
		AccountID: account.ID,
		Action:    action,
		ClientIP:  client.IP,
		UserAgent: client.UserAgent,
		Status:    domain.StatusSuccess,
		Reason:    reason,
	}); err != nil {
		return nil, fmt.Errorf("failed to create active log: %w", err)
	}

	s.logger.Info("Session opened",
		zap.String("account_id", account.ID),
		zap.String("action", action),
	)

	return &domain.AuthResult{
		Account:          account,
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExpiresAt,
		IsNewAccount:     isNew,
	}, nil
}

func (s *authService) record(ctx context.Context, action string, err error) {
	status := eventSuccess
	if err != nil {
		status = eventFailure
	}
	s.metrics.AuthEvent(ctx, action, status)
}

func providerLabel(provider string) string {
	switch provider {
	case ProviderGoogle:
		return "Google"
	case ProviderGitHub:
		return "GitHub"
	default:
		return provider
	}
}

func upstreamErrorMessage(provider, code, description string) string {
	if description != "" {
		return code + ": " + description
	}
	return providerLabel(provider) + " OAuth error: " + code
}
