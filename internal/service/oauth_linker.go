package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/prperemyshlev/passcode-auth/internal/domain"
	"github.com/prperemyshlev/passcode-auth/internal/repository"
	"github.com/prperemyshlev/passcode-auth/internal/utils"
	"go.uber.org/zap"
)

// OAuthLinker maps provider identities to local accounts
type OAuthLinker struct {
	accounts repository.AccountRepository
	links    repository.OAuthAccountRepository
	logger   *zap.Logger
}

// NewOAuthLinker creates a new OAuth linker
func NewOAuthLinker(accounts repository.AccountRepository, links repository.OAuthAccountRepository, logger *zap.Logger) *OAuthLinker {
	return &OAuthLinker{
		accounts: accounts,
		links:    links,
		logger:   logger,
	}
}

// Resolve returns the account for a provider identity, creating and linking as needed.
// Lookup order is the (provider, provider id) link, then the normalized email.
// The bool result reports whether a new account was created.
func (l *OAuthLinker) Resolve(ctx context.Context, provider string, profile *ProviderProfile) (*domain.Account, bool, error) {
	account, err := l.accountByLink(ctx, provider, profile.ID)
	if err == nil {
		return account, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	email := domain.NormalizeEmail(profile.Email)
	isNew := false

	account, err = l.accounts.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, false, fmt.Errorf("failed to get account by email: %w", err)
		}

		account, isNew, err = l.createAccount(ctx, email, profile)
		if err != nil {
			return nil, false, err
		}
	}

	link := &domain.OAuthAccount{
		AccountID:  account.ID,
		Provider:   provider,
		ProviderID: profile.ID,
	}
	if err := l.links.Create(ctx, link); err != nil {
		if !errors.Is(err, repository.ErrDuplicateOAuthAccount) {
			return nil, false, fmt.Errorf("failed to link %s account: %w", provider, err)
		}
		// a concurrent callback linked the identity first
		winner, err := l.accountByLink(ctx, provider, profile.ID)
		if err != nil {
			return nil, false, err
		}
		return winner, isNew && winner.ID == account.ID, nil
	}

	l.logger.Info("OAuth identity linked",
		zap.String("provider", provider),
		zap.String("account_id", account.ID),
		zap.Bool("new_account", isNew),
	)

	return account, isNew, nil
}

func (l *OAuthLinker) accountByLink(ctx context.Context, provider, providerID string) (*domain.Account, error) {
	link, err := l.links.GetByProvider(ctx, provider, providerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get oauth account: %w", err)
	}

	account, err := l.accounts.GetByID(ctx, link.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get linked account: %w", err)
	}

	return account, nil
}

func (l *OAuthLinker) createAccount(ctx context.Context, email string, profile *ProviderProfile) (*domain.Account, bool, error) {
	name := profile.Name
	if name == "" {
		name = profile.Login
	}
	if name == "" {
		name = domain.EmailLocalPart(email)
	}

	account := &domain.Account{
		Email:     email,
		Name:      name,
		AvatarURL: utils.NormalizeAvatarURL(profile.AvatarURL),
	}

	if err := l.accounts.Create(ctx, account); err != nil {
		if !errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, false, fmt.Errorf("failed to create account: %w", err)
		}
		existing, err := l.accounts.GetByEmail(ctx, email)
		if err != nil {
			return nil, false, fmt.Errorf("failed to get account by email: %w", err)
		}
		return existing, false, nil
	}

	return account, true, nil
}
