package service

import (
	"context"
	"testing"

	"github.com/prperemyshlev/passcode-auth/internal/domain"
	"github.com/prperemyshlev/passcode-auth/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOAuthLinker_CreatesAccountAndLink(t *testing.T) {
	repos, store := memory.NewRepositories()
	linker := NewOAuthLinker(repos.Account, repos.OAuthAccount, zap.NewNop())

	account, isNew, err := linker.Resolve(context.Background(), ProviderGitHub, &ProviderProfile{
		ID:        "42",
		Email:     "Octo@Example.com",
		Login:     "octo",
		AvatarURL: "javascript:alert(1)",
	})
	require.NoError(t, err)

	assert.True(t, isNew)
	assert.Equal(t, "octo@example.com", account.Email)
	assert.Equal(t, "octo", account.Name)
	assert.Nil(t, account.AvatarURL)
	assert.False(t, account.HasPassword())

	links := store.OAuthAccounts()
	require.Len(t, links, 1)
	assert.Equal(t, account.ID, links[0].AccountID)
	assert.Equal(t, ProviderGitHub, links[0].Provider)
	assert.Equal(t, "42", links[0].ProviderID)
}

func TestOAuthLinker_LinkIsStable(t *testing.T) {
	repos, store := memory.NewRepositories()
	linker := NewOAuthLinker(repos.Account, repos.OAuthAccount, zap.NewNop())
	ctx := context.Background()

	first, _, err := linker.Resolve(ctx, ProviderGoogle, &ProviderProfile{ID: "g-1", Email: "ann@example.com", Name: "Ann"})
	require.NoError(t, err)

	// the provider later reports a different email for the same identity
	second, isNew, err := linker.Resolve(ctx, ProviderGoogle, &ProviderProfile{ID: "g-1", Email: "ann@other.com", Name: "Ann"})
	require.NoError(t, err)

	assert.False(t, isNew)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, store.Accounts(), 1)
	assert.Len(t, store.OAuthAccounts(), 1)
}

func TestOAuthLinker_LinksExistingAccountByEmail(t *testing.T) {
	repos, store := memory.NewRepositories()
	linker := NewOAuthLinker(repos.Account, repos.OAuthAccount, zap.NewNop())
	ctx := context.Background()

	hash := "digest"
	existing := &domain.Account{Email: "ann@example.com", Name: "Ann", PasswordHash: &hash}
	require.NoError(t, repos.Account.Create(ctx, existing))

	account, isNew, err := linker.Resolve(ctx, ProviderGitHub, &ProviderProfile{ID: "7", Email: "ANN@example.com", Login: "ann"})
	require.NoError(t, err)

	assert.False(t, isNew)
	assert.Equal(t, existing.ID, account.ID)
	assert.True(t, account.HasPassword())
	assert.Len(t, store.Accounts(), 1)

	// a second provider attaches to the same account
	account, _, err = linker.Resolve(ctx, ProviderGoogle, &ProviderProfile{ID: "g-9", Email: "ann@example.com"})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, account.ID)
	assert.Len(t, store.OAuthAccounts(), 2)
}

func TestOAuthLinker_NameFallbacks(t *testing.T) {
	tests := []struct {
		name    string
		profile ProviderProfile
		want    string
	}{
		{name: "display name", profile: ProviderProfile{ID: "1", Email: "x@example.com", Name: "Xavier", Login: "xav"}, want: "Xavier"},
		{name: "login", profile: ProviderProfile{ID: "1", Email: "x@example.com", Login: "xav"}, want: "xav"},
		{name: "email local part", profile: ProviderProfile{ID: "1", Email: "x@example.com"}, want: "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repos, _ := memory.NewRepositories()
			linker := NewOAuthLinker(repos.Account, repos.OAuthAccount, zap.NewNop())

			profile := tt.profile
			account, _, err := linker.Resolve(context.Background(), ProviderGitHub, &profile)
			require.NoError(t, err)
			assert.Equal(t, tt.want, account.Name)
		})
	}
}
