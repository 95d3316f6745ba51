package service

import (
	"context"

	"github.com/prperemyshlev/passcode-auth/internal/domain"
	"github.com/prperemyshlev/passcode-auth/internal/dto"
)

// AuthService defines methods for authentication operations
type AuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) error
	Login(ctx context.Context, req *dto.LoginRequest) error
	Verify(ctx context.Context, req *dto.VerifyRequest, client domain.ClientInfo) (*domain.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.AuthResult, error)
	Logout(ctx context.Context, principal domain.Principal) error
	Me(ctx context.Context, principal domain.Principal) (*dto.MeResponse, error)

	// Authenticate resolves an access token to the caller's principal
	Authenticate(ctx context.Context, accessToken string) (*domain.Principal, error)
	// IsAuthenticated reports whether either token still verifies
	IsAuthenticated(accessToken, refreshToken string) bool

	OAuthAuthorizeURL(provider, state string) (string, error)
	OAuthCallback(ctx context.Context, provider string, in OAuthCallbackInput, client domain.ClientInfo) (*domain.AuthResult, error)
}

// OAuthCallbackInput carries the provider redirect parameters and the stored state cookie
type OAuthCallbackInput struct {
	Code             string
	State            string
	StoredState      string
	Error            string
	ErrorDescription string
}
