package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

const (
	ProviderGoogle = "google"
	ProviderGitHub = "github"

	googleProfileURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	githubProfileURL = "https://api.github.com/user"
	githubEmailsURL  = "https://api.github.com/user/emails"

	githubAPIVersion = "2022-11-28"

	maxProviderResponseSize = 1 << 20
)

// ErrMissingSubject is returned when a provider profile carries no account id
var ErrMissingSubject = errors.New("provider profile has no subject id")

// ProviderProfile is the identity reported by a provider
type ProviderProfile struct {
	ID        string
	Email     string
	Name      string
	Login     string
	AvatarURL string
}

// ProviderEmail is one entry of a provider's email list
type ProviderEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// OAuthProvider is the per-provider capability used by the callback flow
type OAuthProvider interface {
	Name() string
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (string, error)
	FetchProfile(ctx context.Context, accessToken string) (*ProviderProfile, error)
	FetchEmails(ctx context.Context, accessToken string) ([]ProviderEmail, error)
}

// OAuthProviderConfig configures a provider client.
// Endpoint and the API URLs default to the provider's public ones when empty.
type OAuthProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Endpoint     oauth2.Endpoint
	ProfileURL   string
	EmailsURL    string
	HTTPTimeout  time.Duration
}

// ProviderStatusError is returned when a provider API answers with a non-2xx status
type ProviderStatusError struct {
	URL        string
	StatusCode int
}

func (e *ProviderStatusError) Error() string {
	return fmt.Sprintf("provider request to %s failed with status %d", e.URL, e.StatusCode)
}

type baseProvider struct {
	oauth  *oauth2.Config
	client *http.Client
}

func newBaseProvider(cfg OAuthProviderConfig, endpoint oauth2.Endpoint, scopes []string) baseProvider {
	if cfg.Endpoint.AuthURL != "" || cfg.Endpoint.TokenURL != "" {
		endpoint = cfg.Endpoint
	}

	return baseProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       scopes,
		},
		client: &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

// ExchangeCode trades the authorization code for a provider access token
func (p baseProvider) ExchangeCode(ctx context.Context, code string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	return token.AccessToken, nil
}

func (p baseProvider) getJSON(ctx context.Context, url, accessToken string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxProviderResponseSize))
		return &ProviderStatusError{URL: url, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProviderResponseSize)).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", url, err)
	}

	return nil
}

type googleProvider struct {
	baseProvider
	profileURL string
}

// NewGoogleProvider creates a Google OAuth provider
func NewGoogleProvider(cfg OAuthProviderConfig) OAuthProvider {
	profileURL := cfg.ProfileURL
	if profileURL == "" {
		profileURL = googleProfileURL
	}

	return &googleProvider{
		baseProvider: newBaseProvider(cfg, google.Endpoint, []string{"openid", "email", "profile"}),
		profileURL:   profileURL,
	}
}

func (p *googleProvider) Name() string {
	return ProviderGoogle
}

func (p *googleProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
}

func (p *googleProvider) FetchProfile(ctx context.Context, accessToken string) (*ProviderProfile, error) {
	var body struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}

	if err := p.getJSON(ctx, p.profileURL, accessToken, nil, &body); err != nil {
		return nil, err
	}
	if body.ID == "" {
		return nil, ErrMissingSubject
	}

	return &ProviderProfile{
		ID:        body.ID,
		Email:     body.Email,
		Name:      body.Name,
		AvatarURL: body.Picture,
	}, nil
}

// FetchEmails is not needed for Google, the profile always carries the email
func (p *googleProvider) FetchEmails(context.Context, string) ([]ProviderEmail, error) {
	return nil, nil
}

type githubProvider struct {
	baseProvider
	profileURL string
	emailsURL  string
}

// NewGitHubProvider creates a GitHub OAuth provider
func NewGitHubProvider(cfg OAuthProviderConfig) OAuthProvider {
	profileURL := cfg.ProfileURL
	if profileURL == "" {
		profileURL = githubProfileURL
	}
	emailsURL := cfg.EmailsURL
	if emailsURL == "" {
		emailsURL = githubEmailsURL
	}

	return &githubProvider{
		baseProvider: newBaseProvider(cfg, github.Endpoint, []string{"read:user", "user:email"}),
		profileURL:   profileURL,
		emailsURL:    emailsURL,
	}
}

func (p *githubProvider) Name() string {
	return ProviderGitHub
}

func (p *githubProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

func (p *githubProvider) apiHeaders() map[string]string {
	return map[string]string{"X-GitHub-Api-Version": githubAPIVersion}
}

func (p *githubProvider) FetchProfile(ctx context.Context, accessToken string) (*ProviderProfile, error) {
	var body struct {
		ID        int64   `json:"id"`
		Login     string  `json:"login"`
		Name      *string `json:"name"`
		Email     *string `json:"email"`
		AvatarURL *string `json:"avatar_url"`
	}

	if err := p.getJSON(ctx, p.profileURL, accessToken, p.apiHeaders(), &body); err != nil {
		return nil, err
	}
	if body.ID <= 0 {
		return nil, ErrMissingSubject
	}

	profile := &ProviderProfile{
		ID:    strconv.FormatInt(body.ID, 10),
		Login: body.Login,
	}
	if body.Name != nil {
		profile.Name = *body.Name
	}
	if body.Email != nil {
		profile.Email = *body.Email
	}
	if body.AvatarURL != nil {
		profile.AvatarURL = *body.AvatarURL
	}

	return profile, nil
}

func (p *githubProvider) FetchEmails(ctx context.Context, accessToken string) ([]ProviderEmail, error) {
	var emails []ProviderEmail
	if err := p.getJSON(ctx, p.emailsURL, accessToken, p.apiHeaders(), &emails); err != nil {
		return nil, err
	}
	return emails, nil
}

// SelectPrimaryEmail picks the primary verified address, falling back to any primary one
func SelectPrimaryEmail(emails []ProviderEmail) string {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	for _, e := range emails {
		if e.Primary {
			return e.Email
		}
	}
	return ""
}
