package domain

import (
	"strings"
	"time"
)

// Account represents a registered identity, local-password based and/or OAuth linked
type Account struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash *string   `json:"-" db:"password_hash"`
	Name         string    `json:"name" db:"name"`
	AvatarURL    *string   `json:"avatar_url" db:"avatar_url"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// HasPassword reports whether the account can authenticate with a local password
func (a *Account) HasPassword() bool {
	return a.PasswordHash != nil && *a.PasswordHash != ""
}

// Session represents a live refresh-token grant
type Session struct {
	ID               string    `json:"id" db:"id"`
	AccountID        string    `json:"account_id" db:"account_id"`
	RefreshTokenHash string    `json:"-" db:"refresh_token_hash"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at" db:"refresh_expires_at"`
	ClientIP         string    `json:"client_ip" db:"client_ip"`
	UserAgent        string    `json:"user_agent" db:"user_agent"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// OAuthAccount links a provider identity to an Account
type OAuthAccount struct {
	ID         string    `json:"id" db:"id"`
	AccountID  string    `json:"account_id" db:"account_id"`
	Provider   string    `json:"provider" db:"provider"` // google, github
	ProviderID string    `json:"provider_id" db:"provider_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// NormalizeEmail lower-cases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailLocalPart returns the part of the address before '@'
func EmailLocalPart(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
