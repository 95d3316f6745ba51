package domain

import "time"

// Principal identifies the caller of an authenticated request
type Principal struct {
	AccountID string
	SessionID string
}

// ClientInfo carries request metadata recorded on sessions and audit logs
type ClientInfo struct {
	IP        string
	UserAgent string
}

// AuthResult is the outcome of a successful verification, refresh or OAuth login
type AuthResult struct {
	Account          *Account
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	IsNewAccount     bool
}
