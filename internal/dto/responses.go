package dto

import "time"

// MessageResponse represents a success response
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error      string      `json:"error"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	RetryAfter int         `json:"retry_after,omitempty"`
}

// MeResponse is the account overview of the current caller
type MeResponse struct {
	ID            string             `json:"id"`
	Email         string             `json:"email"`
	Name          string             `json:"name"`
	AvatarURL     *string            `json:"avatar_url"`
	HasPassword   bool               `json:"has_password"`
	CreatedAt     time.Time          `json:"created_at"`
	Sessions      []SessionInfo      `json:"sessions"`
	ActiveLogs    []ActiveLogInfo    `json:"active_logs"`
	OAuthAccounts []OAuthAccountInfo `json:"oauth_accounts"`
}

// SessionInfo describes one session without its token material
type SessionInfo struct {
	ID               string    `json:"id"`
	ClientIP         string    `json:"client_ip"`
	UserAgent        string    `json:"user_agent"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	CreatedAt        time.Time `json:"created_at"`
	Current          bool      `json:"current"`
}

// ActiveLogInfo is one audit entry
type ActiveLogInfo struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	ClientIP  string    `json:"client_ip"`
	UserAgent string    `json:"user_agent"`
	Status    string    `json:"status"`
	Reason    *string   `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// OAuthAccountInfo is one linked provider identity
type OAuthAccountInfo struct {
	Provider   string    `json:"provider"`
	ProviderID string    `json:"provider_id"`
	CreatedAt  time.Time `json:"created_at"`
}
