package domain

import "time"

// PendingAuthTTL is how long a verification code stays valid
const PendingAuthTTL = 15 * time.Minute

// PendingAuth is an outstanding email-verification challenge
type PendingAuth struct {
	ID           string     `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	Name         string     `json:"name" db:"name"`
	CodeHash     string     `json:"-" db:"code_hash"`
	PasswordHash string     `json:"-" db:"password_hash"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt    time.Time  `json:"expires_at" db:"expires_at"`
	UsedAt       *time.Time `json:"used_at" db:"used_at"`
}

// IsUsed reports whether the challenge was already consumed
func (p *PendingAuth) IsUsed() bool {
	return p.UsedAt != nil
}

// IsExpired reports whether now is past the expiry instant
func (p *PendingAuth) IsExpired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}
