package domain

import "time"

const (
	ActionRegister = "register"
	ActionLogin    = "login"

	StatusSuccess = "success"
)

// ActiveLog is an append-only audit record of login/register events
type ActiveLog struct {
	ID        string    `json:"id" db:"id"`
	AccountID string    `json:"account_id" db:"account_id"`
	Action    string    `json:"action" db:"action"`
	ClientIP  string    `json:"client_ip" db:"client_ip"`
	UserAgent string    `json:"user_agent" db:"user_agent"`
	Status    string    `json:"status" db:"status"`
	Reason    *string   `json:"reason" db:"reason"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
