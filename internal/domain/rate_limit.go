package domain

import "time"

// RateLimitCounter is a fixed-window hit counter for one (client IP, route) pair
type RateLimitCounter struct {
	ClientIP  string    `json:"client_ip" db:"client_ip"`
	Route     string    `json:"route" db:"route"`
	Hits      int       `json:"hits" db:"hits"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}

// RateLimitPolicy configures the window for a single route
type RateLimitPolicy struct {
	MaxHits int
	Window  time.Duration
}
