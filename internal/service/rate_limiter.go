package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/prperemyshlev/passcode-auth/internal/domain"
	"github.com/prperemyshlev/passcode-auth/internal/repository"
	"go.uber.org/zap"
)

// Throttled routes, as matched by the router
const (
	RouteRegister = "/api/v1/auth/register"
	RouteLogin    = "/api/v1/auth/login"
	RouteVerify   = "/api/v1/auth/verify"
	RouteRefresh  = "/api/v1/auth/refresh"
)

// DefaultRateLimitPolicies returns the per-route limits; unlisted routes are not throttled
func DefaultRateLimitPolicies() map[string]domain.RateLimitPolicy {
	return map[string]domain.RateLimitPolicy{
		RouteRegister: {MaxHits: 5, Window: time.Hour},
		RouteLogin:    {MaxHits: 10, Window: time.Hour},
		RouteVerify:   {MaxHits: 5, Window: time.Hour},
		RouteRefresh:  {MaxHits: 30, Window: time.Hour},
	}
}

// RateLimitDecision describes the counter state after a check
type RateLimitDecision struct {
	Limited   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimiter is a fixed-window counter per (client IP, route).
// Reading and bumping the counter are separate store calls, so concurrent
// requests near the limit may be over-admitted.
type RateLimiter struct {
	repo     repository.RateLimitRepository
	policies map[string]domain.RateLimitPolicy
	logger   *zap.Logger
	now      func() time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(repo repository.RateLimitRepository, policies map[string]domain.RateLimitPolicy, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		repo:     repo,
		policies: policies,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock replaces the time source, used by tests
func (r *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	r.now = now
	return r
}

// Check counts a hit for clientIP on route.
// A rejected hit returns the decision together with a rate-limit domain error.
// Store failures are logged and the request is allowed.
func (r *RateLimiter) Check(ctx context.Context, clientIP, route string) (*RateLimitDecision, error) {
	policy, ok := r.policies[route]
	if !ok {
		return &RateLimitDecision{}, nil
	}

	now := r.now()

	counter, err := r.repo.Get(ctx, clientIP, route)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return r.failOpen(policy, route, err), nil
		}
		return r.startWindow(ctx, clientIP, route, policy, now), nil
	}

	if counter.ExpiresAt.Before(now) {
		return r.startWindow(ctx, clientIP, route, policy, now), nil
	}

	hits, err := r.repo.Increment(ctx, clientIP, route)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// expired between read and increment
			return r.startWindow(ctx, clientIP, route, policy, now), nil
		}
		return r.failOpen(policy, route, err), nil
	}

	decision := &RateLimitDecision{
		Limit:     policy.MaxHits,
		Remaining: max(policy.MaxHits-hits, 0),
		ResetAt:   counter.ExpiresAt,
	}

	if hits > policy.MaxHits {
		decision.Limited = true
		return decision, domain.NewRateLimitError(retryAfterSeconds(counter.ExpiresAt.Sub(now)))
	}

	return decision, nil
}

func (r *RateLimiter) startWindow(ctx context.Context, clientIP, route string, policy domain.RateLimitPolicy, now time.Time) *RateLimitDecision {
	counter := &domain.RateLimitCounter{
		ClientIP:  clientIP,
		Route:     route,
		Hits:      1,
		ExpiresAt: now.Add(policy.Window),
	}

	if err := r.repo.Save(ctx, counter); err != nil {
		return r.failOpen(policy, route, err)
	}

	return &RateLimitDecision{
		Limit:     policy.MaxHits,
		Remaining: policy.MaxHits - 1,
		ResetAt:   counter.ExpiresAt,
	}
}

func (r *RateLimiter) failOpen(policy domain.RateLimitPolicy, route string, err error) *RateLimitDecision {
	r.logger.Warn("Rate limit store unavailable, allowing request",
		zap.String("route", route),
		zap.Error(err),
	)
	return &RateLimitDecision{Limit: policy.MaxHits, Remaining: policy.MaxHits}
}

func retryAfterSeconds(d time.Duration) int {
	seconds := int(math.Ceil(d.Seconds()))
	return max(seconds, 1)
}
