package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/prperemyshlev/passcode-auth"

// PrometheusHandler returns a Gin handler for Prometheus metrics
func PrometheusHandler(handler http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if handler != nil {
			handler.ServeHTTP(c.Writer, c.Request)
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "metrics handler not initialized",
			})
		}
	}
}

// AuthMetrics holds the domain counters of the service
type AuthMetrics struct {
	events          metric.Int64Counter
	rateLimitDenies metric.Int64Counter
	oauthCallbacks  metric.Int64Counter
}

// NewAuthMetrics registers the domain counters on the given provider
func NewAuthMetrics(provider metric.MeterProvider) (*AuthMetrics, error) {
	meter := provider.Meter(meterName)

	events, err := meter.Int64Counter("auth_events",
		metric.WithDescription("Authentication lifecycle events by action and status"))
	if err != nil {
		return nil, fmt.Errorf("failed to create auth_events counter: %w", err)
	}

	denies, err := meter.Int64Counter("auth_rate_limit_rejections",
		metric.WithDescription("Requests rejected by the fixed-window rate limiter"))
	if err != nil {
		return nil, fmt.Errorf("failed to create auth_rate_limit_rejections counter: %w", err)
	}

	callbacks, err := meter.Int64Counter("auth_oauth_callbacks",
		metric.WithDescription("OAuth callback outcomes by provider"))
	if err != nil {
		return nil, fmt.Errorf("failed to create auth_oauth_callbacks counter: %w", err)
	}

	return &AuthMetrics{
		events:          events,
		rateLimitDenies: denies,
		oauthCallbacks:  callbacks,
	}, nil
}

// NewNoopAuthMetrics returns counters that record nothing
func NewNoopAuthMetrics() *AuthMetrics {
	m, _ := NewAuthMetrics(noop.NewMeterProvider())
	return m
}

// AuthEvent counts a register/login/verify/refresh/logout outcome
func (m *AuthMetrics) AuthEvent(ctx context.Context, action, status string) {
	m.events.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("status", status),
	))
}

// RateLimitRejected counts a 429 on route
func (m *AuthMetrics) RateLimitRejected(ctx context.Context, route string) {
	m.rateLimitDenies.Add(ctx, 1, metric.WithAttributes(attribute.String("route", route)))
}

// OAuthCallback counts a provider callback by outcome
func (m *AuthMetrics) OAuthCallback(ctx context.Context, provider, outcome string) {
	m.oauthCallbacks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
	))
}
