package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const healthCheckTimeout = 2 * time.Second

// Pinger is a dependency probed by the health check
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthChecker struct {
	deps   map[string]Pinger
	logger *zap.Logger
}

func NewHealthChecker(deps map[string]Pinger, logger *zap.Logger) *HealthChecker {
	return &HealthChecker{
		deps:   deps,
		logger: logger,
	}
}

func (h *HealthChecker) check(ctx context.Context) map[string]error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	type result struct {
		name string
		err  error
	}

	results := make(chan result, len(h.deps))
	for name, dep := range h.deps {
		go func() {
			results <- result{name: name, err: dep.Ping(ctx)}
		}()
	}

	failed := make(map[string]error)
	for range h.deps {
		if r := <-results; r.err != nil {
			failed[r.name] = r.err
		}
	}
	return failed
}

func (h *HealthChecker) Handler(c *gin.Context) {
	failed := h.check(c.Request.Context())
	if len(failed) > 0 {
		checks := make(gin.H, len(failed))
		errs := make([]error, 0, len(failed))
		for name, err := range failed {
			checks[name] = "fail"
			errs = append(errs, err)
		}
		h.logger.Warn("Health check failed", zap.Error(errors.Join(errs...)))

		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "fail",
			"checks": checks,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "pass",
	})
}
