package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/passcode-auth/pkg/database"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func serveHealth(checker *HealthChecker) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", checker.Handler)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	return w
}

func TestHealthChecker_Pass(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := database.NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = rdb.Close() })

	checker := NewHealthChecker(map[string]Pinger{
		"redis":    rdb,
		"postgres": pingFunc(func(context.Context) error { return nil }),
	}, zap.NewNop())

	w := serveHealth(checker)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"pass"}`, w.Body.String())
}

func TestHealthChecker_Fail(t *testing.T) {
	checker := NewHealthChecker(map[string]Pinger{
		"redis":    pingFunc(func(context.Context) error { return nil }),
		"postgres": pingFunc(func(context.Context) error { return errors.New("connection refused") }),
	}, zap.NewNop())

	w := serveHealth(checker)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"fail","checks":{"postgres":"fail"}}`, w.Body.String())
}
