//go:build acceptance

package acceptance

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/passcode-auth/internal/app"
	"github.com/prperemyshlev/passcode-auth/internal/config"
	"github.com/prperemyshlev/passcode-auth/internal/repository/migrations"
	"github.com/prperemyshlev/passcode-auth/pkg/database"
	"github.com/prperemyshlev/passcode-auth/pkg/observability"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

const cleanupSQL = `TRUNCATE accounts, pending_auths, sessions, oauth_accounts, active_logs, rate_limits CASCADE`

type Suite struct {
	suite.Suite
	Config   *config.Config
	Postgres *database.Postgres
	Redis    *database.Redis
	Mailer   *captureMailer
	BaseURL  string
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

func TestSuite(t *testing.T) {
	suite.Run(t, new(Suite))
}

func (s *Suite) SetupSuite() {
	ctx := context.Background()
	s.Config = s.createTestConfig()

	if err := database.Migrate(migrations.FS, ".", s.Config.Postgres.URL()); err != nil {
		s.T().Fatalf("Failed to run migrations: %v", err)
	}

	pg, err := database.NewPostgres(ctx, s.Config.Postgres.DSN())
	if err != nil {
		s.T().Fatalf("Failed to connect to PostgreSQL: %v", err)
	}

	redis, err := database.NewRedis(ctx, s.Config.Redis.Address(), s.Config.Redis.Password, s.Config.Redis.DB)
	if err != nil {
		_ = pg.Close()
		s.T().Fatalf("Failed to connect to Redis: %v", err)
	}

	s.Postgres = pg
	s.Redis = redis
	s.Mailer = &captureMailer{codes: make(map[string]string)}

	if err := s.startApp(); err != nil {
		_ = pg.Close()
		_ = redis.Close()
		s.T().Fatalf("Failed to start app: %v", err)
	}
}

func (s *Suite) TearDownSuite() {
	if s.cancel == nil {
		return
	}

	s.cancel()
	select {
	case <-s.done:
	case <-time.After(10 * time.Second):
		s.T().Error("Application did not stop in time")
	}
}

func (s *Suite) SetupTest() {
	if _, err := s.Postgres.DB.Exec(cleanupSQL); err != nil {
		s.T().Fatalf("Failed to cleanup database: %v", err)
	}

	if err := s.Redis.Client.FlushDB(context.Background()).Err(); err != nil {
		s.T().Fatalf("Failed to flush Redis: %v", err)
	}
}

func (s *Suite) startApp() error {
	gin.SetMode(gin.TestMode)

	logger, err := observability.InitLogger(s.Config.Env, s.Config.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	meterProvider, metricsHandler, err := observability.InitTelemetry("passcode-auth-test")
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	infra := &testInfrastructure{
		postgres:       s.Postgres,
		redis:          s.Redis,
		logger:         logger,
		metricsHandler: metricsHandler,
		meterProvider:  meterProvider,
	}

	listener, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	_ = listener.Close()

	s.Config.Server.Port = fmt.Sprintf("%d", port)
	s.BaseURL = fmt.Sprintf("http://localhost:%d", port)

	application, err := app.NewApp(infra, s.Config, app.WithMailer(s.Mailer))
	if err != nil {
		return fmt.Errorf("failed to build app: %w", err)
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		if err := application.Run(s.ctx); err != nil {
			logger.Error("Application failed to run", zap.Error(err))
		}
	}()

	return s.waitReady(5 * time.Second)
}

// waitReady polls the health endpoint until the server answers
func (s *Suite) waitReady(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		select {
		case <-s.done:
			return fmt.Errorf("application exited during startup")
		default:
		}

		resp, err := http.Get(s.BaseURL + "/health")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	return fmt.Errorf("application not ready after %s", timeout)
}

func (s *Suite) createTestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:         "localhost",
			Port:         "0",
			ReadTimeout:  config.Duration{Duration: 15 * time.Second},
			WriteTimeout: config.Duration{Duration: 15 * time.Second},
		},
		Postgres: config.PostgresConfig{
			Host:     "localhost",
			Port:     "5432",
			User:     "auth_service",
			Password: "auth_service_password",
			DBName:   "auth_service_db",
			SSLMode:  "disable",
		},
		Redis: config.RedisConfig{
			Host: "localhost",
			Port: "6379",
		},
		JWT: config.JWTConfig{
			AccessSecret:       "test-access-secret-that-is-at-least-32-characters",
			RefreshSecret:      "test-refresh-secret-that-is-at-least-32-characters",
			AccessTokenExpiry:  config.Duration{Duration: 15 * time.Minute},
			RefreshTokenExpiry: config.Duration{Duration: 7 * 24 * time.Hour},
		},
		Security: config.SecurityConfig{
			BCryptCost: 4,
		},
		RateLimit: config.RateLimitConfig{
			Store: "redis",
		},
		CORS: config.CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
		},
		Env:      "test",
		LogLevel: "warn",
	}
}

// newClient returns an HTTP client that keeps cookies and does not follow redirects
func (s *Suite) newClient() *http.Client {
	jar, err := cookiejar.New(nil)
	s.Require().NoError(err)

	return &http.Client{
		Jar:     jar,
		Timeout: 10 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

type captureMailer struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *captureMailer) SendVerificationCode(_ context.Context, to, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[to] = code
	return nil
}

func (m *captureMailer) code(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[to]
}

type testInfrastructure struct {
	postgres       *database.Postgres
	redis          *database.Redis
	logger         *zap.Logger
	metricsHandler http.Handler
	meterProvider  *metric.MeterProvider
}

func (i *testInfrastructure) Postgres() *database.Postgres {
	return i.postgres
}

func (i *testInfrastructure) Redis() *database.Redis {
	return i.redis
}

func (i *testInfrastructure) Logger() *zap.Logger {
	return i.logger
}

func (i *testInfrastructure) MetricsHandler() http.Handler {
	return i.metricsHandler
}

func (i *testInfrastructure) MeterProvider() *metric.MeterProvider {
	return i.meterProvider
}

func (i *testInfrastructure) Shutdown(ctx context.Context) error {
	_ = observability.Shutdown(ctx, i.meterProvider, i.logger)
	_ = i.postgres.Close()
	_ = i.redis.Close()
	return nil
}
