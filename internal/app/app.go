package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prperemyshlev/passcode-auth/internal/config"
	"github.com/prperemyshlev/passcode-auth/internal/domain"
	"github.com/prperemyshlev/passcode-auth/internal/handler"
	"github.com/prperemyshlev/passcode-auth/internal/repository"
	"github.com/prperemyshlev/passcode-auth/internal/service"
	"github.com/prperemyshlev/passcode-auth/internal/utils"
	"github.com/prperemyshlev/passcode-auth/pkg/mailer"
	"github.com/prperemyshlev/passcode-auth/pkg/observability"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	infra  Infrastructure
	config *config.Config
	router *gin.Engine
	server *http.Server
}

type options struct {
	mailer mailer.Sender
}

// Option customizes NewApp
type Option func(*options)

// WithMailer replaces the configured verification code sender
func WithMailer(sender mailer.Sender) Option {
	return func(o *options) {
		o.mailer = sender
	}
}

func NewApp(infra Infrastructure, cfg *config.Config, opts ...Option) (*App, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	logger := infra.Logger()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := utils.RegisterValidators(v); err != nil {
			return nil, err
		}
	}

	metrics, err := observability.NewAuthMetrics(infra.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create auth metrics: %w", err)
	}

	sender := o.mailer
	if sender == nil {
		sender = newMailer(cfg, logger)
	}

	repos := repository.NewRepositories(infra.Postgres(), infra.Redis(), cfg.RateLimit.Store)

	jwtManager := utils.NewJWTManager(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessTokenExpiry.Duration,
		cfg.JWT.RefreshTokenExpiry.Duration,
	)
	hasher := utils.NewHasher(cfg.Security.BCryptCost)

	authService := service.NewAuthService(service.AuthServiceDeps{
		Accounts:      repos.Account,
		OAuthAccounts: repos.OAuthAccount,
		ActiveLogs:    repos.ActiveLog,
		PendingAuth:   service.NewPendingAuthService(repos.PendingAuth, hasher),
		Sessions:      service.NewSessionManager(repos.Session),
		Linker:        service.NewOAuthLinker(repos.Account, repos.OAuthAccount, logger),
		Providers:     newOAuthProviders(cfg, logger),
		JWT:           jwtManager,
		Hasher:        hasher,
		Mailer:        sender,
		Metrics:       metrics,
		Logger:        logger,
	})
	rateLimiter := service.NewRateLimiter(repos.RateLimit, service.DefaultRateLimitPolicies(), logger)

	healthChecker := NewHealthChecker(map[string]Pinger{
		"postgres": infra.Postgres(),
		"redis":    infra.Redis(),
	}, logger)

	cookies := handler.CookieConfig{
		Secure:     cfg.IsProduction(),
		AccessTTL:  cfg.JWT.AccessTokenExpiry.Duration,
		RefreshTTL: cfg.JWT.RefreshTokenExpiry.Duration,
	}
	authHandler := handler.NewAuthHandler(authService, cookies, logger)
	oauthHandler := handler.NewOAuthHandler(authService, cookies, logger)

	router := gin.New()
	// an empty list disables forwarding headers entirely
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(otelgin.Middleware(serviceName))
	router.Use(handler.LoggerMiddleware(logger))
	router.Use(handler.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders))

	setupRoutes(router, routeDeps{
		authHandler:    authHandler,
		oauthHandler:   oauthHandler,
		authService:    authService,
		rateLimiter:    rateLimiter,
		metrics:        metrics,
		healthChecker:  healthChecker,
		metricsHandler: infra.MetricsHandler(),
		logger:         logger,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	return &App{
		infra:  infra,
		config: cfg,
		router: router,
		server: srv,
	}, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

type routeDeps struct {
	authHandler    *handler.AuthHandler
	oauthHandler   *handler.OAuthHandler
	authService    service.AuthService
	rateLimiter    *service.RateLimiter
	metrics        *observability.AuthMetrics
	healthChecker  *HealthChecker
	metricsHandler http.Handler
	logger         *zap.Logger
}

func setupRoutes(router *gin.Engine, deps routeDeps) {
	router.GET("/metrics", observability.PrometheusHandler(deps.metricsHandler))
	router.GET("/health", deps.healthChecker.Handler)

	rateLimit := handler.RateLimitMiddleware(deps.rateLimiter, deps.metrics, deps.logger)
	guestOnly := handler.GuestOnly(deps.authService, deps.logger)
	authenticated := handler.AuthMiddleware(deps.authService, deps.logger)

	api := router.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", rateLimit, guestOnly, deps.authHandler.Register)
			auth.POST("/login", rateLimit, guestOnly, deps.authHandler.Login)
			auth.POST("/verify", rateLimit, guestOnly, deps.authHandler.Verify)
			auth.POST("/refresh", rateLimit, authenticated, deps.authHandler.Refresh)
			auth.POST("/logout", authenticated, deps.authHandler.Logout)
			auth.GET("/me", authenticated, deps.authHandler.Me)

			auth.GET("/oauth/:provider", guestOnly, deps.oauthHandler.Redirect)
			auth.GET("/oauth/:provider/callback", deps.oauthHandler.Callback)
		}
	}
}

func newMailer(cfg *config.Config, logger *zap.Logger) mailer.Sender {
	if cfg.SMTP.Host == "" {
		logger.Warn("SMTP_HOST is not set, verification codes will not be delivered")
		return mailer.NewLogSender(logger)
	}

	return mailer.NewSMTPSender(mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		SSL:      cfg.SMTP.Secure,
		Timeout:  cfg.SMTP.Timeout.Duration,
	}, domain.PendingAuthTTL)
}

func newOAuthProviders(cfg *config.Config, logger *zap.Logger) []service.OAuthProvider {
	var providers []service.OAuthProvider

	if google := cfg.OAuth.Google; google.Enabled() {
		providers = append(providers, service.NewGoogleProvider(service.OAuthProviderConfig{
			ClientID:     google.ClientID,
			ClientSecret: google.ClientSecret,
			RedirectURL:  google.CallbackURL,
			HTTPTimeout:  cfg.OAuth.HTTPTimeout.Duration,
		}))
	}

	if github := cfg.OAuth.GitHub; github.Enabled() {
		providers = append(providers, service.NewGitHubProvider(service.OAuthProviderConfig{
			ClientID:     github.ClientID,
			ClientSecret: github.ClientSecret,
			RedirectURL:  github.CallbackURL,
			HTTPTimeout:  cfg.OAuth.HTTPTimeout.Duration,
		}))
	}

	names := make([]string, 0, len(providers))
	for _, p := range providers {
		names = append(names, p.Name())
	}
	logger.Info("OAuth providers configured", zap.Strings("providers", names))

	return providers
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		a.infra.Logger().Info("Application starting",
			zap.String("host", a.config.Server.Host),
			zap.String("port", a.config.Server.Port),
		)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.infra.Logger().Error("Server error", zap.Error(err))
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case err := <-errChan:
		a.infra.Logger().Error("Application failed to start", zap.Error(err))
		serverErr = err
	case <-ctx.Done():
		a.infra.Logger().Info("Application stopped by context")
	}

	if err := a.Shutdown(); err != nil {
		a.infra.Logger().Error("Shutdown error", zap.Error(err))
		if serverErr != nil {
			return errors.Join(serverErr, err)
		}
		return err
	}

	return serverErr
}

func (a *App) Shutdown() error {
	a.infra.Logger().Info("Application shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.infra.Logger().Error("Shutdown failed", zap.Error(err))
		return errors.Join(err, a.infra.Shutdown(ctx))
	}

	if err := a.infra.Shutdown(ctx); err != nil {
		a.infra.Logger().Error("Shutdown failed", zap.Error(err))
		return err
	}

	a.infra.Logger().Info("Application exited successfully")
	return nil
}
