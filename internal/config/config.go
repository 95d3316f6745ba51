package config

import (
	"context"
	"fmt"
	"net/url"
	"slices"

	"github.com/sethvargo/go-envconfig"
)

const minSecretLength = 32

type Config struct {
	Server    ServerConfig    `env:",prefix=SERVER_"`
	Postgres  PostgresConfig  `env:",prefix=POSTGRES_"`
	Redis     RedisConfig     `env:",prefix=REDIS_"`
	JWT       JWTConfig       `env:",prefix=JWT_"`
	Security  SecurityConfig  `env:",prefix="`
	RateLimit RateLimitConfig `env:",prefix=RATE_LIMIT_"`
	CORS      CORSConfig      `env:",prefix=CORS_"`
	SMTP      SMTPConfig      `env:",prefix=SMTP_"`
	OAuth     OAuthConfig     `env:",prefix=OAUTH_"`
	Env       string          `env:"ENV,default=development"`
	LogLevel  string          `env:"LOG_LEVEL,default=info"`
}

type ServerConfig struct {
	Port           string   `env:"PORT,default=8080"`
	Host           string   `env:"HOST,default=0.0.0.0"`
	ReadTimeout    Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout   Duration `env:"WRITE_TIMEOUT,default=15s"`
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

type PostgresConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=5432"`
	User     string `env:"USER,default=auth_service"`
	Password string `env:"PASSWORD,default=auth_service_password"`
	DBName   string `env:"DB,default=auth_service_db"`
	SSLMode  string `env:"SSLMODE,default=disable"`
}

type RedisConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=6379"`
	Password string `env:"PASSWORD,default="`
	DB       int    `env:"DB,default=0"`
}

type JWTConfig struct {
	AccessSecret       string   `env:"ACCESS_SECRET,required"`
	RefreshSecret      string   `env:"REFRESH_SECRET,required"`
	AccessTokenExpiry  Duration `env:"ACCESS_TOKEN_EXPIRY,default=15m"`
	RefreshTokenExpiry Duration `env:"REFRESH_TOKEN_EXPIRY,default=7d"`
}

type SecurityConfig struct {
	BCryptCost int `env:"BCRYPT_COST,default=12"`
}

type RateLimitConfig struct {
	// Store selects the counter backend: redis or postgres
	Store string `env:"STORE,default=redis"`
}

type CORSConfig struct {
	AllowedOrigins []string `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`
	AllowedMethods []string `env:"ALLOWED_METHODS,default=GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders []string `env:"ALLOWED_HEADERS,default=Content-Type,Authorization"`
}

type SMTPConfig struct {
	Host     string   `env:"HOST"`
	Port     int      `env:"PORT,default=587"`
	User     string   `env:"USER"`
	Password string   `env:"PASS"`
	From     string   `env:"FROM"`
	Secure   bool     `env:"SECURE,default=false"`
	Timeout  Duration `env:"TIMEOUT,default=10s"`
}

type OAuthConfig struct {
	Google      OAuthClientConfig `env:",prefix=GOOGLE_"`
	GitHub      OAuthClientConfig `env:",prefix=GITHUB_"`
	HTTPTimeout Duration          `env:"HTTP_TIMEOUT,default=10s"`
}

type OAuthClientConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	CallbackURL  string `env:"CALLBACK_URL"`
}

// Enabled reports whether the provider has credentials configured
func (o OAuthClientConfig) Enabled() bool {
	return o.ClientID != "" && o.ClientSecret != ""
}

// DSN returns PostgreSQL connection string
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// URL returns PostgreSQL connection URL, used by the migration runner
func (p PostgresConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     fmt.Sprintf("%s:%s", p.Host, p.Port),
		Path:     p.DBName,
		RawQuery: url.Values{"sslmode": []string{p.SSLMode}}.Encode(),
	}
	return u.String()
}

// Address returns the HTTP listen address
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%s", s.Host, s.Port)
}

// Address returns Redis connection address
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// IsProduction reports whether cookies must be marked secure
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load loads configuration from environment variables
func Load(ctx context.Context) (*Config, error) {
	var config Config

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadWithDefaults loads configuration with default context
func LoadWithDefaults() (*Config, error) {
	return Load(context.Background())
}

func (c *Config) validate() error {
	if len(c.JWT.AccessSecret) < minSecretLength {
		return fmt.Errorf("JWT_ACCESS_SECRET must be at least %d characters long", minSecretLength)
	}
	if len(c.JWT.RefreshSecret) < minSecretLength {
		return fmt.Errorf("JWT_REFRESH_SECRET must be at least %d characters long", minSecretLength)
	}
	if c.JWT.AccessSecret == c.JWT.RefreshSecret {
		return fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	if !slices.Contains([]string{"development", "production", "test"}, c.Env) {
		return fmt.Errorf("ENV must be one of development, production, test; got %q", c.Env)
	}

	if !slices.Contains([]string{"redis", "postgres"}, c.RateLimit.Store) {
		return fmt.Errorf("RATE_LIMIT_STORE must be redis or postgres; got %q", c.RateLimit.Store)
	}

	return nil
}
