package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind selects the token family and its signing secret
type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

var (
	// ErrTokenInvalid is returned for bad signatures and malformed tokens
	ErrTokenInvalid = errors.New("token is invalid")

	// ErrTokenExpired is returned when the token is past its expiry
	ErrTokenExpired = errors.New("token is expired")
)

// JWTManager signs and verifies access and refresh tokens.
// Each family has its own secret so that one leaked secret cannot forge the other kind.
type JWTManager struct {
	accessSecret       []byte
	refreshSecret      []byte
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	now                func() time.Time
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(accessSecret, refreshSecret string, accessTokenExpiry, refreshTokenExpiry time.Duration) *JWTManager {
	return &JWTManager{
		accessSecret:       []byte(accessSecret),
		refreshSecret:      []byte(refreshSecret),
		accessTokenExpiry:  accessTokenExpiry,
		refreshTokenExpiry: refreshTokenExpiry,
		now:                time.Now,
	}
}

// WithClock replaces the time source, used by tests
func (j *JWTManager) WithClock(now func() time.Time) *JWTManager {
	j.now = now
	return j
}

// Issue signs a token of the given kind for subject and returns it with its expiry
func (j *JWTManager) Issue(kind TokenKind, subject string) (string, time.Time, error) {
	secret, ttl, err := j.params(kind)
	if err != nil {
		return "", time.Time{}, err
	}

	expiresAt := j.now().Add(ttl)
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	// refresh tokens are stored under a unique index, two minted in the same second must differ
	if kind == RefreshToken {
		claims.ID = uuid.NewString()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign %s token: %w", kind, err)
	}

	return tokenString, expiresAt, nil
}

// Verify validates a token of the given kind and returns its subject
func (j *JWTManager) Verify(tokenString string, kind TokenKind) (string, error) {
	secret, _, err := j.params(kind)
	if err != nil {
		return "", err
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			return secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if !token.Valid || claims.Subject == "" {
		return "", ErrTokenInvalid
	}

	return claims.Subject, nil
}

// AccessTokenExpiry returns the access token lifetime
func (j *JWTManager) AccessTokenExpiry() time.Duration {
	return j.accessTokenExpiry
}

// RefreshTokenExpiry returns the refresh token lifetime
func (j *JWTManager) RefreshTokenExpiry() time.Duration {
	return j.refreshTokenExpiry
}

func (j *JWTManager) params(kind TokenKind) ([]byte, time.Duration, error) {
	switch kind {
	case AccessToken:
		return j.accessSecret, j.accessTokenExpiry, nil
	case RefreshToken:
		return j.refreshSecret, j.refreshTokenExpiry, nil
	default:
		return nil, 0, fmt.Errorf("unknown token kind %q", kind)
	}
}
