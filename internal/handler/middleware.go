package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/passcode-auth/internal/domain"
	"github.com/prperemyshlev/passcode-auth/internal/service"
	"go.uber.org/zap"
)

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying the principal
func WithPrincipal(ctx context.Context, principal domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, principal)
}

// PrincipalFrom returns the principal attached by AuthMiddleware
func PrincipalFrom(ctx context.Context) (domain.Principal, bool) {
	principal, ok := ctx.Value(principalKey{}).(domain.Principal)
	return principal, ok
}

// AuthMiddleware validates the access token and attaches the caller's principal to the request context
func AuthMiddleware(authService service.AuthService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := authService.Authenticate(c.Request.Context(), accessToken(c))
		if err != nil {
			respondError(c, logger, err)
			return
		}

		c.Request = c.Request.WithContext(WithPrincipal(c.Request.Context(), *principal))
		c.Next()
	}
}

// GuestOnly rejects callers holding a valid access or refresh token
func GuestOnly(authService service.AuthService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		refreshToken, _ := c.Cookie(RefreshTokenCookie)
		if authService.IsAuthenticated(accessToken(c), refreshToken) {
			respondError(c, logger, domain.ErrAlreadyAuthenticated)
			return
		}
		c.Next()
	}
}

// accessToken reads the access token cookie, falling back to an "Authorization: Bearer" header
func accessToken(c *gin.Context) string {
	if token, err := c.Cookie(AccessTokenCookie); err == nil && token != "" {
		return token
	}

	scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
