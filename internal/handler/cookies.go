package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/passcode-auth/internal/domain"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"

	oauthStateTTL = 10 * time.Minute
)

// CookieConfig controls the attributes of the auth cookies
type CookieConfig struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func oauthStateCookie(provider string) string {
	return provider + "_oauth_state"
}

func (cfg CookieConfig) setAuthCookies(c *gin.Context, result *domain.AuthResult, sameSite http.SameSite) {
	c.SetSameSite(sameSite)
	c.SetCookie(AccessTokenCookie, result.AccessToken, int(cfg.AccessTTL.Seconds()), "/", "", cfg.Secure, true)
	c.SetCookie(RefreshTokenCookie, result.RefreshToken, int(cfg.RefreshTTL.Seconds()), "/", "", cfg.Secure, true)
}

func (cfg CookieConfig) clearAuthCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(AccessTokenCookie, "", -1, "/", "", cfg.Secure, true)
	c.SetCookie(RefreshTokenCookie, "", -1, "/", "", cfg.Secure, true)
}

func (cfg CookieConfig) setStateCookie(c *gin.Context, provider, state string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie(provider), state, int(oauthStateTTL.Seconds()), "/", "", cfg.Secure, true)
}

func (cfg CookieConfig) clearStateCookie(c *gin.Context, provider string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie(provider), "", -1, "/", "", cfg.Secure, true)
}
