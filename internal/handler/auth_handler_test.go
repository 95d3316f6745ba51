package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/passcode-auth/internal/domain"
	"github.com/prperemyshlev/passcode-auth/internal/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegister_ValidationError(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"name":     "A",
		"email":    "not-an-email",
		"password": "weak",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "Validation failed", resp.Error)

	details, ok := resp.Details.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, details, "Name")
	assert.Contains(t, details, "Email")
	assert.Contains(t, details, "Password")
}

func TestRegisterVerifyFlow(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/api/v1/auth/register", dto.RegisterRequest{Name: "Ann", Email: "ann@example.com", Password: "Abc12345!"})
	require.Equal(t, http.StatusCreated, w.Code)

	var msg dto.MessageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))
	assert.True(t, msg.Success)
	assert.Equal(t, "Verification code sent to email", msg.Message)

	w = srv.do(t, http.MethodPost, "/api/v1/auth/verify", dto.VerifyRequest{Email: "ann@example.com", Code: srv.mailer.code("ann@example.com")})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	access := findCookie(w, AccessTokenCookie)
	require.NotNil(t, access)
	assert.True(t, access.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, access.SameSite)
	assert.Equal(t, 15*60, access.MaxAge)

	refresh := findCookie(w, RefreshTokenCookie)
	require.NotNil(t, refresh)
	assert.Equal(t, 7*24*60*60, refresh.MaxAge)

	accounts := srv.store.Accounts()
	require.Len(t, accounts, 1)
	assert.Equal(t, "ann", accounts[0].Name)
}

func TestVerify_WrongCode(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/api/v1/auth/verify", dto.VerifyRequest{Email: "ann@example.com", Code: "123456"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Code not found", decodeError(t, w).Message)
	assert.Nil(t, findCookie(w, AccessTokenCookie))
}

func TestRegister_ExistingEmail(t *testing.T) {
	srv := newTestServer(t)
	srv.signIn(t, "ann@example.com")

	w := srv.do(t, http.MethodPost, "/api/v1/auth/register", dto.RegisterRequest{Name: "Ann", Email: "ann@example.com", Password: "Abc12345!"})

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Email already registered", decodeError(t, w).Message)
}

func TestLogin_Failures(t *testing.T) {
	srv := newTestServer(t)
	srv.signIn(t, "ann@example.com")

	w := srv.do(t, http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{Email: "bob@example.com", Password: "Abc12345!"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "User not found", decodeError(t, w).Message)

	w = srv.do(t, http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{Email: "ann@example.com", Password: "Wrong123!"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid credentials", decodeError(t, w).Message)
}

func TestLogin_PasswordPolicy(t *testing.T) {
	srv := newTestServer(t)

	// OAuth-only account: no stored password to compare against
	w := srv.do(t, http.MethodGet, "/api/v1/auth/oauth/github/callback?code=c&state=s", nil,
		&http.Cookie{Name: oauthStateCookie("github"), Value: "s"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	for _, password := range []string{"x", strings.Repeat("Abc1!", 16)} {
		w = srv.do(t, http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{Email: "octo@example.com", Password: password})
		assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		assert.Equal(t, "Validation failed", decodeError(t, w).Error)
	}
	assert.Empty(t, srv.mailer.code("octo@example.com"))
}

func TestGuestOnly_RejectsAuthenticatedCaller(t *testing.T) {
	srv := newTestServer(t)
	cookies := srv.signIn(t, "ann@example.com")

	w := srv.do(t, http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{Email: "ann@example.com", Password: "Abc12345!"}, cookies...)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Already authenticated", decodeError(t, w).Message)
}

func TestMe(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/api/v1/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Unauthorized", decodeError(t, w).Message)

	cookies := srv.signIn(t, "ann@example.com")
	w = srv.do(t, http.MethodGet, "/api/v1/auth/me", nil, cookies...)
	require.Equal(t, http.StatusOK, w.Code)

	var me dto.MeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, "ann@example.com", me.Email)
	assert.True(t, me.HasPassword)
	require.Len(t, me.Sessions, 1)
	assert.True(t, me.Sessions[0].Current)
	assert.Equal(t, "192.0.2.10", me.Sessions[0].ClientIP)
	require.Len(t, me.ActiveLogs, 1)
	assert.Equal(t, domain.ActionRegister, me.ActiveLogs[0].Action)
	assert.NotContains(t, w.Body.String(), "refresh_token_hash")
}

func TestMe_BearerHeader(t *testing.T) {
	srv := newTestServer(t)
	cookies := srv.signIn(t, "ann@example.com")

	var access string
	for _, c := range cookies {
		if c.Name == AccessTokenCookie {
			access = c.Value
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRefresh_RotatesCookies(t *testing.T) {
	srv := newTestServer(t)
	cookies := srv.signIn(t, "ann@example.com")

	w := srv.do(t, http.MethodPost, "/api/v1/auth/refresh", nil, cookies...)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	refresh := findCookie(w, RefreshTokenCookie)
	require.NotNil(t, refresh)

	var old string
	for _, c := range cookies {
		if c.Name == RefreshTokenCookie {
			old = c.Value
		}
	}
	assert.NotEqual(t, old, refresh.Value)

	// the rotated-away token is dead and both cookies are cleared
	w = srv.do(t, http.MethodPost, "/api/v1/auth/refresh", nil, cookies...)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Session not found", decodeError(t, w).Message)

	cleared := findCookie(w, AccessTokenCookie)
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0)
}

func TestRefresh_InvalidToken(t *testing.T) {
	srv := newTestServer(t)
	cookies := srv.signIn(t, "ann@example.com")

	var access *http.Cookie
	for _, c := range cookies {
		if c.Name == AccessTokenCookie {
			access = c
		}
	}

	w := srv.do(t, http.MethodPost, "/api/v1/auth/refresh", nil, access, &http.Cookie{Name: RefreshTokenCookie, Value: "garbage"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid or expired refresh token", decodeError(t, w).Message)
	cleared := findCookie(w, RefreshTokenCookie)
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0)
}

func TestLogout(t *testing.T) {
	srv := newTestServer(t)
	cookies := srv.signIn(t, "ann@example.com")

	w := srv.do(t, http.MethodPost, "/api/v1/auth/logout", nil, cookies...)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, srv.store.Sessions())

	cleared := findCookie(w, AccessTokenCookie)
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0)

	w = srv.do(t, http.MethodGet, "/api/v1/auth/me", nil, cookies...)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Session not found", decodeError(t, w).Message)
}

func TestRateLimit_Register(t *testing.T) {
	srv := newTestServer(t)

	for i := 0; i < 5; i++ {
		w := srv.do(t, http.MethodPost, "/api/v1/auth/register", dto.RegisterRequest{Name: "Ann", Email: "ann@example.com", Password: "Abc12345!"})
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, strconv.Itoa(4-i), w.Header().Get("X-RateLimit-Remaining"))
	}

	w := srv.do(t, http.MethodPost, "/api/v1/auth/register", dto.RegisterRequest{Name: "Ann", Email: "ann@example.com", Password: "Abc12345!"})
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	resp := decodeError(t, w)
	assert.Greater(t, resp.RetryAfter, 0)
	assert.LessOrEqual(t, resp.RetryAfter, 3600)
	assert.Equal(t, strconv.Itoa(resp.RetryAfter), w.Header().Get("Retry-After"))

	// a different client is unaffected
	req := newJSONRequest(t, http.MethodPost, "/api/v1/auth/register", dto.RegisterRequest{Name: "Bob", Email: "bob@example.com", Password: "Abc12345!"})
	req.RemoteAddr = "198.51.100.1:40000"
	w = srv.serve(req)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRateLimit_IgnoresForwardedHeadersFromUntrustedPeer(t *testing.T) {
	srv := newTestServer(t)

	var limited int
	for i := 0; i < 20; i++ {
		req := newJSONRequest(t, http.MethodPost, "/api/v1/auth/register", dto.RegisterRequest{Name: "Ann", Email: "ann@example.com", Password: "Abc12345!"})
		req.Header.Set("X-Forwarded-For", "203.0.113."+strconv.Itoa(i+1))
		req.Header.Set("X-Real-IP", "198.51.100."+strconv.Itoa(i+1))
		if w := srv.serve(req); w.Code == http.StatusTooManyRequests {
			limited++
		}
	}

	assert.Equal(t, 15, limited)
}

func TestRespondError_HidesInternalErrors(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	respondError(c, zap.NewNop(), assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "An unexpected error occurred", resp.Message)
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  *domain.Error
		want int
	}{
		{domain.ErrAlreadyAuthenticated, http.StatusBadRequest},
		{domain.ErrInvalidCode, http.StatusUnauthorized},
		{domain.ErrEmailExists, http.StatusForbidden},
		{domain.NewRateLimitError(10), http.StatusTooManyRequests},
		{domain.ErrUnknownProvider, http.StatusNotFound},
		{domain.ErrStateMismatch, http.StatusBadRequest},
		{domain.ErrEmailUnavailable, http.StatusBadRequest},
		{domain.ErrUpstreamTokenExchangeFailed, http.StatusInternalServerError},
		{domain.ErrUpstreamProfileFetchFailed, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			status, _ := statusFor(tt.err)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		proxies []string
		headers map[string]string
		want    string
	}{
		{name: "forwarded for through trusted proxies", proxies: []string{"192.0.2.10", "10.0.0.0/8"}, headers: map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.1"}, want: "203.0.113.1"},
		{name: "real ip through trusted proxy", proxies: []string{"192.0.2.10"}, headers: map[string]string{"X-Real-IP": "203.0.113.2"}, want: "203.0.113.2"},
		{name: "forwarded for from untrusted peer", headers: map[string]string{"X-Forwarded-For": "203.0.113.1"}, want: "192.0.2.10"},
		{name: "real ip from untrusted peer", headers: map[string]string{"X-Real-IP": "203.0.113.2"}, want: "192.0.2.10"},
		{name: "remote addr", want: "192.0.2.10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, engine := gin.CreateTestContext(httptest.NewRecorder())
			require.NoError(t, engine.SetTrustedProxies(tt.proxies))
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			c.Request.RemoteAddr = "192.0.2.10:1234"
			for k, v := range tt.headers {
				c.Request.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(c))
		})
	}
}
