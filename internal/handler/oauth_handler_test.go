package handler

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOAuthRedirect_SetsStateCookie(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/api/v1/auth/oauth/github", nil)
	require.Equal(t, http.StatusFound, w.Code)

	state := findCookie(w, "github_oauth_state")
	require.NotNil(t, state)
	assert.True(t, state.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, state.SameSite)
	assert.Equal(t, 600, state.MaxAge)

	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, state.Value, location.Query().Get("state"))
}

func TestOAuthRedirect_UnknownProvider(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/api/v1/auth/oauth/gitlab", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Nil(t, findCookie(w, "gitlab_oauth_state"))
}

func TestOAuthCallback(t *testing.T) {
	srv := newTestServer(t)
	stateCookie := &http.Cookie{Name: "github_oauth_state", Value: "state-1"}

	w := srv.do(t, http.MethodGet, "/api/v1/auth/oauth/github/callback?code=abc&state=state-1", nil, stateCookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	access := findCookie(w, AccessTokenCookie)
	require.NotNil(t, access)
	assert.Equal(t, http.SameSiteLaxMode, access.SameSite)

	cleared := findCookie(w, "github_oauth_state")
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0)

	accounts := srv.store.Accounts()
	require.Len(t, accounts, 1)
	assert.Equal(t, "octo@example.com", accounts[0].Email)
}

func TestOAuthCallback_Failures(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		cookie  *http.Cookie
		status  int
		message string
	}{
		{
			name:    "provider error",
			query:   "?error=access_denied&error_description=denied",
			status:  http.StatusBadRequest,
			message: "access_denied: denied",
		},
		{
			name:    "missing code",
			query:   "?state=s",
			cookie:  &http.Cookie{Name: "github_oauth_state", Value: "s"},
			status:  http.StatusBadRequest,
			message: "Authorization code not received",
		},
		{
			name:    "missing state cookie",
			query:   "?code=abc&state=s",
			status:  http.StatusBadRequest,
			message: "Invalid state",
		},
		{
			name:    "state mismatch",
			query:   "?code=abc&state=s",
			cookie:  &http.Cookie{Name: "github_oauth_state", Value: "other"},
			status:  http.StatusBadRequest,
			message: "Invalid state",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t)

			var cookies []*http.Cookie
			if tt.cookie != nil {
				cookies = append(cookies, tt.cookie)
			}

			w := srv.do(t, http.MethodGet, "/api/v1/auth/oauth/github/callback"+tt.query, nil, cookies...)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.message, decodeError(t, w).Message)
			assert.Nil(t, findCookie(w, AccessTokenCookie))
			assert.Empty(t, srv.store.Accounts())
		})
	}
}
