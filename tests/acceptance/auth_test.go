//go:build acceptance

package acceptance

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/prperemyshlev/passcode-auth/internal/dto"
)

func (s *Suite) post(client *http.Client, path string, body any) *http.Response {
	payload, err := json.Marshal(body)
	s.Require().NoError(err)

	resp, err := client.Post(s.BaseURL+path, "application/json", bytes.NewReader(payload))
	s.Require().NoError(err)
	return resp
}

func (s *Suite) decodeError(resp *http.Response) dto.ErrorResponse {
	defer resp.Body.Close()
	var errResp dto.ErrorResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&errResp))
	return errResp
}

func (s *Suite) signIn(client *http.Client, email string) {
	resp := s.post(client, "/api/v1/auth/register", dto.RegisterRequest{Name: "Test User", Email: email, Password: "Password1!"})
	resp.Body.Close()
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	resp = s.post(client, "/api/v1/auth/verify", dto.VerifyRequest{Email: email, Code: s.Mailer.code(email)})
	resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)
}

func (s *Suite) TestRegisterVerifyMe() {
	client := s.newClient()
	s.signIn(client, "test@example.com")

	resp, err := client.Get(s.BaseURL + "/api/v1/auth/me")
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)

	var me dto.MeResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&me))
	s.Equal("test@example.com", me.Email)
	s.Equal("test", me.Name)
	s.True(me.HasPassword)
	s.Len(me.Sessions, 1)
	s.Len(me.ActiveLogs, 1)
	s.Empty(me.OAuthAccounts)
}

func (s *Suite) TestRegister_DuplicateEmail() {
	s.signIn(s.newClient(), "duplicate@example.com")

	resp := s.post(s.newClient(), "/api/v1/auth/register", dto.RegisterRequest{Name: "Test User", Email: "duplicate@example.com", Password: "Password1!"})

	s.Equal(http.StatusForbidden, resp.StatusCode)
	s.Equal("Email already registered", s.decodeError(resp).Message)
}

func (s *Suite) TestRegister_SupersededCode() {
	client := s.newClient()

	resp := s.post(client, "/api/v1/auth/register", dto.RegisterRequest{Name: "Test User", Email: "test@example.com", Password: "Password1!"})
	resp.Body.Close()
	first := s.Mailer.code("test@example.com")

	resp = s.post(client, "/api/v1/auth/register", dto.RegisterRequest{Name: "Test User", Email: "test@example.com", Password: "Password1!"})
	resp.Body.Close()
	second := s.Mailer.code("test@example.com")

	if first != second {
		resp = s.post(client, "/api/v1/auth/verify", dto.VerifyRequest{Email: "test@example.com", Code: first})
		s.Equal(http.StatusUnauthorized, resp.StatusCode)
		s.Equal("Invalid code", s.decodeError(resp).Message)
	}

	resp = s.post(client, "/api/v1/auth/verify", dto.VerifyRequest{Email: "test@example.com", Code: second})
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *Suite) TestLogin_Failures() {
	s.signIn(s.newClient(), "test@example.com")

	resp := s.post(s.newClient(), "/api/v1/auth/login", dto.LoginRequest{Email: "missing@example.com", Password: "Password1!"})
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Equal("User not found", s.decodeError(resp).Message)

	resp = s.post(s.newClient(), "/api/v1/auth/login", dto.LoginRequest{Email: "test@example.com", Password: "Wrong1234!"})
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Equal("Invalid credentials", s.decodeError(resp).Message)
}

func (s *Suite) TestRefreshAndLogout() {
	client := s.newClient()
	s.signIn(client, "test@example.com")

	resp := s.post(client, "/api/v1/auth/refresh", nil)
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	resp = s.post(client, "/api/v1/auth/logout", nil)
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	resp, err := client.Get(s.BaseURL + "/api/v1/auth/me")
	s.Require().NoError(err)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func (s *Suite) TestRateLimit_Register() {
	client := s.newClient()

	for i := 0; i < 5; i++ {
		resp := s.post(client, "/api/v1/auth/register", dto.RegisterRequest{Name: "Test User", Email: "test@example.com", Password: "Password1!"})
		resp.Body.Close()
		s.Require().Equal(http.StatusCreated, resp.StatusCode)
	}

	resp := s.post(client, "/api/v1/auth/register", dto.RegisterRequest{Name: "Test User", Email: "test@example.com", Password: "Password1!"})
	s.Equal(http.StatusTooManyRequests, resp.StatusCode)
	s.NotEmpty(resp.Header.Get("Retry-After"))

	errResp := s.decodeError(resp)
	s.Positive(errResp.RetryAfter)
	s.LessOrEqual(errResp.RetryAfter, 3600)
}
