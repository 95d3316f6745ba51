package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/passcode-auth/internal/domain"
	"github.com/prperemyshlev/passcode-auth/internal/dto"
	"github.com/prperemyshlev/passcode-auth/internal/service"
	"go.uber.org/zap"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService service.AuthService
	cookies     CookieConfig
	logger      *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService service.AuthService, cookies CookieConfig, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cookies:     cookies,
		logger:      logger,
	}
}

// Register handles user registration
// @Summary Register a new user
// @Description Start registration by emailing a verification code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.RegisterRequest true "Registration request"
// @Success 201 {object} dto.MessageResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	if err := h.authService.Register(c.Request.Context(), &req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, dto.MessageResponse{
		Success: true,
		Message: "Verification code sent to email",
	})
}

// Login handles user login
// @Summary Login user
// @Description Check credentials and email a verification code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Login request"
// @Success 200 {object} dto.MessageResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	if err := h.authService.Login(c.Request.Context(), &req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{
		Success: true,
		Message: "Verification code sent to email",
	})
}

// Verify handles verification code submission
// @Summary Verify code
// @Description Consume the emailed code and start a session
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.VerifyRequest true "Verify request"
// @Success 200 {object} dto.MessageResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /auth/verify [post]
func (h *AuthHandler) Verify(c *gin.Context) {
	var req dto.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	result, err := h.authService.Verify(c.Request.Context(), &req, clientInfo(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.cookies.setAuthCookies(c, result, http.SameSiteStrictMode)

	c.JSON(http.StatusOK, dto.MessageResponse{
		Success: true,
		Message: "Authenticated successfully",
	})
}

// Refresh handles token refresh
// @Summary Refresh tokens
// @Description Rotate the refresh token and issue a new access token
// @Tags auth
// @Produce json
// @Success 200 {object} dto.MessageResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken, _ := c.Cookie(RefreshTokenCookie)

	result, err := h.authService.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRefreshToken) || errors.Is(err, domain.ErrSessionNotFound) {
			h.cookies.clearAuthCookies(c)
		}
		respondError(c, h.logger, err)
		return
	}

	h.cookies.setAuthCookies(c, result, http.SameSiteStrictMode)

	c.JSON(http.StatusOK, dto.MessageResponse{
		Success: true,
		Message: "Token refreshed",
	})
}

// Logout handles user logout
// @Summary Logout user
// @Description Delete the current session and clear cookies
// @Tags auth
// @Security CookieAuth
// @Produce json
// @Success 200 {object} dto.MessageResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	principal, ok := PrincipalFrom(c.Request.Context())
	if !ok {
		respondError(c, h.logger, domain.ErrUnauthorized)
		return
	}

	if err := h.authService.Logout(c.Request.Context(), principal); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.cookies.clearAuthCookies(c)

	c.JSON(http.StatusOK, dto.MessageResponse{
		Success: true,
		Message: "Logged out successfully",
	})
}

// Me returns the current account
// @Summary Get current account
// @Description Account details with sessions, recent activity and linked providers
// @Tags auth
// @Security CookieAuth
// @Produce json
// @Success 200 {object} dto.MeResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	principal, ok := PrincipalFrom(c.Request.Context())
	if !ok {
		respondError(c, h.logger, domain.ErrUnauthorized)
		return
	}

	response, err := h.authService.Me(c.Request.Context(), principal)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, response)
}
