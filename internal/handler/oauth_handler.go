package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prperemyshlev/passcode-auth/internal/dto"
	"github.com/prperemyshlev/passcode-auth/internal/service"
	"go.uber.org/zap"
)

// OAuthHandler handles the provider redirect and callback steps
type OAuthHandler struct {
	authService service.AuthService
	cookies     CookieConfig
	logger      *zap.Logger
}

// NewOAuthHandler creates a new OAuth handler
func NewOAuthHandler(authService service.AuthService, cookies CookieConfig, logger *zap.Logger) *OAuthHandler {
	return &OAuthHandler{
		authService: authService,
		cookies:     cookies,
		logger:      logger,
	}
}

// Redirect sends the user-agent to the provider consent page
// @Summary Start OAuth login
// @Tags oauth
// @Param provider path string true "google or github"
// @Success 302
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /auth/oauth/{provider} [get]
func (h *OAuthHandler) Redirect(c *gin.Context) {
	provider := c.Param("provider")
	state := uuid.NewString()

	redirectURL, err := h.authService.OAuthAuthorizeURL(provider, state)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.cookies.setStateCookie(c, provider, state)
	c.Redirect(http.StatusFound, redirectURL)
}

// Callback completes the provider login
// @Summary OAuth callback
// @Tags oauth
// @Param provider path string true "google or github"
// @Param code query string false "Authorization code"
// @Param state query string false "Anti-forgery state"
// @Param error query string false "Provider error"
// @Success 200 {object} dto.MessageResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /auth/oauth/{provider}/callback [get]
func (h *OAuthHandler) Callback(c *gin.Context) {
	provider := c.Param("provider")

	var query dto.OAuthCallbackQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondBindingError(c, err)
		return
	}

	storedState, _ := c.Cookie(oauthStateCookie(provider))

	result, err := h.authService.OAuthCallback(c.Request.Context(), provider, service.OAuthCallbackInput{
		Code:             query.Code,
		State:            query.State,
		StoredState:      storedState,
		Error:            query.Error,
		ErrorDescription: query.ErrorDescription,
	}, clientInfo(c))

	if storedState != "" {
		h.cookies.clearStateCookie(c, provider)
	}

	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.cookies.setAuthCookies(c, result, http.SameSiteLaxMode)

	c.JSON(http.StatusOK, dto.MessageResponse{
		Success: true,
		Message: "Authenticated successfully",
	})
}
