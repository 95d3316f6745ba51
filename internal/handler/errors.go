package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prperemyshlev/passcode-auth/internal/domain"
	"github.com/prperemyshlev/passcode-auth/internal/dto"
	"go.uber.org/zap"
)

// respondError translates err into a JSON error response.
// Errors that are not domain errors are logged and hidden behind a generic 500.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var domainErr *domain.Error
	if !errors.As(err, &domainErr) {
		logger.Error("Request failed",
			zap.String("route", c.FullPath()),
			zap.Error(err),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal server error",
			Message: "An unexpected error occurred",
		})
		return
	}

	status, title := statusFor(domainErr)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("route", c.FullPath()),
			zap.String("code", domainErr.Code),
			zap.Error(err),
		)
	}

	if domainErr.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(domainErr.RetryAfter))
	}

	c.AbortWithStatusJSON(status, dto.ErrorResponse{
		Error:      title,
		Message:    domainErr.Message,
		RetryAfter: domainErr.RetryAfter,
	})
}

func statusFor(err *domain.Error) (int, string) {
	switch err.Kind {
	case domain.KindValidation:
		return http.StatusBadRequest, "Bad request"
	case domain.KindAuthentication:
		return http.StatusUnauthorized, "Unauthorized"
	case domain.KindConflict:
		return http.StatusForbidden, "Forbidden"
	case domain.KindRateLimited:
		return http.StatusTooManyRequests, "Too Many Requests"
	case domain.KindNotFound:
		return http.StatusNotFound, "Not found"
	case domain.KindUpstream:
		if err.ProviderFault {
			return http.StatusInternalServerError, "OAuth error"
		}
		return http.StatusBadRequest, "OAuth error"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// respondBindingError reports a request that failed decoding or validation
func respondBindingError(c *gin.Context, err error) {
	response := dto.ErrorResponse{
		Error:   "Validation failed",
		Message: err.Error(),
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		details := make(map[string]string, len(validationErrs))
		for _, fe := range validationErrs {
			details[fe.Field()] = fieldMessage(fe)
		}
		response.Message = "Request validation failed"
		response.Details = details
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, response)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters long"
	case "max":
		return "must be at most " + fe.Param() + " characters long"
	case "len":
		return "must be exactly " + fe.Param() + " characters long"
	case "numeric":
		return "must contain digits only"
	case "password_policy":
		return "must be 8-16 characters with an uppercase letter, a lowercase letter, a digit and a symbol"
	default:
		return "is invalid"
	}
}
