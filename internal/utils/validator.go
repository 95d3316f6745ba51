package utils

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const (
	passwordMinLength = 8
	passwordMaxLength = 16
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail validates an email address
func ValidateEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// ValidatePassword validates a password against the policy:
// 8-16 characters with at least one uppercase letter, one lowercase letter, one digit and one symbol
func ValidatePassword(password string) bool {
	length := len([]rune(password))
	if length < passwordMinLength || length > passwordMaxLength {
		return false
	}

	hasUpper := false
	hasLower := false
	hasNumber := false
	hasSymbol := false

	for _, char := range password {
		switch {
		case 'A' <= char && char <= 'Z':
			hasUpper = true
		case 'a' <= char && char <= 'z':
			hasLower = true
		case '0' <= char && char <= '9':
			hasNumber = true
		case !unicode.IsSpace(char):
			hasSymbol = true
		}
	}

	return hasUpper && hasLower && hasNumber && hasSymbol
}

// NormalizeAvatarURL keeps absolute http(s) URLs and drops everything else
func NormalizeAvatarURL(raw string) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil
	}

	return &raw
}

// RegisterValidators adds the custom tags used by request DTOs
func RegisterValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("password_policy", func(fl validator.FieldLevel) bool {
		return ValidatePassword(fl.Field().String())
	}); err != nil {
		return fmt.Errorf("failed to register password_policy validator: %w", err)
	}
	return nil
}
