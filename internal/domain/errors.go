package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies domain failures; the transport maps kinds to status codes
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindAuthentication
	KindConflict
	KindRateLimited
	KindUpstream
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	case KindUpstream:
		return "upstream"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error is a typed outcome produced by the core and translated at the boundary
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string

	// ProviderFault marks upstream failures caused by the provider rather than the caller
	ProviderFault bool

	// RetryAfter is set on rate-limit rejections, in seconds
	RetryAfter int

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any domain error carrying the same code
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithMessage returns a copy of e with a different user-facing message
func (e *Error) WithMessage(msg string) *Error {
	cp := *e
	cp.Message = msg
	return &cp
}

// Wrap returns a copy of e carrying the underlying cause
func (e *Error) Wrap(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

func newError(kind ErrorKind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// Pending-auth validation outcomes
var (
	ErrCodeNotFound    = newError(KindAuthentication, "code_not_found", "Code not found")
	ErrCodeAlreadyUsed = newError(KindAuthentication, "code_already_used", "Code already used")
	ErrCodeExpired     = newError(KindAuthentication, "code_expired", "Code expired")
	ErrInvalidCode     = newError(KindAuthentication, "invalid_code", "Invalid code")
)

// Credential and session failures
var (
	ErrEmailExists          = newError(KindConflict, "email_exists", "Email already registered")
	ErrUserNotFound         = newError(KindAuthentication, "user_not_found", "User not found")
	ErrInvalidCredentials   = newError(KindAuthentication, "invalid_credentials", "Invalid credentials")
	ErrUnauthorized         = newError(KindAuthentication, "unauthorized", "Unauthorized")
	ErrInvalidToken         = newError(KindAuthentication, "invalid_token", "Invalid or expired token")
	ErrInvalidRefreshToken  = newError(KindAuthentication, "invalid_refresh_token", "Invalid or expired refresh token")
	ErrSessionNotFound      = newError(KindAuthentication, "session_not_found", "Session not found")
	ErrAlreadyAuthenticated = newError(KindValidation, "already_authenticated", "Already authenticated")
)

// Rate limiting
var ErrRateLimitExceeded = newError(KindRateLimited, "rate_limit_exceeded", "Too many requests. Try again later.")

// OAuth failures
var (
	ErrUnknownProvider             = newError(KindNotFound, "unknown_provider", "Unknown OAuth provider")
	ErrUpstreamAuth                = newError(KindUpstream, "upstream_auth_error", "OAuth provider returned an error")
	ErrMissingAuthorizationCode    = newError(KindUpstream, "missing_authorization_code", "Authorization code not received")
	ErrStateMismatch               = newError(KindUpstream, "state_mismatch", "Invalid state")
	ErrUpstreamTokenExchangeFailed = &Error{Kind: KindUpstream, Code: "upstream_token_exchange_failed", Message: "Failed to authenticate with provider", ProviderFault: true}
	ErrUpstreamProfileFetchFailed  = &Error{Kind: KindUpstream, Code: "upstream_profile_fetch_failed", Message: "Failed to fetch provider profile", ProviderFault: true}
	ErrEmailUnavailable            = newError(KindUpstream, "email_unavailable", "Could not obtain email from provider")
)

// NewRateLimitError returns a rate-limit rejection carrying the retry delay in seconds
func NewRateLimitError(retryAfter int) *Error {
	cp := *ErrRateLimitExceeded
	cp.RetryAfter = retryAfter
	return &cp
}

// NewValidationError reports malformed input
func NewValidationError(msg string) *Error {
	return newError(KindValidation, "validation_failed", msg)
}
