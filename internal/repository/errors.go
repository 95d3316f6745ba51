package repository

import (
	"errors"

	"github.com/lib/pq"
)

// Common repository errors
var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateEmail is returned when trying to create an account with an existing email
	ErrDuplicateEmail = errors.New("account with this email already exists")

	// ErrDuplicateToken is returned when trying to store a refresh token hash twice
	ErrDuplicateToken = errors.New("session with this token hash already exists")

	// ErrDuplicateOAuthAccount is returned when a (provider, provider id) pair is already linked
	ErrDuplicateOAuthAccount = errors.New("oauth account already linked")

	// ErrAlreadyUsed is returned when a pending auth was consumed concurrently
	ErrAlreadyUsed = errors.New("pending auth already used")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
