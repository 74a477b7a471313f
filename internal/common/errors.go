// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Storage errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Pattern errors.
	ErrDuplicatePattern    = errors.New("duplicate pattern")
	ErrInvalidPatternScope = errors.New("invalid pattern scope")
	ErrInvalidPattern      = errors.New("invalid pattern")

	// Classification errors.
	ErrLedgerUnavailable  = errors.New("ledger unavailable")
	ErrMalformedReviewRow = errors.New("malformed review row")
	ErrCardMismatch       = errors.New("transaction card does not match batch card")
	ErrNoTransactions     = errors.New("no transactions to classify")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsMalformedRow reports whether err marks a review row that should be skipped.
func IsMalformedRow(err error) bool {
	return errors.Is(err, ErrMalformedReviewRow)
}
