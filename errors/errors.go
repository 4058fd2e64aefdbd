// Package errors provides error handling for spark.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - User-facing hints and details
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Add hints for operators
//	return errors.WithHint(err, "check SPARK_SLACK_BOT_TOKEN")
//
//	// Check errors
//	if errors.Is(err, errors.ErrBudgetExhausted) {
//	    // designed stop condition, not a failure
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Common sentinel errors for use across spark.
// Use these with errors.Is() for type-safe error checking.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = New("not found")

	// ErrNotConfigured indicates a required credential or setting is absent.
	// Surfaced before any network call is made.
	ErrNotConfigured = New("not configured")

	// ErrBudgetExhausted indicates the daily generation budget is spent.
	// This is a designed stop condition, not a failure.
	ErrBudgetExhausted = New("budget exhausted")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = New("operation timed out")

	// ErrNoSignal indicates an action card's wait elapsed with no operator signal
	ErrNoSignal = New("no operator signal")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsBudgetExhausted checks if an error is or wraps ErrBudgetExhausted.
func IsBudgetExhausted(err error) bool {
	return err != nil && Is(err, ErrBudgetExhausted)
}

// NewNotConfigured creates a configuration error naming the missing setting.
func NewNotConfigured(setting string) error {
	return WithHintf(Wrapf(ErrNotConfigured, "missing required setting %s", setting),
		"set %s in ~/.spark/config.toml or the environment", setting)
}
