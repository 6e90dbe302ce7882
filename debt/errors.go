/*
errors.go - Centralized error types for the debt engine

PURPOSE:
  All error kinds in one place. The accrual engine surfaces failures as
  values so batch operations can continue past individual accounts; it
  never panics and nothing escapes RunMonthlyUpdatesForFamily.

ERROR CATEGORIES:
  1. Eligibility errors - account cannot be auto-updated (client-fixable)
  2. Scheduling errors  - NotYetDue, informational rather than failure
  3. Storage errors     - persistence failures, wrapped with operation context

USAGE:
  Callers branch with errors.Is():

    if errors.Is(err, debt.ErrNotYetDue) {
        // show countdown, not an error banner
    }

SEE ALSO:
  - accrual.go: Produces these errors
  - api/handlers.go: Maps them to HTTP statuses
*/
package debt

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrAccountNotFound is returned when the account is missing or is not
	// a debt account.
	ErrAccountNotFound = errors.New("account not found")

	// ErrNotEligible is returned when automatic updates are disabled or no
	// interest rate is configured.
	ErrNotEligible = errors.New("account not eligible for automatic updates")

	// ErrMissingAnchor is returned when no loan start date is set, so no
	// billing day can be derived.
	ErrMissingAnchor = errors.New("loan anchor date not configured")

	// ErrNotYetDue is informational: the current billing period has already
	// been applied. Not a real failure.
	ErrNotYetDue = errors.New("monthly update not yet due")

	// ErrStorage is returned when the underlying store fails. Non-fatal to
	// batch runs.
	ErrStorage = errors.New("storage failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotYetDueError reports when the next accrual becomes due.
type NotYetDueError struct {
	AccountID     uuid.UUID
	DueDate       Date
	DaysRemaining int
}

func (e *NotYetDueError) Error() string {
	return fmt.Sprintf("monthly update not yet due: next due %s (%d days remaining)",
		e.DueDate, e.DaysRemaining)
}

func (e *NotYetDueError) Unwrap() error { return ErrNotYetDue }

// StorageError wraps a store failure with the operation that hit it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return ErrStorage }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsInformational reports whether the error describes normal scheduling
// state rather than a genuine failure.
func IsInformational(err error) bool {
	return errors.Is(err, ErrNotYetDue)
}

// IsClientError reports whether the error is fixable by reconfiguring the
// account rather than by retrying.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNotEligible) ||
		errors.Is(err, ErrMissingAnchor) ||
		errors.Is(err, ErrAccountNotFound)
}
