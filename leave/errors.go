/*
errors.go - Centralized error types for the leave engine

PURPOSE:
  All sentinel and structured errors in one place. Outer layers map
  these onto HTTP status codes; storage backends wrap driver errors
  into them.

ERROR CATEGORIES:
  1. Transition errors - state machine guard violations
  2. Validation failures - carried as FieldErrors, not Go errors
  3. Lookup errors - missing requests/approvals
*/
package leave

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidTransition is returned when an approve/reject/cancel
	// action finds the approval no longer in the expected prior status.
	// This includes losing a concurrent-transition race: the compare-and-
	// set guard makes exactly one caller win.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrRequestNotFound is returned when a referenced request doesn't
	// exist in the organization.
	ErrRequestNotFound = errors.New("time-off request not found")

	// ErrApprovalNotFound is returned when a referenced approval doesn't
	// exist in the organization.
	ErrApprovalNotFound = errors.New("approval not found")

	// ErrRejectionReasonRequired is returned by Reject when no reason is
	// supplied.
	ErrRejectionReasonRequired = errors.New("rejection reason is required")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// TransitionError carries the attempted transition for diagnostics.
type TransitionError struct {
	ApprovalID string
	From       Status
	To         Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition approval %s from %s to %s", e.ApprovalID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// FIELD ERRORS - Validation results, not Go errors
// =============================================================================

// FieldErrors maps field name → message. An empty map means the request
// passed validation. These surface to the caller as form errors; nothing
// is persisted while they are non-empty.
type FieldErrors map[string]string

func (fe FieldErrors) OK() bool { return len(fe) == 0 }

func (fe FieldErrors) add(field, msg string) { fe[field] = msg }
