/*
errors.go - Centralized error types for the payroll engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The shift, ledger and api packages wrap or match these errors; the api
  layer translates them into HTTP statuses.

ERROR CATEGORIES:
  1. Configuration - no scheme assigned (non-fatal, salary degrades to 0)
  2. Ledger - shift income already posted, storage uniqueness violations
  3. Validation - missing employee, check-in, malformed input
  4. Lifecycle - illegal state transitions, locked shifts

USAGE:
  if errors.Is(err, compensation.ErrAlreadyImported) {
      // user-visible 409, never retried automatically
  }
*/
package compensation

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrConfiguration is returned when no usable formula exists for a shift.
	// Callers treat it as "zero scheme assigned".
	ErrConfiguration = errors.New("no compensation scheme configured")

	// ErrAlreadyImported is returned when a shift's income already has ledger rows.
	ErrAlreadyImported = errors.New("shift already imported to ledger")

	// ErrStorageConflict is returned when a storage uniqueness constraint fires.
	ErrStorageConflict = errors.New("storage uniqueness conflict")

	// ErrValidation is returned for malformed or incomplete input.
	ErrValidation = errors.New("validation failed")

	// ErrShiftNotFound is returned when a referenced shift doesn't exist.
	ErrShiftNotFound = errors.New("shift not found")

	// ErrSchemeNotFound is returned when a referenced scheme or version doesn't exist.
	ErrSchemeNotFound = errors.New("scheme not found")

	// ErrEmployeeNotFound is returned when a referenced employee doesn't exist.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrInvalidTransition is returned for a lifecycle move the state machine forbids.
	ErrInvalidTransition = errors.New("invalid shift status transition")

	// ErrShiftLocked is returned when editing a verified or paid shift.
	ErrShiftLocked = errors.New("shift is verified and cannot be edited")

	// ErrLedgerLocked is returned when deleting a shift that ledger rows reference.
	ErrLedgerLocked = errors.New("shift has posted ledger transactions")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConfigurationError reports why a formula could not be used.
type ConfigurationError struct {
	SchemeID string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	if e.SchemeID == "" {
		return fmt.Sprintf("%s: %s", ErrConfiguration, e.Reason)
	}
	return fmt.Sprintf("%s: scheme %s: %s", ErrConfiguration, e.SchemeID, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// AlreadyImportedError names the shift and how many rows already exist.
type AlreadyImportedError struct {
	ShiftID  string
	Existing int
}

func (e *AlreadyImportedError) Error() string {
	return fmt.Sprintf("shift %s already imported to ledger (%d transactions)", e.ShiftID, e.Existing)
}

func (e *AlreadyImportedError) Unwrap() error { return ErrAlreadyImported }

// StorageConflictError is the authoritative form of AlreadyImportedError,
// raised by the storage-level unique index on (shift, payment method).
type StorageConflictError struct {
	ShiftID       string
	PaymentMethod string
	Err           error
}

func (e *StorageConflictError) Error() string {
	return fmt.Sprintf("ledger conflict for shift %s channel %s: %v", e.ShiftID, e.PaymentMethod, e.Err)
}

// Unwrap exposes both the storage and the already-imported sentinel.
func (e *StorageConflictError) Unwrap() []error {
	return []error{ErrStorageConflict, ErrAlreadyImported}
}

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// TransitionError reports a forbidden lifecycle move.
type TransitionError struct {
	ShiftID string
	From    ShiftStatus
	To      ShiftStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("shift %s: cannot move from %s to %s", e.ShiftID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConflict returns true if the error reflects state the caller must not retry into.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyImported) ||
		errors.Is(err, ErrStorageConflict) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrShiftLocked) ||
		errors.Is(err, ErrLedgerLocked)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrShiftNotFound) ||
		errors.Is(err, ErrSchemeNotFound) ||
		errors.Is(err, ErrEmployeeNotFound)
}
