/*
errors.go - Centralized error types for the reconciliation core

PURPOSE:
  All error types in one place for consistency and discoverability.
  The HTTP layer maps them to status codes with IsNotFound, IsClientError
  and IsConflict; everything else is an unexpected (500) error.

ERROR CATEGORIES:
  1. Not found   - ledger, discrepancy, bank statement, SAP record, sales record
  2. Validation  - missing/malformed date ranges and request fields
  3. Conflict    - already resolved, duplicate range, concurrent modification

USAGE:
  if errors.Is(err, recon.ErrAlreadyResolved) {
      // terminal state, nothing to do
  }

SEE ALSO:
  - resolution.go: Returns most of these
  - service.go: Retries ErrConcurrentModification
  - api/handlers.go: writeDomainError maps errors to HTTP
*/
package recon

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrLedgerNotFound        = errors.New("ledger not found")
	ErrDiscrepancyNotFound   = errors.New("discrepancy not found")
	ErrBankStatementNotFound = errors.New("bank statement not found")
	ErrSAPRecordNotFound     = errors.New("sap record not found")
	ErrSalesRecordNotFound   = errors.New("sales record not found")

	// ErrInvalidDateRange is returned when a date range is missing or inverted.
	ErrInvalidDateRange = errors.New("invalid date range")

	// ErrInvalidInput is returned for malformed request fields.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyResolved is returned when resolving a discrepancy twice.
	// Resolution is terminal; there is no un-resolve.
	ErrAlreadyResolved = errors.New("discrepancy already resolved")

	// ErrBankMatchExists is returned when a manual bank match would replace
	// another manual match for the same statement.
	ErrBankMatchExists = errors.New("bank statement already manually matched")

	// ErrDuplicateRange is returned by stores when a ledger for the same
	// (start, end) already exists.
	ErrDuplicateRange = errors.New("ledger already exists for date range")

	// ErrConcurrentModification is returned when the stored revision moved
	// between read and write.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names what was looked up.
type NotFoundError struct {
	Kind string
	ID   string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

func notFound(kind, id string, sentinel error) error {
	return &NotFoundError{Kind: kind, ID: id, Err: sentinel}
}

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidDateRange)
}

// IsConflict returns true if the request conflicts with current state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyResolved) ||
		errors.Is(err, ErrBankMatchExists) ||
		errors.Is(err, ErrDuplicateRange) ||
		errors.Is(err, ErrConcurrentModification)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrLedgerNotFound) ||
		errors.Is(err, ErrDiscrepancyNotFound) ||
		errors.Is(err, ErrBankStatementNotFound) ||
		errors.Is(err, ErrSAPRecordNotFound) ||
		errors.Is(err, ErrSalesRecordNotFound)
}
