/*
errors.go - Centralized error types for the allocation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The engine, DAL and schema resolver wrap these with context.

ERROR CATEGORIES:
  1. Configuration errors - fatal before any allocation happens
     (no hub, no freight rules, invalid parameters, required schema missing)
  2. Write errors - a transfer header or line could not be persisted
  3. Recoverable-as-empty - zero candidates/destinations/lines are NOT errors;
     the engine returns an empty result and records the reason in the ledger

USAGE:
  if allocation.IsConfigurationError(err) {
      // bad parameters or schema, fix config and rerun
  }

SEE ALSO:
  - engine/errors.go: PartialFailureError for mid-run write failures
  - schema/errors.go: SchemaError for strict column resolution
*/
package allocation

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNoHub is returned when priming cannot resolve a source warehouse.
	ErrNoHub = errors.New("no hub outlet resolvable")

	// ErrNoFreightRules is returned when the freight rule table is empty.
	ErrNoFreightRules = errors.New("no freight rules configured")

	// ErrInvalidParams is returned when run parameters fail validation.
	ErrInvalidParams = errors.New("invalid run parameters")

	// ErrSchema is returned when a required table or column is missing.
	ErrSchema = errors.New("schema mismatch")

	// ErrNotPrimed is returned when Run is called before Prime.
	ErrNotPrimed = errors.New("engine not primed")

	// ErrTransferWrite is returned when a transfer header or line cannot be written.
	ErrTransferWrite = errors.New("transfer write failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConfigurationError is fatal: the run cannot start.
type ConfigurationError struct {
	Reason   string
	Problems []string
	Err      error
}

func (e *ConfigurationError) Error() string {
	msg := "configuration error: " + e.Reason
	if len(e.Problems) > 0 {
		msg += " (" + strings.Join(e.Problems, "; ") + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError wraps a sentinel with a reason.
func NewConfigurationError(sentinel error, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...), Err: sentinel}
}

// WriteError describes a failed insert into a transfer table.
type WriteError struct {
	Table string
	Op    string
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
}

func (e *WriteError) Unwrap() []error {
	return []error{ErrTransferWrite, e.Err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsConfigurationError returns true if the run could not start.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidParams)
}

// IsRetryable always returns false: a failed run is surfaced whole and the
// caller decides whether to rerun.
func IsRetryable(error) bool {
	return false
}
