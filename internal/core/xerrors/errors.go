// Package xerrors provides centralized error definitions for the pipeline.
//
// Naming conventions:
//   - Exported errors (Err*): use for errors that callers check with errors.Is
//   - All sentinel errors are defined as variables, not inline errors.New calls
//   - Use fmt.Errorf with %w to wrap sentinel errors with context
package xerrors

import "errors"

// Failure taxonomy. Every pipeline error wraps exactly one of these so the
// orchestrator can decide between retry, degraded fallback and fatal abort.
var (
	// ErrTransient indicates a retryable service failure (timeout, rate
	// limit, 5xx). Retried with backoff, bounded attempts.
	ErrTransient = errors.New("transient service error")

	// ErrOutputValidation indicates malformed or incomplete structured
	// output from the reasoning service. Retried once with reinforced
	// instructions, then degraded fallback.
	ErrOutputValidation = errors.New("output validation failed")

	// ErrStoreUnavailable indicates the knowledge store cannot be reached.
	// Degrades the dependent stage; fatal only when a write must persist.
	ErrStoreUnavailable = errors.New("knowledge store unavailable")

	// ErrResourceExhausted indicates a fatal local condition such as a full
	// disk. Aborts the run.
	ErrResourceExhausted = errors.New("resource exhausted")
)

// Reasoning service errors.
var (
	// ErrNoProvidersAvailable indicates no reasoning provider is registered
	// or reachable.
	ErrNoProvidersAvailable = errors.New("no reasoning providers available")

	// ErrAllProvidersFailed indicates every registered provider failed.
	ErrAllProvidersFailed = errors.New("all reasoning providers failed")

	// ErrCircuitBreakerOpen indicates the circuit breaker has tripped.
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

	// ErrEmptyResponse indicates the service returned no content.
	ErrEmptyResponse = errors.New("empty response")
)

// Store errors.
var (
	// ErrNotFound is returned for lookups with no matching record.
	ErrNotFound = errors.New("not found")

	// ErrInvalidNamespace indicates an unknown record namespace.
	ErrInvalidNamespace = errors.New("invalid namespace")
)

// Validation errors.
var (
	// ErrInvalidInput indicates invalid input was provided.
	ErrInvalidInput = errors.New("invalid input")

	// ErrBatchSizeMismatch indicates the ranker returned a different number
	// of classifications than items sent.
	ErrBatchSizeMismatch = errors.New("batch size mismatch")
)

// Is is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
