// Package errors provides centralized error definitions and error handling utilities
// for cadencehost. It defines the lifecycle error taxonomy, semantic error types,
// error constructors with context wrapping, and error classification helpers.
//
// # Error Types
//
// Domain-specific errors represent failures in a subsystem of the host:
//   - LifecycleError: failures of a lifecycle generation (service start, adapter start)
//   - ServiceError: failures of an analysis service process
//   - AdapterError: failures of the client adapter (handshake, requests)
//
// Semantic errors represent common error conditions:
//   - ValidationError: invalid input or state
//   - TimeoutError: operation timed out
//
// # Usage
//
//	err := errors.NewLifecycleError("service never became ready", errors.ErrServiceStartFailure).
//		WithGeneration(3).
//		WithState("service_starting")
//
//	if errors.Is(err, errors.ErrServiceStartFailure) { ... }
//
//	var lifecycleErr *errors.LifecycleError
//	if errors.As(err, &lifecycleErr) { ... }
//
// # Error Classification
//
//   - Retryable: transient errors that may succeed on restart
//   - UserFacing: errors safe to display to users (vs internal errors)
//   - Severity: Debug, Info, Warning, Error, Critical
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Lifecycle sentinel errors
var (
	// ErrServiceStartFailure indicates that the analysis service could not be
	// constructed or never populated its request channel.
	ErrServiceStartFailure = New("language service failed to start")
	// ErrAdapterStartFailure indicates that the client adapter handshake failed.
	ErrAdapterStartFailure = New("language client failed to start")
	// ErrStartInProgress indicates that Start was called while a generation is in flight.
	ErrStartInProgress = New("language service start already in progress")
	// ErrSuperseded indicates that a generation was replaced by a newer one
	// before it could publish its results.
	ErrSuperseded = New("generation superseded by restart")
	// ErrManagerStopped indicates that the lifecycle manager has been stopped.
	ErrManagerStopped = New("lifecycle manager stopped")
)

// Channel sentinel errors
var (
	// ErrChannelNotEstablished indicates that a callback slot has not been bound yet.
	// Callers treat it as "defer", not as a failure.
	ErrChannelNotEstablished = New("channel not yet established")
	// ErrLaneClosed indicates that a message lane has been closed.
	ErrLaneClosed = New("lane closed")
	// ErrLaneFull indicates that a message lane buffer is full.
	ErrLaneFull = New("lane buffer full")
)

// Adapter and registry sentinel errors
var (
	// ErrAdapterClosed indicates that the client adapter was stopped or the service went away.
	ErrAdapterClosed = New("language client closed")
	// ErrResolutionMiss indicates that no source is registered for an import.
	// It is informational: resolution misses resolve to empty text.
	ErrResolutionMiss = New("document not found in registry")
)

// SDK sentinel errors
var (
	// ErrNotAuthenticated indicates that a transaction was sent without an authorizer.
	ErrNotAuthenticated = New("not authenticated")
	// ErrUnsupportedTemplate indicates that the code is not an executable template.
	ErrUnsupportedTemplate = New("template is not executable")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// HostError is the base interface for all cadencehost errors.
type HostError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if a restart of the pipeline may succeed.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// format renders "prefix [k=v, ...]: message: cause".
func (e *baseError) format(prefix string, parts []string) string {
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", prefix, strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// LifecycleError represents a failure of one lifecycle generation.
//
// Example:
//
//	err := errors.NewLifecycleError("readiness polling exhausted", errors.ErrServiceStartFailure)
//	err = err.WithGeneration(2).WithState("service_starting")
//	fmt.Println(err) // "lifecycle error [generation=2, state=service_starting]: readiness polling exhausted: language service failed to start"
type LifecycleError struct {
	baseError
	Generation uint64
	State      string
}

// NewLifecycleError creates a new LifecycleError.
func NewLifecycleError(message string, cause error) *LifecycleError {
	return &LifecycleError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  true,
			userFacing: true,
		},
	}
}

// WithGeneration adds the generation number to the error context.
func (e *LifecycleError) WithGeneration(gen uint64) *LifecycleError {
	e.Generation = gen
	return e
}

// WithState adds the lifecycle state the failure happened in.
func (e *LifecycleError) WithState(state string) *LifecycleError {
	e.State = state
	return e
}

// WithSeverity sets the error severity.
func (e *LifecycleError) WithSeverity(s Severity) *LifecycleError {
	e.severity = s
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *LifecycleError) WithRetryable(r bool) *LifecycleError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *LifecycleError) Error() string {
	var parts []string
	if e.Generation > 0 {
		parts = append(parts, fmt.Sprintf("generation=%d", e.Generation))
	}
	if e.State != "" {
		parts = append(parts, fmt.Sprintf("state=%s", e.State))
	}
	return e.format("lifecycle error", parts)
}

// Is checks if this error matches the target.
func (e *LifecycleError) Is(target error) bool {
	if _, ok := target.(*LifecycleError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ServiceError represents errors raised by an analysis service process.
//
// Example:
//
//	err := errors.NewServiceError("failed to spawn", execErr).WithProcessID(id).WithCommand("flow")
type ServiceError struct {
	baseError
	ProcessID string
	Command   string
	Stderr    string // Captured stderr tail
}

// NewServiceError creates a new ServiceError.
func NewServiceError(message string, cause error) *ServiceError {
	return &ServiceError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithProcessID adds the process ID to the error context.
func (e *ServiceError) WithProcessID(id string) *ServiceError {
	e.ProcessID = id
	return e
}

// WithCommand adds the launched command to the error context.
func (e *ServiceError) WithCommand(cmd string) *ServiceError {
	e.Command = cmd
	return e
}

// WithStderr adds captured stderr output to the error context.
func (e *ServiceError) WithStderr(stderr string) *ServiceError {
	e.Stderr = stderr
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *ServiceError) WithRetryable(r bool) *ServiceError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *ServiceError) Error() string {
	var parts []string
	if e.ProcessID != "" {
		parts = append(parts, fmt.Sprintf("process=%s", e.ProcessID))
	}
	if e.Command != "" {
		parts = append(parts, fmt.Sprintf("command=%s", e.Command))
	}
	msg := e.format("service error", parts)
	if e.Stderr != "" {
		msg = fmt.Sprintf("%s\nstderr: %s", msg, e.Stderr)
	}
	return msg
}

// Is checks if this error matches the target.
func (e *ServiceError) Is(target error) bool {
	if _, ok := target.(*ServiceError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// AdapterError represents errors raised by the client adapter.
//
// Example:
//
//	err := errors.NewAdapterError("initialize rejected", errors.ErrAdapterStartFailure).WithMethod("initialize")
type AdapterError struct {
	baseError
	AdapterID string
	Method    string
	Code      int // JSON-RPC error code, 0 when not applicable
}

// NewAdapterError creates a new AdapterError.
func NewAdapterError(message string, cause error) *AdapterError {
	return &AdapterError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  true,
			userFacing: true,
		},
	}
}

// WithAdapterID adds the adapter ID to the error context.
func (e *AdapterError) WithAdapterID(id string) *AdapterError {
	e.AdapterID = id
	return e
}

// WithMethod adds the protocol method to the error context.
func (e *AdapterError) WithMethod(method string) *AdapterError {
	e.Method = method
	return e
}

// WithCode adds a JSON-RPC error code to the error context.
func (e *AdapterError) WithCode(code int) *AdapterError {
	e.Code = code
	return e
}

// Error returns the formatted error message.
func (e *AdapterError) Error() string {
	var parts []string
	if e.AdapterID != "" {
		parts = append(parts, fmt.Sprintf("adapter=%s", e.AdapterID))
	}
	if e.Method != "" {
		parts = append(parts, fmt.Sprintf("method=%s", e.Method))
	}
	if e.Code != 0 {
		parts = append(parts, fmt.Sprintf("code=%d", e.Code))
	}
	return e.format("adapter error", parts)
}

// Is checks if this error matches the target.
func (e *AdapterError) Is(target error) bool {
	if _, ok := target.(*AdapterError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("unknown network").WithField("network").WithValue("devnet")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return e.format("validation error", parts)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if target == ErrInvalidInput {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out.
//
// Example:
//
//	err := errors.NewTimeoutError("waiting for language service", 30*time.Second)
//	fmt.Println(err) // "timeout error: waiting for language service (timeout: 30s)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
	Attempts  int
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    operation,
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithAttempts records how many polling attempts were made before giving up.
func (e *TimeoutError) WithAttempts(n int) *TimeoutError {
	e.Attempts = n
	return e
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.Attempts > 0 {
		base = fmt.Sprintf("%s after %d attempts", base, e.Attempts)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if target == ErrTimeout {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed after a restart. This checks for:
//   - Errors implementing HostError with IsRetryable() returning true
//   - Errors wrapping ErrTimeout
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var hostErr HostError
	if As(err, &hostErr) {
		return hostErr.IsRetryable()
	}

	return Is(err, ErrTimeout)
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var hostErr HostError
	if As(err, &hostErr) {
		return hostErr.IsUserFacing()
	}
	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement HostError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var hostErr HostError
	if As(err, &hostErr) {
		return hostErr.Severity()
	}

	return SeverityError
}

// IsDeferred reports whether err only means "try again once the channel is bound".
func IsDeferred(err error) bool {
	return Is(err, ErrChannelNotEstablished)
}
