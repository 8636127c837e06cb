package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// LifecycleError Tests
// -----------------------------------------------------------------------------

func TestNewLifecycleError(t *testing.T) {
	err := NewLifecycleError("readiness polling exhausted", ErrServiceStartFailure)

	if err.Severity() != SeverityError {
		t.Errorf("Severity() = %v, want %v", err.Severity(), SeverityError)
	}
	if !err.IsRetryable() {
		t.Error("IsRetryable() = false, want true")
	}
	if !err.IsUserFacing() {
		t.Error("IsUserFacing() = false, want true")
	}
	if !Is(err, ErrServiceStartFailure) {
		t.Error("Is(ErrServiceStartFailure) = false, want true")
	}
	if Is(err, ErrAdapterStartFailure) {
		t.Error("Is(ErrAdapterStartFailure) = true, want false")
	}
}

func TestLifecycleError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *LifecycleError
		want string
	}{
		{
			name: "basic error",
			err:  NewLifecycleError("boom", nil),
			want: "lifecycle error: boom",
		},
		{
			name: "with cause",
			err:  NewLifecycleError("boom", ErrAdapterStartFailure),
			want: "lifecycle error: boom: language client failed to start",
		},
		{
			name: "with generation and state",
			err:  NewLifecycleError("boom", nil).WithGeneration(2).WithState("service_starting"),
			want: "lifecycle error [generation=2, state=service_starting]: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLifecycleError_As(t *testing.T) {
	wrapped := fmt.Errorf("start: %w", NewLifecycleError("boom", ErrServiceStartFailure).WithGeneration(7))

	var lerr *LifecycleError
	if !As(wrapped, &lerr) {
		t.Fatal("As(LifecycleError) = false, want true")
	}
	if lerr.Generation != 7 {
		t.Errorf("Generation = %d, want 7", lerr.Generation)
	}
	if !Is(wrapped, &LifecycleError{}) {
		t.Error("Is(&LifecycleError{}) = false, want true")
	}
}

func TestLifecycleError_WithBuilders(t *testing.T) {
	err := NewLifecycleError("test", nil).
		WithSeverity(SeverityCritical).
		WithRetryable(false)

	if err.Severity() != SeverityCritical {
		t.Errorf("Severity() = %v, want %v", err.Severity(), SeverityCritical)
	}
	if err.IsRetryable() {
		t.Error("IsRetryable() = true, want false")
	}
}

// -----------------------------------------------------------------------------
// ServiceError Tests
// -----------------------------------------------------------------------------

func TestServiceError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ServiceError
		want string
	}{
		{
			name: "basic error",
			err:  NewServiceError("spawn failed", nil),
			want: "service error: spawn failed",
		},
		{
			name: "with process and command",
			err:  NewServiceError("spawn failed", nil).WithProcessID("p1").WithCommand("flow"),
			want: "service error [process=p1, command=flow]: spawn failed",
		},
		{
			name: "with stderr",
			err:  NewServiceError("exited", nil).WithStderr("no such file"),
			want: "service error: exited\nstderr: no such file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestServiceError_Is(t *testing.T) {
	err := NewServiceError("spawn failed", ErrServiceStartFailure)

	if !Is(err, &ServiceError{}) {
		t.Error("Is(&ServiceError{}) = false, want true")
	}
	if !Is(err, ErrServiceStartFailure) {
		t.Error("Is(ErrServiceStartFailure) = false, want true")
	}
	if Is(err, &AdapterError{}) {
		t.Error("Is(&AdapterError{}) = true, want false")
	}
	if err.IsRetryable() {
		t.Error("IsRetryable() = true, want false")
	}
}

// -----------------------------------------------------------------------------
// AdapterError Tests
// -----------------------------------------------------------------------------

func TestAdapterError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AdapterError
		want string
	}{
		{
			name: "basic error",
			err:  NewAdapterError("rejected", nil),
			want: "adapter error: rejected",
		},
		{
			name: "full context",
			err: NewAdapterError("rejected", ErrAdapterStartFailure).
				WithAdapterID("a1").WithMethod("initialize").WithCode(-32603),
			want: "adapter error [adapter=a1, method=initialize, code=-32603]: rejected: language client failed to start",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAdapterError_Is(t *testing.T) {
	err := NewAdapterError("closed", ErrAdapterClosed)

	if !Is(err, &AdapterError{}) {
		t.Error("Is(&AdapterError{}) = false, want true")
	}
	if !Is(err, ErrAdapterClosed) {
		t.Error("Is(ErrAdapterClosed) = false, want true")
	}
}

// -----------------------------------------------------------------------------
// Semantic Error Tests
// -----------------------------------------------------------------------------

func TestValidationError(t *testing.T) {
	err := NewValidationError("unknown network").WithField("network").WithValue("devnet")

	want := "validation error [field=network, value=devnet]: unknown network"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !Is(err, ErrInvalidInput) {
		t.Error("Is(ErrInvalidInput) = false, want true")
	}
	if GetSeverity(err) != SeverityWarning {
		t.Errorf("GetSeverity() = %v, want %v", GetSeverity(err), SeverityWarning)
	}

	withCause := NewValidationError("bad").WithCause(ErrCanceled)
	if !Is(withCause, ErrCanceled) {
		t.Error("Is(ErrCanceled) = false, want true")
	}
}

func TestTimeoutError(t *testing.T) {
	tests := []struct {
		name string
		err  *TimeoutError
		want string
	}{
		{
			name: "basic",
			err:  NewTimeoutError("waiting for language service", 30*time.Second),
			want: "timeout error: waiting for language service (timeout: 30s)",
		},
		{
			name: "with attempts",
			err:  NewTimeoutError("readiness", time.Second).WithAttempts(10),
			want: "timeout error: readiness (timeout: 1s) after 10 attempts",
		},
		{
			name: "with cause",
			err:  NewTimeoutError("readiness", time.Second).WithCause(ErrCanceled),
			want: "timeout error: readiness (timeout: 1s): operation canceled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
			if !Is(tt.err, ErrTimeout) {
				t.Error("Is(ErrTimeout) = false, want true")
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Classification Tests
// -----------------------------------------------------------------------------

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("x"), false},
		{"wrapped timeout sentinel", fmt.Errorf("poll: %w", ErrTimeout), true},
		{"lifecycle error", NewLifecycleError("x", nil), true},
		{"service error", NewServiceError("x", nil), false},
		{"service error retryable", NewServiceError("x", nil).WithRetryable(true), true},
		{"validation error", NewValidationError("x"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("IsUserFacing(nil) = true, want false")
	}
	if IsUserFacing(errors.New("internal")) {
		t.Error("IsUserFacing(plain) = true, want false")
	}
	if !IsUserFacing(fmt.Errorf("wrap: %w", NewAdapterError("x", nil))) {
		t.Error("IsUserFacing(AdapterError) = false, want true")
	}
}

func TestGetSeverity(t *testing.T) {
	if got := GetSeverity(nil); got != SeverityDebug {
		t.Errorf("GetSeverity(nil) = %v, want %v", got, SeverityDebug)
	}
	if got := GetSeverity(errors.New("x")); got != SeverityError {
		t.Errorf("GetSeverity(plain) = %v, want %v", got, SeverityError)
	}
}

func TestIsDeferred(t *testing.T) {
	if !IsDeferred(fmt.Errorf("send: %w", ErrChannelNotEstablished)) {
		t.Error("IsDeferred(wrapped ErrChannelNotEstablished) = false, want true")
	}
	if IsDeferred(ErrLaneClosed) {
		t.Error("IsDeferred(ErrLaneClosed) = true, want false")
	}
}
