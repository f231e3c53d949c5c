package generation

import (
	"context"
	"errors"
	"fmt"
)

// interruptedError marks a generation stopped by an interruption request. It is
// never a failure from the user's point of view.
type interruptedError struct{ cause error }

func (e interruptedError) Error() string {
	if e.cause == nil || errors.Is(e.cause, context.Canceled) {
		return "generation interrupted"
	}
	return "generation interrupted: " + e.cause.Error()
}

func (e interruptedError) Unwrap() error { return e.cause }

// Interrupted wraps cause (usually ctx.Err()) into a cancellation error.
func Interrupted(cause error) error {
	if IsInterrupted(cause) {
		return cause
	}
	return interruptedError{cause: cause}
}

// IsInterrupted reports whether err signals cancellation rather than failure.
func IsInterrupted(err error) bool {
	var ie interruptedError
	return errors.As(err, &ie)
}

// CheckInterrupted returns a cancellation error if ctx is done.
func CheckInterrupted(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return Interrupted(err)
	}
	return nil
}

// Classify turns a transport error observed after ctx was cancelled into a
// cancellation error; other errors pass through unchanged.
func Classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return Interrupted(ctx.Err())
	}
	return err
}

// FailureKind classifies provider failures.
type FailureKind string

const (
	// FailureUnavailable indicates the backend could not be initialized.
	FailureUnavailable FailureKind = "unavailable"
	// FailureTransport indicates a network or protocol error.
	FailureTransport FailureKind = "transport"
	// FailureFaulted indicates a remote job faulted or was reported impossible.
	FailureFaulted FailureKind = "faulted"
	// FailureNoModel indicates no usable model is available.
	FailureNoModel FailureKind = "no_model"
	// FailureModelsUnavailable indicates the model list could not be fetched.
	FailureModelsUnavailable FailureKind = "models_unavailable"
	// FailureRetriesExhausted indicates the retry ceiling was reached.
	FailureRetriesExhausted FailureKind = "retries_exhausted"
	// FailureBusy indicates the backend is saturated.
	FailureBusy FailureKind = "busy"
	// FailureConsentDenied indicates a required model download was not allowed.
	FailureConsentDenied FailureKind = "consent_denied"
)

// ProviderError wraps provider failures with a stable classification.
type ProviderError struct {
	Kind     FailureKind
	Provider string
	Op       string
	Err      error
}

// NewProviderError constructs a classified provider error.
func NewProviderError(kind FailureKind, provider, op string, err error) *ProviderError {
	return &ProviderError{Kind: kind, Provider: provider, Op: op, Err: err}
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}
	prefix := e.Provider
	if prefix == "" {
		prefix = "provider"
	}
	if e.Op != "" {
		prefix += " " + e.Op
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	}
	return fmt.Sprintf("%s failed (%s)", prefix, e.Kind)
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsFailure reports whether err is a ProviderError of the given kind.
func IsFailure(err error, kind FailureKind) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}
