package shipper

import (
	"context"
	"errors"
	"fmt"
)

// ShipperError represents a failed call to a rate/label provider.
type ShipperError struct {
	Provider   string
	Operation  string
	Code       string
	Message    string
	StatusCode int
	Retryable  bool
	Cause      error
}

// Error implements the error interface.
func (e *ShipperError) Error() string {
	msg := fmt.Sprintf("%s %s failed (%s): %s", e.Provider, e.Operation, e.Code, e.Message)
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ShipperError) Unwrap() error {
	return e.Cause
}

// Is matches another ShipperError carrying the same code.
func (e *ShipperError) Is(target error) bool {
	t, ok := target.(*ShipperError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewShipperError creates a new ShipperError.
func NewShipperError(provider, operation, code, message string) *ShipperError {
	return &ShipperError{
		Provider:  provider,
		Operation: operation,
		Code:      code,
		Message:   message,
	}
}

// WithCause adds a cause to the error.
func (e *ShipperError) WithCause(err error) *ShipperError {
	e.Cause = err
	return e
}

// WithStatusCode adds an HTTP status code to the error.
// 429 responses are retryable. 5xx responses are retryable except on
// buy_label, where the provider may have charged before failing.
func (e *ShipperError) WithStatusCode(code int) *ShipperError {
	e.StatusCode = code
	switch {
	case code == 429:
		e.Retryable = true
	case code >= 500:
		e.Retryable = e.Operation != OpBuyLabel
	default:
		e.Retryable = false
	}
	return e
}

// WithRetryable marks the error as retryable.
func (e *ShipperError) WithRetryable(retryable bool) *ShipperError {
	e.Retryable = retryable
	return e
}

// Operation names used in ShipperError.Operation.
const (
	OpCreateShipment = "create_shipment"
	OpBuyLabel       = "buy_label"
)

// Sentinel errors for common provider scenarios.
var (
	// ErrInvalidAddress indicates the address is invalid or incomplete.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrInvalidParcel indicates parcel dimensions or weight are invalid.
	ErrInvalidParcel = errors.New("invalid parcel")

	// ErrServiceUnavailable indicates the provider is temporarily unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrQuoteNotFound indicates the quote (shipment) ID was not found.
	ErrQuoteNotFound = errors.New("quote not found")

	// ErrRateNotFound indicates the rate does not belong to the quote.
	ErrRateNotFound = errors.New("rate not found")

	// ErrAuthenticationFailed indicates provider authentication failed.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrRateLimitExceeded indicates the provider rate limit was exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrProviderNotFound indicates the requested provider is not registered.
	ErrProviderNotFound = errors.New("provider not found")
)

// Wrap converts any error returned while talking to a provider into a
// *ShipperError. Existing ShipperErrors pass through unchanged. A deadline
// is reported as TIMEOUT and is not retryable: the provider may have acted.
// An outage during buy_label is not retryable for the same reason.
func Wrap(provider, operation string, err error) *ShipperError {
	if err == nil {
		return nil
	}
	var se *ShipperError
	if errors.As(err, &se) {
		return se
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewShipperError(provider, operation, "TIMEOUT", "provider call timed out").WithCause(err)
	case errors.Is(err, context.Canceled):
		return NewShipperError(provider, operation, "CANCELLED", "provider call cancelled").WithCause(err)
	case errors.Is(err, ErrRateLimitExceeded):
		return NewShipperError(provider, operation, "UNAVAILABLE", err.Error()).WithCause(err).WithRetryable(true)
	case errors.Is(err, ErrServiceUnavailable):
		return NewShipperError(provider, operation, "UNAVAILABLE", err.Error()).WithCause(err).WithRetryable(operation != OpBuyLabel)
	}
	return NewShipperError(provider, operation, "PROVIDER_ERROR", "provider call failed").WithCause(err)
}

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	var shipperErr *ShipperError
	if errors.As(err, &shipperErr) {
		return shipperErr.Retryable
	}
	return errors.Is(err, ErrServiceUnavailable) || errors.Is(err, ErrRateLimitExceeded)
}
