package storefront

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// StorefrontError represents a failed call to a commerce platform.
type StorefrontError struct {
	Platform   string
	Operation  string
	Code       string
	Message    string
	StatusCode int
	Cause      error
}

// Error implements the error interface.
func (e *StorefrontError) Error() string {
	msg := fmt.Sprintf("%s %s failed (%s): %s", e.Platform, e.Operation, e.Code, e.Message)
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *StorefrontError) Unwrap() error {
	return e.Cause
}

// Operation names used in StorefrontError.Operation.
const (
	OpListOrders            = "list_orders"
	OpListFulfillmentOrders = "list_fulfillment_orders"
	OpCreateFulfillment     = "create_fulfillment"
)

var (
	// ErrUnauthorized indicates the access token was rejected.
	ErrUnauthorized = errors.New("storefront rejected credentials")

	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("storefront resource not found")

	// ErrRateLimited indicates the platform throttled the call.
	ErrRateLimited = errors.New("storefront rate limited")
)

// NewStorefrontError classifies a platform failure. Well-known statuses wrap
// the matching sentinel so callers can use errors.Is.
func NewStorefrontError(platform, operation string, statusCode int, message string, cause error) *StorefrontError {
	e := &StorefrontError{
		Platform:   platform,
		Operation:  operation,
		Code:       fmt.Sprintf("HTTP_%d", statusCode),
		Message:    message,
		StatusCode: statusCode,
		Cause:      cause,
	}
	if cause == nil {
		switch statusCode {
		case 401, 403:
			e.Cause = ErrUnauthorized
		case 404:
			e.Cause = ErrNotFound
		case 429:
			e.Cause = ErrRateLimited
		}
	}
	if statusCode == 0 {
		switch {
		case errors.Is(cause, context.DeadlineExceeded):
			e.Code = "TIMEOUT"
		default:
			e.Code = "TRANSPORT"
		}
	}
	return e
}

// NoOpenFulfillmentOrderError reports that no fulfillment order of an order
// could accept a fulfillment.
type NoOpenFulfillmentOrderError struct {
	OrderID  string
	Statuses []string
}

func (e *NoOpenFulfillmentOrderError) Error() string {
	if len(e.Statuses) == 0 {
		return fmt.Sprintf("order %s has no fulfillment orders", e.OrderID)
	}
	return fmt.Sprintf("order %s has no open fulfillment order (statuses: %s)", e.OrderID, strings.Join(e.Statuses, ", "))
}
