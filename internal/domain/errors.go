package domain

import "errors"

var (
	// ErrOrderNotFound indicates no order with the id exists for the tenant.
	ErrOrderNotFound = errors.New("order not found")

	// ErrAlreadyFulfilled indicates the order is already fulfilled.
	ErrAlreadyFulfilled = errors.New("order already fulfilled")

	// ErrCredentialNotFound indicates no credential is stored for the tenant.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrInvalidOrder indicates a synced order lacks its identity.
	ErrInvalidOrder = errors.New("invalid order")
)
