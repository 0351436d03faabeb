package domain

import (
	"fmt"
	"time"
)

// Validate checks the identity a synced order must carry.
func (o *Order) Validate() error {
	if o.TenantID == "" {
		return fmt.Errorf("%w: missing tenant", ErrInvalidOrder)
	}
	if o.ExternalID == "" {
		return fmt.Errorf("%w: missing external id", ErrInvalidOrder)
	}
	return nil
}

// MergeSynced combines a freshly synced order with the stored one.
//
// A new order starts unfulfilled without tracking. For an existing order the
// descriptive fields come from incoming while identity, fulfillment status,
// tracking and local timestamps are kept, so a re-sync never undoes a
// fulfillment.
func MergeSynced(existing *Order, incoming Order) Order {
	merged := incoming
	merged.LineItems = append([]LineItem(nil), incoming.LineItems...)

	if existing == nil {
		merged.Status = StatusUnfulfilled
		merged.Tracking = nil
		merged.FulfilledAt = nil
		return merged
	}

	merged.ID = existing.ID
	merged.TenantID = existing.TenantID
	merged.ExternalID = existing.ExternalID
	merged.Status = existing.Status
	merged.Tracking = existing.Tracking
	merged.FulfilledAt = existing.FulfilledAt
	merged.CreatedAt = existing.CreatedAt
	return merged
}

// Fulfill transitions an unfulfilled order to fulfilled with tracking.
func (o Order) Fulfill(t Tracking, at time.Time) (Order, error) {
	if o.IsFulfilled() {
		return o, ErrAlreadyFulfilled
	}
	o.Status = StatusFulfilled
	o.Tracking = &t
	o.FulfilledAt = &at
	return o, nil
}
