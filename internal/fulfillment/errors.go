package fulfillment

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tournevent/shiplite/internal/domain"
)

// ErrPurchaseInProgress indicates another purchase of the same order holds
// the purchase lock. Nothing was bought; the caller may retry later.
var ErrPurchaseInProgress = errors.New("a label purchase for this order is already in progress")

// ReconciliationNeededError reports a paid label that could not be committed
// to the storefront or the local store. The order is still unfulfilled
// locally and the label must be voided or applied by hand.
type ReconciliationNeededError struct {
	OrderID        string
	Stage          domain.Stage // last stage reached
	LabelURL       string
	TrackingNumber string
	TrackingURL    string
	Carrier        string
	Cost           decimal.Decimal
	Cause          error
}

func (e *ReconciliationNeededError) Error() string {
	return fmt.Sprintf("order %s needs reconciliation after %s: label %s (tracking %s) was purchased: %v",
		e.OrderID, e.Stage, e.LabelURL, e.TrackingNumber, e.Cause)
}

func (e *ReconciliationNeededError) Unwrap() error {
	return e.Cause
}
