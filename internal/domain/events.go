package domain

import (
	"time"
)

// Stage is a step of the purchase-and-fulfill sequence.
type Stage string

const (
	StageQuoted               Stage = "quoted"
	StageLabelPurchased       Stage = "label_purchased"
	StageLabelFailed          Stage = "label_failed"
	StageStorefrontFulfilled  Stage = "storefront_fulfilled"
	StageLocallyCommitted     Stage = "locally_committed"
	StageReconciliationNeeded Stage = "reconciliation_needed"
)

// Terminal reports whether no further stage follows s.
func (s Stage) Terminal() bool {
	switch s {
	case StageLabelFailed, StageLocallyCommitted, StageReconciliationNeeded:
		return true
	}
	return false
}

// FulfillmentEvent records one stage transition of an order's purchase.
type FulfillmentEvent struct {
	ID             uint
	OrderID        string
	TenantID       string
	Stage          Stage
	TrackingNumber string
	LabelURL       string
	Carrier        string
	Cost           string
	Detail         string
	CreatedAt      time.Time
}
