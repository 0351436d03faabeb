// Package shipper provides an abstraction layer for shipping rate and label providers.
package shipper

import (
	"context"
)

// Shipper defines the interface that every rate/label provider must implement.
type Shipper interface {
	// Name returns the provider identifier (e.g., "easypost").
	Name() string

	// CreateShipment registers a shipment with the provider and returns the
	// rate options it quotes for it. The quote ID is required to buy a label.
	CreateShipment(ctx context.Context, req *ShipmentRequest) (*Quote, error)

	// BuyLabel purchases postage for a previously quoted shipment.
	// A successful call spends real money and cannot be undone by the caller.
	BuyLabel(ctx context.Context, req *BuyLabelRequest) (*LabelPurchase, error)
}
