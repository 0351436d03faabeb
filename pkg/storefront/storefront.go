// Package storefront provides an abstraction over commerce platforms that
// own orders and accept fulfillments (e.g., Shopify).
package storefront

import (
	"context"
)

// Storefront defines the operations the bridge needs from a commerce platform.
// Every call is scoped to one shop by explicit credentials.
type Storefront interface {
	// Name returns the platform identifier (e.g., "shopify").
	Name() string

	// ListUnfulfilledOrders returns every open, paid, unshipped order of the
	// shop, following pagination to the end.
	ListUnfulfilledOrders(ctx context.Context, creds Credentials) ([]Order, error)

	// ListFulfillmentOrders returns the fulfillment orders attached to an order.
	ListFulfillmentOrders(ctx context.Context, creds Credentials, orderID string) ([]FulfillmentOrder, error)

	// CreateFulfillment fulfills a fulfillment order with tracking details.
	CreateFulfillment(ctx context.Context, creds Credentials, req *FulfillmentRequest) (*Fulfillment, error)
}

// Credentials scope a call to one shop.
type Credentials struct {
	Shop        string // e.g. "acme.myshopify.com"
	AccessToken string
}
