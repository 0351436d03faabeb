// Package mock provides a mock shipper implementation for testing.
package mock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tournevent/shiplite/pkg/shipper"
)

// Client is a mock shipper for testing. Hooks override the canned behavior
// and call counters let tests assert how often money would have been spent.
type Client struct {
	name string

	OnCreateShipment func(ctx context.Context, req *shipper.ShipmentRequest) (*shipper.Quote, error)
	OnBuyLabel       func(ctx context.Context, req *shipper.BuyLabelRequest) (*shipper.LabelPurchase, error)

	createCalls atomic.Int32
	buyCalls    atomic.Int32

	mu       sync.Mutex
	lastShip *shipper.ShipmentRequest
}

// New creates a new mock shipper.
func New(name string) *Client {
	return &Client{name: name}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.name
}

// CreateShipment returns two canned rates, the pricier one first.
func (c *Client) CreateShipment(ctx context.Context, req *shipper.ShipmentRequest) (*shipper.Quote, error) {
	c.createCalls.Add(1)
	c.mu.Lock()
	reqCopy := *req
	c.lastShip = &reqCopy
	c.mu.Unlock()

	if c.OnCreateShipment != nil {
		return c.OnCreateShipment(ctx, req)
	}

	quoteID := fmt.Sprintf("%s-shp-%d", c.name, time.Now().UnixNano())
	return &shipper.Quote{
		QuoteID: quoteID,
		Rates: []shipper.RateOption{
			{
				RateID:       quoteID + "-express",
				Carrier:      "USPS",
				Service:      "Express",
				Price:        shipper.Money{Amount: decimal.RequireFromString("24.00"), Currency: "USD"},
				DeliveryDays: 1,
			},
			{
				RateID:       quoteID + "-ground",
				Carrier:      "USPS",
				Service:      "GroundAdvantage",
				Price:        shipper.Money{Amount: decimal.RequireFromString("6.10"), Currency: "USD"},
				DeliveryDays: 5,
			},
		},
	}, nil
}

// BuyLabel returns a canned label purchase.
func (c *Client) BuyLabel(ctx context.Context, req *shipper.BuyLabelRequest) (*shipper.LabelPurchase, error) {
	n := c.buyCalls.Add(1)
	if c.OnBuyLabel != nil {
		return c.OnBuyLabel(ctx, req)
	}

	tracking := fmt.Sprintf("9400MOCK%08d", n)
	return &shipper.LabelPurchase{
		QuoteID:        req.QuoteID,
		TrackingNumber: tracking,
		Carrier:        "USPS",
		Service:        "GroundAdvantage",
		LabelURL:       fmt.Sprintf("https://labels.%s.mock/%s.pdf", c.name, req.QuoteID),
		TrackingURL:    fmt.Sprintf("https://track.%s.mock/%s", c.name, tracking),
		Price:          shipper.Money{Amount: decimal.RequireFromString("6.10"), Currency: "USD"},
	}, nil
}

// CreateShipmentCalls returns how many times CreateShipment was called.
func (c *Client) CreateShipmentCalls() int {
	return int(c.createCalls.Load())
}

// BuyLabelCalls returns how many times BuyLabel was called.
func (c *Client) BuyLabelCalls() int {
	return int(c.buyCalls.Load())
}

// LastShipment returns a copy of the last shipment request received.
func (c *Client) LastShipment() *shipper.ShipmentRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastShip
}

var _ shipper.Shipper = (*Client)(nil)
