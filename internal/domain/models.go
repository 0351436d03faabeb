// Package domain holds the order, credential and settings model of the
// fulfillment bridge and the rules that govern how they change.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// FulfillmentStatus is the local fulfillment state of an order.
type FulfillmentStatus string

const (
	StatusUnfulfilled FulfillmentStatus = "unfulfilled"
	StatusFulfilled   FulfillmentStatus = "fulfilled"
)

// Valid reports whether s is a known status.
func (s FulfillmentStatus) Valid() bool {
	return s == StatusUnfulfilled || s == StatusFulfilled
}

// Address is a customer address. Missing parts are empty strings.
type Address struct {
	Line1   string
	Line2   string
	City    string
	State   string
	Zip     string
	Country string
}

// Customer is the snapshot of the buyer taken at sync time.
type Customer struct {
	Name    string
	Email   string
	Phone   string
	Address Address
}

// LineItem is one order line.
type LineItem struct {
	Name     string
	SKU      string
	Quantity int
	Grams    int64 // per unit
	Price    string
}

// Tracking is written once, when the order is fulfilled.
type Tracking struct {
	Number   string
	Carrier  string
	LabelURL string
	URL      string
	Cost     decimal.Decimal
}

// Order is a storefront order mirrored locally.
type Order struct {
	ID               string
	TenantID         string
	ExternalID       string
	OrderNumber      string
	Email            string
	FinancialStatus  string
	TotalPrice       string
	Currency         string
	Customer         Customer
	LineItems        []LineItem
	TotalWeightGrams int64
	Status           FulfillmentStatus
	Tracking         *Tracking
	FulfilledAt      *time.Time
	SourceCreatedAt  time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsFulfilled reports whether the order has been fulfilled locally.
func (o *Order) IsFulfilled() bool {
	return o.Status == StatusFulfilled
}

// WeightOunces returns the order weight in ounces.
func (o *Order) WeightOunces() float64 {
	return GramsToOunces(o.TotalWeightGrams)
}

// Credential is the per-tenant storefront access grant.
type Credential struct {
	TenantID    string
	AccessToken string
	Scope       string
	Active      bool
	UpdatedAt   time.Time
}

// ShipFrom is the origin address used for rate quotes.
type ShipFrom struct {
	Company string
	Street1 string
	Street2 string
	City    string
	State   string
	Zip     string
	Phone   string
	Country string
}

// FallbackShipFrom is used when no usable ship-from address is configured.
func FallbackShipFrom() ShipFrom {
	return ShipFrom{
		Company: "Default Store",
		Street1: "123 Main St",
		City:    "New York",
		State:   "NY",
		Zip:     "10001",
		Phone:   "555-555-5555",
		Country: "US",
	}
}

// Usable reports whether the address has the parts a carrier needs.
func (s ShipFrom) Usable() bool {
	return s.Street1 != "" && s.Zip != ""
}

// OrFallback returns s, or the fallback address when s is not usable.
func (s ShipFrom) OrFallback() ShipFrom {
	if s.Usable() {
		return s
	}
	return FallbackShipFrom()
}

const ouncesPerGram = 0.035274

// GramsToOunces converts a weight in grams to ounces.
func GramsToOunces(grams int64) float64 {
	return float64(grams) * ouncesPerGram
}
