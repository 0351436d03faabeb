package shipper

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Address represents a postal address used as shipment origin or destination.
type Address struct {
	Name    string
	Company string
	Street1 string
	Street2 string
	City    string
	State   string // e.g., "NY", "ON"
	Zip     string
	Country string // ISO 3166-1 alpha-2, e.g., "US", "CA"
	Phone   string
	Email   string
}

// Parcel holds parcel dimensions in inches and weight in ounces.
type Parcel struct {
	Length float64
	Width  float64
	Height float64
	Weight float64
}

// Money represents a monetary amount.
type Money struct {
	Amount   decimal.Decimal
	Currency string
}

// String formats the amount with two decimals, e.g. "7.50".
func (m Money) String() string {
	return m.Amount.StringFixed(2)
}

// RateOption represents a shipping option quoted by the provider.
type RateOption struct {
	RateID       string
	Carrier      string
	Service      string
	Price        Money
	DeliveryDays int
}

// ============================================================================
// Request/Response Types
// ============================================================================

// ShipmentRequest is the request for creating a shipment and quoting rates.
type ShipmentRequest struct {
	ToAddress   Address
	FromAddress Address
	Parcel      Parcel
	Reference   string
}

// Quote is the provider's answer to a ShipmentRequest.
type Quote struct {
	QuoteID string // provider shipment id
	Rates   []RateOption
}

// BuyLabelRequest selects one rate of a quote for purchase.
type BuyLabelRequest struct {
	QuoteID string
	RateID  string
}

// LabelPurchase is the result of a successful label purchase.
type LabelPurchase struct {
	QuoteID        string
	TrackingNumber string
	Carrier        string
	Service        string
	LabelURL       string
	TrackingURL    string
	Price          Money
}

// SortRatesByPrice returns a copy of rates ordered cheapest first.
// Rates with equal prices keep the order the provider returned them in.
func SortRatesByPrice(rates []RateOption) []RateOption {
	sorted := make([]RateOption, len(rates))
	copy(sorted, rates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Price.Amount.LessThan(sorted[j].Price.Amount)
	})
	return sorted
}
