package storefront

import (
	"time"
)

// Address is a platform address. Any field may be empty.
type Address struct {
	Name      string
	FirstName string
	LastName  string
	Company   string
	Address1  string
	Address2  string
	City      string
	Province  string // province code when available
	Zip       string
	Country   string // country code when available
	Phone     string
}

// Customer is the customer attached to an order.
type Customer struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// LineItem is one order line.
type LineItem struct {
	ID       string
	Name     string
	SKU      string
	Quantity int
	Grams    int64 // per unit
	Price    string
}

// Order is a platform order as returned by the listing endpoint.
type Order struct {
	ID                string // numeric id as a string
	Name              string // display number, e.g. "#1001"
	Email             string
	Phone             string
	FinancialStatus   string
	FulfillmentStatus string
	TotalPrice        string
	Currency          string
	TotalWeight       int64 // grams; zero when the platform did not compute it
	CreatedAt         time.Time
	ShippingAddress   *Address
	BillingAddress    *Address
	Customer          *Customer
	LineItems         []LineItem
}

// Fulfillment order statuses that accept a new fulfillment.
const (
	FulfillmentOrderOpen       = "open"
	FulfillmentOrderInProgress = "in_progress"
)

// FulfillmentOrder is the platform's unit of fulfillable work for an order.
type FulfillmentOrder struct {
	ID             string
	OrderID        string
	Status         string
	DeliveryMethod string
}

// Fulfillable reports whether a fulfillment can be created against fo.
func (fo FulfillmentOrder) Fulfillable() bool {
	return fo.Status == FulfillmentOrderOpen || fo.Status == FulfillmentOrderInProgress
}

// TrackingInfo is attached to a fulfillment.
type TrackingInfo struct {
	Number  string
	Company string
	URL     string
}

// FulfillmentRequest creates a fulfillment for a whole fulfillment order.
type FulfillmentRequest struct {
	FulfillmentOrderID string
	Tracking           TrackingInfo
	NotifyCustomer     bool
}

// Fulfillment is the created fulfillment.
type Fulfillment struct {
	ID             string
	Status         string
	TrackingNumber string
}

// SelectFulfillable returns the first fulfillment order that accepts a
// fulfillment, or a *NoOpenFulfillmentOrderError listing what was seen.
func SelectFulfillable(orderID string, fos []FulfillmentOrder) (*FulfillmentOrder, error) {
	statuses := make([]string, 0, len(fos))
	for i := range fos {
		if fos[i].Fulfillable() {
			return &fos[i], nil
		}
		statuses = append(statuses, fos[i].Status)
	}
	return nil, &NoOpenFulfillmentOrderError{OrderID: orderID, Statuses: statuses}
}
