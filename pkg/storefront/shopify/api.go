package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Session scopes an API call to one shop.
type Session struct {
	Shop        string
	AccessToken string
}

// APIClient defines the Shopify Admin REST operations the client relies on.
type APIClient interface {
	// ListOrders fetches one page of orders. An empty PageInfo fetches the
	// first page using the filters; later pages are addressed by PageInfo only.
	ListOrders(ctx context.Context, s Session, req *ListOrdersRequest) (*OrdersPage, error)

	// ListFulfillmentOrders fetches the fulfillment orders of an order.
	ListFulfillmentOrders(ctx context.Context, s Session, orderID string) (*FulfillmentOrdersResponse, error)

	// CreateFulfillment creates a fulfillment.
	CreateFulfillment(ctx context.Context, s Session, req *CreateFulfillmentRequest) (*FulfillmentResponse, error)
}

// ============================================================================
// API Request/Response Types (match Shopify Admin REST API structure)
// ============================================================================

// ListOrdersRequest selects a page of orders.
type ListOrdersRequest struct {
	Status            string
	FinancialStatus   string
	FulfillmentStatus string
	Limit             int
	PageInfo          string
}

// OrdersPage is one page of GET /orders.json.
type OrdersPage struct {
	Orders       []Order `json:"orders"`
	NextPageInfo string  `json:"-"` // from the Link header
}

// Order is the REST order resource.
type Order struct {
	ID                int64      `json:"id"`
	AdminGraphQLAPIID string     `json:"admin_graphql_api_id"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	Phone             string     `json:"phone"`
	FinancialStatus   string     `json:"financial_status"`
	FulfillmentStatus *string    `json:"fulfillment_status"`
	TotalPrice        string     `json:"total_price"`
	Currency          string     `json:"currency"`
	TotalWeight       int64      `json:"total_weight"`
	CreatedAt         time.Time  `json:"created_at"`
	ShippingAddress   *Address   `json:"shipping_address"`
	BillingAddress    *Address   `json:"billing_address"`
	Customer          *Customer  `json:"customer"`
	LineItems         []LineItem `json:"line_items"`
}

// Address is the REST address resource.
type Address struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Name         string `json:"name"`
	Company      string `json:"company"`
	Address1     string `json:"address1"`
	Address2     string `json:"address2"`
	City         string `json:"city"`
	Province     string `json:"province"`
	ProvinceCode string `json:"province_code"`
	Zip          string `json:"zip"`
	Country      string `json:"country"`
	CountryCode  string `json:"country_code"`
	Phone        string `json:"phone"`
}

// Customer is the customer embedded in an order.
type Customer struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// LineItem is an order line.
type LineItem struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
	Grams    int64  `json:"grams"`
	Price    string `json:"price"`
}

// FulfillmentOrdersResponse is GET /orders/{id}/fulfillment_orders.json.
type FulfillmentOrdersResponse struct {
	FulfillmentOrders []FulfillmentOrder `json:"fulfillment_orders"`
}

// FulfillmentOrder is the REST fulfillment order resource.
type FulfillmentOrder struct {
	ID             int64           `json:"id"`
	OrderID        int64           `json:"order_id"`
	Status         string          `json:"status"`
	DeliveryMethod *DeliveryMethod `json:"delivery_method"`
}

// DeliveryMethod describes how a fulfillment order is delivered.
type DeliveryMethod struct {
	MethodType string `json:"method_type"`
}

// CreateFulfillmentRequest is the body of POST /fulfillments.json.
type CreateFulfillmentRequest struct {
	Fulfillment FulfillmentInput `json:"fulfillment"`
}

// FulfillmentInput fulfills whole fulfillment orders.
type FulfillmentInput struct {
	LineItemsByFulfillmentOrder []FulfillmentOrderRef `json:"line_items_by_fulfillment_order"`
	TrackingInfo                TrackingInfo          `json:"tracking_info"`
	NotifyCustomer              bool                  `json:"notify_customer"`
}

// FulfillmentOrderRef references a fulfillment order; omitting line items
// fulfills all of them.
type FulfillmentOrderRef struct {
	FulfillmentOrderID int64 `json:"fulfillment_order_id"`
}

// TrackingInfo is attached to a fulfillment.
type TrackingInfo struct {
	Number  string `json:"number"`
	Company string `json:"company,omitempty"`
	URL     string `json:"url,omitempty"`
}

// FulfillmentResponse is the response of POST /fulfillments.json.
type FulfillmentResponse struct {
	Fulfillment Fulfillment `json:"fulfillment"`
}

// Fulfillment is the REST fulfillment resource.
type Fulfillment struct {
	ID              int64  `json:"id"`
	OrderID         int64  `json:"order_id"`
	Status          string `json:"status"`
	TrackingNumber  string `json:"tracking_number"`
	TrackingCompany string `json:"tracking_company"`
}

// APIError is a non-2xx Shopify response. Shopify returns "errors" either as
// a string or as an object of field messages.
type APIError struct {
	StatusCode int
	Errors     json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("shopify returned %d: %s", e.StatusCode, e.Message())
}

// Message renders Errors as a readable string.
func (e *APIError) Message() string {
	if len(e.Errors) == 0 {
		return "no error details"
	}
	var s string
	if err := json.Unmarshal(e.Errors, &s); err == nil {
		return s
	}
	return string(e.Errors)
}
