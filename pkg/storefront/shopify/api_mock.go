package shopify

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// MockAPIClient is a mock implementation of APIClient for testing and demos.
// By default it serves two unfulfilled orders, each with one open
// fulfillment order, and accepts every fulfillment.
type MockAPIClient struct {
	SimulateErrors bool

	OnListOrders            func(ctx context.Context, s Session, req *ListOrdersRequest) (*OrdersPage, error)
	OnListFulfillmentOrders func(ctx context.Context, s Session, orderID string) (*FulfillmentOrdersResponse, error)
	OnCreateFulfillment     func(ctx context.Context, s Session, req *CreateFulfillmentRequest) (*FulfillmentResponse, error)

	mu           sync.Mutex
	fulfillments []CreateFulfillmentRequest
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

// ListOrders returns the canned orders on a single page.
func (m *MockAPIClient) ListOrders(ctx context.Context, s Session, req *ListOrdersRequest) (*OrdersPage, error) {
	if m.SimulateErrors {
		return nil, &APIError{StatusCode: 503, Errors: []byte(`"Simulated API error"`)}
	}
	if m.OnListOrders != nil {
		return m.OnListOrders(ctx, s, req)
	}
	return &OrdersPage{Orders: MockOrders()}, nil
}

// ListFulfillmentOrders returns one open fulfillment order.
func (m *MockAPIClient) ListFulfillmentOrders(ctx context.Context, s Session, orderID string) (*FulfillmentOrdersResponse, error) {
	if m.SimulateErrors {
		return nil, &APIError{StatusCode: 503, Errors: []byte(`"Simulated API error"`)}
	}
	if m.OnListFulfillmentOrders != nil {
		return m.OnListFulfillmentOrders(ctx, s, orderID)
	}
	id, _ := strconv.ParseInt(orderID, 10, 64)
	return &FulfillmentOrdersResponse{
		FulfillmentOrders: []FulfillmentOrder{
			{ID: id + 1, OrderID: id, Status: "open", DeliveryMethod: &DeliveryMethod{MethodType: "shipping"}},
		},
	}, nil
}

// CreateFulfillment records the request and returns a successful fulfillment.
func (m *MockAPIClient) CreateFulfillment(ctx context.Context, s Session, req *CreateFulfillmentRequest) (*FulfillmentResponse, error) {
	if m.SimulateErrors {
		return nil, &APIError{StatusCode: 503, Errors: []byte(`"Simulated API error"`)}
	}

	m.mu.Lock()
	m.fulfillments = append(m.fulfillments, *req)
	n := len(m.fulfillments)
	m.mu.Unlock()

	if m.OnCreateFulfillment != nil {
		return m.OnCreateFulfillment(ctx, s, req)
	}
	return &FulfillmentResponse{
		Fulfillment: Fulfillment{
			ID:              9000 + int64(n),
			Status:          "success",
			TrackingNumber:  req.Fulfillment.TrackingInfo.Number,
			TrackingCompany: req.Fulfillment.TrackingInfo.Company,
		},
	}, nil
}

// Fulfillments returns the fulfillment requests received so far.
func (m *MockAPIClient) Fulfillments() []CreateFulfillmentRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CreateFulfillmentRequest, len(m.fulfillments))
	copy(out, m.fulfillments)
	return out
}

// MockOrders returns the canned orders served by MockAPIClient.
func MockOrders() []Order {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return []Order{
		{
			ID:                5550001,
			AdminGraphQLAPIID: "gid://shopify/Order/5550001",
			Name:              "#1001",
			Email:             "jane@example.com",
			FinancialStatus:   "paid",
			TotalPrice:        "59.00",
			Currency:          "USD",
			CreatedAt:         created,
			ShippingAddress: &Address{
				FirstName:    "Jane",
				LastName:     "Doe",
				Name:         "Jane Doe",
				Address1:     "1 Infinite Loop",
				City:         "Cupertino",
				ProvinceCode: "CA",
				Zip:          "95014",
				CountryCode:  "US",
				Phone:        "555-0100",
			},
			Customer: &Customer{ID: 1, FirstName: "Jane", LastName: "Doe", Email: "jane@example.com"},
			LineItems: []LineItem{
				{ID: 1, Name: "Mug", SKU: "MUG-1", Quantity: 2, Grams: 350, Price: "19.50"},
				{ID: 2, Name: "Coaster", SKU: "CST-1", Quantity: 1, Grams: 100, Price: "20.00"},
			},
		},
		{
			ID:                5550002,
			AdminGraphQLAPIID: "gid://shopify/Order/5550002",
			Name:              "#1002",
			Email:             "sam@example.com",
			FinancialStatus:   "paid",
			TotalPrice:        "12.00",
			Currency:          "USD",
			TotalWeight:       500,
			CreatedAt:         created.Add(time.Hour),
			BillingAddress: &Address{
				FirstName:   "Sam",
				LastName:    "Lee",
				Address1:    "77 Mass Ave",
				City:        "Cambridge",
				Province:    "Massachusetts",
				Zip:         "02139",
				Country:     "United States",
				CountryCode: "US",
			},
			LineItems: []LineItem{
				{ID: 3, Name: "Sticker pack", SKU: "STK-1", Quantity: 3, Grams: 20, Price: "4.00"},
			},
		},
	}
}

// Ensure MockAPIClient implements APIClient interface
var _ APIClient = (*MockAPIClient)(nil)
