package easypost

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	mockLabelURL       = "https://www.w3.org/WAI/ER/tests/xhtml/testfiles/resources/pdf/dummy.pdf"
	mockTrackingURLFmt = "https://tools.usps.com/go/TrackConfirmAction?tLabels=%s"
)

// MockAPIClient is a mock implementation of APIClient for testing and demos.
// It quotes four USPS/UPS services and buys any rate it quoted.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnCreateShipment func(ctx context.Context, req *CreateShipmentRequest) (*Shipment, error)
	OnBuyShipment    func(ctx context.Context, shipmentID string, req *BuyShipmentRequest) (*Shipment, error)
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

func (m *MockAPIClient) wait(ctx context.Context) error {
	if m.SimulateLatency <= 0 {
		return nil
	}
	select {
	case <-time.After(m.SimulateLatency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CreateShipment returns a mock shipment with four rates in provider order.
func (m *MockAPIClient) CreateShipment(ctx context.Context, req *CreateShipmentRequest) (*Shipment, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if m.SimulateErrors {
		return nil, &APIError{StatusCode: 503, Code: "MOCK_ERROR", Message: "Simulated API error"}
	}
	if m.OnCreateShipment != nil {
		return m.OnCreateShipment(ctx, req)
	}

	shipmentID := "shp_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
	days := func(n int) *int { return &n }

	return &Shipment{
		ID:        shipmentID,
		Mode:      "test",
		Reference: req.Shipment.Reference,
		Rates: []Rate{
			{ID: "rate_priority_" + shipmentID, ShipmentID: shipmentID, Carrier: "USPS", Service: "Priority", Rate: "7.50", Currency: "USD", DeliveryDays: days(2)},
			{ID: "rate_express_" + shipmentID, ShipmentID: shipmentID, Carrier: "UPS", Service: "Ground", Rate: "8.95", Currency: "USD", DeliveryDays: days(3)},
			{ID: "rate_overnight_" + shipmentID, ShipmentID: shipmentID, Carrier: "USPS", Service: "Express", Rate: "12.40", Currency: "USD", DeliveryDays: days(1)},
			{ID: "rate_ground_" + shipmentID, ShipmentID: shipmentID, Carrier: "USPS", Service: "GroundAdvantage", Rate: "4.20", Currency: "USD", DeliveryDays: days(5)},
		},
	}, nil
}

// BuyShipment returns a purchased mock shipment. The rate id must have been
// issued by CreateShipment for the same shipment.
func (m *MockAPIClient) BuyShipment(ctx context.Context, shipmentID string, req *BuyShipmentRequest) (*Shipment, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if m.SimulateErrors {
		return nil, &APIError{StatusCode: 503, Code: "MOCK_ERROR", Message: "Simulated API error"}
	}
	if m.OnBuyShipment != nil {
		return m.OnBuyShipment(ctx, shipmentID, req)
	}

	rate, ok := mockRate(shipmentID, req.Rate.ID)
	if !ok {
		return nil, &APIError{
			StatusCode: 422,
			Code:       "SHIPMENT.RATE.INVALID",
			Message:    fmt.Sprintf("rate %s does not belong to shipment %s", req.Rate.ID, shipmentID),
		}
	}

	tracking := fmt.Sprintf("1Z%s", strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:16]))
	return &Shipment{
		ID:           shipmentID,
		Mode:         "test",
		SelectedRate: &rate,
		TrackingCode: tracking,
		PostageLabel: &PostageLabel{LabelURL: mockLabelURL, LabelFileType: "application/pdf"},
		Tracker: &Tracker{
			ID:        "trk_" + tracking,
			Status:    "pre_transit",
			PublicURL: fmt.Sprintf(mockTrackingURLFmt, tracking),
		},
	}, nil
}

func mockRate(shipmentID, rateID string) (Rate, bool) {
	services := map[string]Rate{
		"rate_priority_":  {Carrier: "USPS", Service: "Priority", Rate: "7.50"},
		"rate_express_":   {Carrier: "UPS", Service: "Ground", Rate: "8.95"},
		"rate_overnight_": {Carrier: "USPS", Service: "Express", Rate: "12.40"},
		"rate_ground_":    {Carrier: "USPS", Service: "GroundAdvantage", Rate: "4.20"},
	}
	for prefix, r := range services {
		if rateID == prefix+shipmentID {
			r.ID = rateID
			r.ShipmentID = shipmentID
			r.Currency = "USD"
			return r, true
		}
	}
	return Rate{}, false
}

// Ensure MockAPIClient implements APIClient interface
var _ APIClient = (*MockAPIClient)(nil)
