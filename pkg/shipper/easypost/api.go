package easypost

import (
	"context"
	"fmt"
	"strings"
)

// APIClient defines the EasyPost API operations the client relies on.
// Mock and HTTP implementations are interchangeable.
type APIClient interface {
	// CreateShipment registers a shipment and returns it with its rates.
	CreateShipment(ctx context.Context, req *CreateShipmentRequest) (*Shipment, error)

	// BuyShipment purchases the given rate for an existing shipment.
	BuyShipment(ctx context.Context, shipmentID string, req *BuyShipmentRequest) (*Shipment, error)
}

// ============================================================================
// API Request/Response Types (match EasyPost REST API v2 structure)
// ============================================================================

// CreateShipmentRequest is the body of POST /shipments.
type CreateShipmentRequest struct {
	Shipment ShipmentInput `json:"shipment"`
}

// ShipmentInput describes the shipment to quote.
type ShipmentInput struct {
	ToAddress   AddressInput `json:"to_address"`
	FromAddress AddressInput `json:"from_address"`
	Parcel      ParcelInput  `json:"parcel"`
	Reference   string       `json:"reference,omitempty"`
}

// AddressInput is an inline address object.
type AddressInput struct {
	Name    string `json:"name,omitempty"`
	Company string `json:"company,omitempty"`
	Street1 string `json:"street1"`
	Street2 string `json:"street2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
}

// ParcelInput is an inline parcel object. Dimensions in inches, weight in ounces.
type ParcelInput struct {
	Length float64 `json:"length,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
	Weight float64 `json:"weight"`
}

// BuyShipmentRequest is the body of POST /shipments/{id}/buy.
type BuyShipmentRequest struct {
	Rate RateRef `json:"rate"`
}

// RateRef references a rate by id.
type RateRef struct {
	ID string `json:"id"`
}

// Shipment is the EasyPost shipment object.
type Shipment struct {
	ID           string        `json:"id"`
	Mode         string        `json:"mode"`
	Reference    string        `json:"reference,omitempty"`
	Rates        []Rate        `json:"rates"`
	SelectedRate *Rate         `json:"selected_rate,omitempty"`
	TrackingCode string        `json:"tracking_code,omitempty"`
	PostageLabel *PostageLabel `json:"postage_label,omitempty"`
	Tracker      *Tracker      `json:"tracker,omitempty"`
	Messages     []Message     `json:"messages,omitempty"`
}

// Rate is a quoted carrier service.
type Rate struct {
	ID           string `json:"id"`
	ShipmentID   string `json:"shipment_id"`
	Carrier      string `json:"carrier"`
	Service      string `json:"service"`
	Rate         string `json:"rate"` // decimal string, e.g. "7.50"
	Currency     string `json:"currency"`
	DeliveryDays *int   `json:"delivery_days"`
}

// PostageLabel describes a purchased label.
type PostageLabel struct {
	LabelURL      string `json:"label_url"`
	LabelFileType string `json:"label_file_type,omitempty"`
}

// Tracker is the tracker created with a purchased label.
type Tracker struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	PublicURL string `json:"public_url"`
}

// Message is a carrier message attached to a shipment (usually a rating error).
type Message struct {
	Carrier string `json:"carrier"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// APIError is the "error" object of an EasyPost error response.
type APIError struct {
	StatusCode int          `json:"-"`
	Code       string       `json:"code"`
	Message    string       `json:"message"`
	Errors     []FieldError `json:"errors,omitempty"`
}

// FieldError points at an invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	fields := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		fields = append(fields, fe.Field+" "+fe.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, strings.Join(fields, "; "))
}
