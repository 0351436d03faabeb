package server

import (
	"time"

	"github.com/tournevent/shiplite/internal/domain"
	"github.com/tournevent/shiplite/pkg/shipper"
)

type ratesRequest struct {
	OrderID string  `json:"orderId" validate:"required"`
	Weight  float64 `json:"weight" validate:"gte=0"`
	Length  float64 `json:"length" validate:"gte=0"`
	Width   float64 `json:"width" validate:"gte=0"`
	Height  float64 `json:"height" validate:"gte=0"`
}

type buyRequest struct {
	OrderID    string `json:"orderId" validate:"required"`
	ShipmentID string `json:"shipmentId" validate:"required"`
	RateID     string `json:"rateId" validate:"required"`
}

type shipFromBody struct {
	Company string `json:"company" validate:"max=255"`
	Street1 string `json:"street1" validate:"max=255"`
	Street2 string `json:"street2" validate:"max=255"`
	City    string `json:"city" validate:"max=128"`
	State   string `json:"state" validate:"max=64"`
	Zip     string `json:"zip" validate:"max=32"`
	Phone   string `json:"phone" validate:"max=64"`
	Country string `json:"country" validate:"max=64"`
}

type settingsBody struct {
	ShipFrom *shipFromBody `json:"shipFrom" validate:"required"`
}

type syncResponse struct {
	Imported int `json:"imported"`
	Failed   int `json:"failed"`
}

type rateResponse struct {
	ID           string `json:"id"`
	Carrier      string `json:"carrier"`
	Service      string `json:"service"`
	Rate         string `json:"rate"`
	Currency     string `json:"currency"`
	DeliveryDays int    `json:"deliveryDays,omitempty"`
}

type ratesResponse struct {
	ShipmentID string         `json:"shipmentId"`
	Rates      []rateResponse `json:"rates"`
}

type buyResponse struct {
	Success  bool          `json:"success"`
	Order    orderResponse `json:"order"`
	LabelURL string        `json:"labelUrl"`
}

type addressResponse struct {
	Line1   string `json:"line1"`
	Line2   string `json:"line2"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
}

type customerResponse struct {
	Name    string          `json:"name"`
	Email   string          `json:"email"`
	Phone   string          `json:"phone"`
	Address addressResponse `json:"address"`
}

type lineItemResponse struct {
	Name     string `json:"name"`
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
	Grams    int64  `json:"grams"`
	Price    string `json:"price"`
}

type orderResponse struct {
	ID                string             `json:"id"`
	ExternalID        string             `json:"externalId"`
	OrderNumber       string             `json:"orderNumber"`
	Email             string             `json:"email"`
	FinancialStatus   string             `json:"financialStatus"`
	FulfillmentStatus string             `json:"fulfillmentStatus"`
	TotalPrice        string             `json:"totalPrice"`
	Currency          string             `json:"currency"`
	TotalWeight       int64              `json:"totalWeight"`
	Customer          customerResponse   `json:"customer"`
	LineItems         []lineItemResponse `json:"lineItems"`
	TrackingNumber    string             `json:"trackingNumber,omitempty"`
	Carrier           string             `json:"carrier,omitempty"`
	LabelURL          string             `json:"labelUrl,omitempty"`
	TrackingURL       string             `json:"trackingUrl,omitempty"`
	ShippingCost      string             `json:"shippingCost,omitempty"`
	FulfilledAt       *time.Time         `json:"fulfilledAt,omitempty"`
	CreatedAt         time.Time          `json:"createdAt"`
	SyncedAt          time.Time          `json:"syncedAt"`
}

type eventResponse struct {
	Stage          string    `json:"stage"`
	TrackingNumber string    `json:"trackingNumber,omitempty"`
	LabelURL       string    `json:"labelUrl,omitempty"`
	Carrier        string    `json:"carrier,omitempty"`
	Cost           string    `json:"cost,omitempty"`
	Detail         string    `json:"detail,omitempty"`
	At             time.Time `json:"at"`
}

func newOrderResponse(o *domain.Order) orderResponse {
	a := o.Customer.Address
	resp := orderResponse{
		ID:                o.ID,
		ExternalID:        o.ExternalID,
		OrderNumber:       o.OrderNumber,
		Email:             o.Email,
		FinancialStatus:   o.FinancialStatus,
		FulfillmentStatus: string(o.Status),
		TotalPrice:        o.TotalPrice,
		Currency:          o.Currency,
		TotalWeight:       o.TotalWeightGrams,
		Customer: customerResponse{
			Name:  o.Customer.Name,
			Email: o.Customer.Email,
			Phone: o.Customer.Phone,
			Address: addressResponse{
				Line1: a.Line1, Line2: a.Line2, City: a.City,
				State: a.State, Zip: a.Zip, Country: a.Country,
			},
		},
		LineItems:   make([]lineItemResponse, 0, len(o.LineItems)),
		FulfilledAt: o.FulfilledAt,
		CreatedAt:   o.SourceCreatedAt,
		SyncedAt:    o.UpdatedAt,
	}
	for _, li := range o.LineItems {
		resp.LineItems = append(resp.LineItems, lineItemResponse{
			Name: li.Name, SKU: li.SKU, Quantity: li.Quantity, Grams: li.Grams, Price: li.Price,
		})
	}
	if t := o.Tracking; t != nil {
		resp.TrackingNumber = t.Number
		resp.Carrier = t.Carrier
		resp.LabelURL = t.LabelURL
		resp.TrackingURL = t.URL
		resp.ShippingCost = t.Cost.StringFixed(2)
	}
	return resp
}

func newRatesResponse(q *shipper.Quote) ratesResponse {
	resp := ratesResponse{ShipmentID: q.QuoteID, Rates: make([]rateResponse, 0, len(q.Rates))}
	for _, r := range q.Rates {
		resp.Rates = append(resp.Rates, rateResponse{
			ID:           r.RateID,
			Carrier:      r.Carrier,
			Service:      r.Service,
			Rate:         r.Price.String(),
			Currency:     r.Price.Currency,
			DeliveryDays: r.DeliveryDays,
		})
	}
	return resp
}

func newShipFromBody(s domain.ShipFrom) *shipFromBody {
	return &shipFromBody{
		Company: s.Company, Street1: s.Street1, Street2: s.Street2, City: s.City,
		State: s.State, Zip: s.Zip, Phone: s.Phone, Country: s.Country,
	}
}

func (b *shipFromBody) toDomain() domain.ShipFrom {
	return domain.ShipFrom{
		Company: b.Company, Street1: b.Street1, Street2: b.Street2, City: b.City,
		State: b.State, Zip: b.Zip, Phone: b.Phone, Country: b.Country,
	}
}
