package store

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tournevent/shiplite/internal/domain"
)

type credentialRecord struct {
	ID          uint      `gorm:"primaryKey"`
	TenantID    string    `gorm:"column:tenant_id;size:255;not null;uniqueIndex"`
	AccessToken string    `gorm:"column:access_token;type:text;not null"`
	Scope       string    `gorm:"column:scope;size:1024"`
	Active      bool      `gorm:"column:active;not null"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (credentialRecord) TableName() string { return "credentials" }

type lineItemRecord struct {
	Name     string `json:"name"`
	SKU      string `json:"sku,omitempty"`
	Quantity int    `json:"quantity"`
	Grams    int64  `json:"grams"`
	Price    string `json:"price,omitempty"`
}

type orderRecord struct {
	ID                string           `gorm:"column:id;primaryKey;size:36"`
	TenantID          string           `gorm:"column:tenant_id;size:255;not null;uniqueIndex:idx_orders_tenant_external;index"`
	ExternalID        string           `gorm:"column:external_id;size:64;not null;uniqueIndex:idx_orders_tenant_external"`
	OrderNumber       string           `gorm:"column:order_number;size:64"`
	Email             string           `gorm:"column:email;size:255"`
	FinancialStatus   string           `gorm:"column:financial_status;size:32"`
	TotalPrice        string           `gorm:"column:total_price;size:32"`
	Currency          string           `gorm:"column:currency;size:8"`
	CustomerName      string           `gorm:"column:customer_name;size:255"`
	CustomerEmail     string           `gorm:"column:customer_email;size:255"`
	CustomerPhone     string           `gorm:"column:customer_phone;size:64"`
	AddressLine1      string           `gorm:"column:address_line1;size:255"`
	AddressLine2      string           `gorm:"column:address_line2;size:255"`
	AddressCity       string           `gorm:"column:address_city;size:128"`
	AddressState      string           `gorm:"column:address_state;size:64"`
	AddressZip        string           `gorm:"column:address_zip;size:32"`
	AddressCountry    string           `gorm:"column:address_country;size:64"`
	LineItems         []lineItemRecord `gorm:"column:line_items;type:text;serializer:json"`
	TotalWeightGrams  int64            `gorm:"column:total_weight_grams"`
	FulfillmentStatus string           `gorm:"column:fulfillment_status;size:16;not null;index"`
	TrackingNumber    *string          `gorm:"column:tracking_number;size:128"`
	Carrier           *string          `gorm:"column:carrier;size:64"`
	LabelURL          *string          `gorm:"column:label_url;type:text"`
	TrackingURL       *string          `gorm:"column:tracking_url;type:text"`
	ShippingCost      *string          `gorm:"column:shipping_cost;size:32"`
	FulfilledAt       *time.Time       `gorm:"column:fulfilled_at"`
	SourceCreatedAt   time.Time        `gorm:"column:source_created_at;index"`
	CreatedAt         time.Time        `gorm:"column:created_at"`
	UpdatedAt         time.Time        `gorm:"column:updated_at"`
}

func (orderRecord) TableName() string { return "orders" }

// descriptiveColumns are the only columns a sync may overwrite.
var descriptiveColumns = []string{
	"order_number", "email", "financial_status", "total_price", "currency",
	"customer_name", "customer_email", "customer_phone",
	"address_line1", "address_line2", "address_city", "address_state", "address_zip", "address_country",
	"line_items", "total_weight_grams", "source_created_at", "updated_at",
}

func orderFromDomain(o domain.Order) orderRecord {
	r := orderRecord{
		ID:                o.ID,
		TenantID:          o.TenantID,
		ExternalID:        o.ExternalID,
		OrderNumber:       o.OrderNumber,
		Email:             o.Email,
		FinancialStatus:   o.FinancialStatus,
		TotalPrice:        o.TotalPrice,
		Currency:          o.Currency,
		CustomerName:      o.Customer.Name,
		CustomerEmail:     o.Customer.Email,
		CustomerPhone:     o.Customer.Phone,
		AddressLine1:      o.Customer.Address.Line1,
		AddressLine2:      o.Customer.Address.Line2,
		AddressCity:       o.Customer.Address.City,
		AddressState:      o.Customer.Address.State,
		AddressZip:        o.Customer.Address.Zip,
		AddressCountry:    o.Customer.Address.Country,
		LineItems:         make([]lineItemRecord, 0, len(o.LineItems)),
		TotalWeightGrams:  o.TotalWeightGrams,
		FulfillmentStatus: string(o.Status),
		FulfilledAt:       o.FulfilledAt,
		SourceCreatedAt:   o.SourceCreatedAt,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
	for _, li := range o.LineItems {
		r.LineItems = append(r.LineItems, lineItemRecord(li))
	}
	if o.Tracking != nil {
		cost := o.Tracking.Cost.StringFixed(2)
		r.TrackingNumber = &o.Tracking.Number
		r.Carrier = &o.Tracking.Carrier
		r.LabelURL = &o.Tracking.LabelURL
		r.TrackingURL = &o.Tracking.URL
		r.ShippingCost = &cost
	}
	return r
}

func (r *orderRecord) toDomain() *domain.Order {
	o := &domain.Order{
		ID:              r.ID,
		TenantID:        r.TenantID,
		ExternalID:      r.ExternalID,
		OrderNumber:     r.OrderNumber,
		Email:           r.Email,
		FinancialStatus: r.FinancialStatus,
		TotalPrice:      r.TotalPrice,
		Currency:        r.Currency,
		Customer: domain.Customer{
			Name:  r.CustomerName,
			Email: r.CustomerEmail,
			Phone: r.CustomerPhone,
			Address: domain.Address{
				Line1:   r.AddressLine1,
				Line2:   r.AddressLine2,
				City:    r.AddressCity,
				State:   r.AddressState,
				Zip:     r.AddressZip,
				Country: r.AddressCountry,
			},
		},
		LineItems:        make([]domain.LineItem, 0, len(r.LineItems)),
		TotalWeightGrams: r.TotalWeightGrams,
		Status:           domain.FulfillmentStatus(r.FulfillmentStatus),
		FulfilledAt:      r.FulfilledAt,
		SourceCreatedAt:  r.SourceCreatedAt,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	for _, li := range r.LineItems {
		o.LineItems = append(o.LineItems, domain.LineItem(li))
	}
	if r.TrackingNumber != nil {
		o.Tracking = &domain.Tracking{
			Number:   *r.TrackingNumber,
			Carrier:  deref(r.Carrier),
			LabelURL: deref(r.LabelURL),
			URL:      deref(r.TrackingURL),
		}
		if r.ShippingCost != nil {
			o.Tracking.Cost, _ = decimal.NewFromString(*r.ShippingCost)
		}
	}
	return o
}

type settingsRecord struct {
	ID        uint      `gorm:"primaryKey"`
	Company   string    `gorm:"column:company;size:255"`
	Street1   string    `gorm:"column:street1;size:255"`
	Street2   string    `gorm:"column:street2;size:255"`
	City      string    `gorm:"column:city;size:128"`
	State     string    `gorm:"column:state;size:64"`
	Zip       string    `gorm:"column:zip;size:32"`
	Phone     string    `gorm:"column:phone;size:64"`
	Country   string    `gorm:"column:country;size:64"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (settingsRecord) TableName() string { return "settings" }

func (r *settingsRecord) toDomain() domain.ShipFrom {
	return domain.ShipFrom{
		Company: r.Company,
		Street1: r.Street1,
		Street2: r.Street2,
		City:    r.City,
		State:   r.State,
		Zip:     r.Zip,
		Phone:   r.Phone,
		Country: r.Country,
	}
}

type eventRecord struct {
	ID             uint      `gorm:"primaryKey"`
	OrderID        string    `gorm:"column:order_id;size:36;not null;index"`
	TenantID       string    `gorm:"column:tenant_id;size:255;not null"`
	Stage          string    `gorm:"column:stage;size:32;not null"`
	TrackingNumber string    `gorm:"column:tracking_number;size:128"`
	LabelURL       string    `gorm:"column:label_url;type:text"`
	Carrier        string    `gorm:"column:carrier;size:64"`
	Cost           string    `gorm:"column:cost;size:32"`
	Detail         string    `gorm:"column:detail;type:text"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

func (eventRecord) TableName() string { return "fulfillment_events" }

func (r *eventRecord) toDomain() domain.FulfillmentEvent {
	return domain.FulfillmentEvent{
		ID:             r.ID,
		OrderID:        r.OrderID,
		TenantID:       r.TenantID,
		Stage:          domain.Stage(r.Stage),
		TrackingNumber: r.TrackingNumber,
		LabelURL:       r.LabelURL,
		Carrier:        r.Carrier,
		Cost:           r.Cost,
		Detail:         r.Detail,
		CreatedAt:      r.CreatedAt,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
