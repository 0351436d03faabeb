// Package easypost provides integration with the EasyPost shipping API.
package easypost

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tournevent/shiplite/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const providerName = "easypost"

// Config holds EasyPost configuration.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	UseMock bool // When true, uses mock API client
}

// Client is the EasyPost shipper client.
// It implements shipper.Shipper and delegates API calls to the
// underlying APIClient (mock or HTTP).
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new EasyPost client.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient

	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		})
	}

	return NewWithAPIClient(cfg, apiClient, logger, tracer)
}

// NewWithAPIClient creates a new EasyPost client with a custom API client.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(providerName)
	}
	return &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
		tracer:    tracer,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return providerName
}

// CreateShipment registers a shipment with EasyPost and returns its rates
// in the order EasyPost listed them.
func (c *Client) CreateShipment(ctx context.Context, req *shipper.ShipmentRequest) (*shipper.Quote, error) {
	ctx, span := c.tracer.Start(ctx, "easypost.CreateShipment")
	defer span.End()

	c.logger.Ctx(ctx).Info("Creating EasyPost shipment",
		zap.String("reference", req.Reference),
		zap.String("to_zip", req.ToAddress.Zip),
		zap.String("from_zip", req.FromAddress.Zip),
		zap.Float64("weight_oz", req.Parcel.Weight),
	)

	apiResp, err := c.apiClient.CreateShipment(ctx, &CreateShipmentRequest{
		Shipment: ShipmentInput{
			ToAddress:   addressToAPI(req.ToAddress),
			FromAddress: addressToAPI(req.FromAddress),
			Parcel:      parcelToAPI(req.Parcel),
			Reference:   req.Reference,
		},
	})
	if err != nil {
		return nil, c.fail(ctx, span, shipper.OpCreateShipment, err)
	}

	for _, msg := range apiResp.Messages {
		c.logger.Ctx(ctx).Warn("EasyPost carrier message",
			zap.String("shipment_id", apiResp.ID),
			zap.String("carrier", msg.Carrier),
			zap.String("message", msg.Message),
		)
	}

	quote, err := shipmentToQuote(apiResp)
	if err != nil {
		return nil, c.fail(ctx, span, shipper.OpCreateShipment, err)
	}
	span.SetAttributes(
		attribute.String("easypost.shipment_id", quote.QuoteID),
		attribute.Int("easypost.rate_count", len(quote.Rates)),
	)
	return quote, nil
}

// BuyLabel purchases postage for the selected rate.
func (c *Client) BuyLabel(ctx context.Context, req *shipper.BuyLabelRequest) (*shipper.LabelPurchase, error) {
	ctx, span := c.tracer.Start(ctx, "easypost.BuyLabel", trace.WithAttributes(
		attribute.String("easypost.shipment_id", req.QuoteID),
		attribute.String("easypost.rate_id", req.RateID),
	))
	defer span.End()

	c.logger.Ctx(ctx).Info("Buying EasyPost label",
		zap.String("shipment_id", req.QuoteID),
		zap.String("rate_id", req.RateID),
	)

	apiResp, err := c.apiClient.BuyShipment(ctx, req.QuoteID, &BuyShipmentRequest{Rate: RateRef{ID: req.RateID}})
	if err != nil {
		return nil, c.fail(ctx, span, shipper.OpBuyLabel, err)
	}

	purchase, err := shipmentToPurchase(apiResp)
	if err != nil {
		return nil, c.fail(ctx, span, shipper.OpBuyLabel, err)
	}

	c.logger.Ctx(ctx).Info("EasyPost label purchased",
		zap.String("shipment_id", purchase.QuoteID),
		zap.String("tracking_number", purchase.TrackingNumber),
		zap.String("carrier", purchase.Carrier),
		zap.String("cost", purchase.Price.String()),
	)
	return purchase, nil
}

func (c *Client) fail(ctx context.Context, span trace.Span, op string, err error) error {
	serr := toShipperError(op, err)
	span.RecordError(serr)
	span.SetStatus(codes.Error, serr.Code)
	c.logger.Ctx(ctx).Error("EasyPost API error",
		zap.String("operation", op),
		zap.String("code", serr.Code),
		zap.Int("status_code", serr.StatusCode),
		zap.Error(err),
	)
	return serr
}

// ============================================================================
// Conversion Helpers
// ============================================================================

func addressToAPI(addr shipper.Address) AddressInput {
	return AddressInput{
		Name:    addr.Name,
		Company: addr.Company,
		Street1: addr.Street1,
		Street2: addr.Street2,
		City:    addr.City,
		State:   addr.State,
		Zip:     addr.Zip,
		Country: addr.Country,
		Phone:   addr.Phone,
		Email:   addr.Email,
	}
}

func parcelToAPI(p shipper.Parcel) ParcelInput {
	return ParcelInput{
		Length: p.Length,
		Width:  p.Width,
		Height: p.Height,
		Weight: p.Weight,
	}
}

func rateToShipper(r Rate) (shipper.RateOption, error) {
	amount, err := decimal.NewFromString(r.Rate)
	if err != nil {
		return shipper.RateOption{}, fmt.Errorf("rate %s: invalid amount %q: %w", r.ID, r.Rate, err)
	}
	opt := shipper.RateOption{
		RateID:  r.ID,
		Carrier: r.Carrier,
		Service: r.Service,
		Price:   shipper.Money{Amount: amount, Currency: r.Currency},
	}
	if r.DeliveryDays != nil {
		opt.DeliveryDays = *r.DeliveryDays
	}
	return opt, nil
}

func shipmentToQuote(s *Shipment) (*shipper.Quote, error) {
	quote := &shipper.Quote{
		QuoteID: s.ID,
		Rates:   make([]shipper.RateOption, 0, len(s.Rates)),
	}
	for _, r := range s.Rates {
		opt, err := rateToShipper(r)
		if err != nil {
			return nil, err
		}
		quote.Rates = append(quote.Rates, opt)
	}
	return quote, nil
}

func shipmentToPurchase(s *Shipment) (*shipper.LabelPurchase, error) {
	if s.PostageLabel == nil || s.PostageLabel.LabelURL == "" || s.TrackingCode == "" {
		return nil, errors.New("purchase response carries no label")
	}
	purchase := &shipper.LabelPurchase{
		QuoteID:        s.ID,
		TrackingNumber: s.TrackingCode,
		LabelURL:       s.PostageLabel.LabelURL,
	}
	if s.Tracker != nil {
		purchase.TrackingURL = s.Tracker.PublicURL
	}
	if s.SelectedRate != nil {
		opt, err := rateToShipper(*s.SelectedRate)
		if err != nil {
			return nil, err
		}
		purchase.Carrier = opt.Carrier
		purchase.Service = opt.Service
		purchase.Price = opt.Price
	}
	return purchase, nil
}

func toShipperError(op string, err error) *shipper.ShipperError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		cause := err
		if sentinel := classify(op, apiErr); sentinel != nil {
			cause = fmt.Errorf("%w: %w", sentinel, err)
		}
		serr := shipper.NewShipperError(providerName, op, apiErr.Code, apiErr.Message).WithCause(cause)
		if apiErr.StatusCode != 0 {
			serr = serr.WithStatusCode(apiErr.StatusCode)
		}
		return serr
	}
	return shipper.Wrap(providerName, op, err)
}

// classify maps an EasyPost error onto a shipper sentinel, if one fits.
func classify(op string, e *APIError) error {
	switch {
	case e.StatusCode == 401 || e.StatusCode == 403:
		return shipper.ErrAuthenticationFailed
	case e.StatusCode == 429:
		return shipper.ErrRateLimitExceeded
	case e.StatusCode >= 500:
		return shipper.ErrServiceUnavailable
	case strings.HasPrefix(e.Code, "ADDRESS."):
		return shipper.ErrInvalidAddress
	case strings.HasPrefix(e.Code, "PARCEL."):
		return shipper.ErrInvalidParcel
	case strings.HasPrefix(e.Code, "SHIPMENT.RATE."):
		return shipper.ErrRateNotFound
	case e.StatusCode == 404 && op == shipper.OpBuyLabel:
		return shipper.ErrQuoteNotFound
	}
	return nil
}

// Ensure Client implements shipper.Shipper interface
var _ shipper.Shipper = (*Client)(nil)
