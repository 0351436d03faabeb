// Package shopify provides integration with the Shopify Admin REST API.
package shopify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tournevent/shiplite/pkg/storefront"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const (
	platformName = "shopify"
	pageLimit    = 250
	maxPages     = 200
)

// Config holds Shopify configuration.
type Config struct {
	APIVersion string
	BaseURL    string // optional override of https://{shop}
	Timeout    time.Duration
	UseMock    bool
}

// Client is the Shopify storefront client.
// It implements storefront.Storefront and delegates API calls to the
// underlying APIClient (mock or HTTP).
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new Shopify client.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient

	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			APIVersion: cfg.APIVersion,
			BaseURL:    cfg.BaseURL,
			Timeout:    cfg.Timeout,
		})
	}

	return NewWithAPIClient(cfg, apiClient, logger, tracer)
}

// NewWithAPIClient creates a new Shopify client with a custom API client.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(platformName)
	}
	return &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
		tracer:    tracer,
	}
}

// Name returns the platform name.
func (c *Client) Name() string {
	return platformName
}

// ListUnfulfilledOrders returns all open, paid, unshipped orders, following
// Link-header pagination until no next page remains.
func (c *Client) ListUnfulfilledOrders(ctx context.Context, creds storefront.Credentials) ([]storefront.Order, error) {
	ctx, span := c.tracer.Start(ctx, "shopify.ListUnfulfilledOrders", trace.WithAttributes(
		attribute.String("shopify.shop", creds.Shop),
	))
	defer span.End()

	session := Session{Shop: creds.Shop, AccessToken: creds.AccessToken}
	req := &ListOrdersRequest{
		Status:            "open",
		FinancialStatus:   "paid",
		FulfillmentStatus: "unshipped",
		Limit:             pageLimit,
	}

	var orders []storefront.Order
	for page := 1; ; page++ {
		if page > maxPages {
			return nil, c.fail(ctx, span, storefront.OpListOrders, fmt.Errorf("pagination exceeded %d pages", maxPages))
		}

		resp, err := c.apiClient.ListOrders(ctx, session, req)
		if err != nil {
			return nil, c.fail(ctx, span, storefront.OpListOrders, err)
		}
		for _, o := range resp.Orders {
			orders = append(orders, orderToStorefront(o))
		}

		c.logger.Ctx(ctx).Debug("Fetched Shopify orders page",
			zap.String("shop", creds.Shop),
			zap.Int("page", page),
			zap.Int("count", len(resp.Orders)),
		)

		if resp.NextPageInfo == "" {
			break
		}
		req = &ListOrdersRequest{Limit: pageLimit, PageInfo: resp.NextPageInfo}
	}

	span.SetAttributes(attribute.Int("shopify.order_count", len(orders)))
	c.logger.Ctx(ctx).Info("Listed unfulfilled Shopify orders",
		zap.String("shop", creds.Shop),
		zap.Int("count", len(orders)),
	)
	return orders, nil
}

// ListFulfillmentOrders returns the fulfillment orders attached to an order.
func (c *Client) ListFulfillmentOrders(ctx context.Context, creds storefront.Credentials, orderID string) ([]storefront.FulfillmentOrder, error) {
	orderID = storefront.NormalizeID(orderID)
	ctx, span := c.tracer.Start(ctx, "shopify.ListFulfillmentOrders", trace.WithAttributes(
		attribute.String("shopify.shop", creds.Shop),
		attribute.String("shopify.order_id", orderID),
	))
	defer span.End()

	resp, err := c.apiClient.ListFulfillmentOrders(ctx, Session{Shop: creds.Shop, AccessToken: creds.AccessToken}, orderID)
	if err != nil {
		return nil, c.fail(ctx, span, storefront.OpListFulfillmentOrders, err)
	}

	fos := make([]storefront.FulfillmentOrder, 0, len(resp.FulfillmentOrders))
	for _, fo := range resp.FulfillmentOrders {
		out := storefront.FulfillmentOrder{
			ID:      strconv.FormatInt(fo.ID, 10),
			OrderID: strconv.FormatInt(fo.OrderID, 10),
			Status:  fo.Status,
		}
		if fo.DeliveryMethod != nil {
			out.DeliveryMethod = fo.DeliveryMethod.MethodType
		}
		fos = append(fos, out)
	}
	return fos, nil
}

// CreateFulfillment fulfills an entire fulfillment order with tracking details.
func (c *Client) CreateFulfillment(ctx context.Context, creds storefront.Credentials, req *storefront.FulfillmentRequest) (*storefront.Fulfillment, error) {
	foID := storefront.NormalizeID(req.FulfillmentOrderID)
	ctx, span := c.tracer.Start(ctx, "shopify.CreateFulfillment", trace.WithAttributes(
		attribute.String("shopify.shop", creds.Shop),
		attribute.String("shopify.fulfillment_order_id", foID),
	))
	defer span.End()

	id, err := strconv.ParseInt(foID, 10, 64)
	if err != nil {
		return nil, c.fail(ctx, span, storefront.OpCreateFulfillment, fmt.Errorf("invalid fulfillment order id %q", req.FulfillmentOrderID))
	}

	c.logger.Ctx(ctx).Info("Creating Shopify fulfillment",
		zap.String("shop", creds.Shop),
		zap.String("fulfillment_order_id", foID),
		zap.String("tracking_number", req.Tracking.Number),
		zap.Bool("notify_customer", req.NotifyCustomer),
	)

	resp, err := c.apiClient.CreateFulfillment(ctx, Session{Shop: creds.Shop, AccessToken: creds.AccessToken}, &CreateFulfillmentRequest{
		Fulfillment: FulfillmentInput{
			LineItemsByFulfillmentOrder: []FulfillmentOrderRef{{FulfillmentOrderID: id}},
			TrackingInfo: TrackingInfo{
				Number:  req.Tracking.Number,
				Company: req.Tracking.Company,
				URL:     req.Tracking.URL,
			},
			NotifyCustomer: req.NotifyCustomer,
		},
	})
	if err != nil {
		return nil, c.fail(ctx, span, storefront.OpCreateFulfillment, err)
	}

	return &storefront.Fulfillment{
		ID:             strconv.FormatInt(resp.Fulfillment.ID, 10),
		Status:         resp.Fulfillment.Status,
		TrackingNumber: resp.Fulfillment.TrackingNumber,
	}, nil
}

func (c *Client) fail(ctx context.Context, span trace.Span, op string, err error) error {
	serr := toStorefrontError(op, err)
	span.RecordError(serr)
	span.SetStatus(codes.Error, serr.Code)
	c.logger.Ctx(ctx).Error("Shopify API error",
		zap.String("operation", op),
		zap.Int("status_code", serr.StatusCode),
		zap.Error(err),
	)
	return serr
}

// ============================================================================
// Conversion Helpers
// ============================================================================

func orderToStorefront(o Order) storefront.Order {
	out := storefront.Order{
		ID:              strconv.FormatInt(o.ID, 10),
		Name:            o.Name,
		Email:           o.Email,
		Phone:           o.Phone,
		FinancialStatus: o.FinancialStatus,
		TotalPrice:      o.TotalPrice,
		Currency:        o.Currency,
		TotalWeight:     o.TotalWeight,
		CreatedAt:       o.CreatedAt,
		ShippingAddress: addressToStorefront(o.ShippingAddress),
		BillingAddress:  addressToStorefront(o.BillingAddress),
		LineItems:       make([]storefront.LineItem, 0, len(o.LineItems)),
	}
	if o.ID == 0 && o.AdminGraphQLAPIID != "" {
		out.ID = storefront.NormalizeID(o.AdminGraphQLAPIID)
	}
	if o.FulfillmentStatus != nil {
		out.FulfillmentStatus = *o.FulfillmentStatus
	}
	if o.Customer != nil {
		out.Customer = &storefront.Customer{
			FirstName: o.Customer.FirstName,
			LastName:  o.Customer.LastName,
			Email:     o.Customer.Email,
			Phone:     o.Customer.Phone,
		}
	}
	for _, li := range o.LineItems {
		out.LineItems = append(out.LineItems, storefront.LineItem{
			ID:       strconv.FormatInt(li.ID, 10),
			Name:     li.Name,
			SKU:      li.SKU,
			Quantity: li.Quantity,
			Grams:    li.Grams,
			Price:    li.Price,
		})
	}
	return out
}

func addressToStorefront(a *Address) *storefront.Address {
	if a == nil {
		return nil
	}
	return &storefront.Address{
		Name:      a.Name,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Company:   a.Company,
		Address1:  a.Address1,
		Address2:  a.Address2,
		City:      a.City,
		Province:  firstNonEmpty(a.ProvinceCode, a.Province),
		Zip:       a.Zip,
		Country:   firstNonEmpty(a.CountryCode, a.Country),
		Phone:     a.Phone,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func toStorefrontError(op string, err error) *storefront.StorefrontError {
	var serr *storefront.StorefrontError
	if errors.As(err, &serr) {
		return serr
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return storefront.NewStorefrontError(platformName, op, apiErr.StatusCode, apiErr.Message(), nil)
	}
	return storefront.NewStorefrontError(platformName, op, 0, "request failed", err)
}

// Ensure Client implements storefront.Storefront interface
var _ storefront.Storefront = (*Client)(nil)
