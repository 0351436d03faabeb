// Package fulfillment quotes shipping rates for stored orders and runs the
// label purchase through to the storefront and the local store.
package fulfillment

import (
	"context"
	"fmt"
	"time"

	"github.com/tournevent/shiplite/internal/domain"
	"github.com/tournevent/shiplite/internal/telemetry"
	"github.com/tournevent/shiplite/pkg/shipper"
	"github.com/tournevent/shiplite/pkg/storefront"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	defaultRemoteTimeout = 30 * time.Second
	defaultLockTTL       = 2 * time.Minute

	// lockMargin is kept beyond the three remote calls made under the lock.
	lockMargin = 10 * time.Second
)

// CredentialResolver resolves the storefront credentials of a tenant.
type CredentialResolver interface {
	Resolve(ctx context.Context, tenantID string) (storefront.Credentials, error)
}

// OrderStore reads orders and commits fulfillments.
type OrderStore interface {
	FindByID(ctx context.Context, tenantID, id string) (*domain.Order, error)
	CompleteFulfillment(ctx context.Context, tenantID, id string, t domain.Tracking, at time.Time) (*domain.Order, error)
}

// SettingsStore provides the ship-from address.
type SettingsStore interface {
	Get(ctx context.Context) (domain.ShipFrom, error)
}

// Journal records purchase stage transitions.
type Journal interface {
	Append(ctx context.Context, e domain.FulfillmentEvent) error
	ListByOrder(ctx context.Context, tenantID, orderID string) ([]domain.FulfillmentEvent, error)
}

// Config tunes the Service.
type Config struct {
	RemoteTimeout time.Duration // per remote call
	// LockTTL is raised to cover three remote calls if set shorter.
	LockTTL time.Duration
}

// Deps are the collaborators of the Service. Metrics and Tracer may be nil.
type Deps struct {
	Resolver   CredentialResolver
	Storefront storefront.Storefront
	Shipper    shipper.Shipper
	Orders     OrderStore
	Settings   SettingsStore
	Journal    Journal
	Locker     Locker
	Logger     *otelzap.Logger
	Metrics    *telemetry.Metrics
	Tracer     trace.Tracer
}

// Service quotes rates and purchases labels.
type Service struct {
	cfg  Config
	deps Deps
}

// NewService creates a new fulfillment Service.
func NewService(cfg Config, deps Deps) *Service {
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = defaultRemoteTimeout
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}
	if minTTL := 3*cfg.RemoteTimeout + lockMargin; cfg.LockTTL < minTTL {
		cfg.LockTTL = minTTL
	}
	if deps.Locker == nil {
		deps.Locker = NewLocalLocker()
	}
	deps.Tracer = telemetry.TracerOrNoop(deps.Tracer, "fulfillment")
	return &Service{cfg: cfg, deps: deps}
}

// GetRates quotes the order's shipment from the configured ship-from address.
// A zero parcel weight is replaced by the order weight in ounces. Rates come
// back cheapest first. Nothing is stored.
func (s *Service) GetRates(ctx context.Context, tenantID, orderID string, parcel shipper.Parcel) (*shipper.Quote, error) {
	ctx, span := s.deps.Tracer.Start(ctx, "fulfillment.GetRates",
		trace.WithAttributes(
			attribute.String("tenant", tenantID),
			attribute.String("order_id", orderID),
		),
	)
	defer span.End()

	order, err := s.deps.Orders.FindByID(ctx, tenantID, orderID)
	if err != nil {
		return nil, spanError(span, err)
	}

	from := s.shipFrom(ctx)
	if parcel.Weight <= 0 {
		parcel.Weight = order.WeightOunces()
	}

	req := &shipper.ShipmentRequest{
		ToAddress:   toAddress(order),
		FromAddress: fromAddress(from),
		Parcel:      parcel,
		Reference:   order.OrderNumber,
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.RemoteTimeout)
	start := time.Now()
	quote, err := s.deps.Shipper.CreateShipment(callCtx, req)
	cancel()
	s.deps.Metrics.RecordRemote(s.deps.Shipper.Name(), shipper.OpCreateShipment, err, time.Since(start).Seconds())
	if err != nil {
		s.deps.Logger.Ctx(ctx).Error("Rate quote failed",
			zap.String("order_id", orderID),
			zap.Error(err),
		)
		return nil, spanError(span, shipper.Wrap(s.deps.Shipper.Name(), shipper.OpCreateShipment, err))
	}

	sorted := &shipper.Quote{QuoteID: quote.QuoteID, Rates: shipper.SortRatesByPrice(quote.Rates)}
	span.SetAttributes(
		attribute.String("quote_id", sorted.QuoteID),
		attribute.Int("rate_count", len(sorted.Rates)),
	)
	s.deps.Logger.Ctx(ctx).Info("Rates quoted",
		zap.String("order_id", orderID),
		zap.String("quote_id", sorted.QuoteID),
		zap.Int("rates", len(sorted.Rates)),
		zap.Float64("weight_oz", parcel.Weight),
	)
	return sorted, nil
}

// PurchaseLabelAndFulfill buys the chosen rate and pushes the tracking to the
// storefront, then marks the order fulfilled locally.
//
// Everything that can be checked without spending money is checked before
// the label is bought. Once it is bought, any failure returns a
// *ReconciliationNeededError and the local order stays unfulfilled.
func (s *Service) PurchaseLabelAndFulfill(ctx context.Context, tenantID, orderID, quoteID, rateID string) (*domain.Order, error) {
	ctx, span := s.deps.Tracer.Start(ctx, "fulfillment.PurchaseLabelAndFulfill",
		trace.WithAttributes(
			attribute.String("tenant", tenantID),
			attribute.String("order_id", orderID),
			attribute.String("quote_id", quoteID),
			attribute.String("rate_id", rateID),
		),
	)
	defer span.End()

	release, err := s.deps.Locker.Acquire(ctx, purchaseKey(tenantID, orderID), s.cfg.LockTTL)
	if err != nil {
		return nil, spanError(span, err)
	}
	defer release()

	order, err := s.deps.Orders.FindByID(ctx, tenantID, orderID)
	if err != nil {
		return nil, spanError(span, err)
	}
	if order.IsFulfilled() {
		return nil, spanError(span, domain.ErrAlreadyFulfilled)
	}
	creds, err := s.deps.Resolver.Resolve(ctx, tenantID)
	if err != nil {
		return nil, spanError(span, err)
	}

	// From here on the caller going away must not strand a paid label.
	ctx = context.WithoutCancel(ctx)
	log := s.deps.Logger.Ctx(ctx)

	s.journal(ctx, order, domain.StageQuoted, nil, fmt.Sprintf("quote %s rate %s", quoteID, rateID))

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.RemoteTimeout)
	start := time.Now()
	label, err := s.deps.Shipper.BuyLabel(callCtx, &shipper.BuyLabelRequest{QuoteID: quoteID, RateID: rateID})
	cancel()
	s.deps.Metrics.RecordRemote(s.deps.Shipper.Name(), shipper.OpBuyLabel, err, time.Since(start).Seconds())
	if err != nil {
		err = shipper.Wrap(s.deps.Shipper.Name(), shipper.OpBuyLabel, err)
		s.journal(ctx, order, domain.StageLabelFailed, nil, err.Error())
		log.Error("Label purchase failed",
			zap.String("order_id", orderID),
			zap.String("rate_id", rateID),
			zap.Error(err),
		)
		return nil, spanError(span, err)
	}

	tracking := domain.Tracking{
		Number:   label.TrackingNumber,
		Carrier:  label.Carrier,
		LabelURL: label.LabelURL,
		URL:      label.TrackingURL,
		Cost:     label.Price.Amount,
	}
	s.journal(ctx, order, domain.StageLabelPurchased, &tracking, label.Service)
	span.SetAttributes(attribute.String("tracking_number", tracking.Number))
	log.Info("Label purchased",
		zap.String("order_id", orderID),
		zap.String("tracking_number", tracking.Number),
		zap.String("carrier", tracking.Carrier),
		zap.String("cost", tracking.Cost.StringFixed(2)),
	)

	reached := domain.StageLabelPurchased
	fail := func(cause error) (*domain.Order, error) {
		rerr := &ReconciliationNeededError{
			OrderID:        order.ID,
			Stage:          reached,
			LabelURL:       tracking.LabelURL,
			TrackingNumber: tracking.Number,
			TrackingURL:    tracking.URL,
			Carrier:        tracking.Carrier,
			Cost:           tracking.Cost,
			Cause:          cause,
		}
		s.journal(ctx, order, domain.StageReconciliationNeeded, &tracking, cause.Error())
		log.Error("Purchased label needs reconciliation",
			zap.String("order_id", order.ID),
			zap.String("external_id", order.ExternalID),
			zap.String("stage", string(reached)),
			zap.String("tracking_number", tracking.Number),
			zap.String("label_url", tracking.LabelURL),
			zap.Error(cause),
		)
		return nil, spanError(span, rerr)
	}

	if err := s.fulfillOnStorefront(ctx, creds, order, tracking); err != nil {
		return fail(err)
	}
	reached = domain.StageStorefrontFulfilled
	s.journal(ctx, order, domain.StageStorefrontFulfilled, &tracking, "")

	committed, err := s.deps.Orders.CompleteFulfillment(ctx, tenantID, order.ID, tracking, time.Now().UTC())
	if err != nil {
		return fail(err)
	}
	s.journal(ctx, order, domain.StageLocallyCommitted, &tracking, "")
	log.Info("Order fulfilled",
		zap.String("order_id", order.ID),
		zap.String("external_id", order.ExternalID),
		zap.String("tracking_number", tracking.Number),
	)
	return committed, nil
}

// fulfillOnStorefront picks the open fulfillment order and fulfills it with
// tracking, notifying the customer.
func (s *Service) fulfillOnStorefront(ctx context.Context, creds storefront.Credentials, order *domain.Order, t domain.Tracking) error {
	externalID := storefront.NormalizeID(order.ExternalID)
	sf := s.deps.Storefront

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.RemoteTimeout)
	start := time.Now()
	fos, err := sf.ListFulfillmentOrders(callCtx, creds, externalID)
	cancel()
	s.deps.Metrics.RecordRemote(sf.Name(), storefront.OpListFulfillmentOrders, err, time.Since(start).Seconds())
	if err != nil {
		return err
	}

	fields := make([]zap.Field, 0, len(fos)+1)
	fields = append(fields, zap.String("external_id", externalID))
	for _, fo := range fos {
		fields = append(fields, zap.String("fulfillment_order_"+fo.ID, fo.Status+"/"+fo.DeliveryMethod))
	}
	s.deps.Logger.Ctx(ctx).Debug("Fulfillment orders", fields...)

	fo, err := storefront.SelectFulfillable(externalID, fos)
	if err != nil {
		return err
	}

	callCtx, cancel = context.WithTimeout(ctx, s.cfg.RemoteTimeout)
	start = time.Now()
	_, err = sf.CreateFulfillment(callCtx, creds, &storefront.FulfillmentRequest{
		FulfillmentOrderID: fo.ID,
		Tracking: storefront.TrackingInfo{
			Number:  t.Number,
			Company: t.Carrier,
			URL:     t.URL,
		},
		NotifyCustomer: true,
	})
	cancel()
	s.deps.Metrics.RecordRemote(sf.Name(), storefront.OpCreateFulfillment, err, time.Since(start).Seconds())
	return err
}

// Events returns the purchase journal of an order, oldest first.
func (s *Service) Events(ctx context.Context, tenantID, orderID string) ([]domain.FulfillmentEvent, error) {
	if _, err := s.deps.Orders.FindByID(ctx, tenantID, orderID); err != nil {
		return nil, err
	}
	return s.deps.Journal.ListByOrder(ctx, tenantID, orderID)
}

func (s *Service) shipFrom(ctx context.Context) domain.ShipFrom {
	from, err := s.deps.Settings.Get(ctx)
	if err != nil {
		s.deps.Logger.Ctx(ctx).Warn("Reading ship-from settings failed, using fallback", zap.Error(err))
		return domain.FallbackShipFrom()
	}
	return from.OrFallback()
}

// journal appends a stage transition. A failed append is logged only; the
// purchase outcome does not depend on it.
func (s *Service) journal(ctx context.Context, order *domain.Order, stage domain.Stage, t *domain.Tracking, detail string) {
	e := domain.FulfillmentEvent{
		OrderID:   order.ID,
		TenantID:  order.TenantID,
		Stage:     stage,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	if t != nil {
		e.TrackingNumber = t.Number
		e.LabelURL = t.LabelURL
		e.Carrier = t.Carrier
		e.Cost = t.Cost.StringFixed(2)
	}
	if stage.Terminal() {
		s.deps.Metrics.RecordPurchase(string(stage))
	}
	if s.deps.Journal == nil {
		return
	}
	if err := s.deps.Journal.Append(ctx, e); err != nil {
		s.deps.Logger.Ctx(ctx).Warn("Writing fulfillment journal failed",
			zap.String("order_id", order.ID),
			zap.String("stage", string(stage)),
			zap.Error(err),
		)
	}
}

func toAddress(o *domain.Order) shipper.Address {
	a := o.Customer.Address
	return shipper.Address{
		Name:    o.Customer.Name,
		Street1: a.Line1,
		Street2: a.Line2,
		City:    a.City,
		State:   a.State,
		Zip:     a.Zip,
		Country: a.Country,
		Phone:   o.Customer.Phone,
		Email:   o.Customer.Email,
	}
}

func fromAddress(f domain.ShipFrom) shipper.Address {
	return shipper.Address{
		Name:    f.Company,
		Company: f.Company,
		Street1: f.Street1,
		Street2: f.Street2,
		City:    f.City,
		State:   f.State,
		Zip:     f.Zip,
		Country: f.Country,
		Phone:   f.Phone,
	}
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
