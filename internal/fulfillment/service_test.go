package fulfillment_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/shiplite/internal/domain"
	"github.com/tournevent/shiplite/internal/fulfillment"
	"github.com/tournevent/shiplite/internal/store"
	"github.com/tournevent/shiplite/internal/telemetry"
	"github.com/tournevent/shiplite/internal/tenant"
	"github.com/tournevent/shiplite/pkg/shipper"
	"github.com/tournevent/shiplite/pkg/shipper/easypost"
	"github.com/tournevent/shiplite/pkg/shipper/mock"
	"github.com/tournevent/shiplite/pkg/storefront"
	"github.com/tournevent/shiplite/pkg/storefront/shopify"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const shop = "acme.myshopify.com"

type fixture struct {
	svc      *fulfillment.Service
	deps     fulfillment.Deps
	shipper  *mock.Client
	shopify  *shopify.MockAPIClient
	orders   *store.GormOrderRepository
	settings *store.GormSettingsRepository
	events   *store.GormEventRepository
	metrics  *telemetry.Metrics
	order    *domain.Order
}

type option func(*fulfillment.Deps)

func newFixture(t *testing.T, opts ...option) *fixture {
	t.Helper()
	db, err := store.Open(store.Config{
		Driver: store.DriverSQLite,
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := otelzap.New(zap.NewNop())
	resolver := tenant.NewResolver(store.NewGormCredentialRepository(db.DB, nil))
	require.NoError(t, resolver.Register(context.Background(), shop, "shpat_test", "write_fulfillments"))

	f := &fixture{
		shipper:  mock.New("mock"),
		shopify:  shopify.NewMockAPIClient(),
		orders:   store.NewGormOrderRepository(db.DB),
		settings: store.NewGormSettingsRepository(db.DB),
		events:   store.NewGormEventRepository(db.DB),
		metrics:  telemetry.NewMetrics(prometheus.NewRegistry()),
	}

	f.order, _, err = f.orders.UpsertSynced(context.Background(), domain.Order{
		TenantID:    shop,
		ExternalID:  "5550001",
		OrderNumber: "#1001",
		Customer: domain.Customer{
			Name:    "Jane Doe",
			Email:   "jane@example.com",
			Address: domain.Address{Line1: "1 Infinite Loop", City: "Cupertino", State: "CA", Zip: "95014", Country: "US"},
		},
		LineItems:        []domain.LineItem{{Name: "Mug", Quantity: 2, Grams: 350}, {Name: "Coaster", Quantity: 1, Grams: 100}},
		TotalWeightGrams: 800,
		SourceCreatedAt:  time.Now(),
	})
	require.NoError(t, err)

	deps := fulfillment.Deps{
		Resolver:   resolver,
		Storefront: shopify.NewWithAPIClient(shopify.Config{}, f.shopify, logger, nil),
		Shipper:    f.shipper,
		Orders:     f.orders,
		Settings:   f.settings,
		Journal:    f.events,
		Locker:     fulfillment.NewLocalLocker(),
		Logger:     logger,
		Metrics:    f.metrics,
	}
	for _, o := range opts {
		o(&deps)
	}
	f.deps = deps
	f.svc = fulfillment.NewService(fulfillment.Config{RemoteTimeout: 5 * time.Second}, deps)
	return f
}

func (f *fixture) stages(t *testing.T) []domain.Stage {
	t.Helper()
	events, err := f.events.ListByOrder(context.Background(), shop, f.order.ID)
	require.NoError(t, err)
	out := make([]domain.Stage, len(events))
	for i, e := range events {
		out[i] = e.Stage
	}
	return out
}

func (f *fixture) reload(t *testing.T) *domain.Order {
	t.Helper()
	o, err := f.orders.FindByID(context.Background(), shop, f.order.ID)
	require.NoError(t, err)
	return o
}

// ============================================================================
// GetRates
// ============================================================================

func TestGetRates_SortedByPrice(t *testing.T) {
	logger := otelzap.New(zap.NewNop())
	ep := easypost.NewWithAPIClient(easypost.Config{}, easypost.NewMockAPIClient(), logger, nil)
	f := newFixture(t, func(d *fulfillment.Deps) { d.Shipper = ep })

	quote, err := f.svc.GetRates(context.Background(), shop, f.order.ID, shipper.Parcel{Length: 10, Width: 8, Height: 4, Weight: 16})

	require.NoError(t, err)
	require.Len(t, quote.Rates, 4)
	prices := make([]string, len(quote.Rates))
	for i, r := range quote.Rates {
		prices[i] = r.Price.String()
	}
	assert.Equal(t, []string{"4.20", "7.50", "8.95", "12.40"}, prices)
	assert.NotEmpty(t, quote.QuoteID)
}

func TestGetRates_DefaultsWeightFromOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetRates(context.Background(), shop, f.order.ID, shipper.Parcel{Length: 10, Width: 8, Height: 4})

	require.NoError(t, err)
	sent := f.shipper.LastShipment()
	require.NotNil(t, sent)
	assert.InDelta(t, 800*0.035274, sent.Parcel.Weight, 1e-9)
	assert.Equal(t, "95014", sent.ToAddress.Zip)
	assert.Equal(t, "Jane Doe", sent.ToAddress.Name)
	assert.Equal(t, "#1001", sent.Reference)
}

func TestGetRates_ShipFrom(t *testing.T) {
	t.Run("fallback without settings", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.GetRates(context.Background(), shop, f.order.ID, shipper.Parcel{Weight: 1})

		require.NoError(t, err)
		from := f.shipper.LastShipment().FromAddress
		assert.Equal(t, "123 Main St", from.Street1)
		assert.Equal(t, "10001", from.Zip)
	})

	t.Run("fallback when stored address is unusable", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.settings.Put(context.Background(), domain.ShipFrom{Company: "No Street"})
		require.NoError(t, err)

		_, err = f.svc.GetRates(context.Background(), shop, f.order.ID, shipper.Parcel{Weight: 1})

		require.NoError(t, err)
		assert.Equal(t, "123 Main St", f.shipper.LastShipment().FromAddress.Street1)
	})

	t.Run("configured address", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.settings.Put(context.Background(), domain.ShipFrom{Company: "Dock 9", Street1: "9 Pier Rd", City: "Oakland", State: "CA", Zip: "94607", Country: "US"})
		require.NoError(t, err)

		_, err = f.svc.GetRates(context.Background(), shop, f.order.ID, shipper.Parcel{Weight: 1})

		require.NoError(t, err)
		from := f.shipper.LastShipment().FromAddress
		assert.Equal(t, "9 Pier Rd", from.Street1)
		assert.Equal(t, "Dock 9", from.Company)
	})
}

func TestGetRates_OrderNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetRates(context.Background(), shop, "missing", shipper.Parcel{})

	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	assert.Equal(t, 0, f.shipper.CreateShipmentCalls())
}

func TestGetRates_OtherTenantsOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetRates(context.Background(), "other.myshopify.com", f.order.ID, shipper.Parcel{})

	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestGetRates_ProviderFailure(t *testing.T) {
	f := newFixture(t)
	f.shipper.OnCreateShipment = func(context.Context, *shipper.ShipmentRequest) (*shipper.Quote, error) {
		return nil, shipper.ErrInvalidAddress
	}

	_, err := f.svc.GetRates(context.Background(), shop, f.order.ID, shipper.Parcel{Weight: 1})

	var se *shipper.ShipperError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, shipper.ErrInvalidAddress)
}

// ============================================================================
// PurchaseLabelAndFulfill
// ============================================================================

func TestPurchase_Success(t *testing.T) {
	f := newFixture(t)

	order, err := f.svc.PurchaseLabelAndFulfill(context.Background(), shop, f.order.ID, "shp_1", "rate_1")

	require.NoError(t, err)
	assert.True(t, order.IsFulfilled())
	require.NotNil(t, order.Tracking)
	assert.Equal(t, "9400MOCK00000001", order.Tracking.Number)
	assert.Equal(t, "6.10", order.Tracking.Cost.StringFixed(2))
	assert.NotEmpty(t, order.Tracking.LabelURL)
	assert.NotNil(t, order.FulfilledAt)

	sent := f.shopify.Fulfillments()
	require.Len(t, sent, 1)
	assert.True(t, sent[0].Fulfillment.NotifyCustomer)
	assert.Equal(t, int64(5550002), sent[0].Fulfillment.LineItemsByFulfillmentOrder[0].FulfillmentOrderID)
	assert.Equal(t, "9400MOCK00000001", sent[0].Fulfillment.TrackingInfo.Number)
	assert.Equal(t, "USPS", sent[0].Fulfillment.TrackingInfo.Company)

	assert.Equal(t, []domain.Stage{
		domain.StageQuoted,
		domain.StageLabelPurchased,
		domain.StageStorefrontFulfilled,
		domain.StageLocallyCommitted,
	}, f.stages(t))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Purchases.WithLabelValues(string(domain.StageLocallyCommitted))))
}

type ttlRecorder struct {
	fulfillment.Locker
	ttls []time.Duration
}

func (r *ttlRecorder) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	r.ttls = append(r.ttls, ttl)
	return r.Locker.Acquire(ctx, key, ttl)
}

func TestPurchase_LockOutlivesRemoteCalls(t *testing.T) {
	tests := []struct {
		name string
		cfg  fulfillment.Config
		want time.Duration
	}{
		{"ttl equal to remote timeout is raised", fulfillment.Config{RemoteTimeout: 30 * time.Second, LockTTL: 30 * time.Second}, 100 * time.Second},
		{"long ttl kept", fulfillment.Config{RemoteTimeout: 30 * time.Second, LockTTL: 5 * time.Minute}, 5 * time.Minute},
		{"defaults", fulfillment.Config{}, 2 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := &ttlRecorder{Locker: fulfillment.NewLocalLocker()}
			f.deps.Locker = rec
			svc := fulfillment.NewService(tt.cfg, f.deps)

			_, err := svc.PurchaseLabelAndFulfill(context.Background(), shop, f.order.ID, "shp_1", "rate_1")

			require.NoError(t, err)
			assert.Equal(t, []time.Duration{tt.want}, rec.ttls)
		})
	}
}

func TestPurchase_AlreadyFulfilled(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.PurchaseLabelAndFulfill(context.Background(), shop, f.order.ID, "shp_1", "rate_1")
	require.NoError(t, err)

	_, err = f.svc.PurchaseLabelAndFulfill(context.Background(), shop, f.order.ID, "shp_2", "rate_2")

	assert.ErrorIs(t, err, domain.ErrAlreadyFulfilled)
	assert.Equal(t, 1, f.shipper.BuyLabelCalls())
}

func TestPurchase_OrderNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.PurchaseLabelAndFulfill(context.Background(), shop, "missing", "shp_1", "rate_1")

	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	assert.Equal(t, 0, f.shipper.BuyLabelCalls())
}

func TestPurchase_UnresolvableTenantSpendsNothing(t *testing.T) {
	f := newFixture(t, func(d *fulfillment.Deps) {
		d.Resolver = tenant.NewResolver(&emptyCredentials{})
	})

	_, err := f.svc.PurchaseLabelAndFulfill(context.Background(), shop, f.order.ID, "shp_1", "rate_1")

	var re *tenant.ResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 0, f.shipper.BuyLabelCalls())
}

func TestPurchase_LabelFailure(t *testing.T) {
	f := newFixture(t)
	f.shipper.OnBuyLabel = func(context.Context, *shipper.BuyLabelRequest) (*shipper.LabelPurchase, error) {
		return nil, shipper.NewShipperError("mock", shipper.OpBuyLabel, "RATE_INVALID", "rate expired").WithStatusCode(422)
	}

	_, err := f.svc.PurchaseLabelAndFulfill(context.Background(), shop, f.order.ID, "shp_1", "rate_1")

	var se *shipper.ShipperError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "RATE_INVALID", se.Code)
	assert.False(t, shipper.IsRetryable(err))

	var rerr *fulfillment.ReconciliationNeededError
	assert.False(t, errors.As(err, &rerr), "nothing was bought")
	assert.Empty(t, f.shopify.Fulfillments())
	assert.False(t, f.reload(t).IsFulfilled())
	assert.Equal(t, []domain.Stage{domain.StageQuoted, domain.StageLabelFailed}, f.stages(t))
}

func TestPurchase_StorefrontFailureNeedsReconciliation(t *testing.T) {
	f := newFixture(t)
	f.shopify.OnCreateFulfillment = func(context.Context, shopify.Session, *shopify.CreateFulfillmentRequest) (*shopify.FulfillmentResponse, error) {
		return nil, &shopify.APIError{StatusCode: 500, Errors: []byte(`"Internal Server Error"`)}
	}

	_, err := f.svc.PurchaseLabelAndFulfill(context.Background(), shop, f.order.ID, "shp_1", "rate_1")

	var rerr *fulfillment.ReconciliationNeededError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, f.order.ID, rerr.OrderID)
	assert.Equal(t, domain.StageLabelPurchased, rerr.Stage)
	assert.Equal(t, "9400MOCK00000001", rerr.TrackingNumber)
	assert.NotEmpty(t, rerr.LabelURL)
	assert.NotEmpty(t, rerr.TrackingURL)
	assert.True(t, decimal.RequireFromString("6.10").Equal(rerr.Cost))

	var sfe *storefront.StorefrontError
	require.ErrorAs(t, err, &sfe)
	assert.Equal(t, 500, sfe.StatusCode)

	after := f.reload(t)
	assert.False(t, after.IsFulfilled())
	assert.Nil(t, after.Tracking)
	assert.Equal(t, 1, f.shipper.BuyLabelCalls())
	assert.Equal(t, []domain.Stage{domain.StageQuoted, domain.StageLabelPurchased, domain.StageReconciliationNeeded}, f.stages(t))
}

func TestPurchase_NoOpenFulfillmentOrder(t *testing.T) {
	tests := []struct {
		name     string
		statuses []string
	}{
		{name: "none", statuses: []string{}},
		{name: "closed only", statuses: []string{"cancelled", "closed"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.shopify.OnListFulfillmentOrders = func(_ context.Context, _ shopify.Session, orderID string) (*shopify.FulfillmentOrdersResponse, error) {
				resp := &shopify.FulfillmentOrdersResponse{}
				for i, s := range tt.statuses {
					resp.FulfillmentOrders = append(resp.FulfillmentOrders, shopify.FulfillmentOrder{ID: int64(i + 1), Status: s})
				}
				return resp, nil
			}

			_, err := f.svc.PurchaseLabelAndFulfill(context.Background(), shop, f.order.ID, "shp_1", "rate_1")

			var rerr *fulfillment.ReconciliationNeededError
			require.ErrorAs(t, err, &rerr)
			assert.NotEmpty(t, rerr.LabelURL)

			var nofo *storefront.NoOpenFulfillmentOrderError
			require.ErrorAs(t, err, &nofo)
			assert.Equal(t, tt.statuses, nofo.Statuses)
			assert.Equal(t, "5550001", nofo.OrderID)

			assert.Empty(t, f.shopify.Fulfillments())
			assert.False(t, f.reload(t).IsFulfilled())
		})
	}
}

func TestPurchase_InProgressFulfillmentOrderAccepted(t *testing.T) {
	f := newFixture(t)
	f.shopify.OnListFulfillmentOrders = func(context.Context, shopify.Session, string) (*shopify.FulfillmentOrdersResponse, error) {
		return &shopify.FulfillmentOrdersResponse{FulfillmentOrders: []shopify.FulfillmentOrder{
			{ID: 11, Status: "closed"},
			{ID: 12, Status: "in_progress"},
			{ID: 13, Status: "open"},
		}}, nil
	}

	_, err := f.svc.PurchaseLabelAndFulfill(context.Background(), shop, f.order.ID, "shp_1", "rate_1")

	require.NoError(t, err)
	sent := f.shopify.Fulfillments()
	require.Len(t, sent, 1)
	assert.Equal(t, int64(12), sent[0].Fulfillment.LineItemsByFulfillmentOrder[0].FulfillmentOrderID)
}

func TestPurchase_LocalCommitLost(t *testing.T) {
	f := newFixture(t)
	f.svc = fulfillment.NewService(fulfillment.Config{}, fulfillment.Deps{
		Resolver:   tenant.NewResolver(&staticCredentials{}),
		Storefront: shopify.NewWithAPIClient(shopify.Config{}, f.shopify, otelzap.New(zap.NewNop()), nil),
		Shipper:    f.shipper,
		Orders:     &losingOrderStore{GormOrderRepository: f.orders},
		Settings:   f.settings,
		Journal:    f.events,
		Logger:     otelzap.New(zap.NewNop()),
	})

	_, err := f.svc.PurchaseLabelAndFulfill(context.Background(), shop, f.order.ID, "shp_1", "rate_1")

	var rerr *fulfillment.ReconciliationNeededError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, domain.StageStorefrontFulfilled, rerr.Stage)
	assert.ErrorIs(t, err, domain.ErrAlreadyFulfilled)
}

func TestPurchase_ConcurrentBuysOneLabel(t *testing.T) {
	f := newFixture(t)
	entered := make(chan struct{})
	unblock := make(chan struct{})
	var once sync.Once
	f.shipper.OnBuyLabel = func(ctx context.Context, req *shipper.BuyLabelRequest) (*shipper.LabelPurchase, error) {
		once.Do(func() { close(entered) })
		<-unblock
		return &shipper.LabelPurchase{
			TrackingNumber: "1ZONLY",
			Carrier:        "UPS",
			LabelURL:       "https://labels/only.pdf",
			Price:          shipper.Money{Amount: decimal.RequireFromString("8.95"), Currency: "USD"},
		}, nil
	}

	firstErr := make(chan error, 1)
	go func() {
		_, err := f.svc.PurchaseLabelAndFulfill(context.Background(), shop, f.order.ID, "shp_1", "rate_1")
		firstErr <- err
	}()
	<-entered

	_, err := f.svc.PurchaseLabelAndFulfill(context.Background(), shop, f.order.ID, "shp_1", "rate_1")
	assert.ErrorIs(t, err, fulfillment.ErrPurchaseInProgress)

	close(unblock)
	require.NoError(t, <-firstErr)

	_, err = f.svc.PurchaseLabelAndFulfill(context.Background(), shop, f.order.ID, "shp_1", "rate_1")
	assert.ErrorIs(t, err, domain.ErrAlreadyFulfilled)
	assert.Equal(t, 1, f.shipper.BuyLabelCalls())
}

func TestPurchase_CallerCancellationAfterPurchase(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.shipper.OnBuyLabel = func(callCtx context.Context, req *shipper.BuyLabelRequest) (*shipper.LabelPurchase, error) {
		cancel()
		return &shipper.LabelPurchase{
			TrackingNumber: "1ZCANCEL",
			Carrier:        "USPS",
			LabelURL:       "https://labels/cancel.pdf",
			Price:          shipper.Money{Amount: decimal.RequireFromString("4.20"), Currency: "USD"},
		}, callCtx.Err()
	}

	order, err := f.svc.PurchaseLabelAndFulfill(ctx, shop, f.order.ID, "shp_1", "rate_1")

	require.NoError(t, err)
	assert.Equal(t, "1ZCANCEL", order.Tracking.Number)
	assert.Len(t, f.shopify.Fulfillments(), 1)
}

func TestEvents(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.PurchaseLabelAndFulfill(context.Background(), shop, f.order.ID, "shp_1", "rate_1")
	require.NoError(t, err)

	events, err := f.svc.Events(context.Background(), shop, f.order.ID)
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, "9400MOCK00000001", events[1].TrackingNumber)
	assert.Equal(t, "6.10", events[1].Cost)

	_, err = f.svc.Events(context.Background(), "other.myshopify.com", f.order.ID)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

// ============================================================================
// Test doubles
// ============================================================================

type emptyCredentials struct{}

func (emptyCredentials) FindByTenant(context.Context, string) (*domain.Credential, error) {
	return nil, domain.ErrCredentialNotFound
}

func (emptyCredentials) Upsert(context.Context, domain.Credential) error { return nil }

type staticCredentials struct{}

func (staticCredentials) FindByTenant(_ context.Context, id string) (*domain.Credential, error) {
	return &domain.Credential{TenantID: id, AccessToken: "tok", Active: true}, nil
}

func (staticCredentials) Upsert(context.Context, domain.Credential) error { return nil }

// losingOrderStore loses the conditional commit to a concurrent writer.
type losingOrderStore struct {
	*store.GormOrderRepository
}

func (losingOrderStore) CompleteFulfillment(context.Context, string, string, domain.Tracking, time.Time) (*domain.Order, error) {
	return nil, domain.ErrAlreadyFulfilled
}
