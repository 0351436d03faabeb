package ordersync_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/shiplite/internal/domain"
	"github.com/tournevent/shiplite/internal/ordersync"
	"github.com/tournevent/shiplite/internal/store"
	"github.com/tournevent/shiplite/internal/telemetry"
	"github.com/tournevent/shiplite/internal/tenant"
	"github.com/tournevent/shiplite/pkg/storefront"
	"github.com/tournevent/shiplite/pkg/storefront/shopify"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const shop = "acme.myshopify.com"

// fakeStorefront serves a fixed listing.
type fakeStorefront struct {
	orders  []storefront.Order
	listErr error
	calls   int
}

func (f *fakeStorefront) Name() string { return "fake" }

func (f *fakeStorefront) ListUnfulfilledOrders(_ context.Context, creds storefront.Credentials) ([]storefront.Order, error) {
	f.calls++
	if creds.AccessToken == "" {
		return nil, fmt.Errorf("no token")
	}
	return f.orders, f.listErr
}

func (f *fakeStorefront) ListFulfillmentOrders(context.Context, storefront.Credentials, string) ([]storefront.FulfillmentOrder, error) {
	return nil, nil
}

func (f *fakeStorefront) CreateFulfillment(context.Context, storefront.Credentials, *storefront.FulfillmentRequest) (*storefront.Fulfillment, error) {
	return nil, nil
}

type fixture struct {
	svc     *ordersync.Service
	orders  *store.GormOrderRepository
	metrics *telemetry.Metrics
}

func newFixture(t *testing.T, sf storefront.Storefront) *fixture {
	t.Helper()
	db, err := store.Open(store.Config{
		Driver: store.DriverSQLite,
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	resolver := tenant.NewResolver(store.NewGormCredentialRepository(db.DB, nil))
	require.NoError(t, resolver.Register(context.Background(), shop, "shpat_test", "read_orders"))

	orders := store.NewGormOrderRepository(db.DB)
	metrics := telemetry.NewMetrics(prometheus.NewRegistry())
	return &fixture{
		svc:     ordersync.NewService(resolver, sf, orders, otelzap.New(zap.NewNop()), metrics, nil),
		orders:  orders,
		metrics: metrics,
	}
}

func sampleOrders() []storefront.Order {
	return []storefront.Order{
		{ID: "1001", Name: "#1001", Email: "a@example.com", CreatedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			ShippingAddress: &storefront.Address{Name: "A", Address1: "1 St", Zip: "10001"},
			LineItems:       []storefront.LineItem{{Name: "Mug", Quantity: 1, Grams: 300}}},
		{ID: "1002", Name: "#1002", CreatedAt: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)},
	}
}

func TestSyncOrders_Imports(t *testing.T) {
	sf := &fakeStorefront{orders: sampleOrders()}
	f := newFixture(t, sf)

	res, err := f.svc.SyncOrders(context.Background(), shop)

	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 0, res.Failed)

	stored, err := f.orders.List(context.Background(), shop, domain.StatusUnfulfilled)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "1002", stored[0].ExternalID)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.SyncedOrders.WithLabelValues(shop, "imported")))
}

func TestSyncOrders_TwiceConverges(t *testing.T) {
	sf := &fakeStorefront{orders: sampleOrders()}
	f := newFixture(t, sf)
	ctx := context.Background()

	_, err := f.svc.SyncOrders(ctx, shop)
	require.NoError(t, err)
	res, err := f.svc.SyncOrders(ctx, shop)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Imported)
	stored, err := f.orders.List(ctx, shop, "")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestSyncOrders_KeepsFulfilledOrders(t *testing.T) {
	sf := &fakeStorefront{orders: sampleOrders()}
	f := newFixture(t, sf)
	ctx := context.Background()

	_, err := f.svc.SyncOrders(ctx, shop)
	require.NoError(t, err)

	existing, err := f.orders.FindByExternalID(ctx, shop, "1001")
	require.NoError(t, err)
	tracking := domain.Tracking{Number: "1ZKEEP", Carrier: "UPS", LabelURL: "https://l", Cost: decimal.RequireFromString("8.95")}
	_, err = f.orders.CompleteFulfillment(ctx, shop, existing.ID, tracking, time.Now())
	require.NoError(t, err)

	// the storefront still reports the order as unshipped
	sf.orders[0].Email = "new@example.com"
	_, err = f.svc.SyncOrders(ctx, shop)
	require.NoError(t, err)

	after, err := f.orders.FindByExternalID(ctx, shop, "1001")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFulfilled, after.Status)
	assert.Equal(t, "1ZKEEP", after.Tracking.Number)
	assert.Equal(t, "new@example.com", after.Email)
}

func TestSyncOrders_PerOrderFailureDoesNotAbort(t *testing.T) {
	orders := sampleOrders()
	orders = append(orders, storefront.Order{Name: "#broken"})
	sf := &fakeStorefront{orders: orders}
	f := newFixture(t, sf)

	res, err := f.svc.SyncOrders(context.Background(), shop)

	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "#broken", res.Failures[0].OrderNumber)
	assert.ErrorIs(t, res.Failures[0].Err, domain.ErrInvalidOrder)
}

func TestSyncOrders_ZeroOrders(t *testing.T) {
	f := newFixture(t, &fakeStorefront{})

	res, err := f.svc.SyncOrders(context.Background(), shop)

	require.NoError(t, err)
	assert.Equal(t, 0, res.Imported)
	assert.Equal(t, 0, res.Failed)
}

func TestSyncOrders_ListingFailureAborts(t *testing.T) {
	listErr := storefront.NewStorefrontError("fake", storefront.OpListOrders, 401, "bad token", nil)
	sf := &fakeStorefront{listErr: listErr}
	f := newFixture(t, sf)

	res, err := f.svc.SyncOrders(context.Background(), shop)

	assert.Nil(t, res)
	assert.ErrorIs(t, err, storefront.ErrUnauthorized)
}

func TestSyncOrders_UnknownTenant(t *testing.T) {
	sf := &fakeStorefront{orders: sampleOrders()}
	f := newFixture(t, sf)

	_, err := f.svc.SyncOrders(context.Background(), "stranger.myshopify.com")

	var re *tenant.ResolutionError
	require.ErrorAs(t, err, &re)
	assert.ErrorIs(t, err, tenant.ErrNotRegistered)
	assert.Equal(t, 0, sf.calls, "storefront must not be called without a credential")
}

func TestSyncOrders_ShopifyMock(t *testing.T) {
	sf := shopify.NewWithAPIClient(shopify.Config{}, shopify.NewMockAPIClient(), otelzap.New(zap.NewNop()), nil)
	f := newFixture(t, sf)
	ctx := context.Background()

	res, err := f.svc.SyncOrders(ctx, shop)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)

	billingOnly, err := f.orders.FindByExternalID(ctx, shop, "5550002")
	require.NoError(t, err)
	assert.Equal(t, int64(500), billingOnly.TotalWeightGrams)
	assert.Equal(t, "", billingOnly.Customer.Address.Zip)

	withShipping, err := f.orders.FindByExternalID(ctx, shop, "5550001")
	require.NoError(t, err)
	assert.Equal(t, int64(800), withShipping.TotalWeightGrams)
}
