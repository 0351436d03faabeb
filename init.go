package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tournevent/shiplite/internal/config"
	"github.com/tournevent/shiplite/internal/fulfillment"
	"github.com/tournevent/shiplite/internal/ordersync"
	"github.com/tournevent/shiplite/internal/store"
	"github.com/tournevent/shiplite/internal/telemetry"
	"github.com/tournevent/shiplite/internal/tenant"
	"github.com/tournevent/shiplite/pkg/shipper"
	"github.com/tournevent/shiplite/pkg/shipper/easypost"
	"github.com/tournevent/shiplite/pkg/shipper/mock"
	"github.com/tournevent/shiplite/pkg/storefront/shopify"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// app holds the wired components shared by every command.
type app struct {
	cfg     *config.Config
	logger  *otelzap.Logger
	tracer  trace.Tracer
	metrics *telemetry.Metrics
	db      *store.Database

	resolver    *tenant.Resolver
	orders      *store.GormOrderRepository
	settings    *store.GormSettingsRepository
	events      *store.GormEventRepository
	storefront  *shopify.Client
	shippers    *shipper.Registry
	locker      fulfillment.Locker
	closeLocker func() error

	shutdownTracer func(context.Context) error
}

func initTracer(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return func(context.Context) error { return nil }, nil
	}

	_, shutdown, err := telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.Attributes()...)
	return shutdown, err
}

func gormLogLevel(level string) gormlogger.LogLevel {
	if strings.EqualFold(level, "debug") {
		return gormlogger.Info
	}
	return gormlogger.Silent
}

func initShipperRegistry(cfg *config.Config, logger *otelzap.Logger, tracer trace.Tracer) *shipper.Registry {
	registry := shipper.NewRegistry()

	registry.Register(easypost.New(easypost.Config{
		APIKey:  cfg.EasyPostAPIKey,
		BaseURL: cfg.EasyPostBaseURL,
		Timeout: cfg.RemoteTimeout,
		UseMock: cfg.EasyPostUseMock,
	}, logger, tracer))

	// offline provider for demos
	registry.Register(mock.New("mock"))

	return registry
}

func initLocker(ctx context.Context, cfg *config.Config, logger *otelzap.Logger) (fulfillment.Locker, func() error, error) {
	if cfg.RedisURL == "" {
		logger.Info("Using in-process purchase lock")
		return fulfillment.NewLocalLocker(), func() error { return nil }, nil
	}
	client, err := fulfillment.DialRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Using Redis purchase lock")
	return fulfillment.NewRedisLocker(client, ""), client.Close, nil
}

// newApp loads configuration and wires storage, telemetry and remote clients.
// withLocker is false for commands that never purchase labels.
func newApp(ctx context.Context, withLocker bool) (_ *app, err error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:            cfg,
		logger:         logger,
		closeLocker:    func() error { return nil },
		shutdownTracer: func(context.Context) error { return nil },
	}

	defer func() {
		if err != nil {
			a.Close(ctx)
		}
	}()

	shutdown, terr := initTracer(ctx, cfg)
	if terr != nil {
		logger.Warn("Failed to initialize tracer", zap.Error(terr))
	} else {
		a.shutdownTracer = shutdown
	}
	a.tracer = otel.Tracer(cfg.ServiceName)
	a.metrics = telemetry.NewMetrics(prometheus.DefaultRegisterer)

	sealer, err := store.NewSealer(cfg.CredentialKey)
	if err != nil {
		return nil, fmt.Errorf("credential key: %w", err)
	}
	if !sealer.Enabled() {
		logger.Warn("CREDENTIAL_KEY not set, shop tokens are stored in plaintext")
	}

	a.db, err = store.Open(store.Config{
		Driver:   strings.ToLower(cfg.DatabaseDriver),
		DSN:      cfg.DatabaseURL,
		LogLevel: gormLogLevel(cfg.LogLevel),
		Tracing:  cfg.OTELEnabled,
	})
	if err != nil {
		return nil, err
	}

	a.resolver = tenant.NewResolver(store.NewGormCredentialRepository(a.db.DB, sealer))
	a.orders = store.NewGormOrderRepository(a.db.DB)
	a.settings = store.NewGormSettingsRepository(a.db.DB)
	a.events = store.NewGormEventRepository(a.db.DB)

	a.storefront = shopify.New(shopify.Config{
		APIVersion: cfg.ShopifyAPIVersion,
		Timeout:    cfg.RemoteTimeout,
		UseMock:    cfg.ShopifyUseMock,
	}, logger, a.tracer)
	a.shippers = initShipperRegistry(cfg, logger, a.tracer)

	if withLocker {
		a.locker, a.closeLocker, err = initLocker(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *app) syncService() *ordersync.Service {
	return ordersync.NewService(a.resolver, a.storefront, a.orders, a.logger, a.metrics, a.tracer)
}

func (a *app) fulfillmentService() (*fulfillment.Service, error) {
	provider, err := a.shippers.Select(a.cfg.RateProvider)
	if err != nil {
		return nil, fmt.Errorf("RATE_PROVIDER: %w", err)
	}
	return fulfillment.NewService(fulfillment.Config{
		RemoteTimeout: a.cfg.RemoteTimeout,
		LockTTL:       a.cfg.PurchaseLockTTL,
	}, fulfillment.Deps{
		Resolver:   a.resolver,
		Storefront: a.storefront,
		Shipper:    provider,
		Orders:     a.orders,
		Settings:   a.settings,
		Journal:    a.events,
		Locker:     a.locker,
		Logger:     a.logger,
		Metrics:    a.metrics,
		Tracer:     a.tracer,
	}), nil
}

// Close releases whatever newApp managed to open.
func (a *app) Close(ctx context.Context) {
	if a.closeLocker != nil {
		if err := a.closeLocker(); err != nil {
			a.logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("Failed to close database", zap.Error(err))
		}
	}
	if err := a.shutdownTracer(ctx); err != nil {
		a.logger.Warn("Failed to flush traces", zap.Error(err))
	}
	_ = a.logger.Sync()
}
