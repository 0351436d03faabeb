// Package server exposes the operator JSON API over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tournevent/shiplite/internal/domain"
	"github.com/tournevent/shiplite/internal/ordersync"
	"github.com/tournevent/shiplite/internal/telemetry"
	"github.com/tournevent/shiplite/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// OrderSyncer imports storefront orders for a tenant.
type OrderSyncer interface {
	SyncOrders(ctx context.Context, tenantID string) (*ordersync.Result, error)
}

// Fulfiller quotes rates and buys labels.
type Fulfiller interface {
	GetRates(ctx context.Context, tenantID, orderID string, parcel shipper.Parcel) (*shipper.Quote, error)
	PurchaseLabelAndFulfill(ctx context.Context, tenantID, orderID, quoteID, rateID string) (*domain.Order, error)
	Events(ctx context.Context, tenantID, orderID string) ([]domain.FulfillmentEvent, error)
}

// OrderLister lists stored orders.
type OrderLister interface {
	List(ctx context.Context, tenantID string, status domain.FulfillmentStatus) ([]domain.Order, error)
}

// SettingsStore reads and replaces the ship-from settings.
type SettingsStore interface {
	Get(ctx context.Context) (domain.ShipFrom, error)
	Put(ctx context.Context, s domain.ShipFrom) (domain.ShipFrom, error)
}

// Config holds server configuration.
type Config struct {
	Port int
}

// Deps are the services behind the HTTP API. Gatherer defaults to the
// global Prometheus registry and Metrics may be nil.
type Deps struct {
	Sync        OrderSyncer
	Fulfillment Fulfiller
	Orders      OrderLister
	Settings    SettingsStore
	Logger      *otelzap.Logger
	Metrics     *telemetry.Metrics
	Gatherer    prometheus.Gatherer
}

// Server is the HTTP server of the bridge.
type Server struct {
	port     int
	deps     Deps
	logger   *otelzap.Logger
	validate *validator.Validate
}

// New creates a new server instance.
func New(cfg Config, deps Deps) *Server {
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		port:     cfg.Port,
		deps:     deps,
		logger:   deps.Logger,
		validate: newValidator(),
	}
}

// Handler returns the routed, instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(s.recoverer)
	r.Use(s.observe)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		// ship-from settings are shared by every shop
		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handlePutSettings)

		r.Group(func(r chi.Router) {
			r.Use(requireTenant)

			r.Post("/orders/sync", s.handleSync)
			r.Get("/orders", s.handleListOrders)
			r.Get("/orders/{id}/events", s.handleOrderEvents)

			r.Post("/shipments/rates", s.handleRates)
			r.Post("/shipments/buy", s.handleBuy)
		})
	})

	return otelhttp.NewHandler(r, "shiplite",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// purchases make up to three remote calls
		WriteTimeout: 2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("Starting server", zap.Int("port", s.port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
