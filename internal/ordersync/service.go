// Package ordersync pulls unfulfilled orders from the storefront into the
// local order store.
package ordersync

import (
	"context"
	"time"

	"github.com/tournevent/shiplite/internal/domain"
	"github.com/tournevent/shiplite/internal/telemetry"
	"github.com/tournevent/shiplite/pkg/storefront"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// CredentialResolver resolves the storefront credentials of a tenant.
type CredentialResolver interface {
	Resolve(ctx context.Context, tenantID string) (storefront.Credentials, error)
}

// OrderStore upserts synced orders.
type OrderStore interface {
	UpsertSynced(ctx context.Context, incoming domain.Order) (*domain.Order, bool, error)
}

// Failure describes one order that could not be imported.
type Failure struct {
	ExternalID  string
	OrderNumber string
	Err         error
}

// Result summarizes a sync run.
type Result struct {
	Imported int
	Failed   int
	Failures []Failure
}

// Service synchronizes storefront orders.
type Service struct {
	resolver   CredentialResolver
	storefront storefront.Storefront
	orders     OrderStore
	logger     *otelzap.Logger
	metrics    *telemetry.Metrics
	tracer     trace.Tracer
}

// NewService creates a new sync Service. metrics and tracer may be nil.
func NewService(
	resolver CredentialResolver,
	sf storefront.Storefront,
	orders OrderStore,
	logger *otelzap.Logger,
	metrics *telemetry.Metrics,
	tracer trace.Tracer,
) *Service {
	return &Service{
		resolver:   resolver,
		storefront: sf,
		orders:     orders,
		logger:     logger,
		metrics:    metrics,
		tracer:     telemetry.TracerOrNoop(tracer, "ordersync"),
	}
}

// SyncOrders imports every open, paid, unshipped order of the tenant.
//
// A failed credential lookup or storefront listing aborts the run. A failure
// on a single order is logged and counted and the run continues.
func (s *Service) SyncOrders(ctx context.Context, tenantID string) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "ordersync.SyncOrders",
		trace.WithAttributes(attribute.String("tenant", tenantID)),
	)
	defer span.End()

	creds, err := s.resolver.Resolve(ctx, tenantID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	tenantID = creds.Shop

	start := time.Now()
	orders, err := s.storefront.ListUnfulfilledOrders(ctx, creds)
	s.metrics.RecordRemote(s.storefront.Name(), storefront.OpListOrders, err, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Ctx(ctx).Error("Listing storefront orders failed",
			zap.String("tenant", tenantID),
			zap.Error(err),
		)
		return nil, err
	}

	res := &Result{}
	for _, so := range orders {
		if err := s.importOne(ctx, tenantID, so); err != nil {
			res.Failed++
			res.Failures = append(res.Failures, Failure{ExternalID: so.ID, OrderNumber: so.Name, Err: err})
			s.logger.Ctx(ctx).Warn("Skipping order",
				zap.String("tenant", tenantID),
				zap.String("external_id", so.ID),
				zap.String("order_number", so.Name),
				zap.Error(err),
			)
			continue
		}
		res.Imported++
	}

	s.metrics.RecordSync(tenantID, res.Imported, res.Failed)
	span.SetAttributes(
		attribute.Int("sync.fetched", len(orders)),
		attribute.Int("sync.imported", res.Imported),
		attribute.Int("sync.failed", res.Failed),
	)
	s.logger.Ctx(ctx).Info("Orders synced",
		zap.String("tenant", tenantID),
		zap.Int("fetched", len(orders)),
		zap.Int("imported", res.Imported),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

func (s *Service) importOne(ctx context.Context, tenantID string, so storefront.Order) error {
	incoming, err := MapOrder(tenantID, so)
	if err != nil {
		return err
	}
	_, _, err = s.orders.UpsertSynced(ctx, incoming)
	return err
}
