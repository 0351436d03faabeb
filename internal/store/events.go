package store

import (
	"context"

	"github.com/tournevent/shiplite/internal/domain"
	"gorm.io/gorm"
)

// GormEventRepository is the append-only fulfillment journal.
type GormEventRepository struct {
	db *gorm.DB
}

// NewGormEventRepository creates a new GormEventRepository.
func NewGormEventRepository(db *gorm.DB) *GormEventRepository {
	return &GormEventRepository{db: db}
}

// Append records a stage transition.
func (r *GormEventRepository) Append(ctx context.Context, e domain.FulfillmentEvent) error {
	rec := eventRecord{
		OrderID:        e.OrderID,
		TenantID:       e.TenantID,
		Stage:          string(e.Stage),
		TrackingNumber: e.TrackingNumber,
		LabelURL:       e.LabelURL,
		Carrier:        e.Carrier,
		Cost:           e.Cost,
		Detail:         e.Detail,
		CreatedAt:      e.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&rec).Error
}

// ListByOrder returns an order's journal in the order it was written.
func (r *GormEventRepository) ListByOrder(ctx context.Context, tenantID, orderID string) ([]domain.FulfillmentEvent, error) {
	var recs []eventRecord
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND order_id = ?", tenantID, orderID).
		Order("id ASC").
		Find(&recs).Error; err != nil {
		return nil, err
	}

	events := make([]domain.FulfillmentEvent, len(recs))
	for i := range recs {
		events[i] = recs[i].toDomain()
	}
	return events, nil
}
