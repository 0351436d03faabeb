package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tournevent/shiplite/internal/domain"
	"gorm.io/gorm"
)

// GormOrderRepository stores orders keyed by (tenant, external id).
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository.
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByID returns an order of the tenant by local id.
func (r *GormOrderRepository) FindByID(ctx context.Context, tenantID, id string) (*domain.Order, error) {
	return findOrder(r.db.WithContext(ctx), "id = ? AND tenant_id = ?", id, tenantID)
}

// FindByExternalID returns an order of the tenant by storefront id.
func (r *GormOrderRepository) FindByExternalID(ctx context.Context, tenantID, externalID string) (*domain.Order, error) {
	return findOrder(r.db.WithContext(ctx), "tenant_id = ? AND external_id = ?", tenantID, externalID)
}

func findOrder(db *gorm.DB, query string, args ...any) (*domain.Order, error) {
	var rec orderRecord
	if err := db.Where(query, args...).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return rec.toDomain(), nil
}

// List returns the tenant's orders, newest storefront order first.
// An empty status returns orders in every status.
func (r *GormOrderRepository) List(ctx context.Context, tenantID string, status domain.FulfillmentStatus) ([]domain.Order, error) {
	q := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if status != "" {
		q = q.Where("fulfillment_status = ?", string(status))
	}

	var recs []orderRecord
	if err := q.Order("source_created_at DESC").Order("created_at DESC").Find(&recs).Error; err != nil {
		return nil, err
	}

	orders := make([]domain.Order, len(recs))
	for i := range recs {
		orders[i] = *recs[i].toDomain()
	}
	return orders, nil
}

// UpsertSynced applies domain.MergeSynced against the stored order and writes
// the result. On update only descriptive columns are written, so status and
// tracking of an existing order are never touched. It reports whether the
// order was created.
func (r *GormOrderRepository) UpsertSynced(ctx context.Context, incoming domain.Order) (*domain.Order, bool, error) {
	if err := incoming.Validate(); err != nil {
		return nil, false, err
	}

	var (
		result  *domain.Order
		created bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findOrder(tx, "tenant_id = ? AND external_id = ?", incoming.TenantID, incoming.ExternalID)
		if err != nil && !errors.Is(err, domain.ErrOrderNotFound) {
			return err
		}

		now := time.Now().UTC()
		merged := domain.MergeSynced(existing, incoming)
		merged.UpdatedAt = now

		if existing == nil {
			merged.ID = uuid.New().String()
			merged.CreatedAt = now
			rec := orderFromDomain(merged)
			if err := tx.Create(&rec).Error; err != nil {
				return fmt.Errorf("inserting order %s: %w", merged.ExternalID, err)
			}
			created = true
		} else {
			rec := orderFromDomain(merged)
			if err := tx.Model(&orderRecord{}).
				Where("id = ?", existing.ID).
				Select(descriptiveColumns).
				Updates(&rec).Error; err != nil {
				return fmt.Errorf("updating order %s: %w", merged.ExternalID, err)
			}
		}
		result = &merged
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

// CompleteFulfillment marks an unfulfilled order fulfilled with tracking.
// The update is conditional on the stored status, so of two racing callers
// exactly one succeeds; the other gets domain.ErrAlreadyFulfilled.
func (r *GormOrderRepository) CompleteFulfillment(ctx context.Context, tenantID, id string, t domain.Tracking, at time.Time) (*domain.Order, error) {
	db := r.db.WithContext(ctx)
	res := db.Model(&orderRecord{}).
		Where("id = ? AND tenant_id = ? AND fulfillment_status = ?", id, tenantID, string(domain.StatusUnfulfilled)).
		Updates(map[string]any{
			"fulfillment_status": string(domain.StatusFulfilled),
			"tracking_number":    t.Number,
			"carrier":            t.Carrier,
			"label_url":          t.LabelURL,
			"tracking_url":       t.URL,
			"shipping_cost":      t.Cost.StringFixed(2),
			"fulfilled_at":       at.UTC(),
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("committing fulfillment of order %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, tenantID, id); err != nil {
			return nil, err
		}
		return nil, domain.ErrAlreadyFulfilled
	}
	return r.FindByID(ctx, tenantID, id)
}
