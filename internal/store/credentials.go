package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tournevent/shiplite/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCredentialRepository stores one storefront credential per tenant.
type GormCredentialRepository struct {
	db     *gorm.DB
	sealer *Sealer
}

// NewGormCredentialRepository creates a new GormCredentialRepository.
// A nil sealer stores tokens unencrypted.
func NewGormCredentialRepository(db *gorm.DB, sealer *Sealer) *GormCredentialRepository {
	return &GormCredentialRepository{db: db, sealer: sealer}
}

// FindByTenant returns the credential of a tenant.
func (r *GormCredentialRepository) FindByTenant(ctx context.Context, tenantID string) (*domain.Credential, error) {
	var rec credentialRecord
	if err := r.db.WithContext(ctx).First(&rec, "tenant_id = ?", tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCredentialNotFound
		}
		return nil, err
	}

	token, err := r.sealer.Open(rec.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("credential for %s: %w", tenantID, err)
	}
	return &domain.Credential{
		TenantID:    rec.TenantID,
		AccessToken: token,
		Scope:       rec.Scope,
		Active:      rec.Active,
		UpdatedAt:   rec.UpdatedAt,
	}, nil
}

// Upsert inserts the credential or overwrites token, scope and active flag
// of the tenant's existing one.
func (r *GormCredentialRepository) Upsert(ctx context.Context, c domain.Credential) error {
	token, err := r.sealer.Seal(c.AccessToken)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	rec := credentialRecord{
		TenantID:    c.TenantID,
		AccessToken: token,
		Scope:       c.Scope,
		Active:      c.Active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"access_token", "scope", "active", "updated_at"}),
	}).Create(&rec).Error
}
