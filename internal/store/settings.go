package store

import (
	"context"
	"errors"
	"time"

	"github.com/tournevent/shiplite/internal/domain"
	"gorm.io/gorm"
)

const settingsID = 1

// GormSettingsRepository stores the singleton ship-from settings.
type GormSettingsRepository struct {
	db *gorm.DB
}

// NewGormSettingsRepository creates a new GormSettingsRepository.
func NewGormSettingsRepository(db *gorm.DB) *GormSettingsRepository {
	return &GormSettingsRepository{db: db}
}

// Get returns the ship-from settings, creating them from the fallback
// address on first read.
func (r *GormSettingsRepository) Get(ctx context.Context) (domain.ShipFrom, error) {
	var rec settingsRecord
	err := r.db.WithContext(ctx).First(&rec, settingsID).Error
	if err == nil {
		return rec.toDomain(), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ShipFrom{}, err
	}

	fallback := domain.FallbackShipFrom()
	rec = settingsFromDomain(fallback)
	if err := r.db.WithContext(ctx).FirstOrCreate(&rec, settingsRecord{ID: settingsID}).Error; err != nil {
		return domain.ShipFrom{}, err
	}
	return rec.toDomain(), nil
}

// Put replaces the ship-from settings.
func (r *GormSettingsRepository) Put(ctx context.Context, s domain.ShipFrom) (domain.ShipFrom, error) {
	rec := settingsFromDomain(s)
	if err := r.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return domain.ShipFrom{}, err
	}
	return rec.toDomain(), nil
}

func settingsFromDomain(s domain.ShipFrom) settingsRecord {
	return settingsRecord{
		ID:        settingsID,
		Company:   s.Company,
		Street1:   s.Street1,
		Street2:   s.Street2,
		City:      s.City,
		State:     s.State,
		Zip:       s.Zip,
		Phone:     s.Phone,
		Country:   s.Country,
		UpdatedAt: time.Now().UTC(),
	}
}
