package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"aligncall/internal/model"
)

type GeoRepository struct {
	db *gorm.DB
}

func NewGeoRepository(db *gorm.DB) *GeoRepository {
	return &GeoRepository{db: db}
}

func (r *GeoRepository) CreateBatch(ctx context.Context, records []model.GeoRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(&records, 500).Error; err != nil {
		return fmt.Errorf("create geo records batch failed: %w", err)
	}
	return nil
}

// Find returns records matching the non-empty filters in store order.
// limit <= 0 means no limit.
func (r *GeoRepository) Find(ctx context.Context, pincode, city string, limit int) ([]model.GeoRecord, error) {
	q := r.db.WithContext(ctx).Model(&model.GeoRecord{})
	if pincode != "" {
		q = q.Where("pincode = ?", pincode)
	}
	if city != "" {
		q = q.Where("city = ?", city)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var records []model.GeoRecord
	if err := q.Order("id ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("find geo records failed: %w", err)
	}
	return records, nil
}

// DistinctCities lists every non-empty city in the directory.
func (r *GeoRepository) DistinctCities(ctx context.Context) ([]string, error) {
	var cities []string
	if err := r.db.WithContext(ctx).Model(&model.GeoRecord{}).
		Where("city <> ''").Distinct().Order("city ASC").Pluck("city", &cities).Error; err != nil {
		return nil, fmt.Errorf("list distinct cities failed: %w", err)
	}
	return cities, nil
}

// Replace swaps the whole directory for records in one transaction, so a
// failed insert leaves the previous directory in place.
func (r *GeoRepository) Replace(ctx context.Context, records []model.GeoRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).
			Delete(&model.GeoRecord{}).Error; err != nil {
			return fmt.Errorf("delete geo records failed: %w", err)
		}
		if len(records) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(&records, 500).Error; err != nil {
			return fmt.Errorf("create geo records batch failed: %w", err)
		}
		return nil
	})
}
