package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"aligncall/internal/model"
)

type BatchRepository struct {
	db *gorm.DB
}

func NewBatchRepository(db *gorm.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

func (r *BatchRepository) Create(ctx context.Context, batch *model.Batch) error {
	if err := r.db.WithContext(ctx).Create(batch).Error; err != nil {
		return fmt.Errorf("create batch failed: %w", err)
	}
	return nil
}

func (r *BatchRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&model.Batch{}, id).Error; err != nil {
		return fmt.Errorf("delete batch %d failed: %w", id, err)
	}
	return nil
}

func (r *BatchRepository) GetByID(ctx context.Context, id uint) (*model.Batch, error) {
	var batch model.Batch
	if err := r.db.WithContext(ctx).First(&batch, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get batch failed: %w", err)
	}
	return &batch, nil
}

// List returns the newest batches first.
func (r *BatchRepository) List(ctx context.Context, limit int) ([]model.Batch, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var batches []model.Batch
	if err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&batches).Error; err != nil {
		return nil, fmt.Errorf("list batches failed: %w", err)
	}
	return batches, nil
}
