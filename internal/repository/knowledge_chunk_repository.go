package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"aligncall/internal/model"
)

type KnowledgeChunkRepository struct {
	db *gorm.DB
}

func NewKnowledgeChunkRepository(db *gorm.DB) *KnowledgeChunkRepository {
	return &KnowledgeChunkRepository{db: db}
}

func (r *KnowledgeChunkRepository) CreateBatch(ctx context.Context, chunks []model.KnowledgeChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&chunks).Error; err != nil {
		return fmt.Errorf("create knowledge chunks batch failed: %w", err)
	}
	return nil
}

// ListAll returns every chunk in insertion order.
func (r *KnowledgeChunkRepository) ListAll(ctx context.Context) ([]model.KnowledgeChunk, error) {
	var chunks []model.KnowledgeChunk
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list knowledge chunks failed: %w", err)
	}
	return chunks, nil
}

// Dimension returns the embedding size already stored, or 0 for an empty table.
func (r *KnowledgeChunkRepository) Dimension(ctx context.Context) (int, error) {
	var dims []int
	if err := r.db.WithContext(ctx).Model(&model.KnowledgeChunk{}).
		Order("id ASC").Limit(1).Pluck("dimension", &dims).Error; err != nil {
		return 0, fmt.Errorf("query knowledge dimension failed: %w", err)
	}
	if len(dims) == 0 {
		return 0, nil
	}
	return dims[0], nil
}
