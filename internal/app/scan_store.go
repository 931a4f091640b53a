package app

import (
	"context"
	"fmt"
	"math"
	"sort"

	"aligncall/internal/model"
)

// ChunkRepository is the relational table backing ScanStore.
type ChunkRepository interface {
	ListAll(ctx context.Context) ([]model.KnowledgeChunk, error)
	CreateBatch(ctx context.Context, chunks []model.KnowledgeChunk) error
	Dimension(ctx context.Context) (int, error)
}

// ScanStore is a KnowledgeStore over the MySQL chunk table. It scores every
// chunk in process, so search is always exact regardless of the exact flag.
type ScanStore struct {
	repo ChunkRepository
}

func NewScanStore(repo ChunkRepository) *ScanStore {
	return &ScanStore{repo: repo}
}

func (s *ScanStore) Search(ctx context.Context, vector []float32, topK int, _ bool) ([]model.KnowledgeHit, error) {
	if topK <= 0 {
		return nil, nil
	}
	chunks, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	hits := make([]model.KnowledgeHit, len(chunks))
	for i := range chunks {
		hits[i] = model.KnowledgeHit{
			Content: chunks[i].Content,
			Score:   cosineSimilarity(vector, chunks[i].EmbeddingVector()),
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (s *ScanStore) Insert(ctx context.Context, chunks []model.KnowledgeChunk) error {
	return s.repo.CreateBatch(ctx, chunks)
}

func (s *ScanStore) Dimension(ctx context.Context) (int, error) {
	dims, err := s.repo.Dimension(ctx)
	if err != nil {
		return 0, fmt.Errorf("read stored dimension failed: %w", err)
	}
	return dims, nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA <= 0 || normB <= 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
