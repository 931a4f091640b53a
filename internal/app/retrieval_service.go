package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"aligncall/internal/model"
)

const defaultTopK = 2

// Embedder turns text into dense vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// KnowledgeStore holds embedded knowledge chunks and answers nearest-neighbour queries.
type KnowledgeStore interface {
	Search(ctx context.Context, vector []float32, topK int, exact bool) ([]model.KnowledgeHit, error)
	Insert(ctx context.Context, chunks []model.KnowledgeChunk) error
	Dimension(ctx context.Context) (int, error)
}

// RetrievedChunk is what the answer composer sees. Scores stay inside the engine.
type RetrievedChunk struct {
	Content string `json:"content"`
}

type RetrievalService struct {
	embedder Embedder
	store    KnowledgeStore
	topK     int
	exact    bool
	logger   *slog.Logger
}

func NewRetrievalService(embedder Embedder, store KnowledgeStore, topK int, exact bool, logger *slog.Logger) *RetrievalService {
	if topK <= 0 {
		topK = defaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrievalService{
		embedder: embedder,
		store:    store,
		topK:     topK,
		exact:    exact,
		logger:   logger,
	}
}

// Search returns at most topK chunks, most similar first. A failing or empty
// store yields an empty result; only embedding failures are returned as errors.
func (s *RetrievalService) Search(ctx context.Context, query string) ([]RetrievedChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrInvalidInput
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query failed: %w", err)
	}

	hits, err := s.store.Search(ctx, vec, s.topK, s.exact)
	if err != nil {
		s.logger.WarnContext(ctx, "knowledge store search failed", "error", err)
		return []RetrievedChunk{}, nil
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > s.topK {
		hits = hits[:s.topK]
	}

	out := make([]RetrievedChunk, 0, len(hits))
	for _, h := range hits {
		if strings.TrimSpace(h.Content) == "" {
			continue
		}
		out = append(out, RetrievedChunk{Content: h.Content})
	}
	s.logger.DebugContext(ctx, "knowledge search", "query", query, "hits", len(out))
	return out, nil
}
