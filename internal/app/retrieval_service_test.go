package app

import (
	"context"
	"errors"
	"testing"

	"aligncall/internal/model"
)

func TestRetrievalSearchOrdersAndTruncates(t *testing.T) {
	store := &fakeKnowledgeStore{hits: []model.KnowledgeHit{
		{Content: "low", Score: 0.1},
		{Content: "high", Score: 0.9},
		{Content: "tie-a", Score: 0.5},
		{Content: "tie-b", Score: 0.5},
	}}
	svc := NewRetrievalService(&fakeEmbedder{}, store, 3, true, nil)

	got, err := svc.Search(context.Background(), "aligners")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := []string{"high", "tie-a", "tie-b"}
	if len(got) != len(want) {
		t.Fatalf("got %+v", got)
	}
	for i := range want {
		if got[i].Content != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i].Content, want[i])
		}
	}
	if store.lastK != 3 || !store.exact {
		t.Errorf("store called with k=%d exact=%v", store.lastK, store.exact)
	}
}

func TestRetrievalDefaultTopK(t *testing.T) {
	store := &fakeKnowledgeStore{}
	svc := NewRetrievalService(&fakeEmbedder{}, store, 0, false, nil)
	if _, err := svc.Search(context.Background(), "q"); err != nil {
		t.Fatal(err)
	}
	if store.lastK != defaultTopK {
		t.Errorf("k = %d", store.lastK)
	}
}

func TestRetrievalStoreFailureIsEmpty(t *testing.T) {
	svc := NewRetrievalService(&fakeEmbedder{}, &fakeKnowledgeStore{err: errUnavailable}, 2, true, nil)
	got, err := svc.Search(context.Background(), "q")
	if err != nil || len(got) != 0 {
		t.Fatalf("got %v, %v; want empty result", got, err)
	}
}

func TestRetrievalEmbeddingFailureIsError(t *testing.T) {
	store := &fakeKnowledgeStore{}
	svc := NewRetrievalService(&fakeEmbedder{err: errUnavailable}, store, 2, true, nil)
	if _, err := svc.Search(context.Background(), "q"); !errors.Is(err, errUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if store.searches.Load() != 0 {
		t.Error("store must not be searched without a query vector")
	}
}

func TestRetrievalIdempotent(t *testing.T) {
	store := &fakeKnowledgeStore{hits: []model.KnowledgeHit{
		{Content: "a", Score: 0.7}, {Content: "b", Score: 0.7}, {Content: "c", Score: 0.2},
	}}
	svc := NewRetrievalService(&fakeEmbedder{}, store, 2, true, nil)
	first, _ := svc.Search(context.Background(), "same")
	second, _ := svc.Search(context.Background(), "same")
	if len(first) != 2 || len(second) != 2 || first[0] != second[0] || first[1] != second[1] {
		t.Errorf("first=%v second=%v", first, second)
	}
}

type memChunkRepo struct {
	chunks []model.KnowledgeChunk
	err    error
}

func (m *memChunkRepo) ListAll(context.Context) ([]model.KnowledgeChunk, error) {
	return m.chunks, m.err
}

func (m *memChunkRepo) CreateBatch(_ context.Context, chunks []model.KnowledgeChunk) error {
	m.chunks = append(m.chunks, chunks...)
	return m.err
}

func (m *memChunkRepo) Dimension(context.Context) (int, error) {
	if len(m.chunks) == 0 {
		return 0, m.err
	}
	return m.chunks[0].Dimension, m.err
}

func chunk(content string, vec ...float32) model.KnowledgeChunk {
	c := model.KnowledgeChunk{Content: content}
	c.SetEmbedding(vec)
	return c
}

func TestScanStoreExactCosine(t *testing.T) {
	repo := &memChunkRepo{}
	store := NewScanStore(repo)
	if err := store.Insert(context.Background(), []model.KnowledgeChunk{
		chunk("east", 1, 0),
		chunk("north", 0, 1),
		chunk("north-east", 1, 1),
		chunk("broken", 1, 0, 0),
	}); err != nil {
		t.Fatal(err)
	}

	hits, err := store.Search(context.Background(), []float32{0.9, 0.1}, 2, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 || hits[0].Content != "east" || hits[1].Content != "north-east" {
		t.Errorf("hits = %+v", hits)
	}
	dims, _ := store.Dimension(context.Background())
	if dims != 2 {
		t.Errorf("dims = %d", dims)
	}
}

func TestCosineSimilarity(t *testing.T) {
	if got := cosineSimilarity([]float32{1, 0}, []float32{1, 0}); got < 0.999 {
		t.Errorf("identical = %v", got)
	}
	if got := cosineSimilarity([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Errorf("orthogonal = %v", got)
	}
	if got := cosineSimilarity([]float32{1}, []float32{1, 2}); got != 0 {
		t.Errorf("mismatched = %v", got)
	}
	if got := cosineSimilarity([]float32{0, 0}, []float32{1, 2}); got != 0 {
		t.Errorf("zero = %v", got)
	}
}
