package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"aligncall/internal/ai"
	"aligncall/internal/model"
)

// fakeEmbedder maps text to a vector through a lookup table; unknown text
// gets the zero vector.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   atomic.Int32
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 0}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

type fakeKnowledgeStore struct {
	mu       sync.Mutex
	hits     []model.KnowledgeHit
	inserted []model.KnowledgeChunk
	dims     int
	err      error
	searches atomic.Int32
	lastK    int
	exact    bool
}

func (f *fakeKnowledgeStore) Search(_ context.Context, _ []float32, topK int, exact bool) ([]model.KnowledgeHit, error) {
	f.searches.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastK, f.exact = topK, exact
	if f.err != nil {
		return nil, f.err
	}
	out := make([]model.KnowledgeHit, len(f.hits))
	copy(out, f.hits)
	return out, nil
}

func (f *fakeKnowledgeStore) Insert(_ context.Context, chunks []model.KnowledgeChunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, chunks...)
	if len(chunks) > 0 && f.dims == 0 {
		f.dims = chunks[0].Dimension
	}
	return nil
}

func (f *fakeKnowledgeStore) Dimension(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dims, f.err
}

// fakeCompleter answers with reply, or with a function of the request.
type fakeCompleter struct {
	reply    string
	replyFn  func(messages []ai.ChatMessage) string
	err      error
	calls    atomic.Int32
	mu       sync.Mutex
	messages []ai.ChatMessage
}

func (f *fakeCompleter) Complete(_ context.Context, messages []ai.ChatMessage) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.messages = messages
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if f.replyFn != nil {
		return f.replyFn(messages), nil
	}
	return f.reply, nil
}

func (f *fakeCompleter) CompleteJSON(ctx context.Context, messages []ai.ChatMessage) (string, error) {
	return f.Complete(ctx, messages)
}

type fakeGeoStore struct {
	records []model.GeoRecord
	err     error
	finds   atomic.Int32
	listed  atomic.Int32
}

func (f *fakeGeoStore) Find(_ context.Context, pincode, city string, limit int) ([]model.GeoRecord, error) {
	f.finds.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	var out []model.GeoRecord
	for _, r := range f.records {
		if pincode != "" && r.Pincode != pincode {
			continue
		}
		if city != "" && !strings.EqualFold(r.City, city) {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeGeoStore) DistinctCities(context.Context) ([]string, error) {
	f.listed.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	seen := map[string]bool{}
	var out []string
	for _, r := range f.records {
		if r.City != "" && !seen[r.City] {
			seen[r.City] = true
			out = append(out, r.City)
		}
	}
	return out, nil
}

type fakeCityCache struct {
	cities []string
	hit    bool
	err    error
	sets   int
}

func (f *fakeCityCache) GetCities(context.Context) ([]string, bool, error) {
	return f.cities, f.hit, f.err
}

func (f *fakeCityCache) SetCities(_ context.Context, cities []string) error {
	f.sets++
	f.cities, f.hit = cities, true
	return nil
}

func (f *fakeCityCache) Invalidate(context.Context) error {
	f.cities, f.hit = nil, false
	return nil
}

var errUnavailable = errors.New("connection refused")

func strPtr(s string) *string { return &s }

func geoRec(pincode, city, scan string, clinics ...string) model.GeoRecord {
	r := model.GeoRecord{Pincode: pincode, City: city, HomeScanAvailable: scan}
	if len(clinics) > 0 {
		r.Clinic1 = strPtr(clinics[0])
	}
	if len(clinics) > 1 {
		r.Clinic2 = strPtr(clinics[1])
	}
	return r
}
