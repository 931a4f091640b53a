package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"aligncall/internal/model"
)

func TestExtractPassagesJSON(t *testing.T) {
	data := []byte(`["Aligners are clear trays.", {"content": "Call 1800-267-8464 for support."}, "  "]`)
	got, err := ExtractPassages("corpus.json", data)
	if err != nil {
		t.Fatalf("ExtractPassages: %v", err)
	}
	if len(got) != 2 || got[1] != "Call 1800-267-8464 for support." {
		t.Errorf("passages = %q", got)
	}
}

func TestExtractPassagesTextChunksLongParagraphs(t *testing.T) {
	long := strings.Repeat("a", defaultChunkSize+100)
	got, err := ExtractPassages("faq.md", []byte("Short answer.\r\n\r\n"+long))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0] != "Short answer." {
		t.Fatalf("got %d passages", len(got))
	}
	if len([]rune(got[1])) != defaultChunkSize {
		t.Errorf("first chunk length = %d", len([]rune(got[1])))
	}
}

func TestExtractPassagesRejectsUnknownFormat(t *testing.T) {
	if _, err := ExtractPassages("deck.pptx", []byte("x")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v", err)
	}
}

func TestChunkTextOverlap(t *testing.T) {
	got := chunkText("abcdefghij", 4, 2)
	want := []string{"abcd", "cdef", "efgh", "ghij"}
	if len(got) != len(want) {
		t.Fatalf("got %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestChunkTextNoRedundantTail(t *testing.T) {
	cases := []struct {
		text string
		want []string
	}{
		{"abcdef", []string{"abcd", "cdef"}},
		{"abcdefg", []string{"abcd", "cdef", "efg"}},
		{"abc", []string{"abc"}},
	}
	for _, tc := range cases {
		got := chunkText(tc.text, 4, 2)
		if len(got) != len(tc.want) {
			t.Errorf("chunkText(%q) = %q, want %q", tc.text, got, tc.want)
			continue
		}
		for i := range tc.want {
			if got[i] != tc.want[i] {
				t.Errorf("chunkText(%q)[%d] = %q, want %q", tc.text, i, got[i], tc.want[i])
			}
		}
	}
}

type recordingArchive struct {
	count int
}

func (a *recordingArchive) CreateBatch(_ context.Context, chunks []model.KnowledgeChunk) error {
	a.count += len(chunks)
	return nil
}

func TestIngestTextsBatchesAndArchives(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeKnowledgeStore{}
	archive := &recordingArchive{}
	svc := NewKnowledgeIngestService(embedder, store, archive, nil)

	passages := make([]string, 23)
	for i := range passages {
		passages[i] = strings.Repeat("p", i+1)
	}
	res, err := svc.IngestTexts(context.Background(), "corpus.json", passages)
	if err != nil {
		t.Fatalf("IngestTexts: %v", err)
	}
	if res.ChunkCount != 23 || res.Dimension != 3 {
		t.Errorf("result = %+v", res)
	}
	if len(store.inserted) != 23 || archive.count != 23 {
		t.Errorf("inserted=%d archived=%d", len(store.inserted), archive.count)
	}
	if store.inserted[5].Content != "pppppp" || store.inserted[5].Source != "corpus.json" {
		t.Errorf("chunk 5 = %+v", store.inserted[5])
	}
}

func TestIngestTextsDimensionMismatch(t *testing.T) {
	store := &fakeKnowledgeStore{dims: 1536}
	svc := NewKnowledgeIngestService(&fakeEmbedder{}, store, nil, nil)
	if _, err := svc.IngestTexts(context.Background(), "x", []string{"hello"}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("err = %v", err)
	}
	if len(store.inserted) != 0 {
		t.Error("nothing should be inserted on mismatch")
	}
}

func TestIngestTextsEmptyAndEmbedFailure(t *testing.T) {
	svc := NewKnowledgeIngestService(&fakeEmbedder{}, &fakeKnowledgeStore{}, nil, nil)
	if _, err := svc.IngestTexts(context.Background(), "x", []string{" ", ""}); !errors.Is(err, ErrEmptyCorpus) {
		t.Errorf("empty: %v", err)
	}

	svc = NewKnowledgeIngestService(&fakeEmbedder{err: errUnavailable}, &fakeKnowledgeStore{}, nil, nil)
	if _, err := svc.IngestTexts(context.Background(), "x", []string{"a"}); !errors.Is(err, errUnavailable) {
		t.Errorf("embed failure: %v", err)
	}
}
