package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"aligncall/internal/model"
	"aligncall/internal/pkg/pdfextract"
)

const (
	defaultChunkSize    = 512
	defaultChunkOverlap = 64
	embeddingBatchSize  = 10 // DashScope and similar APIs often limit batch size
)

var (
	ErrEmptyCorpus       = errors.New("no passages to ingest")
	ErrDimensionMismatch = errors.New("embedding dimension does not match the store")
	ErrUnsupportedFormat = errors.New("unsupported knowledge file format")
)

// ChunkArchive keeps a relational copy of every ingested chunk.
type ChunkArchive interface {
	CreateBatch(ctx context.Context, chunks []model.KnowledgeChunk) error
}

type KnowledgeIngestService struct {
	embedder Embedder
	store    KnowledgeStore
	archive  ChunkArchive
	logger   *slog.Logger
}

// NewKnowledgeIngestService builds the loader. archive may be nil, and should
// be nil when store already is the relational table.
func NewKnowledgeIngestService(embedder Embedder, store KnowledgeStore, archive ChunkArchive, logger *slog.Logger) *KnowledgeIngestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &KnowledgeIngestService{embedder: embedder, store: store, archive: archive, logger: logger}
}

type IngestResult struct {
	Source     string `json:"source"`
	ChunkCount int    `json:"chunk_count"`
	Dimension  int    `json:"dimension"`
}

// ExtractPassages turns a knowledge file into passages. JSON files hold an
// array of strings or of {"content": ...} objects; text and markdown split on
// blank lines; PDFs use their plain text. Long passages are chunked.
func ExtractPassages(name string, data []byte) ([]string, error) {
	var raw []string
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		items, err := decodeCorpus(data)
		if err != nil {
			return nil, err
		}
		raw = items
	case ".txt", ".md", "":
		raw = splitParagraphs(string(data))
	case ".pdf":
		text, err := pdfextract.ExtractText(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("extract pdf text failed: %w", err)
		}
		raw = splitParagraphs(text)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(name))
	}

	var out []string
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if len([]rune(p)) <= defaultChunkSize {
			out = append(out, p)
			continue
		}
		out = append(out, chunkText(p, defaultChunkSize, defaultChunkOverlap)...)
	}
	return out, nil
}

func decodeCorpus(data []byte) ([]string, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode knowledge json failed: %w", err)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var obj struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			return nil, fmt.Errorf("decode knowledge item failed: %w", err)
		}
		out = append(out, obj.Content)
	}
	return out, nil
}

func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(text, "\n\n")
}

// chunkText splits text into overlapping chunks by rune count.
func chunkText(text string, size, overlap int) []string {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap >= size {
		overlap = size / 2
	}
	var chunks []string
	runes := []rune(text)
	for i := 0; i < len(runes); {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		if end == len(runes) {
			break
		}
		i += size - overlap
	}
	return chunks
}

// IngestFile extracts and ingests one knowledge file.
func (s *KnowledgeIngestService) IngestFile(ctx context.Context, name string, data []byte) (*IngestResult, error) {
	passages, err := ExtractPassages(name, data)
	if err != nil {
		return nil, err
	}
	return s.IngestTexts(ctx, filepath.Base(name), passages)
}

// IngestTexts embeds passages in batches and inserts them. Every vector must
// share the store's dimension; a store with no data accepts the first batch.
func (s *KnowledgeIngestService) IngestTexts(ctx context.Context, source string, passages []string) (*IngestResult, error) {
	texts := make([]string, 0, len(passages))
	for _, p := range passages {
		if p = strings.TrimSpace(p); p != "" {
			texts = append(texts, p)
		}
	}
	if len(texts) == 0 {
		return nil, ErrEmptyCorpus
	}

	dims, err := s.store.Dimension(ctx)
	if err != nil {
		return nil, fmt.Errorf("read store dimension failed: %w", err)
	}

	// Call embedding API in batches to avoid provider limits.
	chunks := make([]model.KnowledgeChunk, 0, len(texts))
	for i := 0; i < len(texts); i += embeddingBatchSize {
		end := min(i+embeddingBatchSize, len(texts))
		vecs, err := s.embedder.EmbedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("embed passages %d-%d failed: %w", i, end-1, err)
		}
		for j, vec := range vecs {
			if dims == 0 {
				dims = len(vec)
			}
			if len(vec) != dims {
				return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), dims)
			}
			c := model.KnowledgeChunk{Source: source, Content: texts[i+j]}
			c.SetEmbedding(vec)
			chunks = append(chunks, c)
		}
	}

	if err := s.store.Insert(ctx, chunks); err != nil {
		return nil, fmt.Errorf("insert knowledge chunks failed: %w", err)
	}
	if s.archive != nil {
		if err := s.archive.CreateBatch(ctx, chunks); err != nil {
			s.logger.WarnContext(ctx, "archive knowledge chunks failed", "source", source, "error", err)
		}
	}
	s.logger.InfoContext(ctx, "knowledge ingested", "source", source, "chunks", len(chunks), "dimension", dims)
	return &IngestResult{Source: source, ChunkCount: len(chunks), Dimension: dims}, nil
}
