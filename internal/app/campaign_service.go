package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"aligncall/internal/model"
	"aligncall/internal/sheet"
)

var (
	ErrUnsupportedFile = errors.New("only .xlsx files are supported")
	ErrMissingColumns  = sheet.ErrMissingColumns
	ErrNoLeads         = errors.New("no valid leads in file")
	ErrBatchNotFound   = errors.New("no calls found for batch")
)

// DialJob asks the dial worker to place one call.
type DialJob struct {
	CallID uint `json:"call_id"`
}

// JobPublisher enqueues background jobs.
type JobPublisher interface {
	Publish(ctx context.Context, job any) error
}

type BatchStore interface {
	Create(ctx context.Context, batch *model.Batch) error
	Delete(ctx context.Context, id uint) error
	GetByID(ctx context.Context, id uint) (*model.Batch, error)
	List(ctx context.Context, limit int) ([]model.Batch, error)
}

type CallStore interface {
	CreateForBatch(ctx context.Context, calls []model.Call) ([]model.Call, error)
	ListByBatchID(ctx context.Context, batchID uint) ([]model.Call, error)
	MarkFailed(ctx context.Context, id uint, reason string) error
}

type CampaignService struct {
	batches   BatchStore
	calls     CallStore
	dials     JobPublisher
	uploadDir string
	maxDials  int
	logger    *slog.Logger
}

func NewCampaignService(batches BatchStore, calls CallStore, dials JobPublisher, uploadDir string, maxDials int, logger *slog.Logger) *CampaignService {
	if uploadDir == "" {
		uploadDir = "uploads"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CampaignService{
		batches:   batches,
		calls:     calls,
		dials:     dials,
		uploadDir: uploadDir,
		maxDials:  maxDials,
		logger:    logger,
	}
}

type UploadInput struct {
	OperatorID uint
	FileName   string
	Content    []byte
}

type UploadResult struct {
	BatchID     uint   `json:"batch_id"`
	FileName    string `json:"original_filename"`
	SavedPath   string `json:"saved_path"`
	TotalLeads  int    `json:"total_users"`
	SkippedRows int    `json:"skipped_rows"`
	QueuedDials int    `json:"queued_dials"`
}

// Upload stores the spreadsheet, creates a batch with one pending call per
// lead and queues dial jobs for them.
func (s *CampaignService) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	name := filepath.Base(strings.TrimSpace(in.FileName))
	if !strings.EqualFold(filepath.Ext(name), ".xlsx") {
		return nil, ErrUnsupportedFile
	}
	if len(in.Content) == 0 {
		return nil, ErrInvalidInput
	}

	leads, err := sheet.ReadLeads(bytes.NewReader(in.Content))
	if err != nil {
		if errors.Is(err, ErrMissingColumns) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if len(leads.Leads) == 0 {
		return nil, ErrNoLeads
	}

	path, err := s.save(in.Content)
	if err != nil {
		return nil, err
	}

	batch := &model.Batch{
		OperatorID: in.OperatorID,
		FileName:   name,
		Path:       path,
		TotalLeads: len(leads.Leads),
	}
	if err := s.batches.Create(ctx, batch); err != nil {
		s.discard(ctx, path, 0)
		return nil, err
	}

	calls := make([]model.Call, len(leads.Leads))
	for i, lead := range leads.Leads {
		calls[i] = model.Call{BatchID: batch.ID, Status: model.CallStatusPending, Lead: lead}
	}
	created, err := s.calls.CreateForBatch(ctx, calls)
	if err != nil {
		s.discard(ctx, path, batch.ID)
		return nil, err
	}

	queued := s.enqueueDials(ctx, created)
	s.logger.InfoContext(ctx, "campaign uploaded", "batch_id", batch.ID, "leads", len(created),
		"skipped_rows", leads.Skipped, "queued_dials", queued)

	return &UploadResult{
		BatchID:     batch.ID,
		FileName:    name,
		SavedPath:   path,
		TotalLeads:  len(created),
		SkippedRows: leads.Skipped,
		QueuedDials: queued,
	}, nil
}

func (s *CampaignService) save(content []byte) (string, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir failed: %w", err)
	}
	path := filepath.Join(s.uploadDir, uuid.NewString()+".xlsx")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("save upload failed: %w", err)
	}
	return path, nil
}

// discard removes what a failed upload left behind: the saved file and, when
// batchID is set, the batch row.
func (s *CampaignService) discard(ctx context.Context, path string, batchID uint) {
	if batchID != 0 {
		if err := s.batches.Delete(ctx, batchID); err != nil {
			s.logger.ErrorContext(ctx, "delete orphan batch failed", "batch_id", batchID, "error", err)
		}
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.ErrorContext(ctx, "remove upload failed", "path", path, "error", err)
	}
}

// enqueueDials publishes a dial job per call, up to maxDials when set. A call
// whose job cannot be published is failed so it never sits pending forever.
func (s *CampaignService) enqueueDials(ctx context.Context, calls []model.Call) int {
	limit := len(calls)
	if s.maxDials > 0 && s.maxDials < limit {
		limit = s.maxDials
	}
	queued := 0
	for _, call := range calls[:limit] {
		if err := s.dials.Publish(ctx, DialJob{CallID: call.ID}); err != nil {
			s.logger.ErrorContext(ctx, "enqueue dial failed", "call_id", call.ID, "error", err)
			if markErr := s.calls.MarkFailed(ctx, call.ID, "enqueue dial failed: "+err.Error()); markErr != nil {
				s.logger.ErrorContext(ctx, "mark call failed", "call_id", call.ID, "error", markErr)
			}
			continue
		}
		queued++
	}
	return queued
}

// BatchCalls lists every call in a batch.
func (s *CampaignService) BatchCalls(ctx context.Context, batchID uint) ([]model.Call, error) {
	if batchID == 0 {
		return nil, ErrInvalidInput
	}
	calls, err := s.calls.ListByBatchID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if len(calls) == 0 {
		return nil, ErrBatchNotFound
	}
	return calls, nil
}

func (s *CampaignService) ListBatches(ctx context.Context, limit int) ([]model.Batch, error) {
	return s.batches.List(ctx, limit)
}
