package app

import (
	"context"
	"errors"
	"log/slog"

	"aligncall/internal/model"
	"aligncall/internal/repository"
	"aligncall/internal/voice"
)

// Dialer places outbound calls on the voice platform.
type Dialer interface {
	Dial(ctx context.Context, phone, name string, metadata map[string]any) (*voice.Call, error)
}

type DialCallStore interface {
	GetByID(ctx context.Context, id uint) (*model.Call, error)
	MarkRinging(ctx context.Context, id uint, voiceCallID string) error
	MarkFailed(ctx context.Context, id uint, reason string) error
}

type DialService struct {
	calls  DialCallStore
	dialer Dialer
	logger *slog.Logger
}

func NewDialService(calls DialCallStore, dialer Dialer, logger *slog.Logger) *DialService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DialService{calls: calls, dialer: dialer, logger: logger}
}

// Dial places the call for a pending Call record. Calls in any other status
// are skipped so redelivered jobs never dial twice. A platform rejection
// fails the call and is not returned as an error.
func (s *DialService) Dial(ctx context.Context, job DialJob) error {
	call, err := s.calls.GetByID(ctx, job.CallID)
	if err != nil {
		return err
	}
	if call == nil {
		s.logger.WarnContext(ctx, "dial job for missing call", "call_id", job.CallID)
		return nil
	}
	if call.Status.Normalize() != model.CallStatusPending {
		s.logger.InfoContext(ctx, "skipping dial", "call_id", call.ID, "status", call.Status)
		return nil
	}

	placed, err := s.dialer.Dial(ctx, call.Lead.Phone, call.Lead.Name, map[string]any{
		"call_id":  call.ID,
		"batch_id": call.BatchID,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "dial failed", "call_id", call.ID, "phone", call.Lead.Phone, "error", err)
		return s.ignoreStale(s.calls.MarkFailed(ctx, call.ID, err.Error()))
	}

	s.logger.InfoContext(ctx, "call placed", "call_id", call.ID, "vapi_call_id", placed.ID)
	return s.ignoreStale(s.calls.MarkRinging(ctx, call.ID, placed.ID))
}

func (s *DialService) ignoreStale(err error) error {
	if errors.Is(err, repository.ErrTransitionRejected) {
		s.logger.Warn("call changed status during dial", "error", err)
		return nil
	}
	return err
}
