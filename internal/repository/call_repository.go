package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"aligncall/internal/model"
)

// ErrTransitionRejected means the call was not in a status that allows the update.
var ErrTransitionRejected = errors.New("call status transition rejected")

type CallRepository struct {
	db *gorm.DB
}

func NewCallRepository(db *gorm.DB) *CallRepository {
	return &CallRepository{db: db}
}

// CreateForBatch inserts the calls and fills in their IDs.
func (r *CallRepository) CreateForBatch(ctx context.Context, calls []model.Call) ([]model.Call, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(&calls, 200).Error; err != nil {
		return nil, fmt.Errorf("create calls batch failed: %w", err)
	}
	return calls, nil
}

func (r *CallRepository) GetByID(ctx context.Context, id uint) (*model.Call, error) {
	var call model.Call
	if err := r.db.WithContext(ctx).First(&call, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query call by id failed: %w", err)
	}
	return &call, nil
}

func (r *CallRepository) GetByVoiceCallID(ctx context.Context, voiceCallID string) (*model.Call, error) {
	var call model.Call
	if err := r.db.WithContext(ctx).Where("voice_call_id = ?", voiceCallID).First(&call).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query call by voice call id failed: %w", err)
	}
	return &call, nil
}

func (r *CallRepository) ListByBatchID(ctx context.Context, batchID uint) ([]model.Call, error) {
	var calls []model.Call
	if err := r.db.WithContext(ctx).Where("batch_id = ?", batchID).Order("id ASC").Find(&calls).Error; err != nil {
		return nil, fmt.Errorf("list calls by batch failed: %w", err)
	}
	return calls, nil
}

// MarkRinging records the platform call id once the dial was accepted.
func (r *CallRepository) MarkRinging(ctx context.Context, id uint, voiceCallID string) error {
	return r.transition(ctx, id, model.CallStatusRinging, map[string]any{
		"voice_call_id": voiceCallID,
		"error":         "",
	})
}

func (r *CallRepository) MarkFailed(ctx context.Context, id uint, reason string) error {
	if len(reason) > 512 {
		reason = reason[:512]
	}
	return r.transition(ctx, id, model.CallStatusFailed, map[string]any{"error": reason})
}

func (r *CallRepository) MarkInProgress(ctx context.Context, id uint) error {
	return r.transition(ctx, id, model.CallStatusInProgress, nil)
}

// Complete stores the analysis result. A call already completed accepts the
// update again so redelivered webhooks overwrite rather than fail.
func (r *CallRepository) Complete(ctx context.Context, id uint, result model.CallResult) error {
	fields := map[string]any{
		"status":                 model.CallStatusCompleted,
		"has_result":             true,
		"result_summary":         result.Summary,
		"result_transcript":      result.Transcript,
		"result_quality_score":   result.QualityScore,
		"result_customer_intent": result.CustomerIntent,
		"result_recording_url":   result.RecordingURL,
	}
	from := append(model.Predecessors(model.CallStatusCompleted), model.CallStatusCompleted)
	return r.update(ctx, id, from, fields)
}

func (r *CallRepository) transition(ctx context.Context, id uint, next model.CallStatus, fields map[string]any) error {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["status"] = next
	return r.update(ctx, id, model.Predecessors(next), fields)
}

func (r *CallRepository) update(ctx context.Context, id uint, from []model.CallStatus, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&model.Call{}).
		Where("id = ? AND status IN ?", id, model.StoredAs(from...)).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update call %d failed: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("call %d to %v: %w", id, fields["status"], ErrTransitionRejected)
	}
	return nil
}
