package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"

	"aligncall/internal/model"
	"aligncall/internal/repository"
	"aligncall/internal/voice"
)

const noTranscript = "No transcript available"

var (
	ErrMissingCallID = errors.New("missing call id")
	ErrCallNotFound  = errors.New("call not found")
)

// Webhook event types that trigger completion processing.
var completionEvents = map[string]bool{
	"call.completed":     true,
	"call.ended":         true,
	"end-of-call-report": true,
}

// CallLookup reads and advances persisted calls by their platform id.
type CallLookup interface {
	GetByVoiceCallID(ctx context.Context, voiceCallID string) (*model.Call, error)
	MarkInProgress(ctx context.Context, id uint) error
	Complete(ctx context.Context, id uint, result model.CallResult) error
}

// CallFetcher reads a call back from the voice platform.
type CallFetcher interface {
	GetCall(ctx context.Context, callID string) (*voice.Call, error)
}

// EventOutcome is the JSON-friendly result of handling one webhook.
type EventOutcome struct {
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
	EventType   string `json:"event_type,omitempty"`
	VoiceCallID string `json:"vapi_call_id,omitempty"`
}

type CallEventService struct {
	calls   CallLookup
	fetcher CallFetcher
	analyst *TranscriptAnalyst
	logger  *slog.Logger
}

func NewCallEventService(calls CallLookup, fetcher CallFetcher, analyst *TranscriptAnalyst, logger *slog.Logger) *CallEventService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CallEventService{calls: calls, fetcher: fetcher, analyst: analyst, logger: logger}
}

// EventType reads message.type, falling back to the top-level type.
func EventType(payload []byte) string {
	if t := gjson.GetBytes(payload, "message.type").String(); t != "" {
		return t
	}
	if t := gjson.GetBytes(payload, "type").String(); t != "" {
		return t
	}
	return "unknown"
}

// IsCompletionEvent reports whether the event is processed in the background.
func IsCompletionEvent(eventType string) bool {
	return completionEvents[eventType]
}

func voiceCallID(p gjson.Result) string {
	return firstString(p, "call.id", "message.call.id")
}

func firstString(p gjson.Result, paths ...string) string {
	for _, path := range paths {
		if s := strings.TrimSpace(p.Get(path).String()); s != "" {
			return s
		}
	}
	return ""
}

// HandleStarted moves the call to in_progress.
func (s *CallEventService) HandleStarted(ctx context.Context, payload []byte) (*EventOutcome, error) {
	p := gjson.ParseBytes(payload)
	id := voiceCallID(p)
	if id == "" {
		return nil, ErrMissingCallID
	}

	call, err := s.calls.GetByVoiceCallID(ctx, id)
	if err != nil {
		return nil, err
	}
	if call == nil {
		s.logger.WarnContext(ctx, "call started for unknown call", "vapi_call_id", id)
		return &EventOutcome{Status: "success", VoiceCallID: id, Message: "Call not found"}, nil
	}

	if err := s.calls.MarkInProgress(ctx, call.ID); err != nil {
		if errors.Is(err, repository.ErrTransitionRejected) {
			s.logger.WarnContext(ctx, "ignoring call.started", "call_id", call.ID, "status", call.Status)
			return &EventOutcome{Status: "ignored", VoiceCallID: id, Message: fmt.Sprintf("call is %s", call.Status)}, nil
		}
		return nil, err
	}
	s.logger.InfoContext(ctx, "call in progress", "call_id", call.ID, "vapi_call_id", id)
	return &EventOutcome{Status: "success", VoiceCallID: id}, nil
}

// HandleCompletion fetches the transcript, analyzes it and stores the result.
func (s *CallEventService) HandleCompletion(ctx context.Context, payload []byte) (*EventOutcome, error) {
	p := gjson.ParseBytes(payload)
	id := voiceCallID(p)
	if id == "" {
		return nil, ErrMissingCallID
	}

	call, err := s.calls.GetByVoiceCallID(ctx, id)
	if err != nil {
		return nil, err
	}
	if call == nil {
		return nil, fmt.Errorf("vapi call %s: %w", id, ErrCallNotFound)
	}

	status := strings.ToLower(firstString(p, "call.status", "message.call.status"))
	if status == "" {
		status = "unknown"
	}
	if status != "completed" && status != "ended" && status != "unknown" {
		s.logger.InfoContext(ctx, "skipping call completion", "vapi_call_id", id, "status", status)
		return &EventOutcome{Status: "skipped", VoiceCallID: id, Message: fmt.Sprintf("Call status '%s' not processed", status)}, nil
	}

	webhookTranscript := firstString(p, "call.transcript", "message.transcript",
		"call.artifact.transcript", "message.artifact.transcript")
	recordingURL := firstString(p, "message.recordingUrl", "message.artifact.recordingUrl",
		"call.recordingUrl", "call.artifact.recordingUrl")

	transcript := webhookTranscript
	if remote, err := s.fetcher.GetCall(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "fetch call from voice platform failed", "vapi_call_id", id, "error", err)
	} else if remote != nil {
		if len(remote.Transcript) > len(transcript) {
			transcript = remote.Transcript
		}
		if recordingURL == "" {
			recordingURL = remote.RecordingURL
		}
	}
	if strings.TrimSpace(transcript) == "" {
		transcript = noTranscript
	}

	analysis := s.analyst.Analyze(ctx, transcript)
	summary := firstString(p, "message.analysis.summary", "call.analysis.summary")
	if summary == "" {
		summary = analysis.Summary
	}

	result := model.CallResult{
		Summary:        summary,
		Transcript:     transcript,
		QualityScore:   analysis.QualityScore,
		CustomerIntent: analysis.CustomerIntent,
		RecordingURL:   recordingURL,
	}
	if err := s.calls.Complete(ctx, call.ID, result); err != nil {
		return nil, fmt.Errorf("store call result failed: %w", err)
	}
	s.logger.InfoContext(ctx, "call completed", "call_id", call.ID, "vapi_call_id", id,
		"quality_score", analysis.QualityScore, "transcript_chars", len(transcript))
	return &EventOutcome{Status: "success", VoiceCallID: id, Message: "Call completion processed successfully"}, nil
}
