package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"aligncall/internal/ai"
)

const transcriptAnalysisPrompt = `You analyze phone call transcripts between a clear-aligner company's voice agent and a customer. Reply with a JSON object with exactly these fields:

1. summary (string):
   - A concise summary of the call.
   - Say whether the outcome was positive (for example booking confirmed, customer satisfied) or negative (for example lead dropped, issue unresolved).
   - Mention key details such as whether verification was completed, which questions were answered, and where the conversation ended.

2. quality_score (number from 0.0 to 10.0), the sum of four checks worth 2.5 each:
   - The customer's name was verified.
   - The customer mentioned their pincode or city.
   - Questions were asked and answered.
   - A scan was confirmed.
   If a scan was confirmed the score is always 10.0.

3. customer_intent (string): keywords describing the customer's purpose.
   - The type of issue (for example teeth alignment query, payment issue, appointment scheduling).
   - The type of booking or request (for example scan booking, reschedule, inquiry).
   - The overall status (for example lead, dropped, in process, call me later).`

// JSONCompleter is a completion endpoint that replies with a JSON object.
type JSONCompleter interface {
	CompleteJSON(ctx context.Context, messages []ai.ChatMessage) (string, error)
}

type AnalysisResult struct {
	Summary        string  `json:"summary"`
	QualityScore   float64 `json:"quality_score"`
	CustomerIntent string  `json:"customer_intent"`
}

func failedAnalysis() AnalysisResult {
	return AnalysisResult{Summary: "Analysis failed", QualityScore: 0, CustomerIntent: "unknown"}
}

type TranscriptAnalyst struct {
	llm    JSONCompleter
	logger *slog.Logger
}

func NewTranscriptAnalyst(llm JSONCompleter, logger *slog.Logger) *TranscriptAnalyst {
	if logger == nil {
		logger = slog.Default()
	}
	return &TranscriptAnalyst{llm: llm, logger: logger}
}

// Analyze scores a transcript. It never fails: any provider or decoding
// problem yields the "Analysis failed" result.
func (a *TranscriptAnalyst) Analyze(ctx context.Context, transcript string) AnalysisResult {
	a.logger.InfoContext(ctx, "analyzing transcript", "chars", len(transcript))

	raw, err := a.llm.CompleteJSON(ctx, []ai.ChatMessage{
		{Role: "system", Content: transcriptAnalysisPrompt},
		{Role: "user", Content: transcript},
	})
	if err != nil {
		a.logger.ErrorContext(ctx, "transcript analysis failed", "error", err)
		return failedAnalysis()
	}

	var out AnalysisResult
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &out); err != nil {
		a.logger.ErrorContext(ctx, "decode transcript analysis failed", "error", err, "raw", raw)
		return failedAnalysis()
	}
	switch {
	case out.QualityScore < 0:
		out.QualityScore = 0
	case out.QualityScore > 10:
		out.QualityScore = 10
	}
	if strings.TrimSpace(out.CustomerIntent) == "" {
		out.CustomerIntent = "unknown"
	}
	return out
}

// stripCodeFence removes a ```json fence some models wrap around JSON replies.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
