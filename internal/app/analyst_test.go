package app

import (
	"context"
	"testing"
)

func TestAnalyzeDecodesAndClamps(t *testing.T) {
	llm := &fakeCompleter{reply: "```json\n{\"summary\":\"Scan booked\",\"quality_score\":12.5,\"customer_intent\":\"\"}\n```"}
	got := NewTranscriptAnalyst(llm, nil).Analyze(context.Background(), "AI: hello")

	if got.Summary != "Scan booked" {
		t.Errorf("summary = %q", got.Summary)
	}
	if got.QualityScore != 10 {
		t.Errorf("score = %v, want clamped to 10", got.QualityScore)
	}
	if got.CustomerIntent != "unknown" {
		t.Errorf("intent = %q", got.CustomerIntent)
	}
	if len(llm.messages) != 2 || llm.messages[1].Content != "AI: hello" {
		t.Errorf("messages = %+v", llm.messages)
	}
}

func TestAnalyzeFallsBackOnFailure(t *testing.T) {
	cases := map[string]*fakeCompleter{
		"provider error": {err: errUnavailable},
		"not json":       {reply: "the call went well"},
	}
	for name, llm := range cases {
		t.Run(name, func(t *testing.T) {
			got := NewTranscriptAnalyst(llm, nil).Analyze(context.Background(), "x")
			if got != failedAnalysis() {
				t.Errorf("got %+v", got)
			}
		})
	}
}

func TestStripCodeFence(t *testing.T) {
	if got := stripCodeFence(" {\"a\":1} "); got != `{"a":1}` {
		t.Errorf("got %q", got)
	}
	if got := stripCodeFence("```\n{}\n```"); got != "{}" {
		t.Errorf("got %q", got)
	}
}
