package app

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	ToolKnowledgeLookup = "knowledge_lookup"
	ToolNearbyClinic    = "nearby_clinic"

	defaultToolTimeout = 8 * time.Second

	queryRequiredMessage = "Error: Query parameter is required for vector search"
	noKnowledgeAnswer    = "I don't know."
)

// Older assistant configurations still use these names.
var toolAliases = map[string]string{
	"vector_search":    ToolKnowledgeLookup,
	"get_pincode_data": ToolNearbyClinic,
}

type toolHandler func(ctx context.Context, args map[string]string) (string, error)

// ToolDispatcher routes tool invocations to their lookup and always answers
// with a ToolResult carrying the invocation id.
type ToolDispatcher struct {
	handlers  map[string]toolHandler
	retrieval *RetrievalService
	composer  *AnswerComposer
	timeout   time.Duration
	logger    *slog.Logger
}

func NewToolDispatcher(
	retrieval *RetrievalService,
	geo *GeoResolver,
	composer *AnswerComposer,
	timeout time.Duration,
	logger *slog.Logger,
) *ToolDispatcher {
	if timeout <= 0 {
		timeout = defaultToolTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &ToolDispatcher{retrieval: retrieval, composer: composer, timeout: timeout, logger: logger}
	d.handlers = map[string]toolHandler{
		ToolKnowledgeLookup: knowledgeLookup(retrieval, composer),
		ToolNearbyClinic:    nearbyClinic(geo),
	}
	return d
}

// Dispatch runs one invocation. Errors, panics and timeouts become
// "Error: ..." results; nothing escapes.
func (d *ToolDispatcher) Dispatch(ctx context.Context, call ToolCall) ToolResult {
	start := time.Now()
	res := ToolResult{ToolCallID: call.ID}

	name := call.Name
	if canonical, ok := toolAliases[name]; ok {
		name = canonical
	}
	handler, ok := d.handlers[name]
	if !ok {
		d.logger.WarnContext(ctx, "unknown tool", "tool", call.Name, "tool_call_id", call.ID)
		res.Result = fmt.Sprintf("Error: Unknown tool '%s'. Available tools: %s, %s",
			call.Name, ToolKnowledgeLookup, ToolNearbyClinic)
		return res
	}

	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.logger.ErrorContext(ctx, "tool handler panic", "tool", name, "panic", r, "stack", string(debug.Stack()))
				done <- outcome{err: fmt.Errorf("%v", r)}
			}
		}()
		text, err := handler(ctx, call.Arguments)
		done <- outcome{text: text, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		if err := parent.Err(); err != nil {
			out.err = fmt.Errorf("tool %s was cancelled: %w", name, err)
		} else {
			out.err = fmt.Errorf("tool %s did not finish within %s", name, d.timeout)
		}
	}

	if out.err != nil {
		d.logger.ErrorContext(ctx, "tool call failed", "tool", name, "tool_call_id", call.ID,
			"error", out.err, "elapsed", time.Since(start))
		res.Result = "Error: " + out.err.Error()
		return res
	}
	d.logger.InfoContext(ctx, "tool call handled", "tool", name, "tool_call_id", call.ID, "elapsed", time.Since(start))
	res.Result = out.text
	return res
}

// DispatchAll runs every invocation concurrently and returns results in input order.
func (d *ToolDispatcher) DispatchAll(ctx context.Context, calls []ToolCall) []ToolResult {
	results := make([]ToolResult, len(calls))
	var g errgroup.Group
	for i, call := range calls {
		g.Go(func() error {
			results[i] = d.Dispatch(ctx, call)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func knowledgeLookup(retrieval *RetrievalService, composer *AnswerComposer) toolHandler {
	return func(ctx context.Context, args map[string]string) (string, error) {
		query := strings.TrimSpace(args["query"])
		if query == "" {
			return queryRequiredMessage, nil
		}
		answer, _, err := answerFromKnowledge(ctx, retrieval, composer, query)
		return answer, err
	}
}

func answerFromKnowledge(ctx context.Context, retrieval *RetrievalService, composer *AnswerComposer, query string) (string, []RetrievedChunk, error) {
	chunks, err := retrieval.Search(ctx, query)
	if err != nil {
		return "", nil, err
	}
	if len(chunks) == 0 {
		return noKnowledgeAnswer, chunks, nil
	}
	passages := make([]string, len(chunks))
	for i, c := range chunks {
		passages[i] = c.Content
	}
	answer, err := composer.Compose(ctx, query, strings.Join(passages, "\n\n"))
	if err != nil {
		return "", nil, err
	}
	return answer, chunks, nil
}

// KnowledgePreview is the knowledge_lookup answer together with the passages
// it was grounded on.
type KnowledgePreview struct {
	Answer   string           `json:"answer"`
	Passages []RetrievedChunk `json:"passages"`
}

// Preview answers query the way knowledge_lookup would, from a single
// retrieval pass, and also returns the passages used.
func (d *ToolDispatcher) Preview(ctx context.Context, query string) (*KnowledgePreview, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrInvalidInput
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	answer, chunks, err := answerFromKnowledge(ctx, d.retrieval, d.composer, query)
	if err != nil {
		return nil, err
	}
	return &KnowledgePreview{Answer: answer, Passages: chunks}, nil
}

func nearbyClinic(geo *GeoResolver) toolHandler {
	return func(ctx context.Context, args map[string]string) (string, error) {
		return geo.Resolve(ctx, args["pincode"], args["city"])
	}
}
