package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Config holds the OpenAI-compatible endpoint and the model used per task.
type Config struct {
	BaseURL        string
	APIKey         string
	ChatModel      string
	AnalysisModel  string
	EmbeddingModel string
	Timeout        time.Duration
}

// Client talks to an OpenAI-compatible API for chat, JSON analysis and embeddings.
type Client struct {
	api            *openai.Client
	chatModel      string
	analysisModel  string
	embeddingModel string
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	if cfg.AnalysisModel == "" {
		cfg.AnalysisModel = cfg.ChatModel
	}
	return &Client{
		api:            openai.NewClientWithConfig(oc),
		chatModel:      cfg.ChatModel,
		analysisModel:  cfg.AnalysisModel,
		embeddingModel: cfg.EmbeddingModel,
	}
}

// Complete returns the first choice's text verbatim.
func (c *Client) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	rsp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.chatModel,
		Messages: toOpenAI(messages),
	})
	if err != nil {
		return "", fmt.Errorf("llm completion failed: %w", err)
	}
	if len(rsp.Choices) == 0 {
		return "", errors.New("empty llm choices")
	}
	return rsp.Choices[0].Message.Content, nil
}

// CompleteJSON asks the analysis model for a JSON object reply.
func (c *Client) CompleteJSON(ctx context.Context, messages []ChatMessage) (string, error) {
	rsp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.analysisModel,
		Messages:    toOpenAI(messages),
		Temperature: 0.1,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm json completion failed: %w", err)
	}
	if len(rsp.Choices) == 0 || rsp.Choices[0].Message.Content == "" {
		return "", errors.New("empty llm json reply")
	}
	return rsp.Choices[0].Message.Content, nil
}

func toOpenAI(messages []ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}
