// Package voice is a small REST client for the voice assistant platform (VAPI).
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Config struct {
	BaseURL            string
	APIKey             string
	AssistantID        string
	PhoneNumberID      string
	MaxDurationSeconds int
}

type Customer struct {
	Number                 string `json:"number"`
	Name                   string `json:"name,omitempty"`
	NumberE164CheckEnabled bool   `json:"numberE164CheckEnabled"`
}

type CallRequest struct {
	AssistantID        string         `json:"assistantId"`
	PhoneNumberID      string         `json:"phoneNumberId,omitempty"`
	Customer           Customer       `json:"customer"`
	MaxDurationSeconds int            `json:"maxDurationSeconds,omitempty"`
	AssistantOverrides map[string]any `json:"assistantOverrides,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}

// Call is the subset of the platform's call object this service reads.
type Call struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Transcript   string `json:"transcript"`
	RecordingURL string `json:"recordingUrl"`
	EndedReason  string `json:"endedReason"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
}

type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.MaxDurationSeconds <= 0 {
		cfg.MaxDurationSeconds = 600
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Dial places an outbound call to the lead, passing the name into the
// assistant's prompt variables.
func (c *Client) Dial(ctx context.Context, phone, name string, metadata map[string]any) (*Call, error) {
	if c.cfg.AssistantID == "" {
		return nil, fmt.Errorf("voice assistant id is not configured")
	}
	return c.InitiateCall(ctx, CallRequest{
		AssistantID:        c.cfg.AssistantID,
		PhoneNumberID:      c.cfg.PhoneNumberID,
		Customer:           Customer{Number: phone, Name: name, NumberE164CheckEnabled: true},
		MaxDurationSeconds: c.cfg.MaxDurationSeconds,
		AssistantOverrides: map[string]any{
			"variableValues": map[string]any{"name": name},
		},
		Metadata: metadata,
	})
}

func (c *Client) InitiateCall(ctx context.Context, call CallRequest) (*Call, error) {
	var out Call
	if err := c.do(ctx, http.MethodPost, "/call", call, http.StatusCreated, &out); err != nil {
		return nil, fmt.Errorf("initiate call failed: %w", err)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("initiate call failed: response has no call id")
	}
	return &out, nil
}

func (c *Client) GetCall(ctx context.Context, callID string) (*Call, error) {
	var out Call
	if err := c.do(ctx, http.MethodGet, "/call/"+callID, nil, http.StatusOK, &out); err != nil {
		return nil, fmt.Errorf("get call %s failed: %w", callID, err)
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, wantStatus int, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request failed: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response failed: %w", err)
	}
	if resp.StatusCode != wantStatus {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse response json failed: %w", err)
	}
	return nil
}
