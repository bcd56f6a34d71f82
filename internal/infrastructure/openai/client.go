// Package openai talks to an OpenAI-compatible chat completions API for
// product advice and food image recognition.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nutriscan/backend/internal/domain"
)

// PlaceholderAPIKey is the sample value shipped in example env files.
const PlaceholderAPIKey = "your_openai_api_key_here"

// Config configures the chat completions transport and both callers.
type Config struct {
	APIKey          string
	BaseURL         string
	TextModel       string
	VisionModel     string
	Timeout         time.Duration
	MaxTokens       int
	VisionMaxTokens int
	Temperature     float64
}

// HasUsableKey reports whether key is set and is not the sample placeholder.
func HasUsableKey(key string) bool {
	key = strings.TrimSpace(key)
	return key != "" && key != PlaceholderAPIKey
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Client is the shared chat completions transport.
type Client struct {
	httpClient *http.Client
	apiKey     string
	endpoint   string
	timeout    time.Duration
	logger     *slog.Logger
}

// NewClient builds a transport from configuration.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{},
		apiKey:     cfg.APIKey,
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		timeout:    cfg.Timeout,
		logger:     logger.With("component", "openai"),
	}
}

// complete sends one chat request and returns the first choice's content.
// A missing or placeholder key fails before any network call.
func (c *Client) complete(ctx context.Context, req chatRequest) (string, error) {
	if !HasUsableKey(c.apiKey) {
		return "", domain.ErrConfig
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: new request: %v", domain.ErrRequestFailed, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Warn("chat completion rejected", "model", req.Model, "status", resp.StatusCode)
		return "", fmt.Errorf("%w: chat error %s: %s", domain.ErrRequestFailed, resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: decode chat response: %v", domain.ErrRequestFailed, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", domain.ErrRequestFailed)
	}

	return parsed.Choices[0].Message.Content, nil
}
