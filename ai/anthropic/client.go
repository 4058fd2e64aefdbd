// Package anthropic provides a minimal Anthropic Messages API client with
// per-task model fallback chains.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/teranos/spark/errors"
	"github.com/teranos/spark/internal/httpclient"
	"github.com/teranos/spark/logger"
)

const (
	// BaseURL is the Anthropic API endpoint
	BaseURL = "https://api.anthropic.com/v1"

	// APIVersion is the required Anthropic API version header
	APIVersion = "2023-06-01"

	// DefaultMaxTokens caps completion length for draft generation
	DefaultMaxTokens = 600
)

// Client represents an Anthropic API client
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	config     Config
}

// Config holds Anthropic client configuration
type Config struct {
	APIKey    string
	Model     string // non-empty pins a single model, disabling fallback chains
	MaxTokens int
}

// NewClient creates a new Anthropic API client
func NewClient(config Config) *Client {
	if config.MaxTokens == 0 {
		config.MaxTokens = DefaultMaxTokens
	}

	blockPrivateIP := true
	saferClient := httpclient.NewWithOptions(120*time.Second, httpclient.Options{
		BlockPrivateIP: &blockPrivateIP,
	})

	return &Client{
		apiKey:     config.APIKey,
		baseURL:    BaseURL,
		httpClient: saferClient.Client,
		config:     config,
	}
}

// MessagesRequest represents a request to the Anthropic Messages API
type MessagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Messages    []Message `json:"messages"`
	System      string    `json:"system,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

// Message represents a message in the conversation
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// MessagesResponse represents the response from the Messages API
type MessagesResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Content    []ContentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Usage      Usage          `json:"usage"`
}

// ContentBlock represents a content block in the response
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Usage represents token usage information
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Completion is the result of a successful generation
type Completion struct {
	Text    string
	Model   string
	CostUSD float64
	Usage   Usage
}

// Complete runs a prompt through the fallback chain for the given task.
// Models are tried in order; the first success wins. If every model fails
// the last error is returned.
func (c *Client) Complete(ctx context.Context, task Task, prompt string) (*Completion, error) {
	if c.apiKey == "" {
		return nil, errors.NewNotConfigured("anthropic.api_key")
	}

	models := ChooseModels(task, c.config.Model)

	var lastErr error
	for _, model := range models {
		resp, err := c.createMessages(ctx, MessagesRequest{
			Model:     model,
			MaxTokens: c.config.MaxTokens,
			Messages: []Message{
				{Role: "user", Content: prompt},
			},
		})
		if err != nil {
			lastErr = err
			logger.Debugw("Model attempt failed",
				"model", model,
				"task", string(task),
				"error", err)
			continue
		}

		var content strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				content.WriteString(block.Text)
			}
		}

		return &Completion{
			Text:    strings.TrimSpace(content.String()),
			Model:   resp.Model,
			CostUSD: CalculateCost(model, resp.Usage.InputTokens, resp.Usage.OutputTokens),
			Usage:   resp.Usage,
		}, nil
	}

	return nil, errors.Wrapf(lastErr, "all %d models failed for task %s", len(models), task)
}

// createMessages sends a request to the Anthropic Messages API with retries
// on transient network errors.
func (c *Client) createMessages(ctx context.Context, req MessagesRequest) (*MessagesResponse, error) {
	const maxRetries = 3

	var resp *MessagesResponse
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		resp, err = c.doMessages(ctx, req)
		if err == nil {
			return resp, nil
		}
		if !isRetryableError(err) {
			return nil, err
		}
	}
	return nil, errors.Wrapf(err, "request failed after %d retries", maxRetries)
}

func (c *Client) doMessages(ctx context.Context, req MessagesRequest) (*MessagesResponse, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/messages", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", APIVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("API request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var messagesResp MessagesResponse
	if err := json.Unmarshal(respBody, &messagesResp); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal response")
	}

	return &messagesResp, nil
}

// isRetryableError checks if an error is worth retrying
func isRetryableError(err error) bool {
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return true
	}

	if opErr, ok := err.(*net.OpError); ok {
		if errno, ok := opErr.Err.(syscall.Errno); ok {
			switch errno {
			case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ETIMEDOUT:
				return true
			}
		}
	}

	errStr := strings.ToLower(err.Error())
	networkErrors := []string{
		"connection reset by peer",
		"connection refused",
		"timeout",
		"temporary failure",
		"network is unreachable",
		"i/o timeout",
		"overloaded", // Anthropic-specific
		"529",        // Anthropic overloaded status
	}

	for _, netErr := range networkErrors {
		if strings.Contains(errStr, netErr) {
			return true
		}
	}

	return false
}

// IsConfigured returns true if the client has an API key
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// SetHTTPClient allows overriding the HTTP client for testing
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// SetBaseURL allows overriding the API endpoint for testing
func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}
