package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestChooseModels(t *testing.T) {
	tests := []struct {
		task     Task
		override string
		first    string
		count    int
	}{
		{TaskSuggest, "", "claude-3-5-sonnet-20241022", 5},
		{TaskSummary, "", "claude-3-5-sonnet-20241022", 5},
		{TaskWeekly, "", "claude-3-5-sonnet-20241022", 5},
		{TaskReply, "", "claude-3-5-haiku-20241022", 4},
		{TaskScan, "", "claude-3-5-haiku-20241022", 4},
		{TaskSuggest, "claude-3-opus-latest", "claude-3-opus-latest", 1},
	}

	for _, tt := range tests {
		models := ChooseModels(tt.task, tt.override)
		if len(models) != tt.count {
			t.Errorf("ChooseModels(%s, %q) returned %d models, want %d", tt.task, tt.override, len(models), tt.count)
		}
		if models[0] != tt.first {
			t.Errorf("ChooseModels(%s, %q)[0] = %s, want %s", tt.task, tt.override, models[0], tt.first)
		}
	}
}

func TestCompleteFallsBackToNextModel(t *testing.T) {
	var attempts []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req MessagesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		attempts = append(attempts, req.Model)

		// First model 400s (not retryable), second succeeds
		if len(attempts) == 1 {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"type":"invalid_request_error"}}`))
			return
		}

		json.NewEncoder(w).Encode(MessagesResponse{
			Model: req.Model,
			Content: []ContentBlock{
				{Type: "text", Text: "  a draft  "},
			},
			Usage: Usage{InputTokens: 100, OutputTokens: 50},
		})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test-key"})
	client.SetHTTPClient(server.Client())
	client.SetBaseURL(server.URL)

	completion, err := client.Complete(context.Background(), TaskSummary, "write a summary")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if completion.Text != "a draft" {
		t.Errorf("Text = %q, want trimmed %q", completion.Text, "a draft")
	}
	if len(attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d: %v", len(attempts), attempts)
	}
	if attempts[0] != "claude-3-5-sonnet-20241022" || attempts[1] != "claude-3-5-sonnet-latest" {
		t.Errorf("unexpected fallback order: %v", attempts)
	}
	if completion.CostUSD <= 0 {
		t.Error("expected non-zero cost for known model")
	}
}

func TestCompleteAllModelsFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test-key", Model: "pinned-model"})
	client.SetHTTPClient(server.Client())
	client.SetBaseURL(server.URL)

	_, err := client.Complete(context.Background(), TaskReply, "hello")
	if err == nil {
		t.Fatal("expected error when all models fail")
	}
}

func TestCompleteWithoutAPIKey(t *testing.T) {
	client := NewClient(Config{})
	if client.IsConfigured() {
		t.Error("client without key should not be configured")
	}
	if _, err := client.Complete(context.Background(), TaskSuggest, "x"); err == nil {
		t.Fatal("expected not-configured error")
	}
}

func TestCalculateCost(t *testing.T) {
	// 1M input + 1M output on haiku 3.5 = 0.80 + 4.00
	cost := CalculateCost("claude-3-5-haiku-20241022", 1_000_000, 1_000_000)
	if cost != 4.80 {
		t.Errorf("cost = %f, want 4.80", cost)
	}

	if cost := CalculateCost("unknown-model", 10, 10); cost != DefaultPricingFallback {
		t.Errorf("unknown model cost = %f, want fallback %f", cost, DefaultPricingFallback)
	}
}
