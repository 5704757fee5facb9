/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - LLM Client Tests
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/apperr"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/config"
)

func TestNewClient(t *testing.T) {
	t.Run("unknown provider", func(t *testing.T) {
		if _, err := NewClient(config.LLMConfig{Provider: "bard"}); err == nil {
			t.Fatal("expected error for unknown provider")
		}
	})

	t.Run("anthropic default base url", func(t *testing.T) {
		client, err := NewClient(config.LLMConfig{Provider: "anthropic", AnthropicAPIKey: "k", Model: "m"})
		if err != nil {
			t.Fatalf("NewClient() error = %v", err)
		}
		if client.baseURL != "https://api.anthropic.com/v1" {
			t.Errorf("baseURL = %q", client.baseURL)
		}
	})

	t.Run("openai without key is unconfigured", func(t *testing.T) {
		client, err := NewClient(config.LLMConfig{Provider: "openai", Model: "gpt-4o-mini"})
		if err != nil {
			t.Fatalf("NewClient() error = %v", err)
		}
		if client.IsConfigured() {
			t.Error("expected unconfigured client")
		}
		_, err = client.Complete(context.Background(), Request{Prompt: "hi"})
		if !errors.Is(err, apperr.CollaboratorUnavailable) {
			t.Errorf("error = %v, want CollaboratorUnavailable", err)
		}
	})
}

func TestIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.LLMConfig
		expected bool
	}{
		{"anthropic with key", config.LLMConfig{Provider: "anthropic", AnthropicAPIKey: "sk-ant"}, true},
		{"anthropic without key", config.LLMConfig{Provider: "anthropic"}, false},
		{"ollama with url and model", config.LLMConfig{Provider: "ollama", OllamaURL: "http://localhost:11434", Model: "llama3"}, true},
		{"ollama without model", config.LLMConfig{Provider: "ollama", OllamaURL: "http://localhost:11434"}, false},
		{"openai with key", config.LLMConfig{Provider: "openai", OpenAIAPIKey: "sk-test", Model: "gpt-4o-mini"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.cfg)
			if err != nil {
				t.Fatalf("NewClient() error = %v", err)
			}
			if got := client.IsConfigured(); got != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCompleteWithAnthropic(t *testing.T) {
	var captured claudeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("path = %q, want /messages", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("x-api-key = %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != "2023-06-01" {
			t.Errorf("anthropic-version = %q", r.Header.Get("anthropic-version"))
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(claudeResponse{
			Content: []claudeContentBlock{{Type: "text", Text: "  [\"carbon accounting\"]  "}},
		})
	}))
	defer server.Close()

	client, err := NewClient(config.LLMConfig{
		Provider: "anthropic", AnthropicAPIKey: "test-key", AnthropicBaseURL: server.URL, Model: "claude-test",
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	got, err := client.Complete(context.Background(), Request{
		System: "You extract keywords.", Prompt: "gaps", Temperature: 0.3, MaxTokens: 500,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != `["carbon accounting"]` {
		t.Errorf("Complete() = %q", got)
	}
	if captured.Model != "claude-test" || captured.MaxTokens != 500 || captured.System != "You extract keywords." {
		t.Errorf("unexpected request: %+v", captured)
	}
	if captured.Temperature != 0.3 {
		t.Errorf("temperature = %v, want 0.3", captured.Temperature)
	}
}

func TestCompleteWithOllama(t *testing.T) {
	var captured ollamaRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(ollamaResponse{
			Choices: []ollamaChoice{{Message: chatMessage{Role: "assistant", Content: "ranked"}}},
		})
	}))
	defer server.Close()

	client, err := NewClient(config.LLMConfig{Provider: "ollama", OllamaURL: server.URL + "/", Model: "llama3"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	got, err := client.Complete(context.Background(), Request{System: "sys", Prompt: "rank", Model: "qwen"})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "ranked" {
		t.Errorf("Complete() = %q", got)
	}
	if captured.Model != "qwen" {
		t.Errorf("model = %q, want per-request override", captured.Model)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" {
		t.Errorf("messages = %+v", captured.Messages)
	}
}

func TestCompleteWithOpenAI(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "analysis text"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 2, "total_tokens": 12}
		}`))
	}))
	defer server.Close()

	client, err := NewClient(config.LLMConfig{
		Provider: "openai", OpenAIAPIKey: "sk-test", OpenAIBaseURL: server.URL, Model: "gpt-4o-mini",
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	got, err := client.Complete(context.Background(), Request{System: "sys", Prompt: "analyze", Temperature: 0.2})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "analysis text" {
		t.Errorf("Complete() = %q", got)
	}
	if body["model"] != "gpt-4o-mini" {
		t.Errorf("model = %v", body["model"])
	}
}

func TestCompleteErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{
			name:   "context length",
			status: http.StatusBadRequest,
			body:   `{"error":{"code":"context_length_exceeded","message":"This model's maximum context length is 16385 tokens"}}`,
			want:   apperr.ContextTooLarge,
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   `{"error":"boom"}`,
			want:   apperr.CollaboratorUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, _ := NewClient(config.LLMConfig{Provider: "ollama", OllamaURL: server.URL, Model: "llama3"})
			_, err := client.Complete(context.Background(), Request{Prompt: "x"})
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestIsContextLengthError(t *testing.T) {
	if IsContextLengthError(nil) {
		t.Error("nil is not a context length error")
	}
	if !IsContextLengthError(errors.New("Error: maximum context length is 4097 tokens")) {
		t.Error("expected maximum context length to match")
	}
	if !IsContextLengthError(apperr.New(apperr.KindContextTooLarge, "op", "too big")) {
		t.Error("expected classified error to match")
	}
	if IsContextLengthError(errors.New("rate limited")) {
		t.Error("rate limit is not a context length error")
	}
}

func TestCompleterFunc(t *testing.T) {
	var f Completer = CompleterFunc(func(_ context.Context, req Request) (string, error) {
		return strings.ToUpper(req.Prompt), nil
	})
	got, err := f.Complete(context.Background(), Request{Prompt: "esg"})
	if err != nil || got != "ESG" {
		t.Errorf("Complete() = %q, %v", got, err)
	}
}
