/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - LLM Client
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/apperr"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/config"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/logging"
)

// Request is a single prompt/response exchange with a model.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
	Model       string // Overrides the client's model when set
}

// Completer produces a text completion for a request.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Client handles interactions with LLM APIs (OpenAI, Anthropic or Ollama)
type Client struct {
	provider   string
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	openai     llms.Model
}

// NewClient creates a new LLM client for the configured provider
func NewClient(cfg config.LLMConfig) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	c := &Client{
		provider:   cfg.Provider,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
	}

	switch cfg.Provider {
	case "anthropic":
		c.apiKey = cfg.AnthropicAPIKey
		c.baseURL = strings.TrimSuffix(cfg.AnthropicBaseURL, "/")
		if c.baseURL == "" {
			c.baseURL = "https://api.anthropic.com/v1"
		}
	case "ollama":
		c.baseURL = strings.TrimSuffix(cfg.OllamaURL, "/")
	case "openai":
		c.apiKey = cfg.OpenAIAPIKey
		c.baseURL = strings.TrimSuffix(cfg.OpenAIBaseURL, "/")
		if c.apiKey == "" {
			return c, nil
		}
		opts := []openai.Option{
			openai.WithToken(c.apiKey),
			openai.WithModel(c.model),
			openai.WithHTTPClient(c.httpClient),
		}
		if c.baseURL != "" {
			opts = append(opts, openai.WithBaseURL(c.baseURL))
		}
		model, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
		}
		c.openai = model
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
	return c, nil
}

// Provider returns the configured provider name
func (c *Client) Provider() string {
	return c.provider
}

// Model returns the default model name
func (c *Client) Model() string {
	return c.model
}

// IsConfigured returns whether the client is properly configured
func (c *Client) IsConfigured() bool {
	switch c.provider {
	case "anthropic":
		return c.apiKey != ""
	case "ollama":
		return c.baseURL != "" && c.model != ""
	case "openai":
		return c.openai != nil
	default:
		return false
	}
}

// Complete sends the request to the configured provider and returns the text
// of the first choice.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if !c.IsConfigured() {
		return "", apperr.New(apperr.KindCollaboratorUnavailable, "llm.complete", "LLM client not configured")
	}
	if req.Model == "" {
		req.Model = c.model
	}

	start := time.Now()
	var text string
	var err error
	switch c.provider {
	case "anthropic":
		text, err = c.completeWithAnthropic(ctx, req)
	case "ollama":
		text, err = c.completeWithOllama(ctx, req)
	default:
		text, err = c.completeWithOpenAI(ctx, req)
	}
	if err != nil {
		logging.Warn("llm call failed", "provider", c.provider, "model", req.Model,
			"duration", time.Since(start).String(), "error", err.Error())
		return "", classifyError(err)
	}

	logging.Debug("llm call", "provider", c.provider, "model", req.Model,
		"prompt_chars", len(req.Prompt), "response_chars", len(text),
		"duration", time.Since(start).String())
	return strings.TrimSpace(text), nil
}

func (c *Client) completeWithOpenAI(ctx context.Context, req Request) (string, error) {
	var content []llms.MessageContent
	if req.System != "" {
		content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	content = append(content, llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt))

	opts := []llms.CallOption{
		llms.WithModel(req.Model),
		llms.WithTemperature(req.Temperature),
	}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}

	resp, err := c.openai.GenerateContent(ctx, content, opts...)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Content, nil
}

// completeWithAnthropic uses Anthropic's Messages API
func (c *Client) completeWithAnthropic(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	reqBody := claudeRequest{
		Model:       req.Model,
		MaxTokens:   maxTokens,
		System:      req.System,
		Temperature: req.Temperature,
		Messages: []chatMessage{
			{Role: "user", Content: req.Prompt},
		},
	}

	body, err := c.post(ctx, c.baseURL+"/messages", reqBody, func(r *http.Request) {
		r.Header.Set("x-api-key", c.apiKey)
		r.Header.Set("anthropic-version", "2023-06-01")
	})
	if err != nil {
		return "", err
	}

	var claudeResp claudeResponse
	if err := json.Unmarshal(body, &claudeResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	var parts []string
	for _, block := range claudeResp.Content {
		if block.Type == "" || block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}
	return strings.Join(parts, ""), nil
}

// completeWithOllama uses Ollama's OpenAI-compatible API
func (c *Client) completeWithOllama(ctx context.Context, req Request) (string, error) {
	var messages []chatMessage
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	reqBody := ollamaRequest{
		Model:       req.Model,
		Messages:    messages,
		Stream:      false,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	body, err := c.post(ctx, c.baseURL+"/v1/chat/completions", reqBody, nil)
	if err != nil {
		return "", err
	}

	var ollamaResp ollamaResponse
	if err := json.Unmarshal(body, &ollamaResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(ollamaResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return ollamaResp.Choices[0].Message.Content, nil
}

func (c *Client) post(ctx context.Context, url string, payload any, decorate func(*http.Request)) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if decorate != nil {
		decorate(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "WARNING: Failed to close HTTP response body: %v\n", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// IsContextLengthError reports whether a provider error says the prompt was
// too long for the model.
func IsContextLengthError(err error) bool {
	if err == nil {
		return false
	}
	if apperr.KindOf(err) == apperr.KindContextTooLarge {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "context_length_exceeded") ||
		strings.Contains(msg, "maximum context length") ||
		strings.Contains(msg, "prompt is too long")
}

func classifyError(err error) error {
	if IsContextLengthError(err) {
		return apperr.Wrap(apperr.KindContextTooLarge, "llm.complete", err)
	}
	if apperr.KindOf(err) != apperr.KindUnknown {
		return err
	}
	return apperr.Wrap(apperr.KindCollaboratorUnavailable, "llm.complete", err)
}

// Internal types for Claude API
type claudeRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	System      string        `json:"system,omitempty"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	ID      string               `json:"id"`
	Type    string               `json:"type"`
	Role    string               `json:"role"`
	Content []claudeContentBlock `json:"content"`
}

type claudeContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Internal types for Ollama API (OpenAI-compatible)
type ollamaRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type ollamaResponse struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []ollamaChoice `json:"choices"`
}

type ollamaChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}
