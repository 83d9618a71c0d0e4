package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultBaseURL = "https://api.tokenfactory.nebius.com/v1/"
	defaultModel   = "openai/gpt-oss-120b"
)

// ErrEmptyResponse is returned when the model answers with no choices.
var ErrEmptyResponse = errors.New("llm: empty response")

// Config holds client settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Temperature float32
	MaxTokens   int
	// JSONMode asks the server for a JSON object reply. Not every
	// OpenAI-compatible backend honours it.
	JSONMode bool
	// Retries is how many times a rate-limited or 5xx call is repeated.
	Retries int
}

// Client wraps an OpenAI-compatible chat completion API.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	jsonMode    bool
	retries     int
}

var retryBackoff = time.Second

// New creates a client from config.
func New(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("llm: API key is required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 800
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	openaiCfg := openai.DefaultConfig(apiKey)
	openaiCfg.BaseURL = baseURL

	return &Client{
		api:         openai.NewClientWithConfig(openaiCfg),
		model:       model,
		temperature: max(cfg.Temperature, 0),
		maxTokens:   maxTokens,
		timeout:     timeout,
		jsonMode:    cfg.JSONMode,
		retries:     max(cfg.Retries, 0),
	}, nil
}

func (c *Client) Model() string {
	return c.model
}

// Complete sends a single-shot prompt and returns the response text.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("llm: client is nil")
	}
	if systemPrompt == "" || userPrompt == "" {
		return "", fmt.Errorf("llm: prompts must be provided")
	}

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
	if c.jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	for attempt := 0; ; attempt++ {
		out, err := c.complete(ctx, req)
		if err == nil || attempt >= c.retries || !transient(err) {
			return out, err
		}
		wait := retryBackoff * time.Duration(1<<attempt)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("llm: chat completion (%s): %w", c.model, err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// transient reports rate limiting and upstream 5xx answers.
func transient(err error) bool {
	var status int
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	default:
		return false
	}
	return status == http.StatusTooManyRequests || status >= 500
}
