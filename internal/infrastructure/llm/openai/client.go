package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kirillkom/prism-answer/internal/core/domain"
)

const systemPrompt = "You answer strictly from the supplied evidence and reply in the requested JSON format."

type Config struct {
	// Name labels the provider in logs and metrics, e.g. "groq" or "gemini".
	Name    string
	APIKey  string
	BaseURL string
	Model   string
}

// Completer talks to any OpenAI-compatible chat completions endpoint.
type Completer struct {
	name   string
	model  string
	client *goopenai.Client
}

func New(cfg Config) (*Completer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%s: api key is required", providerName(cfg))
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("%s: model is required", providerName(cfg))
	}
	clientConfig := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &Completer{
		name:   providerName(cfg),
		model:  cfg.Model,
		client: goopenai.NewClientWithConfig(clientConfig),
	}, nil
}

func (c *Completer) Name() string {
	return c.name
}

func (c *Completer) Complete(ctx context.Context, prompt string, opts domain.CompletionOptions) (string, error) {
	req := goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: float32(opts.Temperature),
		MaxTokens:   opts.MaxTokens,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", c.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: empty choices", c.name)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// StatusError carries the HTTP status of a failed provider call so callers
// can tell throttling apart from hard failures.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s status %d: %s", e.Provider, e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error { return e.Err }

func (e *StatusError) HTTPStatus() int { return e.StatusCode }

func (c *Completer) wrapError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", c.name, err)
	}

	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Provider: c.name, StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		msg := reqErr.Error()
		if len(reqErr.Body) > 0 {
			msg = strings.TrimSpace(string(reqErr.Body))
		}
		return &StatusError{Provider: c.name, StatusCode: reqErr.HTTPStatusCode, Message: msg, Err: err}
	}
	return domain.WrapError(domain.ErrTemporary, c.name+" request", err)
}

func providerName(cfg Config) string {
	if name := strings.TrimSpace(cfg.Name); name != "" {
		return name
	}
	return "openai"
}
