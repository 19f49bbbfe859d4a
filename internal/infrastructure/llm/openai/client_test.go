package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kirillkom/prism-answer/internal/core/domain"
)

func TestCompleterSendsPromptAndOptions(t *testing.T) {
	var captured goopenai.ChatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected path /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(goopenai.ChatCompletionResponse{
			Choices: []goopenai.ChatCompletionChoice{{
				Message: goopenai.ChatCompletionMessage{Role: "assistant", Content: "  {\"answer\":\"x\"}\n"},
			}},
		})
	}))
	defer server.Close()

	completer, err := New(Config{Name: "groq", APIKey: "test-key", BaseURL: server.URL, Model: "llama"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	out, err := completer.Complete(context.Background(), "the prompt", domain.CompletionOptions{Temperature: 0.3, MaxTokens: 512})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != `{"answer":"x"}` {
		t.Fatalf("unexpected completion %q", out)
	}
	if captured.Model != "llama" || captured.MaxTokens != 512 || captured.Temperature != float32(0.3) {
		t.Fatalf("unexpected request %+v", captured)
	}
	if len(captured.Messages) != 2 || captured.Messages[1].Content != "the prompt" {
		t.Fatalf("unexpected messages %+v", captured.Messages)
	}
	if completer.Name() != "groq" {
		t.Fatalf("unexpected name %q", completer.Name())
	}
}

func TestCompleterExposesStatusOnRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached. Please retry in 4.5s","type":"rate_limit"}}`))
	}))
	defer server.Close()

	completer, err := New(Config{APIKey: "k", BaseURL: server.URL, Model: "m"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = completer.Complete(context.Background(), "p", domain.CompletionOptions{})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %T %v", err, err)
	}
	if statusErr.HTTPStatus() != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", statusErr.StatusCode)
	}
}

func TestNewRequiresKeyAndModel(t *testing.T) {
	if _, err := New(Config{Model: "m"}); err == nil {
		t.Fatalf("expected missing key error")
	}
	if _, err := New(Config{APIKey: "k"}); err == nil {
		t.Fatalf("expected missing model error")
	}
}
