// Package llm streams chat completions from the configured inference backend.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/nexusai/backend/config"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrModeration marks a content-policy rejection from the backend. Callers
// substitute a user-facing message instead of propagating it.
var ErrModeration = errors.New("response rejected by content policy")

type Message struct {
	Role    string
	Content string
}

// StreamClient generates an answer incrementally, invoking fn once per token.
// A non-nil error from fn aborts the stream and is returned unchanged.
type StreamClient interface {
	GenerateStream(ctx context.Context, messages []Message, fn func(token string) error) error
}

type Options struct {
	Provider string
	Model    string

	BaseURL    string
	APIKey     string
	OllamaHost string
}

func NewClient(cfg *config.Config) (StreamClient, error) {
	opts := Options{
		Provider:   cfg.LLMProvider,
		Model:      cfg.LLMModel,
		BaseURL:    cfg.LLMBaseURL,
		APIKey:     cfg.LLMAPIKey,
		OllamaHost: cfg.OllamaHost,
	}

	switch opts.Provider {
	case config.ProviderOllama:
		return NewOllamaClient(opts), nil
	case config.ProviderOpenAI:
		if opts.APIKey == "" {
			return nil, fmt.Errorf("openai-compatible provider selected but LLM_API_KEY not set")
		}
		return NewOpenAIClient(opts), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", opts.Provider)
	}
}
