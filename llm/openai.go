package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

type openAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient talks to any OpenAI-compatible chat completions endpoint
// (OpenAI, DeepSeek, vLLM, ...).
func NewOpenAIClient(opts Options) StreamClient {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}

	return &openAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  opts.Model,
	}
}

func (c *openAIClient) GenerateStream(ctx context.Context, messages []Message, fn func(string) error) error {
	req := openai.ChatCompletionRequest{
		Model:  c.model,
		Stream: true,
	}

	req.Messages = make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return classifyOpenAIError(err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return classifyOpenAIError(err)
		}
		if len(resp.Choices) == 0 {
			continue
		}

		choice := resp.Choices[0]
		if choice.Delta.Content != "" {
			if err := fn(choice.Delta.Content); err != nil {
				return err
			}
		}
		if choice.FinishReason == openai.FinishReasonContentFilter {
			return fmt.Errorf("%w: finish reason content_filter", ErrModeration)
		}
	}
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code, _ := apiErr.Code.(string)
		message := strings.ToLower(apiErr.Message)
		if code == "content_filter" || code == "content_policy_violation" ||
			strings.Contains(message, "content policy") || strings.Contains(message, "moderation") {
			return fmt.Errorf("%w: %v", ErrModeration, err)
		}
	}
	return fmt.Errorf("openai chat stream: %w", err)
}
