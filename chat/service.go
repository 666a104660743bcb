// Package chat composes the embedder, knowledge index, and streaming LLM into
// one retrieval-augmented answer cycle.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nexusai/backend/embeddings"
	"github.com/nexusai/backend/history"
	"github.com/nexusai/backend/knowledge"
	"github.com/nexusai/backend/llm"
)

const (
	// topK chunks are retrieved for every query.
	topK = 5

	contextDivider = "\n\n---\n\n"

	systemPromptFormat = "You are a helpful assistant for NexusAI. Use the following pieces of retrieved context " +
		"to answer the user's question. If you don't know the answer, just say that you don't know, " +
		"don't try to make up an answer. Keep the answer concise.\n\nContext:\n%s"

	// moderationFallback replaces the answer when the backend rejects the
	// request on content-policy grounds.
	moderationFallback = "I'm sorry, but I can't help with that request."
	// failureFallback replaces the answer on any other mid-stream failure.
	failureFallback = "Sorry, something went wrong while generating the answer. Please try again."
)

// Retriever is the read path of the knowledge index.
type Retriever interface {
	Search(ctx context.Context, vector []float32, limit int) ([]knowledge.Hit, error)
}

type Service struct {
	embedder embeddings.Embedder
	index    Retriever
	llm      llm.StreamClient
	logger   zerolog.Logger
}

func NewService(embedder embeddings.Embedder, index Retriever, llmClient llm.StreamClient, logger zerolog.Logger) *Service {
	return &Service{
		embedder: embedder,
		index:    index,
		llm:      llmClient,
		logger:   logger,
	}
}

// Answer embeds the query, retrieves the top-k matching chunks, and starts a
// streamed completion. It returns as soon as retrieval finishes; the channel
// delivers one Sources event, then Token events as the model produces them,
// and always ends with a single Done event, even after a mid-stream failure.
// Embedding or retrieval failures are returned as request-level errors
// instead.
//
// The channel is single-consumer and one-shot. Abandoning it requires
// canceling ctx, which also tears down the backend stream.
func (s *Service) Answer(ctx context.Context, query string, turns []history.Turn) (<-chan Event, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embed query: %w: no vectors returned", embeddings.ErrBackend)
	}

	hits, err := s.index.Search(ctx, vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	sources := make([]Source, 0, len(hits))
	contextParts := make([]string, 0, len(hits))
	for _, hit := range hits {
		contextParts = append(contextParts, hit.Content)
		sources = append(sources, Source{
			SourceFile: hit.SourceFile,
			Content:    hit.Content,
			Score:      hit.Score,
		})
	}

	messages := buildMessages(query, strings.Join(contextParts, contextDivider), turns)

	events := make(chan Event)
	go s.stream(ctx, query, messages, sources, events)
	return events, nil
}

func (s *Service) stream(ctx context.Context, query string, messages []llm.Message, sources []Source, events chan<- Event) {
	defer close(events)

	emit := func(ev Event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !emit(Event{Kind: EventSources, Sources: sources}) {
		return
	}

	err := s.llm.GenerateStream(ctx, messages, func(token string) error {
		if !emit(Event{Kind: EventToken, Token: token}) {
			return ctx.Err()
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		fallback := failureFallback
		if errors.Is(err, llm.ErrModeration) {
			fallback = moderationFallback
		}
		s.logger.Error().Err(err).Str("query", excerpt(query)).Msg("llm stream failed, substituting fallback answer")
		if !emit(Event{Kind: EventToken, Token: fallback}) {
			return
		}
	}

	emit(Event{Kind: EventDone})
}

// buildMessages lays out the prompt: system instruction with the retrieved
// context, prior turns in order, then the current query as the final user
// message.
func buildMessages(query, contextText string, turns []history.Turn) []llm.Message {
	messages := make([]llm.Message, 0, len(turns)+2)
	messages = append(messages, llm.Message{
		Role:    llm.RoleSystem,
		Content: fmt.Sprintf(systemPromptFormat, contextText),
	})
	for _, turn := range turns {
		role := llm.RoleUser
		if turn.IsAI {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Text})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: query})
	return messages
}

func excerpt(s string) string {
	const max = 80
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
