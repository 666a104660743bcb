package embeddings

import (
	"context"
	"fmt"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

var (
	sharedOnce sync.Once
	shared     *openAIEmbedder
)

type openAIEmbedder struct {
	client    *openai.Client
	model     string
	dimension int
}

// Shared returns the process-wide embedder, constructing it on first call.
// Later calls ignore opts.
func Shared(opts Options) Embedder {
	sharedOnce.Do(func() {
		cfg := openai.DefaultConfig(opts.APIKey)
		if opts.BaseURL != "" {
			cfg.BaseURL = opts.BaseURL
		}
		shared = &openAIEmbedder{
			client:    openai.NewClientWithConfig(cfg),
			model:     opts.Model,
			dimension: opts.Dimension,
		}
	})
	return shared
}

func (e *openAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return e.embed(ctx, texts, len(texts))
}

func (e *openAIEmbedder) EmbedItems(ctx context.Context, items []Item) ([][]float32, error) {
	return e.embed(ctx, items, len(items))
}

func (e *openAIEmbedder) embed(ctx context.Context, input any, count int) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: input,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create embeddings: %v", ErrBackend, err)
	}
	if len(resp.Data) != count {
		return nil, fmt.Errorf("%w: expected %d vectors, got %d", ErrBackend, count, len(resp.Data))
	}

	results := make([][]float32, count)
	for _, datum := range resp.Data {
		if datum.Index < 0 || datum.Index >= count {
			return nil, fmt.Errorf("%w: vector index %d out of range", ErrBackend, datum.Index)
		}
		results[datum.Index] = truncate(datum.Embedding, e.dimension)
	}
	return results, nil
}

// truncate keeps the first dimension components when the model's native
// output is larger (matryoshka-style truncation, no renormalization).
func truncate(vec []float32, dimension int) []float32 {
	if dimension > 0 && len(vec) > dimension {
		return vec[:dimension]
	}
	return vec
}
