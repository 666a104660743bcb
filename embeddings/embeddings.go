// Package embeddings wraps the embedding model backend. The backend is a
// process-wide singleton: however many components ask for an embedder, only
// one client is ever constructed.
package embeddings

import (
	"context"
	"errors"
)

// ErrBackend marks an unavailable embedding backend or a rejected batch.
var ErrBackend = errors.New("embedding backend error")

// Item is one multimodal input: a text snippet or an image reference.
type Item struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

type Embedder interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedItems embeds heterogeneous text/image items, one vector each.
	EmbedItems(ctx context.Context, items []Item) ([][]float32, error)
}

type Options struct {
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int
}
