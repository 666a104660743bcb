package embeddings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func TestSharedReturnsSameInstance(t *testing.T) {
	first := Shared(Options{BaseURL: "http://localhost:1", Model: "m", Dimension: 8})
	second := Shared(Options{BaseURL: "http://localhost:2", Model: "other", Dimension: 16})
	if first != second {
		t.Fatal("expected Shared to return the same embedder on every call")
	}
}

func TestTruncate(t *testing.T) {
	vec := []float32{1, 2, 3, 4}

	got := truncate(vec, 2)
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("expected leading components [1 2], got %v", got)
	}

	if got := truncate(vec, 4); len(got) != 4 {
		t.Fatalf("expected vector kept at native size, got %v", got)
	}
	if got := truncate(vec, 8); len(got) != 4 {
		t.Fatalf("expected shorter vector untouched, got %v", got)
	}
	if got := truncate(vec, 0); len(got) != 4 {
		t.Fatalf("expected zero dimension to disable truncation, got %v", got)
	}
}

func newTestEmbedder(baseURL string, dimension int) *openAIEmbedder {
	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = baseURL
	return &openAIEmbedder{
		client:    openai.NewClientWithConfig(cfg),
		model:     "test-model",
		dimension: dimension,
	}
}

type embeddingDatum struct {
	Object    string    `json:"object"`
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

type embeddingsResponse struct {
	Object string           `json:"object"`
	Data   []embeddingDatum `json:"data"`
	Model  string           `json:"model"`
}

func serveEmbeddings(t *testing.T, data []embeddingDatum, captured *[][]map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			var req map[string]any
			if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
				items := make([]map[string]any, 0)
				if raw, ok := req["input"].([]any); ok {
					for _, it := range raw {
						if m, ok := it.(map[string]any); ok {
							items = append(items, m)
						}
					}
				}
				*captured = append(*captured, items)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(embeddingsResponse{Object: "list", Data: data, Model: "test-model"})
	}))
}

func TestEmbedOrdersVectorsByIndex(t *testing.T) {
	// Respond out of order; placement must follow the index field.
	srv := serveEmbeddings(t, []embeddingDatum{
		{Object: "embedding", Index: 1, Embedding: []float32{3, 4, 5, 6}},
		{Object: "embedding", Index: 0, Embedding: []float32{1, 2, 3, 4}},
	}, nil)
	defer srv.Close()

	embedder := newTestEmbedder(srv.URL, 2)
	vectors, err := embedder.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}
	if vectors[0][0] != 1 || vectors[1][0] != 3 {
		t.Fatalf("vectors not placed by index: %v", vectors)
	}
	for i, v := range vectors {
		if len(v) != 2 {
			t.Fatalf("vector %d not truncated to dimension 2: %v", i, v)
		}
	}
}

func TestEmbedBackendFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	embedder := newTestEmbedder(srv.URL, 4)
	_, err := embedder.Embed(context.Background(), []string{"text"})
	if !errors.Is(err, ErrBackend) {
		t.Fatalf("expected ErrBackend, got %v", err)
	}
}

func TestEmbedCountMismatch(t *testing.T) {
	srv := serveEmbeddings(t, []embeddingDatum{
		{Object: "embedding", Index: 0, Embedding: []float32{1, 2}},
	}, nil)
	defer srv.Close()

	embedder := newTestEmbedder(srv.URL, 2)
	_, err := embedder.Embed(context.Background(), []string{"one", "two"})
	if !errors.Is(err, ErrBackend) {
		t.Fatalf("expected ErrBackend on short batch, got %v", err)
	}
}

func TestEmbedItemsMixedBatch(t *testing.T) {
	var requests [][]map[string]any
	srv := serveEmbeddings(t, []embeddingDatum{
		{Object: "embedding", Index: 0, Embedding: []float32{1, 2}},
		{Object: "embedding", Index: 1, Embedding: []float32{3, 4}},
	}, &requests)
	defer srv.Close()

	embedder := newTestEmbedder(srv.URL, 2)
	vectors, err := embedder.EmbedItems(context.Background(), []Item{
		{Text: "a caption"},
		{Image: "http://example.com/cat.png"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}

	if len(requests) != 1 || len(requests[0]) != 2 {
		t.Fatalf("expected one request with 2 items, got %v", requests)
	}
	items := requests[0]
	if items[0]["text"] != "a caption" {
		t.Fatalf("first item lost its text: %v", items[0])
	}
	if _, hasImage := items[0]["image"]; hasImage {
		t.Fatalf("text-only item should omit image: %v", items[0])
	}
	if items[1]["image"] != "http://example.com/cat.png" {
		t.Fatalf("second item lost its image: %v", items[1])
	}
}
