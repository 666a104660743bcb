package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nexusai/backend/embeddings"
	"github.com/nexusai/backend/extract"
)

// ErrEmptyDocument marks an upload whose extracted text produced no chunks.
// It is a client-input error.
var ErrEmptyDocument = errors.New("file is empty or could not be parsed")

// Indexer is the write path of the knowledge index.
type Indexer interface {
	Upsert(ctx context.Context, sourceFile string, chunks []string, vectors [][]float32) error
}

// Result reports a completed ingestion.
type Result struct {
	Filename    string
	ChunksCount int
	Timestamp   time.Time
}

type Service struct {
	embedder     embeddings.Embedder
	index        Indexer
	logger       zerolog.Logger
	chunkSize    int
	chunkOverlap int
}

func NewService(embedder embeddings.Embedder, index Indexer, logger zerolog.Logger, chunkSize, chunkOverlap int) *Service {
	return &Service{
		embedder:     embedder,
		index:        index,
		logger:       logger,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// IngestFile runs the write path: extract text, chunk it, embed the chunks,
// and upsert them under filename. Re-ingesting a filename overwrites its
// previous chunks point by point.
func (s *Service) IngestFile(ctx context.Context, filename string, data []byte) (*Result, error) {
	text, err := extract.Extract(data, filename)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filename, err)
	}

	chunks, err := Chunk(text, s.chunkSize, s.chunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", filename, err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%s: %w", filename, ErrEmptyDocument)
	}

	vectors, err := s.embedder.Embed(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", filename, err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embed %s: %w: have %d chunks, %d vectors",
			filename, embeddings.ErrBackend, len(chunks), len(vectors))
	}

	if err := s.index.Upsert(ctx, filename, chunks, vectors); err != nil {
		return nil, fmt.Errorf("index %s: %w", filename, err)
	}

	s.logger.Info().Str("filename", filename).Int("chunks", len(chunks)).Msg("ingested document")
	return &Result{
		Filename:    filename,
		ChunksCount: len(chunks),
		Timestamp:   time.Now(),
	}, nil
}
