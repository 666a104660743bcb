// Package knowledge stores chunk vectors with provenance and serves cosine
// similarity search, backed by Postgres with the pgvector extension.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog"
)

// ErrUnavailable marks a backend connectivity or query failure. The index is
// a hard dependency of both the ingestion and query paths; callers must not
// assume it degrades gracefully.
var ErrUnavailable = errors.New("knowledge index unavailable")

// listPageSize bounds each page of the distinct-file scan.
const listPageSize = 100

// pointNamespace seeds deterministic chunk ids so that re-ingesting the same
// source_file + chunk_index overwrites the existing point.
var pointNamespace = uuid.MustParse("8f7f4f5a-1b0a-4a69-9c7d-2f4f3f1d9b6e")

var tableNameRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Hit is one similarity-search result.
type Hit struct {
	SourceFile string
	ChunkIndex int
	Content    string
	Score      float64
}

type Index struct {
	pool      *pgxpool.Pool
	table     string
	dimension int
	logger    zerolog.Logger
}

func NewIndex(pool *pgxpool.Pool, table string, dimension int, logger zerolog.Logger) (*Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive, got %d", dimension)
	}
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("invalid chunks table name %q", table)
	}
	return &Index{pool: pool, table: table, dimension: dimension, logger: logger}, nil
}

// PointID derives the stable identity of a chunk from its provenance.
func PointID(sourceFile string, chunkIndex int) uuid.UUID {
	return uuid.NewSHA1(pointNamespace, []byte(fmt.Sprintf("%s:%d", sourceFile, chunkIndex)))
}

// EnsureReady creates the backing table if absent. If the table exists with a
// different vector dimension it is dropped and recreated empty; previously
// indexed documents must be re-ingested. A table that exists without an
// embedding column is someone else's schema and fails instead of being
// touched. Safe to call on every process start.
func (ix *Index) EnsureReady(ctx context.Context) error {
	var exists bool
	if err := ix.pool.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", ix.table).Scan(&exists); err != nil {
		return fmt.Errorf("%w: inspect table %s: %v", ErrUnavailable, ix.table, err)
	}
	if !exists {
		return ix.createTable(ctx)
	}

	var current int
	err := ix.pool.QueryRow(ctx, `
		SELECT a.atttypmod
		FROM pg_attribute a
		WHERE a.attrelid = to_regclass($1) AND a.attname = 'embedding' AND NOT a.attisdropped
	`, ix.table).Scan(&current)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("table %s exists without an embedding column; drop it or change CHUNKS_TABLE", ix.table)
	case err != nil:
		return fmt.Errorf("%w: inspect table %s: %v", ErrUnavailable, ix.table, err)
	}

	if current != ix.dimension {
		ix.logger.Warn().
			Str("table", ix.table).
			Int("have_dimension", current).
			Int("want_dimension", ix.dimension).
			Msg("vector dimension mismatch, dropping and recreating collection; re-ingest documents")
		if _, err := ix.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", ix.table)); err != nil {
			return fmt.Errorf("%w: drop table %s: %v", ErrUnavailable, ix.table, err)
		}
		return ix.createTable(ctx)
	}
	return nil
}

func (ix *Index) createTable(ctx context.Context) error {
	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			source_file TEXT NOT NULL,
			chunk_index INT NOT NULL,
			content TEXT NOT NULL,
			embedding VECTOR(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, ix.table, ix.dimension),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_source_file ON %s(source_file)", ix.table, ix.table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_embedding ON %s USING ivfflat (embedding vector_cosine_ops)", ix.table, ix.table),
	}

	for _, stmt := range stmts {
		if _, err := ix.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w: create table %s: %v", ErrUnavailable, ix.table, err)
		}
	}
	return nil
}

// Upsert writes one point per chunk. Point identity is derived from
// (sourceFile, chunk index), so re-ingesting a file overwrites its points
// instead of duplicating them. Writes are visible to searches on commit.
func (ix *Index) Upsert(ctx context.Context, sourceFile string, chunks []string, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk and vector counts differ: %d vs %d", len(chunks), len(vectors))
	}
	for i, vec := range vectors {
		if len(vec) != ix.dimension {
			return fmt.Errorf("chunk %d vector has dimension %d, index expects %d", i, len(vec), ix.dimension)
		}
	}

	tx, err := ix.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("%w: begin upsert: %v", ErrUnavailable, err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, source_file, chunk_index, content, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			source_file = EXCLUDED.source_file,
			chunk_index = EXCLUDED.chunk_index,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding
	`, ix.table)

	for i, chunk := range chunks {
		id := PointID(sourceFile, i)
		if _, err := tx.Exec(ctx, stmt, id, sourceFile, i, chunk, pgvector.NewVector(vectors[i])); err != nil {
			return fmt.Errorf("%w: upsert chunk %d of %s: %v", ErrUnavailable, i, sourceFile, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit upsert of %s: %v", ErrUnavailable, sourceFile, err)
	}
	return nil
}

// Search returns up to limit hits ranked by cosine similarity, descending.
func (ix *Index) Search(ctx context.Context, vector []float32, limit int) ([]Hit, error) {
	if len(vector) != ix.dimension {
		return nil, fmt.Errorf("query vector has dimension %d, index expects %d", len(vector), ix.dimension)
	}
	if limit <= 0 {
		limit = 5
	}

	rows, err := ix.pool.Query(ctx, fmt.Sprintf(`
		SELECT source_file, chunk_index, content, 1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2
	`, ix.table), pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	hits := make([]Hit, 0, limit)
	for rows.Next() {
		var hit Hit
		if err := rows.Scan(&hit.SourceFile, &hit.ChunkIndex, &hit.Content, &hit.Score); err != nil {
			return nil, fmt.Errorf("%w: scan hit: %v", ErrUnavailable, err)
		}
		hits = append(hits, hit)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("%w: search rows: %v", ErrUnavailable, rows.Err())
	}
	return hits, nil
}

// DeleteByFile removes every chunk of sourceFile. Deleting a file that was
// never indexed succeeds with no effect.
func (ix *Index) DeleteByFile(ctx context.Context, sourceFile string) error {
	_, err := ix.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE source_file = $1", ix.table), sourceFile)
	if err != nil {
		return fmt.Errorf("%w: delete %s: %v", ErrUnavailable, sourceFile, err)
	}
	return nil
}

// ListDistinctFiles scans the whole collection in keyset-paged batches and
// accumulates the unique source files.
func (ix *Index) ListDistinctFiles(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	files := make([]string, 0)

	cursor := uuid.Nil
	for {
		rows, err := ix.pool.Query(ctx, fmt.Sprintf(`
			SELECT id, source_file FROM %s
			WHERE id > $1
			ORDER BY id
			LIMIT $2
		`, ix.table), cursor, listPageSize)
		if err != nil {
			return nil, fmt.Errorf("%w: list files: %v", ErrUnavailable, err)
		}

		count := 0
		for rows.Next() {
			var (
				id   uuid.UUID
				file string
			)
			if err := rows.Scan(&id, &file); err != nil {
				rows.Close()
				return nil, fmt.Errorf("%w: scan file page: %v", ErrUnavailable, err)
			}
			cursor = id
			count++
			if _, ok := seen[file]; !ok {
				seen[file] = struct{}{}
				files = append(files, file)
			}
		}
		rows.Close()
		if rows.Err() != nil {
			return nil, fmt.Errorf("%w: list file rows: %v", ErrUnavailable, rows.Err())
		}
		if count < listPageSize {
			return files, nil
		}
	}
}

// Ping reports whether the backend is reachable.
func (ix *Index) Ping(ctx context.Context) error {
	if err := ix.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
