// Package knowledge manages embedded course-material chunks with vector
// search backed by PostgreSQL + pgvector.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// VectorDimension is the embedding size stored in the chunks table.
// gemini-embedding-001 is truncated to this via output dimensionality;
// nomic-embed-text produces it natively.
const VectorDimension = 768

const (
	defaultSearchTimeout = 10 * time.Second
	embedTimeout         = 30 * time.Second
)

// Querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const upsertChunkSQL = `INSERT INTO chunks (id, content, embedding, metadata)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (id) DO UPDATE
	SET content = EXCLUDED.content,
	    embedding = EXCLUDED.embedding,
	    metadata = EXCLUDED.metadata`

const searchChunksSQL = `SELECT id, content, metadata, created_at,
		1 - (embedding <=> $1) AS similarity
	FROM chunks
	WHERE metadata @> $2
	ORDER BY embedding <=> $1
	LIMIT $3`

const searchChunksAllSQL = `SELECT id, content, metadata, created_at,
		1 - (embedding <=> $1) AS similarity
	FROM chunks
	ORDER BY embedding <=> $1
	LIMIT $2`

// Store manages course-material chunks with vector search capabilities.
// It handles embedding generation and similarity search over pgvector.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db       Querier
	embedder ai.Embedder
	embedCfg any
	logger   *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithEmbedOptions sets provider-specific options passed on every embed
// request, e.g. a genai.EmbedContentConfig carrying output dimensionality.
func WithEmbedOptions(opts any) Option {
	return func(s *Store) {
		s.embedCfg = opts
	}
}

// New creates a Store. The querier is typically a *pgxpool.Pool.
func New(db Querier, embedder ai.Embedder, logger *slog.Logger, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, errors.New("querier is required")
	}
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{db: db, embedder: embedder, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// embed generates a vector embedding for the given text.
func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	embedCtx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()

	resp, err := s.embedder.Embed(embedCtx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: s.embedCfg,
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, errors.New("empty embedding response")
	}

	vec := resp.Embeddings[0].Embedding
	if len(vec) != VectorDimension {
		return pgvector.Vector{}, fmt.Errorf("embedding dimension %d, want %d", len(vec), VectorDimension)
	}
	return pgvector.NewVector(vec), nil
}

// Add embeds a chunk's content and upserts it into the store.
// Re-adding a chunk with the same ID replaces its content and embedding.
func (s *Store) Add(ctx context.Context, chunk Chunk) error {
	if chunk.ID == "" {
		return errors.New("chunk ID must not be empty")
	}
	if chunk.Content == "" {
		return fmt.Errorf("chunk %q has empty content", chunk.ID)
	}

	vec, err := s.embed(ctx, chunk.Content)
	if err != nil {
		return fmt.Errorf("embedding chunk %q: %w", chunk.ID, err)
	}

	metadataJSON, err := json.Marshal(chunk.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	if _, err := s.db.Exec(ctx, upsertChunkSQL, chunk.ID, chunk.Content, vec, metadataJSON); err != nil {
		return fmt.Errorf("upserting chunk %q: %w", chunk.ID, err)
	}

	s.logger.Debug("added chunk", "id", chunk.ID, "content_length", len(chunk.Content))
	return nil
}

// Search performs semantic search over the store using functional options.
// Results are ordered by cosine similarity, highest first. A timeout is
// applied so slow vector searches cannot block callers indefinitely.
//
// Example:
//
//	results, err := store.Search(ctx, "explain pointers",
//	    knowledge.WithTopK(10),
//	    knowledge.WithFilter("source_type", "notes"))
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	vec, err := s.embed(queryCtx, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("query embedding timeout: %w", err)
		}
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	// The filter is always marshaled JSON matched with the parameterized
	// @> containment operator, never interpolated into the statement.
	var rows pgx.Rows
	if len(cfg.filter) > 0 {
		filterJSON, marshalErr := json.Marshal(cfg.filter)
		if marshalErr != nil {
			return nil, fmt.Errorf("marshaling filter: %w", marshalErr)
		}
		rows, err = s.db.Query(queryCtx, searchChunksSQL, vec, filterJSON, cfg.topK)
	} else {
		rows, err = s.db.Query(queryCtx, searchChunksAllSQL, vec, cfg.topK)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	return s.scanResults(rows)
}

func (s *Store) scanResults(rows pgx.Rows) ([]Result, error) {
	var results []Result
	for rows.Next() {
		var (
			chunk        Chunk
			metadataJSON []byte
			similarity   float32
		)
		if err := rows.Scan(&chunk.ID, &chunk.Content, &metadataJSON, &chunk.CreatedAt, &similarity); err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}
		if err := json.Unmarshal(metadataJSON, &chunk.Metadata); err != nil {
			s.logger.Warn("failed to parse metadata", "chunk_id", chunk.ID, "error", err)
			chunk.Metadata = make(map[string]string)
		}
		results = append(results, Result{Chunk: chunk, Similarity: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading result rows: %w", err)
	}
	return results, nil
}

// Count returns the number of chunks matching the given filter.
// A nil or empty filter counts all chunks.
func (s *Store) Count(ctx context.Context, filter map[string]string) (int, error) {
	var count int64
	var err error

	if len(filter) > 0 {
		filterJSON, marshalErr := json.Marshal(filter)
		if marshalErr != nil {
			return 0, fmt.Errorf("marshaling filter: %w", marshalErr)
		}
		err = s.db.QueryRow(ctx, `SELECT count(*) FROM chunks WHERE metadata @> $1`, filterJSON).Scan(&count)
	} else {
		err = s.db.QueryRow(ctx, `SELECT count(*) FROM chunks`).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}

	// Overflow guard for 32-bit platforms.
	if count > math.MaxInt {
		return 0, fmt.Errorf("chunk count %d exceeds platform int capacity", count)
	}
	return int(count), nil
}

// Delete removes a chunk by ID. Deleting a missing chunk is not an error.
func (s *Store) Delete(ctx context.Context, chunkID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM chunks WHERE id = $1`, chunkID); err != nil {
		return fmt.Errorf("deleting chunk %q: %w", chunkID, err)
	}

	s.logger.Debug("deleted chunk", "id", chunkID)
	return nil
}

// DeleteBySourceFile removes every chunk ingested from the given file.
// Returns the number of chunks removed.
func (s *Store) DeleteBySourceFile(ctx context.Context, sourceFile string) (int, error) {
	filterJSON, err := json.Marshal(map[string]string{"source_file": sourceFile})
	if err != nil {
		return 0, fmt.Errorf("marshaling filter: %w", err)
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM chunks WHERE metadata @> $1`, filterJSON)
	if err != nil {
		return 0, fmt.Errorf("deleting chunks for %q: %w", sourceFile, err)
	}

	deleted := int(tag.RowsAffected())
	s.logger.Debug("deleted chunks by source file", "source_file", sourceFile, "count", deleted)
	return deleted, nil
}

// ListBySourceType lists chunks of one source type without similarity
// calculation, newest first. Useful for showing what has been ingested.
func (s *Store) ListBySourceType(ctx context.Context, sourceType string, limit int) ([]Chunk, error) {
	const maxListLimit = 1000
	if limit <= 0 || limit > maxListLimit {
		return nil, fmt.Errorf("limit must be between 1 and %d, got %d", maxListLimit, limit)
	}
	if !slices.Contains(ValidSourceTypes, sourceType) {
		return nil, fmt.Errorf("invalid source type %q", sourceType)
	}

	filterJSON, err := json.Marshal(map[string]string{"source_type": sourceType})
	if err != nil {
		return nil, fmt.Errorf("marshaling filter: %w", err)
	}

	rows, err := s.db.Query(ctx, `SELECT id, content, metadata, created_at
		FROM chunks
		WHERE metadata @> $1
		ORDER BY created_at DESC
		LIMIT $2`, filterJSON, limit)
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var (
			chunk        Chunk
			metadataJSON []byte
		)
		if err := rows.Scan(&chunk.ID, &chunk.Content, &metadataJSON, &chunk.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning chunk row: %w", err)
		}
		if err := json.Unmarshal(metadataJSON, &chunk.Metadata); err != nil {
			s.logger.Warn("failed to parse metadata", "chunk_id", chunk.ID, "error", err)
			chunk.Metadata = make(map[string]string)
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading chunk rows: %w", err)
	}
	return chunks, nil
}
