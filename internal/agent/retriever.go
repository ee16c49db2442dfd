// Package agent implements the course assistant's agents: retrieval,
// answering, quiz generation and summarization, orchestrated by the
// Assistant.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/uniassist/uniassist/internal/knowledge"
)

// RetrieverName is the Genkit registry name for the course-material
// retriever.
const RetrieverName = "uniassist/course-material"

// Searcher is the subset of the knowledge store the retriever needs.
type Searcher interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
}

// Retriever finds course-material chunks relevant to a query.
type Retriever struct {
	searcher Searcher
	topK     int
	logger   *slog.Logger
}

// NewRetriever creates a Retriever. topK is the default result count.
func NewRetriever(searcher Searcher, topK int, logger *slog.Logger) (*Retriever, error) {
	if searcher == nil {
		return nil, fmt.Errorf("searcher is required")
	}
	if topK <= 0 {
		topK = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{searcher: searcher, topK: topK, logger: logger}, nil
}

// Retrieve returns the chunks most relevant to the query, optionally
// restricted to one source type.
func (r *Retriever) Retrieve(ctx context.Context, query, sourceType string, topK int) ([]knowledge.Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = r.topK
	}

	opts := []knowledge.SearchOption{knowledge.WithTopK(topK)}
	if sourceType != "" {
		opts = append(opts, knowledge.WithFilter("source_type", sourceType))
	}

	results, err := r.searcher.Search(ctx, query, opts...)
	if err != nil {
		return nil, fmt.Errorf("searching knowledge store: %w", err)
	}

	r.logger.Debug("retrieved context", "query_length", len(query), "results", len(results))
	return results, nil
}

// Define registers the retriever with Genkit so flows and the DevUI can
// call it through the standard ai.Retriever interface.
func (r *Retriever) Define(g *genkit.Genkit) ai.Retriever {
	return genkit.DefineRetriever(
		g, RetrieverName, nil,
		func(ctx context.Context, req *ai.RetrieverRequest) (*ai.RetrieverResponse, error) {
			query := queryText(req)

			results, err := r.Retrieve(ctx, query, "", r.topK)
			if err != nil {
				return nil, err
			}

			docs := make([]*ai.Document, len(results))
			for i, result := range results {
				metadata := make(map[string]any, len(result.Chunk.Metadata)+1)
				for k, v := range result.Chunk.Metadata {
					metadata[k] = v
				}
				metadata["similarity"] = result.Similarity
				docs[i] = ai.DocumentFromText(result.Chunk.Content, metadata)
			}

			return &ai.RetrieverResponse{Documents: docs}, nil
		},
	)
}

// queryText extracts the text from a RetrieverRequest query document.
func queryText(req *ai.RetrieverRequest) string {
	if req.Query != nil && len(req.Query.Content) > 0 {
		return req.Query.Content[0].Text
	}
	return ""
}
