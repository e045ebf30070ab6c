// Package memory implements the vector memory store: a storage backend paired
// with an embedding provider. Text is embedded on write, and retrieval runs a
// vector search with a keyword fallback when the vector path is unavailable.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/toolmemory/sleepmem-go/pkg/embedder"
	"github.com/toolmemory/sleepmem-go/pkg/storage"
)

// Outcome describes how a search was served.
type Outcome string

const (
	// OutcomeOK means the vector search path succeeded.
	OutcomeOK Outcome = "ok"

	// OutcomeDegraded means the vector path failed and results came from the
	// keyword fallback.
	OutcomeDegraded Outcome = "degraded"

	// OutcomeEmpty means no results were found, or every path failed.
	OutcomeEmpty Outcome = "empty"
)

// DefaultTopK is the number of results returned when the caller does not
// specify a limit.
const DefaultTopK = 5

// SearchResponse carries search results together with the outcome of the
// retrieval attempt. Search never returns an error: a total retrieval failure
// surfaces as an empty response.
type SearchResponse struct {
	Results []*storage.SearchResult
	Outcome Outcome
}

// Store is a vector memory store backed by an embedding provider and a
// storage backend.
type Store struct {
	backend  storage.Backend
	embedder embedder.Provider
	logger   *slog.Logger
}

// NewStore creates a memory store over the given backend and embedding
// provider.
func NewStore(backend storage.Backend, provider embedder.Provider, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend:  backend,
		embedder: provider,
		logger:   logger,
	}
}

// Add embeds text document-side and persists it with the given metadata.
// An embedding failure propagates and nothing is written.
func (s *Store) Add(ctx context.Context, text string, metadata map[string]interface{}) (string, error) {
	vector, err := s.embedder.Embed(ctx, text, embedder.InputTypeDocument)
	if err != nil {
		return "", fmt.Errorf("Add: embed: %w", err)
	}

	record := &storage.Record{
		Text:               text,
		Embedding:          vector,
		Metadata:           metadata,
		CreatedAt:          time.Now().UTC(),
		EmbeddingModel:     s.embedder.Model(),
		EmbeddingDimension: len(vector),
	}

	id, err := s.backend.Insert(ctx, record)
	if err != nil {
		return "", fmt.Errorf("Add: %w", err)
	}

	s.logger.Debug("memory stored",
		slog.String("id", id),
		slog.Int("text_len", len(text)),
	)
	return id, nil
}

// Search retrieves the topK most relevant memories for the query.
//
// The query is embedded query-side and searched against the vector index.
// If embedding or vector search fails, retrieval degrades to a keyword
// search over the stored text. Search never returns an error: when every
// path fails the response is empty and the failure is logged.
func (s *Store) Search(ctx context.Context, query string, topK int) *SearchResponse {
	if topK <= 0 {
		topK = DefaultTopK
	}

	vector, err := s.embedder.Embed(ctx, query, embedder.InputTypeQuery)
	if err != nil {
		s.logger.Warn("query embedding failed, falling back to text search",
			slog.String("error", err.Error()),
		)
		return s.textFallback(ctx, query, topK)
	}

	results, err := s.backend.VectorSearch(ctx, vector, topK)
	if err != nil {
		s.logger.Warn("vector search failed, falling back to text search",
			slog.String("error", err.Error()),
		)
		return s.textFallback(ctx, query, topK)
	}

	if len(results) == 0 {
		return &SearchResponse{Outcome: OutcomeEmpty}
	}
	return &SearchResponse{Results: results, Outcome: OutcomeOK}
}

// textFallback serves a degraded keyword search after a vector path failure.
func (s *Store) textFallback(ctx context.Context, query string, topK int) *SearchResponse {
	results, err := s.backend.TextSearch(ctx, query, topK)
	if err != nil {
		s.logger.Error("text search fallback failed",
			slog.String("error", err.Error()),
		)
		return &SearchResponse{Outcome: OutcomeEmpty}
	}

	if len(results) == 0 {
		return &SearchResponse{Outcome: OutcomeEmpty}
	}
	return &SearchResponse{Results: results, Outcome: OutcomeDegraded}
}

// Stats returns storage statistics.
func (s *Store) Stats(ctx context.Context) (*storage.Stats, error) {
	return s.backend.Stats(ctx)
}

// Close releases the backend and the embedding provider.
func (s *Store) Close() error {
	backendErr := s.backend.Close()
	embedderErr := s.embedder.Close()
	if backendErr != nil {
		return backendErr
	}
	return embedderErr
}
