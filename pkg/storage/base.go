// Package storage provides interfaces and types for memory record storage
// backends.
//
// It defines the Backend interface that all storage implementations must
// satisfy, along with the Record type and aggregate statistics. Records are
// immutable after insertion: no update or delete operation is defined.
package storage

import (
	"context"
	"time"
)

// Record represents a single persisted memory: text, its embedding, and
// provenance metadata.
type Record struct {
	// Text is the stored content.
	Text string `bson:"text" json:"text"`

	// Embedding is the vector representation of Text, produced once at write
	// time and never recomputed.
	Embedding []float64 `bson:"embedding" json:"embedding"`

	// Metadata contains additional structured information. It always carries
	// at least a "source" tag identifying which component created the record.
	Metadata map[string]interface{} `bson:"metadata" json:"metadata"`

	// CreatedAt is when the record was inserted, in UTC.
	CreatedAt time.Time `bson:"created_at" json:"created_at"`

	// EmbeddingModel records which model produced the embedding.
	EmbeddingModel string `bson:"embedding_model" json:"embedding_model"`

	// EmbeddingDimension records the embedding vector length for
	// auditability and future re-embedding decisions.
	EmbeddingDimension int `bson:"embedding_dimension" json:"embedding_dimension"`
}

// SearchResult is a single search hit.
type SearchResult struct {
	// Text is the stored content.
	Text string `bson:"text" json:"text"`

	// Metadata is the record's metadata.
	Metadata map[string]interface{} `bson:"metadata" json:"metadata"`

	// CreatedAt is the record's insertion time.
	CreatedAt time.Time `bson:"created_at" json:"created_at"`

	// EmbeddingModel is the record's embedding provenance.
	EmbeddingModel string `bson:"embedding_model" json:"embedding_model"`

	// Score is the similarity or text-relevance score, higher is better.
	Score float64 `bson:"score" json:"score"`
}

// FallbackTextScore is assigned to text-search hits when the backend has no
// native relevance score.
const FallbackTextScore = 0.5

// Stats contains aggregate statistics about a collection.
//
// All fields tolerate an empty collection: counts are zero and
// LatestCreatedAt is nil.
type Stats struct {
	// TotalRecords is the number of stored records.
	TotalRecords int64 `json:"total_records"`

	// LatestCreatedAt is the insertion time of the most recent record,
	// nil when the collection is empty.
	LatestCreatedAt *time.Time `json:"latest_created_at,omitempty"`

	// SourceBreakdown maps each metadata source tag to its record count.
	SourceBreakdown map[string]int64 `json:"source_breakdown"`
}

// Backend defines the interface for record storage backends.
//
// All storage implementations (MongoDB, SQLite, PostgreSQL) must implement
// this interface.
type Backend interface {
	// Insert persists a record and returns its generated identifier.
	Insert(ctx context.Context, record *Record) (string, error)

	// VectorSearch performs cosine nearest-neighbor search over stored
	// embeddings, considering roughly topK*10 candidates and returning the
	// top topK hits by descending score.
	VectorSearch(ctx context.Context, embedding []float64, topK int) ([]*SearchResult, error)

	// TextSearch performs keyword relevance search over the text field,
	// returning up to topK hits. Used as a degraded fallback when the
	// vector index is unavailable.
	TextSearch(ctx context.Context, query string, topK int) ([]*SearchResult, error)

	// Stats returns aggregate statistics for the collection.
	Stats(ctx context.Context) (*Stats, error)

	// Close releases the underlying connection. Safe to call repeatedly.
	Close() error
}
