// Package embedder provides interfaces for text embedding providers.
//
// It defines the Provider interface that all embedding implementations must
// satisfy, enabling text-to-vector conversion for similarity search. Some
// embedding models use asymmetric representations for stored documents and
// search queries, so every call carries an InputType.
package embedder

import (
	"context"
	"errors"
)

// InputType distinguishes document-side from query-side embedding.
type InputType string

const (
	// InputTypeDocument embeds text that will be stored and searched over.
	InputTypeDocument InputType = "document"

	// InputTypeQuery embeds text used to search stored documents.
	InputTypeQuery InputType = "query"
)

// Sentinel errors returned by embedding providers.
var (
	// ErrRateLimited indicates the remote endpoint rejected the request due
	// to rate limiting. Transient: retried with backoff before escalation.
	ErrRateLimited = errors.New("embedding rate limit exceeded")

	// ErrProvider indicates a non-transient remote API failure.
	ErrProvider = errors.New("embedding provider error")
)

// Provider defines the interface for embedding providers.
//
// All embedding implementations (Voyage, OpenAI) must implement this interface.
type Provider interface {
	// Embed converts a single text string into a vector embedding.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - text: The input text to embed
	//   - inputType: Document-side or query-side embedding
	//
	// Returns the embedding vector and any error.
	Embed(ctx context.Context, text string, inputType InputType) ([]float64, error)

	// EmbedBatch converts multiple text strings into vector embeddings.
	//
	// An empty input slice returns an empty result without a network call.
	EmbedBatch(ctx context.Context, texts []string, inputType InputType) ([][]float64, error)

	// Model returns the embedding model identifier, recorded on every stored
	// record for provenance.
	Model() string

	// Dimensions returns the dimension of embedding vectors produced by this
	// provider. For example, voyage-code-2 produces 1024-dimensional vectors.
	Dimensions() int

	// Close closes the provider and releases resources.
	Close() error
}
