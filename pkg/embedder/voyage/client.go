// Package voyage provides a Voyage AI implementation of the embedder.Provider
// interface using the Voyage Embeddings HTTP API.
//
// Voyage models are asymmetric: documents and queries are embedded with
// different input types for better retrieval quality. Rate-limited requests
// are retried with bounded exponential backoff before the error escalates.
package voyage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/toolmemory/sleepmem-go/pkg/embedder"
	"github.com/toolmemory/sleepmem-go/pkg/retry"
)

// modelDimensions maps Voyage model names to their vector dimensions.
var modelDimensions = map[string]int{
	"voyage-code-2":         1024,
	"voyage-2":              1024,
	"voyage-large-2":        1536,
	"voyage-law-2":          1024,
	"voyage-multilingual-2": 1024,
}

// defaultDimension is used for models not present in modelDimensions.
const defaultDimension = 1024

// Client implements embedder.Provider using the Voyage AI Embeddings API.
type Client struct {
	// client is the HTTP client for API requests.
	client *http.Client

	// apiKey is the Voyage AI API key.
	apiKey string

	// model is the Voyage embedding model name to use.
	model string

	// baseURL is the base URL for the Voyage API.
	baseURL string

	// policy is the retry policy applied to rate-limited requests.
	policy retry.Policy
}

// Config contains configuration for creating a Voyage Embedder client.
type Config struct {
	// APIKey is the Voyage AI API key (required).
	APIKey string

	// Model is the model name to use (default: "voyage-code-2").
	Model string

	// BaseURL is the API base URL (default: Voyage official address).
	BaseURL string

	// HTTPClient is a custom HTTP client (uses default if nil).
	HTTPClient *http.Client

	// RetryPolicy overrides the rate-limit retry policy (default: 3 attempts,
	// 1s base delay, doubling).
	RetryPolicy *retry.Policy
}

// NewClient creates a new Voyage Embedder client.
//
// Parameters:
//   - cfg: Voyage configuration containing APIKey, Model, BaseURL, etc.
//
// Returns:
//   - *Client: Voyage Embedder client instance
//   - error: Error if the configuration is invalid (e.g. missing APIKey)
func NewClient(cfg *Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("API key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.voyageai.com/v1"
	}

	model := cfg.Model
	if model == "" {
		model = "voyage-code-2"
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout: 30 * time.Second,
		}
	}

	policy := retry.Default()
	if cfg.RetryPolicy != nil {
		policy = *cfg.RetryPolicy
	}

	return &Client{
		client:  client,
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: baseURL,
		policy:  policy,
	}, nil
}

// embedRequest is the Voyage Embeddings API request body.
type embedRequest struct {
	Input     []string `json:"input"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type,omitempty"`
}

// embedResponse is the Voyage Embeddings API response body.
type embedResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

// Embed converts a single text string into a vector embedding.
func (c *Client) Embed(ctx context.Context, text string, inputType embedder.InputType) ([]float64, error) {
	embeddings, err := c.embed(ctx, []string{text}, inputType)
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned from Voyage API", embedder.ErrProvider)
	}
	return embeddings[0], nil
}

// EmbedBatch converts multiple text strings into vector embeddings.
//
// An empty input slice returns an empty result without a network call.
func (c *Client) EmbedBatch(ctx context.Context, texts []string, inputType embedder.InputType) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	embeddings, err := c.embed(ctx, texts, inputType)
	if err != nil {
		return nil, err
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: unexpected number of results from Voyage API (got %d, expected %d)",
			embedder.ErrProvider, len(embeddings), len(texts))
	}
	return embeddings, nil
}

// embed performs the API call with rate-limit retry.
//
// HTTP 429 responses are retried per the client policy and escalate as
// embedder.ErrRateLimited once exhausted. Any other API failure escalates
// immediately without retry.
func (c *Client) embed(ctx context.Context, texts []string, inputType embedder.InputType) ([][]float64, error) {
	var embeddings [][]float64

	err := c.policy.Do(ctx, func() error {
		result, err := c.doRequest(ctx, texts, inputType)
		if err != nil {
			return err
		}
		embeddings = result
		return nil
	}, func(err error) bool {
		return errors.Is(err, embedder.ErrRateLimited)
	})

	if err != nil {
		return nil, err
	}
	return embeddings, nil
}

// doRequest performs a single Embeddings API call.
func (c *Client) doRequest(ctx context.Context, texts []string, inputType embedder.InputType) ([][]float64, error) {
	reqBody := embedRequest{
		Input:     texts,
		Model:     c.model,
		InputType: string(inputType),
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + "/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", embedder.ErrProvider, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: status %d", embedder.ErrRateLimited, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", embedder.ErrProvider, resp.StatusCode, string(body))
	}

	var response embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", embedder.ErrProvider, err)
	}

	embeddings := make([][]float64, len(response.Data))
	for i, data := range response.Data {
		embeddings[i] = data.Embedding
	}
	return embeddings, nil
}

// Model returns the configured Voyage model name.
func (c *Client) Model() string {
	return c.model
}

// Dimensions returns the vector dimension for the configured model.
func (c *Client) Dimensions() int {
	if dims, ok := modelDimensions[c.model]; ok {
		return dims
	}
	return defaultDimension
}

// Close closes the client connection.
//
// HTTP clients do not need explicit closing, this method is retained for
// interface compatibility.
func (c *Client) Close() error {
	return nil
}
