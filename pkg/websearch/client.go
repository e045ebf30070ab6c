// Package websearch implements a Tavily web search client with a per-client
// query pattern log and aggregate performance statistics.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// ErrSearchProvider indicates a transport or API failure talking to the
// search provider.
var ErrSearchProvider = errors.New("search provider error")

const (
	defaultBaseURL = "https://api.tavily.com"
	defaultTimeout = 30 * time.Second
)

// lastQueriesWindow is the number of recent query strings reported by
// PerformanceStats.
const lastQueriesWindow = 5

// SearchOptions tunes a search request. Zero-valued fields are omitted from
// the request body.
type SearchOptions struct {
	Topic             string   `json:"topic,omitempty"`
	SearchDepth       string   `json:"search_depth,omitempty"`
	ChunksPerSource   int      `json:"chunks_per_source,omitempty"`
	MaxResults        int      `json:"max_results,omitempty"`
	TimeRange         string   `json:"time_range,omitempty"`
	Days              int      `json:"days,omitempty"`
	IncludeAnswer     bool     `json:"include_answer,omitempty"`
	IncludeRawContent bool     `json:"include_raw_content,omitempty"`
	IncludeImages     bool     `json:"include_images,omitempty"`
	IncludeDomains    []string `json:"include_domains,omitempty"`
	ExcludeDomains    []string `json:"exclude_domains,omitempty"`
}

// Result is a single search hit.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Response is a search response. Answer is present only when the provider
// generated one.
type Response struct {
	Query             string   `json:"query"`
	Answer            *string  `json:"answer,omitempty"`
	Results           []Result `json:"results"`
	Images            []string `json:"images,omitempty"`
	FollowUpQuestions []string `json:"follow_up_questions,omitempty"`
	ResponseTime      float64  `json:"response_time"`
}

// ExtractOptions tunes a content extraction request.
type ExtractOptions struct {
	IncludeImages bool   `json:"include_images,omitempty"`
	ExtractDepth  string `json:"extract_depth,omitempty"`
}

// ExtractResult is extracted page content for one URL.
type ExtractResult struct {
	URL        string `json:"url"`
	RawContent string `json:"raw_content"`
}

// ExtractResponse is a content extraction response.
type ExtractResponse struct {
	Results       []ExtractResult `json:"results"`
	FailedResults []string        `json:"failed_results,omitempty"`
	ResponseTime  float64         `json:"response_time"`
}

// queryPattern records how a single query performed.
type queryPattern struct {
	Duration    time.Duration
	ResultCount int
	Timestamp   time.Time
}

// PerformanceStats aggregates the pattern log.
type PerformanceStats struct {
	TotalQueries    int
	AverageDuration time.Duration
	FastestDuration time.Duration
	SlowestDuration time.Duration
	AverageResults  float64
	LastQueries     []string
}

// Client is a Tavily API client. Each client owns its pattern log; there is
// no package-level state.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	// mu guards the pattern log.
	mu       sync.Mutex
	patterns map[string]*queryPattern
	order    []string
}

// Config contains configuration for creating a web search client.
type Config struct {
	// APIKey is the Tavily API key (required).
	APIKey string

	// BaseURL overrides the API endpoint. Used by tests.
	BaseURL string

	// HTTPClient overrides the default client with its 30s timeout.
	HTTPClient *http.Client
}

// NewClient creates a Tavily client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("NewSearchClient: API key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		patterns:   make(map[string]*queryPattern),
	}, nil
}

// Search executes a web search. The query pattern is recorded on success.
func (c *Client) Search(ctx context.Context, query string, opts *SearchOptions) (*Response, error) {
	if opts == nil {
		opts = &SearchOptions{}
	}

	body := struct {
		Query string `json:"query"`
		SearchOptions
	}{Query: query, SearchOptions: *opts}

	start := time.Now()

	var response Response
	if err := c.post(ctx, "/search", body, &response); err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}

	c.recordPattern(query, time.Since(start), len(response.Results))
	return &response, nil
}

// Extract fetches page content for the given URLs.
func (c *Client) Extract(ctx context.Context, urls []string, opts *ExtractOptions) (*ExtractResponse, error) {
	if opts == nil {
		opts = &ExtractOptions{}
	}

	body := struct {
		URLs []string `json:"urls"`
		ExtractOptions
	}{URLs: urls, ExtractOptions: *opts}

	var response ExtractResponse
	if err := c.post(ctx, "/extract", body, &response); err != nil {
		return nil, fmt.Errorf("Extract: %w", err)
	}
	return &response, nil
}

// post sends a JSON request and decodes the response. Transport failures and
// non-2xx statuses wrap ErrSearchProvider.
func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSearchProvider, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrSearchProvider, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d: %s", ErrSearchProvider, resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrSearchProvider, err)
	}
	return nil
}

// recordPattern logs a query's performance. Insertion order is kept for
// repeated queries: only new query strings extend the order.
func (c *Client) recordPattern(query string, duration time.Duration, resultCount int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, seen := c.patterns[query]; !seen {
		c.order = append(c.order, query)
	}
	c.patterns[query] = &queryPattern{
		Duration:    duration,
		ResultCount: resultCount,
		Timestamp:   time.Now().UTC(),
	}
}

// PerformanceStats aggregates the pattern log. The second return value is
// false when no queries have been recorded yet.
func (c *Client) PerformanceStats() (*PerformanceStats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.order) == 0 {
		return nil, false
	}

	stats := &PerformanceStats{
		TotalQueries:    len(c.order),
		FastestDuration: c.patterns[c.order[0]].Duration,
	}

	var totalDuration time.Duration
	var totalResults int
	for _, q := range c.order {
		p := c.patterns[q]
		totalDuration += p.Duration
		totalResults += p.ResultCount
		if p.Duration < stats.FastestDuration {
			stats.FastestDuration = p.Duration
		}
		if p.Duration > stats.SlowestDuration {
			stats.SlowestDuration = p.Duration
		}
	}

	stats.AverageDuration = totalDuration / time.Duration(len(c.order))
	stats.AverageResults = float64(totalResults) / float64(len(c.order))

	start := len(c.order) - lastQueriesWindow
	if start < 0 {
		start = 0
	}
	stats.LastQueries = append([]string(nil), c.order[start:]...)

	return stats, true
}
