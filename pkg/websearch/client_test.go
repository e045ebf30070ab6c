package websearch_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolmemory/sleepmem-go/pkg/websearch"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *websearch.Client) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := websearch.NewClient(&websearch.Config{
		APIKey:  "tvly-test-key",
		BaseURL: server.URL,
	})
	require.NoError(t, err)

	return server, client
}

func searchHandler(t *testing.T, response *websearch.Response) http.HandlerFunc {
	t.Helper()

	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Bearer tvly-test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewEncoder(w).Encode(response))
	}
}

func TestSearchSendsOptions(t *testing.T) {
	var gotBody map[string]interface{}
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		require.NoError(t, json.NewEncoder(w).Encode(&websearch.Response{Query: "go generics"}))
	})

	_, err := client.Search(context.Background(), "go generics", &websearch.SearchOptions{
		SearchDepth:   "advanced",
		MaxResults:    3,
		IncludeAnswer: true,
		Days:          7,
	})
	require.NoError(t, err)

	assert.Equal(t, "go generics", gotBody["query"])
	assert.Equal(t, "advanced", gotBody["search_depth"])
	assert.Equal(t, float64(3), gotBody["max_results"])
	assert.Equal(t, true, gotBody["include_answer"])
	assert.Equal(t, float64(7), gotBody["days"])
	assert.NotContains(t, gotBody, "topic")
	assert.NotContains(t, gotBody, "include_domains")
}

func TestSearchProviderError(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})

	_, err := client.Search(context.Background(), "anything", nil)
	require.ErrorIs(t, err, websearch.ErrSearchProvider)
	assert.Contains(t, err.Error(), "401")

	// Failed searches do not enter the pattern log
	_, ok := client.PerformanceStats()
	assert.False(t, ok)
}

func TestPerformanceStatsFreshClient(t *testing.T) {
	client, err := websearch.NewClient(&websearch.Config{APIKey: "tvly-test-key"})
	require.NoError(t, err)

	stats, ok := client.PerformanceStats()
	assert.False(t, ok)
	assert.Nil(t, stats)
}

func TestPerformanceStatsTracksQueries(t *testing.T) {
	_, client := newTestServer(t, searchHandler(t, &websearch.Response{
		Results: []websearch.Result{{Title: "hit"}, {Title: "hit2"}},
	}))

	ctx := context.Background()
	queries := []string{"q1", "q2", "q3", "q4", "q5", "q6"}
	for _, q := range queries {
		_, err := client.Search(ctx, q, nil)
		require.NoError(t, err)
	}

	stats, ok := client.PerformanceStats()
	require.True(t, ok)

	assert.Equal(t, 6, stats.TotalQueries)
	assert.Equal(t, 2.0, stats.AverageResults)
	assert.GreaterOrEqual(t, stats.SlowestDuration, stats.FastestDuration)
	// Window keeps the last 5 in insertion order
	assert.Equal(t, []string{"q2", "q3", "q4", "q5", "q6"}, stats.LastQueries)
}

func TestPerformanceStatsRepeatedQueryNotDuplicated(t *testing.T) {
	_, client := newTestServer(t, searchHandler(t, &websearch.Response{}))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := client.Search(ctx, "same query", nil)
		require.NoError(t, err)
	}

	stats, ok := client.PerformanceStats()
	require.True(t, ok)
	assert.Equal(t, 1, stats.TotalQueries)
	assert.Equal(t, []string{"same query"}, stats.LastQueries)
}

func TestExtract(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/extract", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []interface{}{"https://go.dev/blog"}, body["urls"])

		require.NoError(t, json.NewEncoder(w).Encode(&websearch.ExtractResponse{
			Results: []websearch.ExtractResult{{URL: "https://go.dev/blog", RawContent: "content"}},
		}))
	})

	resp, err := client.Extract(context.Background(), []string{"https://go.dev/blog"}, nil)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "content", resp.Results[0].RawContent)
}

func TestFormatForAgentCapsContent(t *testing.T) {
	long := strings.Repeat("x", 400)
	resp := &websearch.Response{
		Query: "long content",
		Results: []websearch.Result{
			{Title: "Long Page", URL: "https://example.com", Content: long},
		},
	}

	formatted := websearch.FormatForAgent(resp)
	assert.Contains(t, formatted, strings.Repeat("x", 300)+"...")
	assert.NotContains(t, formatted, strings.Repeat("x", 301))
}

func TestFormatForAgentCapsContentByCharacter(t *testing.T) {
	resp := &websearch.Response{
		Query: "multibyte content",
		Results: []websearch.Result{
			{Title: "Short CJK", URL: "https://example.com/a", Content: strings.Repeat("日", 150)},
			{Title: "Long CJK", URL: "https://example.com/b", Content: strings.Repeat("日", 400)},
		},
	}

	formatted := websearch.FormatForAgent(resp)
	assert.True(t, utf8.ValidString(formatted))
	// 150 characters fits under the cap even though it is 450 bytes.
	assert.Contains(t, formatted, strings.Repeat("日", 150)+"\n")
	assert.Contains(t, formatted, strings.Repeat("日", 300)+"...")
	assert.NotContains(t, formatted, strings.Repeat("日", 301))
}

func TestFormatForAgentAnswerOnlyWhenPresent(t *testing.T) {
	answer := "Generics arrived in Go 1.18."
	withAnswer := &websearch.Response{
		Query:   "go generics",
		Answer:  &answer,
		Results: []websearch.Result{{Title: "Go Blog", URL: "https://go.dev", Content: "intro"}},
	}
	assert.Contains(t, websearch.FormatForAgent(withAnswer), "Answer: Generics arrived in Go 1.18.")

	withoutAnswer := &websearch.Response{
		Query:   "go generics",
		Results: []websearch.Result{{Title: "Go Blog", URL: "https://go.dev", Content: "intro"}},
	}
	assert.NotContains(t, websearch.FormatForAgent(withoutAnswer), "Answer:")
}

func TestFormatForAgentEmptyResults(t *testing.T) {
	formatted := websearch.FormatForAgent(&websearch.Response{Query: "nothing"})
	assert.Contains(t, formatted, websearch.NoResultsFound)
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := websearch.NewClient(&websearch.Config{})
	require.Error(t, err)
}
