package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolmemory/sleepmem-go/pkg/storage"
	"github.com/toolmemory/sleepmem-go/pkg/storage/sqlite"
)

func newTestClient(t *testing.T) *sqlite.Client {
	t.Helper()

	client, err := sqlite.NewClient(&sqlite.Config{
		DBPath: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func insertRecord(t *testing.T, client *sqlite.Client, text string, embedding []float64, source string) string {
	t.Helper()

	id, err := client.Insert(context.Background(), &storage.Record{
		Text:      text,
		Embedding: embedding,
		Metadata: map[string]interface{}{
			"source": source,
		},
		CreatedAt:          time.Now().UTC(),
		EmbeddingModel:     "voyage-code-2",
		EmbeddingDimension: len(embedding),
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	return id
}

func TestInsertAndVectorSearch(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	insertRecord(t, client, "goroutine scheduling", []float64{1, 0, 0}, "sleep_agent_interaction")
	insertRecord(t, client, "channel buffering", []float64{0, 1, 0}, "sleep_agent_interaction")
	insertRecord(t, client, "mix of both", []float64{0.7, 0.7, 0}, "tavily_web_search")

	results, err := client.VectorSearch(ctx, []float64{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Exact match first, then the diagonal vector
	assert.Equal(t, "goroutine scheduling", results[0].Text)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Equal(t, "mix of both", results[1].Text)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestVectorSearchEmptyTable(t *testing.T) {
	client := newTestClient(t)

	results, err := client.VectorSearch(context.Background(), []float64{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestTextSearchFallbackScore(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	insertRecord(t, client, "rust ownership rules", []float64{1, 0}, "tavily_web_search")
	insertRecord(t, client, "go interfaces", []float64{0, 1}, "sleep_agent_interaction")

	results, err := client.TextSearch(ctx, "ownership", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, "rust ownership rules", results[0].Text)
	assert.Equal(t, storage.FallbackTextScore, results[0].Score)
	assert.Equal(t, "tavily_web_search", results[0].Metadata["source"])
}

func TestStats(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	insertRecord(t, client, "first", []float64{1, 0}, "sleep_agent_interaction")
	insertRecord(t, client, "second", []float64{0, 1}, "sleep_agent_interaction")
	insertRecord(t, client, "third", []float64{1, 1}, "tavily_web_search")

	stats, err := client.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.TotalRecords)
	require.NotNil(t, stats.LatestCreatedAt)
	assert.Equal(t, int64(2), stats.SourceBreakdown["sleep_agent_interaction"])
	assert.Equal(t, int64(1), stats.SourceBreakdown["tavily_web_search"])
}

func TestStatsEmptyTable(t *testing.T) {
	client := newTestClient(t)

	stats, err := client.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(0), stats.TotalRecords)
	assert.Nil(t, stats.LatestCreatedAt)
	assert.Empty(t, stats.SourceBreakdown)
}

func TestCloseIsIdempotent(t *testing.T) {
	client, err := sqlite.NewClient(&sqlite.Config{
		DBPath: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
}
