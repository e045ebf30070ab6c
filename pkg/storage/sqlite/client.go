// Package sqlite provides a SQLite implementation of the storage Backend
// interface.
//
// SQLite is a lightweight, file-based database suitable for local development
// and offline testing. Vectors are stored as JSON strings in TEXT fields, and
// similarity search uses in-memory cosine similarity calculation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	_ "github.com/mattn/go-sqlite3"

	"github.com/toolmemory/sleepmem-go/pkg/storage"
)

// Client implements storage.Backend using SQLite.
type Client struct {
	// db is the SQLite database connection.
	db *sql.DB

	// tableName is the name of the table storing records.
	tableName string

	// node generates unique record IDs.
	node *snowflake.Node
}

// Config contains configuration for creating a SQLite backend.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// TableName is the name of the table to use (default: "memories").
	TableName string
}

// NewClient creates a new SQLite backend.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("NewSQLiteClient: db path is required")
	}

	tableName := cfg.TableName
	if tableName == "" {
		tableName = "memories"
	}

	// Create parent directory if it doesn't exist
	dbDir := filepath.Dir(cfg.DBPath)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("NewSQLiteClient: failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	client := &Client{
		db:        db,
		tableName: tableName,
		node:      node,
	}

	// Initialize table structure
	if err := client.initTables(context.Background()); err != nil {
		return nil, err
	}

	return client, nil
}

// initTables initializes the database table structure.
//
// SQLite stores vectors as JSON strings in TEXT fields.
func (c *Client) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY,
			text TEXT NOT NULL,
			embedding TEXT NOT NULL,
			metadata TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			embedding_model TEXT,
			embedding_dimension INTEGER
		)
	`, c.tableName)

	_, err := c.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_created_at ON %s(created_at)
	`, c.tableName, c.tableName)
	_, err = c.db.ExecContext(ctx, indexQuery)
	if err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	return nil
}

// Insert persists a record and returns the generated record id.
func (c *Client) Insert(ctx context.Context, record *storage.Record) (string, error) {
	embeddingJSON, err := json.Marshal(record.Embedding)
	if err != nil {
		return "", fmt.Errorf("Insert: %w", err)
	}

	metadataJSON, err := json.Marshal(record.Metadata)
	if err != nil {
		return "", fmt.Errorf("Insert: %w", err)
	}

	id := c.node.Generate().Int64()

	query := fmt.Sprintf(`
		INSERT INTO %s
		(id, text, embedding, metadata, created_at, embedding_model, embedding_dimension)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.tableName)

	_, err = c.db.ExecContext(ctx, query,
		id,
		record.Text,
		string(embeddingJSON),
		string(metadataJSON),
		record.CreatedAt,
		record.EmbeddingModel,
		record.EmbeddingDimension,
	)
	if err != nil {
		return "", fmt.Errorf("Insert: %w", err)
	}

	return strconv.FormatInt(id, 10), nil
}

// VectorSearch performs similarity search using cosine similarity.
//
// SQLite does not have native vector operations, so similarity is calculated
// in memory after loading all records.
func (c *Client) VectorSearch(ctx context.Context, embedding []float64, topK int) ([]*storage.SearchResult, error) {
	query := fmt.Sprintf(`
		SELECT text, embedding, metadata, created_at, embedding_model
		FROM %s
		ORDER BY id
	`, c.tableName)

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("VectorSearch: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*storage.SearchResult
	for rows.Next() {
		result, recordEmbedding, err := scanResult(rows)
		if err != nil {
			return nil, err
		}

		result.Score = cosineSimilarity(embedding, recordEmbedding)
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sortByScore(results, topK), nil
}

// TextSearch performs a substring match over the text field as a fallback
// when vector search is unavailable. Matches carry the default text score.
func (c *Client) TextSearch(ctx context.Context, query string, topK int) ([]*storage.SearchResult, error) {
	stmt := fmt.Sprintf(`
		SELECT text, embedding, metadata, created_at, embedding_model
		FROM %s
		WHERE text LIKE ?
		ORDER BY created_at DESC
		LIMIT ?
	`, c.tableName)

	rows, err := c.db.QueryContext(ctx, stmt, "%"+query+"%", topK)
	if err != nil {
		return nil, fmt.Errorf("TextSearch: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*storage.SearchResult
	for rows.Next() {
		result, _, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		result.Score = storage.FallbackTextScore
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// Stats returns table statistics: total count, latest insertion time, and
// record counts grouped by metadata source tag.
func (c *Client) Stats(ctx context.Context) (*storage.Stats, error) {
	stats := &storage.Stats{
		SourceBreakdown: make(map[string]int64),
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s", c.tableName)
	if err := c.db.QueryRowContext(ctx, countQuery).Scan(&stats.TotalRecords); err != nil {
		return nil, fmt.Errorf("Stats: count: %w", err)
	}

	latestQuery := fmt.Sprintf("SELECT created_at FROM %s ORDER BY created_at DESC LIMIT 1", c.tableName)
	var latest time.Time
	err := c.db.QueryRowContext(ctx, latestQuery).Scan(&latest)
	switch {
	case err == nil:
		stats.LatestCreatedAt = &latest
	case err == sql.ErrNoRows:
		// Empty table: latest stays nil.
	default:
		return nil, fmt.Errorf("Stats: latest: %w", err)
	}

	breakdownQuery := fmt.Sprintf(`
		SELECT COALESCE(json_extract(metadata, '$.source'), 'unknown'), COUNT(*)
		FROM %s
		GROUP BY json_extract(metadata, '$.source')
	`, c.tableName)
	rows, err := c.db.QueryContext(ctx, breakdownQuery)
	if err != nil {
		return nil, fmt.Errorf("Stats: breakdown: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var source string
		var count int64
		if err := rows.Scan(&source, &count); err != nil {
			return nil, fmt.Errorf("Stats: breakdown: %w", err)
		}
		stats.SourceBreakdown[source] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}

// Close closes the database connection. Safe to call repeatedly.
func (c *Client) Close() error {
	if c.db != nil {
		err := c.db.Close()
		c.db = nil
		return err
	}
	return nil
}

// scanResult scans a search result and its stored embedding from a row set.
func scanResult(rows *sql.Rows) (*storage.SearchResult, []float64, error) {
	var result storage.SearchResult
	var embeddingStr string
	var metadataStr sql.NullString

	err := rows.Scan(
		&result.Text,
		&embeddingStr,
		&metadataStr,
		&result.CreatedAt,
		&result.EmbeddingModel,
	)
	if err != nil {
		return nil, nil, err
	}

	var embedding []float64
	if err := json.Unmarshal([]byte(embeddingStr), &embedding); err != nil {
		return nil, nil, fmt.Errorf("parse embedding: %w", err)
	}

	if metadataStr.Valid && metadataStr.String != "" {
		if err := json.Unmarshal([]byte(metadataStr.String), &result.Metadata); err != nil {
			return nil, nil, fmt.Errorf("parse metadata: %w", err)
		}
	}

	return &result, embedding, nil
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// sortByScore sorts results by score (descending) and limits the number of
// results.
//
// Uses a simple bubble sort which is sufficient for small datasets.
func sortByScore(results []*storage.SearchResult, limit int) []*storage.SearchResult {
	n := len(results)
	for i := 0; i < n-1; i++ {
		for j := 0; j < n-i-1; j++ {
			if results[j].Score < results[j+1].Score {
				results[j], results[j+1] = results[j+1], results[j]
			}
		}
	}

	if limit > 0 && len(results) > limit {
		return results[:limit]
	}

	return results
}
