// Package postgres provides a PostgreSQL + pgvector implementation of the
// storage Backend interface.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	_ "github.com/lib/pq"

	"github.com/toolmemory/sleepmem-go/pkg/storage"
)

// Client is a PostgreSQL + pgvector backend.
type Client struct {
	db         *sql.DB
	tableName  string
	dimensions int
	node       *snowflake.Node
}

// Config contains PostgreSQL configuration.
type Config struct {
	Host               string
	Port               int
	User               string
	Password           string
	DBName             string
	TableName          string
	EmbeddingModelDims int
	SSLMode            string
}

// NewClient creates a new PostgreSQL backend.
func NewClient(cfg *Config) (*Client, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	tableName := cfg.TableName
	if tableName == "" {
		tableName = "memories"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	client := &Client{
		db:         db,
		tableName:  tableName,
		dimensions: cfg.EmbeddingModelDims,
		node:       node,
	}

	// Initialize pgvector extension and table structure
	if err := client.initTables(context.Background()); err != nil {
		return nil, err
	}

	return client, nil
}

// initTables initializes the database table.
func (c *Client) initTables(ctx context.Context) error {
	// Enable pgvector extension
	_, err := c.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("initTables: create extension: %w", err)
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			text TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			metadata JSONB,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			embedding_model VARCHAR(255),
			embedding_dimension INT
		)
	`, c.tableName, c.dimensions)

	_, err = c.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("initTables: create table: %w", err)
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_created_at ON %s(created_at)
	`, c.tableName, c.tableName)
	_, err = c.db.ExecContext(ctx, indexQuery)
	if err != nil {
		return fmt.Errorf("initTables: create index: %w", err)
	}

	return nil
}

// Insert persists a record and returns the generated record id.
func (c *Client) Insert(ctx context.Context, record *storage.Record) (string, error) {
	// Convert vector to PostgreSQL vector format: "[0.1,0.2,0.3,...]"
	vectorStr := vectorToString(record.Embedding)

	metadataJSON, err := json.Marshal(record.Metadata)
	if err != nil {
		return "", fmt.Errorf("Insert: %w", err)
	}

	id := c.node.Generate().Int64()

	query := fmt.Sprintf(`
		INSERT INTO %s
		(id, text, embedding, metadata, created_at, embedding_model, embedding_dimension)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.tableName)

	_, err = c.db.ExecContext(ctx, query,
		id,
		record.Text,
		vectorStr,
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

// VectorSearch performs vector search using pgvector's cosine similarity.
func (c *Client) VectorSearch(ctx context.Context, embedding []float64, topK int) ([]*storage.SearchResult, error) {
	queryVectorStr := vectorToString(embedding)

	// Use pgvector's <=> operator (cosine distance, 1 - cosine similarity)
	query := fmt.Sprintf(`
		SELECT
			text, metadata, created_at, embedding_model,
			1 - (embedding <=> $1) AS similarity
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2
	`, c.tableName)

	rows, err := c.db.QueryContext(ctx, query, queryVectorStr, topK)
	if err != nil {
		return nil, fmt.Errorf("VectorSearch: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanResults(rows, true)
}

// TextSearch performs full-text search over the text field using
// plainto_tsquery, ranked by ts_rank.
func (c *Client) TextSearch(ctx context.Context, query string, topK int) ([]*storage.SearchResult, error) {
	stmt := fmt.Sprintf(`
		SELECT
			text, metadata, created_at, embedding_model,
			ts_rank(to_tsvector('english', text), plainto_tsquery('english', $1)) AS rank
		FROM %s
		WHERE to_tsvector('english', text) @@ plainto_tsquery('english', $1)
		ORDER BY rank DESC
		LIMIT $2
	`, c.tableName)

	rows, err := c.db.QueryContext(ctx, stmt, query, topK)
	if err != nil {
		return nil, fmt.Errorf("TextSearch: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results, err := scanResults(rows, true)
	if err != nil {
		return nil, err
	}

	for _, r := range results {
		if r.Score == 0 {
			r.Score = storage.FallbackTextScore
		}
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
		SELECT COALESCE(metadata->>'source', 'unknown'), COUNT(*)
		FROM %s
		GROUP BY metadata->>'source'
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

// scanResults scans search results from a row set.
func scanResults(rows *sql.Rows, withScore bool) ([]*storage.SearchResult, error) {
	var results []*storage.SearchResult
	for rows.Next() {
		var result storage.SearchResult
		var metadataJSON sql.NullString

		dest := []interface{}{
			&result.Text,
			&metadataJSON,
			&result.CreatedAt,
			&result.EmbeddingModel,
		}
		if withScore {
			dest = append(dest, &result.Score)
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}

		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &result.Metadata); err != nil {
				return nil, fmt.Errorf("parse metadata: %w", err)
			}
		}

		results = append(results, &result)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// vectorToString converts a vector to PostgreSQL vector literal format.
func vectorToString(vector []float64) string {
	parts := make([]string, len(vector))
	for i, v := range vector {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
