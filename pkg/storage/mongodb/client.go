// Package mongodb provides a MongoDB Atlas implementation of the storage
// Backend interface.
//
// Vector search uses an Atlas $vectorSearch index over the embedding field
// with cosine similarity. The index is provisioned out-of-band (Atlas UI or
// Admin API); when it is missing or erroring, callers fall back to a $text
// search over the text field.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/toolmemory/sleepmem-go/pkg/storage"
)

// candidateMultiplier scales topK into the number of approximate-search
// candidates considered by $vectorSearch.
const candidateMultiplier = 10

// Client implements storage.Backend using MongoDB.
type Client struct {
	client     *mongo.Client
	collection *mongo.Collection

	// indexName is the Atlas vector search index over the embedding field.
	indexName string

	// closeOnce guards Disconnect so Close is safe to call repeatedly.
	closeOnce sync.Once
	closeErr  error

	// textIndexOnce lazily provisions the fallback text index.
	textIndexOnce sync.Once
}

// Config contains configuration for creating a MongoDB backend.
type Config struct {
	// ConnectionString is the MongoDB connection URI (required).
	ConnectionString string

	// DBName is the database name (default: "toolmemory").
	DBName string

	// CollectionName is the collection name (default: "memories").
	CollectionName string

	// VectorIndexName is the Atlas vector search index name
	// (default: "vector_index_cosine").
	VectorIndexName string
}

// NewClient creates a new MongoDB backend and verifies connectivity.
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg.ConnectionString == "" {
		return nil, errors.New("connection string is required")
	}

	dbName := cfg.DBName
	if dbName == "" {
		dbName = "toolmemory"
	}
	collectionName := cfg.CollectionName
	if collectionName == "" {
		collectionName = "memories"
	}
	indexName := cfg.VectorIndexName
	if indexName == "" {
		indexName = "vector_index_cosine"
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.ConnectionString))
	if err != nil {
		return nil, fmt.Errorf("NewMongoClient: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("NewMongoClient: ping: %w", err)
	}

	return &Client{
		client:     client,
		collection: client.Database(dbName).Collection(collectionName),
		indexName:  indexName,
	}, nil
}

// Insert persists a record and returns the generated document id.
func (c *Client) Insert(ctx context.Context, record *storage.Record) (string, error) {
	result, err := c.collection.InsertOne(ctx, record)
	if err != nil {
		return "", fmt.Errorf("Insert: %w", err)
	}

	oid, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Sprintf("%v", result.InsertedID), nil
	}
	return oid.Hex(), nil
}

// VectorSearch performs an Atlas $vectorSearch aggregation over the embedding
// field, considering topK*10 candidates and returning the top topK hits with
// their vectorSearchScore.
func (c *Client) VectorSearch(ctx context.Context, embedding []float64, topK int) ([]*storage.SearchResult, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$vectorSearch", Value: bson.D{
			{Key: "index", Value: c.indexName},
			{Key: "path", Value: "embedding"},
			{Key: "queryVector", Value: embedding},
			{Key: "numCandidates", Value: topK * candidateMultiplier},
			{Key: "limit", Value: topK},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "text", Value: 1},
			{Key: "metadata", Value: 1},
			{Key: "created_at", Value: 1},
			{Key: "embedding_model", Value: 1},
			{Key: "score", Value: bson.D{{Key: "$meta", Value: "vectorSearchScore"}}},
		}}},
	}

	cursor, err := c.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("VectorSearch: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var results []*storage.SearchResult
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("VectorSearch: decode: %w", err)
	}
	return results, nil
}

// TextSearch performs a $text relevance search over the text field, ranked by
// textScore and limited to topK hits.
//
// The text index is provisioned lazily on first use; creation errors are
// ignored since the index may already exist.
func (c *Client) TextSearch(ctx context.Context, query string, topK int) ([]*storage.SearchResult, error) {
	c.textIndexOnce.Do(func() {
		_, _ = c.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: "text", Value: "text"}},
		})
	})

	filter := bson.M{"$text": bson.M{"$search": query}}
	findOpts := options.Find().
		SetProjection(bson.M{
			"_id":             0,
			"text":            1,
			"metadata":        1,
			"created_at":      1,
			"embedding_model": 1,
			"score":           bson.M{"$meta": "textScore"},
		}).
		SetSort(bson.M{"score": bson.M{"$meta": "textScore"}}).
		SetLimit(int64(topK))

	cursor, err := c.collection.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("TextSearch: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var results []*storage.SearchResult
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("TextSearch: decode: %w", err)
	}

	for _, r := range results {
		if r.Score == 0 {
			r.Score = storage.FallbackTextScore
		}
	}
	return results, nil
}

// Stats returns collection statistics: total count, latest insertion time,
// and record counts grouped by metadata source tag.
func (c *Client) Stats(ctx context.Context) (*storage.Stats, error) {
	total, err := c.collection.CountDocuments(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("Stats: count: %w", err)
	}

	stats := &storage.Stats{
		TotalRecords:    total,
		SourceBreakdown: make(map[string]int64),
	}

	var latest struct {
		CreatedAt time.Time `bson:"created_at"`
	}
	err = c.collection.FindOne(ctx, bson.D{},
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	).Decode(&latest)
	switch {
	case err == nil:
		stats.LatestCreatedAt = &latest.CreatedAt
	case errors.Is(err, mongo.ErrNoDocuments):
		// Empty collection: latest stays nil.
	default:
		return nil, fmt.Errorf("Stats: latest: %w", err)
	}

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$metadata.source"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cursor, err := c.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("Stats: breakdown: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var groups []struct {
		Source *string `bson:"_id"`
		Count  int64   `bson:"count"`
	}
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("Stats: breakdown decode: %w", err)
	}

	for _, g := range groups {
		source := "unknown"
		if g.Source != nil && *g.Source != "" {
			source = *g.Source
		}
		stats.SourceBreakdown[source] = g.Count
	}

	return stats, nil
}

// Close disconnects the MongoDB client. Safe to call repeatedly.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.closeErr = c.client.Disconnect(ctx)
	})
	return c.closeErr
}

// VectorIndexDefinition returns the Atlas vector index definition for this
// collection as a reference for out-of-band provisioning.
func (c *Client) VectorIndexDefinition(dimensions int) map[string]interface{} {
	return map[string]interface{}{
		"name": c.indexName,
		"definition": map[string]interface{}{
			"fields": []map[string]interface{}{
				{
					"type":          "vector",
					"path":          "embedding",
					"numDimensions": dimensions,
					"similarity":    "cosine",
				},
			},
		},
	}
}
