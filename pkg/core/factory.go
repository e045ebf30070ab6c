package core

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/toolmemory/sleepmem-go/pkg/embedder"
	"github.com/toolmemory/sleepmem-go/pkg/embedder/openai"
	"github.com/toolmemory/sleepmem-go/pkg/embedder/voyage"
	"github.com/toolmemory/sleepmem-go/pkg/memory"
	"github.com/toolmemory/sleepmem-go/pkg/storage"
	"github.com/toolmemory/sleepmem-go/pkg/storage/mongodb"
	"github.com/toolmemory/sleepmem-go/pkg/storage/postgres"
	"github.com/toolmemory/sleepmem-go/pkg/storage/sqlite"
)

// OpenStore builds the memory store described by the configuration: the
// embedding provider first, then the storage backend wired to it.
func OpenStore(ctx context.Context, cfg *Config, logger *slog.Logger) (*memory.Store, error) {
	provider, err := newEmbedder(&cfg.Embedding)
	if err != nil {
		return nil, &SessionError{Op: "OpenStore", Err: err}
	}

	backend, err := newBackend(ctx, cfg, provider.Dimensions())
	if err != nil {
		_ = provider.Close()
		return nil, &SessionError{Op: "OpenStore", Err: err}
	}

	return memory.NewStore(backend, provider, logger), nil
}

func newEmbedder(cfg *EmbeddingConfig) (embedder.Provider, error) {
	switch cfg.Provider {
	case "voyage":
		return voyage.NewClient(&voyage.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	case "openai":
		return openai.NewClient(&openai.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BaseURL:    cfg.BaseURL,
		})
	default:
		return nil, fmt.Errorf("%w: unsupported embedding provider: %s", ErrInvalidConfig, cfg.Provider)
	}
}

func newBackend(ctx context.Context, cfg *Config, dimensions int) (storage.Backend, error) {
	switch cfg.Database.Provider {
	case "mongodb":
		return mongodb.NewClient(ctx, &mongodb.Config{
			ConnectionString: cfg.Database.MongoURI,
			DBName:           cfg.Database.MongoDatabase,
			CollectionName:   cfg.Database.MongoCollection,
		})
	case "sqlite":
		return sqlite.NewClient(&sqlite.Config{
			DBPath: cfg.Database.SQLitePath,
		})
	case "postgres":
		return postgres.NewClient(&postgres.Config{
			Host:               cfg.Database.PostgresHost,
			Port:               cfg.Database.PostgresPort,
			User:               cfg.Database.PostgresUser,
			Password:           cfg.Database.PostgresPassword,
			DBName:             cfg.Database.PostgresDBName,
			SSLMode:            cfg.Database.PostgresSSLMode,
			EmbeddingModelDims: dimensions,
		})
	default:
		return nil, fmt.Errorf("%w: unsupported database provider: %s", ErrInvalidConfig, cfg.Database.Provider)
	}
}
