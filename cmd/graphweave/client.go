package graphweave

import (
	"fmt"
	"log/slog"
	"time"

	gw "github.com/graphweave/graphweave"
	"github.com/graphweave/graphweave/pkg/config"
	"github.com/graphweave/graphweave/pkg/embedder"
	"github.com/graphweave/graphweave/pkg/graph"
	"github.com/graphweave/graphweave/pkg/logger"
	"github.com/graphweave/graphweave/pkg/vector"
)

// newClient wires a graphweave client from configuration.
func newClient(cfg *config.Config) (*gw.Client, *slog.Logger, error) {
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	store, err := graph.NewNeo4jStore(cfg.Graph.URI, cfg.Graph.Username, cfg.Graph.Password, cfg.Graph.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to graph store: %w", err)
	}

	vectors, err := vector.NewPostgresStore(cfg.Vector.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to vector store: %w", err)
	}
	if cfg.Vector.ChunkTable != "" {
		vectors.RegisterIndex(vector.ChunkIndexName, cfg.Vector.ChunkTable)
	}

	embedderClient := embedder.NewOpenAIClient(&embedder.Config{
		Model:   cfg.Embedding.Model,
		APIKey:  cfg.Embedding.APIKey,
		BaseURL: cfg.Embedding.BaseURL,
	})

	clientConfig := &gw.Config{
		BeamWidth:                cfg.Retrieval.BeamWidth,
		BeamMaxDepth:             cfg.Retrieval.BeamMaxDepth,
		TopK:                     cfg.Retrieval.TopK,
		ShareResults:             cfg.Retrieval.ShareResults,
		CacheMaxEntries:          cfg.Retrieval.CacheMaxEntries,
		EntityContextMaxDepth:    cfg.EntityContext.MaxDepth,
		EntityContextMaxContexts: cfg.EntityContext.MaxContexts,
		MinScoreFactor:           cfg.EntityContext.MinScoreFactor,
		MaxScoreFactor:           cfg.EntityContext.MaxScoreFactor,
		EnrichQuery:              cfg.EntityContext.EnrichQuery,
		CircuitBreaker:           cfg.CircuitBreaker.Enabled,
		CircuitBreakerTrips:      uint32(cfg.CircuitBreaker.ConsecutiveFailures),
		CircuitBreakerTimeout:    time.Duration(cfg.CircuitBreaker.Timeout) * time.Second,
	}

	client, err := gw.NewClient(store, vectors, embedderClient, clientConfig, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, log, nil
}
