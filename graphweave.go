// Package graphweave provides semantic-guided graph retrieval for
// hybrid GraphRAG applications.
//
// Graphweave combines vector similarity search over chunk embeddings
// with guided traversal of a lexical knowledge graph. Retrieval fans
// out over cosine similarity and beam search, deduplicates and groups
// the results by source, and can additionally assemble multi-hop
// entity context chains that explain why the retrieved material is
// relevant to a query.
//
// # Basic Usage
//
// Create a client with the required stores:
//
//	// Create graph store
//	store, err := graph.NewNeo4jStore("bolt://localhost:7687", "neo4j", "password", "neo4j")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close(ctx)
//
//	// Create vector store
//	vectors, err := vector.NewPostgresStore("postgres://localhost:5432/graphweave")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer vectors.Close()
//
//	// Create embedder
//	embedderClient := embedder.NewOpenAIClient(&embedder.Config{
//		Model:  "text-embedding-3-small",
//		APIKey: "your-api-key",
//	})
//
//	client, err := graphweave.NewClient(store, vectors, embedderClient, nil, nil)
//
// # Retrieving
//
// Retrieve ranked chunks for a query:
//
//	results, err := client.Retrieve(ctx, "how do beam searches traverse the graph?")
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, match := range results {
//		fmt.Printf("%s (%.3f)\n", match.ChunkID, match.Score)
//	}
package graphweave

import (
	"errors"
	"log/slog"
	"time"

	"github.com/graphweave/graphweave/pkg/embedder"
	"github.com/graphweave/graphweave/pkg/entitycontext"
	"github.com/graphweave/graphweave/pkg/graph"
	"github.com/graphweave/graphweave/pkg/retrieval"
	"github.com/graphweave/graphweave/pkg/vector"
)

// Config holds configuration for the graphweave client.
type Config struct {
	// BeamWidth bounds the number of chunks beam search returns.
	BeamWidth int
	// BeamMaxDepth bounds how many hops beam search traverses.
	BeamMaxDepth int
	// TopK bounds the chunks the cosine retriever returns.
	TopK int
	// ShareResults feeds first-stage results into graph expansion.
	ShareResults bool
	// CacheMaxEntries bounds the embedding cache; 0 means unbounded.
	CacheMaxEntries int

	// EntityContextMaxDepth bounds context tree expansion per seed.
	EntityContextMaxDepth int
	// EntityContextMaxContexts bounds the returned context chains.
	EntityContextMaxContexts int
	// MinScoreFactor and MaxScoreFactor bound the entity score band
	// relative to the best score.
	MinScoreFactor float64
	MaxScoreFactor float64
	// EnrichQuery enables statement-based query enrichment.
	EnrichQuery bool

	// CircuitBreaker guards embedding fetches against a persistently
	// failing vector store. Failures and timeout take defaults when
	// zero.
	CircuitBreaker        bool
	CircuitBreakerTrips   uint32
	CircuitBreakerTimeout time.Duration

	// Filter restricts retrieval results by source metadata.
	Filter retrieval.FilterFunc
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *Config {
	return &Config{
		BeamWidth:                retrieval.DefaultBeamWidth,
		BeamMaxDepth:             retrieval.DefaultMaxDepth,
		TopK:                     100,
		ShareResults:             true,
		EntityContextMaxDepth:    3,
		EntityContextMaxContexts: 5,
		MinScoreFactor:           0.2,
		MaxScoreFactor:           1.0,
	}
}

// Client wires the retrieval pipeline and the entity context pipeline
// over a graph store, a vector store, and an embedder.
type Client struct {
	store    graph.Store
	vectors  vector.Store
	embedder embedder.Client

	fanOut   *retrieval.FanOutRetriever
	cache    *retrieval.EmbeddingCache
	provider *entitycontext.ContextProvider
	seeds    entitycontext.EntityProvider
	enricher *entitycontext.QueryEnricher

	config *Config
	logger *slog.Logger
}

// ErrNoEmbedder is returned when an operation needs a query embedding
// but the client has no embedder.
var ErrNoEmbedder = errors.New("no embedder configured")

// NewClient creates a new graphweave client with the provided
// configuration. A nil config uses defaults.
func NewClient(store graph.Store, vectors vector.Store, embedderClient embedder.Client, config *Config, logger *slog.Logger) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	chunkIndex := vectors.Index(vector.ChunkIndexName)

	cacheOpts := []retrieval.EmbeddingCacheOption{retrieval.WithLogger(logger)}
	if config.CacheMaxEntries > 0 {
		cacheOpts = append(cacheOpts, retrieval.WithMaxEntries(config.CacheMaxEntries))
	}
	if config.CircuitBreaker {
		cacheOpts = append(cacheOpts, retrieval.WithCircuitBreaker("embedding-cache",
			config.CircuitBreakerTrips, config.CircuitBreakerTimeout))
	}
	cache := retrieval.NewEmbeddingCache(chunkIndex, cacheOpts...)

	cosineSearch, err := retrieval.NewCosineSearch(chunkIndex, cache, config.TopK, logger)
	if err != nil {
		return nil, err
	}

	beamSearch, err := retrieval.NewBeamSearch(
		retrieval.NewGraphNeighborFetcher(store), chunkIndex, cache,
		config.BeamMaxDepth, config.BeamWidth, logger)
	if err != nil {
		return nil, err
	}

	fanOutOpts := []retrieval.FanOutOption{
		retrieval.WithShareResults(config.ShareResults),
		retrieval.WithFanOutLogger(logger),
	}
	if config.Filter != nil {
		fanOutOpts = append(fanOutOpts, retrieval.WithFilter(config.Filter))
	}
	fanOut, err := retrieval.NewFanOutRetriever(
		retrieval.NewGraphChunkFetcher(store),
		[]retrieval.ChunkRetriever{cosineSearch, beamSearch},
		fanOutOpts...)
	if err != nil {
		return nil, err
	}

	provider, err := entitycontext.NewContextProvider(store, entitycontext.ProviderConfig{
		MaxDepth:       config.EntityContextMaxDepth,
		MaxContexts:    config.EntityContextMaxContexts,
		MinScoreFactor: config.MinScoreFactor,
		MaxScoreFactor: config.MaxScoreFactor,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	seeds, err := entitycontext.NewVSSEntityProvider(store, chunkIndex, embedderClient,
		entitycontext.WithVSSLogger(logger))
	if err != nil {
		return nil, err
	}

	enricher, err := entitycontext.NewQueryEnricher(store, chunkIndex, config.EnrichQuery, logger)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:    store,
		vectors:  vectors,
		embedder: embedderClient,
		fanOut:   fanOut,
		cache:    cache,
		provider: provider,
		seeds:    seeds,
		enricher: enricher,
		config:   config,
		logger:   logger,
	}, nil
}

// Store returns the underlying graph store.
func (c *Client) Store() graph.Store {
	return c.store
}

// Vectors returns the underlying vector store.
func (c *Client) Vectors() vector.Store {
	return c.vectors
}

// Embedder returns the embedder client.
func (c *Client) Embedder() embedder.Client {
	return c.embedder
}
