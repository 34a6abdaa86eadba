package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/graphweave/graphweave/pkg/types"
	"github.com/graphweave/graphweave/pkg/vector"
)

const (
	DefaultCosineTopK = 100

	// defaultCandidateK is the sample drawn from the vector store before
	// rescoring through the shared cache.
	defaultCandidateK = 5
)

// CosineSearch is the default initial retriever: it pulls candidates
// from the vector store and rescores them by cosine similarity using the
// shared embedding cache.
type CosineSearch struct {
	index      vector.Index
	cache      *EmbeddingCache
	topK       int
	candidateK int
	logger     *slog.Logger
}

// NewCosineSearch creates a cosine similarity retriever over the index.
func NewCosineSearch(index vector.Index, cache *EmbeddingCache, topK int, logger *slog.Logger) (*CosineSearch, error) {
	if index == nil || cache == nil {
		return nil, fmt.Errorf("cosine search requires a vector index and an embedding cache")
	}
	if topK <= 0 {
		topK = DefaultCosineTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CosineSearch{
		index:      index,
		cache:      cache,
		topK:       topK,
		candidateK: defaultCandidateK,
		logger:     logger,
	}, nil
}

// Kind reports that cosine search is a first-stage retriever.
func (s *CosineSearch) Kind() Kind {
	return KindInitial
}

// Retrieve returns the top chunks by cosine similarity to the query.
func (s *CosineSearch) Retrieve(ctx context.Context, query types.QueryBundle) ([]types.ChunkMatch, error) {
	candidates, err := s.index.TopK(ctx, query, s.candidateK)
	if err != nil {
		return nil, fmt.Errorf("vector store lookup failed: %w", err)
	}
	s.logger.Debug("cosine search candidates", "count", len(candidates))

	chunkIDs := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		chunkIDs = append(chunkIDs, candidate.ChunkID)
	}

	embeddings := s.cache.GetEmbeddings(ctx, chunkIDs)
	ranked := TopK(query.Embedding, chunkIDs, embeddings, s.topK)
	s.logger.Debug("cosine search ranked", "count", len(ranked))

	matches := make([]types.ChunkMatch, 0, len(ranked))
	for _, match := range ranked {
		matches = append(matches, types.ChunkMatch{
			ChunkID:    match.ChunkID,
			Score:      match.Score,
			SearchType: types.SearchTypeCosine,
		})
	}
	return matches, nil
}

var _ ChunkRetriever = (*CosineSearch)(nil)
