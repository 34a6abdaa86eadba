package vector

import (
	"context"

	"github.com/graphweave/graphweave/pkg/types"
)

// ChunkIndexName is the index every deployment carries.
const ChunkIndexName = "chunk"

// Index is a single named vector index over chunks (or chunk-like nodes
// such as topics). The retrieval engine treats it as an opaque ranked
// lookup plus a batch embedding fetch.
type Index interface {
	// TopK returns the k records most similar to the query, best first.
	TopK(ctx context.Context, query types.QueryBundle, k int) ([]types.ChunkMatch, error)

	// GetEmbeddings returns the stored embeddings for the given ids.
	// Ids unknown to the index are absent from the result.
	GetEmbeddings(ctx context.Context, ids []string) (map[string][]float32, error)
}

// Store maps index names ("chunk", "topic") to indexes.
type Store interface {
	Index(name string) Index

	// Close releases all resources held by the store.
	Close() error
}
