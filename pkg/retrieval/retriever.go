package retrieval

import (
	"context"

	"github.com/graphweave/graphweave/pkg/types"
)

// Kind discriminates retriever variants at configuration time. The
// fan-out retriever schedules KindInitial retrievers concurrently in the
// first stage and feeds their merged output to KindGraphExpansion
// retrievers in the second.
type Kind int

const (
	KindInitial Kind = iota
	KindGraphExpansion
)

// ChunkRetriever is a single first-stage retrieval strategy producing
// chunk matches for a query.
type ChunkRetriever interface {
	Retrieve(ctx context.Context, query types.QueryBundle) ([]types.ChunkMatch, error)
	Kind() Kind
}

// GraphExpansionRetriever expands a set of seed matches through the
// graph. Retrievers reporting KindGraphExpansion must implement it.
type GraphExpansionRetriever interface {
	ChunkRetriever

	// RetrieveFrom runs the expansion using the given seeds instead of
	// the retriever's own seed lookup.
	RetrieveFrom(ctx context.Context, query types.QueryBundle, seeds []types.ChunkMatch) ([]types.ChunkMatch, error)
}
