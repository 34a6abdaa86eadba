package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/graphweave/graphweave/pkg/graph"
	"github.com/graphweave/graphweave/pkg/types"
	"github.com/graphweave/graphweave/pkg/utils"
)

// ChunkFetcher batch-fetches full chunk records, with source data, for a
// set of chunk ids.
type ChunkFetcher interface {
	GetChunks(ctx context.Context, chunkIDs []string) ([]types.Chunk, error)
}

const chunkRecordQuery = `
MATCH (chunk:Chunk)-[:EXTRACTED_FROM]->(source:Source)
WHERE chunk.chunkId IN $chunkIds
RETURN chunk.chunkId AS chunkId, chunk.value AS value,
       source.sourceId AS sourceId, properties(source) AS metadata`

// GraphChunkFetcher implements ChunkFetcher over a graph store. Records
// are returned in the order of the requested ids; unknown ids are
// omitted.
type GraphChunkFetcher struct {
	store graph.Store
}

// NewGraphChunkFetcher creates a fetcher backed by the given store.
func NewGraphChunkFetcher(store graph.Store) *GraphChunkFetcher {
	return &GraphChunkFetcher{store: store}
}

// GetChunks fetches the chunk records for the given ids in one query.
func (f *GraphChunkFetcher) GetChunks(ctx context.Context, chunkIDs []string) ([]types.Chunk, error) {
	if len(chunkIDs) == 0 {
		return nil, nil
	}

	rows, err := f.store.ExecuteQuery(ctx, chunkRecordQuery, map[string]any{"chunkIds": chunkIDs})
	if err != nil {
		return nil, err
	}

	byID := make(map[string]types.Chunk, len(rows))
	for _, row := range rows {
		metadata := make(map[string]string)
		for key, value := range row.NestedRow("metadata") {
			if s, ok := value.(string); ok {
				metadata[key] = s
			}
		}
		chunk := types.Chunk{
			ChunkID: row.StringValue("chunkId"),
			Value:   row.StringValue("value"),
			Source: types.SourceInfo{
				SourceID: row.StringValue("sourceId"),
				Metadata: metadata,
			},
		}
		byID[chunk.ChunkID] = chunk
	}

	chunks := make([]types.Chunk, 0, len(byID))
	for _, id := range chunkIDs {
		if chunk, ok := byID[id]; ok {
			chunks = append(chunks, chunk)
		}
	}
	return chunks, nil
}

// FilterFunc decides whether a chunk's source passes the caller's
// metadata filter.
type FilterFunc func(source types.SourceInfo) bool

// FanOutRetriever coordinates a set of retrievers: initial retrievers
// run concurrently, graph-expansion retrievers are fed the merged
// first-stage results, and the combined id set is resolved to full
// records, filtered, and ordered with source locality preserved.
type FanOutRetriever struct {
	initial      []ChunkRetriever
	expansion    []GraphExpansionRetriever
	fetcher      ChunkFetcher
	filter       FilterFunc
	shareResults bool
	logger       *slog.Logger
}

// FanOutOption configures a FanOutRetriever.
type FanOutOption func(*FanOutRetriever)

// WithFilter sets the source metadata filter applied to fetched records.
func WithFilter(filter FilterFunc) FanOutOption {
	return func(r *FanOutRetriever) { r.filter = filter }
}

// WithShareResults controls whether first-stage results seed the
// graph-expansion retrievers. On by default.
func WithShareResults(share bool) FanOutOption {
	return func(r *FanOutRetriever) { r.shareResults = share }
}

// WithFanOutLogger sets the logger.
func WithFanOutLogger(logger *slog.Logger) FanOutOption {
	return func(r *FanOutRetriever) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewFanOutRetriever creates a fan-out retriever over the given
// retrievers. Variants are partitioned by Kind here, at configuration
// time; a retriever reporting KindGraphExpansion must implement
// GraphExpansionRetriever.
func NewFanOutRetriever(fetcher ChunkFetcher, retrievers []ChunkRetriever, opts ...FanOutOption) (*FanOutRetriever, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fan-out retriever requires a chunk fetcher")
	}
	if len(retrievers) == 0 {
		return nil, fmt.Errorf("fan-out retriever requires at least one retriever")
	}

	r := &FanOutRetriever{
		fetcher:      fetcher,
		shareResults: true,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, retriever := range retrievers {
		switch retriever.Kind() {
		case KindGraphExpansion:
			expander, ok := retriever.(GraphExpansionRetriever)
			if !ok {
				return nil, fmt.Errorf("retriever %T reports KindGraphExpansion but does not implement GraphExpansionRetriever", retriever)
			}
			r.expansion = append(r.expansion, expander)
		default:
			r.initial = append(r.initial, retriever)
		}
	}

	if len(r.initial) == 0 {
		return nil, fmt.Errorf("fan-out retriever requires at least one initial retriever")
	}
	return r, nil
}

// Retrieve runs the full fan-out pipeline and returns a deduplicated,
// filtered, source-grouped ranked list. An empty result is a valid
// outcome: backend failures degrade the result set instead of failing
// the call.
func (r *FanOutRetriever) Retrieve(ctx context.Context, query types.QueryBundle) ([]types.ChunkMatch, error) {
	// Stage 1: initial retrievers in parallel, results collected in
	// submission order so the downstream merge is deterministic.
	tasks := make([]func() ([]types.ChunkMatch, error), len(r.initial))
	for i, retriever := range r.initial {
		retriever := retriever
		tasks[i] = func() ([]types.ChunkMatch, error) {
			return retriever.Retrieve(ctx, query)
		}
	}
	initialResults, errs := utils.ExecuteWithResults(ctx, len(r.initial), tasks...)

	failures := 0
	for i, err := range errs {
		if err != nil {
			failures++
			r.logger.Error("initial retriever failed", "retriever", fmt.Sprintf("%T", r.initial[i]), "error", err)
		}
	}
	if failures == len(r.initial) {
		r.logger.Warn("all initial retrievers failed, returning empty result")
		return nil, nil
	}

	// Stage 2a: merge by chunk id, first-seen wins.
	seen := make(map[string]struct{})
	var merged []types.ChunkMatch
	for _, matches := range initialResults {
		for _, match := range matches {
			if _, ok := seen[match.ChunkID]; ok {
				continue
			}
			seen[match.ChunkID] = struct{}{}
			merged = append(merged, match)
		}
	}
	r.logger.Debug("fan-out merged initial results", "count", len(merged))

	// Stage 2b: graph expansion seeded with the merged results. A single
	// expander's failure only costs its own contribution.
	if r.shareResults && len(merged) > 0 {
		seeds := merged
		for _, expander := range r.expansion {
			expanded, err := expander.RetrieveFrom(ctx, query, seeds)
			if err != nil {
				r.logger.Error("graph expansion retriever failed", "retriever", fmt.Sprintf("%T", expander), "error", err)
				continue
			}
			for _, match := range expanded {
				if _, ok := seen[match.ChunkID]; ok {
					continue
				}
				seen[match.ChunkID] = struct{}{}
				merged = append(merged, match)
			}
		}
		r.logger.Debug("fan-out merged expanded results", "count", len(merged))
	}

	if len(merged) == 0 {
		return nil, nil
	}

	// Stage 3: one batched record fetch, avoiding N+1 lookups.
	chunkIDs := make([]string, len(merged))
	for i, match := range merged {
		chunkIDs[i] = match.ChunkID
	}
	chunks, err := r.fetcher.GetChunks(ctx, chunkIDs)
	if err != nil {
		return nil, fmt.Errorf("chunk record fetch failed: %w", err)
	}
	chunkMap := make(map[string]types.Chunk, len(chunks))
	for _, chunk := range chunks {
		chunkMap[chunk.ChunkID] = chunk
	}

	// Stage 4: resolve records and apply the source metadata filter.
	var resolved []types.ChunkMatch
	for _, match := range merged {
		chunk, ok := chunkMap[match.ChunkID]
		if !ok {
			continue
		}
		if r.filter != nil && !r.filter(chunk.Source) {
			continue
		}
		match.Chunk = &chunk
		match.Source = chunk.Source.SourceID
		resolved = append(resolved, match)
	}
	r.logger.Debug("fan-out resolved records", "count", len(resolved))

	// Stage 5: group by source in first-seen order, best score first
	// within each group. Source locality is preserved deliberately so
	// context from a single source stays cohesive.
	return groupBySource(resolved), nil
}

func groupBySource(matches []types.ChunkMatch) []types.ChunkMatch {
	var sourceOrder []string
	groups := make(map[string][]types.ChunkMatch)
	for _, match := range matches {
		if _, ok := groups[match.Source]; !ok {
			sourceOrder = append(sourceOrder, match.Source)
		}
		groups[match.Source] = append(groups[match.Source], match)
	}

	ordered := make([]types.ChunkMatch, 0, len(matches))
	for _, source := range sourceOrder {
		group := groups[source]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Score > group[j].Score
		})
		ordered = append(ordered, group...)
	}
	return ordered
}
