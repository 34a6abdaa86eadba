package retrieval

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"

	"github.com/graphweave/graphweave/pkg/graph"
	"github.com/graphweave/graphweave/pkg/types"
	"github.com/graphweave/graphweave/pkg/vector"
)

const (
	DefaultMaxDepth  = 3
	DefaultBeamWidth = 10
)

// NeighborFetcher returns the one-hop chunk neighbors of a chunk. The
// traversal pattern is fixed by the implementation.
type NeighborFetcher interface {
	Neighbors(ctx context.Context, chunkID string) ([]string, error)
}

// chunkNeighborQuery walks from a chunk to the entities mentioned in it
// and back out to every other chunk those entities are mentioned in.
const chunkNeighborQuery = `
// get chunk neighbours (semantic beam search)
MATCH (entity)-[:SUBJECT|OBJECT]->()-[:SUPPORTS]->()-[:BELONGS_TO]->()-[:MENTIONED_IN]->(c:Chunk)
WHERE c.chunkId = $chunkId
WITH COLLECT(DISTINCT entity) AS entities
UNWIND entities AS entity
MATCH (entity)-[:SUBJECT|OBJECT]->()-[:SUPPORTS]->()-[:BELONGS_TO]->()-[:MENTIONED_IN]->(neighbor:Chunk)
RETURN DISTINCT neighbor.chunkId AS chunkId`

// GraphNeighborFetcher implements NeighborFetcher over a graph store.
type GraphNeighborFetcher struct {
	store graph.Store
}

// NewGraphNeighborFetcher creates a fetcher backed by the given store.
func NewGraphNeighborFetcher(store graph.Store) *GraphNeighborFetcher {
	return &GraphNeighborFetcher{store: store}
}

// Neighbors returns the chunk ids reachable from chunkID in one hop
// through the entity relation pattern.
func (f *GraphNeighborFetcher) Neighbors(ctx context.Context, chunkID string) ([]string, error) {
	rows, err := f.store.ExecuteQuery(ctx, chunkNeighborQuery, map[string]any{"chunkId": chunkID})
	if err != nil {
		return nil, err
	}

	neighbors := make([]string, 0, len(rows))
	for _, row := range rows {
		if id := row.StringValue("chunkId"); id != "" {
			neighbors = append(neighbors, id)
		}
	}
	return neighbors, nil
}

// BeamResult is one visited node of a beam search together with the path
// that led to it.
type BeamResult struct {
	ChunkID string
	Path    []string
}

// BeamSearch expands seed chunks through the graph with a frontier
// bounded by beam width and depth, rescoring every frontier candidate
// against the query embedding.
type BeamSearch struct {
	fetcher   NeighborFetcher
	index     vector.Index
	cache     *EmbeddingCache
	maxDepth  int
	beamWidth int
	logger    *slog.Logger
}

// NewBeamSearch creates a beam search retriever. The index is only used
// for seed lookup when no seeds are supplied via RetrieveFrom.
func NewBeamSearch(fetcher NeighborFetcher, index vector.Index, cache *EmbeddingCache, maxDepth, beamWidth int, logger *slog.Logger) (*BeamSearch, error) {
	if fetcher == nil || cache == nil {
		return nil, fmt.Errorf("beam search requires a neighbor fetcher and an embedding cache")
	}
	if maxDepth < 0 {
		return nil, fmt.Errorf("invalid max depth %d", maxDepth)
	}
	if beamWidth <= 0 {
		return nil, fmt.Errorf("invalid beam width %d", beamWidth)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BeamSearch{
		fetcher:   fetcher,
		index:     index,
		cache:     cache,
		maxDepth:  maxDepth,
		beamWidth: beamWidth,
		logger:    logger,
	}, nil
}

// Kind reports that beam search is a graph-expansion retriever.
func (s *BeamSearch) Kind() Kind {
	return KindGraphExpansion
}

// Retrieve runs the search from a fresh vector-store seed lookup.
func (s *BeamSearch) Retrieve(ctx context.Context, query types.QueryBundle) ([]types.ChunkMatch, error) {
	if s.index == nil {
		return nil, fmt.Errorf("beam search has no vector index for seed lookup")
	}

	seedResults, err := s.index.TopK(ctx, query, s.beamWidth*2)
	if err != nil {
		return nil, fmt.Errorf("seed lookup failed: %w", err)
	}
	return s.RetrieveFrom(ctx, query, seedResults)
}

// RetrieveFrom runs the search from the given seed matches and returns
// only the chunks the expansion discovered beyond the seeds.
func (s *BeamSearch) RetrieveFrom(ctx context.Context, query types.QueryBundle, seeds []types.ChunkMatch) ([]types.ChunkMatch, error) {
	seedIDs := make([]string, 0, len(seeds))
	for _, seed := range seeds {
		seedIDs = append(seedIDs, seed.ChunkID)
	}

	s.logger.Debug("beam search starting", "seeds", len(seedIDs))
	if len(seedIDs) == 0 {
		return nil, nil
	}

	results := s.search(ctx, query.Embedding, seedIDs)
	s.logger.Debug("beam search finished", "results", len(results))

	seen := make(map[string]struct{}, len(seedIDs))
	for _, id := range seedIDs {
		seen[id] = struct{}{}
	}

	var matches []types.ChunkMatch
	for _, result := range results {
		if _, ok := seen[result.ChunkID]; ok {
			continue
		}
		matches = append(matches, types.ChunkMatch{
			ChunkID:    result.ChunkID,
			SearchType: types.SearchTypeBeam,
			Depth:      len(result.Path),
			Path:       result.Path,
		})
	}
	return matches, nil
}

// search runs the priority-queue expansion. Entries are popped highest
// similarity first, ties broken by lower depth and then by insertion
// order, which keeps the traversal deterministic. No node is visited
// twice across the whole search.
func (s *BeamSearch) search(ctx context.Context, queryEmbedding []float32, startIDs []string) []BeamResult {
	visited := make(map[string]struct{})
	var results []BeamResult

	queue := &beamQueue{}
	heap.Init(queue)

	startEmbeddings := s.cache.GetEmbeddings(ctx, startIDs)
	for _, match := range TopK(queryEmbedding, startIDs, startEmbeddings, len(startIDs)) {
		queue.push(match.Score, 0, match.ChunkID, []string{match.ChunkID})
	}

	for queue.Len() > 0 && len(results) < s.beamWidth {
		entry := heap.Pop(queue).(*beamEntry)

		if _, ok := visited[entry.chunkID]; ok {
			continue
		}
		visited[entry.chunkID] = struct{}{}
		results = append(results, BeamResult{ChunkID: entry.chunkID, Path: entry.path})

		if entry.depth >= s.maxDepth {
			continue
		}

		neighborIDs, err := s.fetcher.Neighbors(ctx, entry.chunkID)
		if err != nil {
			// A failed expansion must not abort the traversal; the node
			// simply contributes no neighbors.
			s.logger.Error("neighbor fetch failed", "chunkId", entry.chunkID, "error", err)
			continue
		}
		if len(neighborIDs) == 0 {
			continue
		}

		neighborEmbeddings := s.cache.GetEmbeddings(ctx, neighborIDs)
		for _, match := range TopK(queryEmbedding, neighborIDs, neighborEmbeddings, s.beamWidth) {
			if _, ok := visited[match.ChunkID]; ok {
				continue
			}
			path := make([]string, len(entry.path), len(entry.path)+1)
			copy(path, entry.path)
			queue.push(match.Score, entry.depth+1, match.ChunkID, append(path, match.ChunkID))
		}
	}

	return results
}

// beamEntry is a frontier candidate ordered by (similarity desc, depth
// asc, seq asc).
type beamEntry struct {
	score   float64
	depth   int
	chunkID string
	path    []string
	seq     int
}

type beamQueue struct {
	entries []*beamEntry
	nextSeq int
}

func (q *beamQueue) push(score float64, depth int, chunkID string, path []string) {
	heap.Push(q, &beamEntry{
		score:   score,
		depth:   depth,
		chunkID: chunkID,
		path:    path,
		seq:     q.nextSeq,
	})
	q.nextSeq++
}

func (q *beamQueue) Len() int { return len(q.entries) }

func (q *beamQueue) Less(i, j int) bool {
	a, b := q.entries[i], q.entries[j]
	if a.score != b.score {
		return a.score > b.score
	}
	if a.depth != b.depth {
		return a.depth < b.depth
	}
	return a.seq < b.seq
}

func (q *beamQueue) Swap(i, j int) {
	q.entries[i], q.entries[j] = q.entries[j], q.entries[i]
}

func (q *beamQueue) Push(x any) {
	q.entries = append(q.entries, x.(*beamEntry))
}

func (q *beamQueue) Pop() any {
	old := q.entries
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	q.entries = old[:n-1]
	return entry
}

var _ GraphExpansionRetriever = (*BeamSearch)(nil)
