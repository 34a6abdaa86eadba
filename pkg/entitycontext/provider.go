package entitycontext

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/graphweave/graphweave/pkg/graph"
	"github.com/graphweave/graphweave/pkg/types"
)

const neighbourScoreQuery = `
MATCH (entity:Entity)-[r:SUBJECT|OBJECT]->()
WHERE entity.entityId IN $entityIds
WITH entity, count(r) AS score
RETURN entity.entityId AS entityId, entity.value AS value,
       entity.class AS class, score AS score`

// ContextProvider runs the full entity context pipeline: tree build,
// neighbour scoring, filtering, and chain assembly.
type ContextProvider struct {
	store     graph.Store
	builder   *TreeBuilder
	assembler *Assembler
	minFactor float64
	maxFactor float64
	logger    *slog.Logger
}

// ProviderConfig holds the tuning knobs of a ContextProvider.
type ProviderConfig struct {
	MaxDepth    int
	MaxContexts int
	// MinScoreFactor and MaxScoreFactor bound the entity score band
	// relative to the best score, typically 0.2 and 1.0.
	MinScoreFactor float64
	MaxScoreFactor float64
	Logger         *slog.Logger
}

// NewContextProvider creates a provider over the given graph store.
func NewContextProvider(store graph.Store, cfg ProviderConfig) (*ContextProvider, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	builder, err := NewTreeBuilder(store, cfg.MaxDepth, WithTreeLogger(logger))
	if err != nil {
		return nil, err
	}
	assembler, err := NewAssembler(cfg.MaxContexts, WithAssemblerLogger(logger))
	if err != nil {
		return nil, err
	}

	return &ContextProvider{
		store:     store,
		builder:   builder,
		assembler: assembler,
		minFactor: cfg.MinScoreFactor,
		maxFactor: cfg.MaxScoreFactor,
		logger:    logger,
	}, nil
}

// EntityContexts builds the context chains for the given seed entities.
// No seeds yields no contexts.
func (p *ContextProvider) EntityContexts(ctx context.Context, entities []types.ScoredEntity, query types.QueryBundle) ([]types.Context, error) {
	if len(entities) == 0 {
		return nil, nil
	}

	tree, err := p.builder.Build(ctx, entities)
	if err != nil {
		return nil, fmt.Errorf("building context tree: %w", err)
	}

	neighbours, err := p.scoreNeighbours(ctx, tree)
	if err != nil {
		return nil, fmt.Errorf("scoring tree neighbours: %w", err)
	}

	merged := append(append([]types.ScoredEntity{}, entities...), neighbours...)
	filtered := FilterEntities(merged, p.minFactor, p.maxFactor)

	contexts := p.assembler.Assemble(tree, filtered)
	p.logger.Debug("entity contexts assembled", "query", query.Query, "contexts", len(contexts))
	return contexts, nil
}

// scoreNeighbours fetches the non-root tree entities and scores each by
// its supporting-relation count.
func (p *ContextProvider) scoreNeighbours(ctx context.Context, tree *Tree) ([]types.ScoredEntity, error) {
	ids := tree.NeighbourIDs()
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := p.store.ExecuteQuery(ctx, neighbourScoreQuery, map[string]any{"entityIds": ids})
	if err != nil {
		return nil, err
	}

	neighbours := make([]types.ScoredEntity, 0, len(rows))
	for _, row := range rows {
		neighbours = append(neighbours, types.ScoredEntity{
			Entity: types.Entity{
				EntityID:       row.StringValue("entityId"),
				Value:          row.StringValue("value"),
				Classification: row.StringValue("class"),
			},
			Score: row.FloatValue("score"),
		})
	}
	return neighbours, nil
}
