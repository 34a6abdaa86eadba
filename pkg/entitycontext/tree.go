package entitycontext

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/graphweave/graphweave/pkg/graph"
	"github.com/graphweave/graphweave/pkg/types"
)

// minNeighbourBudget is the smallest per-node neighbour allowance; the
// budget decays towards it level by level so trees stay narrow at depth.
const minNeighbourBudget = 3

const treeLevelQuery = `
MATCH (entity:Entity)-[:RELATION]->(other:Entity)-[r:SUBJECT|OBJECT]->()
WHERE entity.entityId IN $entityIds
  AND NOT other.entityId IN $excludeEntityIds
WITH entity, collect(DISTINCT other.entityId)[0..$numNeighbours] AS others, count(r) AS score
ORDER BY score DESC
RETURN entity.entityId AS entityId, others AS others`

// Tree is an acyclic forest of entity ids. Roots and children keep the
// order in which they were discovered.
type Tree struct {
	Roots    []string
	Children map[string][]string
}

// NeighbourIDs returns every non-root node id in the forest, in
// discovery order.
func (t *Tree) NeighbourIDs() []string {
	var ids []string
	var walk func(node string)
	walk = func(node string) {
		for _, child := range t.Children[node] {
			ids = append(ids, child)
			walk(child)
		}
	}
	for _, root := range t.Roots {
		walk(root)
	}
	return ids
}

// TreeBuilder grows a context tree around seed entities by repeated
// level-by-level graph expansion.
type TreeBuilder struct {
	store    graph.Store
	maxDepth int
	logger   *slog.Logger
}

// TreeBuilderOption configures a TreeBuilder.
type TreeBuilderOption func(*TreeBuilder)

// WithTreeLogger sets the logger.
func WithTreeLogger(logger *slog.Logger) TreeBuilderOption {
	return func(b *TreeBuilder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewTreeBuilder creates a builder expanding up to maxDepth levels per
// seed.
func NewTreeBuilder(store graph.Store, maxDepth int, opts ...TreeBuilderOption) (*TreeBuilder, error) {
	if store == nil {
		return nil, fmt.Errorf("tree builder requires a graph store")
	}
	if maxDepth < 0 {
		return nil, fmt.Errorf("maxDepth must be non-negative, got %d", maxDepth)
	}
	b := &TreeBuilder{
		store:    store,
		maxDepth: maxDepth,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Build expands every positively scored seed into a subtree. A single
// visited set spans the whole forest, so each entity id appears exactly
// once across all subtrees and no cycles can form. Seeds claimed by an
// earlier seed's expansion are skipped.
func (b *TreeBuilder) Build(ctx context.Context, entities []types.ScoredEntity) (*Tree, error) {
	tree := &Tree{Children: make(map[string][]string)}
	visited := make(map[string]struct{})

	for _, entity := range entities {
		if entity.Score <= 0 {
			continue
		}
		seedID := entity.Entity.EntityID
		if _, ok := visited[seedID]; ok {
			continue
		}
		visited[seedID] = struct{}{}
		tree.Roots = append(tree.Roots, seedID)

		if err := b.expandSeed(ctx, tree, visited, seedID); err != nil {
			return nil, err
		}
	}

	b.logger.Debug("context tree built", "roots", len(tree.Roots), "nodes", len(visited))
	return tree, nil
}

// expandSeed grows one subtree. The neighbour budget starts wide near
// the seed and narrows one slot per level down to minNeighbourBudget.
func (b *TreeBuilder) expandSeed(ctx context.Context, tree *Tree, visited map[string]struct{}, seedID string) error {
	frontier := []string{seedID}

	for budget := b.maxDepth + 2; budget >= minNeighbourBudget && len(frontier) > 0; budget-- {
		exclude := make([]string, 0, len(visited))
		for id := range visited {
			exclude = append(exclude, id)
		}

		rows, err := b.store.ExecuteQuery(ctx, treeLevelQuery, map[string]any{
			"entityIds":        frontier,
			"excludeEntityIds": exclude,
			"numNeighbours":    budget,
		})
		if err != nil {
			return fmt.Errorf("context tree level query failed: %w", err)
		}

		var next []string
		for _, row := range rows {
			parent := row.StringValue("entityId")
			for _, other := range row.StringSlice("others") {
				if _, ok := visited[other]; ok {
					continue
				}
				visited[other] = struct{}{}
				tree.Children[parent] = append(tree.Children[parent], other)
				next = append(next, other)
			}
		}
		frontier = next
	}
	return nil
}
