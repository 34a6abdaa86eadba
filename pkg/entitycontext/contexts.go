package entitycontext

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/graphweave/graphweave/pkg/types"
)

// Assembler flattens a context tree into ordered root-to-leaf entity
// chains.
type Assembler struct {
	maxContexts int
	logger      *slog.Logger
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithAssemblerLogger sets the logger.
func WithAssemblerLogger(logger *slog.Logger) AssemblerOption {
	return func(a *Assembler) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAssembler creates an assembler returning at most maxContexts
// chains.
func NewAssembler(maxContexts int, opts ...AssemblerOption) (*Assembler, error) {
	if maxContexts <= 0 {
		return nil, fmt.Errorf("maxContexts must be positive, got %d", maxContexts)
	}
	a := &Assembler{
		maxContexts: maxContexts,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Assemble walks the tree depth first and returns deduplicated,
// ordered root-to-leaf chains. Entity ids absent from the lookup are
// skipped without breaking the walk, so a chain through a filtered-out
// entity still connects its surviving neighbours.
func (a *Assembler) Assemble(tree *Tree, entities []types.ScoredEntity) []types.Context {
	lookup := make(map[string]types.ScoredEntity, len(entities))
	for _, entity := range entities {
		if _, ok := lookup[entity.Entity.EntityID]; !ok {
			lookup[entity.Entity.EntityID] = entity
		}
	}

	chains := a.collectChains(tree, lookup)
	a.logger.Debug("collected context chains", "count", len(chains))

	chains = dedupByValueKey(chains)
	a.logger.Debug("deduplicated context chains", "count", len(chains))

	chains = orderBySubtree(chains)

	if len(chains) > a.maxContexts {
		chains = chains[:a.maxContexts]
	}

	contexts := make([]types.Context, len(chains))
	for i, chain := range chains {
		contexts[i] = types.Context{Entities: chain}
	}
	return contexts
}

// collectChains gathers one chain per leaf, then drops chains whose
// entity-id path is a proper prefix of another chain's path. Chains
// keep leaf discovery order.
func (a *Assembler) collectChains(tree *Tree, lookup map[string]types.ScoredEntity) [][]types.ScoredEntity {
	var keys []string
	byKey := make(map[string][]types.ScoredEntity)

	var walk func(chain []types.ScoredEntity, node string)
	walk = func(chain []types.ScoredEntity, node string) {
		next := chain
		if entity, ok := lookup[node]; ok {
			next = make([]types.ScoredEntity, len(chain), len(chain)+1)
			copy(next, chain)
			next = append(next, entity)
		}
		children := tree.Children[node]
		if len(children) == 0 {
			if len(next) == 0 {
				return
			}
			key := idKey(next)
			if _, ok := byKey[key]; !ok {
				keys = append(keys, key)
			}
			byKey[key] = next
			return
		}
		for _, child := range children {
			walk(next, child)
		}
	}

	for _, root := range tree.Roots {
		walk(nil, root)
	}

	var chains [][]types.ScoredEntity
	for _, key := range keys {
		if isProperPrefixOfAny(key, keys) {
			continue
		}
		chains = append(chains, byKey[key])
	}
	return chains
}

// dedupByValueKey drops chains whose lowercase-joined entity values are
// a proper prefix of another chain's key, keeping first-seen order.
func dedupByValueKey(chains [][]types.ScoredEntity) [][]types.ScoredEntity {
	var keys []string
	byKey := make(map[string][]types.ScoredEntity)
	for _, chain := range chains {
		key := valueKey(chain)
		if _, ok := byKey[key]; !ok {
			keys = append(keys, key)
		}
		byKey[key] = chain
	}

	var deduped [][]types.ScoredEntity
	for _, key := range keys {
		if isProperPrefixOfAny(key, keys) {
			continue
		}
		deduped = append(deduped, byKey[key])
	}
	return deduped
}

// orderBySubtree groups chains by root entity in first-seen root order
// and sorts each group by its context score, highest first.
func orderBySubtree(chains [][]types.ScoredEntity) [][]types.ScoredEntity {
	var rootOrder []string
	groups := make(map[string][][]types.ScoredEntity)
	for _, chain := range chains {
		rootID := chain[0].Entity.EntityID
		if _, ok := groups[rootID]; !ok {
			rootOrder = append(rootOrder, rootID)
		}
		groups[rootID] = append(groups[rootID], chain)
	}

	ordered := make([][]types.ScoredEntity, 0, len(chains))
	for _, rootID := range rootOrder {
		group := groups[rootID]
		sort.SliceStable(group, func(i, j int) bool {
			return contextScore(group[i]) > contextScore(group[j])
		})
		ordered = append(ordered, group...)
	}
	return ordered
}

// contextScore is mean(score)/mean(rerankingScore), or 0 when the
// chain has not been reranked.
func contextScore(chain []types.ScoredEntity) float64 {
	var score, reranking float64
	for _, entity := range chain {
		score += entity.Score
		reranking += entity.RerankingScore
	}
	score /= float64(len(chain))
	reranking /= float64(len(chain))
	if reranking <= 0 {
		return 0
	}
	return score / reranking
}

func idKey(chain []types.ScoredEntity) string {
	parts := make([]string, len(chain))
	for i, entity := range chain {
		parts[i] = entity.Entity.EntityID
	}
	return strings.Join(parts, ":")
}

func valueKey(chain []types.ScoredEntity) string {
	parts := make([]string, len(chain))
	for i, entity := range chain {
		parts[i] = strings.ToLower(entity.Entity.Value)
	}
	return strings.Join(parts, ",")
}

func isProperPrefixOfAny(key string, keys []string) bool {
	for _, other := range keys {
		if other != key && strings.HasPrefix(other, key) {
			return true
		}
	}
	return false
}
