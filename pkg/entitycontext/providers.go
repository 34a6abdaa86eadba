package entitycontext

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/graphweave/graphweave/pkg/embedder"
	"github.com/graphweave/graphweave/pkg/graph"
	"github.com/graphweave/graphweave/pkg/types"
	"github.com/graphweave/graphweave/pkg/vector"
)

// EntityProvider discovers scored seed entities for a query.
type EntityProvider interface {
	Entities(ctx context.Context, query types.QueryBundle, keywords []string) ([]types.ScoredEntity, error)
}

const defaultIntermediateLimit = 50

const entitiesForChunksQuery = `
MATCH (chunk:Chunk)<-[:MENTIONED_IN]-(:Statement)
      <-[:SUPPORTS]-()<-[:SUBJECT|OBJECT]-(entity:Entity)
WHERE chunk.chunkId IN $chunkIds
WITH DISTINCT entity
MATCH (entity)-[r:SUBJECT|OBJECT]->()
WITH entity, count(r) AS score ORDER BY score DESC LIMIT $limit
RETURN entity.entityId AS entityId, entity.value AS value,
       entity.class AS class, score AS score`

// VSSEntityProvider finds seed entities through vector similarity: the
// query and its keywords are matched against the chunk index, and the
// entities mentioned in the matching chunks are scored by their
// supporting-relation count. Results from the query and keyword lookups
// are merged by entity id and reranked against the query.
type VSSEntityProvider struct {
	store    graph.Store
	index    vector.Index
	embedder embedder.Client
	scorer   Scorer
	limit    int
	logger   *slog.Logger
}

var _ EntityProvider = (*VSSEntityProvider)(nil)

// VSSProviderOption configures a VSSEntityProvider.
type VSSProviderOption func(*VSSEntityProvider)

// WithVSSLimit caps the entities fetched per chunk lookup.
func WithVSSLimit(limit int) VSSProviderOption {
	return func(p *VSSEntityProvider) {
		if limit > 0 {
			p.limit = limit
		}
	}
}

// WithVSSScorer sets the reranking scorer.
func WithVSSScorer(scorer Scorer) VSSProviderOption {
	return func(p *VSSEntityProvider) { p.scorer = scorer }
}

// WithVSSLogger sets the logger.
func WithVSSLogger(logger *slog.Logger) VSSProviderOption {
	return func(p *VSSEntityProvider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewVSSEntityProvider creates a provider over the given stores. The
// embedder is used to embed keyword lookups that arrive without a
// vector.
func NewVSSEntityProvider(store graph.Store, index vector.Index, embed embedder.Client, opts ...VSSProviderOption) (*VSSEntityProvider, error) {
	if store == nil || index == nil {
		return nil, fmt.Errorf("vss entity provider requires a graph store and a vector index")
	}
	p := &VSSEntityProvider{
		store:    store,
		index:    index,
		embedder: embed,
		scorer:   TFIDFScorer{},
		limit:    defaultIntermediateLimit,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Entities discovers and reranks seed entities for the query.
func (p *VSSEntityProvider) Entities(ctx context.Context, query types.QueryBundle, keywords []string) ([]types.ScoredEntity, error) {
	merged := make(map[string]types.ScoredEntity)
	var order []string

	add := func(entities []types.ScoredEntity) {
		for _, entity := range entities {
			id := entity.Entity.EntityID
			if _, ok := merged[id]; !ok {
				order = append(order, id)
			}
			merged[id] = entity
		}
	}

	fromQuery, err := p.entitiesForValues(ctx, query, []string{query.Query})
	if err != nil {
		return nil, err
	}
	add(fromQuery)

	if len(keywords) > 0 {
		fromKeywords, err := p.entitiesForValues(ctx, query, keywords)
		if err != nil {
			return nil, err
		}
		add(fromKeywords)
	}

	entities := make([]types.ScoredEntity, 0, len(order))
	for _, id := range order {
		entities = append(entities, merged[id])
	}
	p.logger.Debug("vss entity discovery", "query", query.Query, "entities", len(entities))

	return RerankEntities(entities, query, keywords, p.scorer), nil
}

// entitiesForValues resolves values to chunks through the vector index
// and fetches the entities those chunks mention.
func (p *VSSEntityProvider) entitiesForValues(ctx context.Context, query types.QueryBundle, values []string) ([]types.ScoredEntity, error) {
	lookup := types.QueryBundle{Query: strings.Join(values, ", ")}
	if lookup.Query == query.Query {
		lookup.Embedding = query.Embedding
	}
	if lookup.Embedding == nil {
		if p.embedder == nil {
			return nil, fmt.Errorf("no embedder configured for keyword lookup")
		}
		vec, err := p.embedder.EmbedSingle(ctx, lookup.Query)
		if err != nil {
			return nil, fmt.Errorf("embedding keyword lookup: %w", err)
		}
		lookup.Embedding = vec
	}

	matches, err := p.index.TopK(ctx, lookup, 3)
	if err != nil {
		return nil, fmt.Errorf("vector lookup failed: %w", err)
	}
	if len(matches) == 0 {
		return nil, nil
	}

	chunkIDs := make([]string, len(matches))
	for i, match := range matches {
		chunkIDs[i] = match.ChunkID
	}

	rows, err := p.store.ExecuteQuery(ctx, entitiesForChunksQuery, map[string]any{
		"chunkIds": chunkIDs,
		"limit":    p.limit,
	})
	if err != nil {
		return nil, fmt.Errorf("entity lookup failed: %w", err)
	}
	return scoredEntitiesFromRows(rows), nil
}

const statementsForChunksQuery = `
MATCH (chunk:Chunk)<-[:MENTIONED_IN]-(statement:Statement)
WHERE chunk.chunkId IN $chunkIds
RETURN statement.statementId AS statementId, statement.value AS value`

const entitiesForStatementQuery = `
MATCH (statement:Statement)<-[:SUPPORTS]-(fact)<-[:SUBJECT|OBJECT]-(entity:Entity)
WHERE statement.statementId IN $statementIds
WITH DISTINCT entity
OPTIONAL MATCH (entity)-[r:SUBJECT|OBJECT]->()
WITH entity, count(r) AS score ORDER BY score DESC
RETURN entity.entityId AS entityId, entity.value AS value,
       entity.class AS class, score AS score`

// TopStatementEntityProvider finds seed entities through the statement
// that best matches the query: the top chunks' statements are scored
// against the query text and the winning statement's entities are
// returned.
type TopStatementEntityProvider struct {
	store  graph.Store
	index  vector.Index
	scorer Scorer
	logger *slog.Logger
}

var _ EntityProvider = (*TopStatementEntityProvider)(nil)

// NewTopStatementEntityProvider creates a provider over the given
// stores.
func NewTopStatementEntityProvider(store graph.Store, index vector.Index, scorer Scorer, logger *slog.Logger) (*TopStatementEntityProvider, error) {
	if store == nil || index == nil {
		return nil, fmt.Errorf("top statement entity provider requires a graph store and a vector index")
	}
	if scorer == nil {
		scorer = TFIDFScorer{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TopStatementEntityProvider{store: store, index: index, scorer: scorer, logger: logger}, nil
}

// Entities returns the entities of the statement most relevant to the
// query, or nothing when no statement matches.
func (p *TopStatementEntityProvider) Entities(ctx context.Context, query types.QueryBundle, keywords []string) ([]types.ScoredEntity, error) {
	statementID, err := p.topStatementID(ctx, query)
	if err != nil {
		return nil, err
	}
	if statementID == "" {
		return nil, nil
	}

	rows, err := p.store.ExecuteQuery(ctx, entitiesForStatementQuery, map[string]any{
		"statementIds": []string{statementID},
	})
	if err != nil {
		return nil, fmt.Errorf("statement entity lookup failed: %w", err)
	}
	return scoredEntitiesFromRows(rows), nil
}

func (p *TopStatementEntityProvider) topStatementID(ctx context.Context, query types.QueryBundle) (string, error) {
	matches, err := p.index.TopK(ctx, query, 3)
	if err != nil {
		return "", fmt.Errorf("vector lookup failed: %w", err)
	}
	if len(matches) == 0 {
		return "", nil
	}

	chunkIDs := make([]string, len(matches))
	for i, match := range matches {
		chunkIDs[i] = match.ChunkID
	}

	rows, err := p.store.ExecuteQuery(ctx, statementsForChunksQuery, map[string]any{"chunkIds": chunkIDs})
	if err != nil {
		return "", fmt.Errorf("statement lookup failed: %w", err)
	}
	if len(rows) == 0 {
		return "", nil
	}

	values := make([]string, 0, len(rows))
	byValue := make(map[string]string, len(rows))
	for _, row := range rows {
		value := row.StringValue("value")
		if _, ok := byValue[value]; !ok {
			values = append(values, value)
		}
		byValue[value] = row.StringValue("statementId")
	}

	scores := p.scorer.ScoreValues(values, []string{query.Query})

	best := ""
	bestScore := -1.0
	for _, value := range values {
		if score := scores[value]; score > bestScore {
			best, bestScore = value, score
		}
	}
	p.logger.Debug("top statement selected", "statement", best, "score", bestScore)
	return byValue[best], nil
}

func scoredEntitiesFromRows(rows []graph.Row) []types.ScoredEntity {
	entities := make([]types.ScoredEntity, 0, len(rows))
	for _, row := range rows {
		entities = append(entities, types.ScoredEntity{
			Entity: types.Entity{
				EntityID:       row.StringValue("entityId"),
				Value:          row.StringValue("value"),
				Classification: row.StringValue("class"),
			},
			Score: row.FloatValue("score"),
		})
	}
	return entities
}
