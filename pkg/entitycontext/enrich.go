package entitycontext

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/graphweave/graphweave/pkg/graph"
	"github.com/graphweave/graphweave/pkg/types"
	"github.com/graphweave/graphweave/pkg/vector"
)

const statementEntityValuesQuery = `
MATCH (statement:Statement)<-[:SUPPORTS]-(fact)<-[:SUBJECT|OBJECT]-(entity:Entity)
WHERE statement.statementId IN $statementIds
RETURN DISTINCT entity.value AS value`

// QueryEnricher appends to the query the entity names of the statement
// that best matches it, widening recall for underspecified queries.
// Disabled enrichers pass the query through untouched.
type QueryEnricher struct {
	store   graph.Store
	index   vector.Index
	scorer  Scorer
	enabled bool
	logger  *slog.Logger
}

// NewQueryEnricher creates an enricher over the given stores.
func NewQueryEnricher(store graph.Store, index vector.Index, enabled bool, logger *slog.Logger) (*QueryEnricher, error) {
	if store == nil || index == nil {
		return nil, fmt.Errorf("query enricher requires a graph store and a vector index")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryEnricher{
		store:   store,
		index:   index,
		scorer:  TFIDFScorer{},
		enabled: enabled,
		logger:  logger,
	}, nil
}

// EnrichQuery returns the query extended with related entity names in
// square brackets, or the original query when enrichment is disabled,
// no statement matches, or every entity already appears in the query.
// The returned bundle carries no embedding; callers re-embed the
// enriched text.
func (e *QueryEnricher) EnrichQuery(ctx context.Context, query types.QueryBundle) (types.QueryBundle, error) {
	if !e.enabled {
		return query, nil
	}

	statementID, err := e.topStatementID(ctx, query)
	if err != nil {
		return types.QueryBundle{}, err
	}
	if statementID == "" {
		e.logger.Debug("no statements found, returning original query")
		return query, nil
	}

	rows, err := e.store.ExecuteQuery(ctx, statementEntityValuesQuery, map[string]any{
		"statementIds": []string{statementID},
	})
	if err != nil {
		return types.QueryBundle{}, fmt.Errorf("statement entity lookup failed: %w", err)
	}

	queryLower := strings.ToLower(query.Query)
	var novel []string
	for _, row := range rows {
		value := row.StringValue("value")
		if value == "" || strings.Contains(queryLower, strings.ToLower(value)) {
			continue
		}
		novel = append(novel, value)
	}

	if len(novel) == 0 {
		e.logger.Debug("no new entities found, returning original query")
		return query, nil
	}

	enriched := fmt.Sprintf("%s [%s]", query.Query, strings.Join(novel, " "))
	e.logger.Debug("enriched query", "query", enriched)
	return types.QueryBundle{Query: enriched}, nil
}

func (e *QueryEnricher) topStatementID(ctx context.Context, query types.QueryBundle) (string, error) {
	matches, err := e.index.TopK(ctx, query, 1)
	if err != nil {
		return "", fmt.Errorf("vector lookup failed: %w", err)
	}
	if len(matches) == 0 {
		return "", nil
	}

	rows, err := e.store.ExecuteQuery(ctx, statementsForChunksQuery, map[string]any{
		"chunkIds": []string{matches[0].ChunkID},
	})
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

	scores := e.scorer.ScoreValues(values, []string{query.Query})

	best := ""
	bestScore := -1.0
	for _, value := range values {
		if score := scores[value]; score > bestScore {
			best, bestScore = value, score
		}
	}
	return byValue[best], nil
}
