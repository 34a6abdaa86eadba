package graphweave

import (
	"context"
	"fmt"

	"github.com/graphweave/graphweave/pkg/types"
)

// Retrieve runs the full retrieval pipeline for a query and returns
// ranked chunk matches grouped by source.
func (c *Client) Retrieve(ctx context.Context, query string) ([]types.ChunkMatch, error) {
	bundle, err := c.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	return c.fanOut.Retrieve(ctx, bundle)
}

// EntityContexts discovers seed entities for a query and assembles
// multi-hop entity context chains around them. Keywords widen entity
// discovery; they may be empty.
func (c *Client) EntityContexts(ctx context.Context, query string, keywords []string) ([]types.Context, error) {
	bundle, err := c.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	entities, err := c.seeds.Entities(ctx, bundle, keywords)
	if err != nil {
		return nil, fmt.Errorf("entity discovery failed: %w", err)
	}
	c.logger.Debug("discovered seed entities", "query", query, "entities", len(entities))

	return c.provider.EntityContexts(ctx, entities, bundle)
}

// EnrichQuery returns the query extended with entity names from the
// statement that best matches it. The original query is returned when
// enrichment is disabled or finds nothing new.
func (c *Client) EnrichQuery(ctx context.Context, query string) (string, error) {
	bundle, err := c.embedQuery(ctx, query)
	if err != nil {
		return "", err
	}

	enriched, err := c.enricher.EnrichQuery(ctx, bundle)
	if err != nil {
		return "", err
	}
	return enriched.Query, nil
}

func (c *Client) embedQuery(ctx context.Context, query string) (types.QueryBundle, error) {
	if c.embedder == nil {
		return types.QueryBundle{}, ErrNoEmbedder
	}
	embedding, err := c.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return types.QueryBundle{}, fmt.Errorf("embedding query: %w", err)
	}
	return types.QueryBundle{Query: query, Embedding: embedding}, nil
}
