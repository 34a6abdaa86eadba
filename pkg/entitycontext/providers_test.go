package entitycontext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphweave/graphweave/pkg/graph"
	"github.com/graphweave/graphweave/pkg/types"
)

// stubIndex returns canned matches keyed by the lookup query text.
type stubIndex struct {
	matches map[string][]types.ChunkMatch
	queries []string
}

func (s *stubIndex) TopK(ctx context.Context, query types.QueryBundle, k int) ([]types.ChunkMatch, error) {
	s.queries = append(s.queries, query.Query)
	matches := s.matches[query.Query]
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (s *stubIndex) GetEmbeddings(ctx context.Context, ids []string) (map[string][]float32, error) {
	return nil, nil
}

// stubEmbedder vends a fixed vector for any text.
type stubEmbedder struct {
	embedded []string
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := s.EmbedSingle(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (s *stubEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	s.embedded = append(s.embedded, text)
	return []float32{1, 0, 0}, nil
}

func (s *stubEmbedder) Dimensions() int { return 3 }

func (s *stubEmbedder) Close() error { return nil }

func TestVSSEntityProviderMergesQueryAndKeywordResults(t *testing.T) {
	query := types.QueryBundle{Query: "jazz history", Embedding: []float32{0, 1, 0}}

	index := &stubIndex{matches: map[string][]types.ChunkMatch{
		"jazz history": {{ChunkID: "c1", Score: 0.9}},
		"bebop":        {{ChunkID: "c2", Score: 0.8}},
	}}

	entitiesByChunk := map[string][]graph.Row{
		"c1": {
			{"entityId": "e1", "value": "Jazz", "class": "genre", "score": int64(9)},
			{"entityId": "e2", "value": "Blues", "class": "genre", "score": int64(4)},
		},
		"c2": {
			{"entityId": "e1", "value": "Jazz", "class": "genre", "score": int64(9)},
			{"entityId": "e3", "value": "Bebop", "class": "genre", "score": int64(7)},
		},
	}
	store := &dispatchStore{handlers: map[string]func(map[string]any) ([]graph.Row, error){
		"MENTIONED_IN": func(params map[string]any) ([]graph.Row, error) {
			chunkIDs := params["chunkIds"].([]string)
			var rows []graph.Row
			for _, id := range chunkIDs {
				rows = append(rows, entitiesByChunk[id]...)
			}
			return rows, nil
		},
	}}

	embed := &stubEmbedder{}
	provider, err := NewVSSEntityProvider(store, index, embed)
	require.NoError(t, err)

	entities, err := provider.Entities(context.Background(), query, []string{"bebop"})
	require.NoError(t, err)

	require.Len(t, entities, 3, "shared entity e1 is merged, not duplicated")
	ids := make(map[string]bool)
	for _, entity := range entities {
		ids[entity.Entity.EntityID] = true
	}
	assert.True(t, ids["e1"] && ids["e2"] && ids["e3"])

	assert.Equal(t, "e1", entities[0].Entity.EntityID,
		"equal reranking scores break on structural score")
	assert.Equal(t, "e2", entities[2].Entity.EntityID,
		"the entity unrelated to the query ranks last")
	assert.Equal(t, []string{"bebop"}, embed.embedded,
		"only the keyword lookup needs embedding")
	assert.Equal(t, []string{"jazz history", "bebop"}, index.queries)
}

func TestVSSEntityProviderNoMatches(t *testing.T) {
	index := &stubIndex{matches: map[string][]types.ChunkMatch{}}
	provider, err := NewVSSEntityProvider(&dispatchStore{}, index, &stubEmbedder{})
	require.NoError(t, err)

	entities, err := provider.Entities(context.Background(),
		types.QueryBundle{Query: "anything", Embedding: []float32{1}}, nil)
	require.NoError(t, err)
	assert.Empty(t, entities)
}

func TestVSSEntityProviderRequiresStores(t *testing.T) {
	_, err := NewVSSEntityProvider(nil, &stubIndex{}, nil)
	assert.Error(t, err)
	_, err = NewVSSEntityProvider(&dispatchStore{}, nil, nil)
	assert.Error(t, err)
}

func TestTopStatementEntityProviderPicksBestStatement(t *testing.T) {
	query := types.QueryBundle{Query: "where was the treaty signed", Embedding: []float32{1}}

	index := &stubIndex{matches: map[string][]types.ChunkMatch{
		query.Query: {{ChunkID: "c1", Score: 0.9}},
	}}

	store := &dispatchStore{handlers: map[string]func(map[string]any) ([]graph.Row, error){
		"statement.value AS value": func(params map[string]any) ([]graph.Row, error) {
			return []graph.Row{
				{"statementId": "s1", "value": "the harvest failed in spring"},
				{"statementId": "s2", "value": "the treaty was signed in paris"},
			}, nil
		},
		"SUPPORTS": func(params map[string]any) ([]graph.Row, error) {
			require.Equal(t, []string{"s2"}, params["statementIds"].([]string))
			return []graph.Row{
				{"entityId": "e1", "value": "Treaty of Paris", "class": "event", "score": int64(5)},
				{"entityId": "e2", "value": "Paris", "class": "place", "score": int64(3)},
			}, nil
		},
	}}

	provider, err := NewTopStatementEntityProvider(store, index, nil, nil)
	require.NoError(t, err)

	entities, err := provider.Entities(context.Background(), query, nil)
	require.NoError(t, err)

	require.Len(t, entities, 2)
	assert.Equal(t, "Treaty of Paris", entities[0].Entity.Value)
	assert.Equal(t, "Paris", entities[1].Entity.Value)
}

func TestTopStatementEntityProviderNoStatements(t *testing.T) {
	index := &stubIndex{matches: map[string][]types.ChunkMatch{
		"q": {{ChunkID: "c1", Score: 0.9}},
	}}
	store := &dispatchStore{handlers: map[string]func(map[string]any) ([]graph.Row, error){
		"statement.value AS value": func(params map[string]any) ([]graph.Row, error) {
			return nil, nil
		},
	}}

	provider, err := NewTopStatementEntityProvider(store, index, nil, nil)
	require.NoError(t, err)

	entities, err := provider.Entities(context.Background(),
		types.QueryBundle{Query: "q", Embedding: []float32{1}}, nil)
	require.NoError(t, err)
	assert.Empty(t, entities)
}
