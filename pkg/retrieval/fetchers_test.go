package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphweave/graphweave/pkg/graph"
)

// mockGraphStore returns scripted rows and records queries.
type mockGraphStore struct {
	rows    []graph.Row
	err     error
	queries []string
	params  []map[string]any
}

func (m *mockGraphStore) ExecuteQuery(ctx context.Context, query string, params map[string]any) ([]graph.Row, error) {
	m.queries = append(m.queries, query)
	m.params = append(m.params, params)
	return m.rows, m.err
}

func (m *mockGraphStore) Close(ctx context.Context) error { return nil }

func TestGraphChunkFetcherPreservesRequestedOrder(t *testing.T) {
	store := &mockGraphStore{rows: []graph.Row{
		{"chunkId": "c2", "value": "second", "sourceId": "src1", "metadata": map[string]any{"title": "doc"}},
		{"chunkId": "c1", "value": "first", "sourceId": "src1", "metadata": map[string]any{}},
	}}
	fetcher := NewGraphChunkFetcher(store)

	chunks, err := fetcher.GetChunks(context.Background(), []string{"c1", "c2", "unknown"})
	require.NoError(t, err)

	require.Len(t, chunks, 2, "unknown ids are omitted")
	assert.Equal(t, "c1", chunks[0].ChunkID)
	assert.Equal(t, "c2", chunks[1].ChunkID)
	assert.Equal(t, "doc", chunks[1].Source.Metadata["title"])
}

func TestGraphChunkFetcherEmptyInput(t *testing.T) {
	store := &mockGraphStore{}
	fetcher := NewGraphChunkFetcher(store)

	chunks, err := fetcher.GetChunks(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)
	assert.Empty(t, store.queries, "no query is issued for an empty id set")
}

func TestGraphNeighborFetcher(t *testing.T) {
	store := &mockGraphStore{rows: []graph.Row{
		{"chunkId": "n1"},
		{"chunkId": "n2"},
		{"chunkId": ""},
	}}
	fetcher := NewGraphNeighborFetcher(store)

	neighbors, err := fetcher.Neighbors(context.Background(), "c1")
	require.NoError(t, err)

	assert.Equal(t, []string{"n1", "n2"}, neighbors, "blank ids are dropped")
	require.Len(t, store.params, 1)
	assert.Equal(t, "c1", store.params[0]["chunkId"])
}
