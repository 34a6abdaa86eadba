package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphweave/graphweave/pkg/server/dto"
	"github.com/graphweave/graphweave/pkg/types"
)

type mockRetriever struct {
	matches  []types.ChunkMatch
	contexts []types.Context
	err      error

	lastQuery    string
	lastKeywords []string
}

func (m *mockRetriever) Retrieve(ctx context.Context, query string) ([]types.ChunkMatch, error) {
	m.lastQuery = query
	return m.matches, m.err
}

func (m *mockRetriever) EntityContexts(ctx context.Context, query string, keywords []string) ([]types.Context, error) {
	m.lastQuery = query
	m.lastKeywords = keywords
	return m.contexts, m.err
}

func performRequest(handler gin.HandlerFunc, method, path string, body any) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Handle(method, path, handler)

	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRetrieveReturnsMatches(t *testing.T) {
	retriever := &mockRetriever{matches: []types.ChunkMatch{
		{
			ChunkID:    "c1",
			Score:      0.92,
			SearchType: types.SearchTypeCosine,
			Source:     "s1",
			Chunk:      &types.Chunk{ChunkID: "c1", Value: "chunk text"},
		},
		{ChunkID: "c2", Score: 0.41, SearchType: types.SearchTypeBeam},
	}}
	handler := NewRetrieveHandler(retriever)

	w := performRequest(handler.Retrieve, http.MethodPost, "/retrieve",
		dto.RetrieveRequest{Query: "what happened in 1939"})

	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.RetrieveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, "what happened in 1939", resp.Query)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "c1", resp.Results[0].ChunkID)
	assert.Equal(t, "chunk text", resp.Results[0].Text)
	assert.Equal(t, "s1", resp.Results[0].SourceID)
	assert.Equal(t, string(types.SearchTypeBeam), resp.Results[1].SearchType)
	assert.Equal(t, "what happened in 1939", retriever.lastQuery)
}

func TestRetrieveTruncatesToMaxResults(t *testing.T) {
	retriever := &mockRetriever{matches: []types.ChunkMatch{
		{ChunkID: "c1", Score: 0.9},
		{ChunkID: "c2", Score: 0.8},
		{ChunkID: "c3", Score: 0.7},
	}}
	handler := NewRetrieveHandler(retriever)

	w := performRequest(handler.Retrieve, http.MethodPost, "/retrieve",
		dto.RetrieveRequest{Query: "q", MaxResults: 2})

	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.RetrieveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "c1", resp.Results[0].ChunkID)
	assert.Equal(t, "c2", resp.Results[1].ChunkID)
}

func TestRetrieveRejectsEmptyQuery(t *testing.T) {
	handler := NewRetrieveHandler(&mockRetriever{})

	for _, body := range []any{
		dto.RetrieveRequest{Query: "   "},
		dto.RetrieveRequest{},
	} {
		w := performRequest(handler.Retrieve, http.MethodPost, "/retrieve", body)
		require.Equal(t, http.StatusBadRequest, w.Code)

		var resp dto.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "invalid_request", resp.Error)
	}
}

func TestRetrieveReportsBackendFailure(t *testing.T) {
	handler := NewRetrieveHandler(&mockRetriever{err: errors.New("graph unavailable")})

	w := performRequest(handler.Retrieve, http.MethodPost, "/retrieve",
		dto.RetrieveRequest{Query: "q"})

	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "retrieve_failed", resp.Error)
	assert.Contains(t, resp.Message, "graph unavailable")
}

func TestContextsReturnsEntityChains(t *testing.T) {
	retriever := &mockRetriever{contexts: []types.Context{
		{Entities: []types.ScoredEntity{
			{Entity: types.Entity{EntityID: "e1", Value: "Alpha", Classification: "topic"}, Score: 10, RerankingScore: 0.8},
			{Entity: types.Entity{EntityID: "e2", Value: "Beta", Classification: "topic"}, Score: 6},
		}},
	}}
	handler := NewRetrieveHandler(retriever)

	w := performRequest(handler.Contexts, http.MethodPost, "/contexts",
		dto.ContextsRequest{Query: "alpha", Keywords: []string{"beta"}})

	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.ContextsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Contexts, 1)
	require.Len(t, resp.Contexts[0], 2)
	assert.Equal(t, "Alpha", resp.Contexts[0][0].Value)
	assert.Equal(t, 0.8, resp.Contexts[0][0].RerankingScore)
	assert.Equal(t, []string{"beta"}, retriever.lastKeywords)
}

func TestContextsReportsBackendFailure(t *testing.T) {
	handler := NewRetrieveHandler(&mockRetriever{err: errors.New("store down")})

	w := performRequest(handler.Contexts, http.MethodPost, "/contexts",
		dto.ContextsRequest{Query: "q"})

	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "contexts_failed", resp.Error)
}

func TestHealthCheck(t *testing.T) {
	handler := NewHealthHandler()

	w := performRequest(handler.HealthCheck, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "graphweave", resp.Service)
}
