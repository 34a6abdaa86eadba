package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphweave/graphweave/pkg/config"
	"github.com/graphweave/graphweave/pkg/types"
)

type noopRetriever struct{}

func (noopRetriever) Retrieve(ctx context.Context, query string) ([]types.ChunkMatch, error) {
	return nil, nil
}

func (noopRetriever) EntityContexts(ctx context.Context, query string, keywords []string) ([]types.Context, error) {
	return nil, nil
}

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.Mode = gin.TestMode

	s := New(cfg, noopRetriever{})
	s.Setup()
	return s
}

func TestServerRoutes(t *testing.T) {
	s := testServer(t)

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodPost, "/api/v1/retrieve", `{"query":"q"}`, http.StatusOK},
		{http.MethodPost, "/api/v1/contexts", `{"query":"q"}`, http.StatusOK},
		{http.MethodGet, "/api/v1/retrieve", "", http.StatusNotFound},
		{http.MethodGet, "/nope", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			s.Router().ServeHTTP(w, req)
			require.Equal(t, tt.want, w.Code)
		})
	}
}

func TestServerCORSPreflight(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/retrieve", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
