package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/graphweave/graphweave/pkg/server/dto"
	"github.com/graphweave/graphweave/pkg/types"
)

// Retriever is the slice of the client the retrieve handler needs.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]types.ChunkMatch, error)
	EntityContexts(ctx context.Context, query string, keywords []string) ([]types.Context, error)
}

// RetrieveHandler handles retrieval requests
type RetrieveHandler struct {
	retriever Retriever
}

// NewRetrieveHandler creates a new retrieve handler
func NewRetrieveHandler(retriever Retriever) *RetrieveHandler {
	return &RetrieveHandler{retriever: retriever}
}

// Retrieve handles POST /api/v1/retrieve
func (h *RetrieveHandler) Retrieve(c *gin.Context) {
	var req dto.RetrieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: "query field is required and cannot be empty"})
		return
	}

	matches, err := h.retriever.Retrieve(c.Request.Context(), req.Query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "retrieve_failed", Message: err.Error()})
		return
	}

	if req.MaxResults > 0 && len(matches) > req.MaxResults {
		matches = matches[:req.MaxResults]
	}

	results := make([]dto.ChunkResult, len(matches))
	for i, match := range matches {
		result := dto.ChunkResult{
			ChunkID:    match.ChunkID,
			Score:      match.Score,
			SearchType: string(match.SearchType),
			SourceID:   match.Source,
		}
		if match.Chunk != nil {
			result.Text = match.Chunk.Value
		}
		results[i] = result
	}

	c.JSON(http.StatusOK, dto.RetrieveResponse{
		RequestID: uuid.NewString(),
		Query:     req.Query,
		Results:   results,
	})
}

// Contexts handles POST /api/v1/contexts
func (h *RetrieveHandler) Contexts(c *gin.Context) {
	var req dto.ContextsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: "query field is required and cannot be empty"})
		return
	}

	contexts, err := h.retriever.EntityContexts(c.Request.Context(), req.Query, req.Keywords)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "contexts_failed", Message: err.Error()})
		return
	}

	chains := make([][]dto.EntityResult, len(contexts))
	for i, context := range contexts {
		chain := make([]dto.EntityResult, len(context.Entities))
		for j, entity := range context.Entities {
			chain[j] = dto.EntityResult{
				EntityID:       entity.Entity.EntityID,
				Value:          entity.Entity.Value,
				Classification: entity.Entity.Classification,
				Score:          entity.Score,
				RerankingScore: entity.RerankingScore,
			}
		}
		chains[i] = chain
	}

	c.JSON(http.StatusOK, dto.ContextsResponse{
		RequestID: uuid.NewString(),
		Query:     req.Query,
		Contexts:  chains,
	})
}
