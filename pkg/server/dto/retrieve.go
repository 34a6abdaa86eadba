package dto

// RetrieveRequest is the payload for POST /api/v1/retrieve
type RetrieveRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
}

// ChunkResult is a single retrieved chunk
type ChunkResult struct {
	ChunkID    string  `json:"chunk_id"`
	Score      float64 `json:"score"`
	SearchType string  `json:"search_type"`
	SourceID   string  `json:"source_id,omitempty"`
	Text       string  `json:"text,omitempty"`
}

// RetrieveResponse is the response for POST /api/v1/retrieve
type RetrieveResponse struct {
	RequestID string        `json:"request_id"`
	Query     string        `json:"query"`
	Results   []ChunkResult `json:"results"`
}

// ContextsRequest is the payload for POST /api/v1/contexts
type ContextsRequest struct {
	Query    string   `json:"query"`
	Keywords []string `json:"keywords,omitempty"`
}

// EntityResult is a single entity within a context chain
type EntityResult struct {
	EntityID       string  `json:"entity_id"`
	Value          string  `json:"value"`
	Classification string  `json:"classification,omitempty"`
	Score          float64 `json:"score"`
	RerankingScore float64 `json:"reranking_score"`
}

// ContextsResponse is the response for POST /api/v1/contexts
type ContextsResponse struct {
	RequestID string           `json:"request_id"`
	Query     string           `json:"query"`
	Contexts  [][]EntityResult `json:"contexts"`
}
