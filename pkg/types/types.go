package types

import "strings"

// Entity is a named concept extracted from text and stored in the graph.
// Immutable once fetched.
type Entity struct {
	EntityID       string `json:"entityId"`
	Value          string `json:"value"`
	Classification string `json:"classification,omitempty"`
}

// ScoredEntity wraps an Entity with a structural relevance score derived
// from the graph and a query-relevance score assigned by reranking.
// RerankingScore is zero until a reranker has run.
type ScoredEntity struct {
	Entity         Entity  `json:"entity"`
	Score          float64 `json:"score"`
	RerankingScore float64 `json:"rerankingScore"`
}

// Token returns the lowercase reranking token for the entity, combining
// its value and classification.
func (e *ScoredEntity) Token() string {
	return strings.ToLower(e.Entity.Value) + " (" + strings.ToLower(e.Entity.Classification) + ")"
}

// SourceInfo identifies the source a chunk was extracted from.
type SourceInfo struct {
	SourceID string            `json:"sourceId"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Chunk is a unit of source text with an associated embedding vector.
type Chunk struct {
	ChunkID string     `json:"chunkId"`
	Value   string     `json:"value,omitempty"`
	Source  SourceInfo `json:"source,omitzero"`
}

// SearchType records which retrieval stage produced a chunk match.
type SearchType string

const (
	SearchTypeCosine SearchType = "cosine_similarity"
	SearchTypeBeam   SearchType = "beam_search"
)

// ChunkMatch is a chunk identifier surfaced by a retriever, together
// with retrieval provenance. Text and source data are populated by the
// fan-out retriever's batch fetch, not by the individual retrievers.
type ChunkMatch struct {
	ChunkID    string     `json:"chunkId"`
	Score      float64    `json:"score"`
	SearchType SearchType `json:"searchType"`

	// Depth and Path are set for beam-search matches only.
	Depth int      `json:"depth,omitempty"`
	Path  []string `json:"path,omitempty"`

	Chunk  *Chunk `json:"chunk,omitempty"`
	Source string `json:"-"`
}

// QueryBundle carries a query string together with its embedding.
type QueryBundle struct {
	Query     string
	Embedding []float32
}

// Context is an ordered chain of entities from a context-tree root to a
// leaf, representing one multi-hop relevance explanation for a query.
// Never mutated after assembly.
type Context struct {
	Entities []ScoredEntity `json:"entities"`
}

// Values returns the lowercase entity values of the chain in order.
func (c Context) Values() []string {
	values := make([]string, len(c.Entities))
	for i, e := range c.Entities {
		values[i] = strings.ToLower(e.Entity.Value)
	}
	return values
}
