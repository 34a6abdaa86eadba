// Package retrieval implements semantic-guided chunk retrieval: a shared
// embedding cache, cosine top-k scoring, beam-search graph expansion, and
// a fan-out retriever that merges, filters and orders the results of
// multiple retrieval strategies.
//
// Retrievers are cheap to construct and safe for concurrent use; the
// EmbeddingCache is the only component carrying cross-query state.
package retrieval
