// Package embedder provides text embedding clients used to turn queries
// into dense vectors before retrieval.
package embedder

import "context"

// Client generates embeddings for text.
type Client interface {
	// Embed generates embeddings for the given texts, one per input.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle generates an embedding for a single text.
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the dimensionality of produced embeddings.
	Dimensions() int

	// Close cleans up any resources.
	Close() error
}

// Config holds common embedder settings.
type Config struct {
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
	BatchSize  int
}
