package retrieval

import (
	"context"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sony/gobreaker"
)

// EmbeddingSource is the external lookup the cache falls back to on a
// miss. vector.Index satisfies it.
type EmbeddingSource interface {
	GetEmbeddings(ctx context.Context, ids []string) (map[string][]float32, error)
}

// RetryConfig controls the bounded backoff applied to embedding fetches.
type RetryConfig struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the standard fetch retry policy: three
// attempts with exponential backoff between 2s and 10s.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      2 * time.Second,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// EmbeddingCache is a process-wide cache of chunk embeddings shared by
// all retrievers serving a query. It only grows unless a maximum entry
// count is configured, in which case least-recently-used entries are
// evicted under the same GetEmbeddings contract.
//
// Reads take a shared lock; external fetches run without any lock and
// only the merge of newly fetched vectors is serialized.
type EmbeddingCache struct {
	mu      sync.RWMutex
	entries map[string][]float32
	bounded *lru.Cache[string, []float32]

	source  EmbeddingSource
	retry   *RetryConfig
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// EmbeddingCacheOption configures an EmbeddingCache.
type EmbeddingCacheOption func(*EmbeddingCache)

// WithRetryConfig overrides the fetch retry policy.
func WithRetryConfig(config *RetryConfig) EmbeddingCacheOption {
	return func(c *EmbeddingCache) {
		if config != nil {
			c.retry = config
		}
	}
}

// WithLogger sets the logger used to report fetch degradation.
func WithLogger(logger *slog.Logger) EmbeddingCacheOption {
	return func(c *EmbeddingCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMaxEntries bounds the cache to n entries with LRU eviction.
func WithMaxEntries(n int) EmbeddingCacheOption {
	return func(c *EmbeddingCache) {
		if n > 0 {
			bounded, err := lru.New[string, []float32](n)
			if err == nil {
				c.bounded = bounded
				c.entries = nil
			}
		}
	}
}

// WithCircuitBreaker wraps external fetches in a circuit breaker so a
// persistently failing vector store fails fast instead of burning the
// full retry budget on every call. Zero values fall back to 5
// consecutive failures and a 30 second open interval.
func WithCircuitBreaker(name string, consecutiveFailures uint32, timeout time.Duration) EmbeddingCacheOption {
	if consecutiveFailures == 0 {
		consecutiveFailures = 5
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return func(c *EmbeddingCache) {
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= consecutiveFailures
			},
		})
	}
}

// NewEmbeddingCache creates a cache backed by the given source.
func NewEmbeddingCache(source EmbeddingSource, opts ...EmbeddingCacheOption) *EmbeddingCache {
	cache := &EmbeddingCache{
		entries: make(map[string][]float32),
		source:  source,
		retry:   DefaultRetryConfig(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(cache)
	}
	return cache
}

// GetEmbeddings returns the embeddings for the given chunk ids, fetching
// misses from the source in one batch. When the fetch fails after all
// retries the call does not fail: it returns the subset that was already
// cached and logs the degradation. Callers must tolerate a result smaller
// than the requested id set.
func (c *EmbeddingCache) GetEmbeddings(ctx context.Context, chunkIDs []string) map[string][]float32 {
	cached := make(map[string][]float32, len(chunkIDs))
	var missing []string

	c.mu.RLock()
	for _, id := range chunkIDs {
		if embedding, ok := c.lookup(id); ok {
			cached[id] = embedding
		} else {
			missing = append(missing, id)
		}
	}
	c.mu.RUnlock()

	if len(missing) == 0 {
		return cached
	}

	fetched, err := c.fetchWithRetry(ctx, missing)
	if err != nil {
		c.logger.Error("failed to fetch embeddings after retries", "error", err)
		c.logger.Warn("returning cached embeddings only",
			"cached", len(cached), "requested", len(chunkIDs))
		return cached
	}

	c.mu.Lock()
	for id, embedding := range fetched {
		c.store(id, embedding)
		cached[id] = embedding
	}
	c.mu.Unlock()

	return cached
}

// Len returns the current number of cached embeddings.
func (c *EmbeddingCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.bounded != nil {
		return c.bounded.Len()
	}
	return len(c.entries)
}

// lookup and store require the caller to hold the appropriate lock on
// the entries map; the bounded cache has its own internal locking.
func (c *EmbeddingCache) lookup(id string) ([]float32, bool) {
	if c.bounded != nil {
		return c.bounded.Get(id)
	}
	embedding, ok := c.entries[id]
	return embedding, ok
}

func (c *EmbeddingCache) store(id string, embedding []float32) {
	if c.bounded != nil {
		c.bounded.Add(id, embedding)
		return
	}
	c.entries[id] = embedding
}

func (c *EmbeddingCache) fetchWithRetry(ctx context.Context, ids []string) (map[string][]float32, error) {
	var lastErr error

	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.backoffDelay(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		fetched, err := c.fetch(ctx, ids)
		if err == nil {
			return fetched, nil
		}
		lastErr = err
		c.logger.Debug("embedding fetch attempt failed",
			"attempt", attempt+1, "ids", len(ids), "error", err)
	}

	return nil, lastErr
}

func (c *EmbeddingCache) fetch(ctx context.Context, ids []string) (map[string][]float32, error) {
	if c.breaker == nil {
		return c.source.GetEmbeddings(ctx, ids)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.source.GetEmbeddings(ctx, ids)
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string][]float32), nil
}

func (c *EmbeddingCache) backoffDelay(attempt int) time.Duration {
	delay := c.retry.InitialDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * c.retry.BackoffMultiplier)
	}
	if delay > c.retry.MaxDelay {
		delay = c.retry.MaxDelay
	}
	return delay
}
