package retrieval

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockEmbeddingSource is a scriptable EmbeddingSource that counts calls.
type mockEmbeddingSource struct {
	mu         sync.Mutex
	embeddings map[string][]float32
	failures   int
	calls      int
}

func (m *mockEmbeddingSource) GetEmbeddings(ctx context.Context, ids []string) (map[string][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failures > 0 {
		m.failures--
		return nil, fmt.Errorf("store unavailable")
	}
	result := make(map[string][]float32, len(ids))
	for _, id := range ids {
		if embedding, ok := m.embeddings[id]; ok {
			result[id] = embedding
		}
	}
	return result, nil
}

func (m *mockEmbeddingSource) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// fastRetry keeps test backoff delays negligible.
func fastRetry(attempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       attempts,
		InitialDelay:      time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestEmbeddingCacheSecondCallHitsCacheOnly(t *testing.T) {
	source := &mockEmbeddingSource{
		embeddings: map[string][]float32{
			"c1": {1, 0},
			"c2": {0, 1},
		},
	}
	cache := NewEmbeddingCache(source, WithRetryConfig(fastRetry(3)))

	first := cache.GetEmbeddings(context.Background(), []string{"c1", "c2"})
	require.Len(t, first, 2)
	assert.Equal(t, 1, source.callCount())

	second := cache.GetEmbeddings(context.Background(), []string{"c1", "c2"})
	require.Len(t, second, 2)
	assert.Equal(t, 1, source.callCount(), "fully cached request must not hit the source")
	assert.Equal(t, 2, cache.Len())
}

func TestEmbeddingCacheFetchesOnlyMisses(t *testing.T) {
	source := &mockEmbeddingSource{
		embeddings: map[string][]float32{
			"c1": {1, 0},
			"c2": {0, 1},
			"c3": {1, 1},
		},
	}
	cache := NewEmbeddingCache(source, WithRetryConfig(fastRetry(3)))

	cache.GetEmbeddings(context.Background(), []string{"c1"})
	result := cache.GetEmbeddings(context.Background(), []string{"c1", "c2", "c3"})

	assert.Len(t, result, 3)
	assert.Equal(t, 2, source.callCount())
}

func TestEmbeddingCacheDegradesToCachedSubset(t *testing.T) {
	source := &mockEmbeddingSource{
		embeddings: map[string][]float32{
			"c1": {1, 0},
			"c2": {0, 1},
		},
	}
	cache := NewEmbeddingCache(source, WithRetryConfig(fastRetry(2)))

	// Warm the cache with c1, then make every fetch fail.
	warm := cache.GetEmbeddings(context.Background(), []string{"c1"})
	require.Len(t, warm, 1)
	source.mu.Lock()
	source.failures = 100
	source.mu.Unlock()

	result := cache.GetEmbeddings(context.Background(), []string{"c1", "c2"})

	require.Len(t, result, 1, "degraded call returns the cached subset, not an error")
	assert.Contains(t, result, "c1")
	assert.NotContains(t, result, "c2")
}

func TestEmbeddingCacheRetriesUntilSuccess(t *testing.T) {
	source := &mockEmbeddingSource{
		embeddings: map[string][]float32{"c1": {1, 0}},
		failures:   2,
	}
	cache := NewEmbeddingCache(source, WithRetryConfig(fastRetry(3)))

	result := cache.GetEmbeddings(context.Background(), []string{"c1"})

	require.Len(t, result, 1)
	assert.Equal(t, 3, source.callCount(), "two failures then one success")
}

func TestEmbeddingCacheMissingIDsAbsentFromResult(t *testing.T) {
	source := &mockEmbeddingSource{
		embeddings: map[string][]float32{"c1": {1, 0}},
	}
	cache := NewEmbeddingCache(source, WithRetryConfig(fastRetry(1)))

	result := cache.GetEmbeddings(context.Background(), []string{"c1", "unknown"})

	assert.Len(t, result, 1)
	assert.NotContains(t, result, "unknown")
}

func TestEmbeddingCacheBounded(t *testing.T) {
	source := &mockEmbeddingSource{
		embeddings: map[string][]float32{
			"c1": {1, 0},
			"c2": {0, 1},
			"c3": {1, 1},
		},
	}
	cache := NewEmbeddingCache(source, WithRetryConfig(fastRetry(1)), WithMaxEntries(2))

	cache.GetEmbeddings(context.Background(), []string{"c1", "c2", "c3"})

	assert.Equal(t, 2, cache.Len(), "bounded cache evicts down to capacity")

	// The contract is unchanged: evicted ids are simply refetched.
	result := cache.GetEmbeddings(context.Background(), []string{"c1", "c2", "c3"})
	assert.Len(t, result, 3)
}

func TestEmbeddingCacheConcurrentAccess(t *testing.T) {
	embeddings := make(map[string][]float32)
	var ids []string
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("c%d", i)
		embeddings[id] = []float32{float32(i), 1}
		ids = append(ids, id)
	}
	source := &mockEmbeddingSource{embeddings: embeddings}
	cache := NewEmbeddingCache(source, WithRetryConfig(fastRetry(1)))

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := cache.GetEmbeddings(context.Background(), ids)
			assert.Len(t, result, len(ids))
		}()
	}
	wg.Wait()

	assert.Equal(t, len(ids), cache.Len())
}

func TestEmbeddingCacheCircuitBreakerOpensAfterFailures(t *testing.T) {
	source := &mockEmbeddingSource{failures: 100}
	cache := NewEmbeddingCache(source,
		WithRetryConfig(fastRetry(1)),
		WithCircuitBreaker("test", 2, time.Minute))

	for i := 0; i < 2; i++ {
		result := cache.GetEmbeddings(context.Background(), []string{"c1"})
		assert.Empty(t, result)
	}
	require.Equal(t, 2, source.callCount())

	// The breaker is open now; further calls fail fast without
	// reaching the source.
	result := cache.GetEmbeddings(context.Background(), []string{"c1"})
	assert.Empty(t, result)
	assert.Equal(t, 2, source.callCount())
}
