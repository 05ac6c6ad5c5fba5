package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solenne/docent/ai/mock"
)

func newTestCache(t *testing.T, opts ...Option) (*Cache, *mock.MockEmbedder) {
	t.Helper()

	embedder := mock.NewMockEmbedder()
	c, err := Open(":memory:", embedder, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, embedder
}

// fixedEmbedder maps known texts to fixed vectors so tests control the
// exact similarity between queries. Unknown texts get a default
// direction orthogonal to nothing in particular.
func fixedEmbedder(vectors map[string][]float32) *mock.MockEmbedder {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(_ context.Context, text string) ([]float32, error) {
		if v, ok := vectors[text]; ok {
			return v, nil
		}
		return []float32{1, 0, 0, 0}, nil
	}
	return embedder
}

func TestOpenValidation(t *testing.T) {
	embedder := mock.NewMockEmbedder()

	t.Run("empty path", func(t *testing.T) {
		_, err := Open("", embedder)
		assert.ErrorIs(t, err, ErrPathRequired)
	})

	t.Run("nil embedder", func(t *testing.T) {
		_, err := Open(":memory:", nil)
		assert.ErrorIs(t, err, ErrEmbedderRequired)
	})

	t.Run("invalid threshold", func(t *testing.T) {
		_, err := Open(":memory:", embedder, WithThreshold(1.5))
		assert.Error(t, err)
	})

	t.Run("invalid ttl", func(t *testing.T) {
		_, err := Open(":memory:", embedder, WithTTL(-time.Hour))
		assert.Error(t, err)
	})

	t.Run("invalid max entries", func(t *testing.T) {
		_, err := Open(":memory:", embedder, WithMaxEntries(0))
		assert.Error(t, err)
	})
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "cache.db")

	c, err := Open(path, mock.NewMockEmbedder())
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set(context.Background(), "hello", "world", nil))
}

func TestSetThenGet(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "When was Givaudan founded?", "Givaudan was founded in 1895.", nil))

	hit, err := c.Get(ctx, "When was Givaudan founded?")
	require.NoError(t, err)
	require.NotNil(t, hit)

	assert.Equal(t, "Givaudan was founded in 1895.", hit.Answer)
	assert.InDelta(t, 1.0, hit.Similarity, 1e-6)
	assert.Equal(t, "When was Givaudan founded?", hit.Entry.Query)
	assert.Equal(t, 1, hit.Entry.AccessCount)
	assert.Equal(t, DefaultSystemType, hit.Entry.SystemType)
}

func TestGetNearDuplicateAboveThreshold(t *testing.T) {
	// cos(stored, paraphrase) = 0.9, above the 0.88 default.
	embedder := fixedEmbedder(map[string][]float32{
		"original":   {1, 0, 0, 0},
		"paraphrase": {0.9, 0.43589, 0, 0},
	})
	c, err := Open(":memory:", embedder)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "original", "the answer", nil))

	hit, err := c.Get(ctx, "paraphrase")
	require.NoError(t, err)
	require.NotNil(t, hit)

	assert.Equal(t, "the answer", hit.Answer)
	assert.InDelta(t, 0.9, hit.Similarity, 1e-3)
	assert.Equal(t, "original", hit.Entry.Query)
}

func TestGetMissBelowThreshold(t *testing.T) {
	// cos(stored, distant) = 0.8, below the 0.88 default.
	embedder := fixedEmbedder(map[string][]float32{
		"original": {1, 0, 0, 0},
		"distant":  {0.8, 0.6, 0, 0},
	})
	c, err := Open(":memory:", embedder)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "original", "the answer", nil))

	hit, err := c.Get(ctx, "distant")
	require.NoError(t, err)
	assert.Nil(t, hit)
}

func TestGetEmptyCacheMisses(t *testing.T) {
	c, _ := newTestCache(t)

	hit, err := c.Get(context.Background(), "anything")
	require.NoError(t, err)
	assert.Nil(t, hit)
}

func TestExpiredEntriesNeverReturned(t *testing.T) {
	c, _ := newTestCache(t, WithTTL(30*time.Millisecond))
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short lived", "stale answer", nil))
	time.Sleep(50 * time.Millisecond)

	// Identical query, but the entry is past its TTL.
	hit, err := c.Get(ctx, "short lived")
	require.NoError(t, err)
	assert.Nil(t, hit)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.ActiveEntries)
}

func TestEvictionKeepsMostRecentlyAccessed(t *testing.T) {
	embedder := fixedEmbedder(map[string][]float32{
		"q1": {1, 0, 0, 0},
		"q2": {0, 1, 0, 0},
		"q3": {0, 0, 1, 0},
		"q4": {0, 0, 0, 1},
	})
	c, err := Open(":memory:", embedder, WithMaxEntries(3))
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	for _, q := range []string{"q1", "q2", "q3", "q4"} {
		require.NoError(t, c.Set(ctx, q, "answer for "+q, nil))
		// Millisecond timestamps need a gap to order deterministically.
		time.Sleep(2 * time.Millisecond)
	}

	// q1 was the least recently accessed and must be gone.
	hit, err := c.Get(ctx, "q1")
	require.NoError(t, err)
	assert.Nil(t, hit)

	hit, err = c.Get(ctx, "q2")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "answer for q2", hit.Answer)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.ActiveEntries)
	assert.Equal(t, int64(1), stats.Evictions)
}

func TestGetTouchProtectsFromEviction(t *testing.T) {
	embedder := fixedEmbedder(map[string][]float32{
		"q1": {1, 0, 0, 0},
		"q2": {0, 1, 0, 0},
		"q3": {0, 0, 1, 0},
	})
	c, err := Open(":memory:", embedder, WithMaxEntries(2))
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "q1", "a1", nil))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, c.Set(ctx, "q2", "a2", nil))
	time.Sleep(2 * time.Millisecond)

	// Touch q1 so q2 becomes the eviction candidate.
	hit, err := c.Get(ctx, "q1")
	require.NoError(t, err)
	require.NotNil(t, hit)
	time.Sleep(2 * time.Millisecond)

	require.NoError(t, c.Set(ctx, "q3", "a3", nil))

	hit, err = c.Get(ctx, "q2")
	require.NoError(t, err)
	assert.Nil(t, hit)

	hit, err = c.Get(ctx, "q1")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "a1", hit.Answer)
}

func TestTieBreakPrefersMostRecentlyAccessed(t *testing.T) {
	// Two entries share the exact same embedding, so both score 1.0
	// against the query. The most recently accessed one must win.
	same := []float32{0.6, 0.8, 0, 0}
	embedder := fixedEmbedder(map[string][]float32{
		"first":  same,
		"second": same,
		"query":  same,
	})
	c, err := Open(":memory:", embedder)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "first", "first answer", nil))
	time.Sleep(3 * time.Millisecond)
	require.NoError(t, c.Set(ctx, "second", "second answer", nil))

	hit, err := c.Get(ctx, "query")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "second answer", hit.Answer)
}

func TestMetadataRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	metadata := map[string]string{"model": "gemma3:4b", "sources": "corpus"}
	require.NoError(t, c.Set(ctx, "with metadata", "answer", metadata))

	hit, err := c.Get(ctx, "with metadata")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, metadata, hit.Entry.Metadata)
}

func TestStatsCounters(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "known", "answer", nil))

	_, err := c.Get(ctx, "known")
	require.NoError(t, err)
	_, err = c.Get(ctx, "completely unrelated question about weather")
	require.NoError(t, err)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 50.0, stats.HitRate, 1e-6)
	assert.Equal(t, 1, stats.ActiveEntries)
	assert.InDelta(t, DefaultThreshold, stats.Threshold, 1e-9)
}

func TestClear(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "q1", "a1", nil))
	require.NoError(t, c.Set(ctx, "q2", "a2", nil))
	_, err := c.Get(ctx, "q1")
	require.NoError(t, err)

	require.NoError(t, c.Clear(ctx))

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.ActiveEntries)
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(0), stats.Misses)

	hit, err := c.Get(ctx, "q1")
	require.NoError(t, err)
	assert.Nil(t, hit)
}

func TestEmbedderFailureDegradesToMiss(t *testing.T) {
	c, embedder := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "stored", "answer", nil))

	embedder.EmbedTextFunc = func(context.Context, string) ([]float32, error) {
		return nil, errors.New("embedding service down")
	}

	hit, err := c.Get(ctx, "stored")
	require.NoError(t, err)
	assert.Nil(t, hit)

	// Writes do not degrade silently.
	err = c.Set(ctx, "new", "answer", nil)
	assert.Error(t, err)

	embedder.EmbedTextFunc = nil
	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestSystemTypePartition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	embedder := mock.NewMockEmbedder()

	agent, err := Open(path, embedder)
	require.NoError(t, err)
	defer agent.Close()

	web, err := Open(path, embedder, WithSystemType("web"))
	require.NoError(t, err)
	defer web.Close()

	ctx := context.Background()
	require.NoError(t, agent.Set(ctx, "shared question", "agent answer", nil))

	hit, err := web.Get(ctx, "shared question")
	require.NoError(t, err)
	assert.Nil(t, hit)

	hit, err = agent.Get(ctx, "shared question")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "agent answer", hit.Answer)
}

func TestClosedCache(t *testing.T) {
	c, _ := newTestCache(t)
	require.NoError(t, c.Close())

	ctx := context.Background()

	_, err := c.Get(ctx, "q")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, c.Set(ctx, "q", "a", nil), ErrClosed)
	_, err = c.Stats(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, c.Clear(ctx), ErrClosed)

	// Double close is fine.
	assert.NoError(t, c.Close())
}

func TestVectorBlobRoundTrip(t *testing.T) {
	original := []float32{0.25, -1.5, 3.14159, 0}

	decoded, err := decodeVector(encodeVector(original))
	require.NoError(t, err)
	assert.Equal(t, original, decoded)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
