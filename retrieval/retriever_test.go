package retrieval

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/solenne/docent/ai/mock"
	"github.com/solenne/docent/core"
	"github.com/solenne/docent/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRetriever(t *testing.T) {
	chunkRepo, documentRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		documentRepo.Close()
		chunkRepo.Close()
		backend.Close()
	}()

	provider := mock.NewMockProvider()

	t.Run("valid configuration", func(t *testing.T) {
		retriever, err := NewRetriever(chunkRepo, provider)
		require.NoError(t, err)
		assert.NotNil(t, retriever)
	})

	t.Run("with custom options", func(t *testing.T) {
		retriever, err := NewRetriever(chunkRepo, provider,
			WithLogger(slog.Default()),
			WithAlpha(0.5),
			WithTopKRetrieve(20),
			WithTopKFinal(5),
			WithFastRerank(false),
			WithScorer(mock.NewMockScorer()),
		)
		require.NoError(t, err)
		assert.NotNil(t, retriever)
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		retriever, err := NewRetriever(chunkRepo, provider, WithLogger(nil))
		require.NoError(t, err)
		assert.NotNil(t, retriever)
	})

	t.Run("alpha out of range", func(t *testing.T) {
		_, err := NewRetriever(chunkRepo, provider, WithAlpha(1.5))
		assert.Error(t, err)
	})

	t.Run("non-positive retrieve depth", func(t *testing.T) {
		_, err := NewRetriever(chunkRepo, provider, WithTopKRetrieve(0))
		assert.Error(t, err)
	})

	t.Run("non-positive final depth", func(t *testing.T) {
		_, err := NewRetriever(chunkRepo, provider, WithTopKFinal(-1))
		assert.Error(t, err)
	})

	t.Run("nil chunk repository", func(t *testing.T) {
		_, err := NewRetriever(nil, provider)
		assert.Equal(t, ErrChunkRepositoryRequired, err)
	})

	t.Run("nil provider", func(t *testing.T) {
		_, err := NewRetriever(chunkRepo, nil)
		assert.Equal(t, ErrAIProviderRequired, err)
	})
}

func TestIndex(t *testing.T) {
	chunkRepo, documentRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		documentRepo.Close()
		chunkRepo.Close()
		backend.Close()
	}()

	ctx := context.Background()
	provider := mock.NewMockProvider()

	retriever, err := NewRetriever(chunkRepo, provider)
	require.NoError(t, err)

	t.Run("embeds chunks without vectors", func(t *testing.T) {
		chunks := []*core.Chunk{
			{Content: "Chunk needing an embedding", Source: "a.md"},
			{Content: "Another chunk needing one", Source: "a.md"},
		}

		err := retriever.Index(ctx, chunks...)
		require.NoError(t, err)

		for _, chunk := range chunks {
			stored, err := chunkRepo.GetChunk(ctx, chunk.Id)
			require.NoError(t, err)
			assert.NotEmpty(t, stored.Vector)
		}
	})

	t.Run("keeps vectors already present", func(t *testing.T) {
		chunk := &core.Chunk{
			Content: "Pre-embedded chunk",
			Vector:  []float32{0.25, 0.75},
		}

		err := retriever.Index(ctx, chunk)
		require.NoError(t, err)

		stored, err := chunkRepo.GetChunk(ctx, core.IDFromContent("Pre-embedded chunk"))
		require.NoError(t, err)
		assert.Equal(t, []float32{0.25, 0.75}, stored.Vector)
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		err := retriever.Index(ctx)
		require.NoError(t, err)
	})

	t.Run("embedder failure propagates", func(t *testing.T) {
		embedder := mock.NewMockEmbedder()
		embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
			return nil, assert.AnError
		}
		failing, err := NewRetriever(chunkRepo, mock.NewMockProviderWithServices(embedder, mock.NewMockCompleter()))
		require.NoError(t, err)

		err = failing.Index(ctx, &core.Chunk{Content: "never embedded"})
		assert.Error(t, err)
	})
}

func TestHybridSearch_EmptyIndex(t *testing.T) {
	chunkRepo, documentRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		documentRepo.Close()
		chunkRepo.Close()
		backend.Close()
	}()

	retriever, err := NewRetriever(chunkRepo, mock.NewMockProvider())
	require.NoError(t, err)

	results := retriever.HybridSearch(context.Background(), "anything at all", 5, DefaultAlpha)
	assert.Empty(t, results)
}

func TestHybridSearch_AlphaExtremes(t *testing.T) {
	chunkRepo, documentRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		documentRepo.Close()
		chunkRepo.Close()
		backend.Close()
	}()

	ctx := context.Background()

	// Chunk A is the dense favorite, chunk B the lexical favorite
	chunkA := &core.Chunk{Content: "alpha beta gamma", Vector: []float32{1.0, 0.0}}
	chunkB := &core.Chunk{Content: "delta epsilon zeta", Vector: []float32{0.6, 0.8}}
	_, err = chunkRepo.AddChunks(ctx, chunkA, chunkB)
	require.NoError(t, err)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1.0, 0.0}, nil
	}
	provider := mock.NewMockProviderWithServices(embedder, mock.NewMockCompleter())

	retriever, err := NewRetriever(chunkRepo, provider)
	require.NoError(t, err)

	query := "delta epsilon"

	t.Run("alpha one ranks purely by dense similarity", func(t *testing.T) {
		results := retriever.HybridSearch(ctx, query, 2, 1.0)
		require.Len(t, results, 2)
		assert.Equal(t, chunkA.Id, results[0].Chunk.Id)
		assert.Equal(t, chunkB.Id, results[1].Chunk.Id)
	})

	t.Run("alpha zero ranks purely by lexical score", func(t *testing.T) {
		results := retriever.HybridSearch(ctx, query, 2, 0.0)
		require.Len(t, results, 2)
		assert.Equal(t, chunkB.Id, results[0].Chunk.Id)
		assert.Equal(t, chunkA.Id, results[1].Chunk.Id)
	})

	t.Run("alpha never changes the candidate set size", func(t *testing.T) {
		for _, alpha := range []float64{0.0, 0.3, 0.7, 1.0} {
			results := retriever.HybridSearch(ctx, query, 2, alpha)
			assert.Len(t, results, 2, "alpha=%v", alpha)
		}
	})
}

func TestHybridSearch_DenseLegFailureDegrades(t *testing.T) {
	chunkRepo, documentRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		documentRepo.Close()
		chunkRepo.Close()
		backend.Close()
	}()

	ctx := context.Background()

	_, err = chunkRepo.AddChunks(ctx, &core.Chunk{
		Content: "delta epsilon zeta",
		Vector:  []float32{0.6, 0.8},
	})
	require.NoError(t, err)

	// Embedding the query fails, so only the lexical leg can contribute
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, assert.AnError
	}
	provider := mock.NewMockProviderWithServices(embedder, mock.NewMockCompleter())

	retriever, err := NewRetriever(chunkRepo, provider)
	require.NoError(t, err)

	results := retriever.HybridSearch(ctx, "delta epsilon", 3, DefaultAlpha)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Chunk.Content, "delta")
}

func TestHybridSearch_KNotPositive(t *testing.T) {
	chunkRepo, documentRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		documentRepo.Close()
		chunkRepo.Close()
		backend.Close()
	}()

	retriever, err := NewRetriever(chunkRepo, mock.NewMockProvider())
	require.NoError(t, err)

	assert.Empty(t, retriever.HybridSearch(context.Background(), "query", 0, DefaultAlpha))
	assert.Empty(t, retriever.HybridSearch(context.Background(), "query", -3, DefaultAlpha))
}

func TestLexicalSearch_TermFrequencyWeighting(t *testing.T) {
	chunkRepo, documentRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		documentRepo.Close()
		chunkRepo.Close()
		backend.Close()
	}()

	ctx := context.Background()

	repeated := &core.Chunk{Content: "vernier vernier vernier padding words here"}
	single := &core.Chunk{Content: "vernier once padding words here"}
	_, err = chunkRepo.AddChunks(ctx, repeated, single)
	require.NoError(t, err)

	retriever, err := NewRetriever(chunkRepo, mock.NewMockProvider())
	require.NoError(t, err)

	results, err := retriever.lexicalSearch(ctx, "vernier", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, repeated.Id, results[0].Chunk.Id)
	assert.Greater(t, results[0].Score, results[1].Score)
	assert.Equal(t, results[0].Score, results[0].LexicalScore)
}

func TestLexicalSearch_RareTermWins(t *testing.T) {
	chunkRepo, documentRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		documentRepo.Close()
		chunkRepo.Close()
		backend.Close()
	}()

	ctx := context.Background()

	chunks := []*core.Chunk{
		{Content: "common words padding"},
		{Content: "common stuff filler"},
		{Content: "rare gem content"},
	}
	_, err = chunkRepo.AddChunks(ctx, chunks...)
	require.NoError(t, err)

	retriever, err := NewRetriever(chunkRepo, mock.NewMockProvider())
	require.NoError(t, err)

	results, err := retriever.lexicalSearch(ctx, "common rare", 10)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// The rare term carries more inverse document frequency
	assert.Equal(t, chunks[2].Id, results[0].Chunk.Id)
}

func TestLexicalSearch_StopWordOnlyQuery(t *testing.T) {
	chunkRepo, documentRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		documentRepo.Close()
		chunkRepo.Close()
		backend.Close()
	}()

	ctx := context.Background()

	_, err = chunkRepo.AddChunks(ctx, &core.Chunk{Content: "indexed content"})
	require.NoError(t, err)

	retriever, err := NewRetriever(chunkRepo, mock.NewMockProvider())
	require.NoError(t, err)

	results, err := retriever.lexicalSearch(ctx, "the and of", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRerank_FastMode(t *testing.T) {
	chunkRepo, documentRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		documentRepo.Close()
		chunkRepo.Close()
		backend.Close()
	}()

	retriever, err := NewRetriever(chunkRepo, mock.NewMockProvider())
	require.NoError(t, err)

	candidates := []*core.SearchResult{
		{Chunk: &core.Chunk{Id: 1, Content: "first"}, Score: 0.9},
		{Chunk: &core.Chunk{Id: 2, Content: "second"}, Score: 0.5},
		{Chunk: &core.Chunk{Id: 3, Content: "third"}, Score: 0.1},
	}

	results := retriever.Rerank(context.Background(), "query", candidates, 2, true)
	require.Len(t, results, 2)

	// Fast mode keeps the blended order and score
	assert.Equal(t, core.ID(1), results[0].Chunk.Id)
	assert.InDelta(t, 0.9, results[0].Score, 0.0001)
	assert.Equal(t, core.ID(2), results[1].Chunk.Id)
}

func TestRerank_SlowMode(t *testing.T) {
	chunkRepo, documentRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		documentRepo.Close()
		chunkRepo.Close()
		backend.Close()
	}()

	retriever, err := NewRetriever(chunkRepo, mock.NewMockProvider(),
		WithScorer(mock.NewMockScorer()))
	require.NoError(t, err)

	// Hybrid order puts the least relevant content first
	candidates := []*core.SearchResult{
		{Chunk: &core.Chunk{Id: 1, Content: "unrelated text entirely"}, Score: 0.9},
		{Chunk: &core.Chunk{Id: 2, Content: "heritage of the maison"}, Score: 0.5},
		{Chunk: &core.Chunk{Id: 3, Content: "fine fragrance production"}, Score: 0.1},
	}

	results := retriever.Rerank(context.Background(), "fine fragrance heritage", candidates, 3, false)
	require.Len(t, results, 3)

	// The mock scorer counts query-token overlap, so the candidate
	// sharing the most words with the query comes first
	assert.Equal(t, core.ID(3), results[0].Chunk.Id)
	assert.InDelta(t, 2.0, results[0].Score, 0.0001)
	assert.Equal(t, core.ID(2), results[1].Chunk.Id)
	assert.InDelta(t, 1.0, results[1].Score, 0.0001)
	assert.Equal(t, core.ID(1), results[2].Chunk.Id)
	assert.InDelta(t, 0.0, results[2].Score, 0.0001)
}

func TestRerank_SlowModeScorerFailure(t *testing.T) {
	chunkRepo, documentRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		documentRepo.Close()
		chunkRepo.Close()
		backend.Close()
	}()

	scorer := mock.NewMockScorer()
	scorer.ScorePairsFunc = func(ctx context.Context, query string, candidates []string) ([]float64, error) {
		return nil, assert.AnError
	}

	retriever, err := NewRetriever(chunkRepo, mock.NewMockProvider(), WithScorer(scorer))
	require.NoError(t, err)

	candidates := []*core.SearchResult{
		{Chunk: &core.Chunk{Id: 1, Content: "first"}, Score: 0.9},
		{Chunk: &core.Chunk{Id: 2, Content: "second"}, Score: 0.5},
	}

	// Scorer failure degrades to the hybrid order
	results := retriever.Rerank(context.Background(), "query", candidates, 1, false)
	require.Len(t, results, 1)
	assert.Equal(t, core.ID(1), results[0].Chunk.Id)
}

func TestRerank_SlowModeWithoutScorer(t *testing.T) {
	chunkRepo, documentRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		documentRepo.Close()
		chunkRepo.Close()
		backend.Close()
	}()

	retriever, err := NewRetriever(chunkRepo, mock.NewMockProvider())
	require.NoError(t, err)

	candidates := []*core.SearchResult{
		{Chunk: &core.Chunk{Id: 1, Content: "first"}, Score: 0.9},
		{Chunk: &core.Chunk{Id: 2, Content: "second"}, Score: 0.5},
	}

	results := retriever.Rerank(context.Background(), "query", candidates, 2, false)
	require.Len(t, results, 2)
	assert.Equal(t, core.ID(1), results[0].Chunk.Id)
}

func TestRerank_EmptyCandidates(t *testing.T) {
	chunkRepo, documentRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		documentRepo.Close()
		chunkRepo.Close()
		backend.Close()
	}()

	retriever, err := NewRetriever(chunkRepo, mock.NewMockProvider())
	require.NoError(t, err)

	assert.Empty(t, retriever.Rerank(context.Background(), "query", nil, 3, true))
	assert.Empty(t, retriever.Rerank(context.Background(), "query", nil, 3, false))
}

func TestRetrieveRelevant_SingleDocumentCorpus(t *testing.T) {
	chunkRepo, documentRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		documentRepo.Close()
		chunkRepo.Close()
		backend.Close()
	}()

	ctx := context.Background()

	// Every text embeds to the same vector, so the dense leg always matches
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1.0, 0.0, 0.0}, nil
	}
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		vectors := make([][]float32, len(texts))
		for i := range texts {
			vectors[i] = []float32{1.0, 0.0, 0.0}
		}
		return vectors, nil
	}
	provider := mock.NewMockProviderWithServices(embedder, mock.NewMockCompleter())

	retriever, err := NewRetriever(chunkRepo, provider)
	require.NoError(t, err)

	err = retriever.Index(ctx, &core.Chunk{
		Content: "Givaudan was founded in 1895 in Geneva",
		Source:  "history.md",
	})
	require.NoError(t, err)

	results := retriever.RetrieveRelevant(ctx, "When was Givaudan founded?")
	require.Len(t, results, 1)
	assert.True(t, strings.Contains(results[0].Chunk.Content, "1895"))
	assert.Greater(t, results[0].Score, 0.0)
}

func TestRetrieveRelevant_EmptyIndex(t *testing.T) {
	chunkRepo, documentRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		documentRepo.Close()
		chunkRepo.Close()
		backend.Close()
	}()

	retriever, err := NewRetriever(chunkRepo, mock.NewMockProvider())
	require.NoError(t, err)

	results := retriever.RetrieveRelevant(context.Background(), "no evidence anywhere")
	assert.Empty(t, results)
}

func TestRetrieveRelevant_TruncatesToFinalDepth(t *testing.T) {
	chunkRepo, documentRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		documentRepo.Close()
		chunkRepo.Close()
		backend.Close()
	}()

	ctx := context.Background()

	// Five chunks sharing the query term; defaults keep only three
	chunks := []*core.Chunk{
		{Content: "perfume note one", Vector: []float32{0.9, 0.1}},
		{Content: "perfume note two", Vector: []float32{0.8, 0.2}},
		{Content: "perfume note three", Vector: []float32{0.7, 0.3}},
		{Content: "perfume note four", Vector: []float32{0.6, 0.4}},
		{Content: "perfume note five", Vector: []float32{0.5, 0.5}},
	}
	_, err = chunkRepo.AddChunks(ctx, chunks...)
	require.NoError(t, err)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1.0, 0.0}, nil
	}
	provider := mock.NewMockProviderWithServices(embedder, mock.NewMockCompleter())

	retriever, err := NewRetriever(chunkRepo, provider)
	require.NoError(t, err)

	results := retriever.RetrieveRelevant(ctx, "perfume")
	assert.Len(t, results, DefaultTopKFinal)
}

func TestRetrieveRelevantWithMonitor(t *testing.T) {
	chunkRepo, documentRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		documentRepo.Close()
		chunkRepo.Close()
		backend.Close()
	}()

	ctx := context.Background()

	_, err = chunkRepo.AddChunks(ctx, &core.Chunk{
		Content: "monitored chunk content",
		Vector:  []float32{0.9, 0.1},
	})
	require.NoError(t, err)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{0.9, 0.1}, nil
	}
	provider := mock.NewMockProviderWithServices(embedder, mock.NewMockCompleter())

	retriever, err := NewRetriever(chunkRepo, provider)
	require.NoError(t, err)

	monitor := &testMonitor{}
	results := retriever.RetrieveRelevantWithMonitor(ctx, "monitored content", monitor)
	assert.NotEmpty(t, results)

	assert.True(t, monitor.startCalled)
	assert.True(t, monitor.fusionCalled)
	assert.True(t, monitor.rerankCalled)
	assert.True(t, monitor.finishCalled)
}

// testMonitor is a simple test implementation of RetrievalMonitor
type testMonitor struct {
	startCalled  bool
	fusionCalled bool
	rerankCalled bool
	finishCalled bool
}

func (m *testMonitor) Start(query string) {
	m.startCalled = true
}

func (m *testMonitor) AfterDenseSearch(results []*core.SearchResult) {}

func (m *testMonitor) AfterLexicalSearch(results []*core.SearchResult) {}

func (m *testMonitor) AfterFusion(results []*core.SearchResult) {
	m.fusionCalled = true
}

func (m *testMonitor) AfterRerank(results []*core.SearchResult) {
	m.rerankCalled = true
}

func (m *testMonitor) Finish(results []*core.SearchResult) {
	m.finishCalled = true
}
