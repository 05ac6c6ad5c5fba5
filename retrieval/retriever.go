package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/solenne/docent/ai"
	"github.com/solenne/docent/core"
	"github.com/solenne/docent/storage"
)

// Default tuning for the two-stage retrieval pipeline.
const (
	// DefaultAlpha weights the dense component of the blended score.
	DefaultAlpha = 0.7
	// DefaultTopKRetrieve is the candidate depth of the hybrid stage.
	DefaultTopKRetrieve = 10
	// DefaultTopKFinal is the number of results the rerank stage keeps.
	DefaultTopKFinal = 3
)

// Retriever provides hybrid lexical and vector retrieval over indexed chunks.
type Retriever struct {
	chunkRepository storage.ChunkRepository
	embedder        ai.Embedder
	scorer          ai.Scorer
	alpha           float64
	topKRetrieve    int
	topKFinal       int
	fastRerank      bool
	logger          *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithAlpha sets the dense weight of the blended score.
// 1 is pure vector similarity, 0 is pure lexical.
func WithAlpha(alpha float64) Option {
	return func(r *Retriever) error {
		if alpha < 0 || alpha > 1 {
			return fmt.Errorf("alpha must be in [0,1], got %v", alpha)
		}
		r.alpha = alpha
		return nil
	}
}

// WithTopKRetrieve sets the candidate depth of the hybrid stage.
func WithTopKRetrieve(k int) Option {
	return func(r *Retriever) error {
		if k <= 0 {
			return fmt.Errorf("topKRetrieve must be positive, got %d", k)
		}
		r.topKRetrieve = k
		return nil
	}
}

// WithTopKFinal sets how many results the rerank stage keeps.
func WithTopKFinal(k int) Option {
	return func(r *Retriever) error {
		if k <= 0 {
			return fmt.Errorf("topKFinal must be positive, got %d", k)
		}
		r.topKFinal = k
		return nil
	}
}

// WithFastRerank controls the default rerank mode used by RetrieveRelevant.
// Fast mode truncates on the blended score; slow mode consults the
// pairwise scorer.
func WithFastRerank(fast bool) Option {
	return func(r *Retriever) error {
		r.fastRerank = fast
		return nil
	}
}

// WithScorer sets the pairwise relevance scorer used by slow rerank mode.
func WithScorer(scorer ai.Scorer) Option {
	return func(r *Retriever) error {
		r.scorer = scorer
		return nil
	}
}

// NewRetriever creates a new retriever over the given chunk repository.
func NewRetriever(
	chunkRepository storage.ChunkRepository,
	provider ai.Provider,
	opts ...Option,
) (*Retriever, error) {
	if chunkRepository == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	r := &Retriever{
		chunkRepository: chunkRepository,
		embedder:        provider.Embedder(),
		alpha:           DefaultAlpha,
		topKRetrieve:    DefaultTopKRetrieve,
		topKFinal:       DefaultTopKFinal,
		fastRerank:      true,
		logger:          slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Index embeds any chunks that are missing vectors and stores the batch.
// Chunks that already carry a vector are stored as-is.
func (r *Retriever) Index(ctx context.Context, chunks ...*core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	var unembedded []*core.Chunk
	var texts []string
	for _, chunk := range chunks {
		if len(chunk.Vector) == 0 {
			unembedded = append(unembedded, chunk)
			texts = append(texts, chunk.Content)
		}
	}

	if len(texts) > 0 {
		vectors, err := r.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return err
		}
		if len(vectors) != len(texts) {
			return fmt.Errorf("%w: %d texts, %d vectors", ErrEmbeddingCountMismatch, len(texts), len(vectors))
		}
		for i, chunk := range unembedded {
			chunk.Vector = vectors[i]
		}
	}

	_, err := r.chunkRepository.AddChunks(ctx, chunks...)
	return err
}

// HybridSearch blends dense vector similarity with BM25 lexical scoring
// and returns the top k chunks by blended score descending. alpha weights
// the dense component: 1 is pure vector, 0 is pure lexical.
//
// Absence is a normal result: an empty index, a query with no matches,
// and collaborator failures all yield an empty slice. Failures are
// logged, never raised.
func (r *Retriever) HybridSearch(ctx context.Context, query string, k int, alpha float64) []*core.SearchResult {
	return r.HybridSearchWithMonitor(ctx, query, k, alpha, nil)
}

// HybridSearchWithMonitor is HybridSearch with observation hooks.
// The monitor receives callbacks at each stage of the pipeline.
func (r *Retriever) HybridSearchWithMonitor(ctx context.Context, query string, k int, alpha float64, monitor RetrievalMonitor) []*core.SearchResult {
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	monitor.Start(query)
	results := r.hybridCandidates(ctx, query, k, alpha, monitor)
	monitor.Finish(results)
	return results
}

// hybridCandidates runs the two retrieval legs concurrently and fuses
// the candidate lists. A failed leg degrades to an empty list so the
// other leg still contributes.
func (r *Retriever) hybridCandidates(ctx context.Context, query string, k int, alpha float64, monitor RetrievalMonitor) []*core.SearchResult {
	if k <= 0 {
		return []*core.SearchResult{}
	}

	var dense, lexical []*core.SearchResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		dense, err = r.denseSearch(gctx, query, k)
		if err != nil {
			r.logger.Warn("dense retrieval failed, continuing without it", "err", err)
			dense = nil
		}
		return nil
	})
	g.Go(func() error {
		var err error
		lexical, err = r.lexicalSearch(gctx, query, k)
		if err != nil {
			r.logger.Warn("lexical retrieval failed, continuing without it", "err", err)
			lexical = nil
		}
		return nil
	})
	_ = g.Wait()

	monitor.AfterDenseSearch(dense)
	monitor.AfterLexicalSearch(lexical)

	results := fuseResults(dense, lexical, alpha, k)
	monitor.AfterFusion(results)
	return results
}

// denseSearch embeds the query and ranks chunks by cosine similarity.
func (r *Retriever) denseSearch(ctx context.Context, query string, k int) ([]*core.SearchResult, error) {
	embedding, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, err
	}
	return r.chunkRepository.FindSimilar(ctx, embedding, 0, k)
}

// Rerank reorders hybrid candidates and truncates to k.
//
// In fast mode the already-ordered candidates are truncated with their
// blended score attached. In slow mode every (query, content) pair is
// scored by the pairwise scorer and the list is re-sorted by that score;
// a missing or failing scorer degrades to fast mode.
func (r *Retriever) Rerank(ctx context.Context, query string, candidates []*core.SearchResult, k int, fastMode bool) []*core.SearchResult {
	if k <= 0 || len(candidates) == 0 {
		return []*core.SearchResult{}
	}

	if !fastMode {
		candidates = r.scoreCandidates(ctx, query, candidates)
	}

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}

// scoreCandidates replaces blended scores with pairwise scorer scores
// and re-sorts. The incoming order is kept for equal scores.
func (r *Retriever) scoreCandidates(ctx context.Context, query string, candidates []*core.SearchResult) []*core.SearchResult {
	if r.scorer == nil {
		r.logger.Warn("no pairwise scorer configured, keeping hybrid order")
		return candidates
	}

	contents := make([]string, len(candidates))
	for i, candidate := range candidates {
		contents[i] = candidate.Chunk.Content
	}

	scores, err := r.scorer.ScorePairs(ctx, query, contents)
	if err != nil {
		r.logger.Warn("pairwise rerank failed, keeping hybrid order", "err", err)
		return candidates
	}
	if len(scores) != len(candidates) {
		r.logger.Warn("pairwise rerank returned wrong score count, keeping hybrid order",
			"want", len(candidates), "got", len(scores))
		return candidates
	}

	reranked := make([]*core.SearchResult, len(candidates))
	for i, candidate := range candidates {
		reranked[i] = &core.SearchResult{
			Chunk:        candidate.Chunk,
			Score:        scores[i],
			DenseScore:   candidate.DenseScore,
			LexicalScore: candidate.LexicalScore,
		}
	}
	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].Score > reranked[j].Score
	})
	return reranked
}

// RetrieveRelevant runs the full two-stage pipeline with the configured
// depths: a wide hybrid retrieval followed by rerank truncation.
func (r *Retriever) RetrieveRelevant(ctx context.Context, query string) []*core.SearchResult {
	return r.RetrieveRelevantWithMonitor(ctx, query, nil)
}

// RetrieveRelevantWithMonitor is RetrieveRelevant with observation hooks.
func (r *Retriever) RetrieveRelevantWithMonitor(ctx context.Context, query string, monitor RetrievalMonitor) []*core.SearchResult {
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	monitor.Start(query)

	candidates := r.hybridCandidates(ctx, query, r.topKRetrieve, r.alpha, monitor)
	results := r.Rerank(ctx, query, candidates, r.topKFinal, r.fastRerank)

	monitor.AfterRerank(results)
	monitor.Finish(results)
	return results
}

// Count reports how many chunks the index currently holds.
func (r *Retriever) Count(ctx context.Context) (int, error) {
	return r.chunkRepository.CountChunks(ctx)
}
