// Copyright 2025 Solenne Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package docent answers questions over a private document corpus.
//
// The Assistant facade wires the full stack: a badger-backed chunk
// index with hybrid retrieval, an OpenAI-compatible model provider, a
// semantic answer cache, an ingestion pipeline, and the tool-using
// reasoning loop. Components are also usable individually through
// their own packages; the facade only assembles them.
package docent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/tmc/langchaingo/tools"

	"github.com/solenne/docent/agent"
	"github.com/solenne/docent/ai"
	"github.com/solenne/docent/ai/openai"
	"github.com/solenne/docent/ai/rerank"
	"github.com/solenne/docent/cache"
	"github.com/solenne/docent/config"
	"github.com/solenne/docent/core"
	"github.com/solenne/docent/ingestion"
	"github.com/solenne/docent/reembed"
	"github.com/solenne/docent/retrieval"
	"github.com/solenne/docent/storage"
	"github.com/solenne/docent/storage/badger"
)

// ErrCacheDisabled is returned by cache operations when the assistant
// was configured without an answer cache.
var ErrCacheDisabled = errors.New("answer cache is disabled")

// Assistant bundles the whole question answering stack behind one handle.
type Assistant struct {
	backend      *badger.Backend
	chunkRepo    storage.ChunkRepository
	documentRepo storage.DocumentRepository
	provider     ai.Provider
	answerCache  *cache.Cache
	retriever    *retrieval.Retriever
	pipeline     *ingestion.Pipeline
	orchestrator *agent.Orchestrator
	logger       *slog.Logger
}

// Option configures an Assistant.
type Option func(*assistantOptions)

type assistantOptions struct {
	provider        ai.Provider
	scorer          ai.Scorer
	webEngine       tools.Tool
	webQueryContext string
	inMemory        bool
	logger          *slog.Logger
}

// WithProvider injects a model provider, replacing the OpenAI-compatible
// one built from the configuration. The assistant takes ownership and
// closes it.
func WithProvider(provider ai.Provider) Option {
	return func(o *assistantOptions) {
		o.provider = provider
	}
}

// WithScorer injects a pairwise relevance scorer for the rerank stage,
// replacing the HTTP client built from the configured rerank host.
func WithScorer(scorer ai.Scorer) Option {
	return func(o *assistantOptions) {
		o.scorer = scorer
	}
}

// WithWebSearch injects the web search engine backing the agent's
// fallback tool, replacing the SerpAPI one.
func WithWebSearch(engine tools.Tool) Option {
	return func(o *assistantOptions) {
		o.webEngine = engine
	}
}

// WithWebQueryContext prepends a phrase to every web search to keep
// results on the corpus topic.
func WithWebQueryContext(queryContext string) Option {
	return func(o *assistantOptions) {
		o.webQueryContext = queryContext
	}
}

// WithInMemory keeps the index and the answer cache entirely in memory.
// Intended for tests and throwaway sessions.
func WithInMemory() Option {
	return func(o *assistantOptions) {
		o.inMemory = true
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *assistantOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New assembles an assistant from cfg. A nil cfg means config.Default().
// On failure everything opened so far is closed before returning.
func New(cfg *config.Config, opts ...Option) (*Assistant, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	options := &assistantOptions{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(cfg.Storage.IndexPath, options.inMemory)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	chunkRepo, err := badger.NewChunkRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	documentRepo, err := badger.NewDocumentRepository(backend)
	if err != nil {
		chunkRepo.Close()
		backend.Close()
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		aiCfg := ai.NewConfig(
			ai.WithEmbeddingHost(cfg.AI.EmbeddingHost),
			ai.WithLLMHost(cfg.AI.LLMHost),
			ai.WithEmbeddingModel(cfg.AI.EmbeddingModel),
			ai.WithLLMModel(cfg.AI.LLMModel),
		)
		provider, err = openai.NewProvider(aiCfg)
		if err != nil {
			documentRepo.Close()
			chunkRepo.Close()
			backend.Close()
			return nil, err
		}
	}

	scorer := options.scorer
	if scorer == nil && cfg.AI.RerankHost != "" {
		scorer = rerank.NewClient(cfg.AI.RerankHost, rerank.WithModel(cfg.AI.RerankModel))
	}

	retrieverOpts := []retrieval.Option{
		retrieval.WithAlpha(cfg.Retrieval.HybridAlpha),
		retrieval.WithTopKRetrieve(cfg.Retrieval.TopKRetrieve),
		retrieval.WithTopKFinal(cfg.Retrieval.TopKFinal),
		retrieval.WithFastRerank(!cfg.Retrieval.SlowRerank),
	}
	if scorer != nil {
		retrieverOpts = append(retrieverOpts, retrieval.WithScorer(scorer))
	}
	retriever, err := retrieval.NewRetriever(chunkRepo, provider, retrieverOpts...)
	if err != nil {
		provider.Close()
		documentRepo.Close()
		chunkRepo.Close()
		backend.Close()
		return nil, err
	}

	var answerCache *cache.Cache
	if !cfg.Cache.Disabled {
		cachePath := cfg.Storage.CachePath
		if options.inMemory {
			cachePath = ":memory:"
		}
		answerCache, err = cache.Open(cachePath, provider.Embedder(),
			cache.WithThreshold(cfg.Cache.Threshold),
			cache.WithTTL(cfg.Cache.TTL()),
			cache.WithMaxEntries(cfg.Cache.MaxEntries),
			cache.WithScanLimit(cfg.Cache.ScanLimit),
		)
		if err != nil {
			provider.Close()
			documentRepo.Close()
			chunkRepo.Close()
			backend.Close()
			return nil, fmt.Errorf("open answer cache: %w", err)
		}
	}

	pipeline, err := ingestion.NewPipeline(chunkRepo, documentRepo, provider.Embedder(),
		ingestion.WithChunking(cfg.Chunking.Size, cfg.Chunking.Overlap),
	)
	if err != nil {
		if answerCache != nil {
			answerCache.Close()
		}
		provider.Close()
		documentRepo.Close()
		chunkRepo.Close()
		backend.Close()
		return nil, err
	}

	retrievalTool, err := agent.NewRetrievalTool(retriever)
	if err != nil {
		pipeline.Release()
		if answerCache != nil {
			answerCache.Close()
		}
		provider.Close()
		documentRepo.Close()
		chunkRepo.Close()
		backend.Close()
		return nil, err
	}
	var webTool *agent.WebSearchTool
	if options.webEngine != nil {
		webTool = agent.NewWebSearchTool(options.webEngine, options.webQueryContext)
	} else {
		webTool = agent.NewSerpAPITool(options.webQueryContext)
	}
	toolset := []tools.Tool{retrievalTool, webTool}

	orchestratorOpts := []agent.Option{
		agent.WithMaxIterations(cfg.Agent.MaxIterations),
		agent.WithMaxDuration(cfg.Agent.MaxExecution()),
		agent.WithModelName(cfg.AI.LLMModel),
	}
	if answerCache != nil {
		orchestratorOpts = append(orchestratorOpts, agent.WithCache(answerCache))
	}
	orchestrator, err := agent.New(provider.Completer(), toolset, orchestratorOpts...)
	if err != nil {
		pipeline.Release()
		if answerCache != nil {
			answerCache.Close()
		}
		provider.Close()
		documentRepo.Close()
		chunkRepo.Close()
		backend.Close()
		return nil, err
	}

	return &Assistant{
		backend:      backend,
		chunkRepo:    chunkRepo,
		documentRepo: documentRepo,
		provider:     provider,
		answerCache:  answerCache,
		retriever:    retriever,
		pipeline:     pipeline,
		orchestrator: orchestrator,
		logger:       options.logger,
	}, nil
}

// Ask answers a question, consulting the cache, the corpus, and the web
// fallback as needed. history carries the conversation so far, oldest
// first, and may be nil.
func (a *Assistant) Ask(ctx context.Context, question string, history []core.ConversationTurn) (*agent.Answer, error) {
	return a.orchestrator.Ask(ctx, question, history)
}

// IndexPath loads and indexes a file or directory.
// Returns the number of chunks written.
func (a *Assistant) IndexPath(ctx context.Context, path string) (int, error) {
	return a.pipeline.IndexPath(ctx, path)
}

// IndexDocuments indexes already-loaded documents.
func (a *Assistant) IndexDocuments(ctx context.Context, docs ...*core.Document) (int, error) {
	return a.pipeline.IndexDocuments(ctx, docs...)
}

// RemovePath drops an indexed file's chunks and registry record.
func (a *Assistant) RemovePath(ctx context.Context, path string) error {
	return a.pipeline.RemovePath(ctx, path)
}

// Watch blocks keeping the index in sync with dir until ctx is
// cancelled. Files already in dir are indexed before watching starts.
func (a *Assistant) Watch(ctx context.Context, dir string) error {
	if _, err := a.pipeline.IndexPath(ctx, dir); err != nil {
		return fmt.Errorf("initial indexing of %s: %w", dir, err)
	}

	watcher, err := ingestion.NewWatcher(a.pipeline)
	if err != nil {
		return err
	}
	defer watcher.Close()

	return watcher.Watch(ctx, dir)
}

// Reembed regenerates the vectors of every indexed chunk, writing
// progress to progress. A nil rcfg means reembed defaults.
func (a *Assistant) Reembed(ctx context.Context, rcfg *reembed.Config, progress io.Writer) error {
	return reembed.NewReembedder(a.chunkRepo, a.provider.Embedder(), rcfg, progress).Run(ctx)
}

// CountChunks reports how many chunks the index holds.
func (a *Assistant) CountChunks(ctx context.Context) (int, error) {
	return a.chunkRepo.CountChunks(ctx)
}

// CacheStats reports answer cache counters.
// Returns ErrCacheDisabled when the cache is off.
func (a *Assistant) CacheStats(ctx context.Context) (cache.Stats, error) {
	if a.answerCache == nil {
		return cache.Stats{}, ErrCacheDisabled
	}
	return a.answerCache.Stats(ctx)
}

// ClearCache removes every cached answer.
// Returns ErrCacheDisabled when the cache is off.
func (a *Assistant) ClearCache(ctx context.Context) error {
	if a.answerCache == nil {
		return ErrCacheDisabled
	}
	return a.answerCache.Clear(ctx)
}

// Retriever exposes the hybrid retriever for direct searches.
func (a *Assistant) Retriever() *retrieval.Retriever {
	return a.retriever
}

// Pipeline exposes the ingestion pipeline.
func (a *Assistant) Pipeline() *ingestion.Pipeline {
	return a.pipeline
}

// Cache exposes the answer cache. Nil when disabled.
func (a *Assistant) Cache() *cache.Cache {
	return a.answerCache
}

// ChunkRepository exposes the chunk store.
func (a *Assistant) ChunkRepository() storage.ChunkRepository {
	return a.chunkRepo
}

// DocumentRepository exposes the document registry.
func (a *Assistant) DocumentRepository() storage.DocumentRepository {
	return a.documentRepo
}

// Close releases every component. The orchestrator goes first so its
// detached cache writes stop before the cache closes.
func (a *Assistant) Close() error {
	if err := a.orchestrator.Close(); err != nil {
		a.logger.Error("error closing orchestrator", "err", err)
	}
	if a.answerCache != nil {
		if err := a.answerCache.Close(); err != nil {
			a.logger.Error("error closing answer cache", "err", err)
		}
	}
	if err := a.provider.Close(); err != nil {
		a.logger.Error("error closing AI provider", "err", err)
	}
	a.pipeline.Release()

	if err := a.documentRepo.Close(); err != nil {
		a.logger.Error("error closing document repository", "err", err)
		return err
	}
	if err := a.chunkRepo.Close(); err != nil {
		a.logger.Error("error closing chunk repository", "err", err)
		return err
	}
	if err := a.backend.Close(); err != nil {
		a.logger.Error("error closing index backend", "err", err)
		return err
	}
	return nil
}
