package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/solenne/docent/ai"
	"github.com/solenne/docent/core"
	"github.com/solenne/docent/storage"
)

// DefaultBatchSize is how many chunk texts go to the embedder per call.
const DefaultBatchSize = 32

// Pipeline orchestrates loading, chunking, embedding, and indexing of
// source documents, keeping a per-file registry for change detection.
type Pipeline struct {
	chunkRepo    storage.ChunkRepository
	documentRepo storage.DocumentRepository
	embedder     ai.Embedder
	loader       Loader
	splitter     *Splitter

	embedPool *ants.Pool
	batchSize int
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		if p.embedPool != nil {
			p.embedPool.Release()
		}

		embedPool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.embedPool = embedPool
		return nil
	}
}

// WithBatchSize sets how many chunk texts go to the embedder per call.
// Default is DefaultBatchSize.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return fmt.Errorf("batch size must be positive, got %d", size)
		}
		p.batchSize = size
		return nil
	}
}

// WithChunking sets the splitter window geometry.
// Defaults are DefaultChunkSize and DefaultChunkOverlap.
func WithChunking(chunkSize, chunkOverlap int) Option {
	return func(p *Pipeline) error {
		if chunkSize < 1 {
			return fmt.Errorf("chunk size must be positive, got %d", chunkSize)
		}
		if chunkOverlap < 0 || chunkOverlap >= chunkSize {
			return fmt.Errorf("chunk overlap must be in [0, chunkSize), got %d", chunkOverlap)
		}
		p.splitter = NewSplitter(chunkSize, chunkOverlap)
		return nil
	}
}

// WithLoader sets the document loader.
// Default is a plain-text FileLoader.
func WithLoader(loader Loader) Option {
	return func(p *Pipeline) error {
		if loader == nil {
			loader = NewFileLoader()
		}
		p.loader = loader
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(
	chunkRepo storage.ChunkRepository,
	documentRepo storage.DocumentRepository,
	embedder ai.Embedder,
	opts ...Option,
) (*Pipeline, error) {
	if chunkRepo == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if documentRepo == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	// Default pool size
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	embedPool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		chunkRepo:    chunkRepo,
		documentRepo: documentRepo,
		embedder:     embedder,
		loader:       NewFileLoader(),
		splitter:     NewSplitter(DefaultChunkSize, DefaultChunkOverlap),
		embedPool:    embedPool,
		batchSize:    DefaultBatchSize,
		logger:       slog.Default().With("component", "ingestion"),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// IndexPath loads path (file or directory) and indexes what it finds.
// Returns the number of chunks written.
func (p *Pipeline) IndexPath(ctx context.Context, path string) (int, error) {
	docs, err := p.loader.Load(ctx, path)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		p.logger.Info("nothing to index", "path", path)
		return 0, nil
	}
	return p.IndexDocuments(ctx, docs...)
}

// IndexDocuments chunks, embeds, and stores the given documents.
// Documents sharing a path are treated as pages of one source file.
// Unchanged files (same content hash as the registry record) are
// skipped; changed files have their previous chunks replaced.
// Returns the number of chunks written.
func (p *Pipeline) IndexDocuments(ctx context.Context, docs ...*core.Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	indexed := 0
	for _, group := range groupByPath(docs) {
		n, err := p.indexFile(ctx, group)
		if err != nil {
			return indexed, err
		}
		indexed += n
	}

	p.logger.Info("indexing complete", "documents", len(docs), "chunks", indexed)
	return indexed, nil
}

// indexFile indexes the pages of one source file.
func (p *Pipeline) indexFile(ctx context.Context, pages []*core.Document) (int, error) {
	path := pages[0].Path
	name := pages[0].Name

	hash := contentHash(pages)
	previous, err := p.documentRepo.GetDocument(ctx, path)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return 0, fmt.Errorf("look up registry record for %s: %w", path, err)
	}
	if previous != nil && previous.ContentHash == hash {
		p.logger.Debug("file unchanged, skipping", "file", name)
		return 0, nil
	}

	// Chunk all pages, numbering across the whole file
	var chunks []*core.Chunk
	for _, page := range pages {
		pageChunks, err := p.splitter.Split(page)
		if err != nil {
			return 0, err
		}
		for _, chunk := range pageChunks {
			chunk.Index = len(chunks)
			chunks = append(chunks, chunk)
		}
	}
	if len(chunks) == 0 {
		p.logger.Debug("file produced no chunks", "file", name)
		return 0, nil
	}

	if err := p.embedChunks(ctx, chunks); err != nil {
		return 0, fmt.Errorf("embed %s: %w", name, err)
	}

	// Replace before add so a changed file leaves no stale chunks
	if previous != nil && len(previous.ChunkIds) > 0 {
		if err := p.deleteFileChunks(ctx, path, previous.ChunkIds); err != nil {
			return 0, fmt.Errorf("replace stale chunks for %s: %w", path, err)
		}
	}

	stored, err := p.chunkRepo.AddChunks(ctx, chunks...)
	if err != nil {
		return 0, fmt.Errorf("store chunks for %s: %w", path, err)
	}

	// Identical windows hash to the same content-based ID, so the registry
	// record keeps each ID once.
	seen := make(map[core.ID]struct{}, len(stored))
	ids := make([]core.ID, 0, len(stored))
	for _, chunk := range stored {
		if _, dup := seen[chunk.Id]; dup {
			continue
		}
		seen[chunk.Id] = struct{}{}
		ids = append(ids, chunk.Id)
	}
	record := &core.DocumentRecord{
		Path:        path,
		Name:        name,
		ContentHash: hash,
		ChunkIds:    ids,
	}
	if err := p.documentRepo.PutDocument(ctx, record); err != nil {
		return 0, fmt.Errorf("store registry record for %s: %w", path, err)
	}

	p.logger.Info("indexed file", "file", name, "chunks", len(stored))
	return len(stored), nil
}

// RemovePath drops a file's chunks and its registry record. Removing a
// path that was never indexed is a no-op.
func (p *Pipeline) RemovePath(ctx context.Context, path string) error {
	record, err := p.documentRepo.GetDocument(ctx, path)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("look up registry record for %s: %w", path, err)
	}

	if len(record.ChunkIds) > 0 {
		if err := p.deleteFileChunks(ctx, path, record.ChunkIds); err != nil {
			return fmt.Errorf("delete chunks for %s: %w", path, err)
		}
	}
	if err := p.documentRepo.DeleteDocument(ctx, path); err != nil &&
		!errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("delete registry record for %s: %w", path, err)
	}

	p.logger.Info("removed file from index", "path", path, "chunks", len(record.ChunkIds))
	return nil
}

// deleteFileChunks deletes the chunks a file owns, except those whose
// content-based ID is also referenced by another file's registry record.
// Files with identical passages share chunks, and removing one file must
// not unindex content the others still provide.
func (p *Pipeline) deleteFileChunks(ctx context.Context, path string, ids []core.ID) error {
	records, err := p.documentRepo.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("list registry records: %w", err)
	}

	referenced := make(map[core.ID]struct{})
	for _, record := range records {
		if record.Path == path {
			continue
		}
		for _, id := range record.ChunkIds {
			referenced[id] = struct{}{}
		}
	}

	exclusive := make([]core.ID, 0, len(ids))
	for _, id := range ids {
		if _, shared := referenced[id]; shared {
			continue
		}
		exclusive = append(exclusive, id)
	}
	if len(exclusive) == 0 {
		return nil
	}
	return p.chunkRepo.DeleteChunks(ctx, exclusive...)
}

// embedChunks fills in missing vectors, sending batches to the embedder
// concurrently on the worker pool.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []*core.Chunk) error {
	var pending []*core.Chunk
	for _, chunk := range chunks {
		if len(chunk.Vector) == 0 {
			pending = append(pending, chunk)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	batches := batchChunks(pending, p.batchSize)
	errs := make([]error, len(batches))

	var wg sync.WaitGroup
	for i, batch := range batches {
		wg.Add(1)
		submitErr := p.embedPool.Submit(func() {
			defer wg.Done()
			errs[i] = p.embedBatch(ctx, batch)
		})
		if submitErr != nil {
			wg.Done()
			errs[i] = submitErr
		}
	}
	wg.Wait()

	return errors.Join(errs...)
}

// embedBatch embeds one batch and assigns the vectors in place.
func (p *Pipeline) embedBatch(ctx context.Context, batch []*core.Chunk) error {
	texts := make([]string, len(batch))
	for i, chunk := range batch {
		texts[i] = chunk.Content
	}

	vectors, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(batch))
	}

	for i, chunk := range batch {
		chunk.Vector = vectors[i]
	}
	return nil
}

// Release releases the embedding worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.embedPool != nil {
		p.embedPool.Release()
	}
}

// groupByPath collects documents into per-path page groups, preserving
// first-seen path order and page order within a path.
func groupByPath(docs []*core.Document) [][]*core.Document {
	var order []string
	groups := make(map[string][]*core.Document)
	for _, doc := range docs {
		if _, seen := groups[doc.Path]; !seen {
			order = append(order, doc.Path)
		}
		groups[doc.Path] = append(groups[doc.Path], doc)
	}

	result := make([][]*core.Document, len(order))
	for i, path := range order {
		result[i] = groups[path]
	}
	return result
}

// contentHash derives the registry hash for a file from all its pages.
func contentHash(pages []*core.Document) core.ID {
	if len(pages) == 1 {
		return core.IDFromContent(pages[0].Content)
	}
	var b strings.Builder
	for i, page := range pages {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(page.Content)
	}
	return core.IDFromContent(b.String())
}

// batchChunks slices chunks into batches of at most size.
func batchChunks(chunks []*core.Chunk, size int) [][]*core.Chunk {
	var batches [][]*core.Chunk
	for start := 0; start < len(chunks); start += size {
		end := start + size
		if end > len(chunks) {
			end = len(chunks)
		}
		batches = append(batches, chunks[start:end])
	}
	return batches
}
