package badger

import (
	"context"
	"testing"
	"time"

	"github.com/solenne/docent/core"
	"github.com/solenne/docent/storage"
)

func TestChunkBasics(t *testing.T) {
	// Create in-memory repositories
	chunkRepo, documentRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() {
		documentRepo.Close()
		chunkRepo.Close()
		backend.Close()
	}()

	ctx := context.Background()

	// Test adding a chunk
	chunk := &core.Chunk{
		Content: "The company was founded in Vernier in 1895.",
		Source:  "history.md",
		Format:  "markdown",
		Index:   0,
	}

	added, err := chunkRepo.AddChunks(ctx, chunk)
	if err != nil {
		t.Fatalf("Failed to add chunk: %v", err)
	}

	if len(added) != 1 {
		t.Fatalf("Expected 1 chunk, got %d", len(added))
	}

	if added[0].Id == 0 {
		t.Fatal("Expected non-zero ID")
	}

	if added[0].Id != core.IDFromContent(chunk.Content) {
		t.Fatal("Expected content-based ID")
	}

	if added[0].IndexedAt.IsZero() || added[0].UpdatedAt.IsZero() {
		t.Fatal("Expected timestamps to be set")
	}

	// Test retrieving the chunk
	retrieved, err := chunkRepo.GetChunk(ctx, added[0].Id)
	if err != nil {
		t.Fatalf("Failed to get chunk: %v", err)
	}

	if retrieved.Content != "The company was founded in Vernier in 1895." {
		t.Fatalf("Unexpected content: %q", retrieved.Content)
	}
	if retrieved.Source != "history.md" {
		t.Fatalf("Expected source 'history.md', got %q", retrieved.Source)
	}
}

func TestChunkGetMissing(t *testing.T) {
	chunkRepo, documentRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { documentRepo.Close(); chunkRepo.Close(); backend.Close() }()

	ctx := context.Background()

	_, err = chunkRepo.GetChunk(ctx, core.ID(12345))
	if err != storage.ErrNotFound {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestChunkUpsert(t *testing.T) {
	chunkRepo, documentRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { documentRepo.Close(); chunkRepo.Close(); backend.Close() }()

	ctx := context.Background()

	first := &core.Chunk{Content: "Identical chunk content for upsert"}
	added, err := chunkRepo.AddChunks(ctx, first)
	if err != nil {
		t.Fatalf("Failed to add chunk: %v", err)
	}
	originalIndexedAt := added[0].IndexedAt

	statsBefore, err := chunkRepo.GetLexiconStats(ctx)
	if err != nil {
		t.Fatalf("Failed to get lexicon stats: %v", err)
	}

	// Re-add the same content with a new vector
	time.Sleep(2 * time.Millisecond)
	second := &core.Chunk{
		Content: "Identical chunk content for upsert",
		Vector:  []float32{0.1, 0.2, 0.3},
	}
	readded, err := chunkRepo.AddChunks(ctx, second)
	if err != nil {
		t.Fatalf("Failed to re-add chunk: %v", err)
	}

	if readded[0].Id != added[0].Id {
		t.Fatal("Expected identical content to produce the same ID")
	}
	if !readded[0].IndexedAt.Equal(originalIndexedAt) {
		t.Fatal("Expected IndexedAt to be preserved on upsert")
	}
	if !readded[0].UpdatedAt.After(originalIndexedAt) {
		t.Fatal("Expected UpdatedAt to advance on upsert")
	}

	// Lexicon totals must not double count
	statsAfter, err := chunkRepo.GetLexiconStats(ctx)
	if err != nil {
		t.Fatalf("Failed to get lexicon stats: %v", err)
	}
	if statsAfter != statsBefore {
		t.Fatalf("Expected stats unchanged on upsert, got %+v before, %+v after", statsBefore, statsAfter)
	}

	// The stored vector should be the new one
	retrieved, err := chunkRepo.GetChunk(ctx, added[0].Id)
	if err != nil {
		t.Fatalf("Failed to get chunk: %v", err)
	}
	if len(retrieved.Vector) != 3 {
		t.Fatalf("Expected refreshed vector, got %v", retrieved.Vector)
	}
}

func TestChunkPostings(t *testing.T) {
	chunkRepo, documentRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { documentRepo.Close(); chunkRepo.Close(); backend.Close() }()

	ctx := context.Background()

	chunks := []*core.Chunk{
		{Content: "fragrance production moved to vernier"},
		{Content: "vernier vernier vernier"},
		{Content: "nothing related here"},
	}
	added, err := chunkRepo.AddChunks(ctx, chunks...)
	if err != nil {
		t.Fatalf("Failed to add chunks: %v", err)
	}

	postings, err := chunkRepo.GetPostings(ctx, "vernier")
	if err != nil {
		t.Fatalf("Failed to get postings: %v", err)
	}

	if len(postings) != 2 {
		t.Fatalf("Expected 2 postings for 'vernier', got %d", len(postings))
	}
	if postings[added[0].Id] != 1 {
		t.Fatalf("Expected tf 1 for first chunk, got %d", postings[added[0].Id])
	}
	if postings[added[1].Id] != 3 {
		t.Fatalf("Expected tf 3 for second chunk, got %d", postings[added[1].Id])
	}

	// Unknown term yields empty postings, not an error
	empty, err := chunkRepo.GetPostings(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("Failed to get postings for unknown term: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("Expected no postings, got %d", len(empty))
	}
}

func TestPostingsPrefixIsolation(t *testing.T) {
	chunkRepo, documentRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { documentRepo.Close(); chunkRepo.Close(); backend.Close() }()

	ctx := context.Background()

	// "verni" must not pick up postings for "vernier"
	chunks := []*core.Chunk{
		{Content: "vernier location"},
		{Content: "verni something"},
	}
	_, err = chunkRepo.AddChunks(ctx, chunks...)
	if err != nil {
		t.Fatalf("Failed to add chunks: %v", err)
	}

	postings, err := chunkRepo.GetPostings(ctx, "verni")
	if err != nil {
		t.Fatalf("Failed to get postings: %v", err)
	}
	if len(postings) != 1 {
		t.Fatalf("Expected exactly 1 posting for 'verni', got %d", len(postings))
	}
}

func TestLexiconStats(t *testing.T) {
	chunkRepo, documentRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { documentRepo.Close(); chunkRepo.Close(); backend.Close() }()

	ctx := context.Background()

	// Empty store has zero totals
	stats, err := chunkRepo.GetLexiconStats(ctx)
	if err != nil {
		t.Fatalf("Failed to get lexicon stats: %v", err)
	}
	if stats.ChunkCount != 0 || stats.TokenCount != 0 {
		t.Fatalf("Expected zero stats, got %+v", stats)
	}

	// "fragrance production vernier" tokenizes to 3 terms
	added, err := chunkRepo.AddChunks(ctx, &core.Chunk{Content: "fragrance production vernier"})
	if err != nil {
		t.Fatalf("Failed to add chunk: %v", err)
	}

	stats, err = chunkRepo.GetLexiconStats(ctx)
	if err != nil {
		t.Fatalf("Failed to get lexicon stats: %v", err)
	}
	if stats.ChunkCount != 1 {
		t.Fatalf("Expected 1 chunk, got %d", stats.ChunkCount)
	}
	if stats.TokenCount != 3 {
		t.Fatalf("Expected 3 tokens, got %d", stats.TokenCount)
	}

	// Deleting restores zero totals
	err = chunkRepo.DeleteChunks(ctx, added[0].Id)
	if err != nil {
		t.Fatalf("Failed to delete chunk: %v", err)
	}

	stats, err = chunkRepo.GetLexiconStats(ctx)
	if err != nil {
		t.Fatalf("Failed to get lexicon stats: %v", err)
	}
	if stats.ChunkCount != 0 || stats.TokenCount != 0 {
		t.Fatalf("Expected zero stats after delete, got %+v", stats)
	}
}

func TestUpdateChunks(t *testing.T) {
	chunkRepo, documentRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { documentRepo.Close(); chunkRepo.Close(); backend.Close() }()

	ctx := context.Background()

	added, err := chunkRepo.AddChunks(ctx, &core.Chunk{
		Content: "Vector refresh target",
		Vector:  []float32{1.0, 0.0},
	})
	if err != nil {
		t.Fatalf("Failed to add chunk: %v", err)
	}

	// Replace the vector
	added[0].Vector = []float32{0.0, 1.0}
	updated, err := chunkRepo.UpdateChunks(ctx, added[0])
	if err != nil {
		t.Fatalf("Failed to update chunk: %v", err)
	}

	if updated[0].Vector[0] != 0.0 || updated[0].Vector[1] != 1.0 {
		t.Fatalf("Expected updated vector, got %v", updated[0].Vector)
	}
	if updated[0].Content != "Vector refresh target" {
		t.Fatal("Expected content to survive the update")
	}

	// Verify the update persisted
	retrieved, err := chunkRepo.GetChunk(ctx, added[0].Id)
	if err != nil {
		t.Fatalf("Failed to get chunk: %v", err)
	}
	if retrieved.Vector[1] != 1.0 {
		t.Fatalf("Expected persisted vector, got %v", retrieved.Vector)
	}
}

func TestUpdateChunks_Missing(t *testing.T) {
	chunkRepo, documentRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { documentRepo.Close(); chunkRepo.Close(); backend.Close() }()

	ctx := context.Background()

	missing := &core.Chunk{Id: core.ID(99999), Content: "never stored"}
	_, err = chunkRepo.UpdateChunks(ctx, missing)
	if err != storage.ErrNotFound {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestDeleteChunks(t *testing.T) {
	chunkRepo, documentRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { documentRepo.Close(); chunkRepo.Close(); backend.Close() }()

	ctx := context.Background()

	chunks := []*core.Chunk{
		{Content: "chunk about perfume"},
		{Content: "chunk about flavor"},
	}
	added, err := chunkRepo.AddChunks(ctx, chunks...)
	if err != nil {
		t.Fatalf("Failed to add chunks: %v", err)
	}

	// Delete first chunk
	err = chunkRepo.DeleteChunks(ctx, added[0].Id)
	if err != nil {
		t.Fatalf("Failed to delete chunk: %v", err)
	}

	// Verify it's deleted
	_, err = chunkRepo.GetChunk(ctx, added[0].Id)
	if err == nil {
		t.Fatal("Expected error when getting deleted chunk")
	}

	// Verify its postings are gone
	postings, err := chunkRepo.GetPostings(ctx, "perfume")
	if err != nil {
		t.Fatalf("Failed to get postings: %v", err)
	}
	if len(postings) != 0 {
		t.Fatalf("Expected postings removed with chunk, got %d", len(postings))
	}

	// Verify second chunk still exists
	retrieved, err := chunkRepo.GetChunk(ctx, added[1].Id)
	if err != nil {
		t.Fatalf("Failed to get remaining chunk: %v", err)
	}
	if retrieved.Content != "chunk about flavor" {
		t.Fatalf("Unexpected content: %q", retrieved.Content)
	}

	// Re-deleting is a no-op
	err = chunkRepo.DeleteChunks(ctx, added[0].Id)
	if err != nil {
		t.Fatalf("Expected re-delete to be a no-op, got %v", err)
	}
}

func TestDeleteChunks_DuplicateIds(t *testing.T) {
	chunkRepo, documentRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { documentRepo.Close(); chunkRepo.Close(); backend.Close() }()

	ctx := context.Background()

	// Identical content collapses to one content-based ID
	added, err := chunkRepo.AddChunks(ctx,
		&core.Chunk{Content: "repeated boilerplate paragraph"},
		&core.Chunk{Content: "repeated boilerplate paragraph"},
	)
	if err != nil {
		t.Fatalf("Failed to add chunks: %v", err)
	}
	if added[0].Id != added[1].Id {
		t.Fatal("Expected identical content to produce the same ID")
	}

	// A batch holding the same ID twice must still delete the chunk
	err = chunkRepo.DeleteChunks(ctx, added[0].Id, added[1].Id)
	if err != nil {
		t.Fatalf("Failed to delete duplicate-ID batch: %v", err)
	}

	_, err = chunkRepo.GetChunk(ctx, added[0].Id)
	if err != storage.ErrNotFound {
		t.Fatalf("Expected chunk gone after delete, got %v", err)
	}

	stats, err := chunkRepo.GetLexiconStats(ctx)
	if err != nil {
		t.Fatalf("Failed to get lexicon stats: %v", err)
	}
	if stats.ChunkCount != 0 || stats.TokenCount != 0 {
		t.Fatalf("Expected zero stats after delete, got %+v", stats)
	}
}

func TestDeleteChunks_SkipsMissing(t *testing.T) {
	chunkRepo, documentRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { documentRepo.Close(); chunkRepo.Close(); backend.Close() }()

	ctx := context.Background()

	added, err := chunkRepo.AddChunks(ctx,
		&core.Chunk{Content: "surviving batch member"},
	)
	if err != nil {
		t.Fatalf("Failed to add chunk: %v", err)
	}

	// A missing ID in the batch must not abort the stored one's delete
	err = chunkRepo.DeleteChunks(ctx, core.ID(777777), added[0].Id)
	if err != nil {
		t.Fatalf("Failed to delete batch with missing ID: %v", err)
	}

	_, err = chunkRepo.GetChunk(ctx, added[0].Id)
	if err != storage.ErrNotFound {
		t.Fatalf("Expected stored chunk deleted despite missing ID, got %v", err)
	}
}

func TestGetChunks_Multiple(t *testing.T) {
	chunkRepo, documentRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { documentRepo.Close(); chunkRepo.Close(); backend.Close() }()

	ctx := context.Background()

	chunks := []*core.Chunk{
		{Content: "first stored chunk"},
		{Content: "second stored chunk"},
		{Content: "third stored chunk"},
	}
	added, err := chunkRepo.AddChunks(ctx, chunks...)
	if err != nil {
		t.Fatalf("Failed to add chunks: %v", err)
	}

	// Missing IDs are skipped rather than failing the batch
	retrieved, err := chunkRepo.GetChunks(ctx, added[0].Id, core.ID(424242), added[2].Id)
	if err != nil {
		t.Fatalf("Failed to get chunks: %v", err)
	}

	if len(retrieved) != 2 {
		t.Fatalf("Expected 2 chunks, got %d", len(retrieved))
	}
}

func TestForEachChunk(t *testing.T) {
	chunkRepo, documentRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { documentRepo.Close(); chunkRepo.Close(); backend.Close() }()

	ctx := context.Background()

	chunks := []*core.Chunk{
		{Content: "iteration target one"},
		{Content: "iteration target two"},
		{Content: "iteration target three"},
	}
	_, err = chunkRepo.AddChunks(ctx, chunks...)
	if err != nil {
		t.Fatalf("Failed to add chunks: %v", err)
	}

	seen := 0
	err = chunkRepo.ForEachChunk(ctx, func(chunk *core.Chunk) error {
		if chunk.Content == "" {
			t.Error("Expected non-empty content during iteration")
		}
		seen++
		return nil
	})
	if err != nil {
		t.Fatalf("ForEachChunk failed: %v", err)
	}

	if seen != 3 {
		t.Fatalf("Expected to visit 3 chunks, visited %d", seen)
	}
}

func TestCountChunks(t *testing.T) {
	chunkRepo, documentRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { documentRepo.Close(); chunkRepo.Close(); backend.Close() }()

	ctx := context.Background()

	count, err := chunkRepo.CountChunks(ctx)
	if err != nil {
		t.Fatalf("Failed to count chunks: %v", err)
	}
	if count != 0 {
		t.Fatalf("Expected 0 chunks, got %d", count)
	}

	_, err = chunkRepo.AddChunks(ctx,
		&core.Chunk{Content: "counted chunk one"},
		&core.Chunk{Content: "counted chunk two"},
	)
	if err != nil {
		t.Fatalf("Failed to add chunks: %v", err)
	}

	count, err = chunkRepo.CountChunks(ctx)
	if err != nil {
		t.Fatalf("Failed to count chunks: %v", err)
	}
	if count != 2 {
		t.Fatalf("Expected 2 chunks, got %d", count)
	}
}
