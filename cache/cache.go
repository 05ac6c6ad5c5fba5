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


package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/solenne/docent/ai"
	"github.com/solenne/docent/core"
)

// Default tuning for the semantic answer cache.
const (
	// DefaultThreshold is the minimum cosine similarity for a hit.
	DefaultThreshold = 0.88
	// DefaultTTL is how long an entry stays eligible after creation.
	DefaultTTL = 24 * time.Hour
	// DefaultMaxEntries caps the store before LRU eviction starts.
	DefaultMaxEntries = 1000
	// DefaultScanLimit bounds how many recent entries a lookup compares.
	DefaultScanLimit = 100
	// DefaultSystemType tags entries written by the answering agent.
	DefaultSystemType = "agent"
)

// Cache is a persistent semantic answer cache backed by SQLite.
// Safe for concurrent use.
type Cache struct {
	db       *sql.DB
	embedder ai.Embedder

	threshold  float64
	ttl        time.Duration
	maxEntries int
	scanLimit  int
	systemType string
	logger     *slog.Logger

	mu        sync.Mutex
	hits      int64
	misses    int64
	evictions int64
	closed    bool
}

// Option configures a Cache.
type Option func(*Cache) error

// WithThreshold sets the minimum cosine similarity for a hit.
func WithThreshold(threshold float64) Option {
	return func(c *Cache) error {
		if threshold <= 0 || threshold > 1 {
			return fmt.Errorf("threshold must be in (0,1], got %v", threshold)
		}
		c.threshold = threshold
		return nil
	}
}

// WithTTL sets how long entries stay eligible after creation.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) error {
		if ttl <= 0 {
			return fmt.Errorf("ttl must be positive, got %v", ttl)
		}
		c.ttl = ttl
		return nil
	}
}

// WithMaxEntries sets the entry cap enforced after each write.
func WithMaxEntries(max int) Option {
	return func(c *Cache) error {
		if max <= 0 {
			return fmt.Errorf("maxEntries must be positive, got %d", max)
		}
		c.maxEntries = max
		return nil
	}
}

// WithScanLimit bounds how many recent entries a lookup compares.
// Lookups scan the most recently accessed entries first, so a small
// limit keeps lookup cost flat as the store grows.
func WithScanLimit(limit int) Option {
	return func(c *Cache) error {
		if limit <= 0 {
			return fmt.Errorf("scanLimit must be positive, got %d", limit)
		}
		c.scanLimit = limit
		return nil
	}
}

// WithSystemType sets the tag that partitions entries between callers
// sharing one store. Lookups only consider entries with the same tag.
func WithSystemType(systemType string) Option {
	return func(c *Cache) error {
		if systemType == "" {
			return fmt.Errorf("systemType must not be empty")
		}
		c.systemType = systemType
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// Open opens the cache store at path, creating it (and its parent
// directory) if needed. Pass ":memory:" for an ephemeral store.
func Open(path string, embedder ai.Embedder, opts ...Option) (*Cache, error) {
	if path == "" {
		return nil, ErrPathRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	c := &Cache{
		embedder:   embedder,
		threshold:  DefaultThreshold,
		ttl:        DefaultTTL,
		maxEntries: DefaultMaxEntries,
		scanLimit:  DefaultScanLimit,
		systemType: DefaultSystemType,
		logger:     slog.Default().With("component", "answer-cache"),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create cache directory: %w", err)
			}
		}
	}

	db, err := openStore(context.Background(), path)
	if err != nil {
		return nil, err
	}
	c.db = db

	c.logger.Info("semantic cache ready",
		"threshold", c.threshold,
		"ttl", c.ttl,
		"maxEntries", c.maxEntries)
	return c, nil
}

// Get looks up a cached answer for a semantically similar query.
//
// The incoming query is embedded and compared by cosine similarity
// against the most recently accessed non-expired entries; the best
// candidate wins if it clears the threshold. On a hit the entry's
// last-accessed time and access count are updated.
//
// A miss is (nil, nil). Embedding and store failures degrade to a miss
// (logged, counted) so the answer path never depends on cache health.
func (c *Cache) Get(ctx context.Context, query string) (*Hit, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}

	start := time.Now()
	c.purgeExpired(ctx)

	embedding, err := c.embedder.EmbedText(ctx, query)
	if err != nil {
		c.logger.Warn("query embedding failed, treating as miss", "err", err)
		c.countMiss()
		return nil, nil
	}

	now := time.Now().UTC()
	candidates, err := c.recentCandidates(ctx, now)
	if err != nil {
		c.logger.Warn("cache scan failed, treating as miss", "err", err)
		c.countMiss()
		return nil, nil
	}
	if len(candidates) == 0 {
		c.countMiss()
		c.logger.Debug("cache miss, no candidates", "systemType", c.systemType)
		return nil, nil
	}

	// Strict comparison keeps the first candidate on ties, which is the
	// most recently accessed one given the scan order. Zero-magnitude
	// embeddings score 0 and can never match.
	var best *Entry
	var bestSimilarity float64
	for i := range candidates {
		similarity := core.CosineSimilarity(embedding, candidates[i].Embedding)
		if similarity > bestSimilarity {
			bestSimilarity = similarity
			best = &candidates[i]
		}
	}

	if best == nil || bestSimilarity < c.threshold {
		c.countMiss()
		if best != nil {
			c.logger.Debug("cache miss, below threshold",
				"bestSimilarity", bestSimilarity, "threshold", c.threshold)
		}
		return nil, nil
	}

	if _, err := c.db.ExecContext(ctx, `
		UPDATE cache_entries
		SET last_accessed = ?, access_count = access_count + 1
		WHERE id = ?`,
		now.UnixMilli(), best.ID); err != nil {
		c.logger.Warn("failed to update access stats", "id", best.ID, "err", err)
	} else {
		best.LastAccessed = now
		best.AccessCount++
	}

	c.mu.Lock()
	c.hits++
	c.mu.Unlock()

	c.logger.Info("cache hit",
		"similarity", bestSimilarity,
		"elapsed", time.Since(start),
		"query", truncate(query, 50),
		"cachedQuery", truncate(best.Query, 50))

	return &Hit{Answer: best.Answer, Similarity: bestSimilarity, Entry: *best}, nil
}

// Set stores a freshly computed answer for query with expiry now+TTL,
// then enforces the entry cap by evicting the least recently accessed
// entries.
func (c *Cache) Set(ctx context.Context, query, answer string, metadata map[string]string) error {
	if c.isClosed() {
		return ErrClosed
	}

	embedding, err := c.embedder.EmbedText(ctx, query)
	if err != nil {
		return fmt.Errorf("embed query: %w", err)
	}

	var metadataJSON any
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		metadataJSON = string(raw)
	}

	now := time.Now().UTC()
	if _, err := c.db.ExecContext(ctx, `
		INSERT INTO cache_entries
		    (query, query_embedding, answer, metadata, system_type,
		     created_at, last_accessed, access_count, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		query, encodeVector(embedding), answer, metadataJSON, c.systemType,
		now.UnixMilli(), now.UnixMilli(), now.Add(c.ttl).UnixMilli()); err != nil {
		return fmt.Errorf("store cache entry: %w", err)
	}

	if err := c.enforceMaxEntries(ctx); err != nil {
		c.logger.Warn("failed to enforce entry cap", "err", err)
	}

	c.logger.Debug("cached answer", "query", truncate(query, 50), "expiresIn", c.ttl)
	return nil
}

// Stats reports cumulative counters since process start (or the last
// Clear) and a live count of non-expired entries.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	if c.isClosed() {
		return Stats{}, ErrClosed
	}

	var active int
	if err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cache_entries WHERE expires_at > ?`,
		time.Now().UTC().UnixMilli()).Scan(&active); err != nil {
		return Stats{}, fmt.Errorf("count active entries: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{
		Hits:          c.hits,
		Misses:        c.misses,
		ActiveEntries: active,
		Evictions:     c.evictions,
		Threshold:     c.threshold,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total) * 100
	}
	return stats, nil
}

// Clear deletes every entry and resets the counters.
func (c *Cache) Clear(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}

	result, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries`)
	if err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	deleted, _ := result.RowsAffected()

	c.mu.Lock()
	c.hits, c.misses, c.evictions = 0, 0, 0
	c.mu.Unlock()

	c.logger.Info("cache cleared", "deleted", deleted)
	return nil
}

// Close closes the underlying store. Operations after Close return
// ErrClosed.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	return c.db.Close()
}

// purgeExpired lazily deletes expired rows so they can never match.
func (c *Cache) purgeExpired(ctx context.Context) {
	result, err := c.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at <= ?`,
		time.Now().UTC().UnixMilli())
	if err != nil {
		c.logger.Warn("expiry sweep failed", "err", err)
		return
	}
	if deleted, err := result.RowsAffected(); err == nil && deleted > 0 {
		c.logger.Debug("purged expired entries", "count", deleted)
	}
}

// recentCandidates fetches the non-expired entries for the configured
// system type, most recently accessed first, bounded by the scan limit.
// The rows are fully drained before returning so the single pooled
// connection is free again for the follow-up write.
func (c *Cache) recentCandidates(ctx context.Context, now time.Time) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, query, query_embedding, answer, metadata, system_type,
		       created_at, last_accessed, access_count, expires_at
		FROM cache_entries
		WHERE system_type = ? AND expires_at > ?
		ORDER BY last_accessed DESC
		LIMIT ?`,
		c.systemType, now.UnixMilli(), c.scanLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry        Entry
			blob         []byte
			metadata     sql.NullString
			createdAt    int64
			lastAccessed int64
			expiresAt    int64
		)
		if err := rows.Scan(&entry.ID, &entry.Query, &blob, &entry.Answer,
			&metadata, &entry.SystemType, &createdAt, &lastAccessed,
			&entry.AccessCount, &expiresAt); err != nil {
			return nil, err
		}

		entry.Embedding, err = decodeVector(blob)
		if err != nil {
			c.logger.Warn("skipping entry with malformed embedding", "id", entry.ID, "err", err)
			continue
		}
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &entry.Metadata); err != nil {
				c.logger.Warn("dropping malformed entry metadata", "id", entry.ID, "err", err)
			}
		}
		entry.CreatedAt = time.UnixMilli(createdAt).UTC()
		entry.LastAccessed = time.UnixMilli(lastAccessed).UTC()
		entry.ExpiresAt = time.UnixMilli(expiresAt).UTC()
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// enforceMaxEntries deletes the least recently accessed entries until
// the store fits the cap again, counting each deletion as an eviction.
func (c *Cache) enforceMaxEntries(ctx context.Context) error {
	var count int
	if err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cache_entries`).Scan(&count); err != nil {
		return err
	}
	if count <= c.maxEntries {
		return nil
	}

	result, err := c.db.ExecContext(ctx, `
		DELETE FROM cache_entries WHERE id IN (
		    SELECT id FROM cache_entries
		    ORDER BY last_accessed ASC
		    LIMIT ?
		)`, count-c.maxEntries)
	if err != nil {
		return err
	}

	evicted, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if evicted > 0 {
		c.mu.Lock()
		c.evictions += evicted
		c.mu.Unlock()
		c.logger.Debug("evicted least recently used entries", "count", evicted)
	}
	return nil
}

func (c *Cache) countMiss() {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
}

func (c *Cache) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// truncate shortens s for log output without splitting runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
