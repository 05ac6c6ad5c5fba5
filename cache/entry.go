package cache

import "time"

// Entry is one cached (query, answer) pair together with its bookkeeping
// columns. Embedding is the stored query embedding used for similarity
// lookups; LastAccessed and AccessCount change on every hit.
type Entry struct {
	ID           int64
	Query        string
	Embedding    []float32
	Answer       string
	Metadata     map[string]string
	SystemType   string
	CreatedAt    time.Time
	LastAccessed time.Time
	AccessCount  int
	ExpiresAt    time.Time
}

// Hit is the result of a successful cache lookup: the matched entry and
// the cosine similarity between the incoming query and the entry's
// stored embedding.
type Hit struct {
	Answer     string
	Similarity float64
	Entry      Entry
}

// Stats reports cumulative cache effectiveness since process start.
// ActiveEntries is a live count of non-expired rows; the counters are
// in-memory and reset by Clear.
type Stats struct {
	Hits          int64
	Misses        int64
	HitRate       float64 // percentage of lookups answered from cache
	ActiveEntries int
	Evictions     int64
	Threshold     float64
}
