package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing so identical content maps
// to the same identifier.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs, which makes
// re-indexing the same chunk an overwrite rather than a duplicate.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Role identifies the author of a conversation turn.
type Role int

const (
	// RoleUser represents the human asking questions.
	RoleUser Role = iota + 1
	// RoleAssistant represents the answering system.
	RoleAssistant
)

// String returns the lowercase wire name of the role.
func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	default:
		return "unknown"
	}
}

// Document is a unit of loaded source material before chunking.
// Loaders produce one Document per file (or per page for paginated formats,
// in which case Page is 1-based).
type Document struct {
	Name    string // base filename, e.g. "history.md"
	Path    string // full path the loader read from
	Format  string // lowercase format tag, e.g. "markdown", "text"
	Page    int    // 1-based page number, 0 when not paginated
	Content string
}

// Chunk is an overlapping window of document text owned by the retrieval
// index. Chunks are immutable after indexing except for Vector, which a
// re-embedding run may replace.
type Chunk struct {
	Id        ID
	Content   string
	Source    string // originating filename
	Format    string
	Index     int // ordinal of this chunk within its document
	Page      int // 1-based page number, 0 when unknown
	Vector    []float32
	IndexedAt time.Time
	UpdatedAt time.Time
}

// SearchResult is a retrieval candidate with its blended relevance score.
// DenseScore and LexicalScore carry the unblended components for
// diagnostics; after reranking Score holds the reranker's score instead.
type SearchResult struct {
	Chunk        *Chunk
	Score        float64
	DenseScore   float64
	LexicalScore float64
}

// ConversationTurn is one entry of the caller-owned chat history.
// The orchestrator only reads a bounded recent window of these.
type ConversationTurn struct {
	Role      Role
	Content   string
	Timestamp time.Time
}

// AgentStep records one iteration of the reasoning loop: what the model
// thought, which tool it invoked with what input, and what came back.
type AgentStep struct {
	Thought     string
	Action      string
	ActionInput string
	Observation string
}

// DocumentRecord is the registry row kept per indexed source file. It lets
// the watcher detect unchanged files and replace a file's chunks wholesale
// when content changes.
type DocumentRecord struct {
	Path        string
	Name        string
	ContentHash ID // IDFromContent over the full document text
	ChunkIds    []ID
	IndexedAt   time.Time
}

// LexiconStats tracks corpus-wide totals backing BM25 scoring.
// TokenCount is the sum of tokenized chunk lengths, so the average chunk
// length is TokenCount/ChunkCount.
type LexiconStats struct {
	ChunkCount uint64
	TokenCount uint64
}
