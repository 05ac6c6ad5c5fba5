package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Completer generates chat completions from a system prompt and a user prompt.
// Completions are requested at temperature zero so repeated calls with the
// same prompts produce stable output.
// Implementations must be thread-safe for concurrent use.
type Completer interface {
	// Complete sends the system and user prompts to the model and returns
	// the text of the first choice.
	// Returns an error if the request fails or the model returns no choices.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Scorer assigns relevance scores to (query, candidate) text pairs.
// Higher scores indicate higher relevance. Used by the retrieval pipeline
// for second-pass reranking of hybrid search candidates.
// Implementations must be thread-safe for concurrent use.
type Scorer interface {
	// ScorePairs scores each candidate against the query and returns one
	// score per candidate, in input order.
	// Returns an error if scoring fails for any pair.
	ScorePairs(ctx context.Context, query string, candidates []string) ([]float64, error)
}

// Provider aggregates AI services for convenient initialization and lifecycle management.
// A provider creates and manages Embedder and Completer instances,
// ensuring they share configuration and resources appropriately.
//
// Reranking is not part of the provider. The scorer speaks a different
// wire protocol and is optional; callers construct it separately (see the
// rerank package).
type Provider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Completer returns the chat completion service.
	// The returned Completer is safe for concurrent use.
	Completer() Completer

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
