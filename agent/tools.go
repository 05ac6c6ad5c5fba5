package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/tools"
	"github.com/tmc/langchaingo/tools/serpapi"

	"github.com/solenne/docent/core"
)

const (
	// RetrievalToolName is how the model addresses the corpus index.
	RetrievalToolName = "search_documents"
	// WebSearchToolName is how the model addresses the web fallback.
	WebSearchToolName = "search_web"

	// maxDocSnippet caps each document snippet in an observation.
	maxDocSnippet = 300
	// maxWebSnippet caps a web search observation.
	maxWebSnippet = 500
)

// Retriever is the slice of the retrieval pipeline the document tool
// needs. *retrieval.Retriever satisfies it.
type Retriever interface {
	// RetrieveRelevant returns the most relevant chunks for the query,
	// already reranked and truncated. Empty means no evidence.
	RetrieveRelevant(ctx context.Context, query string) []*core.SearchResult
}

// RetrievalTool exposes the indexed corpus to the reasoning loop.
type RetrievalTool struct {
	retriever Retriever
}

var _ tools.Tool = (*RetrievalTool)(nil)

// NewRetrievalTool wraps a retriever as a loop tool.
func NewRetrievalTool(retriever Retriever) (*RetrievalTool, error) {
	if retriever == nil {
		return nil, ErrNoRetriever
	}
	return &RetrievalTool{retriever: retriever}, nil
}

// Name implements tools.Tool.
func (t *RetrievalTool) Name() string {
	return RetrievalToolName
}

// Description implements tools.Tool.
func (t *RetrievalTool) Description() string {
	return "Searches the indexed document corpus. Input: a natural language question. Use this first for any factual question."
}

// Call implements tools.Tool. It never returns an error: an empty index
// and collaborator failures both read as "no documents found", which the
// model treats as an ordinary observation.
func (t *RetrievalTool) Call(ctx context.Context, input string) (string, error) {
	results := t.retriever.RetrieveRelevant(ctx, input)
	if len(results) == 0 {
		return "No documents found.", nil
	}

	var b strings.Builder
	for i, result := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[Doc %d - %s]\n%s", i+1, result.Chunk.Source,
			snippet(result.Chunk.Content, maxDocSnippet))
	}
	return b.String(), nil
}

// WebSearchTool wraps an external search engine as the loop's fallback
// for questions the corpus cannot answer. A nil engine is a configured,
// answerable state: calls report unavailability as a normal observation
// so the loop keeps running without a key.
type WebSearchTool struct {
	engine       tools.Tool
	queryContext string
	logger       *slog.Logger
}

var _ tools.Tool = (*WebSearchTool)(nil)

// NewWebSearchTool wraps a search engine (typically serpapi's tool).
// queryContext, when non-empty, is prepended to every search to keep
// results on topic.
func NewWebSearchTool(engine tools.Tool, queryContext string) *WebSearchTool {
	return &WebSearchTool{
		engine:       engine,
		queryContext: queryContext,
		logger:       slog.Default().With("component", "web-search"),
	}
}

// NewSerpAPITool builds a WebSearchTool backed by SerpAPI. The API key
// is read from the SERPAPI_API_KEY environment variable; when it is
// missing the tool still works, reporting unavailability per call.
func NewSerpAPITool(queryContext string) *WebSearchTool {
	engine, err := serpapi.New()
	if err != nil {
		slog.Default().Warn("web search disabled", "err", err)
		return NewWebSearchTool(nil, queryContext)
	}
	return NewWebSearchTool(engine, queryContext)
}

// Name implements tools.Tool.
func (t *WebSearchTool) Name() string {
	return WebSearchToolName
}

// Description implements tools.Tool.
func (t *WebSearchTool) Description() string {
	return "Searches the public web. Use only when the documents have no answer or the question needs current information."
}

// Call implements tools.Tool. Failures come back as observations, never
// as errors, so a flaky search engine cannot abort the loop.
func (t *WebSearchTool) Call(ctx context.Context, input string) (string, error) {
	if t.engine == nil {
		return "Web search is not available (no API key configured).", nil
	}

	query := input
	if t.queryContext != "" {
		query = t.queryContext + " " + input
	}

	result, err := t.engine.Call(ctx, query)
	if err != nil {
		t.logger.Warn("web search failed", "query", input, "err", err)
		return fmt.Sprintf("Web search failed: %v", err), nil
	}
	if strings.TrimSpace(result) == "" {
		return "No web results found.", nil
	}
	return snippet(result, maxWebSnippet), nil
}

// snippet truncates s to at most n runes, marking the cut.
func snippet(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
