package retrieval

import "github.com/solenne/docent/core"

// RetrievalMonitor provides hooks to observe the retrieval pipeline.
// Implement this interface to track intermediate candidates at each stage.
type RetrievalMonitor interface {
	Start(query string)
	AfterDenseSearch(results []*core.SearchResult)
	AfterLexicalSearch(results []*core.SearchResult)
	AfterFusion(results []*core.SearchResult)
	AfterRerank(results []*core.SearchResult)
	Finish(results []*core.SearchResult)
}

// noopMonitor is a no-op implementation of RetrievalMonitor
type noopMonitor struct{}

var _ RetrievalMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                            {}
func (n *noopMonitor) AfterDenseSearch(_ []*core.SearchResult)   {}
func (n *noopMonitor) AfterLexicalSearch(_ []*core.SearchResult) {}
func (n *noopMonitor) AfterFusion(_ []*core.SearchResult)        {}
func (n *noopMonitor) AfterRerank(_ []*core.SearchResult)        {}
func (n *noopMonitor) Finish(_ []*core.SearchResult)             {}
