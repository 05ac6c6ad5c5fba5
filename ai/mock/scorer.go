package mock

import (
	"context"
	"strings"
)

// MockScorer is a test double for ai.Scorer.
// It allows custom behavior injection via a function field.
type MockScorer struct {
	// ScorePairsFunc is called by ScorePairs if set.
	// If nil, uses default token-overlap scoring.
	ScorePairsFunc func(ctx context.Context, query string, candidates []string) ([]float64, error)

	callCount int
}

// NewMockScorer creates a mock scorer with default token-overlap behavior.
// Note: Returns concrete type to allow test assertions.
func NewMockScorer() *MockScorer {
	return &MockScorer{}
}

// ScorePairs scores each candidate by the number of distinct query tokens it
// contains. A candidate sharing more words with the query scores higher,
// which is a crude but deterministic stand-in for a cross-encoder.
func (m *MockScorer) ScorePairs(ctx context.Context, query string, candidates []string) ([]float64, error) {
	m.callCount++

	if m.ScorePairsFunc != nil {
		return m.ScorePairsFunc(ctx, query, candidates)
	}

	queryTokens := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(query)) {
		queryTokens[tok] = struct{}{}
	}

	scores := make([]float64, len(candidates))
	for i, candidate := range candidates {
		seen := make(map[string]struct{})
		for _, tok := range strings.Fields(strings.ToLower(candidate)) {
			if _, ok := queryTokens[tok]; !ok {
				continue
			}
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			scores[i]++
		}
	}
	return scores, nil
}

// CallCount returns the number of times ScorePairs was called.
func (m *MockScorer) CallCount() int {
	return m.callCount
}

// Reset clears the call count and custom function.
func (m *MockScorer) Reset() {
	m.callCount = 0
	m.ScorePairsFunc = nil
}
