package retrieval

import (
	"sort"

	"github.com/solenne/docent/core"
)

// fuseResults blends the two candidate lists with relative score fusion:
// each list's scores are min-max normalized onto [0,1], then combined as
// alpha*dense + (1-alpha)*lexical. A candidate present in only one list
// contributes 0 for the missing component. The merged list is ordered by
// blended score descending, chunk ID ascending on ties, and truncated
// to k.
func fuseResults(dense, lexical []*core.SearchResult, alpha float64, k int) []*core.SearchResult {
	denseScores := make([]float64, len(dense))
	for i, result := range dense {
		denseScores[i] = result.DenseScore
	}
	lexicalScores := make([]float64, len(lexical))
	for i, result := range lexical {
		lexicalScores[i] = result.LexicalScore
	}
	normDense := normalizeScores(denseScores)
	normLexical := normalizeScores(lexicalScores)

	merged := make(map[core.ID]*core.SearchResult, len(dense)+len(lexical))
	for i, result := range dense {
		merged[result.Chunk.Id] = &core.SearchResult{
			Chunk:      result.Chunk,
			Score:      alpha * normDense[i],
			DenseScore: result.DenseScore,
		}
	}
	for i, result := range lexical {
		if existing, ok := merged[result.Chunk.Id]; ok {
			existing.Score += (1 - alpha) * normLexical[i]
			existing.LexicalScore = result.LexicalScore
			continue
		}
		merged[result.Chunk.Id] = &core.SearchResult{
			Chunk:        result.Chunk,
			Score:        (1 - alpha) * normLexical[i],
			LexicalScore: result.LexicalScore,
		}
	}

	results := make([]*core.SearchResult, 0, len(merged))
	for _, result := range merged {
		results = append(results, result)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.Id < results[j].Chunk.Id
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}

// normalizeScores maps a score list onto [0,1]. A list whose scores are
// all equal normalizes to 1.0 when the shared value is positive and 0.0
// otherwise, so a single strong candidate keeps full weight.
func normalizeScores(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}

	lowest, highest := scores[0], scores[0]
	for _, score := range scores[1:] {
		if score < lowest {
			lowest = score
		}
		if score > highest {
			highest = score
		}
	}

	normalized := make([]float64, len(scores))
	if highest == lowest {
		if highest > 0 {
			for i := range normalized {
				normalized[i] = 1.0
			}
		}
		return normalized
	}

	spread := highest - lowest
	for i, score := range scores {
		normalized[i] = (score - lowest) / spread
	}
	return normalized
}
