package retrieval

import (
	"context"
	"math"
	"sort"

	"github.com/solenne/docent/core"
)

// BM25 parameters, the standard Robertson defaults.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// termMatch carries one query term's corpus rarity together with its
// frequency inside a candidate chunk.
type termMatch struct {
	idf float64
	tf  uint32
}

// lexicalSearch scores chunks against the query with BM25 over the
// persisted term postings and returns the top k by score descending.
func (r *Retriever) lexicalSearch(ctx context.Context, query string, k int) ([]*core.SearchResult, error) {
	terms := core.Tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	stats, err := r.chunkRepository.GetLexiconStats(ctx)
	if err != nil {
		return nil, err
	}
	if stats.ChunkCount == 0 {
		return nil, nil
	}

	totalChunks := float64(stats.ChunkCount)
	avgLength := float64(stats.TokenCount) / totalChunks

	// Gather postings once per distinct query term
	seen := make(map[string]bool, len(terms))
	matches := make(map[core.ID][]termMatch)
	for _, term := range terms {
		if seen[term] {
			continue
		}
		seen[term] = true

		postings, err := r.chunkRepository.GetPostings(ctx, term)
		if err != nil {
			return nil, err
		}
		if len(postings) == 0 {
			continue
		}

		docFreq := float64(len(postings))
		idf := math.Log(1 + (totalChunks-docFreq+0.5)/(docFreq+0.5))
		for id, tf := range postings {
			matches[id] = append(matches[id], termMatch{idf: idf, tf: tf})
		}
	}

	if len(matches) == 0 {
		return nil, nil
	}

	ids := make([]core.ID, 0, len(matches))
	for id := range matches {
		ids = append(ids, id)
	}
	chunks, err := r.chunkRepository.GetChunks(ctx, ids...)
	if err != nil {
		return nil, err
	}

	results := make([]*core.SearchResult, 0, len(chunks))
	for _, chunk := range chunks {
		length := float64(len(core.Tokenize(chunk.Content)))

		var score float64
		for _, match := range matches[chunk.Id] {
			tf := float64(match.tf)
			score += match.idf * (tf * (bm25K1 + 1)) / (tf + bm25K1*(1-bm25B+bm25B*length/avgLength))
		}

		results = append(results, &core.SearchResult{
			Chunk:        chunk,
			Score:        score,
			LexicalScore: score,
		})
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
	return results, nil
}
