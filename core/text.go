package core

import "strings"

// Stop words excluded from lexical scoring
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true,
}

// Tokenize splits text into lowercase terms for lexical indexing and scoring.
// Words are trimmed of surrounding punctuation; stop words, control
// characters, and empty strings are dropped. Index-time and query-time
// tokenization must agree, so every lexical code path goes through here.
func Tokenize(text string) []string {
	words := strings.Fields(text)
	terms := make([]string, 0, len(words))

	for _, word := range words {
		// Lowercase and trim punctuation
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}"))

		// Drop control characters; posting keys rely on terms being printable
		cleaned = strings.Map(func(r rune) rune {
			if r < 0x20 {
				return -1
			}
			return r
		}, cleaned)

		// Skip stop words and empty strings
		if cleaned != "" && !stopWords[cleaned] {
			terms = append(terms, cleaned)
		}
	}

	return terms
}

// TermFrequencies counts occurrences of each term in the token stream.
func TermFrequencies(terms []string) map[string]uint32 {
	freqs := make(map[string]uint32, len(terms))
	for _, term := range terms {
		freqs[term]++
	}
	return freqs
}
