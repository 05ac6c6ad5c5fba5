package core

import "math"

// CosineSimilarity computes the cosine of the angle between two vectors.
// Returns 0 when the vectors differ in length or either has zero
// magnitude, so degenerate embeddings can never produce a match.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// DotProduct computes the inner product of two vectors.
// Equivalent to cosine similarity when both vectors are unit length.
// Returns 0 when the vectors differ in length.
func DotProduct(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}
