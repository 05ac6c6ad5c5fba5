// Package reembed rebuilds the vectors of already-indexed chunks, for
// use after switching or upgrading the embedding model.
//
// The corpus is walked in batches with progress reporting, embedding
// calls retry with exponential backoff, and every stored vector is
// normalized so cosine similarity search keeps working unchanged.
package reembed
