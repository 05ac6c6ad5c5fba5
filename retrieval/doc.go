// Copyright 2025 Solenne Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package retrieval provides hybrid search over the indexed document corpus.
//
// The Retriever type implements a two-stage pipeline that combines:
//   - Dense retrieval using vector embeddings and cosine similarity
//   - Lexical retrieval using BM25 over persisted term postings
//   - Relative score fusion weighting the two legs with a blend factor
//   - An optional rerank pass using a pairwise relevance scorer
//
// Retrieval treats absence as a normal outcome: an empty index, an
// unmatched query, and collaborator failures all produce an empty result
// list rather than an error, so callers can read empty as "no evidence".
package retrieval
